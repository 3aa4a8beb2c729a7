package commands

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Warning reports a non-fatal voice-command pairing issue. Warnings are
// collected alongside the transformed transcript, never raised as errors.
type Warning struct {
	Message string
	Index   int
}

// Result is the outcome of processing one transcript
type Result struct {
	Text     string
	Warnings []Warning
	Matches  int
}

// Engine transforms a raw transcript by substituting matched voice-command
// triggers with their markup. Processing never fails on malformed input; the
// worst case is an unmodified transcript.
type Engine struct {
	enabled  bool
	patterns []triggerPattern
	logger   *slog.Logger
}

// NewEngine creates a command engine for the given command table. Commands
// that fail validation are rejected up front.
func NewEngine(cmds []Command, enabled bool, logger *slog.Logger) (*Engine, error) {
	for i := range cmds {
		if err := cmds[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid voice command at index %d: %w", i, err)
		}
	}

	return &Engine{
		enabled:  enabled,
		patterns: compilePatterns(cmds),
		logger:   logger,
	}, nil
}

// Process rewrites trigger phrases in the transcript into markup. When the
// engine is disabled, or no trigger matches, the input is returned unchanged.
func (e *Engine) Process(transcript string) Result {
	if !e.enabled || len(e.patterns) == 0 {
		return Result{Text: transcript}
	}

	occurrences := findOccurrences(transcript, e.patterns)
	if len(occurrences) == 0 {
		return Result{Text: transcript}
	}

	warnings := validatePairing(occurrences)
	for _, w := range warnings {
		e.logger.Warn("Voice command validation warning",
			slog.String("message", w.Message),
			slog.Int("index", w.Index),
		)
	}

	text := substitute(transcript, occurrences)
	text = cleanup(text)

	e.logger.Debug("Voice commands applied",
		slog.Int("matches", len(occurrences)),
		slog.Int("warnings", len(warnings)),
	)

	return Result{Text: text, Warnings: warnings, Matches: len(occurrences)}
}

// validatePairing replays paired-command occurrences left to right against a
// stack keyed by command type. Validation only collects diagnostics; it never
// blocks substitution.
func validatePairing(occurrences []Occurrence) []Warning {
	var warnings []Warning
	var stack []*Occurrence

	for i := range occurrences {
		occ := &occurrences[i]
		if !occ.Command.Paired {
			continue
		}

		if occ.IsStart {
			stack = append(stack, occ)
			continue
		}

		if len(stack) == 0 {
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("unmatched end trigger %q", strings.TrimSpace(occ.MatchedText)),
				Index:   occ.Index,
			})
			continue
		}

		top := stack[len(stack)-1]
		if top.Command.Type != occ.Command.Type {
			// Best-effort continuation: the popped entry is restored
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("mismatched nesting: %q closed by %q",
					strings.TrimSpace(top.MatchedText), strings.TrimSpace(occ.MatchedText)),
				Index: occ.Index,
			})
			continue
		}

		stack = stack[:len(stack)-1]
	}

	for _, occ := range stack {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("unclosed start trigger %q", strings.TrimSpace(occ.MatchedText)),
			Index:   occ.Index,
		})
	}

	return warnings
}

// replacementFor returns the markup substituted for one occurrence
func replacementFor(occ *Occurrence) string {
	if occ.Command.Paired && !occ.IsStart {
		return occ.Command.MarkdownEnd
	}
	return occ.Command.MarkdownStart
}

// substitute applies replacements in descending index order so earlier
// offsets remain valid while later ones are rewritten.
func substitute(transcript string, occurrences []Occurrence) string {
	out := transcript
	for i := len(occurrences) - 1; i >= 0; i-- {
		occ := &occurrences[i]
		out = out[:occ.Index] + replacementFor(occ) + out[occ.Index+len(occ.MatchedText):]
	}
	return out
}

var (
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns   = regexp.MustCompile(`[ \t]{2,}`)
)

// cleanup collapses excess blank lines and space runs left behind by
// substitution, then trims the result.
func cleanup(text string) string {
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
