package commands

import (
	"regexp"
	"sort"
	"strings"
)

// Punctuation characters stripped during trigger normalization and tolerated
// after each spoken word during matching.
const triggerPunctuation = ".,!?;:"

var punctuationStripper = strings.NewReplacer(
	".", "", ",", "", "!", "", "?", "", ";", "", ":", "",
)

// NormalizeTrigger lowercases a trigger phrase, strips punctuation and
// collapses internal whitespace to single spaces.
func NormalizeTrigger(trigger string) string {
	trigger = strings.ToLower(trigger)
	trigger = punctuationStripper.Replace(trigger)
	return strings.Join(strings.Fields(trigger), " ")
}

// triggerPattern is one compiled trigger ready to be scanned against a
// transcript.
type triggerPattern struct {
	command    *Command
	isStart    bool
	normalized string
	re         *regexp.Regexp
}

// compileTrigger builds the flexible matching pattern for one normalized
// trigger. Each word tolerates trailing punctuation, words are separated by
// arbitrary whitespace, and for paired commands the start trigger consumes
// trailing whitespace while the end trigger consumes leading whitespace so
// markup lands directly adjacent to the wrapped content.
func compileTrigger(normalized string, paired, isStart bool) (*regexp.Regexp, error) {
	words := strings.Fields(normalized)
	parts := make([]string, len(words))
	for i, word := range words {
		// Word boundaries keep "start bold" out of "restart bolder"
		parts[i] = regexp.QuoteMeta(word) + `\b[` + regexp.QuoteMeta(triggerPunctuation) + `]*`
	}

	pattern := `\b` + strings.Join(parts, `\s+`)
	if paired {
		if isStart {
			pattern += `\s*`
		} else {
			pattern = `\s*` + pattern
		}
	}

	return regexp.Compile(`(?i)` + pattern)
}

// compilePatterns builds trigger patterns for a command set, sorted by
// descending normalized trigger length so longer triggers claim text first.
// Commands that fail validation are skipped.
func compilePatterns(cmds []Command) []triggerPattern {
	patterns := make([]triggerPattern, 0, len(cmds)*2)

	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Validate() != nil {
			continue
		}

		start := NormalizeTrigger(cmd.StartTrigger)
		if re, err := compileTrigger(start, cmd.Paired, true); err == nil {
			patterns = append(patterns, triggerPattern{
				command:    cmd,
				isStart:    true,
				normalized: start,
				re:         re,
			})
		}

		if !cmd.Paired {
			continue
		}

		end := NormalizeTrigger(cmd.EndTrigger)
		if re, err := compileTrigger(end, cmd.Paired, false); err == nil {
			patterns = append(patterns, triggerPattern{
				command:    cmd,
				isStart:    false,
				normalized: end,
				re:         re,
			})
		}
	}

	// Longest trigger first; preserves definition order for equal lengths
	sort.SliceStable(patterns, func(i, j int) bool {
		return len(patterns[i].normalized) > len(patterns[j].normalized)
	})

	return patterns
}

// span is a claimed character range within the transcript
type span struct {
	start, end int
}

func (s span) overlaps(other span) bool {
	return s.start < other.end && other.start < s.end
}

// findOccurrences scans the transcript with every pattern in longest-first
// order. A match whose character range intersects a previously claimed range
// is rejected (first-claimed wins), so occurrences never overlap. The result
// is ordered by position in the transcript.
func findOccurrences(transcript string, patterns []triggerPattern) []Occurrence {
	var claimed []span
	var occurrences []Occurrence

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(transcript, -1) {
			candidate := span{start: loc[0], end: loc[1]}

			conflict := false
			for _, c := range claimed {
				if candidate.overlaps(c) {
					conflict = true
					break
				}
			}
			if conflict {
				continue
			}

			claimed = append(claimed, candidate)
			occurrences = append(occurrences, Occurrence{
				Command:     p.command,
				IsStart:     p.isStart,
				Index:       loc[0],
				MatchedText: transcript[loc[0]:loc[1]],
			})
		}
	}

	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].Index < occurrences[j].Index
	})

	return occurrences
}
