package commands

import "fmt"

// Command maps spoken trigger phrases to markup. Paired commands wrap a span
// of text between their start and end triggers; single commands insert
// MarkdownStart at the trigger location.
type Command struct {
	Type          string `yaml:"type"`
	StartTrigger  string `yaml:"start_trigger"`
	EndTrigger    string `yaml:"end_trigger,omitempty"`
	MarkdownStart string `yaml:"markdown_start"`
	MarkdownEnd   string `yaml:"markdown_end,omitempty"`
	Paired        bool   `yaml:"paired"`
}

// Validate checks that the command definition is usable
func (c *Command) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("command type cannot be empty")
	}

	if NormalizeTrigger(c.StartTrigger) == "" {
		return fmt.Errorf("command %q: start trigger cannot be empty", c.Type)
	}

	if c.Paired {
		if NormalizeTrigger(c.EndTrigger) == "" {
			return fmt.Errorf("command %q: paired command requires an end trigger", c.Type)
		}
		if c.MarkdownEnd == "" {
			return fmt.Errorf("command %q: paired command requires end markup", c.Type)
		}
	}

	return nil
}

// Occurrence records one matched trigger within a transcript. Occurrences
// never overlap in character range; the matcher enforces first-claimed-wins.
type Occurrence struct {
	Command     *Command
	IsStart     bool
	Index       int
	MatchedText string
}

// DefaultCommands returns the built-in command table used when the
// configuration defines none.
func DefaultCommands() []Command {
	return []Command{
		{Type: "bold", StartTrigger: "start bold", EndTrigger: "end bold", MarkdownStart: "**", MarkdownEnd: "**", Paired: true},
		{Type: "italic", StartTrigger: "start italic", EndTrigger: "end italic", MarkdownStart: "*", MarkdownEnd: "*", Paired: true},
		{Type: "strikethrough", StartTrigger: "start strikethrough", EndTrigger: "end strikethrough", MarkdownStart: "~~", MarkdownEnd: "~~", Paired: true},
		{Type: "highlight", StartTrigger: "start highlight", EndTrigger: "end highlight", MarkdownStart: "==", MarkdownEnd: "==", Paired: true},
		{Type: "code", StartTrigger: "start code", EndTrigger: "end code", MarkdownStart: "`", MarkdownEnd: "`", Paired: true},
		{Type: "new-line", StartTrigger: "new line", MarkdownStart: "\n"},
		{Type: "new-paragraph", StartTrigger: "new paragraph", MarkdownStart: "\n\n"},
		{Type: "bullet", StartTrigger: "bullet point", MarkdownStart: "\n- "},
	}
}
