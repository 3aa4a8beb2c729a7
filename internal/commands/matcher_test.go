package commands

import "testing"

func TestNormalizeTrigger(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "Start Bold", expected: "start bold"},
		{name: "strips punctuation", input: "start bold,", expected: "start bold"},
		{name: "collapses whitespace", input: "  start \t bold  ", expected: "start bold"},
		{name: "mixed", input: "New   Paragraph!", expected: "new paragraph"},
		{name: "empty", input: "   ", expected: ""},
		{name: "punctuation only", input: "?!.", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTrigger(tt.input); got != tt.expected {
				t.Errorf("NormalizeTrigger(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindOccurrencesFlexibleMatching(t *testing.T) {
	bold := Command{
		Type: "bold", StartTrigger: "start bold", EndTrigger: "end bold",
		MarkdownStart: "**", MarkdownEnd: "**", Paired: true,
	}
	patterns := compilePatterns([]Command{bold})

	tests := []struct {
		name       string
		transcript string
		count      int
	}{
		{name: "exact phrase", transcript: "start bold hello end bold", count: 2},
		{name: "mixed case", transcript: "Start Bold hello END BOLD", count: 2},
		{name: "trailing punctuation", transcript: "start bold, hello end bold.", count: 2},
		{name: "extra whitespace between words", transcript: "start   bold hello end \t bold", count: 2},
		{name: "no match", transcript: "nothing to see here", count: 0},
		{name: "partial trigger", transcript: "start something bold", count: 0},
		{name: "embedded in larger words", transcript: "restart bolder weekend bold", count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occs := findOccurrences(tt.transcript, patterns)
			if len(occs) != tt.count {
				t.Errorf("Expected %d occurrences, got %d", tt.count, len(occs))
			}
		})
	}
}

func TestFindOccurrencesWhitespaceConsumption(t *testing.T) {
	bold := Command{
		Type: "bold", StartTrigger: "start bold", EndTrigger: "end bold",
		MarkdownStart: "**", MarkdownEnd: "**", Paired: true,
	}
	patterns := compilePatterns([]Command{bold})

	occs := findOccurrences("start bold hello end bold", patterns)
	if len(occs) != 2 {
		t.Fatalf("Expected 2 occurrences, got %d", len(occs))
	}

	// Start trigger consumes trailing whitespace so markup lands adjacent
	if occs[0].MatchedText != "start bold " {
		t.Errorf("Expected start match to consume trailing space, got %q", occs[0].MatchedText)
	}

	// End trigger consumes leading whitespace
	if occs[1].MatchedText != " end bold" {
		t.Errorf("Expected end match to consume leading space, got %q", occs[1].MatchedText)
	}
}

func TestFindOccurrencesLongestTriggerWins(t *testing.T) {
	cmds := []Command{
		{Type: "bold", StartTrigger: "start bold", EndTrigger: "end bold",
			MarkdownStart: "**", MarkdownEnd: "**", Paired: true},
		{Type: "bold-block", StartTrigger: "start bold text", MarkdownStart: "<b>"},
	}
	patterns := compilePatterns(cmds)

	// The longer trigger contains the shorter as a substring; the transcript
	// must match only the longer trigger, exactly once.
	occs := findOccurrences("please start bold text now", patterns)
	if len(occs) != 1 {
		t.Fatalf("Expected exactly 1 occurrence, got %d", len(occs))
	}
	if occs[0].Command.Type != "bold-block" {
		t.Errorf("Expected longer trigger to win, got command %q", occs[0].Command.Type)
	}
}

func TestFindOccurrencesOrderedByIndex(t *testing.T) {
	patterns := compilePatterns(DefaultCommands())

	occs := findOccurrences("start italic a end italic start bold b end bold", patterns)
	if len(occs) != 4 {
		t.Fatalf("Expected 4 occurrences, got %d", len(occs))
	}

	for i := 1; i < len(occs); i++ {
		if occs[i].Index <= occs[i-1].Index {
			t.Errorf("Occurrences not ordered by index: %d followed by %d",
				occs[i-1].Index, occs[i].Index)
		}
	}
}

func TestCompilePatternsSkipsInvalidCommands(t *testing.T) {
	cmds := []Command{
		{Type: "", StartTrigger: "broken", MarkdownStart: "-"},
		{Type: "ok", StartTrigger: "new line", MarkdownStart: "\n"},
	}

	patterns := compilePatterns(cmds)
	if len(patterns) != 1 {
		t.Fatalf("Expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].command.Type != "ok" {
		t.Errorf("Expected valid command to survive, got %q", patterns[0].command.Type)
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name      string
		command   Command
		expectErr bool
	}{
		{
			name:    "valid single",
			command: Command{Type: "new-line", StartTrigger: "new line", MarkdownStart: "\n"},
		},
		{
			name: "valid paired",
			command: Command{Type: "bold", StartTrigger: "start bold", EndTrigger: "end bold",
				MarkdownStart: "**", MarkdownEnd: "**", Paired: true},
			expectErr: false,
		},
		{
			name:      "empty type",
			command:   Command{StartTrigger: "x", MarkdownStart: "-"},
			expectErr: true,
		},
		{
			name:      "empty start trigger",
			command:   Command{Type: "x", StartTrigger: "  ", MarkdownStart: "-"},
			expectErr: true,
		},
		{
			name:      "paired without end trigger",
			command:   Command{Type: "x", StartTrigger: "start x", MarkdownStart: "-", MarkdownEnd: "-", Paired: true},
			expectErr: true,
		},
		{
			name:      "paired without end markup",
			command:   Command{Type: "x", StartTrigger: "start x", EndTrigger: "end x", MarkdownStart: "-", Paired: true},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.command.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}
