package editor

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
)

// Surface is a destination for finished transcripts
type Surface interface {
	// InsertAtCursor delivers text to the active editing context
	InsertAtCursor(text string) error
}

// ClipboardSurface places transcripts on the system clipboard so the user
// can paste them at the cursor.
type ClipboardSurface struct{}

// NewClipboardSurface creates a clipboard-backed surface
func NewClipboardSurface() *ClipboardSurface {
	return &ClipboardSurface{}
}

func (s *ClipboardSurface) InsertAtCursor(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// StdoutSurface writes transcripts to standard output, useful for piping
// into other tools.
type StdoutSurface struct{}

// NewStdoutSurface creates a stdout-backed surface
func NewStdoutSurface() *StdoutSurface {
	return &StdoutSurface{}
}

func (s *StdoutSurface) InsertAtCursor(text string) error {
	if _, err := fmt.Fprintln(os.Stdout, text); err != nil {
		return fmt.Errorf("failed to write stdout: %w", err)
	}
	return nil
}

// BufferSurface collects inserted text in memory
type BufferSurface struct {
	mu      sync.Mutex
	inserts []string
}

// NewBufferSurface creates an in-memory surface
func NewBufferSurface() *BufferSurface {
	return &BufferSurface{}
}

func (s *BufferSurface) InsertAtCursor(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, text)
	return nil
}

// Inserts returns all text delivered so far
func (s *BufferSurface) Inserts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.inserts))
	copy(out, s.inserts)
	return out
}

// NewSurface creates the surface named by the configuration
func NewSurface(kind string) (Surface, error) {
	switch strings.ToLower(kind) {
	case "clipboard":
		return NewClipboardSurface(), nil
	case "stdout":
		return NewStdoutSurface(), nil
	default:
		return nil, fmt.Errorf("unknown editor surface: %q", kind)
	}
}
