package editor

import "testing"

func TestBufferSurfaceCollectsInserts(t *testing.T) {
	surface := NewBufferSurface()

	if err := surface.InsertAtCursor("first"); err != nil {
		t.Fatalf("InsertAtCursor failed: %v", err)
	}
	if err := surface.InsertAtCursor("second"); err != nil {
		t.Fatalf("InsertAtCursor failed: %v", err)
	}

	inserts := surface.Inserts()
	if len(inserts) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(inserts))
	}
	if inserts[0] != "first" || inserts[1] != "second" {
		t.Errorf("unexpected inserts %v", inserts)
	}
}

func TestNewSurface(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"clipboard", false},
		{"stdout", false},
		{"Clipboard", false},
		{"tmux", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			surface, err := NewSurface(tt.kind)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for surface %q", tt.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSurface(%q) failed: %v", tt.kind, err)
			}
			if surface == nil {
				t.Error("expected a surface")
			}
		})
	}
}

func TestNopNotifier(t *testing.T) {
	if err := NewNopNotifier().Notify("title", "message"); err != nil {
		t.Errorf("NopNotifier must never fail, got %v", err)
	}
}
