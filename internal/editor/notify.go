package editor

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Notifier surfaces short status messages to the user
type Notifier interface {
	Notify(title, message string) error
}

// DesktopNotifier sends desktop notifications
type DesktopNotifier struct{}

// NewDesktopNotifier creates a desktop notifier
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

func (n *DesktopNotifier) Notify(title, message string) error {
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// NopNotifier discards all notifications
type NopNotifier struct{}

// NewNopNotifier creates a notifier that does nothing
func NewNopNotifier() *NopNotifier {
	return &NopNotifier{}
}

func (n *NopNotifier) Notify(title, message string) error {
	return nil
}
