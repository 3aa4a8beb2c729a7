// Package vad monitors the live audio level and signals when the speaker
// has been silent long enough to auto-stop a recording.
package vad
