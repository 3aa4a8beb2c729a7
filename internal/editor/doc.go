// Package editor delivers finished transcripts to the user, either through
// the system clipboard or standard output, with optional desktop
// notifications.
package editor
