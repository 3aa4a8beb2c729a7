// Package commands detects spoken voice-command triggers in a transcript
// and rewrites them into markup.
package commands
