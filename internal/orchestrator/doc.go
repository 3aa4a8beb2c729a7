// Package orchestrator drives one dictation cycle at a time: it connects
// the session, runs microphone capture with the silence monitor armed, and
// turns the final transcript into delivered text.
package orchestrator
