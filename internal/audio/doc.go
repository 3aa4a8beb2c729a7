// Package audio provides microphone capture, the per-recording sample
// buffer with live level metering, and WAV encoding of the captured audio.
package audio
