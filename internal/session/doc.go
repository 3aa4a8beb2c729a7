// Package session manages the WebSocket connection to the transcription
// service, including the recording message exchange and stale-callback
// suppression across reconnects.
package session
