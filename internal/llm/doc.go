// Package llm provides an optional HTTP client that sends finished
// transcripts to a chat-completion endpoint for cleanup before delivery.
package llm
