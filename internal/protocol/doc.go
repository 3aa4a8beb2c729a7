// Package protocol defines the JSON envelope exchanged with the
// speech-to-text service over its persistent connection.
package protocol
