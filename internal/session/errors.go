package session

import "fmt"

// ConnectionError indicates the transcription service could not be reached
// or the connection was lost.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates a message violated the session protocol, either a
// malformed frame from the service or an operation attempted in the wrong
// session state.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session protocol: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
