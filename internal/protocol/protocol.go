package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Message type tags used in the JSON envelope
const (
	// Client to service
	TypeStart = "start"
	TypeAudio = "audio"
	TypeStop  = "stop"

	// Service to client
	TypeStatus     = "status"
	TypeTranscript = "transcript"
)

// SessionStatus represents the lifecycle state reported by the service
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusReady        SessionStatus = "ready"
	StatusRecording    SessionStatus = "recording"
	StatusProcessing   SessionStatus = "processing"
	StatusError        SessionStatus = "error"
)

// IsValid checks whether the status is one of the known session states
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusReady,
		StatusRecording, StatusProcessing, StatusError:
		return true
	}
	return false
}

// StartMessage requests the service begin a recognition session
type StartMessage struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
}

// AudioMessage carries a base64-encoded audio payload
type AudioMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// StopMessage requests the service finalize the current session
type StopMessage struct {
	Type string `json:"type"`
}

// StatusMessage reports a session state change from the service
type StatusMessage struct {
	Type   string        `json:"type"`
	Status SessionStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// TranscriptMessage carries one transcript update. A recording produces a
// running sequence of partial updates terminated by exactly one final update.
type TranscriptMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// TranscriptUpdate is the transcript payload handed to consumers
type TranscriptUpdate struct {
	Text    string
	IsFinal bool
}

// Inbound represents one decoded service-to-client message. Exactly one of
// Status or Transcript is set; if neither is, the message carried an unknown
// type tag and IgnoredType names it. Unknown types are never a decode failure.
type Inbound struct {
	Status      *StatusMessage
	Transcript  *TranscriptMessage
	IgnoredType string
}

// envelope is used to peek at the type tag before full decoding
type envelope struct {
	Type string `json:"type"`
}

// DecodeInbound parses one service-to-client JSON frame
func DecodeInbound(data []byte) (*Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse message envelope: %w", err)
	}

	switch env.Type {
	case TypeStatus:
		var msg StatusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse status message: %w", err)
		}
		if !msg.Status.IsValid() {
			return nil, fmt.Errorf("unknown session status: %q", msg.Status)
		}
		return &Inbound{Status: &msg}, nil

	case TypeTranscript:
		var msg TranscriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse transcript message: %w", err)
		}
		return &Inbound{Transcript: &msg}, nil

	default:
		// Unknown types are ignored, never fatal
		return &Inbound{IgnoredType: env.Type}, nil
	}
}

// EncodeStart encodes a start control message with an optional language hint
func EncodeStart(language string) ([]byte, error) {
	data, err := json.Marshal(StartMessage{Type: TypeStart, Language: language})
	if err != nil {
		return nil, fmt.Errorf("failed to encode start message: %w", err)
	}
	return data, nil
}

// EncodeAudio encodes an audio message, base64-encoding the payload bytes
func EncodeAudio(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio payload")
	}

	msg := AudioMessage{
		Type: TypeAudio,
		Data: base64.StdEncoding.EncodeToString(payload),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audio message: %w", err)
	}
	return data, nil
}

// EncodeStop encodes a stop control message
func EncodeStop() ([]byte, error) {
	data, err := json.Marshal(StopMessage{Type: TypeStop})
	if err != nil {
		return nil, fmt.Errorf("failed to encode stop message: %w", err)
	}
	return data, nil
}

// DecodeAudioPayload decodes the base64 payload of an audio message
func DecodeAudioPayload(msg *AudioMessage) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	return payload, nil
}

// String returns a human-readable representation of the inbound message
func (i *Inbound) String() string {
	switch {
	case i.Status != nil:
		return fmt.Sprintf("Status{Status:%s, Error:%q}", i.Status.Status, i.Status.Error)
	case i.Transcript != nil:
		return fmt.Sprintf("Transcript{Len:%d, IsFinal:%t}", len(i.Transcript.Text), i.Transcript.IsFinal)
	default:
		return fmt.Sprintf("Ignored{Type:%q}", i.IgnoredType)
	}
}
