package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kevinraymond/obsidian-stt-llm/internal/protocol"
)

// DefaultConnectTimeout bounds the WebSocket handshake when the
// configuration does not specify one.
const DefaultConnectTimeout = 10 * time.Second

// Config holds the session client settings
type Config struct {
	Endpoint       string
	Language       string
	ConnectTimeout time.Duration
}

// Handler receives session events. Callbacks are invoked sequentially from
// the client's read goroutine and never while the client holds its own lock,
// so implementations may call back into the client.
type Handler interface {
	OnStatus(status protocol.SessionStatus, errorMessage string)
	OnTranscript(update protocol.TranscriptUpdate)
	OnDisconnected(err error)
}

// Client is a WebSocket client for the transcription service. Each call to
// Connect starts a new connection generation; events from superseded
// connections are silently dropped, so a handler only ever observes the
// current connection.
type Client struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	generation uint64
	status     protocol.SessionStatus
	sessionID  string
}

// NewClient creates a session client for the given endpoint
func NewClient(cfg Config, handler Handler, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	return &Client{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		status:  protocol.StatusDisconnected,
	}, nil
}

// Status returns the current session status
func (c *Client) Status() protocol.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SessionID returns the identifier of the current connection, or an empty
// string before the first Connect.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect dials the transcription service. Any previous connection is torn
// down first and its in-flight events are invalidated.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.status = protocol.StatusConnecting
	c.sessionID = uuid.NewString()
	sessionID := c.sessionID
	endpoint := c.cfg.Endpoint
	timeout := c.cfg.ConnectTimeout
	c.mu.Unlock()

	c.logger.Info("Connecting to transcription service",
		slog.String("endpoint", endpoint),
		slog.String("session_id", sessionID),
	)

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		c.mu.Lock()
		if gen == c.generation {
			c.status = protocol.StatusError
		}
		c.mu.Unlock()
		return &ConnectionError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	if gen != c.generation {
		// A newer Connect or Disconnect superseded this attempt
		c.mu.Unlock()
		_ = conn.Close()
		return &ConnectionError{Op: "dial", Err: fmt.Errorf("superseded by a newer connection")}
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn, gen)

	return nil
}

// StartRecording asks the service to begin a recognition session. The
// session must be ready.
func (c *Client) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != protocol.StatusReady {
		return &ProtocolError{Reason: fmt.Sprintf("cannot start recording in status %q", c.status)}
	}

	data, err := protocol.EncodeStart(c.cfg.Language)
	if err != nil {
		return &ProtocolError{Reason: "encoding start message", Err: err}
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// SendAudioChunk streams one audio payload to the service. Chunks sent
// outside an active recording are dropped without error; the capture side
// may race the status transition by a frame or two.
func (c *Client) SendAudioChunk(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != protocol.StatusRecording {
		return nil
	}

	data, err := protocol.EncodeAudio(payload)
	if err != nil {
		return &ProtocolError{Reason: "encoding audio message", Err: err}
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// StopRecording asks the service to finalize the current recording
func (c *Client) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != protocol.StatusRecording {
		return &ProtocolError{Reason: fmt.Sprintf("cannot stop recording in status %q", c.status)}
	}

	data, err := protocol.EncodeStop()
	if err != nil {
		return &ProtocolError{Reason: "encoding stop message", Err: err}
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// Disconnect closes the connection and invalidates all in-flight events for
// it. An explicit disconnect emits no handler callbacks.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.generation++
	conn := c.conn
	c.conn = nil
	c.status = protocol.StatusDisconnected
	sessionID := c.sessionID
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
		c.logger.Info("Disconnected from transcription service",
			slog.String("session_id", sessionID))
	}
}

// readLoop consumes service frames until the connection closes. It belongs
// to one generation; once superseded it delivers nothing.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}

		inbound, err := protocol.DecodeInbound(data)
		if err != nil {
			c.logger.Warn("Dropping malformed service message",
				slog.String("error", err.Error()))
			continue
		}

		c.dispatch(gen, inbound)
	}
}

// handleReadError reports an unexpected connection loss. Errors from a
// superseded generation are expected teardown noise and ignored.
func (c *Client) handleReadError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.status = protocol.StatusDisconnected
	c.mu.Unlock()

	c.logger.Warn("Connection to transcription service lost",
		slog.String("error", err.Error()))
	c.handler.OnDisconnected(&ConnectionError{Op: "read", Err: err})
}

// dispatch routes one decoded message to the handler if its generation is
// still current. State updates happen under the lock; handler callbacks are
// invoked after releasing it.
func (c *Client) dispatch(gen uint64, inbound *protocol.Inbound) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	switch {
	case inbound.Status != nil:
		c.status = inbound.Status.Status
		c.mu.Unlock()
		c.handler.OnStatus(inbound.Status.Status, inbound.Status.Error)

	case inbound.Transcript != nil:
		c.mu.Unlock()
		c.handler.OnTranscript(protocol.TranscriptUpdate{
			Text:    inbound.Transcript.Text,
			IsFinal: inbound.Transcript.IsFinal,
		})

	default:
		c.mu.Unlock()
		c.logger.Debug("Ignoring unknown message type",
			slog.String("type", inbound.IgnoredType))
	}
}
