package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kevinraymond/obsidian-stt-llm/internal/protocol"
)

// recordingHandler collects session events for assertions
type recordingHandler struct {
	mu          sync.Mutex
	statuses    []protocol.SessionStatus
	transcripts []protocol.TranscriptUpdate
	disconnects []error
	statusCh    chan protocol.SessionStatus
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{statusCh: make(chan protocol.SessionStatus, 16)}
}

func (h *recordingHandler) OnStatus(status protocol.SessionStatus, errorMessage string) {
	h.mu.Lock()
	h.statuses = append(h.statuses, status)
	h.mu.Unlock()
	h.statusCh <- status
}

func (h *recordingHandler) OnTranscript(update protocol.TranscriptUpdate) {
	h.mu.Lock()
	h.transcripts = append(h.transcripts, update)
	h.mu.Unlock()
}

func (h *recordingHandler) OnDisconnected(err error) {
	h.mu.Lock()
	h.disconnects = append(h.disconnects, err)
	h.mu.Unlock()
}

func (h *recordingHandler) statusCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.statuses)
}

func (h *recordingHandler) transcriptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transcripts)
}

func (h *recordingHandler) disconnectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.disconnects)
}

func (h *recordingHandler) waitForStatus(t *testing.T, want protocol.SessionStatus) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-h.statusCh:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", want)
		}
	}
}

var testUpgrader = websocket.Upgrader{}

// fakeService runs a scripted transcription service for one connection
func fakeService(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		script(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func sendStatus(t *testing.T, conn *websocket.Conn, status protocol.SessionStatus) {
	t.Helper()
	data, err := json.Marshal(protocol.StatusMessage{Type: protocol.TypeStatus, Status: status})
	if err != nil {
		t.Errorf("marshal status: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Errorf("write status: %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(t *testing.T, endpoint string, handler Handler) *Client {
	t.Helper()
	client, err := NewClient(Config{Endpoint: endpoint, ConnectTimeout: 2 * time.Second}, handler, testLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestConnectReceivesReadyStatus(t *testing.T) {
	srv := fakeService(t, func(conn *websocket.Conn) {
		sendStatus(t, conn, protocol.StatusReady)
		// Hold the connection open until the client closes it
		_, _, _ = conn.ReadMessage()
	})
	defer srv.Close()

	handler := newRecordingHandler()
	client := newTestClient(t, wsURL(srv), handler)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Disconnect()

	handler.waitForStatus(t, protocol.StatusReady)

	if got := client.Status(); got != protocol.StatusReady {
		t.Errorf("expected status ready, got %q", got)
	}
	if client.SessionID() == "" {
		t.Error("expected a session ID after Connect")
	}
}

func TestConnectFailure(t *testing.T) {
	handler := newRecordingHandler()
	client := newTestClient(t, "ws://127.0.0.1:1/stt", handler)

	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("expected connect error for unreachable endpoint")
	}

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("expected ConnectionError, got %T", err)
	}
	if got := client.Status(); got != protocol.StatusError {
		t.Errorf("expected status error after failed dial, got %q", got)
	}
}

func TestRecordingExchange(t *testing.T) {
	srv := fakeService(t, func(conn *websocket.Conn) {
		sendStatus(t, conn, protocol.StatusReady)

		// Expect start
		var start protocol.StartMessage
		if err := conn.ReadJSON(&start); err != nil || start.Type != protocol.TypeStart {
			t.Errorf("expected start message, got %+v (err %v)", start, err)
			return
		}
		sendStatus(t, conn, protocol.StatusRecording)

		// Expect one audio chunk
		var audio protocol.AudioMessage
		if err := conn.ReadJSON(&audio); err != nil || audio.Type != protocol.TypeAudio {
			t.Errorf("expected audio message, got %+v (err %v)", audio, err)
			return
		}
		payload, err := protocol.DecodeAudioPayload(&audio)
		if err != nil || string(payload) != "chunk-1" {
			t.Errorf("unexpected audio payload %q (err %v)", payload, err)
		}

		// Expect stop, then finalize
		var stop protocol.StopMessage
		if err := conn.ReadJSON(&stop); err != nil || stop.Type != protocol.TypeStop {
			t.Errorf("expected stop message, got %+v (err %v)", stop, err)
			return
		}
		sendStatus(t, conn, protocol.StatusProcessing)

		transcript, _ := json.Marshal(protocol.TranscriptMessage{
			Type: protocol.TypeTranscript, Text: "hello world", IsFinal: true,
		})
		_ = conn.WriteMessage(websocket.TextMessage, transcript)
		sendStatus(t, conn, protocol.StatusReady)

		_, _, _ = conn.ReadMessage()
	})
	defer srv.Close()

	handler := newRecordingHandler()
	client := newTestClient(t, wsURL(srv), handler)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Disconnect()

	handler.waitForStatus(t, protocol.StatusReady)

	if err := client.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	handler.waitForStatus(t, protocol.StatusRecording)

	if err := client.SendAudioChunk([]byte("chunk-1")); err != nil {
		t.Fatalf("SendAudioChunk failed: %v", err)
	}
	if err := client.StopRecording(); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	handler.waitForStatus(t, protocol.StatusProcessing)
	handler.waitForStatus(t, protocol.StatusReady)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.transcripts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(handler.transcripts))
	}
	if handler.transcripts[0].Text != "hello world" || !handler.transcripts[0].IsFinal {
		t.Errorf("unexpected transcript %+v", handler.transcripts[0])
	}
}

func TestStartRecordingRequiresReady(t *testing.T) {
	handler := newRecordingHandler()
	client := newTestClient(t, "ws://example.invalid/stt", handler)

	err := client.StartRecording()
	if err == nil {
		t.Fatal("expected error starting recording while disconnected")
	}

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Errorf("expected ProtocolError, got %T", err)
	}
}

func TestSendAudioChunkOutsideRecordingIsDropped(t *testing.T) {
	handler := newRecordingHandler()
	client := newTestClient(t, "ws://example.invalid/stt", handler)

	if err := client.SendAudioChunk([]byte("late frame")); err != nil {
		t.Errorf("expected chunk outside recording to be dropped silently, got %v", err)
	}
}

func TestStaleGenerationEventsDropped(t *testing.T) {
	handler := newRecordingHandler()
	client := newTestClient(t, "ws://example.invalid/stt", handler)

	// Simulate frames arriving from a superseded connection
	client.mu.Lock()
	client.generation = 5
	client.mu.Unlock()

	staleGen := uint64(4)

	client.dispatch(staleGen, &protocol.Inbound{
		Status: &protocol.StatusMessage{Type: protocol.TypeStatus, Status: protocol.StatusReady},
	})
	client.dispatch(staleGen, &protocol.Inbound{
		Transcript: &protocol.TranscriptMessage{Type: protocol.TypeTranscript, Text: "stale", IsFinal: true},
	})
	client.handleReadError(staleGen, errors.New("connection reset"))

	if n := handler.statusCount(); n != 0 {
		t.Errorf("expected no status callbacks from stale generation, got %d", n)
	}
	if n := handler.transcriptCount(); n != 0 {
		t.Errorf("expected no transcript callbacks from stale generation, got %d", n)
	}
	if n := handler.disconnectCount(); n != 0 {
		t.Errorf("expected no disconnect callbacks from stale generation, got %d", n)
	}
	if got := client.Status(); got != protocol.StatusDisconnected {
		t.Errorf("stale events must not change status, got %q", got)
	}
}

func TestCurrentGenerationEventsDelivered(t *testing.T) {
	handler := newRecordingHandler()
	client := newTestClient(t, "ws://example.invalid/stt", handler)

	client.mu.Lock()
	client.generation = 5
	client.mu.Unlock()

	client.dispatch(5, &protocol.Inbound{
		Status: &protocol.StatusMessage{Type: protocol.TypeStatus, Status: protocol.StatusReady},
	})

	if n := handler.statusCount(); n != 1 {
		t.Fatalf("expected 1 status callback, got %d", n)
	}
	if got := client.Status(); got != protocol.StatusReady {
		t.Errorf("expected status ready, got %q", got)
	}
}

func TestDisconnectEmitsNoCallbacks(t *testing.T) {
	connClosed := make(chan struct{})
	srv := fakeService(t, func(conn *websocket.Conn) {
		sendStatus(t, conn, protocol.StatusReady)
		_, _, _ = conn.ReadMessage()
		close(connClosed)
	})
	defer srv.Close()

	handler := newRecordingHandler()
	client := newTestClient(t, wsURL(srv), handler)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	handler.waitForStatus(t, protocol.StatusReady)

	client.Disconnect()

	select {
	case <-connClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the close")
	}

	// Give the superseded read loop time to observe the closed socket
	time.Sleep(50 * time.Millisecond)

	if n := handler.disconnectCount(); n != 0 {
		t.Errorf("explicit disconnect must not emit OnDisconnected, got %d calls", n)
	}
	if got := client.Status(); got != protocol.StatusDisconnected {
		t.Errorf("expected status disconnected, got %q", got)
	}

	// Disconnect is idempotent
	client.Disconnect()
}

func TestUnexpectedDisconnectReported(t *testing.T) {
	srv := fakeService(t, func(conn *websocket.Conn) {
		sendStatus(t, conn, protocol.StatusReady)
		// Drop the connection without a close handshake
	})
	defer srv.Close()

	handler := newRecordingHandler()
	client := newTestClient(t, wsURL(srv), handler)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	handler.waitForStatus(t, protocol.StatusReady)

	deadline := time.After(2 * time.Second)
	for handler.disconnectCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for OnDisconnected")
		case <-time.After(10 * time.Millisecond):
		}
	}

	handler.mu.Lock()
	err := handler.disconnects[0]
	handler.mu.Unlock()

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("expected ConnectionError, got %T", err)
	}
	if got := client.Status(); got != protocol.StatusDisconnected {
		t.Errorf("expected status disconnected, got %q", got)
	}
}
