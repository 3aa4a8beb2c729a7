package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kevinraymond/obsidian-stt-llm/internal/audio"
	"github.com/kevinraymond/obsidian-stt-llm/internal/commands"
	"github.com/kevinraymond/obsidian-stt-llm/internal/editor"
	"github.com/kevinraymond/obsidian-stt-llm/internal/metrics"
	"github.com/kevinraymond/obsidian-stt-llm/internal/protocol"
)

// State represents the orchestrator lifecycle
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
)

// SessionClient is the session surface the orchestrator drives
type SessionClient interface {
	Connect(ctx context.Context) error
	StartRecording() error
	SendAudioChunk(payload []byte) error
	StopRecording() error
	Disconnect()
}

// SilenceMonitor arms and disarms silence-based auto-stop
type SilenceMonitor interface {
	Arm()
	Disarm()
}

// Refiner optionally rewrites a transcript before delivery
type Refiner interface {
	Refine(ctx context.Context, transcript string) (string, error)
}

// Options bundles the orchestrator dependencies
type Options struct {
	Session  SessionClient
	Device   audio.Device
	Buffer   *audio.RecordingBuffer
	Monitor  SilenceMonitor
	Engine   *commands.Engine
	Refiner  Refiner // nil disables refinement
	Surface  editor.Surface
	Notifier editor.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Orchestrator coordinates one dictation cycle at a time. It owns the state
// machine; the session handler callbacks and the silence monitor feed events
// into it from their own goroutines.
type Orchestrator struct {
	session  SessionClient
	device   audio.Device
	buffer   *audio.RecordingBuffer
	monitor  SilenceMonitor
	engine   *commands.Engine
	refiner  Refiner
	surface  editor.Surface
	notifier editor.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu             sync.Mutex
	state          State
	runCtx         context.Context
	cycleID        string
	recordingStart time.Time
	lastTranscript string
	sawFinal       bool
	hasTranscript  bool
}

// New creates an orchestrator in the idle state
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Session == nil:
		return nil, fmt.Errorf("session client is required")
	case opts.Device == nil:
		return nil, fmt.Errorf("audio device is required")
	case opts.Buffer == nil:
		return nil, fmt.Errorf("recording buffer is required")
	case opts.Monitor == nil:
		return nil, fmt.Errorf("silence monitor is required")
	case opts.Engine == nil:
		return nil, fmt.Errorf("command engine is required")
	case opts.Surface == nil:
		return nil, fmt.Errorf("editor surface is required")
	case opts.Notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	case opts.Metrics == nil:
		return nil, fmt.Errorf("metrics are required")
	}

	return &Orchestrator{
		session:  opts.Session,
		device:   opts.Device,
		buffer:   opts.Buffer,
		monitor:  opts.Monitor,
		engine:   opts.Engine,
		refiner:  opts.Refiner,
		surface:  opts.Surface,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		state:    StateIdle,
		runCtx:   context.Background(),
	}, nil
}

// State returns the current orchestrator state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins a new dictation cycle. It fails if a cycle is already active.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateIdle {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("cannot start dictation: a cycle is already active (state %s)", state)
	}
	o.state = StateConnecting
	o.runCtx = ctx
	o.cycleID = uuid.NewString()
	o.lastTranscript = ""
	o.sawFinal = false
	o.hasTranscript = false
	cycleID := o.cycleID
	o.mu.Unlock()

	o.buffer.Reset()
	o.logger.Info("Starting dictation cycle", slog.String("cycle_id", cycleID))

	if err := o.session.Connect(ctx); err != nil {
		o.metrics.RecordSessionConnectFailure()
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
		return fmt.Errorf("failed to connect for dictation: %w", err)
	}

	o.metrics.RecordSessionConnect()
	return nil
}

// Stop ends the active recording and submits it for transcription. Stopping
// when no recording is in progress does nothing.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.state != StateRecording {
		state := o.state
		o.mu.Unlock()
		o.logger.Debug("Stop ignored, no recording in progress", slog.String("state", string(state)))
		return nil
	}
	o.mu.Unlock()

	o.beginProcessing("manual")
	return nil
}

// AutoStop is invoked by the silence monitor when silence persists past the
// configured duration.
func (o *Orchestrator) AutoStop() {
	o.logger.Info("Silence detected, stopping recording")
	o.metrics.RecordAutoStop()
	o.beginProcessing("silence")
}

// Close aborts any active cycle and releases resources
func (o *Orchestrator) Close() {
	o.fail(fmt.Errorf("shutting down"))
}

// OnStatus handles a session status change
func (o *Orchestrator) OnStatus(status protocol.SessionStatus, errorMessage string) {
	switch status {
	case protocol.StatusReady:
		o.handleReady()
	case protocol.StatusRecording:
		o.beginCapture()
	case protocol.StatusProcessing:
		// Confirmation of our stop request
	case protocol.StatusError:
		o.fail(fmt.Errorf("transcription service reported an error: %s", errorMessage))
	}
}

// OnTranscript handles a transcript update. A final update always wins; a
// partial is kept only until a final arrives, as a fallback should the
// service drop before finalizing.
func (o *Orchestrator) OnTranscript(update protocol.TranscriptUpdate) {
	o.metrics.RecordTranscriptUpdate()

	o.mu.Lock()
	defer o.mu.Unlock()

	if update.IsFinal {
		o.lastTranscript = update.Text
		o.sawFinal = true
		o.hasTranscript = true
		return
	}
	if !o.sawFinal {
		o.lastTranscript = update.Text
		o.hasTranscript = true
	}
}

// OnDisconnected handles an unexpected connection loss. If any transcript
// made it across before the drop it is still delivered.
func (o *Orchestrator) OnDisconnected(err error) {
	o.metrics.RecordSessionDisconnect()

	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return
	}
	salvageable := o.state == StateProcessing && o.hasTranscript
	o.mu.Unlock()

	if salvageable {
		o.logger.Warn("Connection lost during processing, delivering last transcript",
			slog.String("error", err.Error()))
		o.finalize()
		return
	}

	o.fail(fmt.Errorf("connection lost: %w", err))
}

// handleReady reacts to the service becoming ready. During connect it kicks
// off the recording request; after a stop it means processing is complete.
func (o *Orchestrator) handleReady() {
	o.mu.Lock()
	state := o.state
	o.mu.Unlock()

	switch state {
	case StateConnecting:
		if err := o.session.StartRecording(); err != nil {
			o.fail(fmt.Errorf("failed to start recording: %w", err))
		}
	case StateProcessing:
		o.finalize()
	}
}

// beginCapture starts microphone capture once the service confirms the
// recording session.
func (o *Orchestrator) beginCapture() {
	o.mu.Lock()
	if o.state != StateConnecting {
		o.mu.Unlock()
		return
	}
	o.state = StateRecording
	o.recordingStart = time.Now()
	ctx := o.runCtx
	cycleID := o.cycleID
	o.mu.Unlock()

	if err := o.device.Start(ctx, o.buffer); err != nil {
		o.fail(fmt.Errorf("failed to start audio capture: %w", err))
		return
	}

	o.monitor.Arm()
	o.metrics.RecordRecordingStarted()
	o.logger.Info("Recording started", slog.String("cycle_id", cycleID))
}

// beginProcessing stops capture and submits the buffered audio. It is safe
// to call from both the manual stop path and the silence monitor.
func (o *Orchestrator) beginProcessing(reason string) {
	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return
	}
	o.state = StateProcessing
	cycleID := o.cycleID
	o.mu.Unlock()

	o.monitor.Disarm()
	if err := o.device.Stop(); err != nil {
		o.logger.Warn("Audio capture stop failed", slog.String("error", err.Error()))
	}

	stats := o.buffer.Stats()
	o.logger.Info("Recording stopped",
		slog.String("cycle_id", cycleID),
		slog.String("reason", reason),
		slog.Duration("audio", stats.Duration),
	)

	// An instant start/stop captures nothing; treat it like a silent
	// recording instead of an error.
	if stats.Samples == 0 {
		o.logger.Info("No audio captured", slog.String("cycle_id", cycleID))
		o.finalize()
		return
	}

	payload, err := o.buffer.EncodeWAV()
	if err != nil {
		o.fail(fmt.Errorf("failed to encode recording: %w", err))
		return
	}
	o.metrics.RecordAudioPayload(stats.Duration.Seconds(), len(payload))

	if err := o.session.SendAudioChunk(payload); err != nil {
		o.fail(fmt.Errorf("failed to send recording: %w", err))
		return
	}
	if err := o.session.StopRecording(); err != nil {
		o.fail(fmt.Errorf("failed to finalize recording: %w", err))
		return
	}
}

// finalize turns the collected transcript into delivered text and returns
// the orchestrator to idle.
func (o *Orchestrator) finalize() {
	o.mu.Lock()
	if o.state != StateProcessing {
		o.mu.Unlock()
		return
	}
	o.state = StateIdle
	transcript := o.lastTranscript
	cycleID := o.cycleID
	duration := time.Since(o.recordingStart)
	ctx := o.runCtx
	o.mu.Unlock()

	o.session.Disconnect()

	if strings.TrimSpace(transcript) == "" {
		o.logger.Info("Recording produced no speech", slog.String("cycle_id", cycleID))
		if err := o.notifier.Notify("Dictation", "No speech detected"); err != nil {
			o.logger.Warn("Notification failed", slog.String("error", err.Error()))
		}
		o.metrics.RecordRecordingCompleted(duration.Seconds(), 0)
		return
	}

	result := o.engine.Process(transcript)
	o.metrics.RecordCommandResult(result.Matches, len(result.Warnings))
	for _, w := range result.Warnings {
		o.logger.Warn("Voice command warning",
			slog.String("cycle_id", cycleID),
			slog.String("warning", w.Message),
			slog.Int("index", w.Index),
		)
	}

	text := result.Text
	if o.refiner != nil {
		o.metrics.RecordRefineRequest()
		refined, err := o.refiner.Refine(ctx, text)
		if err != nil {
			o.metrics.RecordRefineFailure()
			o.logger.Warn("Transcript refinement failed, using unrefined text",
				slog.String("error", err.Error()))
		} else {
			text = refined
		}
	}

	if err := o.surface.InsertAtCursor(text); err != nil {
		o.logger.Error("Failed to deliver transcript", slog.String("error", err.Error()))
		if nerr := o.notifier.Notify("Dictation failed", err.Error()); nerr != nil {
			o.logger.Warn("Notification failed", slog.String("error", nerr.Error()))
		}
		o.metrics.RecordRecordingFailed(duration.Seconds())
		return
	}

	if err := o.notifier.Notify("Dictation", "Transcript ready to paste"); err != nil {
		o.logger.Warn("Notification failed", slog.String("error", err.Error()))
	}

	o.metrics.RecordRecordingCompleted(duration.Seconds(), len(text))
	o.logger.Info("Dictation cycle complete",
		slog.String("cycle_id", cycleID),
		slog.Int("chars", len(text)),
		slog.Int("command_matches", result.Matches),
	)
}

// fail aborts the current cycle, releasing capture and the session
func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return
	}
	state := o.state
	o.state = StateIdle
	cycleID := o.cycleID
	duration := time.Since(o.recordingStart)
	o.mu.Unlock()

	o.monitor.Disarm()
	if derr := o.device.Stop(); derr != nil {
		o.logger.Warn("Audio capture stop failed", slog.String("error", derr.Error()))
	}
	o.session.Disconnect()

	o.logger.Error("Dictation cycle failed",
		slog.String("cycle_id", cycleID),
		slog.String("state", string(state)),
		slog.String("error", err.Error()),
	)
	if nerr := o.notifier.Notify("Dictation failed", err.Error()); nerr != nil {
		o.logger.Warn("Notification failed", slog.String("error", nerr.Error()))
	}

	if state == StateRecording || state == StateProcessing {
		o.metrics.RecordRecordingFailed(duration.Seconds())
	}
}
