package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// DeviceError indicates the capture device is unavailable or failed
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// FrameSink receives captured PCM frames
type FrameSink interface {
	WriteFrame(samples []int16)
}

// Device captures PCM audio frames from an input source and delivers them to
// a sink until stopped. Implementations own exactly one underlying handle;
// Stop releases it and is safe to call repeatedly.
type Device interface {
	Start(ctx context.Context, sink FrameSink) error
	Stop() error
}

// PortAudioDevice captures from the default system microphone
type PortAudioDevice struct {
	sampleRate int
	frameSize  int
	logger     *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPortAudioDevice creates a microphone capture device
func NewPortAudioDevice(sampleRate, frameSize int, logger *slog.Logger) (*PortAudioDevice, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}

	return &PortAudioDevice{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		logger:     logger,
	}, nil
}

// Start opens the default input stream and begins delivering frames to the
// sink from a capture goroutine.
func (d *PortAudioDevice) Start(ctx context.Context, sink FrameSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return &DeviceError{Op: "start", Err: fmt.Errorf("capture already running")}
	}

	if err := portaudio.Initialize(); err != nil {
		return &DeviceError{Op: "init", Err: err}
	}

	in := make([]int16, d.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(d.sampleRate), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		return &DeviceError{Op: "open", Err: err}
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return &DeviceError{Op: "start", Err: err}
	}

	captureCtx, cancel := context.WithCancel(ctx)
	d.stream = stream
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.captureLoop(captureCtx, stream, in, sink, d.done)

	d.logger.Info("Audio capture started",
		slog.Int("sample_rate", d.sampleRate),
		slog.Int("frame_size", d.frameSize),
	)

	return nil
}

// captureLoop reads frames until cancelled
func (d *PortAudioDevice) captureLoop(ctx context.Context, stream *portaudio.Stream, in []int16, sink FrameSink, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("Audio frame read failed", slog.String("error", err.Error()))
			continue
		}

		frame := make([]int16, len(in))
		copy(frame, in)
		sink.WriteFrame(frame)
	}
}

// Stop halts capture and releases the device. Idempotent.
func (d *PortAudioDevice) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel := d.cancel
	done := d.done
	stream := d.stream
	d.cancel = nil
	d.done = nil
	d.stream = nil
	d.mu.Unlock()

	cancel()
	<-done

	var firstErr error
	if err := stream.Stop(); err != nil {
		firstErr = &DeviceError{Op: "stop", Err: err}
	}
	if err := stream.Close(); err != nil && firstErr == nil {
		firstErr = &DeviceError{Op: "close", Err: err}
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = &DeviceError{Op: "terminate", Err: err}
	}

	d.logger.Info("Audio capture stopped")
	return firstErr
}
