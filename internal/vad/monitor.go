package vad

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LevelSource yields the current audio signal level on a 0-100 scale.
type LevelSource interface {
	Level() float64
}

// Config contains silence detection parameters
type Config struct {
	SilenceThreshold float64       // 0-100 level scale
	SilenceDuration  time.Duration // sustained silence before auto-stop
	SampleInterval   time.Duration // sampling cadence
}

// Monitor samples an audio level source on a fixed cadence while armed and
// decides when sustained silence should terminate the recording. State is
// reset on every arm; nothing carries over between recordings.
type Monitor struct {
	cfg    Config
	source LevelSource
	logger *slog.Logger

	// Auto-stop decision callback; invoked at most once per armed period
	onAutoStop func()

	// Advisory countdown; reported on every sample, no effect on the stop
	// decision itself
	onCountdown func(remaining time.Duration, level float64)

	mu           sync.Mutex
	armed        bool
	cancel       context.CancelFunc
	done         chan struct{}
	silenceStart time.Time // zero while voice is present
}

// NewMonitor creates a silence monitor over the given level source
func NewMonitor(cfg Config, source LevelSource, logger *slog.Logger) (*Monitor, error) {
	if source == nil {
		return nil, fmt.Errorf("level source cannot be nil")
	}

	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > 100 {
		return nil, fmt.Errorf("silence threshold must be between 0 and 100, got %f", cfg.SilenceThreshold)
	}

	if cfg.SilenceDuration <= 0 {
		return nil, fmt.Errorf("silence duration must be positive, got %v", cfg.SilenceDuration)
	}

	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 100 * time.Millisecond
	}

	return &Monitor{
		cfg:    cfg,
		source: source,
		logger: logger,
	}, nil
}

// SetAutoStop registers the auto-stop decision callback
func (m *Monitor) SetAutoStop(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAutoStop = fn
}

// SetCountdown registers the advisory countdown callback
func (m *Monitor) SetCountdown(fn func(remaining time.Duration, level float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCountdown = fn
}

// Arm starts the sampling loop. Arming an already armed monitor is a no-op.
func (m *Monitor) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.armed {
		m.logger.Warn("Monitor already armed, ignoring")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.armed = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.silenceStart = time.Time{}

	go m.run(ctx, m.done)

	m.logger.Debug("Silence monitor armed",
		slog.Float64("threshold", m.cfg.SilenceThreshold),
		slog.Duration("silence_duration", m.cfg.SilenceDuration),
		slog.Duration("sample_interval", m.cfg.SampleInterval),
	)
}

// Disarm stops the sampling loop and waits for it to exit, so no sample can
// fire after Disarm returns. Safe to call repeatedly and from any state.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = false
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.silenceStart = time.Time{}
	m.mu.Unlock()

	cancel()
	<-done

	m.logger.Debug("Silence monitor disarmed")
}

// IsArmed reports whether the sampling loop is running
func (m *Monitor) IsArmed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// run is the sampling loop bound to one armed period
func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.sample(m.source.Level(), time.Now()) {
				stop, claimed := m.claimAutoStop()
				if claimed {
					m.logger.Info("Sustained silence detected, auto-stopping",
						slog.Duration("silence_duration", m.cfg.SilenceDuration),
					)
					if stop != nil {
						stop()
					}
				}
				return
			}
		}
	}
}

// claimAutoStop transitions out of the armed state for an auto-stop
// decision. It cancels the sampling context and detaches the done channel so
// the stop callback may call Disarm without deadlocking. When a concurrent
// Disarm already claimed the teardown it reports false and no callback may
// fire.
func (m *Monitor) claimAutoStop() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.armed {
		return nil, false
	}

	m.armed = false
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = nil
	m.done = nil
	return m.onAutoStop, true
}

// sample processes one level reading. It returns true when sustained silence
// has exceeded the configured duration. Voice at or above the threshold
// clears the silence timer entirely; brief pauses earn no partial credit.
func (m *Monitor) sample(level float64, now time.Time) bool {
	m.mu.Lock()

	if level >= m.cfg.SilenceThreshold {
		m.silenceStart = time.Time{}
	} else if m.silenceStart.IsZero() {
		m.silenceStart = now
	}

	remaining := m.cfg.SilenceDuration
	stop := false
	if !m.silenceStart.IsZero() {
		elapsed := now.Sub(m.silenceStart)
		remaining = m.cfg.SilenceDuration - elapsed
		if remaining < 0 {
			remaining = 0
		}
		stop = elapsed >= m.cfg.SilenceDuration
	}

	countdown := m.onCountdown
	m.mu.Unlock()

	if countdown != nil {
		countdown(remaining, level)
	}

	return stop
}
