package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dictation pipeline
type Metrics struct {
	// Recording lifecycle metrics
	RecordingsStarted   prometheus.Counter
	RecordingsCompleted prometheus.Counter
	RecordingsFailed    prometheus.Counter
	RecordingDuration   prometheus.Histogram
	AutoStops           prometheus.Counter

	// Session metrics
	SessionConnects       prometheus.Counter
	SessionConnectFailure prometheus.Counter
	SessionDisconnects    prometheus.Counter

	// Audio metrics
	AudioLevel    prometheus.Gauge
	AudioDuration prometheus.Histogram
	PayloadSize   prometheus.Histogram

	// Transcript metrics
	TranscriptUpdates prometheus.Counter
	TranscriptChars   prometheus.Histogram

	// Command engine metrics
	CommandMatches  prometheus.Counter
	CommandWarnings prometheus.Counter

	// Refinement metrics
	RefineRequests prometheus.Counter
	RefineFailures prometheus.Counter
}

// NewMetrics creates all metrics and registers them with the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Recording lifecycle metrics
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_recordings_started_total",
			Help: "Total number of recording cycles started",
		}),
		RecordingsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_recordings_completed_total",
			Help: "Total number of recording cycles that delivered a transcript",
		}),
		RecordingsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_recordings_failed_total",
			Help: "Total number of recording cycles that ended in an error",
		}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictate_recording_duration_seconds",
			Help:    "Wall-clock duration of recording cycles",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		AutoStops: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_auto_stops_total",
			Help: "Total number of recordings stopped by the silence monitor",
		}),

		// Session metrics
		SessionConnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_session_connects_total",
			Help: "Total number of successful service connections",
		}),
		SessionConnectFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_session_connect_failures_total",
			Help: "Total number of failed connection attempts",
		}),
		SessionDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_session_disconnects_total",
			Help: "Total number of unexpected connection losses",
		}),

		// Audio metrics
		AudioLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dictate_audio_level",
			Help: "Signal level of the most recent captured frame (0-100)",
		}),
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictate_audio_duration_seconds",
			Help:    "Duration of recorded audio per cycle",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),
		PayloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictate_audio_payload_bytes",
			Help:    "Size of encoded audio payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Transcript metrics
		TranscriptUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_transcript_updates_total",
			Help: "Total number of transcript updates received",
		}),
		TranscriptChars: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictate_transcript_chars",
			Help:    "Length of delivered transcripts in characters",
			Buckets: prometheus.ExponentialBuckets(8, 2, 10), // 8 to ~4K characters
		}),

		// Command engine metrics
		CommandMatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_command_matches_total",
			Help: "Total number of voice command occurrences substituted",
		}),
		CommandWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_command_warnings_total",
			Help: "Total number of command pairing warnings",
		}),

		// Refinement metrics
		RefineRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_refine_requests_total",
			Help: "Total number of transcript refinement requests",
		}),
		RefineFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictate_refine_failures_total",
			Help: "Total number of failed refinement requests",
		}),
	}
}

// RecordRecordingStarted increments the recordings started counter
func (m *Metrics) RecordRecordingStarted() {
	m.RecordingsStarted.Inc()
}

// RecordRecordingCompleted records a delivered recording cycle
func (m *Metrics) RecordRecordingCompleted(durationSeconds float64, transcriptChars int) {
	m.RecordingsCompleted.Inc()
	m.RecordingDuration.Observe(durationSeconds)
	m.TranscriptChars.Observe(float64(transcriptChars))
}

// RecordRecordingFailed records a recording cycle that ended in an error
func (m *Metrics) RecordRecordingFailed(durationSeconds float64) {
	m.RecordingsFailed.Inc()
	m.RecordingDuration.Observe(durationSeconds)
}

// RecordAutoStop increments the silence auto-stop counter
func (m *Metrics) RecordAutoStop() {
	m.AutoStops.Inc()
}

// RecordSessionConnect increments the successful connection counter
func (m *Metrics) RecordSessionConnect() {
	m.SessionConnects.Inc()
}

// RecordSessionConnectFailure increments the failed connection counter
func (m *Metrics) RecordSessionConnectFailure() {
	m.SessionConnectFailure.Inc()
}

// RecordSessionDisconnect increments the unexpected disconnect counter
func (m *Metrics) RecordSessionDisconnect() {
	m.SessionDisconnects.Inc()
}

// SetAudioLevel records the level of the latest captured frame
func (m *Metrics) SetAudioLevel(level float64) {
	m.AudioLevel.Set(level)
}

// RecordAudioPayload records an encoded audio payload
func (m *Metrics) RecordAudioPayload(durationSeconds float64, sizeBytes int) {
	m.AudioDuration.Observe(durationSeconds)
	m.PayloadSize.Observe(float64(sizeBytes))
}

// RecordTranscriptUpdate increments the transcript updates counter
func (m *Metrics) RecordTranscriptUpdate() {
	m.TranscriptUpdates.Inc()
}

// RecordCommandResult records command engine matches and warnings
func (m *Metrics) RecordCommandResult(matches, warnings int) {
	m.CommandMatches.Add(float64(matches))
	m.CommandWarnings.Add(float64(warnings))
}

// RecordRefineRequest increments the refinement request counter
func (m *Metrics) RecordRefineRequest() {
	m.RefineRequests.Inc()
}

// RecordRefineFailure increments the refinement failure counter
func (m *Metrics) RecordRefineFailure() {
	m.RefineFailures.Inc()
}
