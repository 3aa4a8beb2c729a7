package audio

import (
	"math"
	"sync"
	"time"
)

// Full-scale RMS reference used to map frame energy onto the 0-100 scale
const levelReference = 10000.0

// RecordingBuffer accumulates the PCM samples of one recording and meters
// the live signal level of the most recent frame. It implements FrameSink
// for the capture device and the level-source contract of the silence
// monitor. Each recording cycle starts from a Reset buffer.
type RecordingBuffer struct {
	sampleRate int

	mu        sync.RWMutex
	samples   []int16
	lastLevel float64
	frames    uint64
}

// BufferStats describes the buffer contents for logging and monitoring
type BufferStats struct {
	Samples  int           `json:"samples"`
	Frames   uint64        `json:"frames"`
	Duration time.Duration `json:"duration"`
	Level    float64       `json:"level"`
}

// NewRecordingBuffer creates an empty recording buffer
func NewRecordingBuffer(sampleRate int) *RecordingBuffer {
	return &RecordingBuffer{
		sampleRate: sampleRate,
		samples:    make([]int16, 0, sampleRate*2), // room for 2 seconds up front
	}
}

// WriteFrame appends one captured frame and updates the metered level
func (b *RecordingBuffer) WriteFrame(frame []int16) {
	if len(frame) == 0 {
		return
	}

	level := frameLevel(frame)

	b.mu.Lock()
	b.samples = append(b.samples, frame...)
	b.lastLevel = level
	b.frames++
	b.mu.Unlock()
}

// Level returns the 0-100 signal level of the most recent frame
func (b *RecordingBuffer) Level() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastLevel
}

// Len returns the number of buffered samples
func (b *RecordingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Duration returns the buffered audio duration
func (b *RecordingBuffer) Duration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

// Stats returns a snapshot of the buffer state
func (b *RecordingBuffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var duration time.Duration
	if b.sampleRate > 0 {
		duration = time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
	}

	return BufferStats{
		Samples:  len(b.samples),
		Frames:   b.frames,
		Duration: duration,
		Level:    b.lastLevel,
	}
}

// Reset discards all buffered audio for a fresh recording cycle
func (b *RecordingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
	b.lastLevel = 0
	b.frames = 0
}

// EncodeWAV returns the buffered audio as a single WAV payload
func (b *RecordingBuffer) EncodeWAV() ([]byte, error) {
	b.mu.RLock()
	samples := make([]int16, len(b.samples))
	copy(samples, b.samples)
	rate := b.sampleRate
	b.mu.RUnlock()

	return EncodeWAV(samples, rate)
}

// frameLevel computes the RMS energy of a frame mapped onto 0-100
func frameLevel(frame []int16) float64 {
	var energy float64
	for _, s := range frame {
		energy += float64(s) * float64(s)
	}
	rms := math.Sqrt(energy / float64(len(frame)))

	level := rms / levelReference * 100
	if level > 100 {
		level = 100
	}
	return level
}
