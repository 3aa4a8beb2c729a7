package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kevinraymond/obsidian-stt-llm/internal/commands"
)

// Config represents the complete pipeline configuration
type Config struct {
	STT      STTConfig      `yaml:"stt"`
	Audio    AudioConfig    `yaml:"audio"`
	VAD      VADConfig      `yaml:"vad"`
	Commands CommandsConfig `yaml:"commands"`
	LLM      LLMConfig      `yaml:"llm"`
	Editor   EditorConfig   `yaml:"editor"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// STTConfig contains the speech-to-text service connection settings
type STTConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	Language          string  `yaml:"language"`
	ConnectTimeoutSec float64 `yaml:"connect_timeout"` // seconds
}

// AudioConfig contains capture device parameters
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	FrameSize  int `yaml:"frame_size"` // samples per capture frame
}

// VADConfig contains silence detection settings for auto-stop
type VADConfig struct {
	Enabled          bool     `yaml:"enabled"`
	SilenceThreshold *float64 `yaml:"silence_threshold"` // 0-100 level scale; nil means default
	SilenceDuration  float64  `yaml:"silence_duration"`  // seconds
	SampleIntervalMs int      `yaml:"sample_interval_ms"`
}

// CommandsConfig contains the voice command table
type CommandsConfig struct {
	Enabled     bool               `yaml:"enabled"`
	Definitions []commands.Command `yaml:"definitions"`
}

// LLMConfig contains optional transcript post-processing settings
type LLMConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Prompt     string `yaml:"prompt"`
	TimeoutSec int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// EditorConfig selects the host editor surface implementation
type EditorConfig struct {
	Surface string `yaml:"surface"` // "clipboard" or "stdout"
	Notify  bool   `yaml:"notify"`
}

// MetricsConfig contains the Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads, defaults and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills unset fields with working defaults
func (c *Config) ApplyDefaults() {
	if c.STT.ConnectTimeoutSec == 0 {
		c.STT.ConnectTimeoutSec = 10
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 1024
	}
	if c.VAD.SilenceThreshold == nil {
		threshold := 10.0
		c.VAD.SilenceThreshold = &threshold
	}
	if c.VAD.SilenceDuration == 0 {
		c.VAD.SilenceDuration = 1.5
	}
	if c.VAD.SampleIntervalMs == 0 {
		c.VAD.SampleIntervalMs = 100
	}
	if len(c.Commands.Definitions) == 0 {
		c.Commands.Definitions = commands.DefaultCommands()
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 30
	}
	if c.Editor.Surface == "" {
		c.Editor.Surface = "clipboard"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = "127.0.0.1:9248"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.STT.Validate(); err != nil {
		return fmt.Errorf("stt config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Commands.Validate(); err != nil {
		return fmt.Errorf("commands config: %w", err)
	}

	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}

	if err := c.Editor.Validate(); err != nil {
		return fmt.Errorf("editor config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the STT connection settings
func (s *STTConfig) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if s.ConnectTimeoutSec <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %f", s.ConnectTimeoutSec)
	}

	return nil
}

// Validate validates audio capture settings
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.FrameSize < 64 || a.FrameSize > 8192 {
		return fmt.Errorf("frame_size must be between 64 and 8192 samples, got %d", a.FrameSize)
	}

	return nil
}

// Validate validates silence detection settings
func (v *VADConfig) Validate() error {
	if v.SilenceThreshold != nil && (*v.SilenceThreshold < 0 || *v.SilenceThreshold > 100) {
		return fmt.Errorf("silence_threshold must be between 0 and 100, got %f", *v.SilenceThreshold)
	}

	if v.SilenceDuration <= 0 {
		return fmt.Errorf("silence_duration must be positive, got %f", v.SilenceDuration)
	}

	if v.SampleIntervalMs < 10 || v.SampleIntervalMs > 1000 {
		return fmt.Errorf("sample_interval_ms must be between 10 and 1000, got %d", v.SampleIntervalMs)
	}

	return nil
}

// Validate validates every command definition in the table
func (c *CommandsConfig) Validate() error {
	for i := range c.Definitions {
		if err := c.Definitions[i].Validate(); err != nil {
			return fmt.Errorf("definition %d: %w", i, err)
		}
	}
	return nil
}

// Validate validates post-processing settings when enabled
func (l *LLMConfig) Validate() error {
	if !l.Enabled {
		return nil
	}

	if l.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when llm is enabled")
	}

	if l.TimeoutSec < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", l.TimeoutSec)
	}

	if l.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", l.MaxRetries)
	}

	return nil
}

// Validate validates the editor surface selection
func (e *EditorConfig) Validate() error {
	validSurfaces := map[string]bool{"clipboard": true, "stdout": true}
	if !validSurfaces[e.Surface] {
		return fmt.Errorf("surface must be 'clipboard' or 'stdout', got '%s'", e.Surface)
	}
	return nil
}

// Validate validates the metrics exposition settings
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetConnectTimeout returns the connect timeout as a time.Duration
func (s *STTConfig) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSec * float64(time.Second))
}

// GetSilenceThreshold returns the silence threshold level, defaulting to 10
func (v *VADConfig) GetSilenceThreshold() float64 {
	if v.SilenceThreshold == nil {
		return 10
	}
	return *v.SilenceThreshold
}

// GetSilenceDuration returns the silence duration as a time.Duration
func (v *VADConfig) GetSilenceDuration() time.Duration {
	return time.Duration(v.SilenceDuration * float64(time.Second))
}

// GetSampleInterval returns the sampling cadence as a time.Duration
func (v *VADConfig) GetSampleInterval() time.Duration {
	return time.Duration(v.SampleIntervalMs) * time.Millisecond
}

// GetTimeout returns the post-processing timeout as a time.Duration
func (l *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(l.TimeoutSec) * time.Second
}
