package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kevinraymond/obsidian-stt-llm/internal/audio"
	"github.com/kevinraymond/obsidian-stt-llm/internal/commands"
	"github.com/kevinraymond/obsidian-stt-llm/internal/config"
	"github.com/kevinraymond/obsidian-stt-llm/internal/editor"
	"github.com/kevinraymond/obsidian-stt-llm/internal/llm"
	"github.com/kevinraymond/obsidian-stt-llm/internal/metrics"
	"github.com/kevinraymond/obsidian-stt-llm/internal/orchestrator"
	"github.com/kevinraymond/obsidian-stt-llm/internal/protocol"
	"github.com/kevinraymond/obsidian-stt-llm/internal/session"
	"github.com/kevinraymond/obsidian-stt-llm/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "dictate"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("stt_endpoint", cfg.STT.Endpoint),
		slog.String("language", cfg.STT.Language),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Bool("vad_enabled", cfg.VAD.Enabled),
		slog.Float64("silence_threshold", cfg.VAD.GetSilenceThreshold()),
		slog.Duration("silence_duration", cfg.VAD.GetSilenceDuration()),
		slog.Bool("commands_enabled", cfg.Commands.Enabled),
		slog.Bool("llm_enabled", cfg.LLM.Enabled),
		slog.String("editor_surface", cfg.Editor.Surface),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	appMetrics := metrics.NewMetrics(registry)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			logger.Info("Metrics server listening", slog.String("address", cfg.Metrics.Address))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	// Recording buffer doubles as the level source for silence detection
	buffer := audio.NewRecordingBuffer(cfg.Audio.SampleRate)

	device, err := audio.NewPortAudioDevice(cfg.Audio.SampleRate, cfg.Audio.FrameSize, logger)
	if err != nil {
		logger.Error("Failed to create audio device", slog.String("error", err.Error()))
		os.Exit(1)
	}

	engine, err := commands.NewEngine(cfg.Commands.Definitions, cfg.Commands.Enabled, logger)
	if err != nil {
		logger.Error("Failed to create command engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	surface, err := editor.NewSurface(cfg.Editor.Surface)
	if err != nil {
		logger.Error("Failed to create editor surface", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var notifier editor.Notifier = editor.NewNopNotifier()
	if cfg.Editor.Notify {
		notifier = editor.NewDesktopNotifier()
	}

	var refiner orchestrator.Refiner
	if cfg.LLM.Enabled {
		client, err := llm.NewClient(llm.Config{
			Endpoint:   cfg.LLM.Endpoint,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			Prompt:     cfg.LLM.Prompt,
			Timeout:    cfg.LLM.GetTimeout(),
			MaxRetries: cfg.LLM.MaxRetries,
		})
		if err != nil {
			logger.Error("Failed to create LLM client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		refiner = client
		logger.Info("Transcript refinement enabled", slog.String("model", cfg.LLM.Model))
	}

	var monitor orchestrator.SilenceMonitor = nopMonitor{}
	var vadMonitor *vad.Monitor
	if cfg.VAD.Enabled {
		vadMonitor, err = vad.NewMonitor(vad.Config{
			SilenceThreshold: cfg.VAD.GetSilenceThreshold(),
			SilenceDuration:  cfg.VAD.GetSilenceDuration(),
			SampleInterval:   cfg.VAD.GetSampleInterval(),
		}, buffer, logger)
		if err != nil {
			logger.Error("Failed to create silence monitor", slog.String("error", err.Error()))
			os.Exit(1)
		}
		vadMonitor.SetCountdown(func(remaining time.Duration, level float64) {
			appMetrics.SetAudioLevel(level)
		})
		monitor = vadMonitor
	}

	// The session and the orchestrator reference each other; the proxy breaks
	// the construction cycle.
	proxy := &handlerProxy{}

	sessionClient, err := session.NewClient(session.Config{
		Endpoint:       cfg.STT.Endpoint,
		Language:       cfg.STT.Language,
		ConnectTimeout: cfg.STT.GetConnectTimeout(),
	}, proxy, logger)
	if err != nil {
		logger.Error("Failed to create session client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Session:  sessionClient,
		Device:   device,
		Buffer:   buffer,
		Monitor:  monitor,
		Engine:   engine,
		Refiner:  refiner,
		Surface:  surface,
		Notifier: notifier,
		Metrics:  appMetrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to create orchestrator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	proxy.set(orch)
	if vadMonitor != nil {
		vadMonitor.SetAutoStop(orch.AutoStop)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("Press Enter to start or stop dictation, or type 'q' to quit.")

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "q" || line == "quit" {
				return
			}

			if orch.State() == orchestrator.StateIdle {
				if err := orch.Start(ctx); err != nil {
					logger.Error("Failed to start dictation", slog.String("error", err.Error()))
					continue
				}
				fmt.Println("Listening... press Enter to stop.")
			} else if err := orch.Stop(); err != nil {
				logger.Warn("Stop not possible right now", slog.String("error", err.Error()))
			}
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-inputDone:
		logger.Info("Input closed, shutting down")
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	orch.Close()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error stopping metrics server", slog.String("error", err.Error()))
		}
	}

	logger.Info("Service stopped")
}

// nopMonitor stands in when silence detection is disabled
type nopMonitor struct{}

func (nopMonitor) Arm()    {}
func (nopMonitor) Disarm() {}

// handlerProxy forwards session events to a handler installed after the
// session client is constructed. Events before installation are dropped.
type handlerProxy struct {
	mu     sync.Mutex
	target session.Handler
}

func (p *handlerProxy) set(h session.Handler) {
	p.mu.Lock()
	p.target = h
	p.mu.Unlock()
}

func (p *handlerProxy) get() session.Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *handlerProxy) OnStatus(status protocol.SessionStatus, errorMessage string) {
	if h := p.get(); h != nil {
		h.OnStatus(status, errorMessage)
	}
}

func (p *handlerProxy) OnTranscript(update protocol.TranscriptUpdate) {
	if h := p.get(); h != nil {
		h.OnTranscript(update)
	}
}

func (p *handlerProxy) OnDisconnected(err error) {
	if h := p.get(); h != nil {
		h.OnDisconnected(err)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
