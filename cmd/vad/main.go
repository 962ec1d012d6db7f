package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/plp-vad/internal/audio"
	"github.com/skypro1111/plp-vad/internal/config"
	"github.com/skypro1111/plp-vad/internal/metrics"
	"github.com/skypro1111/plp-vad/internal/server"
	"github.com/skypro1111/plp-vad/internal/sink"
	"github.com/skypro1111/plp-vad/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "plp-vad"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	inputPath := flag.String("input", "", "Path to the input WAV file")
	outputPath := flag.String("output", "", "Path to the output CSV file (overrides config)")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: vad -input <file.wav> [-config <config.yaml>] [-output <file.csv>]")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *outputPath != "" {
		cfg.Output.Path = *outputPath
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Detector starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.String("input", *inputPath),
		slog.String("output", cfg.Output.Path),
	)

	logger.Info("Configuration loaded",
		slog.Float64("frame_size_ms", cfg.Framing.FrameSizeMs),
		slog.Float64("frame_step_ms", cfg.Framing.FrameStepMs),
		slog.String("window", cfg.Window.Function),
		slog.Int("mel_bands", cfg.Mel.Bands),
		slog.Int("lp_order", cfg.PLP.LPOrder),
		slog.Bool("rasta", cfg.PLP.Rasta.Enabled),
		slog.Float64("threshold", cfg.Decision.Threshold),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Load model files and assemble the detector
	detector, err := vad.NewDetector(cfg, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create detector", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP monitoring server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.Metrics.Enabled {
		httpServer = server.NewHTTPServer(cfg.Metrics.Address, logger, cfg, detector, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Cancel the run on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Open input and output
	reader, err := audio.Open(*inputPath)
	if err != nil {
		logger.Error("Failed to open input", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer reader.Close()

	logger.Info("Input opened",
		slog.Int("sample_rate", reader.SampleRate()),
		slog.Int("channels", reader.Channels()),
	)

	outFile, err := os.Create(cfg.Output.Path)
	if err != nil {
		logger.Error("Failed to create output file", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer outFile.Close()

	// Run the pipeline
	stats, err := detector.Run(ctx, reader, reader.SampleRate(), sink.NewCSVWriter(outFile))
	if err != nil {
		logger.Error("Detection run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Final run statistics",
		slog.Int("frames", stats.Frames),
		slog.Int("voice_frames", stats.VoiceFrames),
		slog.Float64("voice_ratio", stats.VoiceRatio),
		slog.Duration("audio_duration", stats.AudioDuration),
		slog.Duration("wall_duration", stats.WallDuration),
		slog.Float64("realtime_factor", stats.RealtimeFactor),
	)

	// Stop the HTTP server last so final statistics stay scrapeable
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	logger.Info("Detector stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
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
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
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

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
