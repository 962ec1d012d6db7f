package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/plp-vad/internal/config"
	"github.com/skypro1111/plp-vad/internal/metrics"
)

// StatusProvider exposes a JSON-serializable snapshot of the detector state.
type StatusProvider interface {
	Status() any
}

// HTTPServer provides HTTP endpoints for monitoring the detector
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	status    StatusProvider
	metrics   *metrics.Metrics
	startTime time.Time
}

// NewHTTPServer creates a new HTTP monitoring server
func NewHTTPServer(address string, logger *slog.Logger,
	appConfig *config.Config, status StatusProvider, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		status:    status,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/healthz", h.withMetrics("/healthz", h.handleHealth))

	// Run status endpoint
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP monitoring server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP monitoring server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /healthz endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "plp-vad",
			"version": "1.0.0",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"timestamp": time.Now().UTC(),
		"run":       h.status.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := map[string]any{
		"framing": map[string]any{
			"frame_size_ms": h.config.Framing.FrameSizeMs,
			"frame_step_ms": h.config.Framing.FrameStepMs,
			"preemphasis":   h.config.Framing.Preemphasis,
		},
		"window": map[string]any{
			"function": h.config.Window.Function,
			"gain":     h.config.Window.Gain,
			"offset":   h.config.Window.Offset,
		},
		"mel": map[string]any{
			"bands":   h.config.Mel.Bands,
			"lo_freq": h.config.Mel.LoFreq,
			"hi_freq": h.config.Mel.HiFreq,
		},
		"plp": map[string]any{
			"equal_loudness": h.config.PLP.EqualLoudness,
			"compression":    h.config.PLP.Compression,
			"lpc":            h.config.PLP.LPC,
			"lp_order":       h.config.PLP.LPOrder,
			"first_cc":       h.config.PLP.FirstCC,
			"rasta":          h.config.PLP.Rasta.Enabled,
		},
		"delta": map[string]any{
			"window": h.config.Delta.Window,
		},
		"decision": map[string]any{
			"output_index": h.config.Decision.OutputIndex,
			"threshold":    h.config.Decision.Threshold,
		},
		"logging": map[string]any{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]any{
		"service": "PLP Voice Activity Detector",
		"version": "1.0.0",
		"endpoints": map[string]any{
			"GET /":        "API documentation",
			"GET /healthz": "Service health check",
			"GET /status":  "Current run statistics",
			"GET /config":  "Detector configuration",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
