// Package server provides the jchat relay HTTP server: it accepts chat
// requests from the TUI and forwards them to the configured LLM.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jchatbot/jchat/internal/chat"
	"github.com/jchatbot/jchat/internal/llm"
	"github.com/jchatbot/jchat/internal/metrics"
	"github.com/jchatbot/jchat/internal/models"
)

// Generator produces the assistant's reply for a chat turn. *llm.Model
// implements it; tests use stubs.
type Generator interface {
	Reply(ctx context.Context, history []models.HistoryEntry, message string) (string, error)
	Model() string
}

// Server wraps the relay HTTP server with lifecycle management.
type Server struct {
	gen     Generator
	metrics *metrics.Collector
	logger  *slog.Logger
	http    *http.Server
}

// New creates a relay server listening on the given port.
func New(port string, gen Generator, logger *slog.Logger) *Server {
	s := &Server{
		gen:     gen,
		metrics: metrics.NewCollector(),
		logger:  logger,
	}

	s.http = &http.Server{
		Addr:         ":" + port,
		Handler:      LoggingMiddleware(logger)(s.routes()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay server listening", "addr", s.http.Addr, "model", s.gen.Model())
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down relay server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// chatRequest mirrors the client's POST body.
type chatRequest struct {
	Message   string                `json:"message"`
	UserID    string                `json:"userId"`
	SessionID string                `json:"sessionId"`
	History   []models.HistoryEntry `json:"history,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Message is required", "")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required", "")
		return
	}

	history := req.History
	if len(history) > chat.HistoryWindow {
		history = history[len(history)-chat.HistoryWindow:]
	}

	llmStart := time.Now()
	response, err := s.gen.Reply(r.Context(), history, req.Message)
	llmDuration := time.Since(llmStart)

	if err != nil {
		if errors.Is(err, llm.ErrFatalAPI) {
			s.logger.Error("LLM provider rejected request", "error", err, "user", req.UserID)
		} else {
			s.logger.Error("generation failed", "error", err, "user", req.UserID)
		}
		writeError(w, http.StatusInternalServerError, "Failed to process chat message", err.Error())
		return
	}

	s.metrics.RecordLLMUsage(metrics.OpLLMGenerate, llmDuration,
		int64(len(req.Message)), int64(len(response)))
	s.metrics.RecordTiming(metrics.OpChatRequest, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model": s.gen.Model()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
