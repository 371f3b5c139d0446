// Package httpapi exposes the tutoring pipeline over HTTP: chat turns,
// thread management, checkpoint history and a demo whiteboard view.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tutorboard/pkg/canvas"
	"tutorboard/pkg/checkpoint"
	"tutorboard/pkg/logx"
	"tutorboard/pkg/tutor"
	"tutorboard/pkg/version"
)

// TurnRunner runs one tutoring turn. Implemented by tutor.Pipeline.
type TurnRunner interface {
	Run(ctx context.Context, threadID, message string) (tutor.Result, error)
}

// HistoryProvider retrieves a thread's checkpoint history. Implemented
// by checkpoint.Store.
type HistoryProvider interface {
	History(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error)
}

// Server is the HTTP API server. Each thread owns a demo whiteboard
// that the turn's actions are applied to, so the symbolic-id session
// lives as long as the thread.
type Server struct {
	pipeline TurnRunner
	history  HistoryProvider
	recorder canvas.Recorder
	logger   *logx.Logger

	mu     sync.Mutex
	boards map[string]*threadBoard
}

type threadBoard struct {
	mu     sync.Mutex
	board  *canvas.Board
	engine *canvas.Engine
}

// NewServer creates the API server. recorder may be nil.
func NewServer(pipeline TurnRunner, history HistoryProvider, recorder canvas.Recorder) *Server {
	return &Server{
		pipeline: pipeline,
		history:  history,
		recorder: recorder,
		logger:   logx.NewLogger("httpapi"),
		boards:   make(map[string]*threadBoard),
	}
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/threads", s.handleThreads)
	mux.HandleFunc("/api/threads/", s.handleThread)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// StartServer starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) StartServer(ctx context.Context, host string, port int) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", host, port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting API server on %s", addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:contextcheck // Parent context is cancelled; we need a fresh context for shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed: %v", err)
		}
	}()

	return nil
}

type chatRequest struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

type chatResponse struct {
	ThreadID      string          `json:"threadId"`
	TutorText     string          `json:"tutorText"`
	CanvasActions json.RawMessage `json:"canvasActions"`
}

// handleChat implements POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" || req.Message == "" {
		http.Error(w, "threadId and message are required", http.StatusBadRequest)
		return
	}

	result, err := s.pipeline.Run(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		s.logger.Error("Turn failed for thread %s: %v", req.ThreadID, err)
		http.Error(w, "Turn failed", http.StatusBadGateway)
		return
	}

	s.applyToBoard(req.ThreadID, result.CanvasActions)

	actionsJSON, err := canvas.EncodeActions(result.CanvasActions)
	if err != nil {
		s.logger.Error("Failed to encode actions for thread %s: %v", req.ThreadID, err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, chatResponse{
		ThreadID:      req.ThreadID,
		TutorText:     result.TutorText,
		CanvasActions: actionsJSON,
	})
}

// applyToBoard replays the turn's actions on the thread's demo board.
func (s *Server) applyToBoard(threadID string, actions []canvas.Action) {
	tb := s.boardFor(threadID)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.engine.ApplyAll(actions)
}

func (s *Server) boardFor(threadID string) *threadBoard {
	s.mu.Lock()
	defer s.mu.Unlock()

	tb, ok := s.boards[threadID]
	if !ok {
		board := canvas.NewBoard()
		tb = &threadBoard{
			board:  board,
			engine: canvas.NewEngine(board, s.recorder),
		}
		s.boards[threadID] = tb
	}
	return tb
}

type threadResponse struct {
	ThreadID string `json:"threadId"`
}

// handleThreads implements POST /api/threads.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	threadID := uuid.NewString()
	s.logger.Debug("Created thread %s", threadID)
	s.writeJSON(w, threadResponse{ThreadID: threadID})
}

type historyResponse struct {
	ThreadID    string                  `json:"threadId"`
	Checkpoints []checkpoint.Checkpoint `json:"checkpoints"`
}

type boardResponse struct {
	ThreadID   string `json:"threadId"`
	ShapeCount int    `json:"shapeCount"`
}

// handleThread routes /api/threads/{id}/history and
// /api/threads/{id}/board.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/threads/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	threadID := parts[0]

	switch parts[1] {
	case "history":
		s.handleHistory(w, r, threadID)
	case "board":
		s.handleBoard(w, threadID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, threadID string) {
	history, err := s.history.History(r.Context(), threadID)
	if err != nil {
		s.logger.Error("Failed to load history for thread %s: %v", threadID, err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []checkpoint.Checkpoint{}
	}

	s.writeJSON(w, historyResponse{ThreadID: threadID, Checkpoints: history})
}

func (s *Server) handleBoard(w http.ResponseWriter, threadID string) {
	tb := s.boardFor(threadID)
	tb.mu.Lock()
	count := tb.board.ShapeCount()
	tb.mu.Unlock()

	s.writeJSON(w, boardResponse{ThreadID: threadID, ShapeCount: count})
}

// handleHealth implements GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
