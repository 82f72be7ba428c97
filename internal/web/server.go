// Package web serves the browser chat surface.
package web

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"kashi/internal/assistant"
	"kashi/internal/lang"
	"kashi/internal/llm"
	"kashi/internal/memory"
)

const (
	TypeChat  = "chat"
	TypeImage = "image"
	TypeExit  = "exit"

	defaultUsername = "User"
)

type Processor interface {
	Process(ctx context.Context, sess assistant.Session, utterance string) assistant.Reply
}

type History interface {
	Load(ctx context.Context, userID string) ([]llm.Turn, error)
	Clear(ctx context.Context, userID string) error
}

type Memory interface {
	Remember(ctx context.Context, userID, fact string) (bool, error)
	Forget(ctx context.Context, userID, text string) (int, error)
	Facts(ctx context.Context, userID string) ([]string, error)
	SetPreference(ctx context.Context, userID, key, value string) error
	DeletePreference(ctx context.Context, userID, key string) (bool, error)
	Preferences(ctx context.Context, userID string) ([]memory.Preference, error)
}

type Config struct {
	Addr          string
	AssistantName string
	Language      string
}

type Server struct {
	cfg     Config
	proc    Processor
	history History
	memory  Memory
	hub     *Hub

	http    *http.Server
	started time.Time
}

func NewServer(cfg Config, proc Processor, history History, mem Memory, hub *Hub) *Server {
	if cfg.Language == "" {
		cfg.Language = lang.Default
	}
	if hub == nil {
		hub = NewHub("")
	}

	s := &Server{
		cfg:     cfg,
		proc:    proc,
		history: history,
		memory:  mem,
		hub:     hub,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/ws", hub.ServeWS)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/memory", s.handleMemory)
	r.Get("/api/chat/history/{user}", s.handleHistory)
	r.Post("/api/chat/clear/{user}", s.handleClear)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	log.Info("Web chat listening", "addr", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type chatData struct {
	Images []string `json:"images,omitempty"`
}

type chatResponse struct {
	UserID   string   `json:"user_id"`
	Response string   `json:"response"`
	Type     string   `json:"type"`
	Data     chatData `json:"data"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}
	if req.Username == "" {
		req.Username = defaultUsername
	}

	sess := assistant.Session{
		UserID:   req.UserID,
		Username: req.Username,
		Language: lang.Detect(req.Message, s.cfg.Language),
		Channel:  assistant.ChannelWeb,
	}

	reply := s.proc.Process(r.Context(), sess, req.Message)

	resp := chatResponse{
		UserID:   req.UserID,
		Response: reply.Text,
		Type:     TypeChat,
		Data:     chatData{Images: reply.Images},
	}
	switch {
	case reply.Exit:
		resp.Type = TypeExit
	case len(reply.Images) > 0:
		resp.Type = TypeImage
	}
	writeJSON(w, http.StatusOK, resp)
}

type memoryRequest struct {
	UserID    string `json:"user_id"`
	Operation string `json:"operation"`
	Content   string `json:"content"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

type memoryResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message,omitempty"`
	Facts       []string            `json:"facts,omitempty"`
	Preferences []memory.Preference `json:"preferences,omitempty"`
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx := r.Context()
	resp, err := s.memoryOp(ctx, req)
	switch {
	case errors.Is(err, errBadOperation), errors.Is(err, memory.ErrEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error("Failed memory operation", "op", req.Operation, "user", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "memory operation failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

var errBadOperation = errors.New("unknown memory operation")

func (s *Server) memoryOp(ctx context.Context, req memoryRequest) (memoryResponse, error) {
	switch strings.ToLower(req.Operation) {
	case "remember":
		added, err := s.memory.Remember(ctx, req.UserID, req.Content)
		if err != nil {
			return memoryResponse{}, err
		}
		if !added {
			return memoryResponse{Success: true, Message: "Already remembered."}, nil
		}
		return memoryResponse{Success: true, Message: "Remembered."}, nil

	case "forget":
		n, err := s.memory.Forget(ctx, req.UserID, req.Content)
		if err != nil {
			return memoryResponse{}, err
		}
		if n == 0 {
			return memoryResponse{Success: false, Message: "Nothing matched."}, nil
		}
		return memoryResponse{Success: true, Message: "Forgotten."}, nil

	case "set_preference":
		key, value := req.Key, req.Value
		if key == "" || value == "" {
			var ok bool
			if key, value, ok = memory.ParsePreference(req.Content); !ok {
				return memoryResponse{}, memory.ErrEmpty
			}
		}
		if err := s.memory.SetPreference(ctx, req.UserID, key, value); err != nil {
			return memoryResponse{}, err
		}
		return memoryResponse{Success: true, Message: "Preference saved."}, nil

	case "delete_preference":
		ok, err := s.memory.DeletePreference(ctx, req.UserID, req.Key)
		if err != nil {
			return memoryResponse{}, err
		}
		return memoryResponse{Success: ok}, nil

	case "list", "":
		facts, err := s.memory.Facts(ctx, req.UserID)
		if err != nil {
			return memoryResponse{}, err
		}
		prefs, err := s.memory.Preferences(ctx, req.UserID)
		if err != nil {
			return memoryResponse{}, err
		}
		return memoryResponse{Success: true, Facts: facts, Preferences: prefs}, nil
	}
	return memoryResponse{}, errBadOperation
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.history.Load(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		log.Error("Failed to load history", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if turns == nil {
		turns = []llm.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": turns})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context(), chi.URLParam(r, "user")); err != nil {
		log.Error("Failed to clear history", "err", err)
		writeError(w, http.StatusInternalServerError, "could not clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"assistant": s.cfg.AssistantName,
		"clients":   s.hub.Clients(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
