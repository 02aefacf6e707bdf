// Package relay holds the messages posted to each popped-out window until
// the page picks them up over HTTP.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gorilla/mux"
)

// ThemeSetter applies a theme change reported by a window.
type ThemeSetter interface {
	SetThemeFrom(ctx context.Context, theme, window string) (bool, error)
}

type envelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type entry struct {
	timestamp int64
	raw       json.RawMessage
}

// Mailbox keeps the last message of each type per window.
type Mailbox struct {
	mu    sync.RWMutex
	boxes map[string]map[string]entry
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{boxes: make(map[string]map[string]entry)}
}

// Post stores data for window, replacing any earlier message of the same type.
func (m *Mailbox) Post(window string, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if env.Type == "" {
		return fmt.Errorf("invalid message: missing type")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	box, ok := m.boxes[window]
	if !ok {
		box = make(map[string]entry)
		m.boxes[window] = box
	}
	box[env.Type] = entry{timestamp: env.Timestamp, raw: append(json.RawMessage(nil), data...)}
	return nil
}

// Drop forgets window.
func (m *Mailbox) Drop(window string) {
	m.mu.Lock()
	delete(m.boxes, window)
	m.mu.Unlock()
}

// Messages returns the stored messages of window, oldest first.
func (m *Mailbox) Messages(window string) []json.RawMessage {
	m.mu.RLock()
	entries := make([]entry, 0, len(m.boxes[window]))
	for _, e := range m.boxes[window] {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].timestamp < entries[j].timestamp })
	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}

// Windows returns the names of windows with a mailbox.
func (m *Mailbox) Windows() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.boxes))
	for name := range m.boxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Server exposes a Mailbox to browser pages.
type Server struct {
	mailbox *Mailbox
	themes  ThemeSetter
	log     logger.Logger
}

// NewServer creates the relay HTTP server. themes may be nil, in which case
// theme reports are rejected.
func NewServer(ctx context.Context, mailbox *Mailbox, themes ThemeSetter) *Server {
	return &Server{mailbox: mailbox, themes: themes, log: logger.FromCtx(ctx)}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.middleware)
	r.HandleFunc("/relay/{window}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/relay/{window}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/relay/{window}/theme", s.handleTheme).Methods(http.MethodPost)
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Pages are served by the dashboard origin, not by the relay.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		ctx := logger.CtxWithLogger(r.Context(), s.log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type messagesResponse struct {
	Window   string            `json:"window"`
	Messages []json.RawMessage `json:"messages"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	window := mux.Vars(r)["window"]
	writeJSON(w, http.StatusOK, messagesResponse{Window: window, Messages: s.mailbox.Messages(window)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mailbox.Drop(mux.Vars(r)["window"])
	w.WriteHeader(http.StatusNoContent)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if s.themes == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "theme sync unavailable"})
		return
	}
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	window := mux.Vars(r)["window"]
	changed, err := s.themes.SetThemeFrom(r.Context(), req.Theme, window)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	logger.Debugf(r.Context(), "theme report from %s: %s (changed=%t)", window, req.Theme, changed)
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
