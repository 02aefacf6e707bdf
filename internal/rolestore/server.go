package rolestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gorilla/mux"
)

// ErrMissingKey is returned when a record lacks its session or device id.
var ErrMissingKey = errors.New("sessionId and deviceId are required")

type recordKey struct {
	sessionID string
	deviceID  string
	screenID  ScreenID
}

// Store is an in-memory Session/Role Store. Records are unique per
// (session, device, screen); writes upsert.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]*ScreenRoleAssignment
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[recordKey]*ScreenRoleAssignment),
		now:     time.Now,
	}
}

// Link upserts geometry. An existing role is kept unless req carries a
// non-unassigned role.
func (s *Store) Link(req LinkRequest) (ScreenRoleAssignment, error) {
	if req.SessionID == "" || req.DeviceID == "" {
		return ScreenRoleAssignment{}, ErrMissingKey
	}
	if req.Role != "" {
		if _, err := ParseRole(string(req.Role)); err != nil {
			return ScreenRoleAssignment{}, err
		}
	}

	key := recordKey{req.SessionID, req.DeviceID, req.ScreenID}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		role := req.Role
		if role == "" {
			role = RoleUnassigned
		}
		rec = &ScreenRoleAssignment{
			SessionID: req.SessionID,
			DeviceID:  req.DeviceID,
			ScreenID:  req.ScreenID,
			Role:      role,
			CreatedAt: now,
		}
		s.records[key] = rec
	} else if req.Role.Assigned() {
		rec.Role = req.Role
	}
	rec.Left, rec.Top, rec.Width, rec.Height = req.Left, req.Top, req.Width, req.Height
	rec.UpdatedAt = now
	return *rec, nil
}

// Assign upserts the role of one screen.
func (s *Store) Assign(req RoleRequest) (ScreenRoleAssignment, error) {
	if req.SessionID == "" || req.DeviceID == "" {
		return ScreenRoleAssignment{}, ErrMissingKey
	}
	if _, err := ParseRole(string(req.Role)); err != nil {
		return ScreenRoleAssignment{}, err
	}

	key := recordKey{req.SessionID, req.DeviceID, req.ScreenID}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = &ScreenRoleAssignment{
			SessionID: req.SessionID,
			DeviceID:  req.DeviceID,
			ScreenID:  req.ScreenID,
			CreatedAt: now,
		}
		s.records[key] = rec
	}
	rec.Role = req.Role
	rec.UpdatedAt = now
	return *rec, nil
}

// ForDevice lists the records of one device session sorted by screen id.
func (s *Store) ForDevice(deviceID, sessionID string) []ScreenRoleAssignment {
	return s.list(func(k recordKey) bool {
		return k.deviceID == deviceID && k.sessionID == sessionID
	})
}

// ForSession lists every record of a session sorted by screen id.
func (s *Store) ForSession(sessionID string) []ScreenRoleAssignment {
	return s.list(func(k recordKey) bool { return k.sessionID == sessionID })
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) list(match func(recordKey) bool) []ScreenRoleAssignment {
	s.mu.RLock()
	out := make([]ScreenRoleAssignment, 0)
	for k, rec := range s.records {
		if match(k) {
			out = append(out, *rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScreenID != out[j].ScreenID {
			return out[i].ScreenID < out[j].ScreenID
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}

// Server exposes a Store over HTTP under /api.
type Server struct {
	store  *Store
	tokens map[string]struct{}
	log    logger.Logger
}

// NewServer creates a server accepting the given bearer tokens. With no
// tokens every authenticated route answers 401.
func NewServer(ctx context.Context, store *Store, tokens []string) *Server {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return &Server{
		store:  store,
		tokens: set,
		log:    logger.FromCtx(ctx),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withLogger)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	screens := api.PathPrefix("/screens").Subrouter()
	screens.Use(s.requireBearer)
	screens.HandleFunc("/link", s.handleLink).Methods(http.MethodPost)
	screens.HandleFunc("/role", s.handleRole).Methods(http.MethodPost)
	screens.HandleFunc("/session/{sessionId}", s.handleSession).Methods(http.MethodGet)
	screens.HandleFunc("/device/{deviceId}/session/{sessionId}", s.handleDevice).Methods(http.MethodGet)

	return r
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.CtxWithLogger(r.Context(), s.log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, known := s.tokens[token]; !known {
			logger.Warnf(r.Context(), "rejected %s %s: unknown token", r.Method, r.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	rec, err := s.store.Link(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Debugf(r.Context(), "linked screen %d of device %s (%s)", rec.ScreenID, rec.DeviceID, rec.Role)
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Screen linked successfully"})
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	rec, err := s.store.Assign(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Debugf(r.Context(), "assigned %s to screen %d of device %s", rec.Role, rec.ScreenID, rec.DeviceID)
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Role assigned successfully", Screen: &rec})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ForSession(mux.Vars(r)["sessionId"]))
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, s.store.ForDevice(vars["deviceId"], vars["sessionId"]))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
