// pkg/api/sessions.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/memory"
)

var errSessionNotFound = errors.New("api: session not found or expired")

// session - a client's editable pattern buffer
type session struct {
	id      string
	mu      sync.Mutex
	pattern core.Pattern
}

type sessionResponse struct {
	ID      string       `json:"id"`
	Pattern core.Pattern `json:"pattern"`
	Active  int          `json:"active"`
	Flipped int          `json:"flipped,omitempty"`
}

type toggleRequest struct {
	Index int `json:"index"`
}

type noiseRequest struct {
	Level *float64 `json:"level,omitempty"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type sessionRecallRequest struct {
	MaxIterations *int `json:"max_iterations,omitempty"`
}

func (s *Server) session(r *http.Request) (*session, error) {
	id := r.PathValue("id")
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	// sliding expiry
	s.sessions.Set(id, v, cache.DefaultExpiration)
	return v.(*session), nil
}

func (sess *session) snapshot() sessionResponse {
	return sessionResponse{ID: sess.id, Pattern: sess.pattern.Clone(), Active: sess.pattern.Sum()}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := &session{
		id:      uuid.NewString(),
		pattern: make(core.Pattern, s.deps.Trainer.Network().Size()),
	}
	s.sessions.Set(sess.id, sess, cache.DefaultExpiration)
	writeJSON(w, http.StatusCreated, sess.snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusOK, sess.snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session(r); err != nil {
		writeError(w, err)
		return
	}
	s.sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if req.Index < 0 || req.Index >= len(sess.pattern) {
		writeError(w, fmt.Errorf("%w: index %d outside [0,%d)", errBadRequest, req.Index, len(sess.pattern)))
		return
	}
	sess.pattern[req.Index] = 1 - sess.pattern[req.Index]
	writeJSON(w, http.StatusOK, sess.snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.pattern = make(core.Pattern, len(sess.pattern))
	writeJSON(w, http.StatusOK, sess.snapshot())
}

func (s *Server) handleNoise(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req noiseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	level := s.deps.Noise.Level
	if req.Level != nil {
		level = *req.Level
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.pattern.Sum() == 0 {
		writeError(w, fmt.Errorf("draw a pattern first: %w", memory.ErrEmptyPattern))
		return
	}
	noisy, flipped, err := s.noisy(sess.pattern, level)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	sess.pattern = noisy
	resp := sess.snapshot()
	resp.Flipped = flipped
	writeJSON(w, http.StatusOK, resp)
}

// handleLoad copies a stored pattern into the buffer.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.deps.Trainer.Memory().Get(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.pattern = entry.Pattern
	writeJSON(w, http.StatusOK, sess.snapshot())
}

// handleStore adds the buffer to the pattern store.
func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess.mu.Lock()
	current := sess.pattern.Clone()
	sess.mu.Unlock()

	entry, err := s.deps.Trainer.AddPattern(r.Context(), req.Name, current)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

// handleSessionRecall relaxes the buffer and replaces it with the result.
func (s *Server) handleSessionRecall(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req sessionRecallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	resp, err := s.recall(sess.pattern, s.iterations(req.MaxIterations))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.pattern = resp.Pattern.Clone()
	writeJSON(w, http.StatusOK, resp)
}
