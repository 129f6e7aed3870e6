// pkg/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/learning"
	"github.com/lumix-ai/hopfield/internal/memory"
	"github.com/lumix-ai/hopfield/internal/patterns"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("api: malformed request")

type patternRequest struct {
	Name    string       `json:"name"`
	Pattern core.Pattern `json:"pattern"`
}

type recallRequest struct {
	Pattern       core.Pattern `json:"pattern"`
	MaxIterations *int         `json:"max_iterations,omitempty"`
}

type entryResponse struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Pattern   core.Pattern `json:"pattern"`
	CreatedAt time.Time    `json:"created_at"`
	Warning   string       `json:"warning,omitempty"`
}

type recallResponse struct {
	Pattern   core.Pattern   `json:"pattern"`
	History   []core.Pattern `json:"history"`
	Sweeps    int            `json:"sweeps"`
	Converged bool           `json:"converged"`
	Energy    float64        `json:"energy"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Trainer.Memory().List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddPattern(w http.ResponseWriter, r *http.Request) {
	var req patternRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.deps.Trainer.AddPattern(r.Context(), req.Name, req.Pattern)
	switch {
	case errors.Is(err, learning.ErrRetrainFailed):
		// the pattern is stored; report it and let the client retry /v1/train
		log.Error().Err(err).Str("name", entry.Name).Msg("Retrain after add failed")
		resp := toEntryResponse(entry)
		resp.Warning = err.Error()
		writeJSON(w, http.StatusCreated, resp)
		return
	case err != nil:
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Trainer.DeletePattern(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Trainer.Retrain(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patterns":   len(s.deps.Trainer.Network().Patterns()),
		"generation": s.deps.Trainer.Generation(),
	})
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req recallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.recall(req.Pattern, s.iterations(req.MaxIterations))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	var req patternRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.deps.Trainer.Energy(req.Pattern)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"energy": e})
}

func (s *Server) recall(probe core.Pattern, maxIterations int) (*recallResponse, error) {
	res, err := s.deps.Trainer.Recall(probe, maxIterations)
	if err != nil {
		return nil, err
	}
	energy, err := s.deps.Trainer.Energy(res.Pattern)
	if err != nil {
		return nil, err
	}
	return &recallResponse{
		Pattern:   res.Pattern,
		History:   res.History,
		Sweeps:    res.Sweeps,
		Converged: res.Converged,
		Energy:    energy,
	}, nil
}

func (s *Server) iterations(requested *int) int {
	if requested == nil {
		return s.deps.MaxIterations
	}
	return *requested
}

func toEntryResponse(e memory.Entry) entryResponse {
	return entryResponse{ID: e.ID, Name: e.Name, Pattern: e.Pattern, CreatedAt: e.CreatedAt}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	// an empty body leaves v at its zero value
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	// may wrap any of the input errors below, so it goes first
	case errors.Is(err, learning.ErrRetrainFailed):
		return http.StatusInternalServerError, "retrain_failed"
	case errors.Is(err, core.ErrDimensionMismatch):
		return http.StatusBadRequest, "dimension_mismatch"
	case errors.Is(err, core.ErrNonBinary):
		return http.StatusBadRequest, "non_binary"
	case errors.Is(err, core.ErrInvalidIterationBound):
		return http.StatusBadRequest, "invalid_iteration_bound"
	case errors.Is(err, memory.ErrEmptyPattern):
		return http.StatusBadRequest, "empty_pattern"
	case errors.Is(err, patterns.ErrParse), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, memory.ErrPatternExists):
		return http.StatusConflict, "pattern_exists"
	case errors.Is(err, memory.ErrPatternNotFound):
		return http.StatusNotFound, "pattern_not_found"
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
