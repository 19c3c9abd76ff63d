package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"agentdesk/internal/core"

	"github.com/go-chi/chi/v5"
)

type setInputRequest struct {
	Task string `json:"task"`
}

// submitRequest carries the text to run. Without a task the session input
// is submitted as it stands.
type submitRequest struct {
	Task *string `json:"task"`
}

type keyRequest struct {
	core.KeyEvent
	Task *string `json:"task"`
}

type keyResponse struct {
	PreventDefault bool   `json:"prevent_default"`
	Warning        string `json:"warning,omitempty"`
}

type probeResponse struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View(s.location))
}

func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	var req setInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	s.session.SetInput(req.Task)
	writeJSON(w, http.StatusOK, s.session.View(s.location))
}

func (s *Server) handleQuickTask(w http.ResponseWriter, r *http.Request) {
	quickID := chi.URLParam(r, "quickID")
	if _, err := s.session.ApplyQuickTask(quickID); err != nil {
		if errors.Is(err, core.ErrUnknownQuickTask) {
			writeError(w, http.StatusNotFound, "not_found", "quick task not found")
			return
		}
		s.logger.Error("apply quick task", "quick_id", quickID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to apply quick task")
		return
	}
	writeJSON(w, http.StatusOK, s.session.View(s.location))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	var err error
	if req.Task != nil {
		err = s.session.StartText(r.Context(), *req.Task)
	} else {
		err = s.session.Start(r.Context())
	}
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyTask):
			writeError(w, http.StatusBadRequest, "empty_task", err.Error())
		case errors.Is(err, core.ErrBusy):
			writeError(w, http.StatusConflict, "busy", err.Error())
		default:
			s.logger.Error("start submission", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to start task")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, s.session.View(s.location))
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	var handled bool
	var err error
	if req.Task != nil {
		handled, err = s.session.HandleKeyText(r.Context(), req.KeyEvent, *req.Task)
	} else {
		handled, err = s.session.HandleKey(r.Context(), req.KeyEvent)
	}
	resp := keyResponse{PreventDefault: handled}
	if err != nil {
		if !errors.Is(err, core.ErrEmptyTask) {
			s.logger.Error("handle key", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to start task")
			return
		}
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	// The result is shared with every viewer, so a client going away must not
	// record a spurious disconnect.
	status := s.session.Probe(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, probeResponse{Status: string(status), Label: status.Label()})
}
