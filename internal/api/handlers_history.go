package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"agentdesk/internal/core"
	"agentdesk/internal/store"

	"github.com/go-chi/chi/v5"
)

type fileResponse struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SizeLabel string `json:"size_label"`
	Path      string `json:"path"`
	URL       string `json:"url,omitempty"`
}

type submissionResponse struct {
	ID             string         `json:"id"`
	Task           string         `json:"task"`
	Outcome        string         `json:"outcome"`
	Output         string         `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
	ErrorClass     string         `json:"error_class,omitempty"`
	Files          []fileResponse `json:"files"`
	AgentTimestamp string         `json:"agent_timestamp,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        time.Time      `json:"ended_at"`
	CreatedAt      time.Time      `json:"created_at"`
	DurationMs     int64          `json:"duration_ms"`
}

func (s *Server) toSubmissionResponse(sub *core.Submission) submissionResponse {
	files := make([]fileResponse, 0, len(sub.Files))
	for _, f := range sub.Files {
		fr := fileResponse{
			Name:      f.Name,
			Size:      f.Size,
			SizeLabel: core.FormatFileSize(f.Size),
			Path:      f.Path,
		}
		if s.session != nil {
			fr.URL = s.session.FileURL(f.Path)
		}
		files = append(files, fr)
	}
	return submissionResponse{
		ID:             sub.ID,
		Task:           sub.Task,
		Outcome:        string(sub.Outcome),
		Output:         sub.Output,
		Error:          sub.Error,
		ErrorClass:     string(sub.ErrorClass),
		Files:          files,
		AgentTimestamp: sub.AgentTimestamp,
		StartedAt:      sub.StartedAt.In(s.location),
		EndedAt:        sub.EndedAt.In(s.location),
		CreatedAt:      sub.CreatedAt.In(s.location),
		DurationMs:     sub.EndedAt.Sub(sub.StartedAt).Milliseconds(),
	}
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []submissionResponse{}})
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	subs, err := s.history.ListSubmissions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list submissions", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list history")
		return
	}
	items := make([]submissionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, s.toSubmissionResponse(sub))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "submissionID")
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "submission not found")
		return
	}
	sub, err := s.history.GetSubmission(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSubmissionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "submission not found")
			return
		}
		s.logger.Error("get submission", "submission_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load submission")
		return
	}
	writeJSON(w, http.StatusOK, s.toSubmissionResponse(sub))
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return def
	}
	return i
}
