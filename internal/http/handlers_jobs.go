// Package httpx provides HTTP handlers and utilities for the mansion-watch API.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mansionwatch/mansion-watch/internal/data"
	"github.com/mansionwatch/mansion-watch/internal/service"
)

// JobHandlers provides HTTP handlers for job trace queries.
type JobHandlers struct {
	Svc *service.TraceService
}

// GetStatus handles GET /api/jobs/status/{message_id}.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("message_id")
	if messageID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("message id is required")})
		return
	}

	trace, err := h.Svc.GetStatus(r.Context(), messageID)
	if errors.Is(err, data.ErrTraceNotFound) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
		return
	}
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "status_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, trace)
}

// ListUserJobs handles GET /api/jobs/user/{line_user_id}?limit=&skip=.
func (h *JobHandlers) ListUserJobs(w http.ResponseWriter, r *http.Request) {
	lineUserID := r.PathValue("line_user_id")
	if lineUserID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("line user id is required")})
		return
	}

	limit, ok := intQueryParam(w, r, "limit")
	if !ok {
		return
	}
	skip, ok := intQueryParam(w, r, "skip")
	if !ok {
		return
	}

	page, err := h.Svc.JobsForUser(r.Context(), lineUserID, limit, skip)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

// intQueryParam parses an optional integer query parameter. Absent parameters
// return zero; unparsable ones write a 400 and return ok=false.
func intQueryParam(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_query",
			Err:     fmt.Errorf("%s must be an integer", key),
		})
		return 0, false
	}
	return i, true
}
