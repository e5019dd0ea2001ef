package httpx

import (
	"net/http"

	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/mansionwatch/mansion-watch/internal/service"
)

// ScrapeHandlers provides HTTP handlers for dispatching scrape jobs.
type ScrapeHandlers struct {
	Svc *service.ScrapeService
}

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	URL        string `json:"url"`
	LineUserID string `json:"line_user_id"`
	CheckOnly  bool   `json:"check_only"`
}

// ScrapeResponse acknowledges an accepted dispatch with the message id the
// caller can poll status on.
type ScrapeResponse struct {
	MessageID string          `json:"message_id"`
	Status    model.JobStatus `json:"status"`
}

// Dispatch handles POST /api/scrape. The scrape happens asynchronously;
// the response is a 202 with the trace correlation key.
func (h *ScrapeHandlers) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	messageID, err := h.Svc.DispatchScrape(r.Context(), req.URL, req.LineUserID, req.CheckOnly)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "dispatch_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusAccepted, ScrapeResponse{
		MessageID: messageID,
		Status:    model.JobStatusQueued,
	})
}
