package httpx

import (
	"errors"
	"net/http"

	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/mansionwatch/mansion-watch/internal/service"
)

// WatchlistHandlers provides HTTP handlers for watchlist queries.
type WatchlistHandlers struct {
	Svc *service.WatchlistService
}

// WatchlistResponse lists the properties one user watches.
type WatchlistResponse struct {
	Properties []*model.Property `json:"properties"`
	Total      int               `json:"total"`
}

// ListProperties handles GET /api/watchlist/{line_user_id}.
func (h *WatchlistHandlers) ListProperties(w http.ResponseWriter, r *http.Request) {
	lineUserID := r.PathValue("line_user_id")
	if lineUserID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("line user id is required")})
		return
	}

	props, err := h.Svc.Properties(r.Context(), lineUserID)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}
	if props == nil {
		props = []*model.Property{}
	}

	WriteJSON(w, http.StatusOK, WatchlistResponse{Properties: props, Total: len(props)})
}
