package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
)

// pushChanges handles POST /api/circles/{circleID}/sync: the sending device's
// pending queue arrives as one batch and is appended to the circle's ledger.
// On success a compact sync_update frame is broadcast to the circle's
// realtime subscribers.
func (h *Handler) pushChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	circleID := chi.URLParam(r, "circleID")

	var pushRequest models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&pushRequest); err != nil {
		log.Err(err).Str("func", "*Handler.pushChanges").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	response, err := h.services.SyncService.Ingest(ctx, circleID, pushRequest)
	if err != nil {
		log.Err(err).Str("func", "*Handler.pushChanges").Str("circle_id", circleID).Msg("error ingesting batch")
		http.Error(w, "error ingesting batch", statusFromError(err))
		return
	}

	if response.Synced > 0 {
		h.broadcaster.Broadcast(ctx, circleID, models.SyncUpdateFrame(circleID, pushRequest.DeviceID, response.Synced))
	}

	utils.WriteJSON(w, response, http.StatusOK)
}

// pullChanges handles GET /api/circles/{circleID}/sync. Without a `since`
// query parameter the full materialized snapshot is returned; with one, only
// the ledger entries newer than that watermark.
func (h *Handler) pullChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	circleID := chi.URLParam(r, "circleID")

	var since *int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			log.Error().Str("func", "*Handler.pullChanges").Str("since", raw).Msg("invalid since parameter")
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = &parsed
	}

	response, err := h.services.SyncService.Query(ctx, circleID, since)
	if err != nil {
		log.Err(err).Str("func", "*Handler.pullChanges").Str("circle_id", circleID).Msg("error querying ledger")
		http.Error(w, "error querying ledger", statusFromError(err))
		return
	}

	utils.WriteJSON(w, response, http.StatusOK)
}
