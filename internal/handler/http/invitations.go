package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
)

// acceptInvitation handles POST /api/invitations/{token}/accept. The token is
// single-use: the first accept joins the invitee to the circle and issues a
// session token, every later attempt gets 410 Gone. A member_joined frame is
// broadcast to the circle on success.
func (h *Handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	token := chi.URLParam(r, "token")

	var acceptRequest models.AcceptInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&acceptRequest); err != nil {
		log.Err(err).Str("func", "*Handler.acceptInvitation").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	response, err := h.services.InvitationService.Accept(ctx, token, acceptRequest)
	if err != nil {
		log.Err(err).Str("func", "*Handler.acceptInvitation").Msg("error accepting invitation")
		http.Error(w, "error accepting invitation", statusFromError(err))
		return
	}

	h.broadcaster.Broadcast(ctx, response.Circle.ID, models.RealtimeFrame{
		Type:     models.FrameMemberJoined,
		CircleID: response.Circle.ID,
		UserID:   response.User.UserID,
	})

	utils.WriteJSON(w, response, http.StatusOK)
}
