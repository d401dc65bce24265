package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/openkin/circlesync/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// serveRealtime handles GET /api/ws. The connection is upgraded first and
// authenticated in-band: the hub expects an auth frame followed by a
// subscribe frame before any events flow.
func (h *Handler) serveRealtime(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Err(err).Str("func", "*Handler.serveRealtime").Msg("websocket upgrade failed")
		return
	}

	h.hub.HandleConnection(r.Context(), conn, h.services.AuthService, h.circles, h.broadcaster)
}
