package http

import (
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/realtime"
	"github.com/openkin/circlesync/internal/service"
	"github.com/openkin/circlesync/internal/store"
)

type Handler struct {
	services    *service.Services
	hub         *realtime.Hub
	broadcaster realtime.Broadcaster
	circles     store.CircleRepository

	logger *logger.Logger
}

// NewHandler wires the HTTP transport to the service layer and the realtime
// hub. The broadcaster may be the hub itself or a relay fronting it; sync and
// invitation handlers emit their events through it.
func NewHandler(services *service.Services, hub *realtime.Hub, broadcaster realtime.Broadcaster, circles store.CircleRepository, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services:    services,
		hub:         hub,
		broadcaster: broadcaster,
		circles:     circles,
		logger:      logger,
	}
}
