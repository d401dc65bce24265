package service

import (
	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/store"
)

type Services struct {
	AuthService       AuthService
	SyncService       SyncService
	InvitationService InvitationService
}

func NewServices(storages *store.Storages, cfg *config.StructuredConfig, logger *logger.Logger) *Services {
	authService := NewAuthService(cfg.Auth, logger)
	return &Services{
		AuthService:       authService,
		SyncService:       NewSyncService(storages.Ledger, storages.Circles, logger),
		InvitationService: NewInvitationService(storages.Invitations, storages.Users, storages.Circles, authService, logger),
	}
}
