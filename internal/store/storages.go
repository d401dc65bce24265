package store

import (
	"context"
	"fmt"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/migrations"
)

// Storages aggregates every server-side repository over one shared database
// handle.
type Storages struct {
	Ledger      LedgerRepository
	Circles     CircleRepository
	Invitations InvitationRepository
	Users       UserRepository

	db *DB
}

// NewStorages connects to PostgreSQL, applies pending migrations and wires up
// all repositories.
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	db, err := NewConnectPostgres(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}

	if err = migrations.Migrate(db.DB); err != nil {
		return nil, fmt.Errorf("error applying migrations: %w", err)
	}

	return &Storages{
		Ledger:      NewLedgerRepository(db, log),
		Circles:     NewCircleRepository(db, log),
		Invitations: NewInvitationRepository(db, log),
		Users:       NewUserRepository(db, log),
		db:          db,
	}, nil
}

// Close releases the underlying database connection pool.
func (s *Storages) Close() error {
	return s.db.Close()
}
