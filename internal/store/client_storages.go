package store

import (
	"context"
	"fmt"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
)

// ClientStorages groups the device agent's local storage repositories.
type ClientStorages struct {
	// State is the SQLite-backed durable device state.
	State LocalStateStore
}

// NewClientStorages opens the device agent's local state database and wires
// up the state store. The schema is created on first open.
func NewClientStorages(cfg config.DeviceStorage, log *logger.Logger) (*ClientStorages, error) {
	log.Info().Msg("creating client storages...")

	db, err := NewConnectSQLite(context.Background(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	return &ClientStorages{
		State: NewLocalStateStore(db, log),
	}, nil
}
