package service

import (
	"context"
	"fmt"

	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/store"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
)

// syncService is the concrete implementation of SyncService. It enforces
// membership on every operation and delegates ledger access to the store
// layer.
type syncService struct {
	ledger  store.LedgerRepository
	circles store.CircleRepository
	logger  *logger.Logger
}

// NewSyncService constructs a SyncService wired to the given repositories.
func NewSyncService(ledger store.LedgerRepository, circles store.CircleRepository, logger *logger.Logger) SyncService {
	return &syncService{
		ledger:  ledger,
		circles: circles,
		logger:  logger,
	}
}

// Ingest implements SyncService.
//
// The batch is validated as a whole before anything touches the ledger:
// a single malformed change rejects the entire push, so the client's queue
// is never split. Membership is checked before the append.
func (s *syncService) Ingest(ctx context.Context, circleID string, req models.PushRequest) (models.PushResponse, error) {
	log := logger.FromContext(ctx)

	if err := validatePushRequest(circleID, req); err != nil {
		log.Error().Str("circle_id", circleID).Err(err).Msg("invalid push request")
		return models.PushResponse{}, err
	}

	if err := s.requireMembership(ctx, circleID); err != nil {
		return models.PushResponse{}, err
	}

	synced, err := s.ledger.AppendBatch(ctx, circleID, req.DeviceID, req.Changes)
	if err != nil {
		log.Err(err).Str("circle_id", circleID).Str("device_id", req.DeviceID).Msg("batch append failed")
		return models.PushResponse{}, fmt.Errorf("batch append failed: %w", err)
	}

	// Conflict resolution is last-write-wins by ledger order, so the
	// conflicts list stays empty.
	return models.PushResponse{Synced: synced, Conflicts: []models.SyncChange{}}, nil
}

// Query implements SyncService.
func (s *syncService) Query(ctx context.Context, circleID string, since *int64) (models.PullResponse, error) {
	log := logger.FromContext(ctx)

	if circleID == "" {
		return models.PullResponse{}, ErrInvalidDataProvided
	}

	if err := s.requireMembership(ctx, circleID); err != nil {
		return models.PullResponse{}, err
	}

	watermark, err := s.ledger.LatestVersion(ctx, circleID)
	if err != nil {
		log.Err(err).Str("circle_id", circleID).Msg("latest version lookup failed")
		return models.PullResponse{}, fmt.Errorf("latest version lookup failed: %w", err)
	}

	if since == nil {
		snapshot, err := s.ledger.Snapshot(ctx, circleID)
		if err != nil {
			log.Err(err).Str("circle_id", circleID).Msg("snapshot query failed")
			return models.PullResponse{}, fmt.Errorf("snapshot query failed: %w", err)
		}
		return models.PullResponse{Snapshot: &snapshot, Watermark: watermark}, nil
	}

	changes, err := s.ledger.ListSince(ctx, circleID, *since)
	if err != nil {
		log.Err(err).Str("circle_id", circleID).Int64("since", *since).Msg("ledger query failed")
		return models.PullResponse{}, fmt.Errorf("ledger query failed: %w", err)
	}

	return models.PullResponse{Changes: changes, Watermark: watermark}, nil
}

// requireMembership resolves the acting user from the context and checks the
// circle membership. Unknown circles surface as store.ErrCircleNotFound.
func (s *syncService) requireMembership(ctx context.Context, circleID string) error {
	log := logger.FromContext(ctx)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("circle_id", circleID).Msg("no authenticated user in context")
		return ErrNoAuthenticatedUser
	}

	isMember, err := s.circles.IsMember(ctx, circleID, userID)
	if err != nil {
		log.Err(err).Str("circle_id", circleID).Int64("user_id", userID).Msg("membership check failed")
		return fmt.Errorf("membership check failed: %w", err)
	}
	if !isMember {
		log.Warn().Str("circle_id", circleID).Int64("user_id", userID).Msg("sync access denied")
		return store.ErrNotAMember
	}

	return nil
}
