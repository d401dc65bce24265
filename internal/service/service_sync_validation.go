package service

import (
	"fmt"

	"github.com/openkin/circlesync/models"
)

// validatePushRequest checks the structural invariants of a pushed batch.
// Every violation maps to ErrInvalidDataProvided so the transport layer can
// answer with a single malformed-request status.
func validatePushRequest(circleID string, req models.PushRequest) error {
	if circleID == "" {
		return fmt.Errorf("%w: missing circle id", ErrInvalidDataProvided)
	}
	if req.DeviceID == "" {
		return fmt.Errorf("%w: missing device id", ErrInvalidDataProvided)
	}

	for i, change := range req.Changes {
		if change.ID == "" {
			return fmt.Errorf("%w: change %d has no id", ErrInvalidDataProvided, i)
		}
		if change.EntityType == "" {
			return fmt.Errorf("%w: change %q has no entity type", ErrInvalidDataProvided, change.ID)
		}
		if change.EntityID == "" {
			return fmt.Errorf("%w: change %q has no entity id", ErrInvalidDataProvided, change.ID)
		}
		if !change.Action.Valid() {
			return fmt.Errorf("%w: change %q has unknown action %q", ErrInvalidDataProvided, change.ID, change.Action)
		}
		if change.Action != models.ActionDelete && len(change.Data) == 0 {
			return fmt.Errorf("%w: change %q carries no payload", ErrInvalidDataProvided, change.ID)
		}
		if change.Timestamp.IsZero() {
			return fmt.Errorf("%w: change %q has no timestamp", ErrInvalidDataProvided, change.ID)
		}
	}

	return nil
}
