package store

import (
	"errors"

	"gigbook/internal/domain"
)

// Classify converts a store error into the domain taxonomy. entity and id
// name the document for not-found messages.
func Classify(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return domain.NotFound(entity, id)
	case errors.Is(err, ErrVersionConflict):
		return domain.Conflict("%s %s was modified concurrently, reload and retry", entity, id)
	case errors.Is(err, ErrDuplicate):
		return domain.Conflict("%s %s conflicts with an existing record", entity, id)
	default:
		return domain.Upstream("store", err)
	}
}
