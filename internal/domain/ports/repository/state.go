package repository

import (
	"context"

	"coursesync/internal/domain/model"
)

// StateRepository is the port for loading and saving the tracker document.
type StateRepository interface {
	// Load returns the persisted state, or an empty state when nothing is stored yet.
	Load(ctx context.Context) (*model.State, error)
	Save(ctx context.Context, st *model.State) error
}
