// Package draft stores in-progress wizard state so an applicant can resume
// after a reload. Drafts are keyed by owner and never touch the application
// aggregate.
package draft

import (
	"context"
	"time"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
)

// FormatVersion tags stored snapshots. Snapshots written under another
// version are treated as absent.
const FormatVersion = "1.0"

// Snapshot is one saved wizard state.
type Snapshot struct {
	Data      models.FormData `json:"data"`
	StepIndex int             `json:"step_index"`
	SavedAt   time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Device    string          `json:"device,omitempty"`
}

// Store persists at most one snapshot per owner. Load returns
// sentinel.ErrNotFound when nothing (or only an expired or incompatible
// snapshot) exists.
type Store interface {
	Save(ctx context.Context, owner id.UserID, snap Snapshot) error
	Load(ctx context.Context, owner id.UserID) (Snapshot, error)
	Clear(ctx context.Context, owner id.UserID) error
}
