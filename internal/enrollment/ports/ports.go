// Package ports defines the interfaces the enrollment use cases depend on.
// Implementations live in store/ and adapters/.
package ports

import (
	"context"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Repository,Notifier,AccountProvisioner

// Repository persists enrollment applications.
//
// Lookups that find nothing return sentinel.ErrNotFound. Save returns
// sentinel.ErrConflict when another application already holds the business
// number; stores enforce this atomically so concurrent saves cannot both win.
type Repository interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	FindByBusinessNumber(ctx context.Context, number string) (*models.Application, error)
	FindByUserID(ctx context.Context, userID id.UserID) ([]*models.Application, error)
	FindAll(ctx context.Context, filters models.Filters) (*models.ListResult, error)

	// Save inserts or replaces the application and returns the stored state.
	// An application with a nil id is assigned one.
	Save(ctx context.Context, app *models.Application) (*models.Application, error)
	Delete(ctx context.Context, appID id.ApplicationID) error
	ExistsByBusinessNumber(ctx context.Context, number string) (bool, error)
}

// Notifier delivers lifecycle messages to the applicant. Delivery is best
// effort; failures never roll back a transition.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// AccountProvisioner creates the merchant account for an approved
// application.
type AccountProvisioner interface {
	Provision(ctx context.Context, app *models.Application) error
}
