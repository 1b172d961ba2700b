package service

import (
	"context"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
	"careon/pkg/requestcontext"
)

// CreateCommand is the minimal payload an applicant opens an application with.
type CreateCommand struct {
	UserID id.UserID
	Draft  models.DraftInput
}

// Create persists a new draft. Business-number uniqueness is not checked here;
// the number is usually unknown until later steps.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (_ *models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "create", id.ApplicationID{})
	defer finish(&err)

	app, err := models.NewDraft(cmd.UserID, cmd.Draft, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	saved, err := s.save(ctx, app)
	if err != nil {
		return nil, err
	}

	s.metrics.IncCreated()
	s.logAudit(ctx, "enrollment_created",
		"enrollment_id", saved.ID().String(),
		"owner_id", saved.UserID().String(),
	)
	return saved, nil
}
