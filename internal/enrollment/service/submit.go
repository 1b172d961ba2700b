package service

import (
	"context"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
	"careon/pkg/requestcontext"
)

// Submit hands a complete draft over for review. Aggregate errors, including
// the missing-requirement list, are returned unchanged.
func (s *Service) Submit(ctx context.Context, appID id.ApplicationID, userID id.UserID) (_ *models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "submit", appID)
	defer finish(&err)

	app, err := s.load(ctx, appID)
	if err != nil {
		return nil, err
	}
	if !app.IsOwnedBy(userID) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the owner may submit an application")
	}
	if err := app.Submit(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	saved, err := s.save(ctx, app)
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(models.StatusSubmitted))
	s.logAudit(ctx, "enrollment_submitted", "enrollment_id", saved.ID().String())
	s.dispatch(ctx, models.EventSubmitted, saved)
	return saved, nil
}

// Delete removes an applicant's own draft. Submitted applications are kept
// for review history.
func (s *Service) Delete(ctx context.Context, appID id.ApplicationID, userID id.UserID) (err error) {
	ctx, finish := s.startUseCase(ctx, "delete", appID)
	defer finish(&err)

	app, err := s.load(ctx, appID)
	if err != nil {
		return err
	}
	if !app.CanBeUpdatedBy(userID) {
		return dErrors.New(dErrors.CodeUnauthorized, "only the owner may delete a draft application")
	}
	if err := s.repo.Delete(ctx, appID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete enrollment application")
	}
	s.logAudit(ctx, "enrollment_deleted", "enrollment_id", appID.String())
	return nil
}
