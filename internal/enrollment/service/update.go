package service

import (
	"context"
	"errors"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
	"careon/pkg/platform/sentinel"
	"careon/pkg/requestcontext"
)

type UpdateCommand struct {
	ApplicationID id.ApplicationID
	UserID        id.UserID
	Patch         models.Patch
}

// Update merges an applicant's patch into their draft.
//
// The duplicate lookup and the save are separate round trips; two updates
// claiming the same number can both pass the lookup. The store's uniqueness
// constraint rejects the later save and that surfaces as the same error.
func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (_ *models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "update", cmd.ApplicationID)
	defer finish(&err)

	app, err := s.load(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}
	if !app.CanBeUpdatedBy(cmd.UserID) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the owner may edit a draft application")
	}

	patch := cmd.Patch
	if err := patch.Normalize(); err != nil {
		return nil, err
	}
	if number, ok := patch.NewBusinessNumber(); ok {
		if err := s.ensureBusinessNumberFree(ctx, number, app.ID()); err != nil {
			return nil, err
		}
	}

	if err := app.Update(patch, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	saved, err := s.save(ctx, app)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "enrollment_updated", "enrollment_id", saved.ID().String())
	return saved, nil
}

func (s *Service) ensureBusinessNumberFree(ctx context.Context, number string, self id.ApplicationID) error {
	existing, err := s.repo.FindByBusinessNumber(ctx, number)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check business number")
	case existing.ID() != self:
		return dErrors.New(dErrors.CodeDuplicateBusinessNumber, "business number is already registered to another application")
	}
	return nil
}

// BusinessNumberAvailable reports whether number can still be claimed.
func (s *Service) BusinessNumberAvailable(ctx context.Context, number string) (_ bool, err error) {
	ctx, finish := s.startUseCase(ctx, "check_business_number", id.ApplicationID{})
	defer finish(&err)

	normalized, err := models.NormalizeBusinessNumber(number)
	if err != nil {
		return false, err
	}
	exists, err := s.repo.ExistsByBusinessNumber(ctx, normalized)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check business number")
	}
	return !exists, nil
}
