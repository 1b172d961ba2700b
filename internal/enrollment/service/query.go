package service

import (
	"context"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
)

type GetQuery struct {
	ApplicationID id.ApplicationID
	UserID        id.UserID
	IsAdmin       bool
}

// Get returns one application. Non-admin callers only see their own.
func (s *Service) Get(ctx context.Context, q GetQuery) (_ *models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "get", q.ApplicationID)
	defer finish(&err)

	app, err := s.load(ctx, q.ApplicationID)
	if err != nil {
		return nil, err
	}
	if !q.IsAdmin && !app.IsOwnedBy(q.UserID) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not allowed to view this application")
	}
	return app, nil
}

// List passes filters through to the repository after applying paging bounds.
func (s *Service) List(ctx context.Context, filters models.Filters) (_ *models.ListResult, err error) {
	ctx, finish := s.startUseCase(ctx, "list", id.ApplicationID{})
	defer finish(&err)

	if filters.Status != "" && !filters.Status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", filters.Status)
	}
	result, err := s.repo.FindAll(ctx, filters.Normalize())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list enrollment applications")
	}
	return result, nil
}

// ListMine returns every application owned by userID.
func (s *Service) ListMine(ctx context.Context, userID id.UserID) (_ []*models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "list_mine", id.ApplicationID{})
	defer finish(&err)

	apps, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list enrollment applications")
	}
	return apps, nil
}
