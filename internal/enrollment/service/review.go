package service

import (
	"context"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
	"careon/pkg/requestcontext"
)

// Staff use cases. The caller's role is checked upstream; these only enforce
// lifecycle rules.

// StartReview marks a submitted application as being reviewed.
func (s *Service) StartReview(ctx context.Context, appID id.ApplicationID) (_ *models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "start_review", appID)
	defer finish(&err)

	return s.transition(ctx, appID, models.StatusReviewing, "", func(app *models.Application) error {
		return app.StartReview(requestcontext.Now(ctx))
	})
}

func (s *Service) Approve(ctx context.Context, appID id.ApplicationID, notes string) (_ *models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "approve", appID)
	defer finish(&err)

	return s.transition(ctx, appID, models.StatusApproved, models.EventApproved, func(app *models.Application) error {
		return app.Approve(notes, requestcontext.Now(ctx))
	})
}

func (s *Service) Reject(ctx context.Context, appID id.ApplicationID, reason string) (_ *models.Application, err error) {
	ctx, finish := s.startUseCase(ctx, "reject", appID)
	defer finish(&err)

	return s.transition(ctx, appID, models.StatusRejected, models.EventRejected, func(app *models.Application) error {
		return app.Reject(reason, requestcontext.Now(ctx))
	})
}

// transition loads, applies, saves and then dispatches event (if any).
func (s *Service) transition(
	ctx context.Context,
	appID id.ApplicationID,
	target models.Status,
	event models.EventType,
	apply func(*models.Application) error,
) (*models.Application, error) {
	app, err := s.load(ctx, appID)
	if err != nil {
		return nil, err
	}
	from := app.Status()
	if err := apply(app); err != nil {
		return nil, err
	}
	saved, err := s.save(ctx, app)
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(target))
	s.logAudit(ctx, "enrollment_"+string(target),
		"enrollment_id", saved.ID().String(),
		"from_status", string(from),
	)
	if event != "" {
		s.dispatch(ctx, event, saved)
	}
	return saved, nil
}
