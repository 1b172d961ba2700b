package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"careon/internal/enrollment/models"
)

const (
	effectNotify    = "notify"
	effectProvision = "provision"
)

// dispatch runs post-transition side effects without blocking the caller.
// The transition is already persisted; failures are logged and counted.
func (s *Service) dispatch(ctx context.Context, event models.EventType, app *models.Application) {
	provision := event == models.EventApproved && s.provisioner != nil
	if s.notifier == nil && !provision {
		return
	}
	notification := models.NotificationFor(event, app, app.UpdatedAt())
	base := context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(base, s.sideEffectTimeout)
		defer cancel()

		var g errgroup.Group
		if provision {
			g.Go(func() error {
				return s.runEffect(ctx, effectProvision, app, func(ctx context.Context) error {
					return s.provisioner.Provision(ctx, app)
				})
			})
		}
		if s.notifier != nil {
			g.Go(func() error {
				return s.runEffect(ctx, effectNotify, app, func(ctx context.Context) error {
					return s.notifier.Notify(ctx, notification)
				})
			})
		}
		_ = g.Wait()
	}()
}

func (s *Service) runEffect(ctx context.Context, effect string, app *models.Application, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "enrollment.side_effect."+effect)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		s.metrics.IncSideEffectFailure(effect)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "enrollment side effect failed",
				"effect", effect,
				"enrollment_id", app.ID().String(),
				"status", string(app.Status()),
				"error", err,
			)
		}
		return err
	}
	return nil
}
