package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"careon/internal/enrollment/metrics"
	"careon/internal/enrollment/models"
	"careon/internal/enrollment/ports/mocks"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
	"careon/pkg/platform/sentinel"
	"careon/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	owner       id.UserID
	repo        *mocks.MockRepository
	notifier    *mocks.MockNotifier
	provisioner *mocks.MockAccountProvisioner
	metrics     *metrics.Metrics
	service     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.repo = mocks.NewMockRepository(ctrl)
	s.notifier = mocks.NewMockNotifier(ctrl)
	s.provisioner = mocks.NewMockAccountProvisioner(ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.owner = id.NewUserID()
	s.service = New(s.repo,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNotifier(s.notifier),
		WithAccountProvisioner(s.provisioner),
		WithMetrics(s.metrics),
		WithSideEffectTimeout(time.Second),
	)
}

func (s *ServiceSuite) waitSideEffects() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.service.Wait(ctx))
}

func (s *ServiceSuite) stored(mutate func(*models.Application)) *models.Application {
	app, err := models.NewDraft(s.owner, models.DraftInput{
		Agreements: models.Agreements{Terms: true, Privacy: true},
		Representative: models.Representative{
			Name: "Kim", PhoneNumber: "010-1111-2222", BirthDate: "900101", Gender: models.GenderMale,
		},
		BusinessType: models.BusinessTypeIndividual,
	}, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	rec := app.Snapshot()
	rec.ID = id.NewApplicationID()
	app = models.Rehydrate(rec)
	if mutate != nil {
		mutate(app)
	}
	return app
}

func withDocs(app *models.Application) {
	docs := map[models.DocumentKind]*string{}
	for _, k := range models.RequiredDocuments(models.BusinessTypeIndividual) {
		url := "https://files.example/" + string(k)
		docs[k] = &url
	}
	if err := app.Update(models.Patch{Documents: docs}, app.CreatedAt()); err != nil {
		panic(err)
	}
}

func submitted(app *models.Application) {
	withDocs(app)
	if err := app.Submit(app.CreatedAt()); err != nil {
		panic(err)
	}
}

func echoSave(_ context.Context, app *models.Application) (*models.Application, error) {
	return app, nil
}

func (s *ServiceSuite) TestCreate() {
	s.Run("persists a draft stamped with the request time", func() {
		s.repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(echoSave)

		app, err := s.service.Create(s.ctx, CreateCommand{
			UserID: s.owner,
			Draft: models.DraftInput{
				Representative: models.Representative{Name: "Kim", PhoneNumber: "01011112222", BirthDate: "900101", Gender: "male"},
			},
		})
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, app.Status())
		s.Equal(s.now, app.CreatedAt())
		s.Equal("010-1111-2222", app.Representative().PhoneNumber)
		s.InDelta(1, testutil.ToFloat64(s.metrics.Created), 0)
	})

	s.Run("rejects an invalid representative without saving", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{
			UserID: s.owner,
			Draft:  models.DraftInput{Representative: models.Representative{Name: "Kim", PhoneNumber: "12", BirthDate: "900101", Gender: "male"}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("maps store failures to internal errors", func() {
		s.repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
		_, err := s.service.Create(s.ctx, CreateCommand{
			UserID: s.owner,
			Draft:  models.DraftInput{Representative: models.Representative{Name: "Kim", PhoneNumber: "01011112222", BirthDate: "900101", Gender: "male"}},
		})
		s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	})
}

func (s *ServiceSuite) TestUpdate() {
	number := "1234567890"

	s.Run("not found", func() {
		appID := id.NewApplicationID()
		s.repo.EXPECT().FindByID(gomock.Any(), appID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Update(s.ctx, UpdateCommand{ApplicationID: appID, UserID: s.owner})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("other users cannot edit", func() {
		app := s.stored(nil)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Update(s.ctx, UpdateCommand{ApplicationID: app.ID(), UserID: id.NewUserID()})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("owners cannot edit after submission", func() {
		app := s.stored(submitted)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Update(s.ctx, UpdateCommand{ApplicationID: app.ID(), UserID: s.owner})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects a number held by another application", func() {
		app := s.stored(nil)
		other := s.stored(nil)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().FindByBusinessNumber(gomock.Any(), "123-45-67890").Return(other, nil)

		_, err := s.service.Update(s.ctx, UpdateCommand{ApplicationID: app.ID(), UserID: s.owner, Patch: models.Patch{BusinessNumber: &number}})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateBusinessNumber))
		s.InDelta(1, testutil.ToFloat64(s.metrics.DomainRejections.WithLabelValues(string(dErrors.CodeDuplicateBusinessNumber))), 0)
	})

	s.Run("accepts re-sending its own number", func() {
		app := s.stored(nil)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().FindByBusinessNumber(gomock.Any(), "123-45-67890").Return(app, nil)
		s.repo.EXPECT().Save(gomock.Any(), app).DoAndReturn(echoSave)

		saved, err := s.service.Update(s.ctx, UpdateCommand{ApplicationID: app.ID(), UserID: s.owner, Patch: models.Patch{BusinessNumber: &number}})
		s.Require().NoError(err)
		s.Equal("123-45-67890", saved.Business().Number)
		s.Equal(s.now, saved.UpdatedAt())
	})

	s.Run("a lost race at save time is still a duplicate", func() {
		app := s.stored(nil)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().FindByBusinessNumber(gomock.Any(), "123-45-67890").Return(nil, sentinel.ErrNotFound)
		s.repo.EXPECT().Save(gomock.Any(), app).Return(nil, sentinel.ErrConflict)

		_, err := s.service.Update(s.ctx, UpdateCommand{ApplicationID: app.ID(), UserID: s.owner, Patch: models.Patch{BusinessNumber: &number}})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateBusinessNumber))
	})

	s.Run("invalid patches never reach the store", func() {
		app := s.stored(nil)
		bad := "12-34"
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Update(s.ctx, UpdateCommand{ApplicationID: app.ID(), UserID: s.owner, Patch: models.Patch{BusinessNumber: &bad}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestSubmit() {
	s.Run("only the owner may submit", func() {
		app := s.stored(withDocs)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Submit(s.ctx, app.ID(), id.NewUserID())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("incomplete drafts report what is missing", func() {
		app := s.stored(nil)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Submit(s.ctx, app.ID(), s.owner)
		s.True(dErrors.HasCode(err, dErrors.CodeIncompleteApplication))
		s.Contains(dErrors.Missing(err), string(models.DocIDCardBack))
	})

	s.Run("submits and notifies", func() {
		app := s.stored(withDocs)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().Save(gomock.Any(), app).DoAndReturn(echoSave)
		notified := make(chan models.Notification, 1)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n models.Notification) error {
			notified <- n
			return nil
		})

		saved, err := s.service.Submit(s.ctx, app.ID(), s.owner)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, saved.Status())
		s.Equal(s.now, *saved.SubmittedAt())
		s.Nil(saved.ReviewedAt())

		s.waitSideEffects()
		n := <-notified
		s.Equal(models.EventSubmitted, n.Type)
		s.Equal("010-1111-2222", n.PhoneNumber)
	})

	s.Run("a failing notifier does not undo the submission", func() {
		app := s.stored(withDocs)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().Save(gomock.Any(), app).DoAndReturn(echoSave)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("sms gateway down"))

		saved, err := s.service.Submit(s.ctx, app.ID(), s.owner)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, saved.Status())
		s.waitSideEffects()
		s.InDelta(1, testutil.ToFloat64(s.metrics.SideEffectFailures.WithLabelValues(effectNotify)), 0)
	})
}

func (s *ServiceSuite) TestApprove() {
	s.Run("drafts cannot be approved", func() {
		app := s.stored(nil)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Approve(s.ctx, app.ID(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("approves, provisions and notifies even when provisioning fails", func() {
		app := s.stored(submitted)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().Save(gomock.Any(), app).DoAndReturn(echoSave)
		s.provisioner.EXPECT().Provision(gomock.Any(), gomock.Any()).Return(errors.New("billing unavailable"))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n models.Notification) error {
			s.Equal(models.EventApproved, n.Type)
			s.Equal("welcome", n.Notes)
			return nil
		})

		saved, err := s.service.Approve(s.ctx, app.ID(), "welcome")
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, saved.Status())
		s.Equal(s.now, *saved.ReviewedAt())
		s.waitSideEffects()
		s.InDelta(1, testutil.ToFloat64(s.metrics.SideEffectFailures.WithLabelValues(effectProvision)), 0)
	})

	s.Run("side effects outlive a cancelled request", func() {
		app := s.stored(submitted)
		ctx, cancel := context.WithCancel(s.ctx)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().Save(gomock.Any(), app).DoAndReturn(echoSave)
		s.provisioner.EXPECT().Provision(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ *models.Application) error {
			return ctx.Err()
		})
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

		failures := s.metrics.SideEffectFailures.WithLabelValues(effectProvision)
		before := testutil.ToFloat64(failures)

		_, err := s.service.Approve(ctx, app.ID(), "")
		cancel()
		s.Require().NoError(err)
		s.waitSideEffects()
		s.InDelta(before, testutil.ToFloat64(failures), 0)
	})
}

func (s *ServiceSuite) TestReject() {
	s.Run("requires a reason", func() {
		app := s.stored(submitted)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Reject(s.ctx, app.ID(), "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeMissingReason))
	})

	s.Run("rejects from reviewing and keeps the reason verbatim", func() {
		app := s.stored(func(a *models.Application) {
			submitted(a)
			if err := a.StartReview(a.CreatedAt()); err != nil {
				panic(err)
			}
		})
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().Save(gomock.Any(), app).DoAndReturn(echoSave)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

		saved, err := s.service.Reject(s.ctx, app.ID(), " 서류 불충분 ")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, saved.Status())
		s.Equal(" 서류 불충분 ", saved.ReviewerNotes())
		s.waitSideEffects()
		s.InDelta(1, testutil.ToFloat64(s.metrics.Transitions.WithLabelValues(string(models.StatusRejected))), 0)
	})
}

func (s *ServiceSuite) TestStartReview() {
	app := s.stored(submitted)
	s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
	s.repo.EXPECT().Save(gomock.Any(), app).DoAndReturn(echoSave)

	saved, err := s.service.StartReview(s.ctx, app.ID())
	s.Require().NoError(err)
	s.Equal(models.StatusReviewing, saved.Status())
}

func (s *ServiceSuite) TestGet() {
	app := s.stored(nil)
	stranger := id.NewUserID()

	s.Run("owner", func() {
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		got, err := s.service.Get(s.ctx, GetQuery{ApplicationID: app.ID(), UserID: s.owner})
		s.Require().NoError(err)
		s.Equal(app.ID(), got.ID())
	})

	s.Run("stranger", func() {
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Get(s.ctx, GetQuery{ApplicationID: app.ID(), UserID: stranger})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("admin", func() {
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		_, err := s.service.Get(s.ctx, GetQuery{ApplicationID: app.ID(), UserID: stranger, IsAdmin: true})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestList() {
	s.Run("normalizes paging before querying", func() {
		s.repo.EXPECT().FindAll(gomock.Any(), models.Filters{Page: 1, PageSize: models.MaxPageSize, Search: "kim"}).
			Return(models.NewListResult(nil, 0, models.Filters{Page: 1, PageSize: models.MaxPageSize}), nil)

		res, err := s.service.List(s.ctx, models.Filters{PageSize: 1000, Search: " kim "})
		s.Require().NoError(err)
		s.Empty(res.Items)
	})

	s.Run("rejects unknown statuses", func() {
		_, err := s.service.List(s.ctx, models.Filters{Status: "archived"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestDelete() {
	s.Run("owner deletes a draft", func() {
		app := s.stored(nil)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		s.repo.EXPECT().Delete(gomock.Any(), app.ID()).Return(nil)
		s.NoError(s.service.Delete(s.ctx, app.ID(), s.owner))
	})

	s.Run("submitted applications are kept", func() {
		app := s.stored(submitted)
		s.repo.EXPECT().FindByID(gomock.Any(), app.ID()).Return(app, nil)
		err := s.service.Delete(s.ctx, app.ID(), s.owner)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestBusinessNumberAvailable() {
	s.repo.EXPECT().ExistsByBusinessNumber(gomock.Any(), "123-45-67890").Return(true, nil)
	ok, err := s.service.BusinessNumberAvailable(s.ctx, "1234567890")
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.service.BusinessNumberAvailable(s.ctx, "nope")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
