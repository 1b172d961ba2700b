// Package handler exposes the enrollment use cases, the step catalog and
// draft autosave over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"careon/internal/enrollment/draft"
	"careon/internal/enrollment/models"
	"careon/internal/enrollment/service"
	"careon/internal/enrollment/steps"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
	"careon/pkg/platform/httputil"
	"careon/pkg/requestcontext"
)

// Service is the enrollment use-case surface the handler drives.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand) (*models.Application, error)
	Update(ctx context.Context, cmd service.UpdateCommand) (*models.Application, error)
	Submit(ctx context.Context, appID id.ApplicationID, userID id.UserID) (*models.Application, error)
	Delete(ctx context.Context, appID id.ApplicationID, userID id.UserID) error
	Get(ctx context.Context, q service.GetQuery) (*models.Application, error)
	List(ctx context.Context, filters models.Filters) (*models.ListResult, error)
	ListMine(ctx context.Context, userID id.UserID) ([]*models.Application, error)
	BusinessNumberAvailable(ctx context.Context, number string) (bool, error)
	StartReview(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	Approve(ctx context.Context, appID id.ApplicationID, notes string) (*models.Application, error)
	Reject(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error)
}

// Drafts is the autosave surface.
type Drafts interface {
	Autosave(ctx context.Context, owner id.UserID, in draft.Input) (draft.Snapshot, error)
	SaveNow(ctx context.Context, owner id.UserID, in draft.Input) (draft.Snapshot, error)
	Restore(ctx context.Context, owner id.UserID) (draft.Snapshot, error)
	Discard(ctx context.Context, owner id.UserID) error
}

type Handler struct {
	service Service
	drafts  Drafts
	catalog *steps.Catalog
	logger  *slog.Logger
}

func New(service Service, drafts Drafts, catalog *steps.Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		drafts:  drafts,
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterPublic mounts the unauthenticated step catalog routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/enrollment/steps", h.HandleListSteps)
	r.Post("/enrollment/steps/navigate", h.HandleNavigate)
}

// Register mounts applicant routes. The caller installs authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/enrollments", h.HandleCreate)
	r.Get("/enrollments/business-number-availability", h.HandleBusinessNumberAvailability)
	r.Get("/enrollments/{id}", h.HandleGet)
	r.Patch("/enrollments/{id}", h.HandleUpdate)
	r.Delete("/enrollments/{id}", h.HandleDelete)
	r.Post("/enrollments/{id}/submit", h.HandleSubmit)
	r.Get("/me/enrollments", h.HandleListMine)
	r.Get("/me/enrollment-draft", h.HandleGetDraft)
	r.Put("/me/enrollment-draft", h.HandleSaveDraft)
	r.Delete("/me/enrollment-draft", h.HandleDiscardDraft)
}

// RegisterAdmin mounts staff routes. The caller installs authentication and
// the admin role check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/enrollments", h.HandleAdminList)
	r.Get("/admin/enrollments/{id}", h.HandleAdminGet)
	r.Post("/admin/enrollments/{id}/review", h.HandleStartReview)
	r.Post("/admin/enrollments/{id}/approve", h.HandleApprove)
	r.Post("/admin/enrollments/{id}/reject", h.HandleReject)
}

// Mount registers every route: catalog routes open, applicant routes behind
// requireAuth, staff routes behind requireAuth and requireAdmin.
func (h *Handler) Mount(r chi.Router, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		h.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			h.RegisterAdmin(r)
		})
	})
}

// requireUser returns the authenticated user or writes a 401.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) applicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, false
	}
	return appID, true
}

// fail logs use-case errors at a level matching their cause and writes them.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx).String(),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) HandleListSteps(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromCatalog(h.catalog))
}

// HandleNavigate resolves the next or previous applicable step for the posted
// form state. Moving forward requires the current step to be complete.
func (h *Handler) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[NavigateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	current, ok := h.catalog.Step(req.CurrentIndex)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "current_index must be between 0 and %d", h.catalog.Len()-1))
		return
	}

	index := req.CurrentIndex
	switch req.Direction {
	case DirectionNext:
		if !h.catalog.CanAdvance(index, req.Data) {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "step %q is incomplete", current.ID))
			return
		}
		index = h.catalog.Next(index, req.Data)
	case DirectionPrevious:
		index = h.catalog.Previous(index, req.Data)
	}

	step, _ := h.catalog.Step(index)
	httputil.WriteJSON(w, http.StatusOK, &NavigationResponse{
		Index:      index,
		StepID:     step.ID,
		Title:      step.Title,
		Progress:   h.catalog.Progress(index, req.Data),
		Total:      h.catalog.Total(req.Data),
		CanAdvance: h.catalog.CanAdvance(index, req.Data),
		IsFirst:    h.catalog.Previous(index, req.Data) == index,
		IsLast:     h.catalog.Next(index, req.Data) == index,
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	app, err := h.service.Create(ctx, service.CreateCommand{UserID: userID, Draft: req.DraftInput()})
	if err != nil {
		h.fail(w, r, "create enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromApplication(app))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	app, err := h.service.Get(r.Context(), service.GetQuery{
		ApplicationID: appID,
		UserID:        userID,
		IsAdmin:       requestcontext.IsAdmin(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "get enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	app, err := h.service.Update(ctx, service.UpdateCommand{ApplicationID: appID, UserID: userID, Patch: req.Patch()})
	if err != nil {
		h.fail(w, r, "update enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), appID, userID); err != nil {
		h.fail(w, r, "delete enrollment failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubmit submits the draft and then drops the applicant's autosaved
// wizard state.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	app, err := h.service.Submit(ctx, appID, userID)
	if err != nil {
		h.fail(w, r, "submit enrollment failed", err)
		return
	}
	if err := h.drafts.Discard(ctx, userID); err != nil {
		h.logger.WarnContext(ctx, "failed to clear draft after submission",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	apps, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "list own enrollments failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": fromApplications(apps)})
}

func (h *Handler) HandleBusinessNumberAvailability(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	available, err := h.service.BusinessNumberAvailable(r.Context(), number)
	if err != nil {
		h.fail(w, r, "business number check failed", err)
		return
	}
	normalized, _ := models.NormalizeBusinessNumber(number)
	httputil.WriteJSON(w, http.StatusOK, &AvailabilityResponse{BusinessNumber: normalized, Available: available})
}

func (h *Handler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	snap, err := h.drafts.Restore(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "restore draft failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSnapshot(snap))
}

// HandleSaveDraft answers 202 for debounced saves and 200 once written.
func (h *Handler) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DraftRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	in := draft.Input{Data: req.Data, StepIndex: req.StepIndex, UserAgent: requestcontext.UserAgent(ctx)}
	save, status := h.drafts.Autosave, http.StatusAccepted
	if req.Immediate {
		save, status = h.drafts.SaveNow, http.StatusOK
	}
	snap, err := save(ctx, userID, in)
	if err != nil {
		h.fail(w, r, "save draft failed", err)
		return
	}
	httputil.WriteJSON(w, status, FromSnapshot(snap))
}

func (h *Handler) HandleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.drafts.Discard(r.Context(), userID); err != nil {
		h.fail(w, r, "discard draft failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.Filters{
		Status: models.Status(q.Get("status")),
		Search: q.Get("search"),
	}
	var err error
	if filters.Page, err = intParam(q.Get("page")); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "page must be a number"))
		return
	}
	if filters.PageSize, err = intParam(q.Get("page_size")); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "page_size must be a number"))
		return
	}
	if raw := q.Get("user_id"); raw != "" {
		if filters.UserID, err = id.ParseUserID(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, r, "list enrollments failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromListResult(result))
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func (h *Handler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(r.Context(), service.GetQuery{ApplicationID: appID, IsAdmin: true})
	if err != nil {
		h.fail(w, r, "get enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleStartReview(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.service.StartReview(r.Context(), appID)
	if err != nil {
		h.fail(w, r, "start review failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleApprove accepts an empty body when there are no notes.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	var notes string
	if httputil.HasBody(r) {
		req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		notes = req.Notes
	}

	app, err := h.service.Approve(ctx, appID, notes)
	if err != nil {
		h.fail(w, r, "approve enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	app, err := h.service.Reject(ctx, appID, req.Reason)
	if err != nil {
		h.fail(w, r, "reject enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}
