package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
)

type Agreements struct {
	Terms            bool
	Privacy          bool
	Marketing        bool
	PaymentProcessor bool
	CardNetworks     []CardNetwork
}

type Representative struct {
	Name        string
	PhoneNumber string
	BirthDate   string // YYMMDD
	Gender      Gender
}

type Business struct {
	Type    BusinessType
	Name    string
	Number  string // XXX-XX-XXXXX, empty until provided
	Address string
}

type Classification struct {
	Category    string
	Subcategory string
	Keywords    []string
}

type SalesProfile struct {
	MonthlyRevenueBand string
	CardSalesRatio     *int // percent, 0-100
	FlagshipProduct    string
	AverageTicketPrice decimal.NullDecimal
}

type Settlement struct {
	BankName      string
	AccountHolder string
	AccountNumber string
}

// Record is the persistable state of an Application. Stores read it through
// Application.Snapshot and rebuild the aggregate with Rehydrate.
type Record struct {
	ID        id.ApplicationID
	UserID    id.UserID
	CreatedAt time.Time
	UpdatedAt time.Time

	Agreements     Agreements
	Representative Representative
	Business       Business
	Classification Classification
	Sales          SalesProfile
	Settlement     Settlement
	Documents      map[DocumentKind]string

	Status        Status
	SubmittedAt   *time.Time
	ReviewedAt    *time.Time
	ReviewerNotes string
}

// Application is the enrollment aggregate root.
//
// Invariants:
//   - State is only changed through Update and the transition methods
//   - Update is accepted only in draft
//   - Status follows draft → submitted → (reviewing) → approved | rejected
//   - SubmittedAt is set by Submit; ReviewedAt and ReviewerNotes by Approve/Reject
//   - ID, UserID and CreatedAt never change after construction
//
// Business-number uniqueness needs a view over all applications and is
// enforced by the use-case layer and the store, not here.
type Application struct {
	rec Record
}

// DraftInput is the minimal payload an applicant starts with.
type DraftInput struct {
	Agreements     Agreements
	Representative Representative
	BusinessType   BusinessType
}

// NewDraft builds an unsaved draft owned by owner. The id stays nil until the
// first save.
func NewDraft(owner id.UserID, in DraftInput, now time.Time) (*Application, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application owner is required")
	}
	rep, err := validateRepresentative(in.Representative)
	if err != nil {
		return nil, err
	}
	if in.BusinessType != "" {
		if _, err := ParseBusinessType(string(in.BusinessType)); err != nil {
			return nil, err
		}
	}
	return &Application{rec: Record{
		UserID:         owner,
		CreatedAt:      now,
		UpdatedAt:      now,
		Agreements:     cloneAgreements(in.Agreements),
		Representative: rep,
		Business:       Business{Type: in.BusinessType},
		Documents:      map[DocumentKind]string{},
		Status:         StatusDraft,
	}}, nil
}

func validateRepresentative(r Representative) (Representative, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return r, dErrors.New(dErrors.CodeValidation, "representative_name is required")
	}
	phone, err := NormalizePhoneNumber(r.PhoneNumber)
	if err != nil {
		return r, err
	}
	r.PhoneNumber = phone
	if err := ValidateBirthDate(r.BirthDate); err != nil {
		return r, err
	}
	g, err := ParseGender(string(r.Gender))
	if err != nil {
		return r, err
	}
	r.Gender = g
	return r, nil
}

// Rehydrate rebuilds an aggregate from stored state without re-validating it.
func Rehydrate(r Record) *Application {
	return &Application{rec: cloneRecord(r)}
}

// Snapshot returns a deep copy of the aggregate's state.
func (a *Application) Snapshot() Record {
	return cloneRecord(a.rec)
}

func (a *Application) ID() id.ApplicationID { return a.rec.ID }
func (a *Application) UserID() id.UserID { return a.rec.UserID }
func (a *Application) Status() Status { return a.rec.Status }
func (a *Application) CreatedAt() time.Time { return a.rec.CreatedAt }
func (a *Application) UpdatedAt() time.Time { return a.rec.UpdatedAt }
func (a *Application) SubmittedAt() *time.Time { return clonePtr(a.rec.SubmittedAt) }
func (a *Application) ReviewedAt() *time.Time { return clonePtr(a.rec.ReviewedAt) }
func (a *Application) ReviewerNotes() string { return a.rec.ReviewerNotes }
func (a *Application) Agreements() Agreements { return cloneAgreements(a.rec.Agreements) }
func (a *Application) Representative() Representative { return a.rec.Representative }
func (a *Application) Business() Business { return a.rec.Business }
func (a *Application) Sales() SalesProfile { return cloneSales(a.rec.Sales) }
func (a *Application) Settlement() Settlement { return a.rec.Settlement }

func (a *Application) Classification() Classification {
	c := a.rec.Classification
	c.Keywords = slices.Clone(c.Keywords)
	return c
}

func (a *Application) Documents() map[DocumentKind]string {
	return maps.Clone(a.rec.Documents)
}

// DocumentURL returns the reference stored for kind.
func (a *Application) DocumentURL(kind DocumentKind) (string, bool) {
	u, ok := a.rec.Documents[kind]
	return u, ok
}

// IsOwnedBy reports whether userID owns the application.
func (a *Application) IsOwnedBy(userID id.UserID) bool {
	return !userID.IsNil() && a.rec.UserID == userID
}

// CanBeUpdatedBy reports whether userID may edit the application: the owner,
// while it is still a draft.
func (a *Application) CanBeUpdatedBy(userID id.UserID) bool {
	return a.IsOwnedBy(userID) && a.rec.Status == StatusDraft
}

// Update merges patch into the draft. The patch is validated first; a failing
// patch leaves the aggregate unchanged.
func (a *Application) Update(patch Patch, now time.Time) error {
	if a.rec.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "application can only be edited in draft, status is %s", a.rec.Status)
	}
	if err := patch.Normalize(); err != nil {
		return err
	}
	patch.applyTo(&a.rec)
	a.rec.UpdatedAt = now
	return nil
}

// MissingRequirements lists what Submit would reject, as field identifiers.
func (a *Application) MissingRequirements() []string {
	var missing []string
	if !a.rec.Agreements.Terms {
		missing = append(missing, "agree_terms")
	}
	if !a.rec.Agreements.Privacy {
		missing = append(missing, "agree_privacy")
	}
	if a.rec.Business.Type == "" {
		missing = append(missing, "business_type")
	}
	for _, k := range MissingDocuments(a.rec.Business.Type, a.rec.Documents) {
		missing = append(missing, string(k))
	}
	return missing
}

// Submit moves a complete draft to submitted.
func (a *Application) Submit(now time.Time) error {
	if a.rec.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot submit an application in status %s", a.rec.Status)
	}
	if missing := a.MissingRequirements(); len(missing) > 0 {
		return dErrors.WithMissing("application is incomplete: missing "+strings.Join(missing, ", "), missing...)
	}
	a.rec.Status = StatusSubmitted
	a.rec.SubmittedAt = &now
	a.rec.UpdatedAt = now
	return nil
}

// StartReview marks a submitted application as picked up by staff.
func (a *Application) StartReview(now time.Time) error {
	if !a.rec.Status.CanTransitionTo(StatusReviewing) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot start review of an application in status %s", a.rec.Status)
	}
	a.rec.Status = StatusReviewing
	a.rec.UpdatedAt = now
	return nil
}

// Approve accepts a submitted or reviewing application.
func (a *Application) Approve(notes string, now time.Time) error {
	if !a.rec.Status.CanTransitionTo(StatusApproved) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot approve an application in status %s", a.rec.Status)
	}
	a.rec.Status = StatusApproved
	a.rec.ReviewedAt = &now
	a.rec.ReviewerNotes = notes
	a.rec.UpdatedAt = now
	return nil
}

// Reject declines a submitted or reviewing application. The reason is
// required and kept exactly as given.
func (a *Application) Reject(reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeMissingReason, "a rejection reason is required")
	}
	if !a.rec.Status.CanTransitionTo(StatusRejected) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot reject an application in status %s", a.rec.Status)
	}
	a.rec.Status = StatusRejected
	a.rec.ReviewedAt = &now
	a.rec.ReviewerNotes = reason
	a.rec.UpdatedAt = now
	return nil
}

func cloneRecord(r Record) Record {
	r.Agreements = cloneAgreements(r.Agreements)
	r.Classification.Keywords = slices.Clone(r.Classification.Keywords)
	r.Sales = cloneSales(r.Sales)
	r.Documents = maps.Clone(r.Documents)
	if r.Documents == nil {
		r.Documents = map[DocumentKind]string{}
	}
	r.SubmittedAt = clonePtr(r.SubmittedAt)
	r.ReviewedAt = clonePtr(r.ReviewedAt)
	return r
}

func cloneAgreements(a Agreements) Agreements {
	a.CardNetworks = slices.Clone(a.CardNetworks)
	return a
}

func cloneSales(s SalesProfile) SalesProfile {
	s.CardSalesRatio = clonePtr(s.CardSalesRatio)
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
