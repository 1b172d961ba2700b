package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"careon/internal/enrollment/models"
	dErrors "careon/pkg/domain-errors"
)

const (
	maxNameLength    = 100
	maxReasonLength  = 2000
	maxDocumentCount = 32
)

// CreateRequest is the body of POST /enrollments.
type CreateRequest struct {
	AgreeTerms            bool     `json:"agree_terms"`
	AgreePrivacy          bool     `json:"agree_privacy"`
	AgreeMarketing        bool     `json:"agree_marketing"`
	AgreePaymentProcessor bool     `json:"agree_payment_processor"`
	CardNetworks          []string `json:"card_networks"`

	RepresentativeName string `json:"representative_name"`
	PhoneNumber        string `json:"phone_number"`
	BirthDate          string `json:"birth_date"`
	Gender             string `json:"gender"`
	BusinessType       string `json:"business_type"`

	draft models.DraftInput
}

// Validate parses card networks and business type; identity fields are
// checked by the aggregate.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.RepresentativeName) > maxNameLength {
		return dErrors.Newf(dErrors.CodeValidation, "representative_name must be at most %d characters", maxNameLength)
	}

	networks, err := models.ParseCardNetworks(r.CardNetworks)
	if err != nil {
		return err
	}
	var bt models.BusinessType
	if strings.TrimSpace(r.BusinessType) != "" {
		if bt, err = models.ParseBusinessType(r.BusinessType); err != nil {
			return err
		}
	}

	r.draft = models.DraftInput{
		Agreements: models.Agreements{
			Terms:            r.AgreeTerms,
			Privacy:          r.AgreePrivacy,
			Marketing:        r.AgreeMarketing,
			PaymentProcessor: r.AgreePaymentProcessor,
			CardNetworks:     networks,
		},
		Representative: models.Representative{
			Name:        r.RepresentativeName,
			PhoneNumber: r.PhoneNumber,
			BirthDate:   strings.TrimSpace(r.BirthDate),
			Gender:      models.Gender(r.Gender),
		},
		BusinessType: bt,
	}
	return nil
}

func (r *CreateRequest) DraftInput() models.DraftInput {
	return r.draft
}

// UpdateRequest is the body of PATCH /enrollments/{id}. Absent fields are left
// unchanged; a null document URL clears that document.
type UpdateRequest struct {
	AgreeTerms            *bool     `json:"agree_terms"`
	AgreePrivacy          *bool     `json:"agree_privacy"`
	AgreeMarketing        *bool     `json:"agree_marketing"`
	AgreePaymentProcessor *bool     `json:"agree_payment_processor"`
	CardNetworks          *[]string `json:"card_networks"`

	RepresentativeName *string `json:"representative_name"`
	PhoneNumber        *string `json:"phone_number"`
	BirthDate          *string `json:"birth_date"`
	Gender             *string `json:"gender"`

	BusinessType    *string `json:"business_type"`
	BusinessName    *string `json:"business_name"`
	BusinessNumber  *string `json:"business_number"`
	BusinessAddress *string `json:"business_address"`

	BusinessCategory    *string   `json:"business_category"`
	BusinessSubcategory *string   `json:"business_subcategory"`
	BusinessKeywords    *[]string `json:"business_keywords"`

	MonthlyRevenueBand *string          `json:"monthly_revenue_band"`
	CardSalesRatio     *int             `json:"card_sales_ratio"`
	FlagshipProduct    *string          `json:"flagship_product"`
	AverageTicketPrice *decimal.Decimal `json:"average_ticket_price"`

	BankName      *string `json:"bank_name"`
	AccountHolder *string `json:"account_holder"`
	AccountNumber *string `json:"account_number"`

	Documents map[string]*string `json:"documents"`

	patch models.Patch
}

// Validate builds the domain patch and normalizes it so format errors surface
// as 400s before the application is loaded.
func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Documents) > maxDocumentCount {
		return dErrors.New(dErrors.CodeValidation, "too many documents")
	}

	p := models.Patch{
		AgreeTerms:            r.AgreeTerms,
		AgreePrivacy:          r.AgreePrivacy,
		AgreeMarketing:        r.AgreeMarketing,
		AgreePaymentProcessor: r.AgreePaymentProcessor,
		CardNetworks:          r.CardNetworks,
		RepresentativeName:    r.RepresentativeName,
		PhoneNumber:           r.PhoneNumber,
		BirthDate:             r.BirthDate,
		Gender:                r.Gender,
		BusinessType:          r.BusinessType,
		BusinessName:          r.BusinessName,
		BusinessNumber:        r.BusinessNumber,
		BusinessAddress:       r.BusinessAddress,
		BusinessCategory:      r.BusinessCategory,
		BusinessSubcategory:   r.BusinessSubcategory,
		BusinessKeywords:      r.BusinessKeywords,
		MonthlyRevenueBand:    r.MonthlyRevenueBand,
		CardSalesRatio:        r.CardSalesRatio,
		FlagshipProduct:       r.FlagshipProduct,
		AverageTicketPrice:    r.AverageTicketPrice,
		BankName:              r.BankName,
		AccountHolder:         r.AccountHolder,
		AccountNumber:         r.AccountNumber,
	}
	if r.Documents != nil {
		p.Documents = make(map[models.DocumentKind]*string, len(r.Documents))
		for k, v := range r.Documents {
			p.Documents[models.DocumentKind(k)] = v
		}
	}
	if err := p.Normalize(); err != nil {
		return err
	}
	r.patch = p
	return nil
}

func (r *UpdateRequest) Patch() models.Patch {
	return r.patch
}

// ApproveRequest is the optional body of POST /admin/enrollments/{id}/approve.
type ApproveRequest struct {
	Notes string `json:"notes"`
}

func (r *ApproveRequest) Validate() error {
	if len(r.Notes) > maxReasonLength {
		return dErrors.Newf(dErrors.CodeValidation, "notes must be at most %d characters", maxReasonLength)
	}
	return nil
}

// RejectRequest is the body of POST /admin/enrollments/{id}/reject. The
// reason is stored verbatim; blank reasons are refused by the aggregate.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if len(r.Reason) > maxReasonLength {
		return dErrors.Newf(dErrors.CodeValidation, "reason must be at most %d characters", maxReasonLength)
	}
	return nil
}

type Direction string

const (
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
	DirectionStay     Direction = "stay"
)

// NavigateRequest is the body of POST /enrollment/steps/navigate.
type NavigateRequest struct {
	CurrentIndex int             `json:"current_index"`
	Direction    Direction       `json:"direction"`
	Data         models.FormData `json:"data"`
}

func (r *NavigateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Direction = Direction(strings.ToLower(strings.TrimSpace(string(r.Direction))))
	switch r.Direction {
	case "":
		r.Direction = DirectionStay
	case DirectionNext, DirectionPrevious, DirectionStay:
	default:
		return dErrors.New(dErrors.CodeValidation, "direction must be next, previous or stay")
	}
	if r.CurrentIndex < 0 {
		return dErrors.New(dErrors.CodeValidation, "current_index cannot be negative")
	}
	return nil
}

// DraftRequest is the body of PUT /me/enrollment-draft.
type DraftRequest struct {
	Data      models.FormData `json:"data"`
	StepIndex int             `json:"step_index"`
	// Immediate skips the debounce, e.g. when the page is being closed.
	Immediate bool `json:"immediate"`
}

func (r *DraftRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Data.Documents) > maxDocumentCount {
		return dErrors.New(dErrors.CodeValidation, "too many documents")
	}
	return nil
}
