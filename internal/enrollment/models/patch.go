package models

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "careon/pkg/domain-errors"
	pstrings "careon/pkg/platform/strings"
)

const maxKeywords = 10

// Average ticket price is stored as NUMERIC(14, 2).
const ticketPriceScale = 2

var maxTicketPrice = decimal.New(1, 12)

// Patch is a partial update of applicant-editable fields. Nil fields are left
// unchanged. A Documents entry with a nil value clears that document.
type Patch struct {
	AgreeTerms            *bool
	AgreePrivacy          *bool
	AgreeMarketing        *bool
	AgreePaymentProcessor *bool
	CardNetworks          *[]string

	RepresentativeName *string
	PhoneNumber        *string
	BirthDate          *string
	Gender             *string

	BusinessType    *string
	BusinessName    *string
	BusinessNumber  *string
	BusinessAddress *string

	BusinessCategory    *string
	BusinessSubcategory *string
	BusinessKeywords    *[]string

	MonthlyRevenueBand *string
	CardSalesRatio     *int
	FlagshipProduct    *string
	AverageTicketPrice *decimal.Decimal

	BankName      *string
	AccountHolder *string
	AccountNumber *string

	Documents map[DocumentKind]*string

	cardNetworks []CardNetwork
	normalized   bool
}

// Normalize validates every present field and rewrites values into canonical
// form (trimmed text, hyphenated numbers, deduplicated lists).
func (p *Patch) Normalize() error {
	if p.normalized {
		return nil
	}

	if p.CardNetworks != nil {
		cns, err := ParseCardNetworks(*p.CardNetworks)
		if err != nil {
			return err
		}
		p.cardNetworks = cns
	}

	if p.RepresentativeName != nil {
		name := strings.TrimSpace(*p.RepresentativeName)
		if name == "" {
			return dErrors.New(dErrors.CodeValidation, "representative_name cannot be blank")
		}
		p.RepresentativeName = &name
	}
	if p.PhoneNumber != nil {
		phone, err := NormalizePhoneNumber(*p.PhoneNumber)
		if err != nil {
			return err
		}
		p.PhoneNumber = &phone
	}
	if p.BirthDate != nil {
		birth := strings.TrimSpace(*p.BirthDate)
		if err := ValidateBirthDate(birth); err != nil {
			return err
		}
		p.BirthDate = &birth
	}
	if p.Gender != nil {
		g, err := ParseGender(*p.Gender)
		if err != nil {
			return err
		}
		gs := string(g)
		p.Gender = &gs
	}

	if p.BusinessType != nil {
		bt, err := ParseBusinessType(*p.BusinessType)
		if err != nil {
			return err
		}
		bts := string(bt)
		p.BusinessType = &bts
	}
	if p.BusinessNumber != nil && strings.TrimSpace(*p.BusinessNumber) != "" {
		bn, err := NormalizeBusinessNumber(*p.BusinessNumber)
		if err != nil {
			return err
		}
		p.BusinessNumber = &bn
	} else if p.BusinessNumber != nil {
		empty := ""
		p.BusinessNumber = &empty
	}
	p.BusinessName = trimPtr(p.BusinessName)
	p.BusinessAddress = trimPtr(p.BusinessAddress)
	p.BusinessCategory = trimPtr(p.BusinessCategory)
	p.BusinessSubcategory = trimPtr(p.BusinessSubcategory)

	if p.BusinessKeywords != nil {
		kws := pstrings.Limit(pstrings.DedupeAndTrim(*p.BusinessKeywords), maxKeywords)
		p.BusinessKeywords = &kws
	}

	if p.CardSalesRatio != nil && (*p.CardSalesRatio < 0 || *p.CardSalesRatio > 100) {
		return dErrors.New(dErrors.CodeValidation, "card_sales_ratio must be between 0 and 100")
	}
	if p.AverageTicketPrice != nil {
		if err := validateTicketPrice(*p.AverageTicketPrice); err != nil {
			return err
		}
	}
	p.MonthlyRevenueBand = trimPtr(p.MonthlyRevenueBand)
	p.FlagshipProduct = trimPtr(p.FlagshipProduct)

	p.BankName = trimPtr(p.BankName)
	p.AccountHolder = trimPtr(p.AccountHolder)
	if p.AccountNumber != nil {
		acct := strings.TrimSpace(*p.AccountNumber)
		if acct != "" && !isAccountNumber(acct) {
			return dErrors.New(dErrors.CodeValidation, "account_number may contain only digits and hyphens")
		}
		p.AccountNumber = &acct
	}

	for kind, url := range p.Documents {
		if _, err := ParseDocumentKind(string(kind)); err != nil {
			return err
		}
		if url != nil {
			trimmed := strings.TrimSpace(*url)
			if trimmed == "" {
				p.Documents[kind] = nil
			} else {
				p.Documents[kind] = &trimmed
			}
		}
	}

	p.normalized = true
	return nil
}

func validateTicketPrice(d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return dErrors.New(dErrors.CodeValidation, "average_ticket_price cannot be negative")
	case d.GreaterThanOrEqual(maxTicketPrice):
		return dErrors.Newf(dErrors.CodeValidation, "average_ticket_price must be below %s", maxTicketPrice.String())
	case !d.Equal(d.Round(ticketPriceScale)):
		return dErrors.Newf(dErrors.CodeValidation, "average_ticket_price allows at most %d decimal places", ticketPriceScale)
	}
	return nil
}

// NewBusinessNumber returns the business number the patch assigns, if it
// assigns a non-empty one. Call after Normalize.
func (p *Patch) NewBusinessNumber() (string, bool) {
	if p.BusinessNumber == nil || *p.BusinessNumber == "" {
		return "", false
	}
	return *p.BusinessNumber, true
}

func (p *Patch) applyTo(r *Record) {
	setIf(&r.Agreements.Terms, p.AgreeTerms)
	setIf(&r.Agreements.Privacy, p.AgreePrivacy)
	setIf(&r.Agreements.Marketing, p.AgreeMarketing)
	setIf(&r.Agreements.PaymentProcessor, p.AgreePaymentProcessor)
	if p.CardNetworks != nil {
		r.Agreements.CardNetworks = slices.Clone(p.cardNetworks)
	}

	setIf(&r.Representative.Name, p.RepresentativeName)
	setIf(&r.Representative.PhoneNumber, p.PhoneNumber)
	setIf(&r.Representative.BirthDate, p.BirthDate)
	if p.Gender != nil {
		r.Representative.Gender = Gender(*p.Gender)
	}

	if p.BusinessType != nil {
		r.Business.Type = BusinessType(*p.BusinessType)
	}
	setIf(&r.Business.Name, p.BusinessName)
	setIf(&r.Business.Number, p.BusinessNumber)
	setIf(&r.Business.Address, p.BusinessAddress)

	setIf(&r.Classification.Category, p.BusinessCategory)
	setIf(&r.Classification.Subcategory, p.BusinessSubcategory)
	if p.BusinessKeywords != nil {
		r.Classification.Keywords = slices.Clone(*p.BusinessKeywords)
	}

	setIf(&r.Sales.MonthlyRevenueBand, p.MonthlyRevenueBand)
	if p.CardSalesRatio != nil {
		ratio := *p.CardSalesRatio
		r.Sales.CardSalesRatio = &ratio
	}
	setIf(&r.Sales.FlagshipProduct, p.FlagshipProduct)
	if p.AverageTicketPrice != nil {
		r.Sales.AverageTicketPrice = decimal.NewNullDecimal(*p.AverageTicketPrice)
	}

	setIf(&r.Settlement.BankName, p.BankName)
	setIf(&r.Settlement.AccountHolder, p.AccountHolder)
	setIf(&r.Settlement.AccountNumber, p.AccountNumber)

	if len(p.Documents) > 0 && r.Documents == nil {
		r.Documents = map[DocumentKind]string{}
	}
	for kind, url := range p.Documents {
		if url == nil {
			delete(r.Documents, kind)
			continue
		}
		r.Documents[kind] = *url
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func isAccountNumber(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-':
		default:
			return false
		}
	}
	return digits >= 6
}
