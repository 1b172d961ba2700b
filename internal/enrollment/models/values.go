package models

import (
	"regexp"
	"slices"
	"strings"

	dErrors "careon/pkg/domain-errors"
	pstrings "careon/pkg/platform/strings"
)

// BusinessType is the legal form declared on the national tax registration.
type BusinessType string

const (
	BusinessTypeIndividual BusinessType = "개인사업자"
	BusinessTypeCorporate  BusinessType = "법인사업자"
)

func ParseBusinessType(s string) (BusinessType, error) {
	bt := BusinessType(strings.TrimSpace(s))
	switch bt {
	case BusinessTypeIndividual, BusinessTypeCorporate:
		return bt, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "business_type must be %s or %s", BusinessTypeIndividual, BusinessTypeCorporate)
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if g != GenderMale && g != GenderFemale {
		return "", dErrors.New(dErrors.CodeValidation, "gender must be male or female")
	}
	return g, nil
}

// CardNetwork is a card company whose merchant agreement the applicant accepted.
type CardNetwork string

const (
	CardNetworkWoori   CardNetwork = "woori"
	CardNetworkBC      CardNetwork = "bc"
	CardNetworkKookmin CardNetwork = "kookmin"
	CardNetworkHana    CardNetwork = "hana"
	CardNetworkSamsung CardNetwork = "samsung"
)

var knownCardNetworks = []CardNetwork{CardNetworkWoori, CardNetworkBC, CardNetworkKookmin, CardNetworkHana, CardNetworkSamsung}

// KnownCardNetworks lists the card companies an applicant may agree to.
func KnownCardNetworks() []CardNetwork {
	return slices.Clone(knownCardNetworks)
}

// ParseCardNetworks lowercases, trims and dedupes codes, rejecting unknown ones.
func ParseCardNetworks(codes []string) ([]CardNetwork, error) {
	cleaned := pstrings.DedupeAndTrimLower(codes)
	out := make([]CardNetwork, 0, len(cleaned))
	for _, c := range cleaned {
		cn := CardNetwork(c)
		if !slices.Contains(knownCardNetworks, cn) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown card network %q", c)
		}
		out = append(out, cn)
	}
	return out, nil
}

// DocumentKind names one supporting document slot.
type DocumentKind string

const (
	DocBusinessRegistration  DocumentKind = "business_registration"
	DocIDCardFront           DocumentKind = "id_card_front"
	DocIDCardBack            DocumentKind = "id_card_back"
	DocBankbook              DocumentKind = "bankbook"
	DocBusinessLicense       DocumentKind = "business_license"
	DocSignPhoto             DocumentKind = "sign_photo"
	DocDoorClosed            DocumentKind = "door_closed"
	DocDoorOpen              DocumentKind = "door_open"
	DocInterior              DocumentKind = "interior"
	DocProduct               DocumentKind = "product"
	DocBusinessCard          DocumentKind = "business_card"
	DocCorporateRegistration DocumentKind = "corporate_registration"
	DocShareholderList       DocumentKind = "shareholder_list"
	DocSealCertificate       DocumentKind = "seal_certificate"
	DocSealUsage             DocumentKind = "seal_usage"
)

var documentKinds = []DocumentKind{
	DocBusinessRegistration, DocIDCardFront, DocIDCardBack, DocBankbook,
	DocBusinessLicense, DocSignPhoto, DocDoorClosed, DocDoorOpen, DocInterior,
	DocProduct, DocBusinessCard, DocCorporateRegistration, DocShareholderList,
	DocSealCertificate, DocSealUsage,
}

var (
	baseDocuments      = []DocumentKind{DocBusinessRegistration, DocIDCardFront, DocIDCardBack, DocBankbook}
	corporateDocuments = []DocumentKind{DocCorporateRegistration, DocShareholderList}
)

func ParseDocumentKind(s string) (DocumentKind, error) {
	k := DocumentKind(strings.TrimSpace(s))
	if !slices.Contains(documentKinds, k) {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown document kind %q", s)
	}
	return k, nil
}

// RequiredDocuments returns the documents submission needs for a business type.
func RequiredDocuments(bt BusinessType) []DocumentKind {
	req := slices.Clone(baseDocuments)
	if bt == BusinessTypeCorporate {
		req = append(req, corporateDocuments...)
	}
	return req
}

// MissingDocuments lists required kinds absent (or blank) in docs, in
// requirement order.
func MissingDocuments(bt BusinessType, docs map[DocumentKind]string) []DocumentKind {
	var missing []DocumentKind
	for _, k := range RequiredDocuments(bt) {
		if strings.TrimSpace(docs[k]) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

var (
	phonePattern          = regexp.MustCompile(`^01[0-9]-?[0-9]{3,4}-?[0-9]{4}$`)
	businessNumberPattern = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{5}$`)
	birthDatePattern      = regexp.MustCompile(`^\d{2}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])$`)
)

// NormalizePhoneNumber validates a Korean mobile number and returns it in
// 010-1234-5678 form.
func NormalizePhoneNumber(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !phonePattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "phone_number must be a mobile number such as 010-1234-5678")
	}
	digits := strings.ReplaceAll(s, "-", "")
	if len(digits) == 10 {
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:], nil
	}
	return digits[:3] + "-" + digits[3:7] + "-" + digits[7:], nil
}

// NormalizeBusinessNumber validates a 10-digit registration number and returns
// it in XXX-XX-XXXXX form.
func NormalizeBusinessNumber(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !businessNumberPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "business_number must be in XXX-XX-XXXXX format")
	}
	digits := strings.ReplaceAll(s, "-", "")
	return digits[:3] + "-" + digits[3:5] + "-" + digits[5:], nil
}

// ValidateBirthDate checks a YYMMDD birth date.
func ValidateBirthDate(s string) error {
	if !birthDatePattern.MatchString(s) {
		return dErrors.New(dErrors.CodeValidation, "birth_date must be YYMMDD")
	}
	return nil
}
