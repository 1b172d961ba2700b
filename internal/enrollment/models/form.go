package models

// FormData is the wizard's working field set. The step catalog evaluates its
// predicates against it and the draft autosave persists it verbatim; it is not
// the aggregate and carries fields (carrier, store area, install preferences)
// that never reach the application record.
type FormData struct {
	AgreeTerms            bool     `json:"agreeTerms"`
	AgreePrivacy          bool     `json:"agreePrivacy"`
	AgreeMarketing        bool     `json:"agreeMarketing"`
	AgreePaymentProcessor bool     `json:"agreePaymentProcessor"`
	CardNetworks          []string `json:"cardNetworks,omitempty"`

	OwnerName   string `json:"ownerName"`
	BirthDate   string `json:"birthDate"`
	BirthGender string `json:"birthGender"`
	Carrier     string `json:"carrier"`
	MVNOCarrier string `json:"mvnoCarrier,omitempty"`
	PhoneNumber string `json:"phoneNumber"`

	BusinessName   string `json:"businessName"`
	BusinessNumber string `json:"businessNumber"`
	Email          string `json:"email"`

	StoreName     string `json:"storeName"`
	StoreAddress  string `json:"storeAddress"`
	StoreArea     string `json:"storeArea"`
	NeedLocalData bool   `json:"needLocalData"`

	ApplicationType string `json:"applicationType"`
	NeedDeliveryApp *bool  `json:"needDeliveryApp,omitempty"`

	BusinessType        string `json:"businessType"`
	OwnershipType       string `json:"ownershipType"`
	LicenseType         string `json:"licenseType"`
	BusinessCategory    string `json:"businessCategory"`
	BusinessSubcategory string `json:"businessSubcategory,omitempty"`

	MonthlySales string `json:"monthlySales"`
	MainProduct  string `json:"mainProduct"`
	UnitPrice    string `json:"unitPrice"`

	HasInternet             *bool  `json:"hasInternet,omitempty"`
	HasCCTV                 *bool  `json:"hasCCTV,omitempty"`
	InternetInstallSchedule string `json:"internetInstallSchedule,omitempty"`
	CCTVInstallSchedule     string `json:"cctvInstallSchedule,omitempty"`
	WantFreeService         *bool  `json:"wantFreeService,omitempty"`

	BankName      string `json:"bankName"`
	AccountHolder string `json:"accountHolder"`
	AccountNumber string `json:"accountNumber"`

	Documents map[string]string `json:"documents,omitempty"`
}

// DocumentMap converts the form's document slots into typed kinds, dropping
// unknown keys.
func (f FormData) DocumentMap() map[DocumentKind]string {
	out := make(map[DocumentKind]string, len(f.Documents))
	for k, v := range f.Documents {
		if kind, err := ParseDocumentKind(k); err == nil {
			out[kind] = v
		}
	}
	return out
}
