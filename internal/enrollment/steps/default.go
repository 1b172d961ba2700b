package steps

import (
	"strings"

	"careon/internal/enrollment/models"
)

// DefaultVersion identifies the catalog served to clients.
const DefaultVersion = "2024.1"

// Step ids referenced outside the catalog.
const (
	StepAgreements      = "agreements"
	StepInternetInstall = "internet-install"
	StepCCTVInstall     = "cctv-install"
	StepDocumentUpload  = "document-upload"
	StepSuccess         = "success"
)

// Default is the merchant onboarding wizard.
var Default = MustCatalog(DefaultVersion,
	Definition{
		ID: StepAgreements, Order: 1, Title: "약관 동의",
		Validate: func(f models.FormData) bool { return f.AgreeTerms && f.AgreePrivacy },
		Collects: []string{"agreeTerms", "agreePrivacy", "agreeMarketing"},
	},
	Definition{
		ID: "owner-info", Order: 2, Title: "대표자 정보",
		Validate: validOwnerInfo,
		Collects: []string{"ownerName", "birthDate", "birthGender", "carrier", "mvnoCarrier", "phoneNumber"},
	},
	Definition{
		ID: "card-agreements", Order: 3, Title: "카드사 약관 동의",
		Validate: func(f models.FormData) bool { return f.AgreePaymentProcessor },
		Collects: []string{"agreePaymentProcessor", "cardNetworks"},
	},
	Definition{
		ID: "contact-business", Order: 4, Title: "연락처 및 사업자 정보",
		Validate: validContactBusiness,
		Collects: []string{"businessName", "businessNumber", "email"},
	},
	Definition{
		ID: "store-info", Order: 5, Title: "매장 정보",
		Validate: func(f models.FormData) bool {
			return notBlank(f.StoreName) && notBlank(f.StoreAddress) && (notBlank(f.StoreArea) || f.NeedLocalData)
		},
		Collects: []string{"storeName", "storeAddress", "storeArea", "needLocalData"},
	},
	Definition{
		ID: "application-type", Order: 6, Title: "신청 유형",
		Validate: func(f models.FormData) bool { return notBlank(f.ApplicationType) },
		Collects: []string{"applicationType"},
	},
	Definition{
		ID: "delivery-app", Order: 7, Title: "배달앱 연동",
		Validate: func(f models.FormData) bool { return f.NeedDeliveryApp != nil },
		Collects: []string{"needDeliveryApp"},
	},
	Definition{
		ID: "business-type", Order: 8, Title: "사업자 유형",
		Validate: func(f models.FormData) bool {
			_, err := models.ParseBusinessType(f.BusinessType)
			return err == nil
		},
		Collects: []string{"businessType"},
	},
	Definition{
		ID: "ownership-type", Order: 9, Title: "매장 소유 형태",
		Validate: func(f models.FormData) bool { return notBlank(f.OwnershipType) },
		Collects: []string{"ownershipType"},
	},
	Definition{
		ID: "license-type", Order: 10, Title: "인허가 유형",
		Validate: func(f models.FormData) bool { return notBlank(f.LicenseType) },
		Collects: []string{"licenseType"},
	},
	Definition{
		ID: "business-category", Order: 11, Title: "업종",
		Validate: func(f models.FormData) bool { return notBlank(f.BusinessCategory) },
		Collects: []string{"businessCategory", "businessSubcategory"},
	},
	Definition{
		ID: "sales-info", Order: 12, Title: "매출 정보",
		Validate: func(f models.FormData) bool {
			return notBlank(f.MonthlySales) && notBlank(f.MainProduct) && notBlank(f.UnitPrice)
		},
		Collects: []string{"monthlySales", "mainProduct", "unitPrice"},
	},
	Definition{
		ID: "internet-cctv-check", Order: 13, Title: "인터넷/CCTV 보유 확인",
		Validate: func(f models.FormData) bool { return f.HasInternet != nil && f.HasCCTV != nil },
		Collects: []string{"hasInternet", "hasCCTV"},
	},
	Definition{
		ID: StepInternetInstall, Order: 14, Title: "인터넷 설치 신청",
		Applicable: func(f models.FormData) bool { return f.HasInternet != nil && !*f.HasInternet },
		Collects:   []string{"internetInstallSchedule"},
		DependsOn:  []string{"hasInternet"},
	},
	Definition{
		ID: StepCCTVInstall, Order: 15, Title: "CCTV 설치 신청",
		Applicable: func(f models.FormData) bool { return f.HasCCTV != nil && !*f.HasCCTV },
		Collects:   []string{"cctvInstallSchedule"},
		DependsOn:  []string{"hasCCTV"},
	},
	Definition{
		ID: "free-service", Order: 16, Title: "무료 부가서비스",
		Validate: func(f models.FormData) bool { return f.WantFreeService != nil },
		Collects: []string{"wantFreeService"},
	},
	Definition{
		ID: "first-completion", Order: 17, Title: "1차 신청 완료",
	},
	Definition{
		ID: "settlement-info", Order: 18, Title: "정산 계좌",
		Validate: func(f models.FormData) bool {
			return notBlank(f.BankName) && notBlank(f.AccountHolder) && notBlank(f.AccountNumber)
		},
		Collects: []string{"bankName", "accountHolder", "accountNumber"},
	},
	Definition{
		ID: StepDocumentUpload, Order: 19, Title: "서류 제출",
		Validate: func(f models.FormData) bool {
			return len(models.MissingDocuments(models.BusinessType(f.BusinessType), f.DocumentMap())) == 0
		},
		Collects: []string{"documents"},
	},
	Definition{
		ID: "final-confirmation", Order: 20, Title: "최종 확인",
		Validate: func(f models.FormData) bool { return f.AgreeTerms && f.AgreePrivacy },
	},
	Definition{
		ID: StepSuccess, Order: 21, Title: "신청 완료",
	},
)

func notBlank(s string) bool { return strings.TrimSpace(s) != "" }

func validOwnerInfo(f models.FormData) bool {
	if !notBlank(f.OwnerName) || len(f.BirthDate) != 6 || len(f.BirthGender) != 1 || !notBlank(f.Carrier) {
		return false
	}
	if f.Carrier == "mvno" && !notBlank(f.MVNOCarrier) {
		return false
	}
	return len(strings.ReplaceAll(f.PhoneNumber, "-", "")) >= 10
}

func validContactBusiness(f models.FormData) bool {
	if !notBlank(f.BusinessName) {
		return false
	}
	if _, err := models.NormalizeBusinessNumber(f.BusinessNumber); err != nil {
		return false
	}
	return strings.Contains(f.Email, "@")
}
