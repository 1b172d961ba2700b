package handler

import (
	"time"

	"careon/internal/enrollment/draft"
	"careon/internal/enrollment/models"
	"careon/internal/enrollment/steps"
)

type AgreementsResponse struct {
	Terms            bool     `json:"terms"`
	Privacy          bool     `json:"privacy"`
	Marketing        bool     `json:"marketing"`
	PaymentProcessor bool     `json:"payment_processor"`
	CardNetworks     []string `json:"card_networks"`
}

type RepresentativeResponse struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	BirthDate   string `json:"birth_date"`
	Gender      string `json:"gender"`
}

type BusinessResponse struct {
	Type        string   `json:"type,omitempty"`
	Name        string   `json:"name,omitempty"`
	Number      string   `json:"number,omitempty"`
	Address     string   `json:"address,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

type SalesResponse struct {
	MonthlyRevenueBand string `json:"monthly_revenue_band,omitempty"`
	CardSalesRatio     *int   `json:"card_sales_ratio,omitempty"`
	FlagshipProduct    string `json:"flagship_product,omitempty"`
	AverageTicketPrice string `json:"average_ticket_price,omitempty"`
}

type SettlementResponse struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// ApplicationResponse is the JSON view of an enrollment application.
type ApplicationResponse struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Status         string                 `json:"status"`
	Agreements     AgreementsResponse     `json:"agreements"`
	Representative RepresentativeResponse `json:"representative"`
	Business       BusinessResponse       `json:"business"`
	Sales          SalesResponse          `json:"sales"`
	Settlement     SettlementResponse     `json:"settlement"`
	Documents      map[string]string      `json:"documents"`
	Missing        []string               `json:"missing_requirements,omitempty"`
	ReviewerNotes  string                 `json:"reviewer_notes,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	SubmittedAt    *time.Time             `json:"submitted_at,omitempty"`
	ReviewedAt     *time.Time             `json:"reviewed_at,omitempty"`
}

func FromApplication(app *models.Application) *ApplicationResponse {
	agreements := app.Agreements()
	networks := make([]string, 0, len(agreements.CardNetworks))
	for _, cn := range agreements.CardNetworks {
		networks = append(networks, string(cn))
	}
	docs := make(map[string]string)
	for k, v := range app.Documents() {
		docs[string(k)] = v
	}
	rep := app.Representative()
	biz := app.Business()
	cls := app.Classification()
	sales := app.Sales()
	settlement := app.Settlement()

	resp := &ApplicationResponse{
		ID:     app.ID().String(),
		UserID: app.UserID().String(),
		Status: string(app.Status()),
		Agreements: AgreementsResponse{
			Terms:            agreements.Terms,
			Privacy:          agreements.Privacy,
			Marketing:        agreements.Marketing,
			PaymentProcessor: agreements.PaymentProcessor,
			CardNetworks:     networks,
		},
		Representative: RepresentativeResponse{
			Name:        rep.Name,
			PhoneNumber: rep.PhoneNumber,
			BirthDate:   rep.BirthDate,
			Gender:      string(rep.Gender),
		},
		Business: BusinessResponse{
			Type:        string(biz.Type),
			Name:        biz.Name,
			Number:      biz.Number,
			Address:     biz.Address,
			Category:    cls.Category,
			Subcategory: cls.Subcategory,
			Keywords:    cls.Keywords,
		},
		Sales: SalesResponse{
			MonthlyRevenueBand: sales.MonthlyRevenueBand,
			CardSalesRatio:     sales.CardSalesRatio,
			FlagshipProduct:    sales.FlagshipProduct,
		},
		Settlement: SettlementResponse{
			BankName:      settlement.BankName,
			AccountHolder: settlement.AccountHolder,
			AccountNumber: settlement.AccountNumber,
		},
		Documents:     docs,
		ReviewerNotes: app.ReviewerNotes(),
		CreatedAt:     app.CreatedAt(),
		UpdatedAt:     app.UpdatedAt(),
		SubmittedAt:   app.SubmittedAt(),
		ReviewedAt:    app.ReviewedAt(),
	}
	if sales.AverageTicketPrice.Valid {
		resp.Sales.AverageTicketPrice = sales.AverageTicketPrice.Decimal.String()
	}
	if app.Status() == models.StatusDraft {
		resp.Missing = app.MissingRequirements()
	}
	return resp
}

func fromApplications(apps []*models.Application) []*ApplicationResponse {
	out := make([]*ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, FromApplication(app))
	}
	return out
}

type ListResponse struct {
	Items      []*ApplicationResponse `json:"items"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
}

func FromListResult(r *models.ListResult) *ListResponse {
	return &ListResponse{
		Items:      fromApplications(r.Items),
		Total:      r.Total,
		Page:       r.Page,
		PageSize:   r.PageSize,
		TotalPages: r.TotalPages,
	}
}

type AvailabilityResponse struct {
	BusinessNumber string `json:"business_number"`
	Available      bool   `json:"available"`
}

type StepResponse struct {
	Index     int      `json:"index"`
	ID        string   `json:"id"`
	Order     int      `json:"order"`
	Title     string   `json:"title"`
	Collects  []string `json:"collects,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`
}

type CatalogResponse struct {
	Version string         `json:"version"`
	Steps   []StepResponse `json:"steps"`
}

func FromCatalog(c *steps.Catalog) *CatalogResponse {
	defs := c.Steps()
	resp := &CatalogResponse{Version: c.Version(), Steps: make([]StepResponse, 0, len(defs))}
	for i, d := range defs {
		resp.Steps = append(resp.Steps, StepResponse{
			Index:     i,
			ID:        d.ID,
			Order:     d.Order,
			Title:     d.Title,
			Collects:  d.Collects,
			DependsOn: d.DependsOn,
		})
	}
	return resp
}

// NavigationResponse describes the step the wizard should show.
type NavigationResponse struct {
	Index      int    `json:"index"`
	StepID     string `json:"step_id"`
	Title      string `json:"title"`
	Progress   int    `json:"progress"`
	Total      int    `json:"total"`
	CanAdvance bool   `json:"can_advance"`
	IsFirst    bool   `json:"is_first"`
	IsLast     bool   `json:"is_last"`
}

type DraftResponse struct {
	Data      models.FormData `json:"data"`
	StepIndex int             `json:"step_index"`
	SavedAt   time.Time       `json:"saved_at"`
	Version   string          `json:"version"`
	Device    string          `json:"device,omitempty"`
}

func FromSnapshot(s draft.Snapshot) *DraftResponse {
	return &DraftResponse{
		Data:      s.Data,
		StepIndex: s.StepIndex,
		SavedAt:   s.SavedAt,
		Version:   s.Version,
		Device:    s.Device,
	}
}
