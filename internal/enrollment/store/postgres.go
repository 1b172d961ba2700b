package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
	"careon/pkg/platform/sentinel"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// Migrate applies the embedded schema files in name order. Every statement is
// idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)
	for _, name := range names {
		script, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// Postgres persists applications in the enrollment_applications table.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type applicationRow struct {
	ID     uuid.UUID `db:"id"`
	UserID uuid.UUID `db:"user_id"`
	Status string    `db:"status"`

	AgreeTerms            bool           `db:"agree_terms"`
	AgreePrivacy          bool           `db:"agree_privacy"`
	AgreeMarketing        bool           `db:"agree_marketing"`
	AgreePaymentProcessor bool           `db:"agree_payment_processor"`
	CardNetworks          pq.StringArray `db:"card_networks"`

	RepresentativeName string `db:"representative_name"`
	PhoneNumber        string `db:"phone_number"`
	BirthDate          string `db:"birth_date"`
	Gender             string `db:"gender"`

	BusinessType    string         `db:"business_type"`
	BusinessName    string         `db:"business_name"`
	BusinessNumber  sql.NullString `db:"business_number"`
	BusinessAddress string         `db:"business_address"`

	BusinessCategory    string         `db:"business_category"`
	BusinessSubcategory string         `db:"business_subcategory"`
	BusinessKeywords    pq.StringArray `db:"business_keywords"`

	MonthlyRevenueBand string              `db:"monthly_revenue_band"`
	CardSalesRatio     sql.NullInt32       `db:"card_sales_ratio"`
	FlagshipProduct    string              `db:"flagship_product"`
	AverageTicketPrice decimal.NullDecimal `db:"average_ticket_price"`

	BankName      string `db:"bank_name"`
	AccountHolder string `db:"account_holder"`
	AccountNumber string `db:"account_number"`

	Documents []byte `db:"documents"`

	SubmittedAt   sql.NullTime `db:"submitted_at"`
	ReviewedAt    sql.NullTime `db:"reviewed_at"`
	ReviewerNotes string       `db:"reviewer_notes"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

const selectColumns = `id, user_id, status,
	agree_terms, agree_privacy, agree_marketing, agree_payment_processor, card_networks,
	representative_name, phone_number, birth_date, gender,
	business_type, business_name, business_number, business_address,
	business_category, business_subcategory, business_keywords,
	monthly_revenue_band, card_sales_ratio, flagship_product, average_ticket_price,
	bank_name, account_holder, account_number, documents,
	submitted_at, reviewed_at, reviewer_notes, created_at, updated_at`

const upsertQuery = `
	INSERT INTO enrollment_applications (` + selectColumns + `) VALUES (
		:id, :user_id, :status,
		:agree_terms, :agree_privacy, :agree_marketing, :agree_payment_processor, :card_networks,
		:representative_name, :phone_number, :birth_date, :gender,
		:business_type, :business_name, :business_number, :business_address,
		:business_category, :business_subcategory, :business_keywords,
		:monthly_revenue_band, :card_sales_ratio, :flagship_product, :average_ticket_price,
		:bank_name, :account_holder, :account_number, :documents,
		:submitted_at, :reviewed_at, :reviewer_notes, :created_at, :updated_at
	)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		agree_terms = EXCLUDED.agree_terms,
		agree_privacy = EXCLUDED.agree_privacy,
		agree_marketing = EXCLUDED.agree_marketing,
		agree_payment_processor = EXCLUDED.agree_payment_processor,
		card_networks = EXCLUDED.card_networks,
		representative_name = EXCLUDED.representative_name,
		phone_number = EXCLUDED.phone_number,
		birth_date = EXCLUDED.birth_date,
		gender = EXCLUDED.gender,
		business_type = EXCLUDED.business_type,
		business_name = EXCLUDED.business_name,
		business_number = EXCLUDED.business_number,
		business_address = EXCLUDED.business_address,
		business_category = EXCLUDED.business_category,
		business_subcategory = EXCLUDED.business_subcategory,
		business_keywords = EXCLUDED.business_keywords,
		monthly_revenue_band = EXCLUDED.monthly_revenue_band,
		card_sales_ratio = EXCLUDED.card_sales_ratio,
		flagship_product = EXCLUDED.flagship_product,
		average_ticket_price = EXCLUDED.average_ticket_price,
		bank_name = EXCLUDED.bank_name,
		account_holder = EXCLUDED.account_holder,
		account_number = EXCLUDED.account_number,
		documents = EXCLUDED.documents,
		submitted_at = EXCLUDED.submitted_at,
		reviewed_at = EXCLUDED.reviewed_at,
		reviewer_notes = EXCLUDED.reviewer_notes,
		updated_at = EXCLUDED.updated_at`

func (s *Postgres) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	return s.getOne(ctx, `SELECT `+selectColumns+` FROM enrollment_applications WHERE id = $1`, uuid.UUID(appID))
}

func (s *Postgres) FindByBusinessNumber(ctx context.Context, number string) (*models.Application, error) {
	if number == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+selectColumns+` FROM enrollment_applications WHERE business_number = $1`, number)
}

func (s *Postgres) getOne(ctx context.Context, query string, arg any) (*models.Application, error) {
	var row applicationRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find enrollment application: %w", err)
	}
	return row.toApplication()
}

func (s *Postgres) FindByUserID(ctx context.Context, userID id.UserID) ([]*models.Application, error) {
	var rows []applicationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+selectColumns+` FROM enrollment_applications WHERE user_id = $1 ORDER BY created_at DESC, id`,
		uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("find enrollment applications by user: %w", err)
	}
	return toApplications(rows)
}

// FindAll runs the count and the page query concurrently; both see the same
// filter but not necessarily the same snapshot.
func (s *Postgres) FindAll(ctx context.Context, filters models.Filters) (*models.ListResult, error) {
	filters = filters.Normalize()
	where, args := whereClause(filters)

	var (
		total int
		rows  []applicationRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.GetContext(gctx, &total, `SELECT COUNT(*) FROM enrollment_applications`+where, args...); err != nil {
			return fmt.Errorf("count enrollment applications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		pageArgs := append(slices.Clone(args), filters.PageSize, filters.Offset())
		query := fmt.Sprintf(`SELECT %s FROM enrollment_applications%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
			selectColumns, where, len(args)+1, len(args)+2)
		if err := s.db.SelectContext(gctx, &rows, query, pageArgs...); err != nil {
			return fmt.Errorf("list enrollment applications: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items, err := toApplications(rows)
	if err != nil {
		return nil, err
	}
	return models.NewListResult(items, total, filters), nil
}

func whereClause(f models.Filters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+next(string(f.Status)))
	}
	if !f.UserID.IsNil() {
		conds = append(conds, "user_id = "+next(uuid.UUID(f.UserID)))
	}
	if f.Search != "" {
		p := next("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf("(representative_name ILIKE %[1]s OR business_name ILIKE %[1]s OR business_number LIKE %[1]s)", p))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Save upserts by id. The partial unique index on business_number turns a
// concurrent claim of the same number into sentinel.ErrConflict.
func (s *Postgres) Save(ctx context.Context, app *models.Application) (*models.Application, error) {
	rec := app.Snapshot()
	if rec.ID.IsNil() {
		rec.ID = id.NewApplicationID()
	}
	row, err := fromRecord(rec)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertQuery, row); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("save enrollment application: %w", err)
	}
	return models.Rehydrate(rec), nil
}

func (s *Postgres) Delete(ctx context.Context, appID id.ApplicationID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrollment_applications WHERE id = $1`, uuid.UUID(appID))
	if err != nil {
		return fmt.Errorf("delete enrollment application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ExistsByBusinessNumber(ctx context.Context, number string) (bool, error) {
	if number == "" {
		return false, nil
	}
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM enrollment_applications WHERE business_number = $1)`, number)
	if err != nil {
		return false, fmt.Errorf("check business number: %w", err)
	}
	return exists, nil
}

func fromRecord(r models.Record) (applicationRow, error) {
	docs := make(map[string]string, len(r.Documents))
	for k, v := range r.Documents {
		docs[string(k)] = v
	}
	docJSON, err := json.Marshal(docs)
	if err != nil {
		return applicationRow{}, fmt.Errorf("encode documents: %w", err)
	}
	cards := make(pq.StringArray, 0, len(r.Agreements.CardNetworks))
	for _, cn := range r.Agreements.CardNetworks {
		cards = append(cards, string(cn))
	}

	row := applicationRow{
		ID:                    uuid.UUID(r.ID),
		UserID:                uuid.UUID(r.UserID),
		Status:                string(r.Status),
		AgreeTerms:            r.Agreements.Terms,
		AgreePrivacy:          r.Agreements.Privacy,
		AgreeMarketing:        r.Agreements.Marketing,
		AgreePaymentProcessor: r.Agreements.PaymentProcessor,
		CardNetworks:          cards,
		RepresentativeName:    r.Representative.Name,
		PhoneNumber:           r.Representative.PhoneNumber,
		BirthDate:             r.Representative.BirthDate,
		Gender:                string(r.Representative.Gender),
		BusinessType:          string(r.Business.Type),
		BusinessName:          r.Business.Name,
		BusinessNumber:        sql.NullString{String: r.Business.Number, Valid: r.Business.Number != ""},
		BusinessAddress:       r.Business.Address,
		BusinessCategory:      r.Classification.Category,
		BusinessSubcategory:   r.Classification.Subcategory,
		BusinessKeywords:      pq.StringArray(append([]string{}, r.Classification.Keywords...)),
		MonthlyRevenueBand:    r.Sales.MonthlyRevenueBand,
		FlagshipProduct:       r.Sales.FlagshipProduct,
		AverageTicketPrice:    r.Sales.AverageTicketPrice,
		BankName:              r.Settlement.BankName,
		AccountHolder:         r.Settlement.AccountHolder,
		AccountNumber:         r.Settlement.AccountNumber,
		Documents:             docJSON,
		ReviewerNotes:         r.ReviewerNotes,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.Sales.CardSalesRatio != nil {
		row.CardSalesRatio = sql.NullInt32{Int32: int32(*r.Sales.CardSalesRatio), Valid: true}
	}
	if r.SubmittedAt != nil {
		row.SubmittedAt = sql.NullTime{Time: *r.SubmittedAt, Valid: true}
	}
	if r.ReviewedAt != nil {
		row.ReviewedAt = sql.NullTime{Time: *r.ReviewedAt, Valid: true}
	}
	return row, nil
}

func (row applicationRow) toApplication() (*models.Application, error) {
	var docs map[string]string
	if len(row.Documents) > 0 {
		if err := json.Unmarshal(row.Documents, &docs); err != nil {
			return nil, fmt.Errorf("decode documents of %s: %w", row.ID, err)
		}
	}
	documents := make(map[models.DocumentKind]string, len(docs))
	for k, v := range docs {
		documents[models.DocumentKind(k)] = v
	}
	cards := make([]models.CardNetwork, 0, len(row.CardNetworks))
	for _, c := range row.CardNetworks {
		cards = append(cards, models.CardNetwork(c))
	}

	rec := models.Record{
		ID:        id.ApplicationID(row.ID),
		UserID:    id.UserID(row.UserID),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Agreements: models.Agreements{
			Terms:            row.AgreeTerms,
			Privacy:          row.AgreePrivacy,
			Marketing:        row.AgreeMarketing,
			PaymentProcessor: row.AgreePaymentProcessor,
			CardNetworks:     cards,
		},
		Representative: models.Representative{
			Name:        row.RepresentativeName,
			PhoneNumber: row.PhoneNumber,
			BirthDate:   row.BirthDate,
			Gender:      models.Gender(row.Gender),
		},
		Business: models.Business{
			Type:    models.BusinessType(row.BusinessType),
			Name:    row.BusinessName,
			Number:  row.BusinessNumber.String,
			Address: row.BusinessAddress,
		},
		Classification: models.Classification{
			Category:    row.BusinessCategory,
			Subcategory: row.BusinessSubcategory,
			Keywords:    []string(row.BusinessKeywords),
		},
		Sales: models.SalesProfile{
			MonthlyRevenueBand: row.MonthlyRevenueBand,
			FlagshipProduct:    row.FlagshipProduct,
			AverageTicketPrice: row.AverageTicketPrice,
		},
		Settlement: models.Settlement{
			BankName:      row.BankName,
			AccountHolder: row.AccountHolder,
			AccountNumber: row.AccountNumber,
		},
		Documents:     documents,
		Status:        models.Status(row.Status),
		ReviewerNotes: row.ReviewerNotes,
	}
	if row.CardSalesRatio.Valid {
		ratio := int(row.CardSalesRatio.Int32)
		rec.Sales.CardSalesRatio = &ratio
	}
	if row.SubmittedAt.Valid {
		t := row.SubmittedAt.Time
		rec.SubmittedAt = &t
	}
	if row.ReviewedAt.Valid {
		t := row.ReviewedAt.Time
		rec.ReviewedAt = &t
	}
	return models.Rehydrate(rec), nil
}

func toApplications(rows []applicationRow) ([]*models.Application, error) {
	out := make([]*models.Application, 0, len(rows))
	for _, row := range rows {
		app, err := row.toApplication()
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}
