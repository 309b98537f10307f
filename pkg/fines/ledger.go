package fines

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

// Ledger records fine payments against loans and answers balance queries.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Summary is the caller-facing balance view for one loan.
type Summary struct {
	LoanID        uint    `json:"loan_id"`
	EstimatedFine float64 `json:"estimated_fine"`
	FinePaid      float64 `json:"fine_paid"`
	FineDue       float64 `json:"fine_due"`
	PaymentCount  int64   `json:"payment_count"`
	IsSettled     bool    `json:"is_settled"`
}

// PaidAmount sums recorded payments for one loan.
func (l *Ledger) PaidAmount(loanID uint) (float64, error) {
	var paid float64
	err := l.db.Model(&models.FinePayment{}).
		Where("loan_id = ?", loanID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&paid).Error
	if err != nil {
		return 0, errs.Storage("failed to sum fine payments", err)
	}
	return round2(paid), nil
}

// PaidAmountsByLoans batches PaidAmount for the list projection.
func (l *Ledger) PaidAmountsByLoans(loanIDs []uint) (map[uint]float64, error) {
	result := make(map[uint]float64, len(loanIDs))
	if len(loanIDs) == 0 {
		return result, nil
	}
	type row struct {
		LoanID uint
		Total  float64
	}
	var rows []row
	err := l.db.Model(&models.FinePayment{}).
		Where("loan_id IN ?", loanIDs).
		Select("loan_id, COALESCE(SUM(amount), 0) AS total").
		Group("loan_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errs.Storage("failed to sum fine payments", err)
	}
	for _, r := range rows {
		result[r.LoanID] = round2(r.Total)
	}
	return result, nil
}

// SummaryForLoan computes the live balance for a loan under the given
// policy. The estimated fine is time-dependent and grows while the loan
// stays out.
func (l *Ledger) SummaryForLoan(loan *models.Loan, p *models.LibraryPolicy, now time.Time) (Summary, error) {
	estimated := EstimateForLoan(loan, p, now)
	paid, err := l.PaidAmount(loan.ID)
	if err != nil {
		return Summary{}, err
	}
	due := round2(estimated - paid)
	if due < 0 {
		due = 0
	}
	var count int64
	if err := l.db.Model(&models.FinePayment{}).Where("loan_id = ?", loan.ID).Count(&count).Error; err != nil {
		return Summary{}, errs.Storage("failed to count fine payments", err)
	}
	return Summary{
		LoanID:        loan.ID,
		EstimatedFine: estimated,
		FinePaid:      paid,
		FineDue:       due,
		PaymentCount:  count,
		IsSettled:     estimated > 0 && due <= 0,
	}, nil
}

// CreatePayment is the input for collecting a payment.
type CreatePayment struct {
	Amount      float64
	PaymentMode string
	Reference   *string
	Notes       *string
}

// CreateForLoan records a payment against a loan. The amount may never
// exceed the outstanding fine at collection time.
func (l *Ledger) CreateForLoan(a actor.Actor, loanID uint, p *models.LibraryPolicy, in CreatePayment) (*models.FinePayment, error) {
	if in.Amount <= 0 {
		return nil, errs.Conflictf("payment amount must be positive")
	}
	mode := strings.ToLower(strings.TrimSpace(in.PaymentMode))
	if !models.PaymentModes[mode] {
		return nil, errs.Conflictf("unsupported payment mode %q", in.PaymentMode)
	}

	var loan models.Loan
	if err := l.db.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFoundf("loan not found")
		}
		return nil, errs.Storage("failed to load loan", err)
	}

	now := time.Now().UTC()
	summary, err := l.SummaryForLoan(&loan, p, now)
	if err != nil {
		return nil, err
	}
	if summary.FineDue <= 0 {
		return nil, errs.Conflictf("no outstanding fine for this loan")
	}
	if in.Amount > summary.FineDue {
		return nil, errs.Conflictf("payment amount exceeds outstanding fine")
	}

	payment := models.FinePayment{
		LoanID:      loan.ID,
		UserID:      loan.UserID,
		Amount:      round2(in.Amount),
		PaymentMode: mode,
		Reference:   normalizeOptional(in.Reference),
		Notes:       normalizeOptional(in.Notes),
		CollectedAt: now,
	}
	a.StampCreate(&payment.CreatedBy, &payment.UpdatedBy)
	if err := l.db.Create(&payment).Error; err != nil {
		return nil, errs.Storage("failed to record fine payment", err)
	}
	return &payment, nil
}

// ListForLoan returns payments for one loan, newest first.
func (l *Ledger) ListForLoan(loanID uint) ([]models.FinePayment, error) {
	var payments []models.FinePayment
	err := l.db.Where("loan_id = ?", loanID).
		Order("collected_at DESC, id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, errs.Storage("failed to list fine payments", err)
	}
	return payments, nil
}

// LedgerFilter narrows the cross-loan ledger listing.
type LedgerFilter struct {
	Query         string
	PaymentModes  []string
	UserID        *uint
	LoanID        *uint
	CollectedFrom *time.Time
	CollectedTo   *time.Time
	SortBy        string
	SortDesc      bool
	Skip          int
	Limit         int
}

// LedgerRow joins payment, loan, book and user for the ledger view.
type LedgerRow struct {
	ID          uint      `json:"id"`
	LoanID      uint      `json:"loan_id"`
	UserID      uint      `json:"user_id"`
	Amount      float64   `json:"amount"`
	PaymentMode string    `json:"payment_mode"`
	Reference   *string   `json:"reference"`
	Notes       *string   `json:"notes"`
	CollectedAt time.Time `json:"collected_at"`
	BookID      uint      `json:"book_id"`
	BookTitle   string    `json:"book_title"`
	BookAuthor  string    `json:"book_author"`
	UserName    string    `json:"user_name"`
	UserEmail   *string   `json:"user_email"`
}

var ledgerSortColumns = map[string]string{
	"collected_at": "fine_payments.collected_at",
	"amount":       "fine_payments.amount",
	"loan_id":      "fine_payments.loan_id",
	"user_name":    "users.name",
	"book_title":   "books.title",
	"payment_mode": "fine_payments.payment_mode",
	"id":           "fine_payments.id",
}

// ListLedger returns the joined ledger view with search, filters and
// paging.
func (l *Ledger) ListLedger(f LedgerFilter) ([]LedgerRow, error) {
	query := l.db.Model(&models.FinePayment{}).
		Select(`fine_payments.id, fine_payments.loan_id, fine_payments.user_id,
			fine_payments.amount, fine_payments.payment_mode, fine_payments.reference,
			fine_payments.notes, fine_payments.collected_at,
			books.id AS book_id, books.title AS book_title, books.author AS book_author,
			users.name AS user_name, users.email AS user_email`).
		Joins("JOIN loans ON loans.id = fine_payments.loan_id").
		Joins("JOIN books ON books.id = loans.book_id").
		Joins("JOIN users ON users.id = fine_payments.user_id")

	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + term + "%"
		query = query.Where(
			`books.title LIKE ? OR books.author LIKE ? OR users.name LIKE ?
			 OR COALESCE(users.email, '') LIKE ? OR fine_payments.payment_mode LIKE ?
			 OR COALESCE(fine_payments.reference, '') LIKE ?`,
			like, like, like, like, like, like)
	}
	if len(f.PaymentModes) > 0 {
		modes := make([]string, 0, len(f.PaymentModes))
		for _, m := range f.PaymentModes {
			if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
				modes = append(modes, m)
			}
		}
		if len(modes) > 0 {
			query = query.Where("fine_payments.payment_mode IN ?", modes)
		}
	}
	if f.UserID != nil {
		query = query.Where("fine_payments.user_id = ?", *f.UserID)
	}
	if f.LoanID != nil {
		query = query.Where("fine_payments.loan_id = ?", *f.LoanID)
	}
	if f.CollectedFrom != nil {
		query = query.Where("fine_payments.collected_at >= ?", *f.CollectedFrom)
	}
	if f.CollectedTo != nil {
		query = query.Where("fine_payments.collected_at <= ?", *f.CollectedTo)
	}

	column, ok := ledgerSortColumns[f.SortBy]
	if !ok {
		column = "fine_payments.collected_at"
	}
	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}
	query = query.Order(column + " " + direction).Order("fine_payments.id DESC")

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query = query.Offset(f.Skip).Limit(limit)

	var rows []LedgerRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, errs.Storage("failed to list ledger", err)
	}
	return rows, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
