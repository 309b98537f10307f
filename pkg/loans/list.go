package loans

import (
	"strings"
	"time"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/fines"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

// Filter narrows the loan listing.
type Filter struct {
	Query       string
	Active      *bool
	UserID      *uint
	BookID      *uint
	OverdueOnly bool
	SortBy      string
	SortDesc    bool
	Skip        int
	Limit       int
}

// View is a read-side projection of a loan: the stored row plus live
// overdue and fine figures computed from the current policy. Nothing here
// is persisted.
type View struct {
	ID            uint       `json:"id"`
	BookID        uint       `json:"book_id"`
	UserID        uint       `json:"user_id"`
	BorrowedAt    time.Time  `json:"borrowed_at"`
	DueAt         time.Time  `json:"due_at"`
	ReturnedAt    *time.Time `json:"returned_at"`
	BookTitle     string     `json:"book_title"`
	BookAuthor    string     `json:"book_author"`
	UserName      string     `json:"user_name"`
	DaysOverdue   int        `json:"days_overdue"`
	EstimatedFine float64    `json:"estimated_fine"`
	FinePaid      float64    `json:"fine_paid"`
	FineDue       float64    `json:"fine_due"`
}

var loanSortColumns = map[string]string{
	"borrowed_at": "loans.borrowed_at",
	"due_at":      "loans.due_at",
	"returned_at": "loans.returned_at",
	"id":          "loans.id",
	"book_title":  "books.title",
	"user_name":   "users.name",
}

// List returns loans matching the filter with live fine projections. The
// policy is loaded once per call and handed to the calculator explicitly.
func (m *Manager) List(f Filter) ([]View, error) {
	pol, err := m.policies.GetOrCreate(actor.Actor{})
	if err != nil {
		return nil, err
	}

	query := m.db.Model(&models.Loan{}).
		Select(`loans.id, loans.book_id, loans.user_id, loans.borrowed_at,
			loans.due_at, loans.returned_at,
			books.title AS book_title, books.author AS book_author,
			users.name AS user_name`).
		Joins("JOIN books ON books.id = loans.book_id").
		Joins("JOIN users ON users.id = loans.user_id")

	if f.Active != nil {
		if *f.Active {
			query = query.Where("loans.returned_at IS NULL")
		} else {
			query = query.Where("loans.returned_at IS NOT NULL")
		}
	}
	if f.UserID != nil {
		query = query.Where("loans.user_id = ?", *f.UserID)
	}
	if f.BookID != nil {
		query = query.Where("loans.book_id = ?", *f.BookID)
	}
	if f.OverdueOnly {
		query = query.Where("loans.returned_at IS NULL AND loans.due_at < ?", time.Now().UTC())
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + term + "%"
		query = query.Where(
			`books.title LIKE ? OR books.author LIKE ? OR COALESCE(books.isbn, '') LIKE ?
			 OR users.name LIKE ? OR COALESCE(users.email, '') LIKE ?`,
			like, like, like, like, like)
	}

	column, ok := loanSortColumns[f.SortBy]
	if !ok {
		column = "loans.borrowed_at"
	}
	direction := "ASC"
	if f.SortDesc || f.SortBy == "" {
		direction = "DESC"
	}
	query = query.Order(column + " " + direction).Order("loans.id DESC")

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query = query.Offset(f.Skip).Limit(limit)

	var views []View
	if err := query.Scan(&views).Error; err != nil {
		return nil, errs.Storage("failed to list loans", err)
	}

	ids := make([]uint, len(views))
	for i := range views {
		ids[i] = views[i].ID
	}
	paid, err := m.ledger.PaidAmountsByLoans(ids)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range views {
		loan := models.Loan{DueAt: views[i].DueAt, ReturnedAt: views[i].ReturnedAt}
		views[i].DaysOverdue = fines.DaysOverdue(&loan, now)
		views[i].EstimatedFine = fines.EstimateForLoan(&loan, pol, now)
		views[i].FinePaid = paid[views[i].ID]
		due := views[i].EstimatedFine - views[i].FinePaid
		if due < 0 {
			due = 0
		}
		views[i].FineDue = due
	}
	return views, nil
}
