// Package loans owns every loan state transition and the atomic inventory
// adjustment that goes with it. No other package touches
// books.copies_available.
package loans

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/fines"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/policy"
)

type Manager struct {
	db       *gorm.DB
	policies *policy.Store
	ledger   *fines.Ledger
}

func NewManager(db *gorm.DB, policies *policy.Store, ledger *fines.Ledger) *Manager {
	return &Manager{db: db, policies: policies, ledger: ledger}
}

// BorrowRequest asks to lend a book to a user for a number of days.
type BorrowRequest struct {
	BookID uint
	UserID uint
	Days   int
}

// Borrow checks policy, then claims one copy with a conditional decrement.
// The decrement only applies while copies_available > 0; the storage
// engine evaluating that precondition is the single serialization point
// preventing over-lending.
func (m *Manager) Borrow(a actor.Actor, req BorrowRequest) (*models.Loan, error) {
	if req.Days < 1 {
		return nil, errs.Conflictf("loan days must be at least 1")
	}

	pol, err := m.policies.GetOrCreate(a)
	if err != nil {
		return nil, err
	}
	if pol.EnforceLimits && req.Days > pol.MaxLoanDays {
		return nil, errs.PolicyViolationf("loan days cannot exceed %d days", pol.MaxLoanDays)
	}

	var user models.User
	if err := m.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFoundf("user not found")
		}
		return nil, errs.Storage("failed to load user", err)
	}

	activeLoans, err := m.CountActiveForUser(req.UserID)
	if err != nil {
		return nil, err
	}
	if pol.EnforceLimits && activeLoans >= int64(pol.MaxActiveLoansPerUser) {
		return nil, errs.PolicyViolationf(
			"user has reached the maximum active loans limit (%d)", pol.MaxActiveLoansPerUser)
	}

	now := time.Now().UTC()
	loan := models.Loan{
		BookID:     req.BookID,
		UserID:     req.UserID,
		BorrowedAt: now,
		DueAt:      now.AddDate(0, 0, req.Days),
	}
	a.StampCreate(&loan.CreatedBy, &loan.UpdatedBy)

	err = m.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Book{}).
			Where("id = ? AND copies_available > 0", req.BookID).
			UpdateColumn("copies_available", gorm.Expr("copies_available - 1"))
		if result.Error != nil {
			return errs.Storage("failed to adjust book availability", result.Error)
		}
		if result.RowsAffected == 0 {
			var book models.Book
			if lookupErr := tx.First(&book, req.BookID).Error; lookupErr != nil {
				if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
					return errs.NotFoundf("book not found")
				}
				return errs.Storage("failed to load book", lookupErr)
			}
			return errs.Conflictf("book is not currently available")
		}
		if err := tx.Create(&loan).Error; err != nil {
			return errs.Storage("failed to create loan", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// Return closes a loan. The conditional update on returned_at is the
// compare-and-set that makes double returns lose; the follow-up increment
// is unconditional because the prior decrement guarantees headroom.
func (m *Manager) Return(a actor.Actor, loanID uint) (*models.Loan, error) {
	now := time.Now().UTC()
	var loan models.Loan

	err := m.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"returned_at": now}
		if a.UserID != nil {
			updates["updated_by"] = *a.UserID
		}
		result := tx.Model(&models.Loan{}).
			Where("id = ? AND returned_at IS NULL", loanID).
			UpdateColumns(updates)
		if result.Error != nil {
			return errs.Storage("failed to close loan", result.Error)
		}
		if result.RowsAffected == 0 {
			if lookupErr := tx.First(&loan, loanID).Error; lookupErr != nil {
				if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
					return errs.NotFoundf("loan not found")
				}
				return errs.Storage("failed to load loan", lookupErr)
			}
			return errs.Conflictf("loan already returned")
		}
		if err := tx.First(&loan, loanID).Error; err != nil {
			return errs.Storage("failed to load loan", err)
		}
		result = tx.Model(&models.Book{}).
			Where("id = ?", loan.BookID).
			UpdateColumn("copies_available", gorm.Expr("copies_available + 1"))
		if result.Error != nil {
			return errs.Storage("failed to adjust book availability", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// Extend pushes the due date out. The total window stays within
// borrowed_at + max_loan_days while enforcement is on. No inventory
// effect.
func (m *Manager) Extend(a actor.Actor, loanID uint, extraDays int) (*models.Loan, error) {
	if extraDays < 1 {
		return nil, errs.Conflictf("extension days must be at least 1")
	}
	pol, err := m.policies.GetOrCreate(a)
	if err != nil {
		return nil, err
	}

	var loan models.Loan
	if err := m.db.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFoundf("loan not found")
		}
		return nil, errs.Storage("failed to load loan", err)
	}
	if loan.ReturnedAt != nil {
		return nil, errs.Conflictf("returned loan cannot be edited")
	}

	newDue := loan.DueAt.AddDate(0, 0, extraDays)
	if pol.EnforceLimits {
		maxDue := loan.BorrowedAt.AddDate(0, 0, pol.MaxLoanDays)
		if newDue.After(maxDue) {
			return nil, errs.PolicyViolationf(
				"loan extension exceeds allowed circulation window (%d days)", pol.MaxLoanDays)
		}
	}
	loan.DueAt = newDue
	a.StampUpdate(&loan.UpdatedBy)
	if err := m.db.Save(&loan).Error; err != nil {
		return nil, errs.Storage("failed to extend loan", err)
	}
	return &loan, nil
}

// Remove deletes a loan administratively. For a still-active loan the
// compensating inventory increment happens before the delete so the
// deletion is never observable with a transient shortfall.
func (m *Manager) Remove(a actor.Actor, loanID uint) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		var loan models.Loan
		if err := tx.First(&loan, loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFoundf("loan not found")
			}
			return errs.Storage("failed to load loan", err)
		}
		if loan.ReturnedAt == nil {
			result := tx.Model(&models.Book{}).
				Where("id = ?", loan.BookID).
				UpdateColumn("copies_available", gorm.Expr("copies_available + 1"))
			if result.Error != nil {
				return errs.Storage("failed to adjust book availability", result.Error)
			}
		}
		if err := tx.Delete(&loan).Error; err != nil {
			return errs.Storage("failed to delete loan", err)
		}
		return nil
	})
}

// Get loads one loan.
func (m *Manager) Get(loanID uint) (*models.Loan, error) {
	var loan models.Loan
	if err := m.db.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFoundf("loan not found")
		}
		return nil, errs.Storage("failed to load loan", err)
	}
	return &loan, nil
}

// FindBySignature looks a loan up by its import-idempotency signature.
func (m *Manager) FindBySignature(bookID, userID uint, borrowedAt, dueAt time.Time) (*models.Loan, error) {
	var loan models.Loan
	err := m.db.Where(
		"book_id = ? AND user_id = ? AND borrowed_at = ? AND due_at = ?",
		bookID, userID, borrowedAt, dueAt,
	).First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Storage("failed to look up loan signature", err)
	}
	return &loan, nil
}

// CountActiveForUser counts loans still out for one user.
func (m *Manager) CountActiveForUser(userID uint) (int64, error) {
	var count int64
	err := m.db.Model(&models.Loan{}).
		Where("user_id = ? AND returned_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, errs.Storage("failed to count active loans", err)
	}
	return count, nil
}

// CountActiveForBook counts copies of a book still out.
func (m *Manager) CountActiveForBook(bookID uint) (int64, error) {
	var count int64
	err := m.db.Model(&models.Loan{}).
		Where("book_id = ? AND returned_at IS NULL", bookID).
		Count(&count).Error
	if err != nil {
		return 0, errs.Storage("failed to count active loans", err)
	}
	return count, nil
}
