// Package fines computes overdue fines and keeps the ledger of payments
// collected against them.
package fines

import (
	"math"
	"time"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

// Estimate computes the fine for a loan that was due at dueAt. The
// reference instant is returnedAt for a closed loan and now for an active
// one. Both are normalized to UTC calendar dates before subtraction, so a
// loan returned later the same day carries no fine.
func Estimate(dueAt time.Time, returnedAt *time.Time, now time.Time, finePerDay float64) float64 {
	reference := now
	if returnedAt != nil {
		reference = *returnedAt
	}
	overdueDays := daysBetween(dueAt, reference)
	if overdueDays <= 0 {
		return 0
	}
	return round2(float64(overdueDays) * finePerDay)
}

// EstimateForLoan is the common projection call: the loan plus the policy
// the caller already holds.
func EstimateForLoan(loan *models.Loan, p *models.LibraryPolicy, now time.Time) float64 {
	return Estimate(loan.DueAt, loan.ReturnedAt, now, p.FinePerDay)
}

// DaysOverdue reports how many whole calendar days the loan is past due,
// never negative.
func DaysOverdue(loan *models.Loan, now time.Time) int {
	reference := now
	if loan.ReturnedAt != nil {
		reference = *loan.ReturnedAt
	}
	days := daysBetween(loan.DueAt, reference)
	if days < 0 {
		return 0
	}
	return days
}

func daysBetween(from, to time.Time) int {
	fromDate := truncateToDate(from.UTC())
	toDate := truncateToDate(to.UTC())
	return int(toDate.Sub(fromDate).Hours() / 24)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
