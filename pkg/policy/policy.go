// Package policy manages the singleton circulation policy row. The policy
// is loaded fresh on every read and passed explicitly to the fine
// calculator; there is deliberately no process-wide cached copy.
package policy

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

// Defaults used when the policy row does not exist yet.
const (
	DefaultMaxActiveLoansPerUser = 5
	DefaultMaxLoanDays           = 21
	DefaultFinePerDay            = 2.0
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetOrCreate returns the singleton policy, creating it with defaults on
// first read.
func (s *Store) GetOrCreate(a actor.Actor) (*models.LibraryPolicy, error) {
	var p models.LibraryPolicy
	err := s.db.First(&p, 1).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Storage("failed to load policy", err)
	}

	p = models.LibraryPolicy{
		ID:                    1,
		EnforceLimits:         true,
		MaxActiveLoansPerUser: DefaultMaxActiveLoansPerUser,
		MaxLoanDays:           DefaultMaxLoanDays,
		FinePerDay:            DefaultFinePerDay,
	}
	a.StampCreate(&p.CreatedBy, &p.UpdatedBy)
	if err := s.db.Create(&p).Error; err != nil {
		// Another request may have created it concurrently.
		if retry := s.db.First(&p, 1).Error; retry == nil {
			return &p, nil
		}
		return nil, errs.Storage("failed to create policy", err)
	}
	return &p, nil
}

// Update replaces all policy fields.
type Update struct {
	EnforceLimits         bool
	MaxActiveLoansPerUser int
	MaxLoanDays           int
	FinePerDay            float64
}

func (u Update) validate() error {
	if u.MaxActiveLoansPerUser < 1 {
		return errs.Conflictf("max_active_loans_per_user must be at least 1")
	}
	if u.MaxLoanDays < 1 {
		return errs.Conflictf("max_loan_days must be at least 1")
	}
	if u.FinePerDay < 0 {
		return errs.Conflictf("fine_per_day cannot be negative")
	}
	return nil
}

func (s *Store) Update(a actor.Actor, in Update) (*models.LibraryPolicy, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.GetOrCreate(a)
	if err != nil {
		return nil, err
	}
	p.EnforceLimits = in.EnforceLimits
	p.MaxActiveLoansPerUser = in.MaxActiveLoansPerUser
	p.MaxLoanDays = in.MaxLoanDays
	p.FinePerDay = in.FinePerDay
	a.StampUpdate(&p.UpdatedBy)
	if err := s.db.Save(p).Error; err != nil {
		return nil, errs.Storage("failed to update policy", err)
	}
	return p, nil
}
