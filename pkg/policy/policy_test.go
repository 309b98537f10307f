package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

func setupPolicyDB(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	if err := db.AutoMigrate(&models.LibraryPolicy{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewStore(db)
}

func TestGetOrCreateSeedsDefaults(t *testing.T) {
	store := setupPolicyDB(t)

	p, err := store.GetOrCreate(actor.Actor{})
	assert.NoError(t, err)
	assert.Equal(t, uint(1), p.ID)
	assert.True(t, p.EnforceLimits)
	assert.Equal(t, DefaultMaxActiveLoansPerUser, p.MaxActiveLoansPerUser)
	assert.Equal(t, DefaultMaxLoanDays, p.MaxLoanDays)
	assert.Equal(t, DefaultFinePerDay, p.FinePerDay)

	// Second read returns the same row, not a second one.
	again, err := store.GetOrCreate(actor.Actor{})
	assert.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
}

func TestUpdateReplacesAllFields(t *testing.T) {
	store := setupPolicyDB(t)
	uid := uint(7)
	a := actor.Actor{UserID: &uid, Role: models.RoleAdmin}

	p, err := store.Update(a, Update{
		EnforceLimits:         false,
		MaxActiveLoansPerUser: 3,
		MaxLoanDays:           30,
		FinePerDay:            1.5,
	})
	assert.NoError(t, err)
	assert.False(t, p.EnforceLimits)
	assert.Equal(t, 3, p.MaxActiveLoansPerUser)
	assert.Equal(t, 30, p.MaxLoanDays)
	assert.Equal(t, 1.5, p.FinePerDay)
	assert.NotNil(t, p.UpdatedBy)
	assert.Equal(t, uid, *p.UpdatedBy)
}

func TestUpdateValidation(t *testing.T) {
	store := setupPolicyDB(t)

	_, err := store.Update(actor.Actor{}, Update{MaxActiveLoansPerUser: 0, MaxLoanDays: 21, FinePerDay: 2})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = store.Update(actor.Actor{}, Update{MaxActiveLoansPerUser: 5, MaxLoanDays: 0, FinePerDay: 2})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = store.Update(actor.Actor{}, Update{MaxActiveLoansPerUser: 5, MaxLoanDays: 21, FinePerDay: -0.5})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}
