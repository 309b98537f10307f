package loans

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/fines"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/policy"
)

func setupManager(t *testing.T) (*gorm.DB, *Manager) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	policies := policy.NewStore(db)
	return db, NewManager(db, policies, fines.NewLedger(db))
}

func seedBookAndUser(t *testing.T, db *gorm.DB, copies int) (*models.Book, *models.User) {
	t.Helper()
	book := models.Book{Title: "Dune", Author: "Frank Herbert", CopiesTotal: copies, CopiesAvailable: copies}
	assert.NoError(t, db.Create(&book).Error)
	user := models.User{Name: "Asha Rao", Role: models.RoleMember, PasswordHash: "x"}
	assert.NoError(t, db.Create(&user).Error)
	return &book, &user
}

func TestBorrowDecrementsAvailability(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 2)

	loan, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 14})
	assert.NoError(t, err)
	assert.Equal(t, book.ID, loan.BookID)
	assert.Nil(t, loan.ReturnedAt)
	assert.Equal(t, 14, int(loan.DueAt.Sub(loan.BorrowedAt).Hours()/24))

	var reloaded models.Book
	assert.NoError(t, db.First(&reloaded, book.ID).Error)
	assert.Equal(t, 1, reloaded.CopiesAvailable)
}

func TestBorrowValidation(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	_, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 0})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 22})
	assert.Equal(t, errs.KindPolicyViolation, errs.KindOf(err))

	_, err = manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: 999, Days: 7})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = manager.Borrow(actor.Actor{}, BorrowRequest{BookID: 999, UserID: user.ID, Days: 7})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, "book not found", errs.Reason(err))
}

func TestBorrowExhaustedCopiesConflicts(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)
	other := models.User{Name: "Vikram Iyer", Role: models.RoleMember, PasswordHash: "x"}
	assert.NoError(t, db.Create(&other).Error)

	_, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 7})
	assert.NoError(t, err)

	_, err = manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: other.ID, Days: 7})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.Equal(t, "book is not currently available", errs.Reason(err))
}

func TestBorrowActiveLoanLimit(t *testing.T) {
	db, manager := setupManager(t)
	_, user := seedBookAndUser(t, db, 1)

	for i := 0; i < 5; i++ {
		book := models.Book{Title: "Volume", Author: "Anon", CopiesTotal: 1, CopiesAvailable: 1}
		assert.NoError(t, db.Create(&book).Error)
		_, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 7})
		assert.NoError(t, err)
	}

	extra := models.Book{Title: "One More", Author: "Anon", CopiesTotal: 1, CopiesAvailable: 1}
	assert.NoError(t, db.Create(&extra).Error)
	_, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: extra.ID, UserID: user.ID, Days: 7})
	assert.Equal(t, errs.KindPolicyViolation, errs.KindOf(err))
	assert.Equal(t, "user has reached the maximum active loans limit (5)", errs.Reason(err))
}

func TestBorrowLimitsOffWhenEnforcementDisabled(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	pol := models.LibraryPolicy{ID: 1, MaxActiveLoansPerUser: 1, MaxLoanDays: 5, FinePerDay: 2}
	assert.NoError(t, db.Create(&pol).Error)
	assert.NoError(t, db.Model(&pol).UpdateColumn("enforce_limits", false).Error)

	_, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 60})
	assert.NoError(t, err)
}

func TestConcurrentBorrowsClaimSingleCopy(t *testing.T) {
	db, manager := setupManager(t)
	book, _ := seedBookAndUser(t, db, 1)

	const borrowers = 8
	users := make([]models.User, borrowers)
	for i := range users {
		users[i] = models.User{Name: "Reader", Role: models.RoleMember, PasswordHash: "x"}
		assert.NoError(t, db.Create(&users[i]).Error)
	}

	var wg sync.WaitGroup
	results := make(chan error, borrowers)
	for i := 0; i < borrowers; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: userID, Days: 7})
			results <- err
		}(users[i].ID)
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.Equal(t, errs.KindConflict, errs.KindOf(err))
		}
	}
	assert.Equal(t, 1, successes)

	var reloaded models.Book
	assert.NoError(t, db.First(&reloaded, book.ID).Error)
	assert.Equal(t, 0, reloaded.CopiesAvailable)
}

func TestReturnClosesLoanOnce(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	loan, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 7})
	assert.NoError(t, err)

	returned, err := manager.Return(actor.Actor{}, loan.ID)
	assert.NoError(t, err)
	assert.NotNil(t, returned.ReturnedAt)

	var reloaded models.Book
	assert.NoError(t, db.First(&reloaded, book.ID).Error)
	assert.Equal(t, 1, reloaded.CopiesAvailable)

	_, err = manager.Return(actor.Actor{}, loan.ID)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.Equal(t, "loan already returned", errs.Reason(err))

	_, err = manager.Return(actor.Actor{}, 999)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestExtendStaysInsideCirculationWindow(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	loan, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 14})
	assert.NoError(t, err)

	extended, err := manager.Extend(actor.Actor{}, loan.ID, 7)
	assert.NoError(t, err)
	assert.Equal(t, loan.DueAt.AddDate(0, 0, 7).Unix(), extended.DueAt.Unix())

	_, err = manager.Extend(actor.Actor{}, loan.ID, 1)
	assert.Equal(t, errs.KindPolicyViolation, errs.KindOf(err))

	_, err = manager.Extend(actor.Actor{}, loan.ID, 0)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = manager.Return(actor.Actor{}, loan.ID)
	assert.NoError(t, err)
	_, err = manager.Extend(actor.Actor{}, loan.ID, 1)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.Equal(t, "returned loan cannot be edited", errs.Reason(err))
}

func TestRemoveRestoresInventoryForActiveLoan(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	loan, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 7})
	assert.NoError(t, err)

	assert.NoError(t, manager.Remove(actor.Actor{}, loan.ID))

	var reloaded models.Book
	assert.NoError(t, db.First(&reloaded, book.ID).Error)
	assert.Equal(t, 1, reloaded.CopiesAvailable)

	assert.Equal(t, errs.KindNotFound, errs.KindOf(manager.Remove(actor.Actor{}, loan.ID)))
}

func TestRemoveReturnedLoanLeavesInventoryAlone(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	loan, err := manager.Borrow(actor.Actor{}, BorrowRequest{BookID: book.ID, UserID: user.ID, Days: 7})
	assert.NoError(t, err)
	_, err = manager.Return(actor.Actor{}, loan.ID)
	assert.NoError(t, err)

	assert.NoError(t, manager.Remove(actor.Actor{}, loan.ID))

	var reloaded models.Book
	assert.NoError(t, db.First(&reloaded, book.ID).Error)
	assert.Equal(t, 1, reloaded.CopiesAvailable)
}

func TestFindBySignature(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	borrowedAt := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	dueAt := borrowedAt.AddDate(0, 0, 14)
	loan := models.Loan{BookID: book.ID, UserID: user.ID, BorrowedAt: borrowedAt, DueAt: dueAt}
	assert.NoError(t, db.Create(&loan).Error)

	found, err := manager.FindBySignature(book.ID, user.ID, borrowedAt, dueAt)
	assert.NoError(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, loan.ID, found.ID)

	missing, err := manager.FindBySignature(book.ID, user.ID, borrowedAt, dueAt.AddDate(0, 0, 1))
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListProjectsFines(t *testing.T) {
	db, manager := setupManager(t)
	book, user := seedBookAndUser(t, db, 1)

	now := time.Now().UTC()
	loan := models.Loan{
		BookID:     book.ID,
		UserID:     user.ID,
		BorrowedAt: now.AddDate(0, 0, -17),
		DueAt:      now.AddDate(0, 0, -3),
	}
	assert.NoError(t, db.Create(&loan).Error)
	payment := models.FinePayment{LoanID: loan.ID, UserID: user.ID, Amount: 2, PaymentMode: "cash", CollectedAt: now}
	assert.NoError(t, db.Create(&payment).Error)

	views, err := manager.List(Filter{})
	assert.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, "Dune", views[0].BookTitle)
	assert.Equal(t, "Asha Rao", views[0].UserName)
	assert.Equal(t, 3, views[0].DaysOverdue)
	assert.Equal(t, 6.0, views[0].EstimatedFine)
	assert.Equal(t, 2.0, views[0].FinePaid)
	assert.Equal(t, 4.0, views[0].FineDue)

	active := true
	views, err = manager.List(Filter{Active: &active, OverdueOnly: true})
	assert.NoError(t, err)
	assert.Len(t, views, 1)

	views, err = manager.List(Filter{Query: "Herbert"})
	assert.NoError(t, err)
	assert.Len(t, views, 1)

	views, err = manager.List(Filter{Query: "nobody"})
	assert.NoError(t, err)
	assert.Len(t, views, 0)
}
