package audit

import (
	"errors"
	"reflect"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

// Snapshot is a flat field-name→value map of an entity's persisted state
// at one instant. Secret fields never enter a snapshot.
type Snapshot map[string]interface{}

// Change records one field's transition between two snapshots.
type Change struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// Snapshotter loads the current state of one entity. Each entity kind has
// an explicit snapshotter so the excluded-fields decision lives next to
// the field list instead of inside a reflection walk.
type Snapshotter func(db *gorm.DB, entityID uint) (Snapshot, bool)

func snapshotBook(db *gorm.DB, id uint) (Snapshot, bool) {
	var book models.Book
	if err := db.First(&book, id).Error; err != nil {
		return nil, false
	}
	return Snapshot{
		"id":               book.ID,
		"title":            book.Title,
		"author":           book.Author,
		"subject":          strValue(book.Subject),
		"rack_number":      strValue(book.RackNumber),
		"isbn":             strValue(book.ISBN),
		"published_year":   intValue(book.PublishedYear),
		"copies_total":     book.CopiesTotal,
		"copies_available": book.CopiesAvailable,
	}, true
}

// snapshotUser deliberately omits password_hash.
func snapshotUser(db *gorm.DB, id uint) (Snapshot, bool) {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, false
	}
	return Snapshot{
		"id":    user.ID,
		"name":  user.Name,
		"email": strValue(user.Email),
		"phone": strValue(user.Phone),
		"role":  user.Role,
	}, true
}

func snapshotLoan(db *gorm.DB, id uint) (Snapshot, bool) {
	var loan models.Loan
	if err := db.First(&loan, id).Error; err != nil {
		return nil, false
	}
	return Snapshot{
		"id":          loan.ID,
		"book_id":     loan.BookID,
		"user_id":     loan.UserID,
		"borrowed_at": timeValue(&loan.BorrowedAt),
		"due_at":      timeValue(&loan.DueAt),
		"returned_at": timeValue(loan.ReturnedAt),
	}, true
}

func snapshotPolicy(db *gorm.DB, _ uint) (Snapshot, bool) {
	var p models.LibraryPolicy
	if err := db.First(&p).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false
		}
		return nil, false
	}
	return Snapshot{
		"id":                        p.ID,
		"enforce_limits":            p.EnforceLimits,
		"max_active_loans_per_user": p.MaxActiveLoansPerUser,
		"max_loan_days":             p.MaxLoanDays,
		"fine_per_day":              p.FinePerDay,
	}, true
}

// Diff returns the field-level changes between two snapshots, or nil when
// nothing changed. Creation and deletion are encoded as the _created /
// _deleted sentinels carrying the full snapshot.
func Diff(before, after Snapshot) map[string]Change {
	if before == nil && after == nil {
		return nil
	}
	if before == nil {
		return map[string]Change{"_created": {From: nil, To: after}}
	}
	if after == nil {
		return map[string]Change{"_deleted": {From: before, To: nil}}
	}

	keys := make(map[string]struct{}, len(before)+len(after))
	for key := range before {
		keys[key] = struct{}{}
	}
	for key := range after {
		keys[key] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	changed := make(map[string]Change)
	for _, key := range sorted {
		fromValue := before[key]
		toValue := after[key]
		if !reflect.DeepEqual(fromValue, toValue) {
			changed[key] = Change{From: fromValue, To: toValue}
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return changed
}

func strValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func timeValue(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339Nano)
}
