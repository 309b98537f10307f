// Package imports loads books, users and loans from uploaded CSV files.
// Row failures are collected per row instead of aborting the batch, and
// loan imports are idempotent through the loan signature.
package imports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/auth"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/loans"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/policy"
)

// RowError reports why one spreadsheet row was rejected. Row numbers are
// 1-based counting the header, matching what the user sees in the file.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type Result struct {
	Entity   string     `json:"entity"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
}

type Importer struct {
	db              *gorm.DB
	manager         *loans.Manager
	policies        *policy.Store
	defaultPassword string
}

func NewImporter(db *gorm.DB, manager *loans.Manager, policies *policy.Store, defaultPassword string) *Importer {
	return &Importer{db: db, manager: manager, policies: policies, defaultPassword: defaultPassword}
}

// ParseCSV reads rows into header-keyed maps. Headers are lowercased with
// spaces collapsed to underscores; blank cells become absent keys.
func ParseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	keys := make([]string, len(header))
	for i, name := range header {
		keys[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]string)
		for i, value := range record {
			if i >= len(keys) {
				break
			}
			value = strings.TrimSpace(value)
			if value != "" {
				row[keys[i]] = value
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Books imports book rows, skipping ISBNs that already exist.
func (im *Importer) Books(a actor.Actor, rows []map[string]string) Result {
	result := Result{Entity: "books", Errors: []RowError{}}
	for index, row := range rows {
		rowNum := index + 2
		if isbn := row["isbn"]; isbn != "" {
			var existing models.Book
			if err := im.db.Where("isbn = ?", isbn).First(&existing).Error; err == nil {
				result.Skipped++
				continue
			}
		}
		copiesTotal, err := parseInt(row["copies_total"])
		if err != nil || copiesTotal < 1 {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "copies_total must be a positive integer"})
			continue
		}
		if row["title"] == "" || row["author"] == "" {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "title and author are required"})
			continue
		}
		book := models.Book{
			Title:           row["title"],
			Author:          row["author"],
			Subject:         optional(row["subject"]),
			RackNumber:      optional(row["rack_number"]),
			ISBN:            optional(row["isbn"]),
			CopiesTotal:     copiesTotal,
			CopiesAvailable: copiesTotal,
		}
		if year, err := parseInt(row["published_year"]); err == nil && row["published_year"] != "" {
			book.PublishedYear = &year
		}
		a.StampCreate(&book.CreatedBy, &book.UpdatedBy)
		if err := im.db.Create(&book).Error; err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		result.Imported++
	}
	return result
}

// Users imports user rows, skipping emails and phones already on file.
func (im *Importer) Users(a actor.Actor, rows []map[string]string) Result {
	result := Result{Entity: "users", Errors: []RowError{}}
	for index, row := range rows {
		rowNum := index + 2
		if email := row["email"]; email != "" {
			var existing models.User
			if err := im.db.Where("email = ?", email).First(&existing).Error; err == nil {
				result.Skipped++
				continue
			}
		}
		if phone := row["phone"]; phone != "" {
			var existing models.User
			if err := im.db.Where("phone = ?", phone).First(&existing).Error; err == nil {
				result.Skipped++
				continue
			}
		}
		if row["name"] == "" {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "name is required"})
			continue
		}
		role := strings.ToLower(row["role"])
		if role == "" {
			role = models.RoleMember
		}
		if role != models.RoleMember && role != models.RoleStaff && role != models.RoleAdmin {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "unknown role " + role})
			continue
		}
		password := row["password"]
		if password == "" {
			password = im.defaultPassword
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		user := models.User{
			Name:         row["name"],
			Email:        optional(row["email"]),
			Phone:        optional(row["phone"]),
			Role:         role,
			PasswordHash: hash,
		}
		a.StampCreate(&user.CreatedBy, &user.UpdatedBy)
		if err := im.db.Create(&user).Error; err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		result.Imported++
	}
	return result
}

// Loans imports historical and active loans. Rows matching an existing
// loan signature are skipped, so re-running the same file is a no-op.
// Only still-active rows touch inventory.
func (im *Importer) Loans(a actor.Actor, rows []map[string]string) Result {
	result := Result{Entity: "loans", Errors: []RowError{}}
	pol, err := im.policies.GetOrCreate(a)
	if err != nil {
		result.Errors = append(result.Errors, RowError{Row: 0, Error: err.Error()})
		return result
	}
	for index, row := range rows {
		rowNum := index + 2
		if err := im.importLoanRow(a, pol, row); err != nil {
			if errors.Is(err, errSkipRow) {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		result.Imported++
	}
	return result
}

var errSkipRow = errors.New("row already imported")

func (im *Importer) importLoanRow(a actor.Actor, pol *models.LibraryPolicy, row map[string]string) error {
	book, err := im.findBook(row)
	if err != nil {
		return err
	}
	user, err := im.findUser(row)
	if err != nil {
		return err
	}

	borrowedAt, err := parseTimestamp(row["borrowed_at"])
	if err != nil {
		return fmt.Errorf("invalid borrowed_at: %w", err)
	}
	if borrowedAt == nil {
		now := time.Now().UTC()
		borrowedAt = &now
	}
	dueAt, err := parseTimestamp(row["due_at"])
	if err != nil {
		return fmt.Errorf("invalid due_at: %w", err)
	}
	if dueAt != nil && dueAt.Before(*borrowedAt) {
		return errors.New("due_at cannot be before borrowed_at")
	}

	days := 0
	if row["days"] != "" {
		if days, err = parseInt(row["days"]); err != nil {
			return errors.New("invalid days")
		}
	}
	if days == 0 {
		if dueAt != nil {
			days = daysBetweenDates(*borrowedAt, *dueAt)
			if days < 1 {
				days = 1
			}
		} else {
			days = 14
		}
	}
	if pol.EnforceLimits && days > pol.MaxLoanDays {
		return fmt.Errorf("loan days cannot exceed %d days", pol.MaxLoanDays)
	}
	if dueAt == nil {
		due := borrowedAt.AddDate(0, 0, days)
		dueAt = &due
	}

	returnedAt, err := parseTimestamp(row["returned_at"])
	if err != nil {
		return fmt.Errorf("invalid returned_at: %w", err)
	}
	if returnedAt != nil && returnedAt.Before(*borrowedAt) {
		return errors.New("returned_at cannot be before borrowed_at")
	}

	existing, err := im.manager.FindBySignature(book.ID, user.ID, *borrowedAt, *dueAt)
	if err != nil {
		return err
	}
	if existing != nil {
		return errSkipRow
	}

	loan := models.Loan{
		BookID:     book.ID,
		UserID:     user.ID,
		BorrowedAt: *borrowedAt,
		DueAt:      *dueAt,
		ReturnedAt: returnedAt,
	}
	a.StampCreate(&loan.CreatedBy, &loan.UpdatedBy)

	return im.db.Transaction(func(tx *gorm.DB) error {
		if returnedAt == nil {
			// An active import claims a copy the same way borrow does.
			result := tx.Model(&models.Book{}).
				Where("id = ? AND copies_available > 0", book.ID).
				UpdateColumn("copies_available", gorm.Expr("copies_available - 1"))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errors.New("book is not currently available")
			}
		}
		return tx.Create(&loan).Error
	})
}

func (im *Importer) findBook(row map[string]string) (*models.Book, error) {
	var book models.Book
	if raw := row["book_id"]; raw != "" {
		id, err := parseInt(raw)
		if err != nil {
			return nil, errors.New("invalid book_id")
		}
		if err := im.db.First(&book, id).Error; err != nil {
			return nil, errors.New("book not found for row")
		}
		return &book, nil
	}
	if isbn := row["book_isbn"]; isbn != "" {
		if err := im.db.Where("isbn = ?", isbn).First(&book).Error; err != nil {
			return nil, errors.New("book not found for row")
		}
		return &book, nil
	}
	return nil, errors.New("book not found for row")
}

func (im *Importer) findUser(row map[string]string) (*models.User, error) {
	var user models.User
	if raw := row["user_id"]; raw != "" {
		id, err := parseInt(raw)
		if err != nil {
			return nil, errors.New("invalid user_id")
		}
		if err := im.db.First(&user, id).Error; err != nil {
			return nil, errors.New("user not found for row")
		}
		return &user, nil
	}
	if email := row["user_email"]; email != "" {
		if err := im.db.Where("email = ?", email).First(&user).Error; err != nil {
			return nil, errors.New("user not found for row")
		}
		return &user, nil
	}
	return nil, errors.New("user not found for row")
}

func parseInt(raw string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(raw))
}

func parseTimestamp(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", raw)
}

func daysBetweenDates(from, to time.Time) int {
	fromDate := time.Date(from.UTC().Year(), from.UTC().Month(), from.UTC().Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(to.UTC().Year(), to.UTC().Month(), to.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(toDate.Sub(fromDate).Hours() / 24)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
