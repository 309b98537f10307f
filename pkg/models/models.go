package models

import (
	"time"
)

// Roles a user account can hold. Role gates which mutations a request
// may trigger.
const (
	RoleMember = "member"
	RoleStaff  = "staff"
	RoleAdmin  = "admin"
)

// Accepted payment modes for fine collection.
var PaymentModes = map[string]bool{
	"cash":   true,
	"card":   true,
	"upi":    true,
	"bank":   true,
	"waiver": true,
}

type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	Author          string    `gorm:"size:200;not null" json:"author"`
	Subject         *string   `gorm:"size:120" json:"subject"`
	RackNumber      *string   `gorm:"size:40" json:"rack_number"`
	ISBN            *string   `gorm:"size:32;uniqueIndex" json:"isbn"`
	PublishedYear   *int      `json:"published_year"`
	CopiesTotal     int       `gorm:"not null" json:"copies_total"`
	CopiesAvailable int       `gorm:"not null" json:"copies_available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	CreatedBy       *uint     `json:"created_by"`
	UpdatedBy       *uint     `json:"updated_by"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Email        *string   `gorm:"size:200;uniqueIndex" json:"email"`
	Phone        *string   `gorm:"size:40" json:"phone"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:30;not null;default:'member'" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    *uint     `json:"created_by"`
	UpdatedBy    *uint     `json:"updated_by"`
}

// LibraryPolicy is a singleton row (id=1) holding the active circulation
// policy. Lazily created with defaults on first read.
type LibraryPolicy struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	EnforceLimits         bool      `gorm:"not null;default:true" json:"enforce_limits"`
	MaxActiveLoansPerUser int       `gorm:"not null;default:5" json:"max_active_loans_per_user"`
	MaxLoanDays           int       `gorm:"not null;default:21" json:"max_loan_days"`
	FinePerDay            float64   `gorm:"not null;default:2.0" json:"fine_per_day"`
	UpdatedAt             time.Time `json:"updated_at"`
	CreatedBy             *uint     `json:"created_by"`
	UpdatedBy             *uint     `json:"updated_by"`
}

// Loan carries a composite unique index over (book_id, user_id, borrowed_at,
// due_at) — the natural signature that makes repeated bulk imports idempotent.
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	BookID     uint       `gorm:"not null;uniqueIndex:uq_loans_signature" json:"book_id"`
	UserID     uint       `gorm:"not null;uniqueIndex:uq_loans_signature" json:"user_id"`
	BorrowedAt time.Time  `gorm:"not null;uniqueIndex:uq_loans_signature" json:"borrowed_at"`
	DueAt      time.Time  `gorm:"not null;uniqueIndex:uq_loans_signature" json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	CreatedBy  *uint      `json:"created_by"`
	UpdatedBy  *uint      `json:"updated_by"`

	Book Book `gorm:"foreignKey:BookID" json:"-"`
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Active reports whether the loan is still out.
func (l *Loan) Active() bool {
	return l.ReturnedAt == nil
}

type FinePayment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LoanID      uint      `gorm:"not null;index" json:"loan_id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Amount      float64   `gorm:"not null" json:"amount"`
	PaymentMode string    `gorm:"size:30;not null" json:"payment_mode"`
	Reference   *string   `gorm:"size:120" json:"reference"`
	Notes       *string   `gorm:"size:300" json:"notes"`
	CollectedAt time.Time `gorm:"not null" json:"collected_at"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   *uint     `json:"created_by"`
	UpdatedBy   *uint     `json:"updated_by"`

	Loan Loan `gorm:"foreignKey:LoanID" json:"-"`
}

// AuditLog rows are append-only; the application never updates or
// deletes them.
type AuditLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ActorUserID *uint     `gorm:"index" json:"actor_user_id"`
	ActorRole   *string   `gorm:"size:30" json:"actor_role"`
	Method      string    `gorm:"size:10;not null" json:"method"`
	Path        string    `gorm:"size:255;not null" json:"path"`
	Entity      *string   `gorm:"size:64;index" json:"entity"`
	EntityID    *uint     `json:"entity_id"`
	ChangeDiff  *string   `gorm:"type:text" json:"change_diff"`
	StatusCode  int       `gorm:"not null" json:"status_code"`
	DurationMS  float64   `gorm:"not null" json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// All lists every persistent entity for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Book{},
		&User{},
		&LibraryPolicy{},
		&Loan{},
		&FinePayment{},
		&AuditLog{},
	}
}
