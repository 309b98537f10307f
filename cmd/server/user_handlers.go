package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/auth"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

func listUsers(c *gin.Context) {
	query := db.Model(&models.User{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + q + "%"
		query = query.Where(
			"name LIKE ? OR COALESCE(email, '') LIKE ? OR COALESCE(phone, '') LIKE ?",
			like, like, like)
	}
	limit := queryInt(c, "limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var users []models.User
	err := query.Order("name ASC").Offset(queryInt(c, "skip", 0)).Limit(limit).Find(&users).Error
	if err != nil {
		respondError(c, errs.Storage("failed to list users", err))
		return
	}
	c.JSON(http.StatusOK, users)
}

func getUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, errs.NotFoundf("user not found"))
			return
		}
		respondError(c, errs.Storage("failed to load user", err))
		return
	}
	c.JSON(http.StatusOK, user)
}

type userPayload struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

func validRole(role string) bool {
	return role == models.RoleMember || role == models.RoleStaff || role == models.RoleAdmin
}

// createUser enforces the bootstrap rule instead of a fixed role guard:
// the very first account must be an admin and needs no token, after that
// only authenticated admins may create accounts.
func createUser(c *gin.Context) {
	var payload userPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := models.RoleMember
	if payload.Role != nil && *payload.Role != "" {
		role = strings.ToLower(strings.TrimSpace(*payload.Role))
	}
	if !validRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be one of member, staff, admin"})
		return
	}

	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		respondError(c, errs.Storage("failed to count users", err))
		return
	}
	act := actor.From(c)
	if userCount == 0 {
		if role != models.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"error": "first user must be created with admin role"})
			return
		}
	} else if !act.Known() {
		if role == models.RoleAdmin {
			respondError(c, errs.Conflictf("bootstrap already completed, sign in with an existing admin user"))
			return
		}
		respondError(c, errs.Unauthorizedf("could not validate credentials"))
		return
	} else if !act.Is(models.RoleAdmin) {
		respondError(c, errs.Forbiddenf("insufficient permissions"))
		return
	}

	if payload.Name == nil || strings.TrimSpace(*payload.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if payload.Password != nil && len(*payload.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	email := normalizeOptional(payload.Email)
	if email != nil {
		var existing models.User
		if err := db.Where("email = ?", *email).First(&existing).Error; err == nil {
			respondError(c, errs.Conflictf("email already exists"))
			return
		}
	}

	password := cfg.DefaultUserPassword
	if payload.Password != nil {
		password = *payload.Password
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		respondError(c, errs.Storage("failed to hash password", err))
		return
	}

	user := models.User{
		Name:         strings.TrimSpace(*payload.Name),
		Email:        email,
		Phone:        normalizeOptional(payload.Phone),
		Role:         role,
		PasswordHash: hash,
	}
	act.StampCreate(&user.CreatedBy, &user.UpdatedBy)
	if err := db.Create(&user).Error; err != nil {
		respondError(c, errs.Storage("failed to create user", err))
		return
	}
	c.JSON(http.StatusCreated, user)
}

func updateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload userPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, errs.NotFoundf("user not found"))
			return
		}
		respondError(c, errs.Storage("failed to load user", err))
		return
	}

	if payload.Name != nil && strings.TrimSpace(*payload.Name) != "" {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		email := normalizeOptional(payload.Email)
		if email != nil && (user.Email == nil || *user.Email != *email) {
			var existing models.User
			if err := db.Where("email = ? AND id <> ?", *email, user.ID).First(&existing).Error; err == nil {
				respondError(c, errs.Conflictf("email already exists"))
				return
			}
		}
		user.Email = email
	}
	if payload.Phone != nil {
		user.Phone = normalizeOptional(payload.Phone)
	}
	if payload.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*payload.Role))
		if !validRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be one of member, staff, admin"})
			return
		}
		user.Role = role
	}
	if payload.Password != nil && *payload.Password != "" {
		if len(*payload.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}
		hash, err := auth.HashPassword(*payload.Password)
		if err != nil {
			respondError(c, errs.Storage("failed to hash password", err))
			return
		}
		user.PasswordHash = hash
	}

	actor.From(c).StampUpdate(&user.UpdatedBy)
	if err := db.Save(&user).Error; err != nil {
		respondError(c, errs.Storage("failed to update user", err))
		return
	}
	c.JSON(http.StatusOK, user)
}

func deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, errs.NotFoundf("user not found"))
			return
		}
		respondError(c, errs.Storage("failed to load user", err))
		return
	}
	activeLoans, err := manager.CountActiveForUser(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if activeLoans > 0 {
		respondError(c, errs.PolicyViolationf("user has active loans and cannot be deleted"))
		return
	}
	if err := db.Delete(&user).Error; err != nil {
		respondError(c, errs.Storage("failed to delete user", err))
		return
	}
	c.Status(http.StatusNoContent)
}

type borrowedBookView struct {
	LoanID     uint      `json:"loan_id"`
	BookID     uint      `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	BorrowedAt time.Time `json:"borrowed_at"`
	DueAt      time.Time `json:"due_at"`
}

// listUserLoans shows the books a user currently has out. Members can
// only see their own shelf; staff and admins can see anyone's.
func listUserLoans(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	act := actor.From(c)
	if act.Is(models.RoleMember) && (act.UserID == nil || *act.UserID != id) {
		respondError(c, errs.Forbiddenf("insufficient permissions"))
		return
	}

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, errs.NotFoundf("user not found"))
			return
		}
		respondError(c, errs.Storage("failed to load user", err))
		return
	}

	var views []borrowedBookView
	err := db.Table("loans").
		Select(`loans.id AS loan_id, books.id AS book_id, books.title, books.author,
			loans.borrowed_at, loans.due_at`).
		Joins("JOIN books ON books.id = loans.book_id").
		Where("loans.user_id = ? AND loans.returned_at IS NULL", id).
		Order("loans.due_at ASC").
		Scan(&views).Error
	if err != nil {
		respondError(c, errs.Storage("failed to list borrowed books", err))
		return
	}
	if views == nil {
		views = []borrowedBookView{}
	}
	c.JSON(http.StatusOK, views)
}
