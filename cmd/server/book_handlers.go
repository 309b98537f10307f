package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/cache"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

func listBooks(c *gin.Context) {
	cacheKey := cache.BuildKey(c, "books:list")
	var cached []models.Book
	if responses.GetJSON(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := db.Model(&models.Book{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + q + "%"
		query = query.Where(
			`title LIKE ? OR author LIKE ? OR COALESCE(isbn, '') LIKE ?
			 OR COALESCE(subject, '') LIKE ? OR COALESCE(rack_number, '') LIKE ?`,
			like, like, like, like, like)
	}
	if subject := strings.TrimSpace(c.Query("subject")); subject != "" {
		query = query.Where("subject LIKE ?", "%"+subject+"%")
	}
	if year := queryUint(c, "published_year"); year != nil {
		query = query.Where("published_year = ?", *year)
	}
	if c.Query("available_only") == "true" {
		query = query.Where("copies_available > 0")
	}

	limit := queryInt(c, "limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var books []models.Book
	err := query.Order("title ASC").Offset(queryInt(c, "skip", 0)).Limit(limit).Find(&books).Error
	if err != nil {
		respondError(c, errs.Storage("failed to list books", err))
		return
	}

	responses.SetJSON(c.Request.Context(), cacheKey, books)
	c.JSON(http.StatusOK, books)
}

func getBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var book models.Book
	if err := db.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, errs.NotFoundf("book not found"))
			return
		}
		respondError(c, errs.Storage("failed to load book", err))
		return
	}
	c.JSON(http.StatusOK, book)
}

type bookPayload struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	Subject       *string `json:"subject"`
	RackNumber    *string `json:"rack_number"`
	ISBN          *string `json:"isbn"`
	PublishedYear *int    `json:"published_year"`
	CopiesTotal   *int    `json:"copies_total"`
}

func createBook(c *gin.Context) {
	var payload bookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.Title == nil || strings.TrimSpace(*payload.Title) == "" ||
		payload.Author == nil || strings.TrimSpace(*payload.Author) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and author are required"})
		return
	}
	if payload.CopiesTotal == nil || *payload.CopiesTotal < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "copies_total must be at least 1"})
		return
	}

	book := models.Book{
		Title:           strings.TrimSpace(*payload.Title),
		Author:          strings.TrimSpace(*payload.Author),
		Subject:         normalizeOptional(payload.Subject),
		RackNumber:      normalizeOptional(payload.RackNumber),
		ISBN:            normalizeOptional(payload.ISBN),
		PublishedYear:   payload.PublishedYear,
		CopiesTotal:     *payload.CopiesTotal,
		CopiesAvailable: *payload.CopiesTotal,
	}
	if book.ISBN != nil {
		var existing models.Book
		if err := db.Where("isbn = ?", *book.ISBN).First(&existing).Error; err == nil {
			respondError(c, errs.Conflictf("a book with this ISBN already exists"))
			return
		}
	}

	actor.From(c).StampCreate(&book.CreatedBy, &book.UpdatedBy)
	if err := db.Create(&book).Error; err != nil {
		respondError(c, errs.Storage("failed to create book", err))
		return
	}
	c.JSON(http.StatusCreated, book)
}

func updateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload bookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var book models.Book
	if err := db.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, errs.NotFoundf("book not found"))
			return
		}
		respondError(c, errs.Storage("failed to load book", err))
		return
	}

	if payload.Title != nil && strings.TrimSpace(*payload.Title) != "" {
		book.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Author != nil && strings.TrimSpace(*payload.Author) != "" {
		book.Author = strings.TrimSpace(*payload.Author)
	}
	if payload.Subject != nil {
		book.Subject = normalizeOptional(payload.Subject)
	}
	if payload.RackNumber != nil {
		book.RackNumber = normalizeOptional(payload.RackNumber)
	}
	if payload.ISBN != nil {
		book.ISBN = normalizeOptional(payload.ISBN)
	}
	if payload.PublishedYear != nil {
		book.PublishedYear = payload.PublishedYear
	}
	if payload.CopiesTotal != nil {
		newTotal := *payload.CopiesTotal
		if newTotal < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "copies_total must be at least 1"})
			return
		}
		activeLoans, err := manager.CountActiveForBook(book.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if int64(newTotal) < activeLoans {
			respondError(c, errs.Conflictf("copies_total cannot be less than active loans"))
			return
		}
		delta := newTotal - book.CopiesTotal
		book.CopiesTotal = newTotal
		book.CopiesAvailable += delta
		if book.CopiesAvailable < 0 {
			book.CopiesAvailable = 0
		}
	}

	actor.From(c).StampUpdate(&book.UpdatedBy)
	if err := db.Save(&book).Error; err != nil {
		respondError(c, errs.Storage("failed to update book", err))
		return
	}
	c.JSON(http.StatusOK, book)
}

func deleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var book models.Book
	if err := db.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, errs.NotFoundf("book not found"))
			return
		}
		respondError(c, errs.Storage("failed to load book", err))
		return
	}
	activeLoans, err := manager.CountActiveForBook(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if activeLoans > 0 {
		respondError(c, errs.Conflictf("book has active loans and cannot be deleted"))
		return
	}
	if err := db.Delete(&book).Error; err != nil {
		respondError(c, errs.Storage("failed to delete book", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
