package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/cache"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/fines"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/loans"
)

type borrowPayload struct {
	BookID uint `json:"book_id" binding:"required"`
	UserID uint `json:"user_id" binding:"required"`
	Days   int  `json:"days"`
}

func borrowBook(c *gin.Context) {
	var payload borrowPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loan, err := manager.Borrow(actor.From(c), loans.BorrowRequest{
		BookID: payload.BookID,
		UserID: payload.UserID,
		Days:   payload.Days,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

func returnBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	loan, err := manager.Return(actor.From(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func listLoans(c *gin.Context) {
	cacheKey := cache.BuildKey(c, "loans:list")
	var cached []loans.View
	if responses.GetJSON(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	filter := loans.Filter{
		Query:       strings.TrimSpace(c.Query("q")),
		Active:      queryBool(c, "active"),
		UserID:      queryUint(c, "user_id"),
		BookID:      queryUint(c, "book_id"),
		OverdueOnly: c.Query("overdue_only") == "true",
		SortBy:      c.Query("sort_by"),
		SortDesc:    c.Query("sort_dir") == "desc",
		Skip:        queryInt(c, "skip", 0),
		Limit:       queryInt(c, "limit", 100),
	}
	views, err := manager.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if views == nil {
		views = []loans.View{}
	}

	responses.SetJSON(c.Request.Context(), cacheKey, views)
	c.JSON(http.StatusOK, views)
}

type extendPayload struct {
	ExtraDays int `json:"extra_days" binding:"required"`
}

func extendLoan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload extendPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loan, err := manager.Extend(actor.From(c), id, payload.ExtraDays)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func deleteLoan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := manager.Remove(actor.From(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func getLoanFineSummary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	loan, err := manager.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	pol, err := policies.GetOrCreate(actor.From(c))
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := ledger.SummaryForLoan(loan, pol, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func listLoanFinePayments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := manager.Get(id); err != nil {
		respondError(c, err)
		return
	}
	payments, err := ledger.ListForLoan(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

type paymentPayload struct {
	Amount      float64 `json:"amount" binding:"required"`
	PaymentMode string  `json:"payment_mode" binding:"required"`
	Reference   *string `json:"reference"`
	Notes       *string `json:"notes"`
}

func collectFinePayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload paymentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	act := actor.From(c)
	pol, err := policies.GetOrCreate(act)
	if err != nil {
		respondError(c, err)
		return
	}
	payment, err := ledger.CreateForLoan(act, id, pol, fines.CreatePayment{
		Amount:      payload.Amount,
		PaymentMode: payload.PaymentMode,
		Reference:   payload.Reference,
		Notes:       payload.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}
