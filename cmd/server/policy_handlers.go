package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/policy"
)

func getPolicy(c *gin.Context) {
	pol, err := policies.GetOrCreate(actor.From(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pol)
}

type policyPayload struct {
	EnforceLimits         *bool    `json:"enforce_limits" binding:"required"`
	MaxActiveLoansPerUser *int     `json:"max_active_loans_per_user" binding:"required"`
	MaxLoanDays           *int     `json:"max_loan_days" binding:"required"`
	FinePerDay            *float64 `json:"fine_per_day" binding:"required"`
}

func updatePolicy(c *gin.Context) {
	var payload policyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pol, err := policies.Update(actor.From(c), policy.Update{
		EnforceLimits:         *payload.EnforceLimits,
		MaxActiveLoansPerUser: *payload.MaxActiveLoansPerUser,
		MaxLoanDays:           *payload.MaxLoanDays,
		FinePerDay:            *payload.FinePerDay,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pol)
}
