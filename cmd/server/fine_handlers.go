package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/cache"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/fines"
)

// listFineLedger is the cross-loan payment ledger for the front desk.
func listFineLedger(c *gin.Context) {
	cacheKey := cache.BuildKey(c, "fines:ledger")
	var cached []fines.LedgerRow
	if responses.GetJSON(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	filter := fines.LedgerFilter{
		Query:    strings.TrimSpace(c.Query("q")),
		UserID:   queryUint(c, "user_id"),
		LoanID:   queryUint(c, "loan_id"),
		SortBy:   c.Query("sort_by"),
		SortDesc: c.Query("sort_dir") == "desc",
		Skip:     queryInt(c, "skip", 0),
		Limit:    queryInt(c, "limit", 100),
	}
	if modes := c.Query("payment_modes"); modes != "" {
		for _, mode := range strings.Split(modes, ",") {
			if mode = strings.TrimSpace(mode); mode != "" {
				filter.PaymentModes = append(filter.PaymentModes, mode)
			}
		}
	}
	if from := queryDate(c, "collected_from"); from != nil {
		filter.CollectedFrom = from
	}
	if to := queryDate(c, "collected_to"); to != nil {
		end := to.AddDate(0, 0, 1)
		filter.CollectedTo = &end
	}

	rows, err := ledger.ListLedger(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []fines.LedgerRow{}
	}

	responses.SetJSON(c.Request.Context(), cacheKey, rows)
	c.JSON(http.StatusOK, rows)
}

func queryDate(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}
