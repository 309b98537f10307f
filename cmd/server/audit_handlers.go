package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/audit"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

func listAuditLogs(c *gin.Context) {
	filter := audit.ListFilter{
		Query:  strings.TrimSpace(c.Query("q")),
		Method: c.Query("method"),
		Entity: c.Query("entity"),
		Skip:   queryInt(c, "skip", 0),
		Limit:  queryInt(c, "limit", 200),
	}
	if status := queryInt(c, "status_code", 0); status > 0 {
		filter.StatusCode = &status
	}
	rows, err := recorder.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.AuditLog{}
	}
	c.JSON(http.StatusOK, rows)
}
