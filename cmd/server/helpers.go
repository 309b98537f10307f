package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
)

// respondError maps the error taxonomy onto HTTP statuses in one place.
// Business failures carry their precise reason; storage failures stay
// generic.
func respondError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": errs.Reason(err)})
	case errs.KindPolicyViolation:
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.Reason(err)})
	case errs.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": errs.Reason(err)})
	case errs.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": errs.Reason(err)})
	case errs.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": errs.Reason(err)})
	default:
		log.Printf("Unexpected error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func pathID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(parsed), true
}

func queryUint(c *gin.Context, name string) *uint {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	value := uint(parsed)
	return &value
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func queryBool(c *gin.Context, name string) *bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	value := raw == "true" || raw == "1"
	return &value
}
