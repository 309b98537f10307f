package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/imports"
)

// importFile reads the uploaded CSV from the "file" form field and hands
// the parsed rows to one importer method.
func importFile(c *gin.Context, load func(a actor.Actor, rows []map[string]string) imports.Result) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
		return
	}
	defer file.Close()

	rows, err := imports.ParseCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, load(actor.From(c), rows))
}

func importBooks(c *gin.Context) {
	importFile(c, importer.Books)
}

func importUsers(c *gin.Context) {
	importFile(c, importer.Users)
}

func importLoans(c *gin.Context) {
	importFile(c, importer.Loans)
}
