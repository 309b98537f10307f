package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/auth"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/loans"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func sampleBooks() []models.Book {
	return []models.Book{
		{Title: "The Pragmatic Programmer", Author: "Andrew Hunt", Subject: strPtr("Software Engineering"), RackNumber: strPtr("SE-A1"), ISBN: strPtr("9780201616224"), PublishedYear: intPtr(1999), CopiesTotal: 3, CopiesAvailable: 3},
		{Title: "Clean Code", Author: "Robert C. Martin", Subject: strPtr("Software Engineering"), RackNumber: strPtr("SE-A2"), ISBN: strPtr("9780132350884"), PublishedYear: intPtr(2008), CopiesTotal: 2, CopiesAvailable: 2},
		{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Subject: strPtr("Distributed Systems"), RackNumber: strPtr("DS-B1"), ISBN: strPtr("9781449373320"), PublishedYear: intPtr(2017), CopiesTotal: 2, CopiesAvailable: 2},
		{Title: "Refactoring", Author: "Martin Fowler", Subject: strPtr("Software Engineering"), RackNumber: strPtr("SE-A3"), ISBN: strPtr("9780201485677"), PublishedYear: intPtr(1999), CopiesTotal: 1, CopiesAvailable: 1},
		{Title: "Working Effectively with Legacy Code", Author: "Michael Feathers", Subject: strPtr("Software Engineering"), RackNumber: strPtr("SE-A4"), ISBN: strPtr("9780131177055"), PublishedYear: intPtr(2004), CopiesTotal: 1, CopiesAvailable: 1},
	}
}

func sampleUsers() []models.User {
	return []models.User{
		{Name: "Avery Taylor", Email: strPtr("avery@library.dev"), Phone: strPtr("555-0111"), Role: models.RoleStaff},
		{Name: "Jordan Lee", Email: strPtr("jordan@library.dev"), Phone: strPtr("555-0112"), Role: models.RoleMember},
		{Name: "Riley Chen", Email: strPtr("riley@library.dev"), Phone: strPtr("555-0113"), Role: models.RoleMember},
		{Name: "Casey Morgan", Email: strPtr("casey@library.dev"), Phone: strPtr("555-0114"), Role: models.RoleAdmin},
	}
}

// seedSampleData loads a small demo dataset on an empty database. It
// refuses to touch a database that already has any catalog, membership
// or circulation rows.
func seedSampleData(c *gin.Context) {
	if !cfg.EnableSeed {
		respondError(c, errs.Forbiddenf("seeding is disabled"))
		return
	}

	var bookCount, userCount, loanCount int64
	if err := db.Model(&models.Book{}).Count(&bookCount).Error; err != nil {
		respondError(c, errs.Storage("failed to count books", err))
		return
	}
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		respondError(c, errs.Storage("failed to count users", err))
		return
	}
	if err := db.Model(&models.Loan{}).Count(&loanCount).Error; err != nil {
		respondError(c, errs.Storage("failed to count loans", err))
		return
	}
	if bookCount > 0 || userCount > 0 || loanCount > 0 {
		c.JSON(http.StatusOK, gin.H{
			"status":  "skipped",
			"message": "sample data already exists",
			"counts":  gin.H{"books": bookCount, "users": userCount, "loans": loanCount},
		})
		return
	}

	act := actor.From(c)
	hash, err := auth.HashPassword(cfg.DefaultUserPassword)
	if err != nil {
		respondError(c, errs.Storage("failed to hash password", err))
		return
	}

	books := sampleBooks()
	for i := range books {
		act.StampCreate(&books[i].CreatedBy, &books[i].UpdatedBy)
		if err := db.Create(&books[i]).Error; err != nil {
			respondError(c, errs.Storage("failed to seed books", err))
			return
		}
	}
	users := sampleUsers()
	for i := range users {
		users[i].PasswordHash = hash
		act.StampCreate(&users[i].CreatedBy, &users[i].UpdatedBy)
		if err := db.Create(&users[i]).Error; err != nil {
			respondError(c, errs.Storage("failed to seed users", err))
			return
		}
	}

	seedLoans := []loans.BorrowRequest{
		{BookID: books[0].ID, UserID: users[1].ID, Days: 14},
		{BookID: books[2].ID, UserID: users[2].ID, Days: 21},
		{BookID: books[1].ID, UserID: users[0].ID, Days: 7},
	}
	for _, req := range seedLoans {
		if _, err := manager.Borrow(act, req); err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "created",
		"counts": gin.H{"books": len(books), "users": len(users), "loans": len(seedLoans)},
	})
}
