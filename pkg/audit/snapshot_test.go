package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

func setupSnapshotDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestDiffCreation(t *testing.T) {
	after := Snapshot{"id": uint(1), "title": "T"}

	diff := Diff(nil, after)
	assert.Len(t, diff, 1)
	created, ok := diff["_created"]
	assert.True(t, ok)
	assert.Nil(t, created.From)
	assert.Equal(t, after, created.To)
}

func TestDiffDeletion(t *testing.T) {
	before := Snapshot{"id": uint(1), "title": "T"}

	diff := Diff(before, nil)
	assert.Len(t, diff, 1)
	deleted, ok := diff["_deleted"]
	assert.True(t, ok)
	assert.Equal(t, before, deleted.From)
	assert.Nil(t, deleted.To)
}

func TestDiffFieldChanges(t *testing.T) {
	before := Snapshot{"title": "T", "author": "A", "copies_total": 2}
	after := Snapshot{"title": "T2", "author": "A", "copies_total": 3}

	diff := Diff(before, after)
	assert.Len(t, diff, 2)
	assert.Equal(t, Change{From: "T", To: "T2"}, diff["title"])
	assert.Equal(t, Change{From: 2, To: 3}, diff["copies_total"])
	_, untouched := diff["author"]
	assert.False(t, untouched)
}

func TestDiffNoChange(t *testing.T) {
	snap := Snapshot{"title": "T"}
	assert.Nil(t, Diff(snap, Snapshot{"title": "T"}))
	assert.Nil(t, Diff(nil, nil))
}

func TestSnapshotUserOmitsPasswordHash(t *testing.T) {
	db := setupSnapshotDB(t)
	email := "dev@library.dev"
	user := models.User{Name: "Dev", Email: &email, Role: models.RoleStaff, PasswordHash: "secret-hash"}
	assert.NoError(t, db.Create(&user).Error)

	snap, ok := snapshotUser(db, user.ID)
	assert.True(t, ok)
	assert.Equal(t, "Dev", snap["name"])
	assert.Equal(t, "dev@library.dev", snap["email"])
	for key := range snap {
		assert.NotEqual(t, "password_hash", key)
	}
}

func TestSnapshotBookFields(t *testing.T) {
	db := setupSnapshotDB(t)
	book := models.Book{Title: "Dune", Author: "Frank Herbert", CopiesTotal: 2, CopiesAvailable: 1}
	assert.NoError(t, db.Create(&book).Error)

	snap, ok := snapshotBook(db, book.ID)
	assert.True(t, ok)
	assert.Equal(t, "Dune", snap["title"])
	assert.Equal(t, 2, snap["copies_total"])
	assert.Equal(t, 1, snap["copies_available"])
	assert.Nil(t, snap["isbn"])

	_, ok = snapshotBook(db, 999)
	assert.False(t, ok)
}
