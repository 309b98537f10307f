package actor

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestKnownAndIs(t *testing.T) {
	assert.False(t, Actor{}.Known())
	assert.False(t, Actor{}.Is("admin"))

	uid := uint(3)
	a := Actor{UserID: &uid, Role: "staff"}
	assert.True(t, a.Known())
	assert.True(t, a.Is("staff", "admin"))
	assert.False(t, a.Is("admin"))
}

func TestContextRoundtrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	// Absent actor reads as the zero value.
	assert.False(t, From(c).Known())

	uid := uint(9)
	Set(c, Actor{UserID: &uid, Role: "admin"})
	got := From(c)
	assert.Equal(t, uint(9), *got.UserID)
	assert.Equal(t, "admin", got.Role)
}

func TestStamping(t *testing.T) {
	uid := uint(4)
	a := Actor{UserID: &uid, Role: "admin"}

	var createdBy, updatedBy *uint
	a.StampCreate(&createdBy, &updatedBy)
	assert.Equal(t, uid, *createdBy)
	assert.Equal(t, uid, *updatedBy)

	// An anonymous actor stamps nothing.
	var anonCreated, anonUpdated *uint
	Actor{}.StampCreate(&anonCreated, &anonUpdated)
	assert.Nil(t, anonCreated)
	assert.Nil(t, anonUpdated)
}
