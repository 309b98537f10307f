package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
)

func TestGetSetRoundtrip(t *testing.T) {
	c := New(true, "nls", 30, "")
	ctx := context.Background()

	var out []string
	assert.False(t, c.GetJSON(ctx, "books:list|x", &out))

	c.SetJSON(ctx, "books:list|x", []string{"a", "b"})
	assert.True(t, c.GetJSON(ctx, "books:list|x", &out))
	assert.Equal(t, []string{"a", "b"}, out)

	// Different key stays a miss.
	assert.False(t, c.GetJSON(ctx, "books:list|y", &out))
}

func TestDisabledCoordinatorNeverHits(t *testing.T) {
	c := New(false, "nls", 30, "")
	ctx := context.Background()

	c.SetJSON(ctx, "k", "v")
	var out string
	assert.False(t, c.GetJSON(ctx, "k", &out))
}

func TestEntriesExpire(t *testing.T) {
	c := New(true, "nls", 1, "")
	ctx := context.Background()

	c.SetJSON(ctx, "k", "v")
	var out string
	assert.True(t, c.GetJSON(ctx, "k", &out))

	// Expire the entry directly instead of sleeping.
	c.memory.mu.Lock()
	for key, entry := range c.memory.entries {
		entry.expiresAt = time.Now().Add(-time.Second)
		c.memory.entries[key] = entry
	}
	c.memory.mu.Unlock()

	assert.False(t, c.GetJSON(ctx, "k", &out))
}

func TestInvalidateAllClearsNamespace(t *testing.T) {
	c := New(true, "nls", 30, "")
	ctx := context.Background()

	c.SetJSON(ctx, "books:list|a", 1)
	c.SetJSON(ctx, "loans:list|b", 2)
	c.InvalidateAll(ctx)

	var out int
	assert.False(t, c.GetJSON(ctx, "books:list|a", &out))
	assert.False(t, c.GetJSON(ctx, "loans:list|b", &out))
}

func TestBuildKeySeparatesIdentityAndQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	key := func(userID *uint, role, target string) string {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest("GET", target, nil)
		actor.Set(ctx, actor.Actor{UserID: userID, Role: role})
		return BuildKey(ctx, "books:list")
	}

	uid := uint(7)
	assert.Equal(t,
		"books:list|user:7|role:staff|path:/books|query:limit=10&q=dune",
		key(&uid, "staff", "/books?q=dune&limit=10"))

	// Query order does not matter.
	assert.Equal(t,
		key(&uid, "staff", "/books?q=dune&limit=10"),
		key(&uid, "staff", "/books?limit=10&q=dune"))

	// Identity does.
	other := uint(8)
	assert.NotEqual(t,
		key(&uid, "staff", "/books"),
		key(&other, "staff", "/books"))
	assert.NotEqual(t,
		key(&uid, "staff", "/books"),
		key(&uid, "admin", "/books"))

	// Anonymous requests key on the anonymous role.
	assert.Equal(t,
		"books:list|user:0|role:anonymous|path:/books|query:",
		key(nil, "", "/books"))
}

func TestInvalidateOnMutationMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := New(true, "nls", 30, "")
	ctx := context.Background()

	r := gin.New()
	r.Use(c.InvalidateOnMutation())
	r.POST("/books", func(g *gin.Context) { g.JSON(http.StatusCreated, gin.H{"id": 1}) })
	r.POST("/broken", func(g *gin.Context) { g.JSON(http.StatusInternalServerError, gin.H{}) })
	r.GET("/books", func(g *gin.Context) { g.JSON(http.StatusOK, gin.H{}) })

	var out int

	// Reads leave the cache alone.
	c.SetJSON(ctx, "k", 1)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/books", nil))
	assert.True(t, c.GetJSON(ctx, "k", &out))

	// A successful mutation clears everything.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/books", nil))
	assert.False(t, c.GetJSON(ctx, "k", &out))

	// A server error keeps the cache: nothing was committed.
	c.SetJSON(ctx, "k", 1)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/broken", nil))
	assert.True(t, c.GetJSON(ctx, "k", &out))
}
