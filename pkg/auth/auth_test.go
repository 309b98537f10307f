package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
)

func TestTokenRoundtrip(t *testing.T) {
	tokens := NewTokens("test-secret", 60)

	signed, err := tokens.Issue(7, "staff", "staff@library.dev")
	assert.NoError(t, err)
	assert.NotEmpty(t, signed)

	claims, err := tokens.Verify(signed)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), claims.UID)
	assert.Equal(t, "staff", claims.Role)
	assert.Equal(t, "staff@library.dev", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenJTIsAreUnique(t *testing.T) {
	tokens := NewTokens("test-secret", 60)

	first, _ := tokens.Issue(1, "member", "a")
	second, _ := tokens.Issue(1, "member", "a")
	firstClaims, err := tokens.Verify(first)
	assert.NoError(t, err)
	secondClaims, err := tokens.Verify(second)
	assert.NoError(t, err)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	tokens := NewTokens("test-secret", 60)
	other := NewTokens("other-secret", 60)

	signed, _ := other.Issue(1, "admin", "x")
	_, err := tokens.Verify(signed)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	_, err = tokens.Verify("not.a.token")
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	expired := NewTokens("test-secret", -1)
	signed, _ = expired.Issue(1, "admin", "x")
	_, err = tokens.Verify(signed)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
	assert.False(t, VerifyPassword("correct horse battery staple", "not-a-hash"))
}

func TestLoginRateLimiter(t *testing.T) {
	limiter := NewLoginRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"))
	}
	assert.False(t, limiter.Allow("10.0.0.1"))

	// Other clients have their own window.
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestLoginRateLimiterWindowSlides(t *testing.T) {
	limiter := NewLoginRateLimiter(1, 10*time.Millisecond)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestActorContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokens("test-secret", 60)

	r := gin.New()
	r.Use(ActorContext(tokens))
	r.GET("/whoami", func(c *gin.Context) {
		a := actor.From(c)
		if !a.Known() {
			c.JSON(http.StatusOK, gin.H{"role": "anonymous"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": *a.UserID, "role": a.Role})
	})

	signed, _ := tokens.Issue(5, "admin", "x")
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)

	// No token still reaches the handler, just anonymously.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/whoami", nil))
	assert.Contains(t, w.Body.String(), `"role":"anonymous"`)

	// Garbage tokens are treated as absent, not as an error.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"role":"anonymous"`)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokens("test-secret", 60)

	r := gin.New()
	r.Use(ActorContext(tokens))
	r.GET("/admin-only", RequireRoles("admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	// Anonymous → 401.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin-only", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong role → 403.
	staffToken, _ := tokens.Issue(2, "staff", "x")
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Right role → 200.
	adminToken, _ := tokens.Issue(1, "admin", "x")
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
