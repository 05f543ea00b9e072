package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("userID"))
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware("secret"))

	if w := do(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if w := do(r, "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}
	token, _ := utils.GenerateToken("secret", time.Hour, "u-1", models.RoleCustomer)
	w := do(r, token)
	if w.Code != http.StatusOK || w.Body.String() != "u-1" {
		t.Fatalf("valid token: %d %q", w.Code, w.Body.String())
	}
}

func TestAdminOnly(t *testing.T) {
	r := newRouter(AuthMiddleware("secret"), AdminOnly())

	customer, _ := utils.GenerateToken("secret", time.Hour, "u-1", models.RoleCustomer)
	if w := do(r, customer); w.Code != http.StatusForbidden {
		t.Fatalf("customer: %d", w.Code)
	}
	admin, _ := utils.GenerateToken("secret", time.Hour, "a-1", models.RoleAdmin)
	if w := do(r, admin); w.Code != http.StatusOK {
		t.Fatalf("admin: %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	r := newRouter(RateLimitMiddleware(limiter))

	for i := 0; i < 2; i++ {
		if w := do(r, ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	if w := do(r, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("over burst: %d", w.Code)
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }
	limiter.GetLimiter("10.0.0.1")

	now = now.Add(visitorIdle + time.Second)
	limiter.GetLimiter("10.0.0.2")
	limiter.evict()

	if n := limiter.Len(); n != 1 {
		t.Fatalf("visitors after evict: %d", n)
	}
}
