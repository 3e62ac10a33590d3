package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldops_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-access-secret"

type testJWTConfig struct{}

func (testJWTConfig) GetJWTAccessSecret() string { return testSecret }

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newAuthEngine(captured *Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", AuthRequired(testJWTConfig{}), func(c *gin.Context) {
		p, ok := RequirePrincipal(c)
		if !ok {
			return
		}
		*captured = p
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	var got Principal
	engine := newAuthEngine(&got)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
		"sub":   userID.String(),
		"type":  "access",
		"email": " tech@example.com ",
		"exp":   time.Now().Add(time.Minute).Unix(),
	}))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got.UserID != userID || got.Email != "tech@example.com" {
		t.Fatalf("unexpected principal %+v for %s", got, userID)
	}
}

func TestAuthRequiredRejectsRefreshToken(t *testing.T) {
	var got Principal
	engine := newAuthEngine(&got)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "refresh",
	}))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	var got Principal
	engine := newAuthEngine(&got)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperr.NotFound("visit not found"), http.StatusNotFound},
		{"forbidden", apperr.Forbidden("not assigned"), http.StatusForbidden},
		{"invalid transition", apperr.InvalidTransition("scheduled", "completed"), http.StatusBadRequest},
		{"unauthorized", apperr.Unauthorized("no membership"), http.StatusUnauthorized},
		{"wrapped", errors.Join(errors.New("ctx"), apperr.Conflict("dup")), http.StatusConflict},
		{"untyped", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			if !HandleError(c, tc.err) {
				t.Fatal("expected error to be handled")
			}
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestIPRateLimiterBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(0, 1, nil)
	engine := gin.New()
	engine.GET("/", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d then %d", first.Code, second.Code)
	}
}

func TestRequirePrincipalRejectsMissingOrNilUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for name, setup := range map[string]gin.HandlerFunc{
		"missing":  func(c *gin.Context) { c.Next() },
		"nil user": func(c *gin.Context) { SetPrincipal(c, Principal{Email: "x@example.com"}); c.Next() },
	} {
		t.Run(name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/", setup, func(c *gin.Context) {
				if _, ok := RequirePrincipal(c); ok {
					c.Status(http.StatusOK)
				}
			})
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
