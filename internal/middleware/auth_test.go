package middleware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/middleware"
)

type stubLookup struct {
	slug string
	err  error
}

func (s *stubLookup) GetTenantByAPIKey(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.slug, nil
}

func authRouter(lookup middleware.TenantLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	r := gin.New()
	r.Use(middleware.AuthMiddleware(lookup, log))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": c.GetString(middleware.TenantSlugKey)})
	})
	return r
}

func TestAuthMiddlewareValidKey(t *testing.T) {
	r := authRouter(&stubLookup{slug: "acme"})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); body != `{"tenant":"acme"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	r := authRouter(&stubLookup{slug: "acme"})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareInvalidKey(t *testing.T) {
	r := authRouter(&stubLookup{err: errors.New("no such tenant")})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer bad-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", ""},
		{"Basic abc123", ""},
		{"", ""},
	}

	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			c.Request.Header.Set("Authorization", tc.header)
		}

		if got := middleware.ExtractBearerToken(c); got != tc.want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
