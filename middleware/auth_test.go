package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"vidyavichar/models"
	"vidyavichar/services"
)

type resolverFunc func(ctx context.Context, token string) (models.Principal, error)

func (f resolverFunc) Resolve(ctx context.Context, token string) (models.Principal, error) {
	return f(ctx, token)
}

func newEngine(resolver PrincipalResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(resolver), func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role})
	})
	return r
}

func TestAuth(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, token string) (models.Principal, error) {
		switch token {
		case "good":
			return models.Principal{ID: "u1", Role: models.RoleTA}, nil
		case "broken":
			return models.Principal{}, &services.Error{Kind: services.KindInternal, Message: "redis unavailable", Err: errors.New("dial tcp")}
		default:
			return models.Principal{}, &services.Error{Kind: services.KindUnauthorized, Message: "Token is not valid"}
		}
	})
	r := newEngine(resolver)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, `{"message":"No token, authorization denied"}`},
		{"not bearer", "Basic dTpw", http.StatusUnauthorized, `{"message":"No token, authorization denied"}`},
		{"rejected token", "Bearer bad", http.StatusUnauthorized, `{"message":"Token is not valid"}`},
		{"resolver failure", "Bearer broken", http.StatusInternalServerError, `{"message":"redis unavailable"}`},
		{"valid", "Bearer good", http.StatusOK, `{"id":"u1","role":"TA"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/classes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/classes", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
