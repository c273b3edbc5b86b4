package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mileage-service/internal/domain/trip"
	"mileage-service/internal/pkg/jwt"
	"mileage-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier map[string]*jwt.Claims

func (s stubVerifier) VerifyAccessToken(token string) (*jwt.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	auth := NewAuthMiddleware(stubVerifier{
		"operator": {IdentityID: 7, TenantID: 42, Roles: []string{jwt.RoleOperator}},
		"admin":    {IdentityID: 1, TenantID: 42, Roles: []string{jwt.RoleAdmin}},
	})

	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()), LoggingMiddleware(zap.NewNop()))
	r.GET("/me", auth.Auth(), func(c *gin.Context) {
		tc := MustGetTenantContext(c)
		c.JSON(http.StatusOK, tc)
	})
	r.GET("/admin", append(auth.AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})...)
	r.GET("/panic", func(c *gin.Context) {
		MustGetTenantContext(c)
	})
	return r
}

func TestAuth(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing token", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"bearer header", "/me", "Bearer operator", http.StatusOK},
		{"query token", "/me?token=operator", "", http.StatusOK},
		{"operator is not admin", "/admin", "Bearer operator", http.StatusForbidden},
		{"admin", "/admin", "Bearer admin", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestAuth_SetsTenantContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewAuthMiddleware(stubVerifier{"t": {IdentityID: 7, TenantID: 42}})

	var got trip.TenantContext
	r := gin.New()
	r.GET("/", auth.Auth(), func(c *gin.Context) {
		got = MustGetTenantContext(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer t")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, trip.TenantContext{TenantID: 42, ActorID: 7}, got)
}

func TestRecoveryMiddleware(t *testing.T) {
	r := newRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLoggingMiddleware_KeepsIncomingRequestID(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestRequireRole_EnvelopeCarriesRolesAndRequestID(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer operator")
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)

	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{jwt.RoleAdmin}, data["required_roles"])
	assert.Equal(t, []interface{}{jwt.RoleOperator}, data["user_roles"])
}

func TestGetTenantContext_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetTenantContext(c)
	assert.False(t, ok)
	assert.Panics(t, func() { MustGetTenantContext(c) })
}
