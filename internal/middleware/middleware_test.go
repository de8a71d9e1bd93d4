package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-class-assigner/internal/models"
	"github.com/noah-isme/sma-class-assigner/internal/service"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
)

type tokenValidatorStub struct {
	claims *models.JWTClaims
}

func (s tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newProtectedRouter(role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	tokens := tokenValidatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: role}}
	router.POST("/runs", JWT(tokens), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func TestJWTAndRBAC(t *testing.T) {
	cases := []struct {
		name   string
		role   models.UserRole
		header string
		want   int
	}{
		{"missing header", models.RoleAdmin, "", http.StatusUnauthorized},
		{"malformed header", models.RoleAdmin, "Token good", http.StatusUnauthorized},
		{"bad token", models.RoleAdmin, "Bearer bad", http.StatusUnauthorized},
		{"student forbidden", models.RoleStudent, "Bearer good", http.StatusForbidden},
		{"admin allowed", models.RoleAdmin, "Bearer good", http.StatusCreated},
		{"superadmin allowed", models.RoleSuperAdmin, "bearer good", http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/runs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			newProtectedRouter(tc.role).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestJWTWithTokenService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenService(service.TokenConfig{Secret: "s3cret"})
	token, _, err := tokens.Issue("u-9", models.RoleTeacher, "t@school.test")
	require.NoError(t, err)

	var seen *models.JWTClaims
	router := gin.New()
	router.GET("/me", JWT(tokens), func(c *gin.Context) {
		seen = c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-9", seen.UserID)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	tokens := tokenValidatorStub{claims: &models.JWTClaims{UserID: "u-1"}}
	router.GET("/preview", OptionalJWT(tokens), func(c *gin.Context) {
		_, ok := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	for header, want := range map[string]string{"": "false", "Bearer bad": "false", "Bearer good": "true"} {
		req := httptest.NewRequest(http.MethodGet, "/preview", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), want)
	}
}

func TestAuditLogsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	})
	router.DELETE("/runs/:id", Audit(zap.New(core), "assignment_run.delete"), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			_ = c.Error(errors.New("not found"))
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/runs/r-1", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/runs/missing", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "assignment_run.delete", fields["action"])
	assert.Equal(t, "admin-1", fields["user_id"])
	assert.Equal(t, "r-1", fields["run_id"])
}

func TestMetricsMiddlewareObservesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/runs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/abc", nil))

	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/runs/:id", func(c *gin.Context) {
		SetMeta(c, "mode", "preview")
		SetMeta(c, "seed", int64(42))
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/abc", nil))

	require.NotNil(t, meta)
	assert.Equal(t, "preview", meta["mode"])
	assert.Equal(t, int64(42), meta["seed"])
	assert.Contains(t, meta, "processing_time_ms")
}
