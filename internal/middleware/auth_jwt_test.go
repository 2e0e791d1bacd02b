package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

// =====================
// レスポンス確認用（any禁止）
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, secret string, sub int64, role string, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"iat":  1,
		"exp":  9999999999,
	}

	token := jwt.NewWithClaims(signingMethod, claims)

	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func newProtectedEcho(cfg config.Config) *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mwOKResponse{
			UserID: c.Get(middleware.CtxUserIDKey).(int64),
			Role:   c.Get(middleware.CtxUserRoleKey).(string),
		})
	}, middleware.AuthJWT(cfg))
	return e
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func decodeMWOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

// =====================
// AuthJWT
// =====================

// Authorizationなし => 401
func TestMiddleware_AuthJWT_Unauthorized_NoHeader(t *testing.T) {
	e := newProtectedEcho(config.Config{JWTSecret: "test-secret"})

	rec := runRequest(t, e, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
}

// Bearer形式でない => 401
func TestMiddleware_AuthJWT_Unauthorized_NotBearer(t *testing.T) {
	e := newProtectedEcho(config.Config{JWTSecret: "test-secret"})

	rec := runRequest(t, e, http.MethodGet, "/protected", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// 署名シークレット不一致 => 401
func TestMiddleware_AuthJWT_Unauthorized_WrongSecret(t *testing.T) {
	e := newProtectedEcho(config.Config{JWTSecret: "test-secret"})

	token := mustMakeJWT(t, "other-secret", 1, "USER", jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// HS256以外の署名方式 => 401
func TestMiddleware_AuthJWT_Unauthorized_WrongSigningMethod(t *testing.T) {
	e := newProtectedEcho(config.Config{JWTSecret: "test-secret"})

	token := mustMakeJWT(t, "test-secret", 1, "USER", jwt.SigningMethodHS512)
	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// roleなし => 401
func TestMiddleware_AuthJWT_Unauthorized_MissingRole(t *testing.T) {
	e := newProtectedEcho(config.Config{JWTSecret: "test-secret"})

	claims := jwt.MapClaims{"sub": int64(1), "iat": 1, "exp": 9999999999}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-secret"))
	assert.NoError(t, err)

	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+s)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// 正しいトークン => user_idとroleがcontextに入る
func TestMiddleware_AuthJWT_OK(t *testing.T) {
	e := newProtectedEcho(config.Config{JWTSecret: "test-secret"})

	token := mustMakeJWT(t, "test-secret", 42, "SELLER", jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	ok := decodeMWOK(t, rec)
	assert.Equal(t, int64(42), ok.UserID)
	assert.Equal(t, "SELLER", ok.Role)
}

// =====================
// Role guards
// =====================

func TestMiddleware_AdminRoleGuard_RejectsUser(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: "test-secret"}
	e.GET("/admin-only", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mwOKResponse{})
	}, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

	token := mustMakeJWT(t, "test-secret", 1, "USER", jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/admin-only", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddleware_AdminRoleGuard_AllowsAdmin(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: "test-secret"}
	e.GET("/admin-only", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mwOKResponse{})
	}, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

	token := mustMakeJWT(t, "test-secret", 1, "ADMIN", jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/admin-only", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_SellerRoleGuard_RejectsUser_AllowsSellerAndAdmin(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: "test-secret"}
	e.GET("/seller-only", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mwOKResponse{})
	}, middleware.AuthJWT(cfg), middleware.SellerRoleGuard())

	for role, want := range map[string]int{
		"USER":   http.StatusForbidden,
		"SELLER": http.StatusOK,
		"ADMIN":  http.StatusOK,
	} {
		token := mustMakeJWT(t, "test-secret", 1, role, jwt.SigningMethodHS256)
		rec := runRequest(t, e, http.MethodGet, "/seller-only", "Bearer "+token)
		assert.Equal(t, want, rec.Code, "role=%s", role)
	}
}
