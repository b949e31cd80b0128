package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func claimsFor(id primitive.ObjectID, role string) jwt.MapClaims {
	return jwt.MapClaims{
		"userId": id.Hex(),
		"email":  "ana@example.cl",
		"role":   role,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"userId": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": id.Hex(), "role": c.GetString(RoleKey)})
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthGuard(t *testing.T) {
	id := primitive.NewObjectID()
	r := newEngine(AuthGuard(testSecret))

	w := do(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "requerido")

	assert.Equal(t, http.StatusUnauthorized, do(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, signed(t, claimsFor(id, models.RoleUser), "otro-secreto")).Code)

	expired := claimsFor(id, models.RoleUser)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	assert.Equal(t, http.StatusUnauthorized, do(r, signed(t, expired, testSecret)).Code)

	w = do(r, signed(t, claimsFor(id, models.RoleUser), testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.Hex())
}

func TestAdminAuthChecksRole(t *testing.T) {
	id := primitive.NewObjectID()
	r := newEngine(AdminAuth(testSecret))

	assert.Equal(t, http.StatusForbidden, do(r, signed(t, claimsFor(id, models.RoleUser), testSecret)).Code)
	assert.Equal(t, http.StatusOK, do(r, signed(t, claimsFor(id, models.RoleAdmin), testSecret)).Code)
}

func TestParseBearerRejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claimsFor(primitive.NewObjectID(), models.RoleUser)).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseBearer("Bearer "+token, testSecret)
	assert.Error(t, err)
}

func TestOptionalAuthFallsBackToGuest(t *testing.T) {
	id := primitive.NewObjectID()
	r := newEngine(OptionalAuth(testSecret))

	w := do(r, "Bearer garbage")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":""}`, w.Body.String())

	w = do(r, signed(t, claimsFor(id, models.RoleUser), testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.Hex())
}

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute, func() time.Time { return now })

	ok, _ := limiter.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = limiter.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, retry := limiter.Allow("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = limiter.Allow("2.2.2.2")
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = limiter.Allow("1.1.1.1")
	assert.True(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(RateLimit(NewRateLimiter(1, time.Hour, nil), "Demasiados intentos"))

	assert.Equal(t, http.StatusOK, do(r, "").Code)
	w := do(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Demasiados intentos")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestNilRateLimiterAllows(t *testing.T) {
	var limiter *RateLimiter
	ok, _ := limiter.Allow("x")
	assert.True(t, ok)
	assert.Nil(t, NewRateLimiter(0, time.Minute, nil))
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := newEngine(RequestLogger(zap.NewNop()))

	w := do(r, "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := newEngine(CORS([]string{"https://ositoslua.cl"}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://ositoslua.cl")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://ositoslua.cl", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
