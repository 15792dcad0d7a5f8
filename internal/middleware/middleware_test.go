package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sorting-hall/internal/config"
	"github.com/iliyamo/sorting-hall/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, cl utils.Claims) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, cl, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

// newServer mounts GET /tables/:id behind JWTAuth and the given guards.
func newServer(guards ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	mw := append([]echo.MiddlewareFunc{JWTAuth(secret)}, guards...)
	e.GET("/tables/:id", func(c echo.Context) error {
		cl, _ := ClaimsFrom(c)
		return c.String(http.StatusOK, cl.Subject)
	}, mw...)
	return e
}

func do(e *echo.Echo, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := newServer()
	assert.Equal(t, http.StatusUnauthorized, do(e, "/tables/1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, "/tables/1", "Bearer junk").Code)

	rec := do(e, "/tables/1", bearer(t, utils.OperatorClaims()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := newServer(RequireRole(utils.RoleOperator))
	assert.Equal(t, http.StatusOK, do(e, "/tables/1", bearer(t, utils.OperatorClaims())).Code)
	assert.Equal(t, http.StatusForbidden, do(e, "/tables/1", bearer(t, utils.TableClaims(1))).Code)
}

func TestRequireTable(t *testing.T) {
	e := newServer(RequireRole(utils.RoleOperator, utils.RoleTable), RequireTable("id"))
	kiosk := bearer(t, utils.TableClaims(3))

	assert.Equal(t, http.StatusOK, do(e, "/tables/3", kiosk).Code)
	assert.Equal(t, http.StatusForbidden, do(e, "/tables/4", kiosk).Code)
	assert.Equal(t, http.StatusForbidden, do(e, "/tables/x", kiosk).Code)
	assert.Equal(t, http.StatusOK, do(e, "/tables/4", bearer(t, utils.OperatorClaims())).Code)
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := do(e, "/", "")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))
	n := 0
	e.GET("/", func(c echo.Context) error {
		n++
		return c.String(http.StatusOK, strconv.Itoa(n))
	})
	for i := 0; i < 3; i++ {
		rec := do(e, "/", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 3, n)
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:6])
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/hall?x=1", nil)
	req.Header.Set("X-Real-IP", "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/hall")

	assert.Equal(t, "hall-cache:GET:/v1/hall?x=1", cacheKey(config.CacheConfig{Prefix: "hall-cache"}, c))

	rl := config.RateLimitConfig{Prefix: "hall-rl"}
	assert.Equal(t, "hall-rl:ip:10.0.0.7:sub:anon:route:GET /v1/hall", buildRateKey(rl, c))
	rl.KeyStrategy = "ip"
	assert.Equal(t, "hall-rl:ip:10.0.0.7", buildRateKey(rl, c))

	c.Set(claimsKey, utils.TableClaims(2))
	rl.KeyStrategy = "subject"
	assert.Equal(t, "hall-rl:sub:table:2", buildRateKey(rl, c))
}
