package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler(c *fiber.Ctx) error { return c.SendString("ok") }

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS())
	app.Post("/api/upload", okHandler)

	req := httptest.NewRequest(fiber.MethodOptions, "/api/upload", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS, DELETE", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", resp.Header.Get("Access-Control-Allow-Headers"))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/api/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
}

func TestRecovery(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID(), Recovery(zap.NewNop()))
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestLoggerPassesErrorsThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Logger(zap.NewNop()), Metrics())
	app.Get("/fail", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "teapot") })
	app.Get("/err", func(c *fiber.Ctx) error { return errors.New("plain") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/err", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestAdminAuth(t *testing.T) {
	app := fiber.New()
	app.Use(AdminAuth(func(credential string) bool { return credential == "pw" }))
	app.Get("/", okHandler)

	tests := []struct {
		header string
		status int
	}{
		{"", fiber.StatusUnauthorized},
		{"pw", fiber.StatusUnauthorized},
		{"Bearer ", fiber.StatusUnauthorized},
		{"Bearer wrong", fiber.StatusUnauthorized},
		{"Basic pw", fiber.StatusUnauthorized},
		{"Bearer pw", fiber.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, "header %q", tt.header)
	}
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := fiber.New()
	app.Use(RateLimit(rdb, RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl"}, zap.NewNop()))
	app.Post("/", okHandler)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	mr.FastForward(time.Minute + time.Second)
	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitRearmsLostExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := fiber.New()
	app.Use(RateLimit(rdb, RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl"}, zap.NewNop()))
	app.Post("/", okHandler)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	key := keys[0]

	// Simulate an EXPIRE that never landed: the counter is over the cap and
	// has no TTL.
	require.NoError(t, mr.Set(key, "5"))
	require.Zero(t, mr.TTL(key))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(time.Minute + time.Second)
	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	app := fiber.New()
	app.Use(RateLimit(rdb, RateLimitConfig{MaxRequests: 1, Window: time.Minute}, zap.NewNop()))
	app.Post("/", okHandler)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil), 5000)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}
