package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/CloudShare/config"
	"github.com/sifan077/CloudShare/internal/app/service"
	"github.com/sifan077/CloudShare/internal/app/store"
	"github.com/sifan077/CloudShare/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			SiteName:       "CloudShare",
			AdminPath:      "admin",
			AdminPassword:  "pw",
			MaxUploadBytes: config.DefaultMaxUploadBytes,
			PublicBaseURL:  "https://share.example/",
		},
		RateLimit: config.RateLimitConfig{Enabled: true, MaxRequests: 1, Window: time.Minute},
	}
}

func newTestServer(t *testing.T, rdb redis.UniversalClient) *Server {
	t.Helper()
	st := store.NewCachedStore(store.NewRedisStore(rdb), 16, time.Minute)
	return New(Dependencies{
		Config: testConfig(),
		Shares: service.NewShareService(service.ShareDeps{Store: st}),
		Admin:  service.NewAdminService(nil, st, nil, "pw"),
		Redis:  rdb,
	})
}

type uploadResult struct {
	Code   int
	Header http.Header
	Body   []byte
}

func upload(t *testing.T, s *Server, content string) uploadResult {
	t.Helper()
	body, err := json.Marshal(map[string]any{"content": content})
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/api/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return uploadResult{Code: resp.StatusCode, Header: resp.Header, Body: raw}
}

func TestServer_UploadAndResolve(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newTestServer(t, rdb)

	rec := upload(t, s, "hello world")
	require.Equal(t, fiber.StatusOK, rec.Code, string(rec.Body))
	assert.NotEmpty(t, rec.Header.Get(middleware.RequestIDHeader))
	assert.Equal(t, "*", rec.Header.Get("Access-Control-Allow-Origin"))

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body, &out))
	assert.Equal(t, "https://share.example/raw/"+out.ID, out.URL)

	// Stored in redis under the documented key layout.
	assert.True(t, mr.Exists("meta:"+out.ID))
	content, err := mr.Get("content:" + out.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", content)

	resp, err := s.App().Test(httptest.NewRequest(fiber.MethodGet, "/raw/"+out.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestServer_UploadRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newTestServer(t, rdb)

	require.Equal(t, fiber.StatusOK, upload(t, s, "one").Code)
	assert.Equal(t, fiber.StatusTooManyRequests, upload(t, s, "two").Code)

	// Reads are not limited.
	resp, err := s.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/config", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestServer_UnknownRouteIsJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newTestServer(t, rdb)

	resp, err := s.App().Test(httptest.NewRequest(fiber.MethodGet, "/nope/really", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}
