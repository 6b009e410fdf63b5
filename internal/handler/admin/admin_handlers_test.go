package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/repository"
	"github.com/Wei-Shaw/tokengate/internal/service"
)

type fixedIssuer struct{ value string }

func (f fixedIssuer) Issue(ctx context.Context, creds *service.Credentials) (*service.IssuedToken, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &service.IssuedToken{AccessToken: f.value, ExpiresIn: 3600}, nil
}

func adminTestConfig() *config.Config {
	return &config.Config{
		Issuer: config.IssuerConfig{
			TimeoutSeconds:         5,
			MaxRetries:             1,
			RetryBackoffMS:         1,
			DefaultTokenTTLSeconds: 3600,
		},
		Cache: config.CacheConfig{
			ExpiringSoonSeconds:   300,
			PersistTimeoutSeconds: 5,
		},
		AutoRefresh: config.AutoRefreshConfig{
			Enabled:              true,
			CheckIntervalSeconds: 3600,
		},
	}
}

func newAdminGateway(creds *service.Credentials) *service.TokenGatewayService {
	cfg := adminTestConfig()
	registry := service.NewSubscriberRegistry()
	cache := service.NewTokenCache(repository.NewNopTokenStore(), registry, nil, cfg)
	return service.NewTokenGatewayService(cache, repository.NewStaticCredentialStore(creds), fixedIssuer{value: "tok-admin"}, registry, cfg)
}

func adminCreds() *service.Credentials {
	return &service.Credentials{EnvironmentID: "env-1", ClientID: "client-1", ClientSecret: "s3cret", Region: domain.RegionUS}
}

func getJSON(t *testing.T, r *gin.Engine, method, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), "body: %s", w.Body.String())
	return w.Code, envelope
}

func TestCacheHandlerClearAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gw := newAdminGateway(adminCreds())
	h := NewCacheHandler(gw)

	r := gin.New()
	r.POST("/cache/clear", h.Clear)
	r.GET("/cache/status", h.Status)

	// Populate one entry through a real acquisition.
	result := gw.GetToken(context.Background(), service.GetTokenOptions{})
	require.True(t, result.Success)

	code, envelope := getJSON(t, r, http.MethodGet, "/cache/status")
	require.Equal(t, http.StatusOK, code)
	data := envelope["data"].(map[string]any)
	require.Equal(t, float64(1), data["count"])
	entries := data["entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	require.Equal(t, "env-1:client-1", entry["tenant_key"])
	require.NotContains(t, entry["token_preview"], "tok-admin")

	code, envelope = getJSON(t, r, http.MethodPost, "/cache/clear")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), envelope["data"].(map[string]any)["cleared"])

	code, envelope = getJSON(t, r, http.MethodGet, "/cache/status")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(0), envelope["data"].(map[string]any)["count"])
}

func TestRefreshHandlerStartStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	refresher := service.NewTokenRefreshService(newAdminGateway(nil), adminTestConfig())
	defer refresher.Stop()
	h := NewRefreshHandler(refresher)

	r := gin.New()
	r.POST("/refresh/start", h.Start)
	r.POST("/refresh/stop", h.Stop)

	code, envelope := getJSON(t, r, http.MethodPost, "/refresh/start")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, envelope["data"].(map[string]any)["running"])

	// Idempotent start.
	code, envelope = getJSON(t, r, http.MethodPost, "/refresh/start")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, envelope["data"].(map[string]any)["running"])

	code, envelope = getJSON(t, r, http.MethodPost, "/refresh/stop")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, envelope["data"].(map[string]any)["running"])
}

func TestRefreshHandlerStartWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := adminTestConfig()
	cfg.AutoRefresh.Enabled = false
	refresher := service.NewTokenRefreshService(newAdminGateway(nil), cfg)
	h := NewRefreshHandler(refresher)

	r := gin.New()
	r.POST("/refresh/start", h.Start)

	code, envelope := getJSON(t, r, http.MethodPost, "/refresh/start")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, envelope["data"].(map[string]any)["running"])
}

type stubProber struct {
	result *service.IssuerProbeResult
	err    error
}

func (s stubProber) Probe(ctx context.Context) (*service.IssuerProbeResult, error) {
	return s.result, s.err
}

func TestIssuerHandlerProbe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewIssuerHandler(stubProber{result: &service.IssuerProbeResult{
		Endpoint:   "https://auth.pingone.com/as/token",
		Reachable:  true,
		StatusCode: 405,
		LatencyMS:  42,
	}})

	r := gin.New()
	r.GET("/issuer/probe", h.Probe)

	code, envelope := getJSON(t, r, http.MethodGet, "/issuer/probe")
	require.Equal(t, http.StatusOK, code)
	data := envelope["data"].(map[string]any)
	require.Equal(t, true, data["reachable"])
	require.Equal(t, float64(405), data["status_code"])
}

func TestSystemHandlerSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSystemHandler(BuildInfo{Version: "1.2.3", BuildType: "release"})

	r := gin.New()
	r.GET("/system", h.Snapshot)

	code, envelope := getJSON(t, r, http.MethodGet, "/system")
	require.Equal(t, http.StatusOK, code)
	data := envelope["data"].(map[string]any)
	require.Equal(t, "1.2.3", data["version"])
	require.Equal(t, "release", data["build_type"])
	require.Contains(t, data, "system")
}
