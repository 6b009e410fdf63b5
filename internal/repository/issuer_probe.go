package repository

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/pkg/httpclient"
	"github.com/Wei-Shaw/tokengate/internal/service"
)

// issuerProbeService checks whether the configured issuer answers over the
// configured network path, including any proxy. Any HTTP response counts as
// reachable; the probe is about the path, not about issuer semantics.
type issuerProbeService struct {
	endpoint string
	proxyURL string
	timeout  time.Duration
}

func NewIssuerProber(cfg *config.Config) service.IssuerProber {
	return &issuerProbeService{
		endpoint: probeEndpoint(cfg),
		proxyURL: cfg.Issuer.ProxyURL,
		timeout:  cfg.Issuer.Timeout(),
	}
}

// probeEndpoint picks the issuer origin: an explicit base URL wins, then the
// configured credential region, then the default region.
func probeEndpoint(cfg *config.Config) string {
	if cfg.Issuer.BaseURL != "" {
		return strings.TrimRight(cfg.Issuer.BaseURL, "/") + cfg.Issuer.TokenPath
	}
	region := cfg.Credentials.Region
	base, ok := domain.IssuerBaseURL(region)
	if !ok {
		base, _ = domain.IssuerBaseURL(domain.RegionUS)
	}
	return base + cfg.Issuer.TokenPath
}

func (s *issuerProbeService) Probe(ctx context.Context) (*service.IssuerProbeResult, error) {
	client, err := httpclient.GetClient(httpclient.Options{
		ProxyURL: s.proxyURL,
		Timeout:  s.timeout,
	})
	if err != nil {
		return nil, err
	}

	result := &service.IssuerProbeResult{Endpoint: s.endpoint}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	result.Reachable = true
	result.StatusCode = resp.StatusCode
	return result, nil
}
