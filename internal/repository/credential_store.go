package repository

import (
	"context"
	"strings"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/service"
)

// configCredentialStore serves the tenant credentials from configuration.
// Holding them behind the CredentialStore port keeps the gateway testable and
// leaves room for secret-manager backed stores later.
type configCredentialStore struct {
	creds *service.Credentials
}

// NewCredentialStore builds the credential source from configuration.
// When no credential material is configured it reports no credentials rather
// than an error; the gateway turns that into its no-credentials outcome.
func NewCredentialStore(cfg *config.Config) service.CredentialStore {
	c := cfg.Credentials
	if strings.TrimSpace(c.EnvironmentID) == "" &&
		strings.TrimSpace(c.ClientID) == "" &&
		strings.TrimSpace(c.ClientSecret) == "" {
		return &configCredentialStore{}
	}
	return &configCredentialStore{creds: &service.Credentials{
		EnvironmentID: c.EnvironmentID,
		ClientID:      c.ClientID,
		ClientSecret:  c.ClientSecret,
		Region:        c.Region,
	}}
}

// NewStaticCredentialStore wraps fixed credentials. Used by the CLI, which
// collects credentials from flags and prompts instead of a config file.
func NewStaticCredentialStore(creds *service.Credentials) service.CredentialStore {
	return &configCredentialStore{creds: creds}
}

func (s *configCredentialStore) LoadCredentials(ctx context.Context) (*service.Credentials, error) {
	if s.creds == nil {
		return nil, nil
	}
	cp := *s.creds
	return &cp, nil
}
