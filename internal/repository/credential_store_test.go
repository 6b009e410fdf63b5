package repository

import (
	"context"
	"testing"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/stretchr/testify/require"
)

func TestCredentialStoreFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Credentials = config.CredentialsConfig{
		EnvironmentID: "env-1",
		ClientID:      "client-1",
		ClientSecret:  "s3cret",
		Region:        domain.RegionCA,
	}

	store := NewCredentialStore(cfg)
	creds, err := store.LoadCredentials(context.Background())
	require.NoError(t, err)
	require.NotNil(t, creds)
	require.Equal(t, "env-1", creds.EnvironmentID)
	require.Equal(t, domain.RegionCA, creds.Region)

	// Callers get a copy; mutating it must not poison the store.
	creds.ClientSecret = "mutated"
	again, err := store.LoadCredentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, "s3cret", again.ClientSecret)
}

func TestCredentialStoreEmptyConfig(t *testing.T) {
	store := NewCredentialStore(&config.Config{})
	creds, err := store.LoadCredentials(context.Background())
	require.NoError(t, err)
	require.Nil(t, creds)
}

func TestStaticCredentialStore(t *testing.T) {
	store := NewStaticCredentialStore(&service.Credentials{
		EnvironmentID: "env-cli",
		ClientID:      "client-cli",
		ClientSecret:  "prompted",
		Region:        domain.RegionUS,
	})
	creds, err := store.LoadCredentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, "env-cli", creds.EnvironmentID)
}
