package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/repository"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	fetchForce         bool
	fetchTimeout       time.Duration
	fetchMode          string
	fetchEnvironmentID string
	fetchClientID      string
	fetchRegion        string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Acquire a token and print it to stdout",
	Long: `Fetch builds the gateway in-process with a memory-only cache, runs one
acquisition against the configured issuer and prints the access token to
stdout. Everything else goes to stderr, so the token pipes cleanly.

Credentials come from the resolved configuration; --environment-id,
--client-id and --region override it. The client secret is never a flag:
set credentials.client_secret (config or CREDENTIALS_CLIENT_SECRET), or run
with --mode interactive to be prompted without echo.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

// needsInteractionError marks failures an operator can fix by supplying
// credentials; main maps it to exitNeedsInteraction.
type needsInteractionError struct{ cause error }

func (e *needsInteractionError) Error() string { return e.cause.Error() }
func (e *needsInteractionError) Unwrap() error { return e.cause }

func runFetch(cmd *cobra.Command, args []string) error {
	mode := strings.ToLower(strings.TrimSpace(fetchMode))
	switch mode {
	case domain.AcquireModeSilent, domain.AcquireModeInteractive:
	default:
		return fmt.Errorf("--mode must be %s or %s", domain.AcquireModeSilent, domain.AcquireModeInteractive)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	creds := &service.Credentials{
		EnvironmentID: cfg.Credentials.EnvironmentID,
		ClientID:      cfg.Credentials.ClientID,
		ClientSecret:  cfg.Credentials.ClientSecret,
		Region:        cfg.Credentials.Region,
	}
	if fetchEnvironmentID != "" {
		creds.EnvironmentID = fetchEnvironmentID
	}
	if fetchClientID != "" {
		creds.ClientID = fetchClientID
	}
	if fetchRegion != "" {
		creds.Region = strings.ToLower(fetchRegion)
	}

	if mode == domain.AcquireModeInteractive && creds.ClientSecret == "" {
		secret, err := promptSecret(cmd, "Client secret: ")
		if err != nil {
			return err
		}
		creds.ClientSecret = secret
	}

	gateway, stop, err := buildGateway(cfg, creds)
	if err != nil {
		return err
	}
	defer stop()

	result := gateway.GetToken(cmd.Context(), service.GetTokenOptions{
		Mode:         mode,
		ForceRefresh: fetchForce,
		Timeout:      fetchTimeout,
	})
	if !result.Success {
		err := fmt.Errorf("acquisition failed: %s", result.Error.Error())
		if result.NeedsInteraction {
			fmt.Fprintln(cmd.ErrOrStderr(), "hint: configure credentials or rerun with --mode interactive")
			return &needsInteractionError{cause: err}
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Token)
	if result.ExpiresAt != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", result.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// buildGateway assembles the acquisition stack the server uses, minus
// persistence: a nop store behind the cache, static credentials in front.
// The returned stop function releases the expiry wheel.
func buildGateway(cfg *config.Config, creds *service.Credentials) (*service.TokenGatewayService, func(), error) {
	registry := service.NewSubscriberRegistry()
	watch, err := service.NewExpiryWatchService()
	if err != nil {
		return nil, nil, err
	}
	cache := service.NewTokenCache(repository.NewNopTokenStore(), registry, watch, cfg)
	gateway := service.NewTokenGatewayService(
		cache,
		repository.NewStaticCredentialStore(creds),
		repository.NewIssuanceClient(cfg),
		registry,
		cfg,
	)
	return gateway, watch.Stop, nil
}

// promptSecret reads a line from the terminal with echo disabled.
func promptSecret(cmd *cobra.Command, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("interactive mode needs a terminal to prompt for the client secret")
	}
	fmt.Fprint(cmd.ErrOrStderr(), label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "bypass the cache and issue a fresh token")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 0, "acquisition deadline including retries (default: issuer.timeout_seconds)")
	fetchCmd.Flags().StringVar(&fetchMode, "mode", domain.AcquireModeSilent, "acquisition mode: silent or interactive")
	fetchCmd.Flags().StringVar(&fetchEnvironmentID, "environment-id", "", "override credentials.environment_id")
	fetchCmd.Flags().StringVar(&fetchClientID, "client-id", "", "override credentials.client_id")
	fetchCmd.Flags().StringVar(&fetchRegion, "region", "", "override credentials.region (us/eu/ap/ca)")
}
