package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Populated at build time via -ldflags.
var Version = "dev"

// Exit codes, kept stable for scripting.
const (
	// exitOK indicates successful execution.
	exitOK = 0
	// exitError indicates a general error.
	exitError = 1
	// exitNeedsInteraction indicates the acquisition cannot proceed without
	// operator-supplied credentials.
	exitNeedsInteraction = 2
)

// rootCmd is the base command; subcommands register themselves in init.
var rootCmd = &cobra.Command{
	Use:   "tokenctl",
	Short: "Operator CLI for the tokengate acquisition gateway",
	Long: `tokenctl drives the token acquisition gateway from the command line:
one-shot token fetches against the configured issuer, and config scaffolding.

Configuration resolves exactly the way the server resolves it: config.yaml
from $DATA_DIR, /app/data, ., ./config or /etc/tokengate, overlaid by
environment variables.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{printf "tokenctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps error types to exit codes so scripts can distinguish
// "supply credentials and retry" from plain failure.
func exitCodeFor(err error) int {
	var interaction *needsInteractionError
	if errors.As(err, &interaction) {
		return exitNeedsInteraction
	}
	return exitError
}
