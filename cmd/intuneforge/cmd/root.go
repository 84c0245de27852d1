package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/logger"
	"github.com/oshokin/intuneforge/internal/version"
)

// accessTokenEnv is read when --token is not given.
const accessTokenEnv = "INTUNEFORGE_ACCESS_TOKEN"

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the log level from the configuration file.
	logLevel string

	errInvalidLogLevel = errors.New("invalid log level")

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "intuneforge",
		Short: "Package Win32 installers as .intunewin files and deploy them to Intune.",
		Long: `Builds encrypted .intunewin containers from package configurations and
publishes them to Microsoft Intune as Win32 line-of-business apps.

Package configurations are YAML files kept in the packages directory from
the settings file. Commands that talk to Microsoft Graph need an access token,
passed with --token or the ` + accessTokenEnv + ` environment variable.`,
		SilenceUsage:      true,
		PersistentPreRunE: applyLogLevel,
	}
)

// Execute runs the intuneforge CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides configuration)")

	rootCmd.AddCommand(buildCmd, deployCmd, verifyCmd, groupsCmd, initCmd, listCmd)
}

// applyLogLevel sets the global log level from the flag or the settings file.
func applyLogLevel(_ *cobra.Command, _ []string) error {
	level := logLevel
	if level == "" {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		level = cfg.LogLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, level)
	}

	logger.SetLevel(parsed)

	return nil
}

// signalContext returns a context canceled on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// accessToken prefers the flag value over the environment.
func accessToken(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return os.Getenv(accessTokenEnv)
}
