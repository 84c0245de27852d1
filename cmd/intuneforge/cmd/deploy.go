package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/intuneforge/internal/service/deployer"
)

var (
	// deployToken is the Graph access token.
	deployToken string
	// deployOutputDir keeps a copy of the deployed container when set.
	deployOutputDir string

	deployCmd = &cobra.Command{
		Use:   "deploy <package>",
		Short: "Build a package and publish it to Intune.",
		Long: `Builds a fresh container for the package, creates the Win32 app in Intune,
uploads the encrypted payload to the storage location handed out by the
service, commits it and applies the configured group assignments.

A failure after the app is created leaves it partially provisioned; the
app identifier is logged so it can be inspected or removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signalContext()
			defer stop()

			options := &deployer.Options{
				ConfigPath:  configPath,
				PackageName: args[0],
				AccessToken: accessToken(deployToken),
				OutputDir:   deployOutputDir,
			}

			return deployer.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	deployCmd.Flags().StringVarP(&deployToken, "token", "t", "", "Graph access token (default $"+accessTokenEnv+")")
	deployCmd.Flags().StringVarP(&deployOutputDir, "output", "o", "", "also write the built container to this directory")
}
