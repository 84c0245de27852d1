package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/intuneforge/internal/service/builder"
)

var (
	// buildOutputDir overrides the output directory from the settings.
	buildOutputDir string

	buildCmd = &cobra.Command{
		Use:   "build <package>",
		Short: "Build the .intunewin container of a package.",
		Long: `Reads the installer named by the package configuration, encrypts it with
fresh key material and writes <setup file>.intunewin to the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signalContext()
			defer stop()

			options := &builder.Options{
				ConfigPath:  configPath,
				PackageName: args[0],
				OutputDir:   buildOutputDir,
			}

			return builder.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildCmd.Flags().StringVarP(&buildOutputDir, "output", "o", "", "directory for the built container")
}
