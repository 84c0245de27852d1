package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/intuneforge/internal/service/scaffold"
)

var (
	initCmd = &cobra.Command{
		Use:   "init <package>",
		Short: "Write a skeleton package configuration.",
		Long: `Creates <packages dir>/<package>.yaml with placeholder install commands and
a file detection rule. Existing configurations are never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return scaffold.Run(ctx, &scaffold.Options{
				ConfigPath:  configPath,
				PackageName: args[0],
			})
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored package configurations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return scaffold.List(ctx, &scaffold.ListOptions{
				ConfigPath: configPath,
				Out:        cmd.OutOrStdout(),
			})
		},
	}
)
