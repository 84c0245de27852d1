package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/intuneforge/internal/service/groups"
)

var (
	// groupsToken is the Graph access token.
	groupsToken string

	groupsCmd = &cobra.Command{
		Use:   "groups [prefix]",
		Short: "List directory groups usable as assignment targets.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			var prefix string
			if len(args) > 0 {
				prefix = args[0]
			}

			return groups.Run(ctx, &groups.Options{
				ConfigPath:  configPath,
				Prefix:      prefix,
				AccessToken: accessToken(groupsToken),
				Out:         cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	groupsCmd.Flags().StringVarP(&groupsToken, "token", "t", "", "Graph access token (default $"+accessTokenEnv+")")
}
