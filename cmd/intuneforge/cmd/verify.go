package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/intuneforge/internal/service/verifier"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file.intunewin>",
	Short: "Check the integrity of a .intunewin container.",
	Long: `Opens the container, checks the payload MAC and the digest of the decrypted
content, and prints what the container holds. Key material is never printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		return verifier.Run(ctx, &verifier.Options{
			Path: args[0],
			Out:  cmd.OutOrStdout(),
		})
	},
}
