package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Attach adds the `version` subcommand to the root command.
func Attach(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the chainkeeper build version.",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), String())
		},
	})
}
