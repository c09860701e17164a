package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand adds a `version` subcommand printing Full, or
// only the release number with --short.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	command := &cobra.Command{
		Use:   "version",
		Short: "Print the bundler release.",
		Long:  "Print the bundler release, the source revision it was built from, the build time and the Go version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			line := root.Name() + " " + Full()
			if short {
				line = Short()
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
		},
	}

	command.Flags().BoolVar(&short, "short", false, "print only the release number")
	root.AddCommand(command)
}
