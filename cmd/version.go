package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewVersionCommand returns a command which prints version and build info.
func NewVersionCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "version - print version and build time",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "playlake %s (built %s)\n", Version, BuildTime)
		},
	}
}

func init() {
	subcommandFns["version"] = NewVersionCommand
}
