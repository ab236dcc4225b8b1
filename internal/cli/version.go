package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/guardexec/guardexec"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the guardexec version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "guardexec %s %s/%s\n",
				guardexec.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
