package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guardexec/guardexec/shellquote"
)

func newQuoteCmd() *cobra.Command {
	convention := &conventionValue{}

	cmd := &cobra.Command{
		Use:   "quote VALUE",
		Short: "Escape a value as one shell word",
		Long: `Quote prints VALUE escaped as a single word for the selected shell
convention. This is the fallback path for surfaces that insist on a
shell; commands run through guardexec itself never need it. Quote
exactly once, at the point the value enters the shell context:
quoting is not idempotent.`,
		Example: `  guardexec quote "it's a branch"
  guardexec quote --convention windows 'say "hi"'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), shellquote.QuoteFor(convention.Value(), args[0]))
			return nil
		},
	}

	cmd.Flags().Var(convention, "convention", "Quoting convention: posix or windows (default: host platform)")

	return cmd
}
