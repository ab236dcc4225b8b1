package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guardexec/guardexec/validation"
)

func newCheckCmd() *cobra.Command {
	check := &cobra.Command{
		Use:   "check",
		Short: "Screen untrusted strings before they reach a command line",
	}

	check.AddCommand(&cobra.Command{
		Use:   "ref CANDIDATE",
		Short: "Check a candidate version-control reference name",
		Long: `Checks CANDIDATE against the reference alphabet: letters, digits,
'_', '.', '-', with '/' separating non-empty segments, no leading '-'
and no "..". Exits 0 when safe, 1 when rejected, so the command works
as a guard in scripts:

  guardexec check ref "$branch" && git switch "$branch"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportVerdict(cmd, "ref", args[0], validation.IsRefSafe(args[0]))
		},
	})

	check.AddCommand(&cobra.Command{
		Use:   "path CANDIDATE",
		Short: "Check a candidate filesystem path",
		Long: `Checks CANDIDATE against the path alphabet, which is wider than the
reference alphabet: spaces, ':' and ".." segments are legitimate in
paths. Shell metacharacters still reject. Exits 0 when safe, 1 when
rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportVerdict(cmd, "path", args[0], validation.IsPathSafe(args[0]))
		},
	})

	return check
}

// reportVerdict prints the verdict and maps rejection to a non-zero
// exit. The candidate itself is untrusted and never echoed.
func reportVerdict(cmd *cobra.Command, kind, candidate string, safe bool) error {
	if safe {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "rejected")
	return &rejectedError{kind: kind}
}

// rejectedError signals a failed check without repeating the candidate.
type rejectedError struct {
	kind string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("%s candidate rejected", e.kind)
}
