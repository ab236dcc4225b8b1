// Package cli implements the guardexec command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/guardexec/guardexec/config"
	"github.com/guardexec/guardexec/logging"
)

// appState carries configuration resolved by the root command's
// persistent pre-run into the subcommands.
type appState struct {
	cfg        *config.Config
	configFile string
	configUsed string
	logLevel   levelValue
}

// NewRootCmd builds the guardexec command tree.
func NewRootCmd() *cobra.Command {
	state := &appState{}

	root := &cobra.Command{
		Use:   "guardexec",
		Short: "Run programs without a shell, behind validation and policy",
		Long: `guardexec executes programs with their arguments passed verbatim as a
vector. No shell ever parses them, so substitution and chaining syntax
in arguments is inert text. Policies, validators and an audit trail
decide and record what runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.initialize(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&state.configFile, "config", "", "Path to a configuration file")
	flags.Var(&state.logLevel, "log-level", "Override the configured log level (debug|verbose|info|warn|error)")

	root.AddCommand(newRunCmd(state))
	root.AddCommand(newCheckCmd())
	root.AddCommand(newQuoteCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// initialize resolves configuration and installs the process logger.
// Flags beat environment beats file beats defaults.
func (s *appState) initialize(cmd *cobra.Command) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(s.configFile)
	if err != nil {
		return err
	}

	if s.logLevel.set {
		cfg.Logging.Level = s.logLevel.String()
	}

	s.cfg = cfg
	s.configUsed = loader.ConfigFileUsed()

	logging.SetLogger(logging.NewConsoleLoggerTo(
		cmd.ErrOrStderr(),
		logging.ParseLevel(cfg.Logging.Level),
	))

	return nil
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
