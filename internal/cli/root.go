package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Exactly one store must be given
	DSN  string
	File string

	Tenant int64
	Actor  int64
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the chainctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chainctl",
		Short: "Audit and repair vehicle odometer chains",
		Long: `chainctl runs the mileage chain engine against PostgreSQL (--dsn) or a
YAML/JSON fixture of trips (--file). Fixture runs never write anything back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Tenant <= 0 {
				return NewExitError(ExitCommandError, "--tenant must be positive")
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output on stderr")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string")
	flags.StringVarP(&opts.File, "file", "f", "", "YAML or JSON trip fixture")
	flags.Int64Var(&opts.Tenant, "tenant", 1, "tenant id")
	flags.Int64Var(&opts.Actor, "actor", 0, "identity recorded in audit entries")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewBreaksCommand(opts))
	cmd.AddCommand(NewRecalculateCommand(opts))
	cmd.AddCommand(NewRecoverCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// Execute runs the command and returns the process exit code.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return GetExitCode(err)
}
