package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/papapizza/internal/client"
	"github.com/roach88/papapizza/internal/config"
	"github.com/roach88/papapizza/internal/reconciler"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogFormat  string // "text" | "json"
	ConfigPath string
	APIBase    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the papapizza CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "papapizza",
		Short: "Papa Pizza ordering from the terminal",
		Long: `Order pizza from the terminal.

Cart changes show immediately and are confirmed by the order API; a change
the API rejects is rolled back to the server's state. "papapizza serve"
runs a development order API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidFormats, opts.LogFormat) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats))
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), opts))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $"+config.EnvConfig+")")
	cmd.PersistentFlags().StringVar(&opts.APIBase, "api", "", "order API base URL")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMenuCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported through the OutputFormatter in the selected format.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format := "text"
	if f := cmd.PersistentFlags().Lookup("format"); f != nil && f.Value.String() == "json" {
		format = "json"
	}
	out := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// cobra usage errors: unknown command, bad flag, wrong arg count
		exitErr = WrapExitError(ExitCommandError, "invalid usage", err)
	}
	_ = out.Error(errorCode(exitErr), exitErr.Error(), exitErr.Details)
	return exitErr.Code
}

// errorCode picks the JSON error code for err.
func errorCode(err *ExitError) string {
	switch {
	case err.ErrCode != "":
		return err.ErrCode
	case reconciler.IsRejection(err):
		return CodeInvalidInput
	case err.Code == ExitCommandError:
		return CodeConfig
	}
	return CodeRequestFailed
}

func newLogger(w io.Writer, opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// config resolves the configuration file and environment, then applies the
// --api flag.
func (o *RootOptions) config() (config.Config, error) {
	cfg, err := config.Resolve(o.ConfigPath)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.APIBase != "" {
		cfg.APIBase = o.APIBase
	}
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// client builds an order API client from the resolved configuration.
func (o *RootOptions) client() (*client.Client, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	c, err := client.New(cfg.APIBase, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid api base", err)
	}
	return c, nil
}
