// Package main provides the contractnotify binary entry point.
// Contractnotify finds the person responsible for every selected contract
// and prepares notification letters for them, once or on a schedule.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/contractnotify/config"
	"github.com/c360studio/contractnotify/mail"
	"github.com/c360studio/contractnotify/notify"
	contractnotifier "github.com/c360studio/contractnotify/processor/contract-notifier"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "contractnotify"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	fixture    string
	natsURL    string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Contract responsibility notifier",
		Long: `Contractnotify selects contracts from the semantic directory, works out
who is responsible for each one and prepares a notification letter per
recipient.

Responsibility escalates from the executor to the chief of the responsible
department and finally to the contract controller role. Contracts that
cannot be resolved are reported to operators.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.fixture, "fixture", "", "Directory fixture to use instead of the graph gateway")
	flags.StringVar(&opts.natsURL, "nats-url", "", "NATS server URL (overrides config)")

	cmd.AddCommand(
		serveCmd(opts),
		runCmd(opts),
		resolveCmd(opts),
		runsCmd(opts),
		initCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func serveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the notifier on its schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Connect(cmd.Context()); err != nil {
				return err
			}
			if err := app.Build(cmd.Context()); err != nil {
				return err
			}
			return app.Serve(cmd.Context())
		},
	}
}

func runCmd(opts *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single notification batch and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			out := cmd.OutOrStdout()
			var buildOpts []contractnotifier.Option
			if dryRun {
				// Letters go to stdout instead of the outbound stream.
				buildOpts = append(buildOpts, contractnotifier.WithMailTransport(mail.NewWriterTransport(out)))
			} else if err := app.Connect(cmd.Context()); err != nil {
				return err
			}

			if err := app.Build(cmd.Context(), buildOpts...); err != nil {
				return err
			}

			report, err := app.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(out, report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print letters instead of publishing them; never connects to NATS")
	return cmd
}

func resolveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <contract-id>...",
		Short: "Print the responsible for each contract without notifying anyone",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Build(cmd.Context()); err != nil {
				return err
			}

			var errs []error
			for _, id := range args {
				r, err := app.Resolve(cmd.Context(), id)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if err := writeJSON(cmd.OutOrStdout(), r); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
}

func runsCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored batch reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Connect(cmd.Context()); err != nil {
				return err
			}
			if err := app.Build(cmd.Context()); err != nil {
				return err
			}

			reports, err := app.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range reports {
				fmt.Fprintf(out, "%s  %s  %6s  contracts=%d failed=%d prepared=%d skipped=%d\n",
					r.ID,
					r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Duration().Round(time.Millisecond),
					r.Contracts,
					len(r.Failed),
					r.Messages[notify.StatusPrepared],
					r.Messages[notify.StatusSkipped])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum reports to print (0 = all)")
	return cmd
}

func initCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default user config if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts.logLevel, cmd.ErrOrStderr())
			return config.NewLoader(logger).EnsureUserConfig()
		},
	}
}

// setup loads configuration and creates the application for a command.
func setup(cmd *cobra.Command, opts *globalOptions) (*App, error) {
	logger := newLogger(opts.logLevel, cmd.ErrOrStderr())

	cfg, err := loadConfig(config.NewLoader(logger), opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApp(cfg, logger), nil
}

// loadConfig layers command-line overrides on top of the file and
// environment configuration, then validates the result.
func loadConfig(loader *config.Loader, opts *globalOptions) (*config.Config, error) {
	cfg, err := loader.LoadUnvalidated(opts.configPath)
	if err != nil {
		return nil, err
	}

	overrides := &config.Config{}
	overrides.Directory.Fixture = opts.fixture
	overrides.NATS.URL = opts.natsURL
	cfg.Merge(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
