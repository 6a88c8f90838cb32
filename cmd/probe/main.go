package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/sheet-probe/config"
	"github.com/wippyai/sheet-probe/errors"
	"github.com/wippyai/sheet-probe/guest"
	"github.com/wippyai/sheet-probe/native"
	"github.com/wippyai/sheet-probe/probe"
	"github.com/wippyai/sheet-probe/report"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.Reason(err))
		os.Exit(probe.ExitCode(err))
	}
}

type options struct {
	configPath  string
	library     string
	input       string
	backend     string
	format      string
	now         bool
	global      bool
	checkInput  bool
	verbose     bool
	watch       bool
	interactive bool
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Smoke-test the C ABI of a sheet classification provider",
		Long: `probe loads a classification provider, resolves classify_excel_sheets_c and
free_c_string, classifies one workbook and frees the result with the
provider's own deallocator.

Shared libraries are opened with the platform loader; providers ending in
.wasm run under WebAssembly. Without flags or a config file the provider is
./target/release/liblayout_view.so and the input ./files/test_data.xlsx.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file (default ./"+config.DefaultFile+" if present)")
	f.StringVarP(&o.library, "library", "l", config.DefaultLibrary, "provider library (.so, .dylib or .wasm)")
	f.StringVarP(&o.input, "input", "f", config.DefaultInput, "workbook to classify")
	f.StringVarP(&o.backend, "backend", "b", config.BackendAuto, "provider backend: auto, native or wasm")
	f.StringVar(&o.format, "format", "raw", "report after the result line: raw, text, json or markdown")
	f.BoolVar(&o.now, "now", false, "resolve all symbols at load time (RTLD_NOW)")
	f.BoolVar(&o.global, "global", false, "make the provider's symbols global (RTLD_GLOBAL)")
	f.BoolVar(&o.checkInput, "check-input", true, "fail before the call when the input file is missing")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging to stderr")
	f.BoolVarP(&o.watch, "watch", "w", false, "run again whenever the input or the provider changes")
	f.BoolVarP(&o.interactive, "interactive", "i", false, "interactive mode with TUI")
	cmd.MarkFlagsMutuallyExclusive("watch", "interactive")

	cmd.AddCommand(newSchemaCmd(), newInitCmd())
	return cmd
}

func run(cmd *cobra.Command, o *options) error {
	cfg, err := loadConfig(cmd, o)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	native.SetLogger(logger.Named("native"))
	guest.SetLogger(logger.Named("guest"))
	probe.SetLogger(logger.Named("probe"))

	p, err := probe.New(cfg, probe.WithStyled(term.IsTerminal(int(os.Stdout.Fd()))))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case o.interactive:
		return runInteractive(ctx, p)
	case o.watch:
		return p.Watch(ctx, func(err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", errors.Reason(err))
			}
		})
	default:
		return p.Run(ctx)
	}
}

// loadConfig layers explicitly set flags over the config file over defaults.
func loadConfig(cmd *cobra.Command, o *options) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.DefaultFile
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("library") {
		cfg.Library = o.library
	}
	if f.Changed("input") {
		cfg.Input = o.input
	}
	if f.Changed("backend") {
		cfg.Backend = o.backend
	}
	if f.Changed("format") {
		cfg.Format = o.format
	}
	if f.Changed("now") {
		cfg.Now = o.now
	}
	if f.Changed("global") {
		cfg.Global = o.global
	}
	if f.Changed("check-input") {
		cfg.CheckInput = o.checkInput
	}
	if f.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	return cfg, nil
}

// newLogger returns a no-op logger unless verbose, so the console carries
// only the probe's own lines.
func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the provider's result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := report.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
