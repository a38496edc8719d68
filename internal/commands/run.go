package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-netreq/engine"
	"github.com/gaborage/go-netreq/harness"
	"github.com/gaborage/go-netreq/loader"
	"github.com/gaborage/go-netreq/observability"
	"github.com/gaborage/go-netreq/testing/fixtures"
)

var (
	// ErrCasesFailed is returned when at least one case did not produce its
	// expected outcome.
	ErrCasesFailed = errors.New("fixture cases failed")

	errNoCases = errors.New("either --fixtures or --base-url is required")
)

// RunOptions holds options for the run command
type RunOptions struct {
	Config      ConfigOptions
	Fixtures    string
	BaseURL     string
	Resources   string
	TrustAnchor string
	Parallel    int
	Verbose     bool
	NoColor     bool
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run fixture cases through the request processor",
		Long: `Runs request scenarios through the processor on the host's network
interfaces and compares every outcome with the expected one.

Cases come from a YAML fixtures file, or are the default access scenarios
against a fixture server when only a base URL is given. The command fails
when any case does not match.`,
		Example: `  # Default scenarios against a fixture server
  netreq run --base-url http://192.0.2.10:8080 --resources ./certs

  # Cases from a file, four at a time
  netreq run --fixtures cases.yaml --parallel 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCases(cmd, opts)
		},
	}

	opts.Config.addFlags(cmd)
	cmd.Flags().StringVarP(&opts.Fixtures, "fixtures", "f", "", "YAML fixtures file")
	cmd.Flags().StringVarP(&opts.BaseURL, "base-url", "b", "", "Plain HTTP origin of the fixture server for the default cases")
	cmd.Flags().StringVarP(&opts.Resources, "resources", "r", ".", "Directory trust anchors are loaded from")
	cmd.Flags().StringVar(&opts.TrustAnchor, "trust-anchor", fixtures.DefaultTrustAnchorName, "Trust anchor resource used by the default redirect cases")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 1, "Number of cases run at once")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose output")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	return cmd
}

func runCases(cmd *cobra.Command, opts *RunOptions) error {
	if opts.Fixtures == "" && opts.BaseURL == "" {
		return errNoCases
	}

	cfg, log, err := opts.Config.load()
	if err != nil {
		return err
	}

	title, cases, err := selectCases(opts, cfg.Session.StrictURLPath)
	if err != nil {
		return err
	}

	provider, err := observability.NewProvider(cfg.Observability, cfg.App)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := observability.Shutdown(provider, observability.DefaultShutdownTimeout); err != nil {
			log.Warn().Err(err).Msg("Observability shutdown failed")
		}
	}()

	processor, err := engine.NewBuilderFromConfig(cfg, log).
		WithTracerProvider(provider.TracerProvider()).
		WithMeterProvider(provider.MeterProvider()).
		Build()
	if err != nil {
		return err
	}

	runner := harness.NewRunner(processor, log,
		harness.WithResources(loader.NewDir(opts.Resources)),
		harness.WithParallelism(opts.Parallel),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	summary, err := runner.Run(ctx, cases)

	harness.NewReporter(
		harness.WithWriter(cmd.OutOrStdout()),
		harness.WithVerbose(opts.Verbose),
		harness.WithNoColor(opts.NoColor),
	).Report(title, summary)

	if err != nil {
		return err
	}
	if !summary.OK() {
		return ErrCasesFailed
	}
	return nil
}

func selectCases(opts *RunOptions, strictURLPath bool) (string, []fixtures.Case, error) {
	if opts.Fixtures != "" {
		suite, err := fixtures.LoadFile(opts.Fixtures)
		if err != nil {
			return "", nil, err
		}
		return suite.Name, suite.Cases, nil
	}
	cases := fixtures.DefaultCases(opts.BaseURL, opts.TrustAnchor, strictURLPath)
	if err := fixtures.Validate(&fixtures.Suite{Cases: cases}); err != nil {
		return "", nil, err
	}
	return opts.BaseURL, cases, nil
}
