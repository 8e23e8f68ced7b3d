// Package app wires configuration, logging and the refresh together behind
// the cache-api-calls command line.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/icse/api-cache/pkg/client"
	"github.com/icse/api-cache/pkg/config"
	"github.com/icse/api-cache/pkg/fixture"
	"github.com/icse/api-cache/pkg/iam"
	"github.com/icse/api-cache/pkg/logging"
	"github.com/icse/api-cache/pkg/metrics"
	"github.com/icse/api-cache/pkg/pagination"
	"github.com/icse/api-cache/pkg/resources"
	"github.com/rs/zerolog/log"
)

// Dependencies holds what Run takes from the process, so tests can swap it.
type Dependencies struct {
	Context    context.Context
	Out        io.Writer
	Err        io.Writer
	Getenv     func(string) string
	Now        func() time.Time
	HTTPClient *http.Client
}

// CLI defines the command line parsed by Kong.
type CLI struct {
	APIKey      string        `arg:"" optional:"" name:"api-key" help:"IBM Cloud API key, used when IBMCLOUD_API_KEY is unset"`
	Config      string        `short:"c" type:"path" help:"YAML configuration file"`
	OutDir      string        `name:"out-dir" short:"o" help:"Directory the fixture files are written to"`
	Region      string        `help:"VPC region for the image and profile endpoints"`
	Zone        string        `help:"Zone for the cluster flavor endpoint"`
	LogLevel    string        `name:"log-level" help:"Log level (debug, info, warn, error)"`
	Pretty      bool          `help:"Human-readable log output"`
	MetricsFile string        `name:"metrics-file" help:"Write Prometheus metrics to this file when done"`
	KeepGoing   bool          `name:"keep-going" help:"Write the resources that succeeded when others fail"`
	Timeout     time.Duration `help:"Per-request timeout; 0 means none"`
	UserAgent   string        `name:"user-agent" help:"User-Agent header sent to IBM Cloud"`
}

// Run parses args, refreshes every fixture and returns the exit code:
// 0 on success, 1 on any error. Errors are printed to deps.Err.
func Run(args []string, deps Dependencies) int {
	deps = withDefaults(deps)
	out, errOut := deps.Out, deps.Err

	cli := CLI{}
	exited := false
	parser, err := kong.New(&cli,
		kong.Name("cache-api-calls"),
		kong.Description("Refresh the cached IBM Cloud API fixtures."),
		kong.Writers(out, errOut),
		kong.Exit(func(int) { exited = true }),
	)
	if err != nil {
		return exitWithError(errOut, err)
	}
	if _, err := parser.Parse(args); err != nil || exited {
		if exited {
			return 0
		}
		return exitWithError(errOut, err)
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return exitWithError(errOut, err)
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return exitWithError(errOut, err)
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.Pretty,
		Output: deps.Err,
	})

	code := 0
	if err := refresh(deps, cli, cfg); err != nil {
		log.Error().Err(err).Msg("Refresh failed")
		code = exitWithError(errOut, err)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error().Err(err).Msg("Writing metrics failed")
			code = exitWithError(errOut, err)
		}
	}
	return code
}

func refresh(deps Dependencies, cli CLI, cfg config.Config) error {
	apiKey, err := config.ResolveAPIKey(deps.Getenv, []string{cli.APIKey})
	if err != nil {
		recordError(err)
		return err
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	httpClient, err := client.New(client.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return err
	}
	if deps.HTTPClient != nil {
		httpClient.SetHTTPClient(deps.HTTPClient)
	}

	r := &Refresher{
		Auth:      iam.NewAuthenticator(httpClient, cfg.TokenURL),
		Fetcher:   pagination.NewFetcher(httpClient),
		Writer:    fixture.NewWriter(cfg.OutputDir),
		Catalog:   catalog,
		Params:    resources.NewParams(deps.Now(), cfg.Region, cfg.Zone),
		KeepGoing: cfg.KeepGoing,
		Now:       deps.Now,
	}

	report, err := r.Refresh(deps.Context, apiKey)
	if report != nil && len(report.Failed) > 0 {
		fmt.Fprintf(deps.Out, "wrote %d fixture(s), %d failed\n", len(report.Written), len(report.Failed))
	}
	return err
}

// loadConfig layers defaults, the config file and flags.
func loadConfig(cli CLI) (config.Config, error) {
	cfg := config.DefaultConfig()
	if cli.Config != "" {
		if err := cfg.LoadFile(cli.Config); err != nil {
			return cfg, err
		}
	}

	if cli.OutDir != "" {
		cfg.OutputDir = cli.OutDir
	}
	if cli.Region != "" {
		cfg.Region = cli.Region
	}
	if cli.Zone != "" {
		cfg.Zone = cli.Zone
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.MetricsFile != "" {
		cfg.MetricsFile = cli.MetricsFile
	}
	if cli.Timeout != 0 {
		cfg.Timeout = cli.Timeout
	}
	if cli.UserAgent != "" {
		cfg.UserAgent = cli.UserAgent
	}
	cfg.Pretty = cfg.Pretty || cli.Pretty
	cfg.KeepGoing = cfg.KeepGoing || cli.KeepGoing

	return cfg, cfg.Validate()
}

func withDefaults(deps Dependencies) Dependencies {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return deps
}

func exitWithError(out io.Writer, err error) int {
	fmt.Fprintf(out, "error: %v\n", err)
	return 1
}
