package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/jacobi"
	"github.com/arloliu/jacobi/transport/natscomm"
)

// Run modes.
const (
	ModeLocal    = "local"
	ModeAllInOne = "all-in-one"
	ModeNATS     = "nats"
)

// errUsage marks command line problems; main exits with status 2.
var errUsage = errors.New("usage error")

// appConfig is the full command configuration. A YAML file supplies the
// base values and explicitly set flags override them.
type appConfig struct {
	Solver      jacobi.Config   `yaml:"solver"`
	NATS        natscomm.Config `yaml:"nats"`
	Mode        string          `yaml:"mode"`
	Rank        int             `yaml:"rank"`
	PrintGrid   bool            `yaml:"printGrid"`
	MetricsAddr string          `yaml:"metricsAddr"`
	LogLevel    string          `yaml:"logLevel"`
	Timeout     time.Duration   `yaml:"timeout"`
}

func defaultAppConfig() appConfig {
	solver := jacobi.DefaultConfig()
	solver.WorkerCount = 4

	return appConfig{
		Solver:   solver,
		NATS:     natscomm.DefaultConfig(),
		Mode:     ModeLocal,
		Rank:     natscomm.AnyRank,
		LogLevel: "info",
	}
}

// loadConfigFile merges the YAML file at path over cfg.
func loadConfigFile(path string, cfg *appConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// parseArgs builds the configuration from args (without the program name).
//
// Every worker of a run parses identical arguments, so a bad grid size is
// rejected the same way everywhere before anyone connects.
func parseArgs(args []string, stderr io.Writer) (*appConfig, error) {
	fs := flag.NewFlagSet("jacobi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: jacobi [flags] <gridSize>")
		fs.PrintDefaults()
	}

	def := defaultAppConfig()
	configPath := fs.String("config", "", "YAML configuration file")
	mode := fs.String("mode", def.Mode, "run mode: local, all-in-one or nats")
	workers := fs.Int("workers", def.Solver.WorkerCount, "number of workers")
	rank := fs.Int("rank", def.Rank, "rank of this process in nats mode (-1 claims a free rank)")
	coordinator := fs.Int("coordinator", def.Solver.CoordinatorRank, "rank that gathers and prints the grid")
	maxIterations := fs.Int("max-iterations", def.Solver.MaxIterations, "iteration limit")
	threshold := fs.Float64("threshold", def.Solver.Threshold, "stop when the global norm reaches this value (0 runs to the limit)")
	natsURL := fs.String("nats-url", def.NATS.URL, "NATS server URL for nats mode")
	runID := fs.String("run-id", def.NATS.RunID, "identifier shared by all workers of one run")
	printGrid := fs.Bool("print-grid", false, "print the assembled grid")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	logLevel := fs.String("log-level", def.LogLevel, "debug, info, warn or error")
	timeout := fs.Duration("timeout", 0, "abort the run after this long (0 for no limit)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg := def
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *mode
		case "workers":
			cfg.Solver.WorkerCount = *workers
		case "rank":
			cfg.Rank = *rank
		case "coordinator":
			cfg.Solver.CoordinatorRank = *coordinator
		case "max-iterations":
			cfg.Solver.MaxIterations = *maxIterations
		case "threshold":
			cfg.Solver.Threshold = *threshold
		case "nats-url":
			cfg.NATS.URL = *natsURL
		case "run-id":
			cfg.NATS.RunID = *runID
		case "print-grid":
			cfg.PrintGrid = *printGrid
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "timeout":
			cfg.Timeout = *timeout
		}
	})

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected exactly one grid size argument, got %d", errUsage, fs.NArg())
	}
	gridSize, err := strconv.Atoi(fs.Arg(0))
	if err != nil || gridSize < 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: invalid grid size %q", errUsage, fs.Arg(0))
	}
	cfg.Solver.GridSize = gridSize

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	return &cfg, nil
}

func (cfg *appConfig) validate() error {
	switch cfg.Mode {
	case ModeLocal, ModeAllInOne, ModeNATS:
	default:
		return fmt.Errorf("%w: unknown mode %q", jacobi.ErrInvalidConfig, cfg.Mode)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", jacobi.ErrInvalidConfig)
	}
	if cfg.Mode == ModeNATS && (cfg.Rank < natscomm.AnyRank || cfg.Rank >= cfg.Solver.WorkerCount) {
		return fmt.Errorf("%w: rank %d not in [-1, %d)", jacobi.ErrInvalidConfig, cfg.Rank, cfg.Solver.WorkerCount)
	}

	jacobi.SetDefaults(&cfg.Solver)
	if err := cfg.Solver.Validate(); err != nil {
		return err
	}

	natscomm.SetDefaults(&cfg.NATS)

	return cfg.NATS.Validate()
}
