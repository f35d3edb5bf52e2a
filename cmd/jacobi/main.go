// Command jacobi runs a distributed Jacobi relaxation on a square grid.
//
// Usage:
//
//	jacobi [flags] <gridSize>
//
// In local mode (the default) all workers run as goroutines of this process.
// all-in-one does the same over an embedded NATS server. In nats mode the
// process is a single worker and the run is formed by starting -workers
// processes with the same -run-id against one NATS server:
//
//	jacobi -mode nats -workers 4 -run-id r1 -nats-url nats://host:4222 1024
//
// Only the coordinating worker prints the report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/jacobi"
	"github.com/arloliu/jacobi/internal/logging"
	"github.com/arloliu/jacobi/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "jacobi: %v\n", err)

		return 2
	}

	logger, err := logging.NewText(stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "jacobi: %v\n", err)
		return 2
	}

	env := &environment{logger: logger, metrics: metrics.NewNop()}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		env.metrics = metrics.NewPrometheus(reg, "")
		server := newMetricsServer(cfg.MetricsAddr, reg, logger)
		server.Start()
		defer server.Shutdown()
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	logger.Info("starting run",
		"mode", cfg.Mode,
		"grid_size", cfg.Solver.GridSize,
		"workers", cfg.Solver.WorkerCount,
		"max_iterations", cfg.Solver.MaxIterations,
		"threshold", cfg.Solver.Threshold,
	)

	var res *jacobi.Result
	switch cfg.Mode {
	case ModeAllInOne:
		res, err = runAllInOne(ctx, cfg, env)
	case ModeNATS:
		res, err = runNATS(ctx, cfg, env)
	default:
		res, err = runLocal(ctx, cfg, env)
	}
	if err != nil {
		fmt.Fprintf(stderr, "jacobi: %v\n", err)
		return 1
	}

	if err := jacobi.WriteReport(stdout, res, cfg.PrintGrid); err != nil {
		fmt.Fprintf(stderr, "jacobi: failed to write report: %v\n", err)
		return 1
	}

	return 0
}
