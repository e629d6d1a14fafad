package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	service "github.com/okian/baculator/internal/app"
	"github.com/okian/baculator/internal/config"
	"github.com/okian/baculator/internal/domain/bac"
	"github.com/okian/baculator/internal/simulate"
	"github.com/okian/baculator/pkg/logger"
)

const defaultTimeout = 10 * time.Second

func main() {
	var (
		logPath   = flag.String("log", "", "YAML drink log to evaluate (required)")
		baseURL   = flag.String("url", "", "Base URL of a running server to compare against")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tolerance = flag.Float64("tolerance", simulate.DefaultTolerance, "Allowed absolute difference per field")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if *logPath == "" && flag.NArg() > 0 {
		*logPath = flag.Arg(0)
	}
	if *logPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*logPath, *baseURL, *timeout, *tolerance, *verbose))
}

func run(logPath, baseURL string, timeout time.Duration, tolerance float64, verbose bool) int {
	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	// The report goes to stdout; keep log lines out of it unless asked.
	level := "warn"
	if verbose {
		level = "debug"
	}
	_ = logger.SetLevelString(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Engine constants come from the same BACULATOR_* settings as the server.
	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		_, _ = os.Stderr.WriteString("invalid engine config: " + err.Error() + "\n")
		return 1
	}
	local := service.New(service.WithEngine(bac.NewEngine(engineOpts...)))

	err = simulate.Run(ctx, simulate.Config{
		LogPath:   logPath,
		BaseURL:   baseURL,
		Timeout:   timeout,
		Tolerance: tolerance,
	}, local, os.Stdout)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	return 0
}
