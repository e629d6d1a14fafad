package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/okian/baculator/internal/domain/types"
	"github.com/okian/baculator/pkg/logger"
)

// DefaultTolerance matches the engine's four decimal rounding.
const DefaultTolerance = 1e-4

// Evaluator computes an evaluation locally.
type Evaluator interface {
	Evaluate(ctx context.Context, req types.EvaluateRequest) (types.EvaluationResponse, error)
}

// Config holds the simulator settings.
type Config struct {
	LogPath   string        // YAML drink log
	BaseURL   string        // server to compare against; empty skips the comparison
	Timeout   time.Duration // HTTP request timeout
	Tolerance float64       // allowed absolute difference per field
	Clock     func() time.Time
}

// Report is what Run prints.
type Report struct {
	Local      types.EvaluationResponse  `json:"local"`
	Remote     *types.EvaluationResponse `json:"remote,omitempty"`
	Mismatches []Mismatch                `json:"mismatches,omitempty"`
	Match      *bool                     `json:"match,omitempty"`
}

// Run evaluates the log with local, prints a JSON report to out and, when a
// base URL is set, compares the server's answer. A difference beyond the
// tolerance returns ErrMismatch after the report is written.
func Run(ctx context.Context, cfg Config, local Evaluator, out io.Writer) error {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	req, err := LoadLog(cfg.LogPath, clock)
	if err != nil {
		return err
	}
	log := logger.Get().Named("bacsim")
	log.Debug(ctx, "drink log loaded",
		logger.String("path", cfg.LogPath),
		logger.Int("drinks", len(req.Drinks)),
		logger.Time("now", *req.Now),
	)

	res, err := local.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("local evaluation: %w", err)
	}
	report := Report{Local: res}

	if cfg.BaseURL != "" {
		remote, err := NewClient(cfg.BaseURL, cfg.Timeout).Evaluate(ctx, req)
		if err != nil {
			return err
		}
		report.Remote = &remote
		report.Mismatches = Compare(res, remote, tol)
		match := len(report.Mismatches) == 0
		report.Match = &match
		log.Info(ctx, "compared with server",
			logger.String("url", cfg.BaseURL),
			logger.Bool("match", match),
		)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if report.Match != nil && !*report.Match {
		return fmt.Errorf("%w: %v", ErrMismatch, report.Mismatches)
	}
	return nil
}
