// Package simulate evaluates a drink log from a file and optionally checks a
// running server against the local result.
package simulate

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/baculator/internal/domain/types"
)

// DrinkLog is the file format read by LoadLog.
//
//	weight_kg: 80
//	sex: male
//	now: 2025-03-14T23:00:00+11:00   # optional, defaults to the wall clock
//	drinks:
//	  - standards: 1.5
//	    finished_at: 2025-03-14T21:30:00+11:00
//	  - standards: 1
//	    finished_at: -45m               # relative to now
type DrinkLog struct {
	WeightKg float64    `koanf:"weight_kg"`
	Sex      string     `koanf:"sex"`
	Now      string     `koanf:"now"`
	Drinks   []logDrink `koanf:"drinks"`
}

type logDrink struct {
	ID         string  `koanf:"id"`
	Standards  float64 `koanf:"standards"`
	FinishedAt string  `koanf:"finished_at"`
}

// LoadLog reads a YAML drink log and resolves it into an evaluation request.
// clock supplies "now" when the log has none.
func LoadLog(path string, clock func() time.Time) (types.EvaluateRequest, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return types.EvaluateRequest{}, fmt.Errorf("%w: %s: %v", ErrInvalidLog, path, err)
	}
	var dl DrinkLog
	if err := k.UnmarshalWithConf("", &dl, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return types.EvaluateRequest{}, fmt.Errorf("%w: %s: %v", ErrInvalidLog, path, err)
	}
	return dl.Request(clock)
}

// Request converts the log into an evaluation request with absolute times.
func (dl DrinkLog) Request(clock func() time.Time) (types.EvaluateRequest, error) {
	now := clock()
	if strings.TrimSpace(dl.Now) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(dl.Now))
		if err != nil {
			return types.EvaluateRequest{}, fmt.Errorf("%w: now: %v", ErrInvalidLog, err)
		}
		now = t
	}

	req := types.EvaluateRequest{
		WeightKg: dl.WeightKg,
		Sex:      dl.Sex,
		Now:      &now,
		Drinks:   make([]types.DrinkInput, 0, len(dl.Drinks)),
	}
	for i, d := range dl.Drinks {
		at, err := resolveInstant(d.FinishedAt, now)
		if err != nil {
			return types.EvaluateRequest{}, fmt.Errorf("%w: drinks[%d].finished_at: %v", ErrInvalidLog, i, err)
		}
		req.Drinks = append(req.Drinks, types.DrinkInput{ID: d.ID, Standards: d.Standards, FinishedAt: at})
	}
	return req, nil
}

// resolveInstant accepts RFC3339 or a Go duration relative to now.
func resolveInstant(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", s)
	}
	return now.Add(d), nil
}
