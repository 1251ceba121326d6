// Package pipeline owns the observation table from ingest to the final
// featurized rows, running the stages in their required order:
// temperature fill, anomaly repair, period restriction, features, final drop.
package pipeline

import (
	"fmt"
	"io"
	"time"

	"load_forecaster/internal/cleaning"
	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/features"
	"load_forecaster/internal/ingest"
	"load_forecaster/internal/logger"
	"load_forecaster/internal/model"
	"load_forecaster/internal/store"
)

// Config controls the cleaning stages.
type Config struct {
	ValidPeriod model.TimeRange
	Repair      cleaning.RepairConfig
	Step        time.Duration
}

// DefaultConfig returns the canonical valid period and repair settings.
func DefaultConfig() Config {
	return Config{
		ValidPeriod: cleaning.DefaultValidPeriod,
		Repair:      cleaning.DefaultRepairConfig(),
		Step:        model.Step,
	}
}

// Report counts what every stage did.
type Report struct {
	RawRows           int
	TemperatureFilled int
	Repair            cleaning.RepairReport
	OutsidePeriod     int
	Incomplete        int
	Rows              int
	Range             model.TimeRange
}

// Result is the featurized table and its report.
type Result struct {
	Rows   []model.FeatureRow
	Report Report
}

// Pipeline turns raw load readings into gap-free feature rows.
type Pipeline struct {
	cfg    Config
	parser ingest.Parser
	log    *logger.Logger
}

// New returns a pipeline reading the raw load CSV layout.
func New(cfg Config, log *logger.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, parser: ingest.NewLoadParser(), log: logger.OrNop(log)}
}

// WithParser replaces the input parser.
func (p *Pipeline) WithParser(parser ingest.Parser) *Pipeline {
	p.parser = parser
	return p
}

// Run parses r and processes the observations.
func (p *Pipeline) Run(r io.Reader) (*Result, error) {
	obs, err := p.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("loading observations: %w", err)
	}
	return p.Process(obs)
}

// Process runs every stage over obs, which it takes ownership of.
func (p *Pipeline) Process(obs []model.Observation) (*Result, error) {
	rep := Report{RawRows: len(obs)}
	s := store.New(obs)
	if tr, ok := s.TimeRange(); ok {
		p.log.Infow("Observations loaded", "rows", s.Len(), "range", tr.String())
	}

	rep.TemperatureFilled = cleaning.FillMissingTemperature(s)

	rep.Repair = cleaning.RepairAnomalousLoad(s, p.cfg.Repair)
	p.log.Infow("Anomalous load repaired",
		"faults", rep.Repair.Faults, "windows", len(rep.Repair.Windows),
		"replaced", rep.Repair.Replaced, "unresolved", len(rep.Repair.Unresolved))
	if unresolved := rep.Repair.UnresolvedWithin(p.cfg.ValidPeriod); len(unresolved) > 0 {
		return nil, dataerr.DataIntegrity("no conditional mean for %d repaired intervals", len(unresolved)).
			WithContext("first", unresolved[0].Format(time.RFC3339))
	}

	rep.OutsidePeriod = cleaning.RestrictToValidPeriod(s, p.cfg.ValidPeriod)
	if s.Len() == 0 {
		return nil, dataerr.DataIntegrity("no observations inside the valid period").
			WithContext("period", p.cfg.ValidPeriod.String())
	}

	if err := s.CheckGaps(p.cfg.Step); err != nil {
		return nil, err
	}

	rows, incomplete, err := cleaning.Finalize(features.Build(s.Rows()))
	if err != nil {
		return nil, err
	}
	rep.Incomplete = incomplete
	if len(rows) == 0 {
		return nil, dataerr.DataIntegrity("no complete rows after feature engineering")
	}

	ts := make([]time.Time, len(rows))
	for i, r := range rows {
		ts[i] = r.Timestamp
	}
	if err := store.CheckFrequency(ts, p.cfg.Step); err != nil {
		return nil, err
	}

	rep.Rows = len(rows)
	rep.Range = model.TimeRange{Start: ts[0], End: ts[len(ts)-1]}
	p.log.Infow("Features ready",
		"rows", rep.Rows, "range", rep.Range.String(),
		"temperature_filled", rep.TemperatureFilled,
		"outside_period", rep.OutsidePeriod, "incomplete", rep.Incomplete)

	return &Result{Rows: rows, Report: rep}, nil
}
