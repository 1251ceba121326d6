package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load_forecaster/internal/config"
	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/logger"
	"load_forecaster/internal/model"
)

func writeInput(t *testing.T, dir string, days int) string {
	t.Helper()
	start := time.Date(2013, 3, 4, 0, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString("full_date,kwh,temp,date,time,dow,month\n")
	for i := 0; i < days*model.IntervalsPerDay; i++ {
		at := start.Add(time.Duration(i) * model.Step)
		fmt.Fprintf(&b, "%s,%.2f,4.5,%s,%s,%d,%d\n",
			at.Format("2006-01-02 15:04:05"), 1+float64(model.IntervalOf(at))*0.01,
			at.Format("2006-01-02"), at.Format("15:04:05"),
			(int(at.Weekday())+6)%7, int(at.Month()))
	}
	path := filepath.Join(dir, "load.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestSetup_Defaults(t *testing.T) {
	cfg, log, err := Setup("")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, config.Default(), cfg)
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\nserver:\n  addr: \":9000\"\n"), 0o644))

	cfg, _, err := Setup(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	_, _, err = Setup(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFeatures(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Input = writeInput(t, dir, 5)
	cfg.ValidPeriod.Start = config.Timestamp{Time: time.Date(2013, 3, 4, 0, 0, 0, 0, time.UTC)}
	cfg.ValidPeriod.End = config.Timestamp{Time: time.Date(2013, 3, 8, 23, 45, 0, 0, time.UTC)}

	res, err := LoadFeatures(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 4*model.IntervalsPerDay, res.Report.Rows)

	cfg.ValidPeriod.Start = config.Timestamp{Time: time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.ValidPeriod.End = config.Timestamp{Time: time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC)}
	_, err = LoadFeatures(cfg, logger.Nop())
	assert.ErrorIs(t, err, dataerr.ErrDataIntegrity)

	cfg.Input = filepath.Join(dir, "absent.csv")
	_, err = LoadFeatures(cfg, logger.Nop())
	assert.Error(t, err)
}
