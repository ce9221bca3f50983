package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"financeboard/internal/config"
	"financeboard/internal/core"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("DATA_BACKEND", "memory")
	v.Set("EXTRACT_SOURCE", "memory")
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg := config.FromViper(v)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRuntimeRefreshesDemoData(t *testing.T) {
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	rt, err := NewRuntime(context.Background(), testConfig(t, nil), nil, Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	defer rt.Close()

	report := rt.Refresh.Refresh(context.Background(), core.Month{})
	require.True(t, report.Outcome.OK, report.Outcome.String())
	assert.Positive(t, report.Transactions)

	summary := rt.Budget.GetMonthlySummary(context.Background(), core.Month{})
	assert.True(t, summary.TotalAmount.IsPositive())
	assert.Nil(t, rt.Broker)
	assert.NoError(t, rt.ConnectBroker(), "no broker configured")
}

func TestRuntimeUsesDefaultsFileAndCap(t *testing.T) {
	dir := t.TempDir()
	defaults := filepath.Join(dir, "defaults.yaml")
	require.NoError(t, os.WriteFile(defaults, []byte(`monthly_expected_revenue: 1000
categories:
  - name: Food
    percentage: 60
  - name: Fun
    percentage: 40
`), 0o644))

	cfg := testConfig(t, map[string]any{"BUDGET_DEFAULTS_FILE": defaults, "BUDGET_MAX_PERCENT_TOTAL": "100"})
	rt, err := NewRuntime(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, core.CategorySet{"Food", "Fun"}, rt.Budget.Categories())
	assert.Equal(t, "100", rt.Budget.Settings.MaxPercentTotal().String())
	s := rt.Budget.GetSettings(context.Background())
	assert.Equal(t, "1000", s.MonthlyExpectedRevenue.String())
}

func TestRuntimeRejectsBadDefaultsFile(t *testing.T) {
	cfg := testConfig(t, map[string]any{"BUDGET_DEFAULTS_FILE": filepath.Join(t.TempDir(), "missing.yaml")})
	_, err := NewRuntime(context.Background(), cfg, nil, Options{})
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), -4))

	fallback := SetupLogger(&config.Config{LogLevel: "loud"})
	assert.False(t, fallback.Enabled(context.Background(), -4))
}
