package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "json")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("EXTRACT_SOURCE", "memory")
	t.Setenv("AMQP_URL", "")
	t.Setenv("CONFIG_FILE", "")
}

func TestSettingsSetShowReset(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "settings", "set", "--revenue", "4000", "--pct", "Rent=30")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Settings saved.")
	assert.Contains(t, out, "4000.00")

	out, err = runCLI(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "1200.00", "30% of 4000 for Rent")

	_, err = runCLI(t, "settings", "set", "--pct", "Car=500")
	assert.ErrorContains(t, err, "settings not saved")

	out, err = runCLI(t, "settings", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Defaults restored.")

	out, err = runCLI(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "5000.00")
}

func TestSettingsSetNeedsChanges(t *testing.T) {
	setupEnv(t)
	_, err := runCLI(t, "settings", "set")
	assert.ErrorContains(t, err, "nothing to change")

	_, err = runCLI(t, "settings", "set", "--pct", "Rent")
	assert.ErrorContains(t, err, "want Category=N")
}

func TestRefreshThenSummary(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "refresh")
	require.NoError(t, err, out)
	assert.Contains(t, out, "transactions over")

	out, err = runCLI(t, "summary", "--json")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEqual(t, "0", got["total_amount"])
	assert.NotZero(t, got["daily_entries"])
	assert.Contains(t, got, "expected_amounts")
	assert.Contains(t, got, "total_by_category")

	_, err = runCLI(t, "summary", "--month", "March")
	assert.ErrorContains(t, err, "invalid --month")
}

func TestRefreshQueueNeedsBroker(t *testing.T) {
	setupEnv(t)
	_, err := runCLI(t, "refresh", "--queue")
	assert.ErrorContains(t, err, "AMQP_URL")
}

func TestMigrateRequiresSQLite(t *testing.T) {
	setupEnv(t)
	_, err := runCLI(t, "migrate")
	assert.ErrorContains(t, err, "sqlite backend")

	t.Setenv("DATA_BACKEND", "sqlite")
	out, err := runCLI(t, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(clean)")
}

func TestParsePercentFlag(t *testing.T) {
	name, v, err := parsePercentFlag(" Groceries = 25.5 ")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", name)
	assert.Equal(t, "25.5", v.String())

	for _, bad := range []string{"Rent", "=5", "Rent=lots"} {
		_, _, err := parsePercentFlag(bad)
		assert.Error(t, err, bad)
	}
}
