package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testCats = core.CategorySet{"Groceries", "Rent"}

func sampleSettings() core.Settings {
	return core.Settings{
		MonthlyExpectedRevenue: dec("5000.50"),
		CategoryPercentages: map[string]decimal.Decimal{
			"Groceries": dec("25"),
			"Rent":      dec("20.5"),
		},
		LastUpdated: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func sampleRollups() []core.DailyRollup {
	recorded := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	return []core.DailyRollup{
		core.NewDailyRollup(core.NewDate(2025, 3, 2), []core.Transaction{
			{Date: core.NewDate(2025, 3, 2), Category: "Groceries", Amount: dec("12.34"), Description: "pão"},
			{Date: core.NewDate(2025, 3, 2), Category: "Gifts", Amount: dec("5")},
		}, testCats, recorded),
		core.NewDailyRollup(core.NewDate(2025, 3, 1), []core.Transaction{
			{Date: core.NewDate(2025, 3, 1), Category: "Rent", Amount: dec("1500")},
		}, testCats, recorded),
	}
}

// Every backend must satisfy the same repository contract.
func TestRepositoryContract(t *testing.T) {
	backends := map[string]func(t *testing.T) Repository{
		"memory": func(t *testing.T) Repository { return NewMemoryStore() },
		"file": func(t *testing.T) Repository {
			dir := t.TempDir()
			fs, err := NewFileStore(filepath.Join(dir, "user_settings.json"), filepath.Join(dir, "daily_results.json"))
			require.NoError(t, err)
			return fs
		},
		"sqlite": func(t *testing.T) Repository {
			repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "budget.db"))
			require.NoError(t, err)
			return repo
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := open(t)
			t.Cleanup(func() { repo.Close() })

			_, err := repo.LoadSettings(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			initial, err := repo.LoadRollups(ctx)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
			}
			assert.Empty(t, initial, "an untouched store has no rollups")

			want := sampleSettings()
			require.NoError(t, repo.SaveSettings(ctx, want))
			got, err := repo.LoadSettings(ctx)
			require.NoError(t, err)
			assert.True(t, want.MonthlyExpectedRevenue.Equal(got.MonthlyExpectedRevenue))
			assert.True(t, want.LastUpdated.Equal(got.LastUpdated))
			require.Len(t, got.CategoryPercentages, 2)
			assert.True(t, dec("20.5").Equal(got.CategoryPercentages["Rent"]))

			// Saving replaces the whole record, including dropped keys.
			want.CategoryPercentages = map[string]decimal.Decimal{"Groceries": dec("30")}
			require.NoError(t, repo.SaveSettings(ctx, want))
			got, err = repo.LoadSettings(ctx)
			require.NoError(t, err)
			assert.Len(t, got.CategoryPercentages, 1)

			rollups := sampleRollups()
			require.NoError(t, repo.ReplaceRollups(ctx, rollups))
			loaded, err := repo.LoadRollups(ctx)
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			assert.Equal(t, core.NewDate(2025, 3, 2), loaded[0].Date)
			assert.True(t, dec("17.34").Equal(loaded[0].TotalAmount))
			assert.True(t, dec("12.34").Equal(loaded[0].TotalByCategory["Groceries"]))
			require.Len(t, loaded[0].Transactions, 2)
			assert.Equal(t, "pão", loaded[0].Transactions[0].Description)
			assert.True(t, rollups[0].RecordedAt.Equal(loaded[0].RecordedAt))

			require.NoError(t, repo.ReplaceRollups(ctx, rollups[1:]))
			loaded, err = repo.LoadRollups(ctx)
			require.NoError(t, err)
			require.Len(t, loaded, 1)
			assert.Equal(t, core.NewDate(2025, 3, 1), loaded[0].Date)

			require.NoError(t, repo.ReplaceRollups(ctx, nil))
			loaded, err = repo.LoadRollups(ctx)
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "user_settings.json")
	rollupsPath := filepath.Join(dir, "daily_results.json")
	fs, err := NewFileStore(settingsPath, rollupsPath)
	require.NoError(t, err)

	require.NoError(t, fs.SaveSettings(ctx, sampleSettings()))
	require.NoError(t, fs.ReplaceRollups(ctx, sampleRollups()))

	var settingsDoc map[string]any
	raw, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &settingsDoc))
	assert.Equal(t, 5000.5, settingsDoc["monthly_expected_revenue"])
	assert.Contains(t, settingsDoc, "expense_class_percentages")
	assert.Equal(t, "2025-03-01T12:30:00Z", settingsDoc["last_updated"])

	var rollupsDoc map[string]any
	raw, err = os.ReadFile(rollupsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &rollupsDoc))
	assert.Equal(t, []any{}, rollupsDoc["monthly_summaries"])
	days := rollupsDoc["daily_expenses"].([]any)
	require.Len(t, days, 2)
	first := days[0].(map[string]any)
	assert.Equal(t, "2025-03-02", first["date"])
	assert.Equal(t, 17.34, first["total_amount"])
	assert.Contains(t, first, "total_by_class")
	assert.Contains(t, first, "expenses")
	assert.Contains(t, first, "timestamp")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")
}

func TestFileStoreKeepsMonthlySummaries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rollupsPath := filepath.Join(dir, "daily_results.json")
	require.NoError(t, os.WriteFile(rollupsPath, []byte(`{"daily_expenses": [], "monthly_summaries": [{"month": "2024-12"}]}`), 0o644))

	fs, err := NewFileStore(filepath.Join(dir, "user_settings.json"), rollupsPath)
	require.NoError(t, err)
	require.NoError(t, fs.ReplaceRollups(ctx, sampleRollups()))

	raw, err := os.ReadFile(rollupsPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"month": "2024-12"`)
}

func TestFileStoreReadsNaiveTimestamps(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "user_settings.json")
	doc := `{
  "monthly_expected_revenue": 5000.0,
  "expense_class_percentages": {"Groceries": 25.0},
  "last_updated": "2025-01-15T10:20:30.123456"
}`
	require.NoError(t, os.WriteFile(settingsPath, []byte(doc), 0o644))

	fs, err := NewFileStore(settingsPath, filepath.Join(dir, "daily_results.json"))
	require.NoError(t, err)
	got, err := fs.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, dec("5000").Equal(got.MonthlyExpectedRevenue))
	assert.Equal(t, 2025, got.LastUpdated.Year())
	assert.Equal(t, 123456000, got.LastUpdated.Nanosecond())
}

func TestFileStoreCorruptAndEmptyDocuments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "user_settings.json")
	rollupsPath := filepath.Join(dir, "daily_results.json")
	fs, err := NewFileStore(settingsPath, rollupsPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(settingsPath, []byte("{}"), 0o644))
	_, err = fs.LoadSettings(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(settingsPath, []byte("{not json"), 0o644))
	_, err = fs.LoadSettings(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(rollupsPath, []byte(`{"daily_expenses": [{"date": "yesterday"}]}`), 0o644))
	_, err = fs.LoadRollups(ctx)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(rollupsPath, []byte(`{"daily_expenses": oops`), 0o644))
	err = fs.ReplaceRollups(ctx, sampleRollups())
	require.Error(t, err, "a corrupt document is not overwritten")
	raw, _ := os.ReadFile(rollupsPath)
	assert.Equal(t, `{"daily_expenses": oops`, string(raw))
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	rollups := sampleRollups()
	require.NoError(t, m.ReplaceRollups(ctx, rollups))

	rollups[0].TotalByCategory["Groceries"] = dec("0")
	loaded, err := m.LoadRollups(ctx)
	require.NoError(t, err)
	assert.True(t, dec("12.34").Equal(loaded[0].TotalByCategory["Groceries"]))
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	version, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
