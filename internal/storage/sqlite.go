package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps SQLite from reporting SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) LoadSettings(ctx context.Context) (core.Settings, error) {
	var revenue, updated string
	err := r.db.QueryRowContext(ctx,
		`SELECT monthly_expected_revenue, last_updated FROM budget_settings WHERE id = 1`,
	).Scan(&revenue, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, ErrNotFound
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("select settings: %w", err)
	}

	st := core.Settings{CategoryPercentages: map[string]decimal.Decimal{}}
	if st.MonthlyExpectedRevenue, err = decimal.NewFromString(revenue); err != nil {
		return core.Settings{}, fmt.Errorf("parse revenue %q: %w", revenue, err)
	}
	if st.LastUpdated, err = parseTimestamp(updated); err != nil {
		return core.Settings{}, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT category, percentage FROM category_percentages`)
	if err != nil {
		return core.Settings{}, fmt.Errorf("select percentages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat, pct string
		if err := rows.Scan(&cat, &pct); err != nil {
			return core.Settings{}, fmt.Errorf("scan percentage: %w", err)
		}
		d, err := decimal.NewFromString(pct)
		if err != nil {
			return core.Settings{}, fmt.Errorf("parse percentage for %s: %w", cat, err)
		}
		st.CategoryPercentages[cat] = d
	}
	if err := rows.Err(); err != nil {
		return core.Settings{}, fmt.Errorf("iterate percentages: %w", err)
	}
	return st, nil
}

func (r *SQLiteRepository) SaveSettings(ctx context.Context, st core.Settings) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budget_settings (id, monthly_expected_revenue, last_updated) VALUES (1, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET monthly_expected_revenue = excluded.monthly_expected_revenue,
			                               last_updated = excluded.last_updated`,
			st.MonthlyExpectedRevenue.String(), formatTimestamp(st.LastUpdated),
		); err != nil {
			return fmt.Errorf("upsert settings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM category_percentages`); err != nil {
			return fmt.Errorf("clear percentages: %w", err)
		}
		for cat, pct := range st.CategoryPercentages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO category_percentages (category, percentage) VALUES (?, ?)`,
				cat, pct.String(),
			); err != nil {
				return fmt.Errorf("insert percentage %s: %w", cat, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) LoadRollups(ctx context.Context) ([]core.DailyRollup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, transactions, total_by_category, total_amount, recorded_at
		 FROM daily_rollups ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("select rollups: %w", err)
	}
	defer rows.Close()

	var out []core.DailyRollup
	for rows.Next() {
		var rec rollupRecord
		var txJSON, totalsJSON, total string
		if err := rows.Scan(&rec.Date, &txJSON, &totalsJSON, &total, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		if err := json.Unmarshal([]byte(txJSON), &rec.Expenses); err != nil {
			return nil, fmt.Errorf("decode transactions for %s: %w", rec.Date, err)
		}
		if err := json.Unmarshal([]byte(totalsJSON), &rec.TotalByClass); err != nil {
			return nil, fmt.Errorf("decode totals for %s: %w", rec.Date, err)
		}
		rec.TotalAmount = json.Number(total)
		rollup, err := rollupFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, rollup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollups: %w", err)
	}
	return out, nil
}

// ReplaceRollups swaps the whole table inside one transaction.
func (r *SQLiteRepository) ReplaceRollups(ctx context.Context, rollups []core.DailyRollup) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_rollups`); err != nil {
			return fmt.Errorf("clear rollups: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO daily_rollups (date, transactions, total_by_category, total_amount, recorded_at)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rollup := range rollups {
			rec := rollupToRecord(rollup)
			txJSON, err := json.Marshal(rec.Expenses)
			if err != nil {
				return fmt.Errorf("encode transactions for %s: %w", rec.Date, err)
			}
			totalsJSON, err := json.Marshal(rec.TotalByClass)
			if err != nil {
				return fmt.Errorf("encode totals for %s: %w", rec.Date, err)
			}
			if _, err := stmt.ExecContext(ctx, rec.Date, string(txJSON), string(totalsJSON), string(rec.TotalAmount), rec.Timestamp); err != nil {
				return fmt.Errorf("insert rollup %s: %w", rec.Date, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
