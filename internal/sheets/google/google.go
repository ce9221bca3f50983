package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"financeboard/internal/cache"
	"financeboard/internal/log"
	ports "financeboard/internal/sheets"

	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet, the range to read and the credentials.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// ReadRange is the A1 column span read from SheetName, "A:Z" by default.
	ReadRange string

	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientFile    string
	OAuthTokenFile     string

	CacheTTL time.Duration
}

// valuesReader is the slice of the Sheets API the client needs.
type valuesReader interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
}

type Client struct {
	values        valuesReader
	spreadsheetID string
	readRange     string
	cache         *cache.LRUCache[[][]string]
	logger        *log.Logger
}

var (
	_ ports.ExtractSource = (*Client)(nil)
	_ ports.Invalidator   = (*Client)(nil)
)

// New creates a Sheets client. Credentials are tried in this order: inline
// service account JSON, service account file, OAuth client plus token files,
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	opts, err := clientOptions(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "sheet", cfg.SheetName)
	return newClient(apiValues{svc: svc}, cfg, logger), nil
}

func newClient(values valuesReader, cfg Config, logger *log.Logger) *Client {
	c := &Client{
		values:        values,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		readRange:     buildRange(cfg.SheetName, cfg.ReadRange),
		logger:        logger,
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.NewLRUCache[[][]string](1, cfg.CacheTTL)
	}
	return c
}

// Cache exposes the extract cache so it can be registered for cleanup. It is
// nil when caching is disabled.
func (c *Client) Cache() *cache.LRUCache[[][]string] {
	return c.cache
}

// FetchExtract reads the configured range. Results are cached for CacheTTL.
func (c *Client) FetchExtract(ctx context.Context) ([][]string, error) {
	if c.cache != nil {
		if rows, ok := c.cache.Get(c.readRange); ok {
			c.logger.DebugContext(ctx, "Extract served from cache", log.FieldRows, len(rows))
			return rows, nil
		}
	}

	start := time.Now()
	values, err := c.values.Get(ctx, c.spreadsheetID, c.readRange)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.readRange, err)
	}
	rows := toStrings(values)
	c.logger.InfoContext(ctx, "Extract fetched from Google Sheets",
		"range", c.readRange,
		log.FieldRows, len(rows),
		log.FieldDuration, time.Since(start).Milliseconds(),
	)

	if c.cache != nil {
		c.cache.Set(c.readRange, rows)
	}
	return rows, nil
}

// Invalidate drops the cached extract.
func (c *Client) Invalidate() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

type apiValues struct {
	svc *gsheet.Service
}

func (a apiValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// buildRange returns "<sheet>!<cols>", quoting sheet names that need it.
func buildRange(sheet, cols string) string {
	cols = strings.TrimSpace(cols)
	if cols == "" {
		cols = "A:Z"
	}
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return cols
	}
	return quoteSheetName(sheet) + "!" + cols
}

func quoteSheetName(name string) string {
	plain := name[0] < '0' || name[0] > '9'
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// toStrings renders the API's loosely typed cells as text. Trailing empty
// cells are omitted by the API, so rows may be shorter than the header.
func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		r := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				r[i] = s
				continue
			}
			r[i] = fmt.Sprint(v)
		}
		out = append(out, r)
	}
	return out
}
