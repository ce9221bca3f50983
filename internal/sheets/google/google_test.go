package google

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"financeboard/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeValues struct {
	rows  [][]interface{}
	err   error
	calls int
	rng   string
}

func (f *fakeValues) Get(_ context.Context, _ string, rng string) ([][]interface{}, error) {
	f.calls++
	f.rng = rng
	return f.rows, f.err
}

func TestFetchExtractConvertsCells(t *testing.T) {
	fv := &fakeValues{rows: [][]interface{}{
		{"Data", "Class", "Value"},
		{"2025-03-01", "Groceries", 12.5},
		{"2025-03-02", nil, "R$ 3,00"},
	}}
	c := newClient(fv, Config{SpreadsheetID: "id", SheetName: "Página1"}, log.Discard())

	rows, err := c.FetchExtract(context.Background())

	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Data", "Class", "Value"},
		{"2025-03-01", "Groceries", "12.5"},
		{"2025-03-02", "", "R$ 3,00"},
	}, rows)
	assert.Equal(t, "'Página1'!A:Z", fv.rng)
}

func TestFetchExtractCaches(t *testing.T) {
	fv := &fakeValues{rows: [][]interface{}{{"Data"}}}
	c := newClient(fv, Config{SpreadsheetID: "id", SheetName: "Expenses", CacheTTL: time.Minute}, log.Discard())
	ctx := context.Background()

	_, err := c.FetchExtract(ctx)
	require.NoError(t, err)
	_, err = c.FetchExtract(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fv.calls)
	assert.Equal(t, 1, c.Cache().Size())

	c.Invalidate()
	_, err = c.FetchExtract(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fv.calls)
}

func TestFetchExtractWithoutCache(t *testing.T) {
	fv := &fakeValues{}
	c := newClient(fv, Config{SpreadsheetID: "id"}, log.Discard())
	assert.Nil(t, c.Cache())
	c.Invalidate()

	_, _ = c.FetchExtract(context.Background())
	_, _ = c.FetchExtract(context.Background())
	assert.Equal(t, 2, fv.calls)
}

func TestFetchExtractWrapsErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := newClient(&fakeValues{err: boom}, Config{SpreadsheetID: "id", SheetName: "Expenses", CacheTTL: time.Minute}, log.Discard())

	_, err := c.FetchExtract(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Expenses!A:Z")
	assert.Zero(t, c.Cache().Size(), "failures are not cached")
}

func TestBuildRange(t *testing.T) {
	tests := []struct {
		sheet, cols, want string
	}{
		{"", "", "A:Z"},
		{"Expenses", "", "Expenses!A:Z"},
		{"Expenses", "A1:D", "Expenses!A1:D"},
		{"My Sheet", "A:C", "'My Sheet'!A:C"},
		{"Bob's", "", "'Bob''s'!A:Z"},
		{"2025", "", "'2025'!A:Z"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildRange(tt.sheet, tt.cols), "%q %q", tt.sheet, tt.cols)
	}
}

func TestClientOptionsRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := clientOptions(context.Background(), Config{}, log.Discard())
	assert.ErrorIs(t, err, errNoCredentials)

	opts, err := clientOptions(context.Background(), Config{ServiceAccountJSON: `{"type":"service_account"}`}, log.Discard())
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = clientOptions(context.Background(), Config{ServiceAccountFile: filepath.Join(t.TempDir(), "missing.json")}, log.Discard())
	assert.Error(t, err)
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

const testOAuthClient = `{"installed":{"client_id":"cid","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthTokenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "secrets", "token.json")

	require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}))
	info, err := os.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)

	clientPath := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(clientPath, []byte(testOAuthClient), 0o600))
	opts, err := clientOptions(context.Background(), Config{OAuthClientFile: clientPath, OAuthTokenFile: tokenPath}, log.Discard())
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}

func TestLoadTokenRejectsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o600))
	_, err := LoadToken(p)
	assert.Error(t, err)
}

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig([]byte(testOAuthClient))
	require.NoError(t, err)
	assert.Equal(t, "cid", cfg.ClientID)
	assert.Equal(t, []string{Scope}, cfg.Scopes)

	_, err = OAuthConfig([]byte("nope"))
	assert.Error(t, err)
}
