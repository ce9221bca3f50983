package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceCopiesRows(t *testing.T) {
	rows := [][]string{Header, {"2025-03-01", "Rent", "10", ""}}
	s := New(rows)
	rows[1][1] = "Car"

	got, err := s.FetchExtract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Rent", got[1][1])

	got[1][1] = "Car"
	again, _ := s.FetchExtract(context.Background())
	assert.Equal(t, "Rent", again[1][1])
}

func TestSourceAppendAndFail(t *testing.T) {
	s := New([][]string{Header})
	s.Append([]string{"2025-03-02", "Car", "5", ""})

	got, err := s.FetchExtract(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)

	boom := errors.New("offline")
	s.FailWith(boom)
	_, err = s.FetchExtract(context.Background())
	assert.ErrorIs(t, err, boom)

	s.FailWith(nil)
	_, err = s.FetchExtract(context.Background())
	assert.NoError(t, err)
}

func TestDemoStaysInsideMonth(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	rows, err := NewDemo(now).FetchExtract(context.Background())
	require.NoError(t, err)

	require.Greater(t, len(rows), 1)
	assert.Equal(t, Header, rows[0])
	for _, r := range rows[1:] {
		assert.LessOrEqual(t, r[0], "2025-03-04")
		assert.GreaterOrEqual(t, r[0], "2025-03-01")
	}
}
