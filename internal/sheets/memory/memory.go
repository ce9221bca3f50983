// Package memory is an in-process extract source used by tests and the demo
// backend.
package memory

import (
	"context"
	"sync"
	"time"

	"financeboard/internal/core"
	ports "financeboard/internal/sheets"
)

var Header = []string{"Data", "Class", "Value", "Description"}

type Source struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

var _ ports.ExtractSource = (*Source)(nil)

// New returns a source serving rows. The first row must be the header.
func New(rows [][]string) *Source {
	s := &Source{}
	s.Replace(rows)
	return s
}

// NewDemo seeds a few expenses in the month of now so a fresh install has
// something to show.
func NewDemo(now time.Time) *Source {
	m := core.MonthOf(now)
	day := func(d int) string {
		if d > now.Day() {
			d = now.Day()
		}
		return core.FormatDate(core.NewDate(m.Year, m.Month, d))
	}
	return New([][]string{
		Header,
		{day(1), "Rent", "1500,00", "Monthly rent"},
		{day(2), "Groceries", "R$ 320,45", "Supermarket"},
		{day(3), "Restaurant", "R$ 86,90", "Dinner"},
		{day(5), "Internet", "99,90", "Fiber"},
		{day(8), "Pharmacy", "42,10", ""},
		{day(9), "Leisure", "R$ 60,00", "Cinema"},
	})
}

func (s *Source) FetchExtract(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return copyRows(s.rows), nil
}

// Replace swaps the served rows.
func (s *Source) Replace(rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = copyRows(rows)
}

// Append adds data rows after the existing ones.
func (s *Source) Append(rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, copyRows(rows)...)
}

// FailWith makes every fetch return err until it is called with nil.
func (s *Source) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func copyRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, r := range in {
		out[i] = append([]string(nil), r...)
	}
	return out
}
