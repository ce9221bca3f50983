package budget

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var embeddedDefaults []byte

type (
	// Defaults is the category set plus the configuration used when nothing has
	// been saved yet or when the user restores defaults.
	Defaults struct {
		MonthlyExpectedRevenue float64           `yaml:"monthly_expected_revenue"`
		Categories             []CategoryDefault `yaml:"categories"`
	}

	CategoryDefault struct {
		Name       string  `yaml:"name"`
		Percentage float64 `yaml:"percentage"`
	}
)

// LoadDefaults reads the defaults file at path, or the built-in defaults when
// path is empty.
func LoadDefaults(path string) (Defaults, error) {
	data := embeddedDefaults
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Defaults{}, fmt.Errorf("read budget defaults: %w", err)
		}
		data = b
	}
	return ParseDefaults(data)
}

// BuiltinDefaults returns the embedded defaults. They are validated by tests,
// so a failure here is a programming error.
func BuiltinDefaults() Defaults {
	d, err := ParseDefaults(embeddedDefaults)
	if err != nil {
		panic(fmt.Sprintf("embedded budget defaults: %v", err))
	}
	return d
}

func ParseDefaults(data []byte) (Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Defaults{}, fmt.Errorf("parse budget defaults: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Defaults{}, err
	}
	return d, nil
}

func (d Defaults) Validate() error {
	var errs []string
	if d.MonthlyExpectedRevenue < 0 {
		errs = append(errs, "monthly_expected_revenue must not be negative")
	}
	if len(d.Categories) == 0 {
		errs = append(errs, "at least one category is required")
	}
	seen := make(map[string]bool, len(d.Categories))
	for i, c := range d.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("category %d has no name", i+1))
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("duplicate category %q", name))
		}
		seen[key] = true
		if c.Percentage < 0 {
			errs = append(errs, fmt.Sprintf("category %q has a negative percentage", name))
		}
	}
	if len(errs) > 0 {
		return errors.New("invalid budget defaults:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

// CategorySet returns the categories in file order.
func (d Defaults) CategorySet() core.CategorySet {
	cs := make(core.CategorySet, 0, len(d.Categories))
	for _, c := range d.Categories {
		cs = append(cs, strings.TrimSpace(c.Name))
	}
	return cs
}

// Settings builds a fresh configuration from the defaults.
func (d Defaults) Settings(now time.Time) core.Settings {
	pct := make(map[string]decimal.Decimal, len(d.Categories))
	for _, c := range d.Categories {
		pct[strings.TrimSpace(c.Name)] = decimal.NewFromFloat(c.Percentage)
	}
	return core.Settings{
		MonthlyExpectedRevenue: decimal.NewFromFloat(d.MonthlyExpectedRevenue),
		CategoryPercentages:    pct,
		LastUpdated:            now.UTC(),
	}
}
