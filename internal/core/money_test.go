package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		reason ReasonCode
	}{
		{"plain integer", "42", "42", ReasonOK},
		{"brazilian real with comma", "R$ 12,50", "12.5", ReasonOK},
		{"dollar with dot", "$1234.56", "1234.56", ReasonOK},
		{"us dollar prefix", "US$ 10", "10", ReasonOK},
		{"euro suffix", "15,00 €", "15", ReasonOK},
		{"pound", "£3.2", "3.2", ReasonOK},
		{"non breaking space", "R$ 7,25", "7.25", ReasonOK},
		{"surrounding whitespace", "  8  ", "8", ReasonOK},
		{"zero", "0", "0", ReasonOK},
		{"empty", "", "0", ReasonEmptyInput},
		{"only symbol", "R$ ", "0", ReasonEmptyInput},
		{"text", "abc", "0", ReasonMalformed},
		{"thousands and decimal", "1.234,56", "0", ReasonMalformed},
		{"two commas", "1,2,3", "0", ReasonMalformed},
		{"exponent", "1e100000000", "0", ReasonMalformed},
		{"upper exponent", "2E3", "0", ReasonMalformed},
		{"negative exponent", "5e-3", "0", ReasonMalformed},
		{"negative", "-5", "0", ReasonNegative},
		{"negative with symbol", "R$ -12,00", "0", ReasonNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, out := NormalizeAmount(tt.in)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, tt.reason == ReasonOK, out.OK)
		})
	}
}

func TestParseAmountNeverPanics(t *testing.T) {
	inputs := []string{"", ",", ".", "R$", "$$$", "1e", "--1", "١٢٣", "\x00", "9999999999999999999999999.99"}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			d := ParseAmount(in)
			assert.False(t, d.IsNegative())
		})
	}
}

func TestNormalizerCustomSymbols(t *testing.T) {
	n := NewNormalizer("CHF")
	got, out := n.Normalize("CHF 19,90")
	assert.True(t, out.OK)
	assert.Equal(t, "19.9", got.String())

	// "$" is not stripped by this normalizer.
	_, out = n.Normalize("$5")
	assert.Equal(t, ReasonMalformed, out.Reason)
}

func TestInRange(t *testing.T) {
	assert.True(t, InRange(decimal.RequireFromString("1234.56")))
	assert.True(t, InRange(decimal.Zero))
	assert.False(t, InRange(decimal.New(1, 100000000)))
	assert.False(t, InRange(decimal.New(1, -100)))
}
