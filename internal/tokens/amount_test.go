package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		human    string
		decimals uint8
		want     string
	}{
		{"whole usdc", "100", 6, "100000000"},
		{"fractional usdc", "1.5", 6, "1500000"},
		{"min unit", "0.000001", 6, "1"},
		{"trailing zeros beyond precision", "1.5000000", 6, "1500000"},
		{"leading dot", ".25", 18, "250000000000000000"},
		{"zero", "0", 18, "0"},
		{"zero decimals", "42", 0, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.human, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToBaseUnits_Invalid(t *testing.T) {
	for _, in := range []string{"", "-1", "1e18", "abc", "1.2.3", "1,5"} {
		_, err := ToBaseUnits(in, 18)
		assert.Error(t, err, in)
	}

	_, err := ToBaseUnits("0.0000001", 6)
	assert.ErrorContains(t, err, "precision")
}

func TestBaseUnitRoundTrip(t *testing.T) {
	inputs := []struct {
		human    string
		decimals uint8
	}{
		{"100", 6},
		{"0.1", 18},
		{"123456.654321", 6},
		{"0.000000000000000001", 18},
		{"1.10", 8},
		{"007.0700", 18},
		{"99999999999.123456789", 18},
	}
	for _, in := range inputs {
		base, err := ToBaseUnits(in.human, in.decimals)
		require.NoError(t, err, in.human)

		back := FormatUnits(base, in.decimals)
		assert.Equal(t, NormalizeDecimal(in.human), back, in.human)

		again, err := ToBaseUnits(back, in.decimals)
		require.NoError(t, err)
		assert.Equal(t, 0, base.Cmp(again), in.human)
	}
}

func TestFormatUnits(t *testing.T) {
	base, _ := ParseBaseUnits("1500000")
	assert.Equal(t, "1.5", FormatUnits(base, 6))
	assert.Equal(t, "0", FormatUnits(nil, 6))

	small, _ := ParseBaseUnits("1")
	assert.Equal(t, "0.000000000000000001", FormatUnits(small, 18))
}

func TestParseBaseUnits(t *testing.T) {
	_, err := ParseBaseUnits("-5")
	assert.Error(t, err)
	_, err = ParseBaseUnits("")
	assert.Error(t, err)
	v, err := ParseBaseUnits("1000")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v.Int64())
}
