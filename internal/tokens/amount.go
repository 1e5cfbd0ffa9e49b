package tokens

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$|^\.[0-9]+$`)

// ToBaseUnits converts a human decimal string ("1.5") into base units using decimals.
// Fractional digits beyond decimals are rejected rather than rounded.
func ToBaseUnits(human string, decimals uint8) (*big.Int, error) {
	v := strings.TrimSpace(human)
	if v == "" {
		return nil, fmt.Errorf("amount is required")
	}
	if !decimalPattern.MatchString(v) {
		return nil, fmt.Errorf("amount must be a non-negative decimal like 1.23, got %q", human)
	}

	parts := strings.SplitN(v, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = strings.TrimRight(parts[1], "0")
	}
	if len(fracPart) > int(decimals) {
		return nil, fmt.Errorf("decimal precision exceeds token decimals (%d)", decimals)
	}

	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", human)
	}
	return out, nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(baseUnits *big.Int, decimals uint8) string {
	if baseUnits == nil {
		return "0"
	}
	neg := baseUnits.Sign() < 0
	s := new(big.Int).Abs(baseUnits).String()
	if decimals > 0 {
		d := int(decimals)
		if len(s) <= d {
			s = strings.Repeat("0", d-len(s)+1) + s
		}
		intPart := s[:len(s)-d]
		fracPart := strings.TrimRight(s[len(s)-d:], "0")
		s = intPart
		if fracPart != "" {
			s += "." + fracPart
		}
	}
	if neg {
		return "-" + s
	}
	return s
}

// NormalizeDecimal trims redundant zeros: "001.500" -> "1.5".
func NormalizeDecimal(v string) string {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, ".") {
		out := strings.TrimLeft(v, "0")
		if out == "" {
			return "0"
		}
		return out
	}
	parts := strings.SplitN(v, ".", 2)
	intPart := strings.TrimLeft(parts[0], "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart := strings.TrimRight(parts[1], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// ParseBaseUnits parses a base-unit integer string as returned by the 0x API.
func ParseBaseUnits(v string) (*big.Int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty amount")
	}
	out, ok := new(big.Int).SetString(v, 10)
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("invalid base-unit amount %q", v)
	}
	return out, nil
}
