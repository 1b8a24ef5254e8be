package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// MicroFactor is the number of micro units in one display unit.
const MicroFactor = 1_000_000

// MicroDecimals is the number of fractional digits rendered for micro amounts.
const MicroDecimals = 6

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// TruncateMiddle keeps the head and tail of long identifiers such as addresses.
func TruncateMiddle(str string, num int) string {
	if len(str) <= num || num <= 5 {
		return TruncateString(str, num)
	}
	keep := num - 3
	head := keep - keep/2
	tail := keep / 2
	return str[:head] + "..." + str[len(str)-tail:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

func FormatFloat(f float64, decimals int) string {
	return AddCommas(fmt.Sprintf("%.*f", decimals, f))
}

// FormatMicroAmount renders an integer micro-denomination amount as display
// units with exactly six decimals. Decimal inputs (as returned for rewards)
// are truncated to their integer part first. Unparseable input yields zero.
func FormatMicroAmount(amount string) string {
	v, ok := ParseMicroAmount(amount)
	if !ok {
		return "0.000000"
	}
	return FormatMicroInt(v)
}

// FormatMicroInt is FormatMicroAmount for an already parsed amount.
func FormatMicroInt(v *big.Int) string {
	if v == nil {
		return "0.000000"
	}
	sign := ""
	abs := new(big.Int).Set(v)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	q, r := new(big.Int).QuoRem(abs, big.NewInt(MicroFactor), new(big.Int))
	return fmt.Sprintf("%s%s.%0*d", sign, q.String(), MicroDecimals, r.Int64())
}

// ParseMicroAmount parses an integer or decimal amount string, dropping any
// fractional part.
func ParseMicroAmount(amount string) (*big.Int, bool) {
	s := strings.TrimSpace(amount)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "-" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	return v, ok
}

// ParseDisplayAmount converts a positive display amount such as "1.5" into
// micro units. More than six decimals is an error.
func ParseDisplayAmount(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > MicroDecimals {
		return nil, fmt.Errorf("invalid amount %q: at most %d decimals", amount, MicroDecimals)
	}
	frac += strings.Repeat("0", MicroDecimals-len(frac))
	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || strings.ContainsAny(whole+frac, "+-") {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return v, nil
}

// MicroToFloat converts a micro amount to display units as a float, for graphs
// and totals where exactness does not matter.
func MicroToFloat(amount string) float64 {
	v, ok := ParseMicroAmount(amount)
	if !ok {
		return 0
	}
	f := new(big.Float).SetInt(v)
	f.Quo(f, big.NewFloat(MicroFactor))
	out, _ := f.Float64()
	return out
}

// FormatDenom turns a base denom such as "uatom" into its display form "ATOM".
// IBC and factory denoms are shortened rather than upper-cased.
func FormatDenom(denom string) string {
	switch {
	case strings.HasPrefix(denom, "ibc/"):
		return "ibc/" + TruncateString(strings.TrimPrefix(denom, "ibc/"), 8)
	case strings.HasPrefix(denom, "factory/"):
		parts := strings.Split(denom, "/")
		return parts[len(parts)-1]
	case len(denom) > 1 && denom[0] == 'u':
		return strings.ToUpper(denom[1:])
	}
	return strings.ToUpper(denom)
}
