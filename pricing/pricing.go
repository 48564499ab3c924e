package pricing

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// CurrencyPrefix is the currency token the storefront prepends to prices.
const CurrencyPrefix = "ARS$"

// leadingNumber matches the numeric prefix of a normalised amount, the same
// portion a lenient float parser would consume.
var leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)

// Parse converts locale-formatted currency text ("ARS$1.234,50") to a number.
// Malformed or empty input yields 0.
func Parse(text string) float64 {
	v, _ := ParseAmount(text)
	return v
}

// ParseAmount is Parse with an explicit signal: ok is false when the text did
// not contain a usable number, so callers can tell a parse failure apart from
// a genuine zero price.
func ParseAmount(text string) (float64, bool) {
	s := strings.Replace(text, CurrencyPrefix, "", 1)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))

	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseDiscount reads a discount tag such as "-25%" and returns 25.
func ParseDiscount(text string) (float64, bool) {
	s := strings.Replace(text, "-", "", 1)
	s = strings.Replace(s, "%", "", 1)
	s = strings.TrimSpace(s)

	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ValidDiscount reports whether percent lies strictly inside (0, 100).
func ValidDiscount(percent float64) bool {
	return percent > 0 && percent < 100
}

// PreDiscount reconstructs the price before a percentage discount was applied.
// It returns false for percentages outside (0, 100); such values must be
// treated as "no discount" by the caller.
func PreDiscount(current, percent float64) (float64, bool) {
	if !ValidDiscount(percent) {
		return 0, false
	}
	return current / (1 - percent/100), true
}

// Format renders a value with two decimals and a comma separator ("1234,56").
// Rounding is half away from zero on the exact binary value.
func Format(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0,00"
	}

	x := new(big.Float).SetPrec(256).SetFloat64(math.Abs(v))
	x.Mul(x, big.NewFloat(100))

	cents, _ := x.Int(nil)
	frac := new(big.Float).SetPrec(256).Sub(x, new(big.Float).SetInt(cents))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		cents.Add(cents, big.NewInt(1))
	}

	digits := cents.String()
	for len(digits) < 3 {
		digits = "0" + digits
	}
	out := digits[:len(digits)-2] + "," + digits[len(digits)-2:]
	if v < 0 && cents.Sign() != 0 {
		out = "-" + out
	}
	return out
}

// FormatPercent renders a discount percentage the way the storefront data
// expects it: shortest decimal form followed by "%".
func FormatPercent(percent float64) string {
	return strconv.FormatFloat(percent, 'f', -1, 64) + "%"
}
