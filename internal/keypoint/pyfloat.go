package keypoint

import (
	"math"
	"strconv"
	"strings"
)

// formatFloat renders f the way Python's repr does: the shortest digits
// that round-trip, positional notation for exponents in [-4, 16), a
// trailing ".0" on integral values, and scientific notation with a signed
// two-digit exponent otherwise.
//
//	1 -> "1.0"   0.0001 -> "0.0001"   1e-05 -> "1e-05"   1e16 -> "1e+16"
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sign := ""
	if f < 0 {
		sign, f = "-", -f
	}

	// Shortest round-trip digits as d.ddddde±XX.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expStr, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expStr)
	digits := strings.Replace(mant, ".", "", 1)
	point := exp + 1 // digits before the decimal point

	if point > -4 && point <= 16 {
		var b strings.Builder
		b.WriteString(sign)
		switch {
		case point <= 0:
			b.WriteString("0.")
			b.WriteString(strings.Repeat("0", -point))
			b.WriteString(digits)
		case point >= len(digits):
			b.WriteString(digits)
			b.WriteString(strings.Repeat("0", point-len(digits)))
			b.WriteString(".0")
		default:
			b.WriteString(digits[:point])
			b.WriteByte('.')
			b.WriteString(digits[point:])
		}
		return b.String()
	}

	esign := "+"
	if exp < 0 {
		esign, exp = "-", -exp
	}
	e := strconv.Itoa(exp)
	if len(e) < 2 {
		e = "0" + e
	}
	return sign + mant + "e" + esign + e
}
