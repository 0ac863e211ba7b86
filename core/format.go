package core

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Rounding selects how a value is rounded when it is rendered.
type Rounding int

const (
	// RoundDown rounds toward zero.
	RoundDown Rounding = iota
	// RoundHalfUp rounds to nearest, ties away from zero.
	RoundHalfUp
	// RoundUp rounds away from zero.
	RoundUp
)

func (r Rounding) String() string {
	switch r {
	case RoundDown:
		return "down"
	case RoundHalfUp:
		return "half-up"
	case RoundUp:
		return "up"
	default:
		return "unknown"
	}
}

type format struct {
	groupSeparator string
}

// FormatOption customises rendering.
type FormatOption func(*format)

// WithGroupSeparator groups the integer digits in threes using sep.
func WithGroupSeparator(sep string) FormatOption {
	return func(f *format) {
		f.groupSeparator = sep
	}
}

func newFormat(opts []FormatOption) format {
	var f format
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

var bigTen = big.NewInt(10)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(n)), nil)
}

// roundQuo divides n by d (both non-negative, d > 0) using the given rounding.
func roundQuo(n, d *big.Int, rounding Rounding) *big.Int {
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() == 0 {
		return q
	}
	switch rounding {
	case RoundUp:
		q.Add(q, bigOne)
	case RoundHalfUp:
		if r.Lsh(r, 1).Cmp(d) >= 0 {
			q.Add(q, bigOne)
		}
	}
	return q
}

// scaledQuo returns round(n * 10^k / d) for any integer k.
func scaledQuo(n, d *big.Int, k int, rounding Rounding) *big.Int {
	if k >= 0 {
		return roundQuo(new(big.Int).Mul(n, pow10(k)), d, rounding)
	}
	return roundQuo(n, new(big.Int).Mul(d, pow10(-k)), rounding)
}

// decimalExponent returns e such that 10^e <= n/d < 10^(e+1). n and d must be
// positive.
func decimalExponent(n, d *big.Int) int {
	e := len(n.String()) - len(d.String())
	var lhs, rhs *big.Int
	if e >= 0 {
		lhs, rhs = n, new(big.Int).Mul(d, pow10(e))
	} else {
		lhs, rhs = new(big.Int).Mul(n, pow10(-e)), d
	}
	if lhs.Cmp(rhs) < 0 {
		e--
	}
	return e
}

func formatSignificant(num, den *big.Int, significantDigits int, rounding Rounding, f format) string {
	if num.Sign() == 0 {
		return "0"
	}
	negative := num.Sign()*den.Sign() < 0
	n := new(big.Int).Abs(num)
	d := new(big.Int).Abs(den)

	k := significantDigits - 1 - decimalExponent(n, d)
	q := scaledQuo(n, d, k, rounding)
	if negative {
		q.Neg(q)
	}
	return f.apply(decimal.NewFromBigInt(q, int32(-k)).String())
}

func formatFixed(num, den *big.Int, decimalPlaces int, rounding Rounding, f format) string {
	negative := num.Sign()*den.Sign() < 0
	n := new(big.Int).Abs(num)
	d := new(big.Int).Abs(den)

	q := scaledQuo(n, d, decimalPlaces, rounding)
	if negative {
		q.Neg(q)
	}
	return f.apply(decimal.NewFromBigInt(q, int32(-decimalPlaces)).StringFixed(int32(decimalPlaces)))
}

func (f format) apply(s string) string {
	if f.groupSeparator == "" {
		return s
	}
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return sign + s
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteString(f.groupSeparator)
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteString(".")
		b.WriteString(fracPart)
	}
	return sign + b.String()
}
