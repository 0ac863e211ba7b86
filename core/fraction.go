// Package core holds the exact rational value types shared by the pricing
// packages: Fraction, Price, Percent and CurrencyAmount.
package core

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrZeroDenominator          = errors.New("denominator is zero")
	ErrDivisionByZero           = errors.New("division by zero")
	ErrInvalidSignificantDigits = errors.New("significant digits must be positive")
	ErrInvalidDecimalPlaces     = errors.New("decimal places must not be negative")
)

// Fraction is an immutable signed rational number. It is not kept in lowest
// terms; comparisons are done by cross-multiplication.
type Fraction struct {
	numerator   *big.Int
	denominator *big.Int
}

var bigOne = big.NewInt(1)

// NewFraction builds numerator/denominator. Both values are copied.
func NewFraction(numerator, denominator *big.Int) (Fraction, error) {
	if numerator == nil || denominator == nil {
		return Fraction{}, fmt.Errorf("nil operand: %w", ErrZeroDenominator)
	}
	if denominator.Sign() == 0 {
		return Fraction{}, ErrZeroDenominator
	}
	return Fraction{
		numerator:   new(big.Int).Set(numerator),
		denominator: new(big.Int).Set(denominator),
	}, nil
}

// NewFractionFromInt64 builds numerator/denominator from machine integers.
func NewFractionFromInt64(numerator, denominator int64) (Fraction, error) {
	return NewFraction(big.NewInt(numerator), big.NewInt(denominator))
}

// FractionFromInt lifts an integer to x/1.
func FractionFromInt(x *big.Int) Fraction {
	return Fraction{
		numerator:   new(big.Int).Set(x),
		denominator: big.NewInt(1),
	}
}

// Numerator returns a copy of the numerator.
func (f Fraction) Numerator() *big.Int {
	return new(big.Int).Set(f.num())
}

// Denominator returns a copy of the denominator.
func (f Fraction) Denominator() *big.Int {
	return new(big.Int).Set(f.den())
}

// num and den let the zero Fraction behave as 0/1.
func (f Fraction) num() *big.Int {
	if f.numerator == nil {
		return new(big.Int)
	}
	return f.numerator
}

func (f Fraction) den() *big.Int {
	if f.denominator == nil {
		return bigOne
	}
	return f.denominator
}

// Quotient is the integer quotient, truncated toward zero.
func (f Fraction) Quotient() *big.Int {
	return new(big.Int).Quo(f.num(), f.den())
}

// Remainder is (numerator mod denominator)/denominator, with the sign of the
// numerator.
func (f Fraction) Remainder() Fraction {
	return Fraction{
		numerator:   new(big.Int).Rem(f.num(), f.den()),
		denominator: new(big.Int).Set(f.den()),
	}
}

// Sign returns -1, 0 or +1.
func (f Fraction) Sign() int {
	return f.num().Sign() * f.den().Sign()
}

func (f Fraction) IsZero() bool {
	return f.num().Sign() == 0
}

// Invert returns denominator/numerator.
func (f Fraction) Invert() (Fraction, error) {
	if f.IsZero() {
		return Fraction{}, fmt.Errorf("invert: %w", ErrDivisionByZero)
	}
	return Fraction{
		numerator:   new(big.Int).Set(f.den()),
		denominator: new(big.Int).Set(f.num()),
	}, nil
}

func (f Fraction) Add(other Fraction) Fraction {
	if f.den().Cmp(other.den()) == 0 {
		return Fraction{
			numerator:   new(big.Int).Add(f.num(), other.num()),
			denominator: new(big.Int).Set(f.den()),
		}
	}
	a := new(big.Int).Mul(f.num(), other.den())
	b := new(big.Int).Mul(other.num(), f.den())
	return Fraction{
		numerator:   a.Add(a, b),
		denominator: new(big.Int).Mul(f.den(), other.den()),
	}
}

func (f Fraction) Subtract(other Fraction) Fraction {
	if f.den().Cmp(other.den()) == 0 {
		return Fraction{
			numerator:   new(big.Int).Sub(f.num(), other.num()),
			denominator: new(big.Int).Set(f.den()),
		}
	}
	a := new(big.Int).Mul(f.num(), other.den())
	b := new(big.Int).Mul(other.num(), f.den())
	return Fraction{
		numerator:   a.Sub(a, b),
		denominator: new(big.Int).Mul(f.den(), other.den()),
	}
}

func (f Fraction) Multiply(other Fraction) Fraction {
	return Fraction{
		numerator:   new(big.Int).Mul(f.num(), other.num()),
		denominator: new(big.Int).Mul(f.den(), other.den()),
	}
}

func (f Fraction) Divide(other Fraction) (Fraction, error) {
	if other.IsZero() {
		return Fraction{}, ErrDivisionByZero
	}
	return Fraction{
		numerator:   new(big.Int).Mul(f.num(), other.den()),
		denominator: new(big.Int).Mul(f.den(), other.num()),
	}, nil
}

// Cmp compares f and other as rationals and returns -1, 0 or +1.
func (f Fraction) Cmp(other Fraction) int {
	lhs := new(big.Int).Mul(f.num(), other.den())
	rhs := new(big.Int).Mul(other.num(), f.den())
	c := lhs.Cmp(rhs)
	// Cross-multiplying by a negative denominator flips the inequality.
	if f.den().Sign()*other.den().Sign() < 0 {
		c = -c
	}
	return c
}

func (f Fraction) LessThan(other Fraction) bool {
	return f.Cmp(other) < 0
}

func (f Fraction) EqualTo(other Fraction) bool {
	return f.Cmp(other) == 0
}

func (f Fraction) GreaterThan(other Fraction) bool {
	return f.Cmp(other) > 0
}

// Abs returns |f| with a positive denominator.
func (f Fraction) Abs() Fraction {
	return Fraction{
		numerator:   new(big.Int).Abs(f.num()),
		denominator: new(big.Int).Abs(f.den()),
	}
}

// ToSignificant renders f with at most significantDigits significant figures.
func (f Fraction) ToSignificant(significantDigits int, rounding Rounding, opts ...FormatOption) (string, error) {
	if significantDigits <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidSignificantDigits, significantDigits)
	}
	return formatSignificant(f.num(), f.den(), significantDigits, rounding, newFormat(opts)), nil
}

// ToFixed renders f with exactly decimalPlaces fraction digits.
func (f Fraction) ToFixed(decimalPlaces int, rounding Rounding, opts ...FormatOption) (string, error) {
	if decimalPlaces < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidDecimalPlaces, decimalPlaces)
	}
	return formatFixed(f.num(), f.den(), decimalPlaces, rounding, newFormat(opts)), nil
}

func (f Fraction) String() string {
	return f.num().String() + "/" + f.den().String()
}
