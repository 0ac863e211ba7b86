package core

import "math/big"

var oneHundred = FractionFromInt(big.NewInt(100))

// Percent is a Fraction that renders as a percentage.
type Percent struct {
	value Fraction
}

func NewPercent(numerator, denominator *big.Int) (Percent, error) {
	f, err := NewFraction(numerator, denominator)
	if err != nil {
		return Percent{}, err
	}
	return Percent{value: f}, nil
}

func PercentFromFraction(f Fraction) Percent {
	return Percent{value: f}
}

// Fraction returns the underlying ratio (0.5 for 50%).
func (p Percent) Fraction() Fraction {
	return p.value
}

func (p Percent) Add(other Percent) Percent {
	return Percent{value: p.value.Add(other.value)}
}

func (p Percent) Subtract(other Percent) Percent {
	return Percent{value: p.value.Subtract(other.value)}
}

func (p Percent) Multiply(other Percent) Percent {
	return Percent{value: p.value.Multiply(other.value)}
}

func (p Percent) Divide(other Percent) (Percent, error) {
	f, err := p.value.Divide(other.value)
	if err != nil {
		return Percent{}, err
	}
	return Percent{value: f}, nil
}

func (p Percent) LessThan(other Percent) bool    { return p.value.LessThan(other.value) }
func (p Percent) EqualTo(other Percent) bool     { return p.value.EqualTo(other.value) }
func (p Percent) GreaterThan(other Percent) bool { return p.value.GreaterThan(other.value) }

// ToSignificant renders the value multiplied by 100.
func (p Percent) ToSignificant(significantDigits int, rounding Rounding, opts ...FormatOption) (string, error) {
	return p.value.Multiply(oneHundred).ToSignificant(significantDigits, rounding, opts...)
}

// ToFixed renders the value multiplied by 100.
func (p Percent) ToFixed(decimalPlaces int, rounding Rounding, opts ...FormatOption) (string, error) {
	return p.value.Multiply(oneHundred).ToFixed(decimalPlaces, rounding, opts...)
}
