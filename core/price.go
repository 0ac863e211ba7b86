package core

import (
	"errors"
	"fmt"
	"math/big"

	tokenregistry "github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
)

var (
	ErrZeroPrice     = errors.New("price is zero")
	ErrNegativePrice = errors.New("price is negative")
)

// Price is the rate of quote per base. The stored fraction is in raw units;
// Adjusted scales it by the token decimals into human units.
type Price struct {
	base   tokenregistry.Token
	quote  tokenregistry.Token
	raw    Fraction
	scalar Fraction
}

// NewPrice builds numerator/denominator quote raw units per base raw unit.
// The argument order (denominator before numerator) follows the base/quote
// reading of the ratio. Both terms of the stored ratio are positive.
func NewPrice(base, quote tokenregistry.Token, denominator, numerator *big.Int) (Price, error) {
	raw, err := NewFraction(numerator, denominator)
	if err != nil {
		return Price{}, err
	}
	switch raw.Sign() {
	case 0:
		return Price{}, ErrZeroPrice
	case -1:
		return Price{}, fmt.Errorf("%w: %s/%s", ErrNegativePrice, numerator, denominator)
	}
	if raw.denominator.Sign() < 0 {
		raw.numerator.Neg(raw.numerator)
		raw.denominator.Neg(raw.denominator)
	}
	return Price{
		base:  base,
		quote: quote,
		raw:   raw,
		scalar: Fraction{
			numerator:   pow10(int(base.Decimals)),
			denominator: pow10(int(quote.Decimals)),
		},
	}, nil
}

// NewPriceFromAmounts builds the price quoteAmount/baseAmount.
func NewPriceFromAmounts(baseAmount, quoteAmount CurrencyAmount) (Price, error) {
	if baseAmount.IsZero() {
		return Price{}, fmt.Errorf("base amount: %w", ErrDivisionByZero)
	}
	return NewPrice(baseAmount.Currency(), quoteAmount.Currency(), baseAmount.Quotient(), quoteAmount.Quotient())
}

func (p Price) BaseCurrency() tokenregistry.Token  { return p.base }
func (p Price) QuoteCurrency() tokenregistry.Token { return p.quote }

// Raw returns the price in raw units.
func (p Price) Raw() Fraction {
	return p.raw
}

// Adjusted returns the price in human units.
func (p Price) Adjusted() Fraction {
	return p.raw.Multiply(p.scalar)
}

// Invert flips base and quote. The zero Price inverts to itself.
func (p Price) Invert() Price {
	if p.raw.IsZero() {
		return p
	}
	return Price{
		base:  p.quote,
		quote: p.base,
		raw: Fraction{
			numerator:   p.raw.Denominator(),
			denominator: p.raw.Numerator(),
		},
		scalar: Fraction{
			numerator:   pow10(int(p.quote.Decimals)),
			denominator: pow10(int(p.base.Decimals)),
		},
	}
}

// Multiply chains p (A→B) with other (B→C) into A→C.
func (p Price) Multiply(other Price) (Price, error) {
	if !p.quote.Equals(other.base) {
		return Price{}, fmt.Errorf("%w: %s quote vs %s base", ErrCurrencyMismatch, p.quote, other.base)
	}
	f := p.raw.Multiply(other.raw)
	return NewPrice(p.base, other.quote, f.Denominator(), f.Numerator())
}

// Quote converts an amount of the base currency into the quote currency,
// truncating to whole raw units.
func (p Price) Quote(amount CurrencyAmount) (CurrencyAmount, error) {
	if !amount.Currency().Equals(p.base) {
		return CurrencyAmount{}, fmt.Errorf("%w: amount in %s, price base %s", ErrCurrencyMismatch, amount.Currency(), p.base)
	}
	return FromRawAmount(p.quote, p.raw.Multiply(amount.AsFraction()).Quotient())
}

func (p Price) LessThan(other Price) bool    { return p.raw.LessThan(other.raw) }
func (p Price) EqualTo(other Price) bool     { return p.raw.EqualTo(other.raw) }
func (p Price) GreaterThan(other Price) bool { return p.raw.GreaterThan(other.raw) }

// ToSignificant renders the adjusted price.
func (p Price) ToSignificant(significantDigits int, rounding Rounding, opts ...FormatOption) (string, error) {
	return p.Adjusted().ToSignificant(significantDigits, rounding, opts...)
}

// ToFixed renders the adjusted price.
func (p Price) ToFixed(decimalPlaces int, rounding Rounding, opts ...FormatOption) (string, error) {
	return p.Adjusted().ToFixed(decimalPlaces, rounding, opts...)
}

func (p Price) String() string {
	s, _ := p.ToSignificant(6, RoundHalfUp)
	return fmt.Sprintf("%s %s/%s", s, p.quote, p.base)
}
