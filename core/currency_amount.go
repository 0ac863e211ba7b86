package core

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"

	tokenregistry "github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeAmount   = errors.New("amount is negative")
	ErrAmountOverflow   = errors.New("amount exceeds 2^256-1")
	ErrNotAnInteger     = errors.New("raw amount is not an integer")
)

// MaxUint256 is the largest raw amount a CurrencyAmount can hold.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CurrencyAmount is a raw integer quantity of a token.
type CurrencyAmount struct {
	currency tokenregistry.Token
	raw      *big.Int
}

// FromRawAmount builds an amount from raw (smallest unit) integer units.
func FromRawAmount(currency tokenregistry.Token, raw *big.Int) (CurrencyAmount, error) {
	if raw == nil {
		return CurrencyAmount{}, fmt.Errorf("%w: nil", ErrNotAnInteger)
	}
	if raw.Sign() < 0 {
		return CurrencyAmount{}, fmt.Errorf("%w: %s", ErrNegativeAmount, raw)
	}
	if raw.Cmp(MaxUint256) > 0 {
		return CurrencyAmount{}, ErrAmountOverflow
	}
	return CurrencyAmount{currency: currency, raw: new(big.Int).Set(raw)}, nil
}

// FromRawAmountString parses a base-10 raw integer. Fractional input such as
// "1.5" is refused rather than truncated.
func FromRawAmountString(currency tokenregistry.Token, raw string) (CurrencyAmount, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return CurrencyAmount{}, fmt.Errorf("%w: %q", ErrNotAnInteger, raw)
	}
	return FromRawAmount(currency, v)
}

func (a CurrencyAmount) Currency() tokenregistry.Token {
	return a.currency
}

// Quotient returns a copy of the raw integer amount.
func (a CurrencyAmount) Quotient() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

// AsFraction returns raw/1.
func (a CurrencyAmount) AsFraction() Fraction {
	return FractionFromInt(a.Quotient())
}

func (a CurrencyAmount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

func (a CurrencyAmount) decimalScale() *big.Int {
	return pow10(int(a.currency.Decimals))
}

func (a CurrencyAmount) Add(other CurrencyAmount) (CurrencyAmount, error) {
	if !a.currency.Equals(other.currency) {
		return CurrencyAmount{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, a.currency, other.currency)
	}
	return FromRawAmount(a.currency, new(big.Int).Add(a.Quotient(), other.Quotient()))
}

func (a CurrencyAmount) Subtract(other CurrencyAmount) (CurrencyAmount, error) {
	if !a.currency.Equals(other.currency) {
		return CurrencyAmount{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, a.currency, other.currency)
	}
	return FromRawAmount(a.currency, new(big.Int).Sub(a.Quotient(), other.Quotient()))
}

// ToExact renders the full-precision human amount.
func (a CurrencyAmount) ToExact() string {
	return decimal.NewFromBigInt(a.Quotient(), -int32(a.currency.Decimals)).String()
}

// ToSignificant renders the human amount with at most significantDigits figures.
func (a CurrencyAmount) ToSignificant(significantDigits int, rounding Rounding, opts ...FormatOption) (string, error) {
	return Fraction{numerator: a.Quotient(), denominator: a.decimalScale()}.ToSignificant(significantDigits, rounding, opts...)
}

// ToFixed renders the human amount. decimalPlaces may not exceed the token's
// decimals.
func (a CurrencyAmount) ToFixed(decimalPlaces int, rounding Rounding, opts ...FormatOption) (string, error) {
	if decimalPlaces > int(a.currency.Decimals) {
		return "", fmt.Errorf("%w: %d exceeds %d token decimals", ErrInvalidDecimalPlaces, decimalPlaces, a.currency.Decimals)
	}
	return Fraction{numerator: a.Quotient(), denominator: a.decimalScale()}.ToFixed(decimalPlaces, rounding, opts...)
}

func (a CurrencyAmount) String() string {
	return a.ToExact() + " " + a.currency.String()
}

var decimalInput = regexp.MustCompile(`^\d*\.?\d+$`)

// TryParseCurrencyAmount parses a human decimal string such as "1.25" into a
// raw amount of token. It reports false for malformed, exponent, negative or
// zero input and for input with more fraction digits than the token carries.
func TryParseCurrencyAmount(value string, token tokenregistry.Token) (CurrencyAmount, bool) {
	if !decimalInput.MatchString(value) {
		return CurrencyAmount{}, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return CurrencyAmount{}, false
	}
	scaled := d.Shift(int32(token.Decimals))
	if !scaled.IsInteger() || scaled.Sign() <= 0 {
		return CurrencyAmount{}, false
	}
	amount, err := FromRawAmount(token, scaled.BigInt())
	if err != nil {
		return CurrencyAmount{}, false
	}
	return amount, true
}
