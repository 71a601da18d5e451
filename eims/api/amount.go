package api

import (
	"bytes"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Amount is a monetary value written as a bare JSON number with two
// fraction digits.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(2)}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	d, err := parseNumber(b)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// Number is a bare JSON number written with its own precision, used for
// quantities, rates and exchange rates.
type Number struct {
	decimal.Decimal
}

func NewNumber(d decimal.Decimal) Number {
	return Number{Decimal: d}
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	d, err := parseNumber(b)
	if err != nil {
		return err
	}
	n.Decimal = d
	return nil
}

func parseNumber(b []byte) (decimal.Decimal, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return decimal.Zero, nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "unquote number")
		}
		if s == "" {
			return decimal.Zero, nil
		}
		b = []byte(s)
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse number %q", string(b))
	}
	return d, nil
}

// Code is a status code the registry sends either as a number or a string.
type Code int

func (c *Code) UnmarshalJSON(b []byte) error {
	d, err := parseNumber(b)
	if err != nil {
		// non numeric codes are treated as absent
		*c = 0
		return nil
	}
	*c = Code(d.IntPart())
	return nil
}
