// Package money computes document amounts in integer euro cents.
//
// Every line is rounded on its own: the line subtotal is round(qty * unit
// price) and the line VAT is round(line subtotal * rate / 100), both half-up.
// Document amounts are plain sums of rounded line amounts, so the VAT total is
// exactly the sum of the VAT shown on each line.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLines       = errors.New("invalid_lines")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidUnitPrice   = errors.New("invalid_unit_price")
	ErrInvalidVATRate     = errors.New("invalid_vat_rate")
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Line is one priced row before computation.
type Line struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   int64
	VATRate     decimal.Decimal
}

// LineAmounts are the computed cents of one line.
type LineAmounts struct {
	Subtotal  int64
	VATAmount int64
	Total     int64
}

// Totals holds document amounts plus per-line amounts in input order.
type Totals struct {
	Subtotal  int64
	VATAmount int64
	Total     int64
	Lines     []LineAmounts
}

// LineError locates a validation failure on a specific line.
type LineError struct {
	Index int
	Err   error
}

func (e *LineError) Error() string { return e.Err.Error() }
func (e *LineError) Unwrap() error { return e.Err }

// Validate rejects line sets the calculator must never see.
func Validate(lines []Line) error {
	if len(lines) == 0 {
		return ErrInvalidLines
	}
	for i, line := range lines {
		var err error
		switch {
		case strings.TrimSpace(line.Description) == "":
			err = ErrInvalidDescription
		case !line.Quantity.GreaterThan(zero):
			err = ErrInvalidQuantity
		case line.UnitPrice < 0:
			err = ErrInvalidUnitPrice
		case line.VATRate.LessThan(zero) || line.VATRate.GreaterThan(hundred):
			err = ErrInvalidVATRate
		}
		if err != nil {
			return &LineError{Index: i, Err: err}
		}
	}
	return nil
}

// Calculate computes line and document amounts. Inputs are expected to have
// passed Validate.
func Calculate(lines []Line) Totals {
	totals := Totals{Lines: make([]LineAmounts, 0, len(lines))}
	for _, line := range lines {
		amounts := CalculateLine(line)
		totals.Subtotal += amounts.Subtotal
		totals.VATAmount += amounts.VATAmount
		totals.Total += amounts.Total
		totals.Lines = append(totals.Lines, amounts)
	}
	return totals
}

func CalculateLine(line Line) LineAmounts {
	subtotal := roundCents(line.Quantity.Mul(decimal.NewFromInt(line.UnitPrice)))
	vat := roundCents(decimal.NewFromInt(subtotal).Mul(line.VATRate).Div(hundred))
	return LineAmounts{
		Subtotal:  subtotal,
		VATAmount: vat,
		Total:     subtotal + vat,
	}
}

// ApplyRate returns round(amount * rate) for a fractional rate such as a
// 0.05 commission.
func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	return roundCents(decimal.NewFromInt(amount).Mul(rate))
}

// roundCents rounds half away from zero. Amounts here are non-negative, where
// that is half-up.
func roundCents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
