package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders cents as units with two decimals using sep as the decimal
// separator, e.g. Format(123456, ",") == "1234,56".
func Format(cents int64, sep string) string {
	return strings.Replace(decimal.New(cents, -2).StringFixed(2), ".", sep, 1)
}
