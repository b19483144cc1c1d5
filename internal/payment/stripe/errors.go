package stripe

import (
	"errors"

	stripego "github.com/stripe/stripe-go/v82"
)

func asStripeError(err error) (*stripego.Error, bool) {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		return stripeErr, true
	}
	return nil, false
}
