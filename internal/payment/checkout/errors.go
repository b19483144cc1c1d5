package checkout

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrInvoiceAlreadyPaid     = errors.New("invoice_already_paid")
	ErrInvoiceNotPayable      = errors.New("invoice_not_payable")
	ErrConnectAccountRequired = errors.New("connect_account_required")
	ErrStripeNotConfigured    = errors.New("stripe_not_configured")
	ErrProviderTimeout        = errors.New("payment_provider_timeout")
	ErrProviderError          = errors.New("payment_provider_error")
)

// errRetryable marks failures the caller may retry unchanged.
var errRetryable = errors.New("retryable")

func IsRetryable(err error) bool {
	return errors.Is(err, errRetryable)
}

// IsConfiguration reports errors the organization fixes in its settings.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConnectAccountRequired) || errors.Is(err, ErrStripeNotConfigured)
}
