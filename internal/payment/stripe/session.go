// Package stripe wraps the Stripe API calls made during checkout.
package stripe

import (
	"context"
	"strings"

	stripego "github.com/stripe/stripe-go/v82"
)

// SessionParams describes one hosted payment page for an invoice.
type SessionParams struct {
	InvoiceID      string
	OrganizationID string
	Description    string
	Amount         int64
	Currency       string
	SuccessURL     string
	CancelURL      string

	// ApplicationFee and Destination are set together for platform-routed
	// charges; both zero for a charge on the organization's own account.
	ApplicationFee int64
	Destination    string
}

type Session struct {
	ID  string
	URL string
}

// SessionCreator opens a Checkout Session authenticated with secretKey.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, secretKey string, params SessionParams) (*Session, error)
}

type Client struct{}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, secretKey string, params SessionParams) (*Session, error) {
	sc := stripego.NewClient(secretKey, nil)

	metadata := map[string]string{
		"invoiceId":      params.InvoiceID,
		"organizationId": params.OrganizationID,
	}
	intentData := &stripego.CheckoutSessionCreatePaymentIntentDataParams{
		Metadata: metadata,
	}
	if params.Destination != "" {
		intentData.ApplicationFeeAmount = stripego.Int64(params.ApplicationFee)
		intentData.TransferData = &stripego.CheckoutSessionCreatePaymentIntentDataTransferDataParams{
			Destination: stripego.String(params.Destination),
		}
	}

	create := &stripego.CheckoutSessionCreateParams{
		Mode: stripego.String("payment"),
		LineItems: []*stripego.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripego.String(strings.ToLower(params.Currency)),
					ProductData: &stripego.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripego.String(params.Description),
					},
					UnitAmount: stripego.Int64(params.Amount),
				},
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL:        stripego.String(params.SuccessURL),
		CancelURL:         stripego.String(params.CancelURL),
		Metadata:          metadata,
		PaymentIntentData: intentData,
	}

	session, err := sc.V1CheckoutSessions.Create(ctx, create)
	if err != nil {
		return nil, err
	}
	return &Session{ID: session.ID, URL: session.URL}, nil
}

// UserMessage extracts the provider's user-facing message from a Stripe API
// error, if err is one.
func UserMessage(err error) (string, bool) {
	stripeErr, ok := asStripeError(err)
	if !ok || strings.TrimSpace(stripeErr.Msg) == "" {
		return "", false
	}
	return stripeErr.Msg, true
}
