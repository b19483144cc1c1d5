package webhook

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v82"
)

const (
	typeCheckoutCompleted = "checkout.session.completed"
	typeChargeRefunded    = "charge.refunded"
	typeAccountUpdated    = "account.updated"
	typeDisputeCreated    = "charge.dispute.created"
	typePayoutPaid        = "payout.paid"
	typePayoutFailed      = "payout.failed"
)

// Event is one decoded provider notification. The concrete type is one of
// the variants below, Ignored included.
type Event interface {
	eventType() string
}

type CheckoutCompleted struct {
	SessionID       string
	PaymentIntentID string
	Mode            string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	OrganizationID  string
	InvoiceID       string
}

type ChargeRefunded struct {
	ChargeID        string
	PaymentIntentID string
	AmountRefunded  int64
	Currency        string
}

type AccountUpdated struct {
	AccountID      string
	ChargesEnabled bool
}

type DisputeCreated struct {
	AccountID       string
	DisputeID       string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Reason          string
}

type PayoutPaid struct {
	AccountID string
	PayoutID  string
	Amount    int64
	Currency  string
}

type PayoutFailed struct {
	AccountID      string
	PayoutID       string
	Amount         int64
	Currency       string
	FailureMessage string
}

// Ignored is any event type the reconciler does not act on.
type Ignored struct {
	Type string
}

func (CheckoutCompleted) eventType() string { return typeCheckoutCompleted }
func (ChargeRefunded) eventType() string    { return typeChargeRefunded }
func (AccountUpdated) eventType() string    { return typeAccountUpdated }
func (DisputeCreated) eventType() string    { return typeDisputeCreated }
func (PayoutPaid) eventType() string        { return typePayoutPaid }
func (PayoutFailed) eventType() string      { return typePayoutFailed }
func (e Ignored) eventType() string         { return e.Type }

// Decode maps a verified Stripe event onto its variant.
func Decode(event stripego.Event) (Event, error) {
	eventType := string(event.Type)
	if event.Data == nil {
		return nil, errors.Wrap(paymentdomain.ErrInvalidPayload, "event has no data")
	}
	raw := event.Data.Raw

	switch eventType {
	case typeCheckoutCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode checkout session"), paymentdomain.ErrInvalidPayload)
		}
		out := CheckoutCompleted{
			SessionID:      session.ID,
			Mode:           string(session.Mode),
			PaymentStatus:  string(session.PaymentStatus),
			AmountTotal:    session.AmountTotal,
			Currency:       strings.ToUpper(string(session.Currency)),
			OrganizationID: session.Metadata["organizationId"],
			InvoiceID:      session.Metadata["invoiceId"],
		}
		if session.PaymentIntent != nil {
			out.PaymentIntentID = session.PaymentIntent.ID
		}
		return out, nil

	case typeChargeRefunded:
		var charge stripego.Charge
		if err := json.Unmarshal(raw, &charge); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode charge"), paymentdomain.ErrInvalidPayload)
		}
		out := ChargeRefunded{
			ChargeID:       charge.ID,
			AmountRefunded: charge.AmountRefunded,
			Currency:       strings.ToUpper(string(charge.Currency)),
		}
		if charge.PaymentIntent != nil {
			out.PaymentIntentID = charge.PaymentIntent.ID
		}
		return out, nil

	case typeAccountUpdated:
		var account stripego.Account
		if err := json.Unmarshal(raw, &account); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode account"), paymentdomain.ErrInvalidPayload)
		}
		accountID := account.ID
		if accountID == "" {
			accountID = event.Account
		}
		return AccountUpdated{AccountID: accountID, ChargesEnabled: account.ChargesEnabled}, nil

	case typeDisputeCreated:
		var dispute stripego.Dispute
		if err := json.Unmarshal(raw, &dispute); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode dispute"), paymentdomain.ErrInvalidPayload)
		}
		out := DisputeCreated{
			AccountID: event.Account,
			DisputeID: dispute.ID,
			Amount:    dispute.Amount,
			Currency:  strings.ToUpper(string(dispute.Currency)),
			Reason:    string(dispute.Reason),
		}
		if dispute.PaymentIntent != nil {
			out.PaymentIntentID = dispute.PaymentIntent.ID
		}
		return out, nil

	case typePayoutPaid, typePayoutFailed:
		var payout stripego.Payout
		if err := json.Unmarshal(raw, &payout); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode payout"), paymentdomain.ErrInvalidPayload)
		}
		currency := strings.ToUpper(string(payout.Currency))
		if eventType == typePayoutPaid {
			return PayoutPaid{AccountID: event.Account, PayoutID: payout.ID, Amount: payout.Amount, Currency: currency}, nil
		}
		return PayoutFailed{
			AccountID:      event.Account,
			PayoutID:       payout.ID,
			Amount:         payout.Amount,
			Currency:       currency,
			FailureMessage: payout.FailureMessage,
		}, nil
	}

	return Ignored{Type: eventType}, nil
}
