// Package webhook reconciles Stripe Connect webhook deliveries with invoices,
// payments and organizations.
package webhook

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/money"
	notificationdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	outcomeProcessed  = "processed"
	outcomeDuplicate  = "duplicate"
	outcomeIgnored    = "ignored"
	outcomeUnresolved = "unresolved"
	outcomeFailed     = "failed"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Clock     clock.Clock
	GenID     *snowflake.Node
	Payments  paymentdomain.Repository
	Documents documentdomain.Repository
	Orgs      orgdomain.Repository
	Notifier  notificationdomain.Notifier `optional:"true"`
	Metrics   *metrics.Metrics             `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	secret    string
	clock     clock.Clock
	genID     *snowflake.Node
	payments  paymentdomain.Repository
	documents documentdomain.Repository
	orgs      orgdomain.Repository
	notifier  notificationdomain.Notifier
	metrics   *metrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.webhook"),
		secret:    strings.TrimSpace(p.Cfg.Stripe.ConnectWebhookSecret),
		clock:     p.Clock,
		genID:     p.GenID,
		payments:  p.Payments,
		documents: p.Documents,
		orgs:      p.Orgs,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

// Handle verifies, records and applies one delivery. A nil error means the
// event was applied now, earlier, or deliberately ignored.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) error {
	if s.secret == "" || strings.TrimSpace(signature) == "" {
		return paymentdomain.ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.log.Debug("webhook signature rejected", zap.Error(err))
		return paymentdomain.ErrInvalidSignature
	}
	eventType := string(event.Type)

	ledger, fresh, err := s.record(ctx, event, payload)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, eventType, outcomeFailed)
		return err
	}
	if !fresh {
		s.metrics.RecordWebhookEvent(ctx, eventType, outcomeDuplicate)
		s.log.Info("webhook event already processed",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
		)
		return nil
	}

	decoded, err := Decode(event)
	if err != nil {
		// The ledger row stays unprocessed, so the provider's retry decodes again.
		s.metrics.RecordWebhookEvent(ctx, eventType, outcomeFailed)
		s.log.Error("webhook event undecodable",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return err
	}

	outcome, err := s.dispatch(ctx, decoded)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, eventType, outcomeFailed)
		s.log.Error("webhook event failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return err
	}

	if err := s.payments.MarkProcessed(ctx, s.db, ledger.ID, s.clock.Now()); err != nil {
		s.metrics.RecordWebhookEvent(ctx, eventType, outcomeFailed)
		return err
	}
	s.metrics.RecordWebhookEvent(ctx, eventType, outcome)
	s.log.Info("webhook event handled",
		zap.String("event_id", event.ID),
		zap.String("event_type", eventType),
		zap.String("outcome", outcome),
	)
	return nil
}

// record inserts the ledger row. fresh is false when the event was already
// processed by an earlier delivery.
func (s *Service) record(ctx context.Context, event stripego.Event, payload []byte) (*paymentdomain.WebhookEvent, bool, error) {
	row := paymentdomain.WebhookEvent{
		ID:              s.genID.Generate(),
		Provider:        paymentdomain.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}
	if event.Account != "" {
		account := event.Account
		row.AccountID = &account
	}

	inserted, err := s.payments.InsertEvent(ctx, s.db, row)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return &row, true, nil
	}

	existing, err := s.payments.FindEvent(ctx, s.db, paymentdomain.ProviderStripe, event.ID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.Newf("webhook event %s vanished from ledger", event.ID)
	}
	return existing, existing.ProcessedAt == nil, nil
}

func (s *Service) dispatch(ctx context.Context, event Event) (string, error) {
	switch e := event.(type) {
	case CheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, e)
	case ChargeRefunded:
		return s.handleChargeRefunded(ctx, e)
	case AccountUpdated:
		return s.handleAccountUpdated(ctx, e)
	case DisputeCreated:
		return s.handleDisputeCreated(ctx, e)
	case PayoutPaid:
		return s.notifyAccount(ctx, e.AccountID, notificationdomain.Message{
			Kind:  notificationdomain.KindPayoutPaid,
			Title: "Payout sent",
			Body:  "A payout of " + formatAmount(e.Amount, e.Currency) + " is on its way to your bank account.",
			Data:  map[string]any{"payout_id": e.PayoutID, "amount": e.Amount, "currency": e.Currency},
		})
	case PayoutFailed:
		body := "A payout of " + formatAmount(e.Amount, e.Currency) + " failed."
		if e.FailureMessage != "" {
			body += " " + e.FailureMessage
		}
		return s.notifyAccount(ctx, e.AccountID, notificationdomain.Message{
			Kind:  notificationdomain.KindPayoutFailed,
			Title: "Payout failed",
			Body:  body,
			Data:  map[string]any{"payout_id": e.PayoutID, "amount": e.Amount, "currency": e.Currency},
		})
	default:
		return outcomeIgnored, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, e CheckoutCompleted) (string, error) {
	if e.Mode != string(stripego.CheckoutSessionModePayment) {
		return outcomeIgnored, nil
	}
	switch e.PaymentStatus {
	case string(stripego.CheckoutSessionPaymentStatusPaid), string(stripego.CheckoutSessionPaymentStatusNoPaymentRequired):
	default:
		return outcomeIgnored, nil
	}

	orgID, errOrg := snowflake.ParseString(e.OrganizationID)
	invoiceID, errInv := snowflake.ParseString(e.InvoiceID)
	if errOrg != nil || errInv != nil {
		s.log.Warn("checkout session without invoice metadata", zap.String("session_id", e.SessionID))
		return outcomeUnresolved, nil
	}

	invoice, err := s.documents.FindInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil || invoice.OrgID != orgID {
		s.log.Warn("checkout session for unknown invoice",
			zap.String("session_id", e.SessionID),
			zap.String("org_id", e.OrganizationID),
			zap.String("invoice_id", e.InvoiceID),
		)
		return outcomeUnresolved, nil
	}

	existing, err := s.payments.FindPaymentByReference(ctx, s.db, e.SessionID)
	if err != nil {
		return "", err
	}
	if existing != nil || invoice.Status == documentdomain.StatusPaid {
		return outcomeDuplicate, nil
	}

	now := s.clock.Now()
	payment := paymentdomain.Payment{
		ID:        s.genID.Generate(),
		OrgID:     invoice.OrgID,
		InvoiceID: invoice.ID,
		Amount:    e.AmountTotal,
		Currency:  e.Currency,
		Method:    paymentdomain.MethodCard,
		Reference: e.SessionID,
		PaidAt:    now,
		CreatedAt: now,
	}
	if payment.Currency == "" {
		payment.Currency = invoice.Currency
	}
	if e.PaymentIntentID != "" {
		intent := e.PaymentIntentID
		payment.PaymentIntentID = &intent
	}

	var markedPaid, duplicate bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.payments.InsertPayment(ctx, tx, payment)
		if err != nil {
			return err
		}
		if !inserted {
			duplicate = true
			return nil
		}
		markedPaid, err = s.settle(ctx, tx, invoice, now)
		return err
	})
	if err != nil {
		return "", err
	}
	if duplicate {
		return outcomeDuplicate, nil
	}

	if !markedPaid {
		s.log.Warn("payment recorded without status change",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("status", string(invoice.Status)),
			zap.String("session_id", e.SessionID),
		)
		status := string(invoice.Status)
		if !invoice.Lifecycle().Active() {
			status = "deleted"
		}
		s.notifyUser(ctx, invoice.OrgID, invoice.CreatedBy, notificationdomain.Message{
			Kind:  notificationdomain.KindPaymentOnClosed,
			Title: "Payment received on a closed invoice",
			Body: "Invoice " + invoice.Number + " (" + status + ") received an online payment of " +
				formatAmount(payment.Amount, payment.Currency) + ". Refund it from Stripe if it is not due.",
			Data: map[string]any{
				"invoice_id": invoice.ID.String(),
				"payment_id": payment.ID.String(),
				"session_id": e.SessionID,
				"amount":     payment.Amount,
				"status":     status,
			},
		})
		return outcomeProcessed, nil
	}

	s.notifyUser(ctx, invoice.OrgID, invoice.CreatedBy, notificationdomain.Message{
		Kind:  notificationdomain.KindInvoicePaid,
		Title: "Invoice paid",
		Body:  "Invoice " + invoice.Number + " was paid online (" + formatAmount(payment.Amount, payment.Currency) + ").",
		Data:  map[string]any{"invoice_id": invoice.ID.String(), "payment_id": payment.ID.String(), "amount": payment.Amount},
	})
	return outcomeProcessed, nil
}

// settle moves the invoice to paid. A draft goes through sent first.
// Cancelled and refunded invoices keep their status.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, invoice *documentdomain.Invoice, at time.Time) (bool, error) {
	if !invoice.Lifecycle().Active() {
		return false, nil
	}

	from := invoice.Status
	switch from {
	case documentdomain.StatusDraft:
		ok, err := s.documents.Transition(ctx, tx, documentdomain.TransitionUpdate{
			DocType: documentdomain.DocTypeInvoice,
			OrgID:   invoice.OrgID,
			ID:      invoice.ID,
			From:    documentdomain.StatusDraft,
			To:      documentdomain.StatusSent,
			At:      at,
		})
		if err != nil || !ok {
			return false, err
		}
		from = documentdomain.StatusSent
	case documentdomain.StatusSent, documentdomain.StatusOverdue:
	default:
		return false, nil
	}

	return s.documents.Transition(ctx, tx, documentdomain.TransitionUpdate{
		DocType: documentdomain.DocTypeInvoice,
		OrgID:   invoice.OrgID,
		ID:      invoice.ID,
		From:    from,
		To:      documentdomain.StatusPaid,
		At:      at,
	})
}

func (s *Service) handleChargeRefunded(ctx context.Context, e ChargeRefunded) (string, error) {
	if e.PaymentIntentID == "" {
		return outcomeIgnored, nil
	}
	payment, err := s.payments.FindPaymentByIntent(ctx, s.db, e.PaymentIntentID)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return outcomeUnresolved, nil
	}

	header, err := s.documents.FindHeader(ctx, s.db, documentdomain.DocTypeInvoice, payment.OrgID, payment.InvoiceID)
	if err != nil {
		return "", err
	}
	if header == nil {
		return outcomeUnresolved, nil
	}

	ok, err := s.documents.Transition(ctx, s.db, documentdomain.TransitionUpdate{
		DocType: documentdomain.DocTypeInvoice,
		OrgID:   payment.OrgID,
		ID:      payment.InvoiceID,
		From:    documentdomain.StatusPaid,
		To:      documentdomain.StatusRefunded,
		At:      s.clock.Now(),
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return outcomeDuplicate, nil
	}

	s.notifyUser(ctx, header.OrgID, header.CreatedBy, notificationdomain.Message{
		Kind:  notificationdomain.KindInvoiceRefunded,
		Title: "Invoice refunded",
		Body:  "Invoice " + header.Number + " was refunded (" + formatAmount(e.AmountRefunded, e.Currency) + ").",
		Data:  map[string]any{"invoice_id": header.ID.String(), "amount": e.AmountRefunded},
	})
	return outcomeProcessed, nil
}

func (s *Service) handleAccountUpdated(ctx context.Context, e AccountUpdated) (string, error) {
	if e.AccountID == "" {
		return outcomeIgnored, nil
	}
	org, err := s.orgs.FindByStripeAccountID(ctx, e.AccountID)
	if err != nil {
		return "", err
	}
	if org == nil {
		s.log.Warn("account update for unknown connect account", zap.String("account_id", e.AccountID))
		return outcomeUnresolved, nil
	}
	if err := s.orgs.UpdateChargesEnabled(ctx, org.ID, e.ChargesEnabled, s.clock.Now()); err != nil {
		return "", err
	}
	if !e.ChargesEnabled {
		s.notifyMembers(ctx, org.ID, notificationdomain.Message{
			Kind:  notificationdomain.KindStripeAccountIssue,
			Title: "Stripe account needs attention",
			Body:  "Stripe disabled charges on your connected account. Online payments are paused until it is resolved.",
			Data:  map[string]any{"account_id": e.AccountID},
		})
	}
	return outcomeProcessed, nil
}

func (s *Service) handleDisputeCreated(ctx context.Context, e DisputeCreated) (string, error) {
	var orgID snowflake.ID
	if e.AccountID != "" {
		org, err := s.orgs.FindByStripeAccountID(ctx, e.AccountID)
		if err != nil {
			return "", err
		}
		if org != nil {
			orgID = org.ID
		}
	}
	if orgID == 0 && e.PaymentIntentID != "" {
		payment, err := s.payments.FindPaymentByIntent(ctx, s.db, e.PaymentIntentID)
		if err != nil {
			return "", err
		}
		if payment != nil {
			orgID = payment.OrgID
		}
	}
	if orgID == 0 {
		s.log.Warn("dispute for unknown organization", zap.String("dispute_id", e.DisputeID))
		return outcomeUnresolved, nil
	}

	s.notifyMembers(ctx, orgID, notificationdomain.Message{
		Kind:  notificationdomain.KindDisputeCreated,
		Title: "Payment disputed",
		Body:  "A customer disputed a payment of " + formatAmount(e.Amount, e.Currency) + ".",
		Data:  map[string]any{"dispute_id": e.DisputeID, "amount": e.Amount, "reason": e.Reason},
	})
	return outcomeProcessed, nil
}

func (s *Service) notifyAccount(ctx context.Context, accountID string, msg notificationdomain.Message) (string, error) {
	if accountID == "" {
		return outcomeIgnored, nil
	}
	org, err := s.orgs.FindByStripeAccountID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if org == nil {
		return outcomeUnresolved, nil
	}
	s.notifyMembers(ctx, org.ID, msg)
	return outcomeProcessed, nil
}

func (s *Service) notifyUser(ctx context.Context, orgID, userID snowflake.ID, msg notificationdomain.Message) {
	if s.notifier == nil || userID == 0 {
		return
	}
	if err := s.notifier.NotifyUser(ctx, orgID, userID, msg); err != nil {
		s.log.Warn("notification failed",
			zap.String("org_id", orgID.String()),
			zap.String("kind", msg.Kind),
			zap.Error(err),
		)
	}
}

func (s *Service) notifyMembers(ctx context.Context, orgID snowflake.ID, msg notificationdomain.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyMembers(ctx, orgID, msg); err != nil {
		s.log.Warn("member notification failed",
			zap.String("org_id", orgID.String()),
			zap.String("kind", msg.Kind),
			zap.Error(err),
		)
	}
}

func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = documentdomain.DefaultCurrency
	}
	return money.Format(cents, ",") + " " + currency
}
