// Package checkout opens Stripe Checkout sessions for payable invoices.
//
// Free-plan organizations with a commission are charged on the platform
// account as destination charges to their Connect account, with the
// commission taken as an application fee. Everyone else charges on their own
// Stripe account with their own secret key.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/atelier/internal/config"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/money"
	"github.com/smallbiznis/atelier/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/payment/stripe"
	"github.com/smallbiznis/atelier/internal/secret"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	RoutePlatform = "platform"
	RouteDirect   = "direct"
)

const defaultTimeout = 12 * time.Second

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Documents documentdomain.Repository
	Orgs      orgdomain.Repository
	Cipher    *secret.Cipher `optional:"true"`
	Sessions  stripe.SessionCreator
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.StripeConfig
	documents documentdomain.Repository
	orgs      orgdomain.Repository
	cipher    *secret.Cipher
	sessions  stripe.SessionCreator
	metrics   *metrics.Metrics
}

func NewService(p Params) *Service {
	cfg := p.Cfg.Stripe
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.checkout"),
		cfg:       cfg,
		documents: p.Documents,
		orgs:      p.Orgs,
		cipher:    p.Cipher,
		sessions:  p.Sessions,
		metrics:   p.Metrics,
	}
}

type Session struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// CreateSession opens a hosted payment page for the invoice.
func (s *Service) CreateSession(ctx context.Context, invoiceID snowflake.ID) (*Session, error) {
	invoice, err := s.documents.FindInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil || !invoice.Lifecycle().Active() {
		return nil, documentdomain.ErrNotFound
	}
	switch invoice.Status {
	case documentdomain.StatusPaid:
		return nil, ErrInvoiceAlreadyPaid
	case documentdomain.StatusSent, documentdomain.StatusOverdue:
	default:
		return nil, ErrInvoiceNotPayable
	}

	org, err := s.orgs.FindByID(ctx, invoice.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, orgdomain.ErrNotFound
	}

	params := stripe.SessionParams{
		InvoiceID:      invoice.ID.String(),
		OrganizationID: org.ID.String(),
		Description:    "Invoice " + invoice.Number,
		Amount:         invoice.Total,
		Currency:       invoice.Currency,
		SuccessURL:     expandURL(s.cfg.SuccessURL, invoice.ID),
		CancelURL:      expandURL(s.cfg.CancelURL, invoice.ID),
	}

	route := RouteDirect
	var secretKey string
	if org.RoutesThroughPlatform() {
		route = RoutePlatform
		if org.ConnectAccountID() == "" {
			s.metrics.RecordCheckoutSession(ctx, route, "connect_missing")
			return nil, errors.WithHint(ErrConnectAccountRequired, "link your Stripe Connect account")
		}
		if s.cfg.PlatformSecretKey == "" {
			s.metrics.RecordCheckoutSession(ctx, route, "not_configured")
			return nil, errors.WithHint(ErrStripeNotConfigured, "the platform Stripe account is not configured")
		}
		secretKey = s.cfg.PlatformSecretKey
		params.ApplicationFee = money.ApplyRate(invoice.Total, org.CommissionRate)
		params.Destination = org.ConnectAccountID()
	} else {
		secretKey, err = s.organizationKey(org)
		if err != nil {
			s.metrics.RecordCheckoutSession(ctx, route, "not_configured")
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	session, err := s.sessions.CreateCheckoutSession(callCtx, secretKey, params)
	if err != nil {
		return nil, s.providerError(ctx, callCtx, route, invoice.ID, err)
	}

	s.metrics.RecordCheckoutSession(ctx, route, "created")
	s.log.Info("checkout session created",
		zap.String("org_id", org.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("session_id", session.ID),
		zap.String("route", route),
		zap.Int64("application_fee", params.ApplicationFee),
	)
	return &Session{URL: session.URL, SessionID: session.ID}, nil
}

func (s *Service) organizationKey(org *orgdomain.Organization) (string, error) {
	if !org.HasOwnStripeKey() {
		return "", errors.WithHint(ErrStripeNotConfigured, "add your Stripe secret key in the organization settings")
	}
	if s.cipher == nil {
		return "", errors.WithHint(ErrStripeNotConfigured, "credential encryption is not configured")
	}
	key, err := s.cipher.Decrypt(*org.StripeSecretKeyEnc)
	if err != nil {
		s.log.Warn("stored stripe key unreadable", zap.String("org_id", org.ID.String()))
		return "", errors.WithHint(ErrStripeNotConfigured, "re-enter your Stripe secret key in the organization settings")
	}
	return key, nil
}

func (s *Service) providerError(ctx, callCtx context.Context, route string, invoiceID snowflake.ID, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		s.metrics.RecordCheckoutSession(ctx, route, "timeout")
		s.log.Warn("checkout session timed out",
			zap.String("invoice_id", invoiceID.String()),
			zap.Duration("timeout", s.cfg.Timeout),
		)
		return errors.Mark(errors.WithHint(ErrProviderTimeout, "the payment provider did not answer in time, please retry"), errRetryable)
	}

	s.metrics.RecordCheckoutSession(ctx, route, "provider_error")
	s.log.Error("checkout session failed",
		zap.String("invoice_id", invoiceID.String()),
		zap.Error(err),
	)
	if msg, ok := stripe.UserMessage(err); ok {
		return errors.WithHint(ErrProviderError, msg)
	}
	return ErrProviderError
}

func expandURL(template string, invoiceID snowflake.ID) string {
	return strings.ReplaceAll(template, "{invoice_id}", invoiceID.String())
}
