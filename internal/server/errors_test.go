package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/export"
	"github.com/smallbiznis/atelier/internal/money"
	"github.com/smallbiznis/atelier/internal/payment/checkout"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	publicinvoicedomain "github.com/smallbiznis/atelier/internal/publicinvoice/domain"
	"github.com/smallbiznis/atelier/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"line validation", &money.LineError{Index: 2, Err: money.ErrInvalidQuantity}, http.StatusBadRequest, "invalid_request"},
		{"quota", &quota.ExceededError{Resource: quota.ResourceInvoices, Plan: "free", Limit: 5, Used: 5}, http.StatusPaymentRequired, "quota_exceeded"},
		{"feature", &export.FeatureError{Feature: "fec_export", Plan: "free"}, http.StatusPaymentRequired, "feature_unavailable"},
		{"transition", errors.Wrap(documentdomain.ErrInvalidTransition, "draft -> paid"), http.StatusConflict, "invalid_transition"},
		{"not editable", documentdomain.ErrNotEditable, http.StatusConflict, "invalid_transition"},
		{"not found", documentdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"public unavailable", publicinvoicedomain.ErrInvoiceUnavailable, http.StatusNotFound, "not_found"},
		{"connect missing", errors.WithHint(checkout.ErrConnectAccountRequired, "connect your Stripe account"), http.StatusUnprocessableEntity, "configuration_error"},
		{"provider error", checkout.ErrProviderError, http.StatusBadGateway, "payment_provider_error"},
		{"undecodable webhook", errors.Mark(errors.New("decode charge"), paymentdomain.ErrInvalidPayload), http.StatusInternalServerError, "internal_error"},
		{"body too large", ErrBodyTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, resp.Error.Type)
		})
	}
}

func TestMapErrorLineFieldCode(t *testing.T) {
	_, resp := mapError(&money.LineError{Index: 1, Err: money.ErrInvalidVATRate})

	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "lines[1].vat_rate", resp.Error.Errors[0].Field)
	assert.Equal(t, "invalid_vat_rate", resp.Error.Errors[0].Code)
}

func TestMapErrorQuotaCarriesPlan(t *testing.T) {
	_, resp := mapError(&quota.ExceededError{Resource: quota.ResourceQuotes, Plan: "starter", Limit: 50, Used: 50})

	assert.True(t, resp.Error.UpgradeRequired)
	assert.Equal(t, "starter", resp.Error.CurrentPlan)
}

func TestMapErrorConfigurationUsesHint(t *testing.T) {
	_, resp := mapError(errors.WithHint(checkout.ErrStripeNotConfigured, "add your Stripe secret key in the organization settings"))

	assert.Equal(t, "add your Stripe secret key in the organization settings", resp.Error.Message)
}

func TestPublicInvoiceAlreadyPaid(t *testing.T) {
	s := newTestServer(t, func(s *Server) {
		s.publicInvoiceSvc = fakePublicInvoices{err: publicinvoicedomain.ErrInvoiceAlreadyPaid}
	})

	rec := perform(s, http.MethodGet, "/public/invoices/500", "", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["already_paid"])
}

func TestCheckoutSessionReturnsURL(t *testing.T) {
	s := newTestServer(t, func(s *Server) {
		s.checkoutSvc = &fakeCheckoutSessions{session: &checkout.Session{URL: "https://checkout.stripe.com/c/pay/cs_1", SessionID: "cs_1"}}
	})

	rec := perform(s, http.MethodPost, "/public/invoices/500/checkout-session", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.com/c/pay/cs_1"}`, rec.Body.String())
}

type fakePublicInvoices struct {
	invoice *publicinvoicedomain.PublicInvoice
	err     error
}

func (f fakePublicInvoices) GetInvoice(ctx context.Context, invoiceID snowflake.ID) (*publicinvoicedomain.PublicInvoice, error) {
	return f.invoice, f.err
}
