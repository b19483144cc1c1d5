package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectWebhookAcknowledgesHandledEvent(t *testing.T) {
	reconciler := &fakeWebhookReconciler{}
	s := newTestServer(t, func(s *Server) { s.webhookSvc = reconciler })

	rec := perform(s, http.MethodPost, "/webhooks/connect", `{"id":"evt_1"}`, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, `{"id":"evt_1"}`, string(reconciler.payload))
	assert.Equal(t, "t=1,v1=abc", reconciler.signature)
}

func TestConnectWebhookRejectsMissingSignature(t *testing.T) {
	reconciler := &fakeWebhookReconciler{}
	s := newTestServer(t, func(s *Server) { s.webhookSvc = reconciler })

	rec := perform(s, http.MethodPost, "/webhooks/connect", `{}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, reconciler.payload)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_signature", body.Error.Type)
}

func TestConnectWebhookRejectsInvalidSignature(t *testing.T) {
	s := newTestServer(t, func(s *Server) {
		s.webhookSvc = &fakeWebhookReconciler{err: paymentdomain.ErrInvalidSignature}
	})

	rec := perform(s, http.MethodPost, "/webhooks/connect", `{}`, map[string]string{
		"Stripe-Signature": "t=1,v1=bad",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectWebhookSurfacesInternalFailure(t *testing.T) {
	s := newTestServer(t, func(s *Server) {
		s.webhookSvc = &fakeWebhookReconciler{err: errors.New("database is locked")}
	})

	rec := perform(s, http.MethodPost, "/webhooks/connect", `{}`, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database is locked")
}

func TestConnectWebhookRejectsOversizedBody(t *testing.T) {
	reconciler := &fakeWebhookReconciler{}
	s := newTestServer(t, func(s *Server) { s.webhookSvc = reconciler })

	body := `{"id":"evt_1","pad":"` + strings.Repeat("x", maxWebhookBodyBytes) + `"}`
	rec := perform(s, http.MethodPost, "/webhooks/connect", body, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, reconciler.payload)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "payload_too_large", resp.Error.Type)
}

func TestConnectWebhookAcceptsBodyAtLimit(t *testing.T) {
	reconciler := &fakeWebhookReconciler{}
	s := newTestServer(t, func(s *Server) { s.webhookSvc = reconciler })

	body := strings.Repeat(" ", maxWebhookBodyBytes)
	rec := perform(s, http.MethodPost, "/webhooks/connect", body, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, reconciler.payload, maxWebhookBodyBytes)
}

func TestConnectWebhookUndecodableEventIsRetried(t *testing.T) {
	s := newTestServer(t, func(s *Server) {
		s.webhookSvc = &fakeWebhookReconciler{
			err: errors.Mark(errors.New("decode charge: unexpected end of JSON input"), paymentdomain.ErrInvalidPayload),
		}
	})

	rec := perform(s, http.MethodPost, "/webhooks/connect", `{}`, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "unexpected end")
}
