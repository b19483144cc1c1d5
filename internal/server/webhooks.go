package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	headerStripeSignature = "Stripe-Signature"
	maxWebhookBodyBytes   = 1 << 16
)

// HandleConnectWebhook acknowledges every delivery the reconciler accepted,
// including duplicates and ignored event types.
func (s *Server) HandleConnectWebhook(c *gin.Context) {
	signature := strings.TrimSpace(c.GetHeader(headerStripeSignature))
	if signature == "" {
		AbortWithError(c, paymentdomain.ErrInvalidSignature)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.log.Warn("webhook body over limit", zap.Int64("limit", tooLarge.Limit))
			AbortWithError(c, errors.WithHint(ErrBodyTooLarge, fmt.Sprintf("webhook body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhookSvc.Handle(c.Request.Context(), payload, signature); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
