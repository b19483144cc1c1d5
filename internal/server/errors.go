package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/export"
	"github.com/smallbiznis/atelier/internal/money"
	notificationdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/payment/checkout"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	publicinvoicedomain "github.com/smallbiznis/atelier/internal/publicinvoice/domain"
	"github.com/smallbiznis/atelier/internal/quota"
	"github.com/smallbiznis/atelier/internal/secret"
	seqdomain "github.com/smallbiznis/atelier/internal/sequence/domain"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type            string            `json:"type"`
	Message         string            `json:"message"`
	Errors          []ValidationError `json:"errors,omitempty"`
	UpgradeRequired bool              `json:"upgrade_required,omitempty"`
	CurrentPlan     string            `json:"current_plan,omitempty"`
	Retryable       bool              `json:"retryable,omitempty"`
}

type errorResponse struct {
	Error       errorPayload `json:"error"`
	AlreadyPaid bool         `json:"already_paid,omitempty"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrBodyTooLarge   = errors.New("payload_too_large")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, resp := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, resp)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, internalError()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "invalid_request",
			Message: "validation error",
			Errors:  vErr.Errors,
		}}
	}

	var lineErr *money.LineError
	if errors.As(err, &lineErr) {
		code := lineErr.Err.Error()
		return http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "invalid_request",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   fmt.Sprintf("lines[%d].%s", lineErr.Index, validationErrorField(code)),
				Code:    code,
				Message: "invalid value",
			}},
		}}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "invalid_request",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   validationErrorField(code),
				Code:    code,
				Message: "invalid value",
			}},
		}}
	}

	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		return http.StatusPaymentRequired, errorResponse{Error: errorPayload{
			Type:            "quota_exceeded",
			Message:         fmt.Sprintf("the %s plan allows %d %s", exceeded.Plan, exceeded.Limit, exceeded.Resource),
			UpgradeRequired: exceeded.UpgradeRequired(),
			CurrentPlan:     exceeded.Plan,
		}}
	}
	var featureErr *export.FeatureError
	if errors.As(err, &featureErr) {
		return http.StatusPaymentRequired, errorResponse{Error: errorPayload{
			Type:            "feature_unavailable",
			Message:         fmt.Sprintf("%s is not included in the %s plan", featureErr.Feature, featureErr.Plan),
			UpgradeRequired: featureErr.UpgradeRequired(),
			CurrentPlan:     featureErr.Plan,
		}}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, simple("unauthorized", "unauthorized")
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, simple("forbidden", "forbidden")
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, simple("invalid_signature", "invalid signature")
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, simple("payload_too_large", hintOr(err, "request body is too large"))
	case errors.Is(err, checkout.ErrInvoiceAlreadyPaid),
		errors.Is(err, publicinvoicedomain.ErrInvoiceAlreadyPaid):
		resp := simple("invoice_already_paid", "this invoice has already been paid")
		resp.AlreadyPaid = true
		return http.StatusConflict, resp
	case errors.Is(err, documentdomain.ErrInvalidTransition),
		errors.Is(err, documentdomain.ErrNotEditable),
		errors.Is(err, documentdomain.ErrQuoteNotAccepted),
		errors.Is(err, documentdomain.ErrQuoteAlreadyConverted),
		errors.Is(err, checkout.ErrInvoiceNotPayable),
		errors.Is(err, seqdomain.ErrSequenceRewind):
		return http.StatusConflict, simple("invalid_transition", codeOf(err))
	case isNotFoundError(err):
		return http.StatusNotFound, simple("not_found", "not found")
	case checkout.IsConfiguration(err), errors.Is(err, secret.ErrMissingKey):
		return http.StatusUnprocessableEntity, simple("configuration_error", hintOr(err, "payment configuration is incomplete"))
	case checkout.IsRetryable(err):
		resp := simple("payment_provider_timeout", hintOr(err, "the payment provider did not answer in time"))
		resp.Error.Retryable = true
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, checkout.ErrProviderError):
		return http.StatusBadGateway, simple("payment_provider_error", hintOr(err, "the payment provider rejected the request"))
	default:
		return http.StatusInternalServerError, internalError()
	}
}

func simple(kind, message string) errorResponse {
	return errorResponse{Error: errorPayload{Type: kind, Message: message}}
}

func internalError() errorResponse {
	return simple("internal_error", "internal server error")
}

// hintOr returns the first user-facing hint attached to err.
func hintOr(err error, fallback string) string {
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return fallback
}

// codeOf returns the sentinel code at the root of err.
func codeOf(err error) string {
	return errors.Cause(err).Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	ErrInvalidRequest,
	money.ErrInvalidLines,
	money.ErrInvalidDescription,
	money.ErrInvalidQuantity,
	money.ErrInvalidUnitPrice,
	money.ErrInvalidVATRate,
	documentdomain.ErrInvalidStatus,
	documentdomain.ErrInvalidClient,
	documentdomain.ErrClientNotFound,
	documentdomain.ErrInvalidDates,
	documentdomain.ErrInvalidSignedBy,
	seqdomain.ErrInvalidDocType,
	seqdomain.ErrInvalidPrefix,
	seqdomain.ErrInvalidSuffix,
	seqdomain.ErrInvalidPadding,
	orgdomain.ErrInvalidName,
	orgdomain.ErrInvalidUser,
	orgdomain.ErrInvalidPlan,
	orgdomain.ErrInvalidCommissionRate,
	orgdomain.ErrInvalidSecretKey,
	orgdomain.ErrInvalidPublishableKey,
	orgdomain.ErrInvalidAccountID,
	notificationdomain.ErrInvalidKind,
	notificationdomain.ErrInvalidUser,
	pagination.ErrInvalidPageToken,
	export.ErrInvalidPeriod,
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, documentdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, publicinvoicedomain.ErrInvoiceUnavailable),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "invalid_request"
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "client_not_found":
		return "client_id"
	case "invalid_client":
		return "client_id"
	}
	return strings.TrimPrefix(code, "invalid_")
}

// classifyErrorForLog feeds the request logger the same taxonomy clients see.
func classifyErrorForLog(err error) (string, string) {
	_, resp := mapError(err)
	return resp.Error.Type, codeOf(err)
}
