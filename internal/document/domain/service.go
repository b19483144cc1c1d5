package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/money"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
)

type CreateInvoiceRequest struct {
	ClientID  snowflake.ID
	IssueDate *time.Time
	DueDate   *time.Time
	Notes     string
	Lines     []money.Line
}

type CreateQuoteRequest struct {
	ClientID   snowflake.ID
	IssueDate  *time.Time
	ValidUntil *time.Time
	Notes      string
	Lines      []money.Line
}

type ListRequest struct {
	pagination.Pagination
	Status Status `form:"status"`
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type ListQuotesResponse struct {
	pagination.PageInfo
	Quotes []Quote `json:"quotes"`
}

type Service interface {
	CreateInvoice(ctx context.Context, orgID, userID snowflake.ID, req CreateInvoiceRequest) (*Invoice, error)
	CreateQuote(ctx context.Context, orgID, userID snowflake.ID, req CreateQuoteRequest) (*Quote, error)
	ConvertQuote(ctx context.Context, orgID, userID, quoteID snowflake.ID) (*Invoice, error)

	GetInvoice(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	GetQuote(ctx context.Context, orgID, id snowflake.ID) (*Quote, error)
	ListInvoices(ctx context.Context, orgID snowflake.ID, req ListRequest) (ListInvoicesResponse, error)
	ListQuotes(ctx context.Context, orgID snowflake.ID, req ListRequest) (ListQuotesResponse, error)

	UpdateDraftLines(ctx context.Context, orgID snowflake.ID, docType DocType, id snowflake.ID, lines []money.Line) error
	TransitionInvoice(ctx context.Context, orgID, id snowflake.ID, to Status) (*Invoice, error)
	TransitionQuote(ctx context.Context, orgID, id snowflake.ID, to Status, signedBy string) (*Quote, error)
	MarkDelivered(ctx context.Context, orgID snowflake.ID, docType DocType, id snowflake.ID) error
	SoftDelete(ctx context.Context, orgID snowflake.ID, docType DocType, id snowflake.ID) error
}

var (
	ErrNotFound              = errors.New("document_not_found")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrNotEditable           = errors.New("document_not_editable")
	ErrInvalidClient         = errors.New("invalid_client")
	ErrClientNotFound        = errors.New("client_not_found")
	ErrInvalidDates          = errors.New("invalid_dates")
	ErrQuoteNotAccepted      = errors.New("quote_not_accepted")
	ErrQuoteAlreadyConverted = errors.New("quote_already_converted")
	ErrInvalidSignedBy       = errors.New("invalid_signed_by")
)
