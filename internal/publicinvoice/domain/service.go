package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	GetInvoice(ctx context.Context, invoiceID snowflake.ID) (*PublicInvoice, error)
}

type PublicInvoiceLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   int64           `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"`
	Subtotal    int64           `json:"subtotal"`
	VATAmount   int64           `json:"vat_amount"`
	Total       int64           `json:"total"`
}

// PublicInvoice is the read-only snapshot shown on the hosted payment page.
type PublicInvoice struct {
	ID             string              `json:"id"`
	Number         string              `json:"number"`
	Status         string              `json:"status"`
	IssueDate      string              `json:"issue_date"`
	DueDate        string              `json:"due_date,omitempty"`
	Currency       string              `json:"currency"`
	Subtotal       int64               `json:"subtotal"`
	VATAmount      int64               `json:"vat_amount"`
	Total          int64               `json:"total"`
	OrgName        string              `json:"org_name"`
	PublishableKey string              `json:"publishable_key,omitempty"`
	ClientName     string              `json:"client_name"`
	Payable        bool                `json:"payable"`
	Lines          []PublicInvoiceLine `json:"lines"`
}

var (
	ErrInvoiceUnavailable = errors.New("invoice_unavailable")
	ErrInvoiceAlreadyPaid = errors.New("invoice_already_paid")
)
