package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*InvoiceRecord, error)
	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]LineRecord, error)
}

// InvoiceRecord joins an invoice with the organization and client fields a
// payer is allowed to see.
type InvoiceRecord struct {
	ID             snowflake.ID `gorm:"column:id"`
	OrgID          snowflake.ID `gorm:"column:org_id"`
	OrgName        string       `gorm:"column:org_name"`
	PublishableKey *string      `gorm:"column:stripe_publishable_key"`
	Number         string       `gorm:"column:number"`
	Status         string       `gorm:"column:status"`
	Currency       string       `gorm:"column:currency"`
	Subtotal       int64        `gorm:"column:subtotal"`
	VATAmount      int64        `gorm:"column:vat_amount"`
	Total          int64        `gorm:"column:total"`
	IssueDate      time.Time    `gorm:"column:issue_date"`
	DueDate        *time.Time   `gorm:"column:due_date"`
	PaidAt         *time.Time   `gorm:"column:paid_at"`
	ClientName     string       `gorm:"column:client_name"`
	DeletedAt      *time.Time   `gorm:"column:deleted_at"`
}

type LineRecord struct {
	Description string          `gorm:"column:description"`
	Quantity    decimal.Decimal `gorm:"column:quantity"`
	UnitPrice   int64           `gorm:"column:unit_price"`
	VATRate     decimal.Decimal `gorm:"column:vat_rate"`
	Subtotal    int64           `gorm:"column:subtotal"`
	VATAmount   int64           `gorm:"column:vat_amount"`
	Total       int64           `gorm:"column:total"`
}
