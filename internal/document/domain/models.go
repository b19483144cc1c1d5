// Package domain contains persistence models and the lifecycle rules for
// invoices and quotes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	seqdomain "github.com/smallbiznis/atelier/internal/sequence/domain"
)

type DocType = seqdomain.DocType

const (
	DocTypeInvoice = seqdomain.DocTypeInvoice
	DocTypeQuote   = seqdomain.DocTypeQuote
)

const DefaultCurrency = "EUR"

// Lifecycle is derived from deleted_at. A deleted document keeps its number
// and amounts but is invisible to every read path.
type Lifecycle struct {
	deletedAt *time.Time
}

func LifecycleOf(deletedAt *time.Time) Lifecycle {
	return Lifecycle{deletedAt: deletedAt}
}

func (l Lifecycle) Active() bool { return l.deletedAt == nil }

// Deleted returns the deletion time of a soft-deleted document.
func (l Lifecycle) Deleted() (time.Time, bool) {
	if l.deletedAt == nil {
		return time.Time{}, false
	}
	return *l.deletedAt, true
}

type Invoice struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null" json:"org_id"`
	Number      string        `gorm:"type:text;not null" json:"number"`
	ClientID    snowflake.ID  `gorm:"not null" json:"client_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	QuoteID     *snowflake.ID `json:"quote_id,omitempty"`
	Status      Status        `gorm:"type:text;not null" json:"status"`
	Currency    string        `gorm:"type:text;not null" json:"currency"`
	Subtotal    int64         `gorm:"not null" json:"subtotal"`
	VATAmount   int64         `gorm:"column:vat_amount;not null" json:"vat_amount"`
	Total       int64         `gorm:"not null" json:"total"`
	IssueDate   time.Time     `gorm:"not null" json:"issue_date"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Notes       string        `gorm:"type:text" json:"notes,omitempty"`
	SentAt      *time.Time    `json:"sent_at,omitempty"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
	DeletedAt   *time.Time    `json:"-"`

	Lines []Line `gorm:"-" json:"lines,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

func (i Invoice) Lifecycle() Lifecycle { return LifecycleOf(i.DeletedAt) }

type Quote struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null" json:"org_id"`
	Number     string       `gorm:"type:text;not null" json:"number"`
	ClientID   snowflake.ID `gorm:"not null" json:"client_id"`
	CreatedBy  snowflake.ID `gorm:"not null" json:"created_by"`
	Status     Status       `gorm:"type:text;not null" json:"status"`
	Currency   string       `gorm:"type:text;not null" json:"currency"`
	Subtotal   int64        `gorm:"not null" json:"subtotal"`
	VATAmount  int64        `gorm:"column:vat_amount;not null" json:"vat_amount"`
	Total      int64        `gorm:"not null" json:"total"`
	IssueDate  time.Time    `gorm:"not null" json:"issue_date"`
	ValidUntil *time.Time   `json:"valid_until,omitempty"`
	Notes      string       `gorm:"type:text" json:"notes,omitempty"`
	SignedBy   *string      `gorm:"type:text" json:"signed_by,omitempty"`
	SentAt     *time.Time   `json:"sent_at,omitempty"`
	AcceptedAt *time.Time   `json:"accepted_at,omitempty"`
	RejectedAt *time.Time   `json:"rejected_at,omitempty"`
	ExpiredAt  *time.Time   `json:"expired_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
	DeletedAt  *time.Time   `json:"-"`

	Lines []Line `gorm:"-" json:"lines,omitempty"`
}

func (Quote) TableName() string { return "quotes" }

func (q Quote) Lifecycle() Lifecycle { return LifecycleOf(q.DeletedAt) }

// Line is a stored document row with its computed cents.
type Line struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID    `gorm:"not null" json:"-"`
	DocumentType DocType         `gorm:"type:text;not null" json:"-"`
	DocumentID   snowflake.ID    `gorm:"not null" json:"-"`
	Position     int             `gorm:"not null" json:"position"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	Quantity     decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"quantity"`
	UnitPrice    int64           `gorm:"not null" json:"unit_price"`
	VATRate      decimal.Decimal `gorm:"column:vat_rate;type:numeric(5,2);not null" json:"vat_rate"`
	Subtotal     int64           `gorm:"not null" json:"subtotal"`
	VATAmount    int64           `gorm:"column:vat_amount;not null" json:"vat_amount"`
	Total        int64           `gorm:"not null" json:"total"`
}

func (Line) TableName() string { return "document_lines" }

// Header is the part of a document shared by invoices and quotes, used by
// operations that apply to both.
type Header struct {
	ID        snowflake.ID
	OrgID     snowflake.ID
	Number    string
	CreatedBy snowflake.ID
	Status    Status
	Total     int64
	DeletedAt *time.Time
}
