package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TransitionUpdate is a compare-and-swap on a document's status.
type TransitionUpdate struct {
	DocType  DocType
	OrgID    snowflake.ID
	ID       snowflake.ID
	From     Status
	To       Status
	At       time.Time
	SignedBy *string
}

type ListFilter struct {
	OrgID    snowflake.ID
	Status   Status
	BeforeID snowflake.ID
	Limit    int
}

// ExportFilter selects issued invoices for a reporting window.
type ExportFilter struct {
	OrgID snowflake.ID
	From  time.Time
	To    time.Time
}

type ExportRow struct {
	Invoice
	ClientName string
}

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice Invoice) error
	InsertQuote(ctx context.Context, db *gorm.DB, quote Quote) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []Line) error
	ReplaceLines(ctx context.Context, db *gorm.DB, docType DocType, orgID, documentID snowflake.ID, lines []Line) error
	UpdateDraftTotals(ctx context.Context, db *gorm.DB, docType DocType, orgID, id snowflake.ID, subtotal, vat, total int64, at time.Time) (bool, error)

	FindInvoice(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindQuote(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Quote, error)
	FindHeader(ctx context.Context, db *gorm.DB, docType DocType, orgID, id snowflake.ID) (*Header, error)
	ListLines(ctx context.Context, db *gorm.DB, docType DocType, documentID snowflake.ID) ([]Line, error)
	ListInvoices(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	ListQuotes(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Quote, error)
	ListIssuedInvoices(ctx context.Context, db *gorm.DB, filter ExportFilter) ([]ExportRow, error)
	HasInvoiceForQuote(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) (bool, error)

	Transition(ctx context.Context, db *gorm.DB, update TransitionUpdate) (bool, error)
	SoftDelete(ctx context.Context, db *gorm.DB, docType DocType, orgID, id snowflake.ID, at time.Time) (bool, error)

	IsLiveContact(ctx context.Context, db *gorm.DB, orgID, contactID snowflake.ID) (bool, error)
}
