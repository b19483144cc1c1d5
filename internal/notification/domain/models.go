package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	KindQuoteAccepted      = "quote_accepted"
	KindQuoteRejected      = "quote_rejected"
	KindInvoicePaid        = "invoice_paid"
	KindPaymentOnClosed    = "payment_on_closed_invoice"
	KindInvoiceRefunded    = "invoice_refunded"
	KindStripeAccountIssue = "stripe_account_issue"
	KindDisputeCreated     = "dispute_created"
	KindPayoutPaid         = "payout_paid"
	KindPayoutFailed       = "payout_failed"
)

type Notification struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID   `gorm:"not null" json:"org_id"`
	UserID    snowflake.ID   `gorm:"not null" json:"user_id"`
	Kind      string         `gorm:"type:text;not null" json:"kind"`
	Title     string         `gorm:"type:text;not null" json:"title"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	Data      datatypes.JSON `gorm:"type:text;not null" json:"data"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Message is the payload of a notification before it is addressed.
type Message struct {
	Kind  string
	Title string
	Body  string
	Data  map[string]any
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n Notification) error
	List(ctx context.Context, db *gorm.DB, orgID, userID, beforeID snowflake.ID, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, db *gorm.DB, orgID, userID, id snowflake.ID, at time.Time) (bool, error)
}

// Notifier delivers in-app notifications. Delivery is best effort: callers
// log failures and never fail their own operation because of them.
type Notifier interface {
	NotifyUser(ctx context.Context, orgID, userID snowflake.ID, msg Message) error
	NotifyMembers(ctx context.Context, orgID snowflake.ID, msg Message) error
}

type Service interface {
	Notifier
	List(ctx context.Context, orgID, userID snowflake.ID, page pagination.Pagination) ([]Notification, pagination.PageInfo, error)
	MarkRead(ctx context.Context, orgID, userID, id snowflake.ID) error
}

// MemberLister resolves the recipients of an organization-wide message.
type MemberLister interface {
	MemberIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
}

var (
	ErrNotFound    = errors.New("notification_not_found")
	ErrInvalidKind = errors.New("invalid_notification_kind")
	ErrInvalidUser = errors.New("invalid_user")
)
