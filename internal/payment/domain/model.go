package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const ProviderStripe = "stripe"

const MethodCard = "card"

// Payment records money received against an invoice. Reference is the
// provider object that settled it (the Checkout Session id) and is unique.
type Payment struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID           snowflake.ID `json:"org_id" gorm:"not null"`
	InvoiceID       snowflake.ID `json:"invoice_id" gorm:"not null"`
	Amount          int64        `json:"amount" gorm:"not null"`
	Currency        string       `json:"currency" gorm:"type:text;not null"`
	Method          string       `json:"method" gorm:"type:text;not null"`
	Reference       string       `json:"reference" gorm:"type:text;not null"`
	PaymentIntentID *string      `json:"payment_intent_id,omitempty" gorm:"type:text"`
	PaidAt          time.Time    `json:"paid_at" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// WebhookEvent is the ledger row of one provider delivery. ProcessedAt stays
// nil until the handler succeeds, so failed deliveries are retried.
type WebhookEvent struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	AccountID       *string        `json:"account_id,omitempty" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:text;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, payment Payment) (bool, error)
	FindPaymentByReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	FindPaymentByIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*Payment, error)
	ListPaymentsByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]Payment, error)

	InsertEvent(ctx context.Context, db *gorm.DB, event WebhookEvent) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*WebhookEvent, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
)
