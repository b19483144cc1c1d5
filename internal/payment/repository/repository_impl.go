package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/payment/domain"
	"gorm.io/gorm"
)

const paymentColumns = `id, org_id, invoice_id, amount, currency, method, reference,
	payment_intent_id, paid_at, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment domain.Payment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (reference) DO NOTHING`,
		payment.ID,
		payment.OrgID,
		payment.InvoiceID,
		payment.Amount,
		payment.Currency,
		payment.Method,
		payment.Reference,
		payment.PaymentIntentID,
		payment.PaidAt,
		payment.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindPaymentByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Payment, error) {
	return r.findPayment(ctx, db, `reference = ?`, reference)
}

func (r *repo) FindPaymentByIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Payment, error) {
	return r.findPayment(ctx, db, `payment_intent_id = ?`, paymentIntentID)
}

func (r *repo) findPayment(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE `+where+` ORDER BY created_at ASC LIMIT 1`,
		arg,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListPaymentsByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE org_id = ? AND invoice_id = ? ORDER BY paid_at ASC`,
		orgID,
		invoiceID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event domain.WebhookEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, provider, provider_event_id, event_type, account_id,
			payload, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.AccountID,
		event.Payload,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*domain.WebhookEvent, error) {
	var items []domain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, account_id,
			payload, received_at, processed_at
		 FROM webhook_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}
