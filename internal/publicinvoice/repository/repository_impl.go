package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	publicinvoicedomain "github.com/smallbiznis/atelier/internal/publicinvoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() publicinvoicedomain.Repository {
	return &repo{}
}

func (r *repo) FindInvoice(
	ctx context.Context,
	db *gorm.DB,
	invoiceID snowflake.ID,
) (*publicinvoicedomain.InvoiceRecord, error) {
	if db == nil || invoiceID == 0 {
		return nil, nil
	}

	query := `
		SELECT i.id, i.org_id, i.number, i.status, i.currency, i.subtotal, i.vat_amount, i.total,
			i.issue_date, i.due_date, i.paid_at, i.deleted_at,
			o.name AS org_name, o.stripe_publishable_key, c.name AS client_name
		FROM invoices i
		JOIN organizations o ON o.id = i.org_id
		LEFT JOIN contacts c ON c.id = i.client_id AND c.org_id = i.org_id
		WHERE i.id = ?
		LIMIT 1`

	var rows []publicinvoicedomain.InvoiceRecord
	if err := db.WithContext(ctx).Raw(query, invoiceID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) ListLines(
	ctx context.Context,
	db *gorm.DB,
	invoiceID snowflake.ID,
) ([]publicinvoicedomain.LineRecord, error) {
	var rows []publicinvoicedomain.LineRecord
	if err := db.WithContext(ctx).Raw(
		`SELECT description, quantity, unit_price, vat_rate, subtotal, vat_amount, total
		 FROM document_lines
		 WHERE document_type = 'invoice' AND document_id = ?
		 ORDER BY position ASC`,
		invoiceID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
