package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/pkg/db"
	"gorm.io/gorm"
)

const invoiceColumns = `id, org_id, number, client_id, created_by, quote_id, status, currency,
	subtotal, vat_amount, total, issue_date, due_date, notes, sent_at, paid_at, cancelled_at,
	refunded_at, created_at, updated_at, deleted_at`

const quoteColumns = `id, org_id, number, client_id, created_by, status, currency,
	subtotal, vat_amount, total, issue_date, valid_until, notes, signed_by, sent_at, accepted_at,
	rejected_at, expired_at, created_at, updated_at, deleted_at`

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func tableFor(docType domain.DocType) string {
	if docType == domain.DocTypeQuote {
		return "quotes"
	}
	return "invoices"
}

func (r *repository) InsertInvoice(ctx context.Context, tx *gorm.DB, invoice domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, org_id, number, client_id, created_by, quote_id, status, currency,
			subtotal, vat_amount, total, issue_date, due_date, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.OrgID,
		invoice.Number,
		invoice.ClientID,
		invoice.CreatedBy,
		invoice.QuoteID,
		invoice.Status,
		invoice.Currency,
		invoice.Subtotal,
		invoice.VATAmount,
		invoice.Total,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Notes,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repository) InsertQuote(ctx context.Context, tx *gorm.DB, quote domain.Quote) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO quotes (
			id, org_id, number, client_id, created_by, status, currency,
			subtotal, vat_amount, total, issue_date, valid_until, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quote.ID,
		quote.OrgID,
		quote.Number,
		quote.ClientID,
		quote.CreatedBy,
		quote.Status,
		quote.Currency,
		quote.Subtotal,
		quote.VATAmount,
		quote.Total,
		quote.IssueDate,
		quote.ValidUntil,
		quote.Notes,
		quote.CreatedAt,
		quote.UpdatedAt,
	).Error
}

func (r *repository) InsertLines(ctx context.Context, tx *gorm.DB, lines []domain.Line) error {
	for _, line := range lines {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO document_lines (
				id, org_id, document_type, document_id, position, description,
				quantity, unit_price, vat_rate, subtotal, vat_amount, total
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID,
			line.OrgID,
			line.DocumentType,
			line.DocumentID,
			line.Position,
			line.Description,
			line.Quantity,
			line.UnitPrice,
			line.VATRate,
			line.Subtotal,
			line.VATAmount,
			line.Total,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ReplaceLines(ctx context.Context, tx *gorm.DB, docType domain.DocType, orgID, documentID snowflake.ID, lines []domain.Line) error {
	if err := tx.WithContext(ctx).Exec(
		`DELETE FROM document_lines WHERE org_id = ? AND document_type = ? AND document_id = ?`,
		orgID, docType, documentID,
	).Error; err != nil {
		return err
	}
	return r.InsertLines(ctx, tx, lines)
}

func (r *repository) UpdateDraftTotals(ctx context.Context, tx *gorm.DB, docType domain.DocType, orgID, id snowflake.ID, subtotal, vat, total int64, at time.Time) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE `+tableFor(docType)+`
		 SET subtotal = ?, vat_amount = ?, total = ?, updated_at = ?
		 WHERE id = ? AND org_id = ? AND status = ? AND `+db.ActiveClause,
		subtotal, vat, total, at, id, orgID, domain.StatusDraft,
	)
	return result.RowsAffected > 0, result.Error
}

func (r *repository) FindInvoice(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*domain.Invoice, error) {
	var rows []domain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? AND org_id = ? AND `+db.ActiveClause,
		id, orgID,
	).Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// FindInvoiceByID resolves an invoice without tenant scoping, for the public
// payment page. Soft-deleted invoices are returned so callers can tell them
// apart from unknown ids.
func (r *repository) FindInvoiceByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var rows []domain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repository) FindQuote(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*domain.Quote, error) {
	var rows []domain.Quote
	err := tx.WithContext(ctx).Raw(
		`SELECT `+quoteColumns+` FROM quotes WHERE id = ? AND org_id = ? AND `+db.ActiveClause,
		id, orgID,
	).Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repository) FindHeader(ctx context.Context, tx *gorm.DB, docType domain.DocType, orgID, id snowflake.ID) (*domain.Header, error) {
	var rows []domain.Header
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, number, created_by, status, total, deleted_at
		 FROM `+tableFor(docType)+`
		 WHERE id = ? AND org_id = ? AND `+db.ActiveClause,
		id, orgID,
	).Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repository) ListLines(ctx context.Context, tx *gorm.DB, docType domain.DocType, documentID snowflake.ID) ([]domain.Line, error) {
	var lines []domain.Line
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, document_type, document_id, position, description,
			quantity, unit_price, vat_rate, subtotal, vat_amount, total
		 FROM document_lines
		 WHERE document_type = ? AND document_id = ?
		 ORDER BY position ASC`,
		docType, documentID,
	).Scan(&lines).Error
	return lines, err
}

func (r *repository) ListInvoices(ctx context.Context, tx *gorm.DB, filter domain.ListFilter) ([]domain.Invoice, error) {
	query, args := listQuery("invoices", invoiceColumns, filter)
	var rows []domain.Invoice
	err := tx.WithContext(ctx).Raw(query, args...).Scan(&rows).Error
	return rows, err
}

func (r *repository) ListQuotes(ctx context.Context, tx *gorm.DB, filter domain.ListFilter) ([]domain.Quote, error) {
	query, args := listQuery("quotes", quoteColumns, filter)
	var rows []domain.Quote
	err := tx.WithContext(ctx).Raw(query, args...).Scan(&rows).Error
	return rows, err
}

func listQuery(table, columns string, filter domain.ListFilter) (string, []any) {
	query := `SELECT ` + columns + ` FROM ` + table + ` WHERE org_id = ? AND ` + db.ActiveClause
	args := []any{filter.OrgID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.BeforeID != 0 {
		query += ` AND id < ?`
		args = append(args, filter.BeforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, filter.Limit)
	return query, args
}

func (r *repository) ListIssuedInvoices(ctx context.Context, tx *gorm.DB, filter domain.ExportFilter) ([]domain.ExportRow, error) {
	var rows []domain.ExportRow
	err := tx.WithContext(ctx).Raw(
		`SELECT i.id, i.org_id, i.number, i.client_id, i.created_by, i.quote_id, i.status, i.currency,
			i.subtotal, i.vat_amount, i.total, i.issue_date, i.due_date, i.notes, i.sent_at, i.paid_at,
			i.cancelled_at, i.refunded_at, i.created_at, i.updated_at, i.deleted_at,
			COALESCE(c.name, '') AS client_name
		 FROM invoices i
		 LEFT JOIN contacts c ON c.id = i.client_id AND c.org_id = i.org_id
		 WHERE i.org_id = ? AND `+db.ActiveClauseFor("i")+`
		   AND i.status IN ?
		   AND i.issue_date >= ? AND i.issue_date < ?
		 ORDER BY i.issue_date ASC, i.number ASC`,
		filter.OrgID,
		[]domain.Status{domain.StatusSent, domain.StatusPaid, domain.StatusOverdue, domain.StatusRefunded},
		filter.From,
		filter.To,
	).Scan(&rows).Error
	return rows, err
}

func (r *repository) HasInvoiceForQuote(ctx context.Context, tx *gorm.DB, orgID, quoteID snowflake.ID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE org_id = ? AND quote_id = ? AND `+db.ActiveClause,
		orgID, quoteID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repository) Transition(ctx context.Context, tx *gorm.DB, update domain.TransitionUpdate) (bool, error) {
	set := `status = ?, updated_at = ?`
	args := []any{update.To, update.At}
	if column := domain.TimestampColumn(update.To); column != "" {
		set += `, ` + column + ` = ?`
		args = append(args, update.At)
	}
	if update.SignedBy != nil && update.DocType == domain.DocTypeQuote {
		set += `, signed_by = ?`
		args = append(args, *update.SignedBy)
	}
	args = append(args, update.ID, update.OrgID, update.From)

	result := tx.WithContext(ctx).Exec(
		`UPDATE `+tableFor(update.DocType)+` SET `+set+`
		 WHERE id = ? AND org_id = ? AND status = ? AND `+db.ActiveClause,
		args...,
	)
	return result.RowsAffected > 0, result.Error
}

func (r *repository) SoftDelete(ctx context.Context, tx *gorm.DB, docType domain.DocType, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE `+tableFor(docType)+` SET deleted_at = ?, updated_at = ?
		 WHERE id = ? AND org_id = ? AND `+db.ActiveClause,
		at, at, id, orgID,
	)
	return result.RowsAffected > 0, result.Error
}

func (r *repository) IsLiveContact(ctx context.Context, tx *gorm.DB, orgID, contactID snowflake.ID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM contacts WHERE id = ? AND org_id = ? AND `+db.ActiveClause,
		contactID, orgID,
	).Scan(&count).Error
	return count > 0, err
}
