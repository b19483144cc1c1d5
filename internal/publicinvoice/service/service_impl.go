package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	publicinvoicedomain "github.com/smallbiznis/atelier/internal/publicinvoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB   *gorm.DB
	Repo publicinvoicedomain.Repository
	Log  *zap.Logger
}

type Service struct {
	db   *gorm.DB
	repo publicinvoicedomain.Repository
	log  *zap.Logger
}

func New(p Params) publicinvoicedomain.Service {
	return &Service{
		db:   p.DB,
		repo: p.Repo,
		log:  p.Log.Named("publicinvoice.service"),
	}
}

// GetInvoice returns the payer view of an invoice. Drafts and deleted
// invoices do not exist publicly; paid invoices are reported as such so the
// page can stop offering a payment.
func (s *Service) GetInvoice(ctx context.Context, invoiceID snowflake.ID) (*publicinvoicedomain.PublicInvoice, error) {
	row, err := s.repo.FindInvoice(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if row == nil || !isInvoiceViewable(row) {
		return nil, publicinvoicedomain.ErrInvoiceUnavailable
	}
	if documentdomain.Status(row.Status) == documentdomain.StatusPaid {
		return nil, publicinvoicedomain.ErrInvoiceAlreadyPaid
	}

	lines, err := s.repo.ListLines(ctx, s.db, row.ID)
	if err != nil {
		return nil, err
	}
	return buildPublicInvoice(row, lines), nil
}

func isInvoiceViewable(row *publicinvoicedomain.InvoiceRecord) bool {
	if !documentdomain.LifecycleOf(row.DeletedAt).Active() {
		return false
	}
	return documentdomain.Status(row.Status) != documentdomain.StatusDraft
}

func isInvoicePayable(status string) bool {
	switch documentdomain.Status(status) {
	case documentdomain.StatusSent, documentdomain.StatusOverdue:
		return true
	default:
		return false
	}
}

func buildPublicInvoice(row *publicinvoicedomain.InvoiceRecord, lines []publicinvoicedomain.LineRecord) *publicinvoicedomain.PublicInvoice {
	view := &publicinvoicedomain.PublicInvoice{
		ID:             row.ID.String(),
		Number:         row.Number,
		Status:         row.Status,
		IssueDate:      row.IssueDate.UTC().Format(dateLayout),
		DueDate:        formatDate(row.DueDate),
		Currency:       row.Currency,
		Subtotal:       row.Subtotal,
		VATAmount:      row.VATAmount,
		Total:          row.Total,
		OrgName:        row.OrgName,
		PublishableKey: lo.FromPtrOr(row.PublishableKey, ""),
		ClientName:     row.ClientName,
		Payable:        isInvoicePayable(row.Status),
	}
	view.Lines = lo.Map(lines, func(line publicinvoicedomain.LineRecord, _ int) publicinvoicedomain.PublicInvoiceLine {
		return publicinvoicedomain.PublicInvoiceLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			VATRate:     line.VATRate,
			Subtotal:    line.Subtotal,
			VATAmount:   line.VATAmount,
			Total:       line.Total,
		}
	})
	return view
}

func formatDate(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(dateLayout)
}
