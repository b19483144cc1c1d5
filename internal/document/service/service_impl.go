package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/money"
	notificationdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/internal/quota"
	seqdomain "github.com/smallbiznis/atelier/internal/sequence/domain"
	"github.com/smallbiznis/atelier/pkg/db"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Sequences seqdomain.Service
	Quota     *quota.Service
	Notifier  notificationdomain.Notifier
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	sequences seqdomain.Service
	quota     *quota.Service
	notifier  notificationdomain.Notifier
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("document.service"),

		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		sequences: p.Sequences,
		quota:     p.Quota,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, orgID, userID snowflake.ID, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	totals, err := validateDraft(req.ClientID, req.Lines)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	issueDate := lo.FromPtrOr(req.IssueDate, now)
	if req.DueDate != nil && req.DueDate.Before(truncateDay(issueDate)) {
		return nil, domain.ErrInvalidDates
	}

	var invoice domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureLiveContact(ctx, tx, orgID, req.ClientID); err != nil {
			return err
		}
		if err := s.quota.CheckAndReserve(ctx, tx, orgID, quota.ResourceInvoices); err != nil {
			return err
		}
		number, err := s.sequences.Next(ctx, tx, orgID, domain.DocTypeInvoice)
		if err != nil {
			return err
		}

		invoice = domain.Invoice{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Number:    number,
			ClientID:  req.ClientID,
			CreatedBy: userID,
			Status:    domain.StatusDraft,
			Currency:  domain.DefaultCurrency,
			Subtotal:  totals.Subtotal,
			VATAmount: totals.VATAmount,
			Total:     totals.Total,
			IssueDate: issueDate,
			DueDate:   req.DueDate,
			Notes:     strings.TrimSpace(req.Notes),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.InsertInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		invoice.Lines = s.buildLines(orgID, domain.DocTypeInvoice, invoice.ID, req.Lines, totals)
		return s.repo.InsertLines(ctx, tx, invoice.Lines)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDocumentCreated(ctx, string(domain.DocTypeInvoice))
	s.log.Info("invoice created",
		zap.String("org_id", orgID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
	)
	return &invoice, nil
}

func (s *Service) CreateQuote(ctx context.Context, orgID, userID snowflake.ID, req domain.CreateQuoteRequest) (*domain.Quote, error) {
	totals, err := validateDraft(req.ClientID, req.Lines)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	issueDate := lo.FromPtrOr(req.IssueDate, now)
	if req.ValidUntil != nil && req.ValidUntil.Before(truncateDay(issueDate)) {
		return nil, domain.ErrInvalidDates
	}

	var quote domain.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureLiveContact(ctx, tx, orgID, req.ClientID); err != nil {
			return err
		}
		if err := s.quota.CheckAndReserve(ctx, tx, orgID, quota.ResourceQuotes); err != nil {
			return err
		}
		number, err := s.sequences.Next(ctx, tx, orgID, domain.DocTypeQuote)
		if err != nil {
			return err
		}

		quote = domain.Quote{
			ID:         s.genID.Generate(),
			OrgID:      orgID,
			Number:     number,
			ClientID:   req.ClientID,
			CreatedBy:  userID,
			Status:     domain.StatusDraft,
			Currency:   domain.DefaultCurrency,
			Subtotal:   totals.Subtotal,
			VATAmount:  totals.VATAmount,
			Total:      totals.Total,
			IssueDate:  issueDate,
			ValidUntil: req.ValidUntil,
			Notes:      strings.TrimSpace(req.Notes),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.InsertQuote(ctx, tx, quote); err != nil {
			return err
		}
		quote.Lines = s.buildLines(orgID, domain.DocTypeQuote, quote.ID, req.Lines, totals)
		return s.repo.InsertLines(ctx, tx, quote.Lines)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDocumentCreated(ctx, string(domain.DocTypeQuote))
	s.log.Info("quote created",
		zap.String("org_id", orgID.String()),
		zap.String("quote_id", quote.ID.String()),
		zap.String("number", quote.Number),
	)
	return &quote, nil
}

// ConvertQuote issues a draft invoice carrying the lines of an accepted quote.
func (s *Service) ConvertQuote(ctx context.Context, orgID, userID, quoteID snowflake.ID) (*domain.Invoice, error) {
	quote, err := s.GetQuote(ctx, orgID, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != domain.StatusAccepted {
		return nil, domain.ErrQuoteNotAccepted
	}

	lines := lo.Map(quote.Lines, func(line domain.Line, _ int) money.Line {
		return money.Line{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			VATRate:     line.VATRate,
		}
	})
	totals, err := validateDraft(quote.ClientID, lines)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var invoice domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		converted, err := s.repo.HasInvoiceForQuote(ctx, tx, orgID, quote.ID)
		if err != nil {
			return err
		}
		if converted {
			return domain.ErrQuoteAlreadyConverted
		}
		if err := s.quota.CheckAndReserve(ctx, tx, orgID, quota.ResourceInvoices); err != nil {
			return err
		}
		number, err := s.sequences.Next(ctx, tx, orgID, domain.DocTypeInvoice)
		if err != nil {
			return err
		}
		invoice = domain.Invoice{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Number:    number,
			ClientID:  quote.ClientID,
			CreatedBy: userID,
			QuoteID:   &quote.ID,
			Status:    domain.StatusDraft,
			Currency:  quote.Currency,
			Subtotal:  totals.Subtotal,
			VATAmount: totals.VATAmount,
			Total:     totals.Total,
			IssueDate: now,
			Notes:     quote.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.InsertInvoice(ctx, tx, invoice); err != nil {
			// A concurrent conversion committed first.
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrQuoteAlreadyConverted
			}
			return err
		}
		invoice.Lines = s.buildLines(orgID, domain.DocTypeInvoice, invoice.ID, lines, totals)
		return s.repo.InsertLines(ctx, tx, invoice.Lines)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDocumentCreated(ctx, string(domain.DocTypeInvoice))
	s.log.Info("quote converted",
		zap.String("org_id", orgID.String()),
		zap.String("quote_id", quote.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
	)
	return &invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, orgID, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindInvoice(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	if invoice.Lines, err = s.repo.ListLines(ctx, s.db, domain.DocTypeInvoice, invoice.ID); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) GetQuote(ctx context.Context, orgID, id snowflake.ID) (*domain.Quote, error) {
	quote, err := s.repo.FindQuote(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, domain.ErrNotFound
	}
	if quote.Lines, err = s.repo.ListLines(ctx, s.db, domain.DocTypeQuote, quote.ID); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *Service) ListInvoices(ctx context.Context, orgID snowflake.ID, req domain.ListRequest) (domain.ListInvoicesResponse, error) {
	filter, err := listFilter(orgID, domain.DocTypeInvoice, req)
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}
	rows, err := s.repo.ListInvoices(ctx, s.db, filter)
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}
	rows, info := pagination.Page(rows, filter.Limit-1, func(i domain.Invoice) string { return i.ID.String() })
	return domain.ListInvoicesResponse{PageInfo: info, Invoices: rows}, nil
}

func (s *Service) ListQuotes(ctx context.Context, orgID snowflake.ID, req domain.ListRequest) (domain.ListQuotesResponse, error) {
	filter, err := listFilter(orgID, domain.DocTypeQuote, req)
	if err != nil {
		return domain.ListQuotesResponse{}, err
	}
	rows, err := s.repo.ListQuotes(ctx, s.db, filter)
	if err != nil {
		return domain.ListQuotesResponse{}, err
	}
	rows, info := pagination.Page(rows, filter.Limit-1, func(q domain.Quote) string { return q.ID.String() })
	return domain.ListQuotesResponse{PageInfo: info, Quotes: rows}, nil
}

func (s *Service) UpdateDraftLines(ctx context.Context, orgID snowflake.ID, docType domain.DocType, id snowflake.ID, lines []money.Line) error {
	if _, err := seqdomain.ParseDocType(string(docType)); err != nil {
		return err
	}
	if err := money.Validate(lines); err != nil {
		return err
	}
	totals := money.Calculate(lines)
	now := s.clock.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateDraftTotals(ctx, tx, docType, orgID, id, totals.Subtotal, totals.VATAmount, totals.Total, now)
		if err != nil {
			return err
		}
		if !ok {
			header, err := s.repo.FindHeader(ctx, tx, docType, orgID, id)
			if err != nil {
				return err
			}
			if header == nil {
				return domain.ErrNotFound
			}
			return domain.ErrNotEditable
		}
		return s.repo.ReplaceLines(ctx, tx, docType, orgID, id, s.buildLines(orgID, docType, id, lines, totals))
	})
}

func (s *Service) TransitionInvoice(ctx context.Context, orgID, id snowflake.ID, to domain.Status) (*domain.Invoice, error) {
	if !domain.ValidStatus(domain.DocTypeInvoice, to) {
		return nil, domain.ErrInvalidStatus
	}
	header, err := s.transition(ctx, domain.DocTypeInvoice, orgID, id, to, nil)
	if err != nil {
		return nil, err
	}

	switch to {
	case domain.StatusPaid:
		s.notifyCreator(ctx, header, notificationdomain.Message{
			Kind:  notificationdomain.KindInvoicePaid,
			Title: "Invoice paid",
			Body:  "Invoice " + header.Number + " was marked as paid.",
			Data:  map[string]any{"invoice_id": header.ID.String(), "amount": header.Total},
		})
	case domain.StatusRefunded:
		s.notifyCreator(ctx, header, notificationdomain.Message{
			Kind:  notificationdomain.KindInvoiceRefunded,
			Title: "Invoice refunded",
			Body:  "Invoice " + header.Number + " was refunded.",
			Data:  map[string]any{"invoice_id": header.ID.String(), "amount": header.Total},
		})
	}
	return s.GetInvoice(ctx, orgID, id)
}

func (s *Service) TransitionQuote(ctx context.Context, orgID, id snowflake.ID, to domain.Status, signedBy string) (*domain.Quote, error) {
	if !domain.ValidStatus(domain.DocTypeQuote, to) {
		return nil, domain.ErrInvalidStatus
	}
	var signer *string
	if signedBy = strings.TrimSpace(signedBy); signedBy != "" {
		if to != domain.StatusAccepted {
			return nil, domain.ErrInvalidSignedBy
		}
		signer = &signedBy
	}

	header, err := s.transition(ctx, domain.DocTypeQuote, orgID, id, to, signer)
	if err != nil {
		return nil, err
	}

	switch to {
	case domain.StatusAccepted:
		body := "Quote " + header.Number + " was accepted."
		if signer != nil {
			body = "Quote " + header.Number + " was signed by " + *signer + "."
		}
		s.notifyCreator(ctx, header, notificationdomain.Message{
			Kind:  notificationdomain.KindQuoteAccepted,
			Title: "Quote accepted",
			Body:  body,
			Data:  map[string]any{"quote_id": header.ID.String(), "signed": signer != nil},
		})
	case domain.StatusRejected:
		s.notifyCreator(ctx, header, notificationdomain.Message{
			Kind:  notificationdomain.KindQuoteRejected,
			Title: "Quote rejected",
			Body:  "Quote " + header.Number + " was rejected.",
			Data:  map[string]any{"quote_id": header.ID.String()},
		})
	}
	return s.GetQuote(ctx, orgID, id)
}

// MarkDelivered records a successful outbound send. Documents already past
// draft are left untouched.
func (s *Service) MarkDelivered(ctx context.Context, orgID snowflake.ID, docType domain.DocType, id snowflake.ID) error {
	if _, err := seqdomain.ParseDocType(string(docType)); err != nil {
		return err
	}
	_, err := s.transition(ctx, docType, orgID, id, domain.StatusSent, nil)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return nil
	}
	return err
}

func (s *Service) SoftDelete(ctx context.Context, orgID snowflake.ID, docType domain.DocType, id snowflake.ID) error {
	if _, err := seqdomain.ParseDocType(string(docType)); err != nil {
		return err
	}
	ok, err := s.repo.SoftDelete(ctx, s.db, docType, orgID, id, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

// transition moves a document along one edge of its lifecycle with a
// compare-and-swap on the current status.
func (s *Service) transition(ctx context.Context, docType domain.DocType, orgID, id snowflake.ID, to domain.Status, signedBy *string) (*domain.Header, error) {
	header, err := s.repo.FindHeader(ctx, s.db, docType, orgID, id)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, domain.ErrNotFound
	}
	if !domain.CanTransition(docType, header.Status, to) {
		return nil, domain.ErrInvalidTransition
	}

	ok, err := s.repo.Transition(ctx, s.db, domain.TransitionUpdate{
		DocType:  docType,
		OrgID:    orgID,
		ID:       id,
		From:     header.Status,
		To:       to,
		At:       s.clock.Now(),
		SignedBy: signedBy,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.repo.FindHeader(ctx, s.db, docType, orgID, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrInvalidTransition
	}

	s.log.Info("document transitioned",
		zap.String("org_id", orgID.String()),
		zap.String("doc_type", string(docType)),
		zap.String("document_id", id.String()),
		zap.String("from", string(header.Status)),
		zap.String("to", string(to)),
	)
	header.Status = to
	return header, nil
}

func (s *Service) notifyCreator(ctx context.Context, header *domain.Header, msg notificationdomain.Message) {
	if s.notifier == nil || header.CreatedBy == 0 {
		return
	}
	if err := s.notifier.NotifyUser(ctx, header.OrgID, header.CreatedBy, msg); err != nil {
		s.log.Warn("notification failed",
			zap.String("org_id", header.OrgID.String()),
			zap.String("kind", msg.Kind),
			zap.Error(err),
		)
	}
}

func (s *Service) ensureLiveContact(ctx context.Context, tx *gorm.DB, orgID, clientID snowflake.ID) error {
	live, err := s.repo.IsLiveContact(ctx, tx, orgID, clientID)
	if err != nil {
		return err
	}
	if !live {
		return domain.ErrClientNotFound
	}
	return nil
}

func (s *Service) buildLines(orgID snowflake.ID, docType domain.DocType, documentID snowflake.ID, lines []money.Line, totals money.Totals) []domain.Line {
	return lo.Map(lines, func(line money.Line, i int) domain.Line {
		amounts := totals.Lines[i]
		return domain.Line{
			ID:           s.genID.Generate(),
			OrgID:        orgID,
			DocumentType: docType,
			DocumentID:   documentID,
			Position:     i + 1,
			Description:  strings.TrimSpace(line.Description),
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			VATRate:      line.VATRate,
			Subtotal:     amounts.Subtotal,
			VATAmount:    amounts.VATAmount,
			Total:        amounts.Total,
		}
	})
}

func validateDraft(clientID snowflake.ID, lines []money.Line) (money.Totals, error) {
	if clientID == 0 {
		return money.Totals{}, domain.ErrInvalidClient
	}
	if err := money.Validate(lines); err != nil {
		return money.Totals{}, err
	}
	return money.Calculate(lines), nil
}

// listFilter fetches one extra row so the page can report has_more.
func listFilter(orgID snowflake.ID, docType domain.DocType, req domain.ListRequest) (domain.ListFilter, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if status != "" && !domain.ValidStatus(docType, status) {
		return domain.ListFilter{}, domain.ErrInvalidStatus
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListFilter{}, err
	}
	var beforeID snowflake.ID
	if cursor != nil {
		if beforeID, err = snowflake.ParseString(cursor.ID); err != nil {
			return domain.ListFilter{}, pagination.ErrInvalidPageToken
		}
	}
	return domain.ListFilter{
		OrgID:    orgID,
		Status:   status,
		BeforeID: beforeID,
		Limit:    req.Limit() + 1,
	}, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
