package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/document/repository"
	"github.com/smallbiznis/atelier/internal/money"
	notificationdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/quota"
	seqrepository "github.com/smallbiznis/atelier/internal/sequence/repository"
	seqservice "github.com/smallbiznis/atelier/internal/sequence/service"
	"github.com/smallbiznis/atelier/internal/testutil"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgID    snowflake.ID = 10
	userID   snowflake.ID = 20
	clientID snowflake.ID = 30
)

type sentNotification struct {
	UserID snowflake.ID
	Msg    notificationdomain.Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) NotifyUser(_ context.Context, _ snowflake.ID, userID snowflake.ID, msg notificationdomain.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Msg: msg})
	return nil
}

func (n *recordingNotifier) NotifyMembers(context.Context, snowflake.ID, notificationdomain.Message) error {
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Msg.Kind)
	}
	return out
}

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	notifier *recordingNotifier
}

func setup(t *testing.T, plan string) fixture {
	t.Helper()
	return setupWithRepo(t, plan, repository.NewRepository())
}

func setupWithRepo(t *testing.T, plan string, repo domain.Repository) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	now := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	testutil.InsertOrg(t, db, testutil.OrgFixture{ID: orgID, Plan: plan, CountersPeriod: now.Format("2006-01")})
	testutil.InsertMember(t, db, orgID, userID, "owner")
	testutil.InsertContact(t, db, orgID, clientID, "ACME SARL")

	clk := clock.NewFakeClock(now)
	log := zap.NewNop()
	notifier := &recordingNotifier{}
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   log,
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repo,
		Sequences: seqservice.NewService(seqservice.Params{
			DB: db, Repo: seqrepository.NewRepository(), Clock: clk, Log: log,
		}),
		Quota: quota.NewService(quota.Params{
			DB: db, Plans: config.NewStaticPlanLimits(config.DefaultPlansConfig()), Clock: clk, Log: log,
		}),
		Notifier: notifier,
	})
	return fixture{svc: svc, db: db, notifier: notifier}
}

func sampleLines() []money.Line {
	return []money.Line{
		{Description: "Design", Quantity: decimal.NewFromInt(2), UnitPrice: 15000, VATRate: decimal.NewFromInt(20)},
		{Description: "Hosting", Quantity: decimal.RequireFromString("1.5"), UnitPrice: 999, VATRate: decimal.RequireFromString("5.5")},
	}
}

func (f fixture) createInvoice(t *testing.T) *domain.Invoice {
	t.Helper()
	invoice, err := f.svc.CreateInvoice(context.Background(), orgID, userID, domain.CreateInvoiceRequest{
		ClientID: clientID,
		Lines:    sampleLines(),
	})
	require.NoError(t, err)
	return invoice
}

func TestCreateInvoiceComputesTotalsAndNumber(t *testing.T) {
	f := setup(t, config.PlanFree)

	invoice := f.createInvoice(t)
	assert.Equal(t, "FAC-2026-0001", invoice.Number)
	assert.Equal(t, domain.StatusDraft, invoice.Status)
	// 2 x 150.00 = 300.00 + 60.00 VAT; 1.5 x 9.99 = 14.985 -> 14.99 + 0.82 VAT
	assert.EqualValues(t, 30000+1499, invoice.Subtotal)
	assert.EqualValues(t, 6000+82, invoice.VATAmount)
	assert.Equal(t, invoice.Subtotal+invoice.VATAmount, invoice.Total)

	stored, err := f.svc.GetInvoice(context.Background(), orgID, invoice.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, 1, stored.Lines[0].Position)
	assert.True(t, stored.Lines[1].Quantity.Equal(decimal.RequireFromString("1.5")))
	assert.EqualValues(t, 1499, stored.Lines[1].Subtotal)

	second := f.createInvoice(t)
	assert.Equal(t, "FAC-2026-0002", second.Number)
}

func TestCreateRejectsInvalidRequests(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, orgID, userID, domain.CreateInvoiceRequest{Lines: sampleLines()})
	assert.ErrorIs(t, err, domain.ErrInvalidClient)

	_, err = f.svc.CreateInvoice(ctx, orgID, userID, domain.CreateInvoiceRequest{ClientID: clientID})
	assert.ErrorIs(t, err, money.ErrInvalidLines)

	bad := sampleLines()
	bad[1].VATRate = decimal.NewFromInt(120)
	_, err = f.svc.CreateInvoice(ctx, orgID, userID, domain.CreateInvoiceRequest{ClientID: clientID, Lines: bad})
	var lineErr *money.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Index)
	assert.ErrorIs(t, err, money.ErrInvalidVATRate)

	_, err = f.svc.CreateInvoice(ctx, orgID, userID, domain.CreateInvoiceRequest{ClientID: 999, Lines: sampleLines()})
	assert.ErrorIs(t, err, domain.ErrClientNotFound)

	// none of the failures consumed a number
	assert.Equal(t, "FAC-2026-0001", f.createInvoice(t).Number)
}

func TestQuotaDenialBurnsNoNumber(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.createInvoice(t)
	}
	_, err := f.svc.CreateInvoice(ctx, orgID, userID, domain.CreateInvoiceRequest{ClientID: clientID, Lines: sampleLines()})
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.EqualValues(t, 5, testutil.Count(t, f.db, `SELECT COUNT(*) FROM invoices WHERE org_id = ?`, orgID))

	require.NoError(t, f.db.Exec(`UPDATE organizations SET plan = ? WHERE id = ?`, config.PlanPro, orgID).Error)
	assert.Equal(t, "FAC-2026-0006", f.createInvoice(t).Number)
}

func TestInvoiceTransitions(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()
	invoice := f.createInvoice(t)

	_, err := f.svc.TransitionInvoice(ctx, orgID, invoice.ID, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	sent, err := f.svc.TransitionInvoice(ctx, orgID, invoice.ID, domain.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	paid, err := f.svc.TransitionInvoice(ctx, orgID, invoice.ID, domain.StatusPaid)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, []string{notificationdomain.KindInvoicePaid}, f.notifier.kinds())

	_, err = f.svc.TransitionInvoice(ctx, orgID, invoice.ID, domain.StatusDraft)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.TransitionInvoice(ctx, orgID, invoice.ID, domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.TransitionInvoice(ctx, orgID, invoice.ID, domain.StatusRefunded)
	require.NoError(t, err)

	_, err = f.svc.TransitionInvoice(ctx, orgID, 12345, domain.StatusSent)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOverdueInvoiceCanStillBePaid(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()
	invoice := f.createInvoice(t)

	for _, to := range []domain.Status{domain.StatusSent, domain.StatusOverdue, domain.StatusPaid} {
		_, err := f.svc.TransitionInvoice(ctx, orgID, invoice.ID, to)
		require.NoError(t, err, "to %s", to)
	}
}

func TestUpdateDraftLinesOnlyInDraft(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()
	invoice := f.createInvoice(t)

	lines := []money.Line{{Description: "Audit", Quantity: decimal.NewFromInt(1), UnitPrice: 10000, VATRate: decimal.NewFromInt(20)}}
	require.NoError(t, f.svc.UpdateDraftLines(ctx, orgID, domain.DocTypeInvoice, invoice.ID, lines))

	stored, err := f.svc.GetInvoice(ctx, orgID, invoice.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.EqualValues(t, 12000, stored.Total)

	require.NoError(t, f.svc.MarkDelivered(ctx, orgID, domain.DocTypeInvoice, invoice.ID))
	err = f.svc.UpdateDraftLines(ctx, orgID, domain.DocTypeInvoice, invoice.ID, sampleLines())
	assert.ErrorIs(t, err, domain.ErrNotEditable)

	stored, err = f.svc.GetInvoice(ctx, orgID, invoice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 12000, stored.Total)

	err = f.svc.UpdateDraftLines(ctx, orgID, domain.DocTypeInvoice, 4242, lines)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()
	invoice := f.createInvoice(t)

	require.NoError(t, f.svc.MarkDelivered(ctx, orgID, domain.DocTypeInvoice, invoice.ID))
	require.NoError(t, f.svc.MarkDelivered(ctx, orgID, domain.DocTypeInvoice, invoice.ID))

	stored, err := f.svc.GetInvoice(ctx, orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, stored.Status)

	assert.ErrorIs(t, f.svc.MarkDelivered(ctx, orgID, domain.DocTypeInvoice, 4242), domain.ErrNotFound)
}

func TestSoftDeleteHidesDocument(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()
	invoice := f.createInvoice(t)

	require.NoError(t, f.svc.SoftDelete(ctx, orgID, domain.DocTypeInvoice, invoice.ID))
	_, err := f.svc.GetInvoice(ctx, orgID, invoice.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.TransitionInvoice(ctx, orgID, invoice.ID, domain.StatusSent)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.SoftDelete(ctx, orgID, domain.DocTypeInvoice, invoice.ID), domain.ErrNotFound)

	list, err := f.svc.ListInvoices(ctx, orgID, domain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Invoices)
}

func TestQuoteAcceptConvertFlow(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()

	quote, err := f.svc.CreateQuote(ctx, orgID, userID, domain.CreateQuoteRequest{ClientID: clientID, Lines: sampleLines()})
	require.NoError(t, err)
	assert.Equal(t, "DEV-2026-0001", quote.Number)

	_, err = f.svc.ConvertQuote(ctx, orgID, userID, quote.ID)
	assert.ErrorIs(t, err, domain.ErrQuoteNotAccepted)

	_, err = f.svc.TransitionQuote(ctx, orgID, quote.ID, domain.StatusAccepted, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.TransitionQuote(ctx, orgID, quote.ID, domain.StatusSent, "Jeanne")
	assert.ErrorIs(t, err, domain.ErrInvalidSignedBy)

	_, err = f.svc.TransitionQuote(ctx, orgID, quote.ID, domain.StatusSent, "")
	require.NoError(t, err)
	accepted, err := f.svc.TransitionQuote(ctx, orgID, quote.ID, domain.StatusAccepted, "Jeanne Martin")
	require.NoError(t, err)
	require.NotNil(t, accepted.SignedBy)
	assert.Equal(t, "Jeanne Martin", *accepted.SignedBy)
	assert.Equal(t, []string{notificationdomain.KindQuoteAccepted}, f.notifier.kinds())
	assert.Equal(t, userID, f.notifier.sent[0].UserID)

	invoice, err := f.svc.ConvertQuote(ctx, orgID, userID, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", invoice.Number)
	require.NotNil(t, invoice.QuoteID)
	assert.Equal(t, quote.ID, *invoice.QuoteID)
	assert.Equal(t, quote.Total, invoice.Total)
	assert.Len(t, invoice.Lines, 2)

	_, err = f.svc.ConvertQuote(ctx, orgID, userID, quote.ID)
	assert.ErrorIs(t, err, domain.ErrQuoteAlreadyConverted)
}

// staleConversionCheck reports no prior conversion, as a transaction that
// read before a concurrent conversion committed would.
type staleConversionCheck struct {
	domain.Repository
}

func (staleConversionCheck) HasInvoiceForQuote(context.Context, *gorm.DB, snowflake.ID, snowflake.ID) (bool, error) {
	return false, nil
}

func TestConcurrentConversionHitsUniqueQuoteIndex(t *testing.T) {
	f := setupWithRepo(t, config.PlanFree, staleConversionCheck{Repository: repository.NewRepository()})
	ctx := context.Background()

	quote, err := f.svc.CreateQuote(ctx, orgID, userID, domain.CreateQuoteRequest{ClientID: clientID, Lines: sampleLines()})
	require.NoError(t, err)
	_, err = f.svc.TransitionQuote(ctx, orgID, quote.ID, domain.StatusSent, "")
	require.NoError(t, err)
	_, err = f.svc.TransitionQuote(ctx, orgID, quote.ID, domain.StatusAccepted, "Jeanne Martin")
	require.NoError(t, err)

	_, err = f.svc.ConvertQuote(ctx, orgID, userID, quote.ID)
	require.NoError(t, err)

	_, err = f.svc.ConvertQuote(ctx, orgID, userID, quote.ID)
	assert.ErrorIs(t, err, domain.ErrQuoteAlreadyConverted)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, `SELECT COUNT(*) FROM invoices WHERE quote_id IS NOT NULL`))
}

func TestQuoteRejectNotifiesCreator(t *testing.T) {
	f := setup(t, config.PlanFree)
	ctx := context.Background()

	quote, err := f.svc.CreateQuote(ctx, orgID, userID, domain.CreateQuoteRequest{ClientID: clientID, Lines: sampleLines()})
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkDelivered(ctx, orgID, domain.DocTypeQuote, quote.ID))

	rejected, err := f.svc.TransitionQuote(ctx, orgID, quote.ID, domain.StatusRejected, "")
	require.NoError(t, err)
	assert.NotNil(t, rejected.RejectedAt)
	assert.Equal(t, []string{notificationdomain.KindQuoteRejected}, f.notifier.kinds())
}

func TestListInvoicesPaginatesAndFilters(t *testing.T) {
	f := setup(t, config.PlanPro)
	ctx := context.Background()

	var ids []snowflake.ID
	for i := 0; i < 5; i++ {
		ids = append(ids, f.createInvoice(t).ID)
	}
	require.NoError(t, f.svc.MarkDelivered(ctx, orgID, domain.DocTypeInvoice, ids[0]))

	page, err := f.svc.ListInvoices(ctx, orgID, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[4], page.Invoices[0].ID)

	var seen int
	token := ""
	for {
		page, err := f.svc.ListInvoices(ctx, orgID, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: token}})
		require.NoError(t, err)
		seen += len(page.Invoices)
		if !page.HasMore {
			break
		}
		token = page.NextPageToken
	}
	assert.Equal(t, 5, seen)

	sent, err := f.svc.ListInvoices(ctx, orgID, domain.ListRequest{Status: domain.StatusSent})
	require.NoError(t, err)
	require.Len(t, sent.Invoices, 1)
	assert.Equal(t, ids[0], sent.Invoices[0].ID)

	_, err = f.svc.ListInvoices(ctx, orgID, domain.ListRequest{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.ListInvoices(ctx, orgID, domain.ListRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.True(t, errors.Is(err, pagination.ErrInvalidPageToken))
}
