package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	documentrepository "github.com/smallbiznis/atelier/internal/document/repository"
	publicinvoicedomain "github.com/smallbiznis/atelier/internal/publicinvoice/domain"
	"github.com/smallbiznis/atelier/internal/publicinvoice/repository"
	"github.com/smallbiznis/atelier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgID     snowflake.ID = 1
	clientID  snowflake.ID = 20
	invoiceID snowflake.ID = 300
)

func seed(t *testing.T, status documentdomain.Status) (publicinvoicedomain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.InsertOrg(t, db, testutil.OrgFixture{ID: orgID, Name: "Studio Lune", StripePublishableKey: "pk_test_123"})
	testutil.InsertContact(t, db, orgID, clientID, "Atelier Dupont")

	ctx := context.Background()
	docs := documentrepository.NewRepository()
	issued := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	due := issued.AddDate(0, 0, 30)
	require.NoError(t, docs.InsertInvoice(ctx, db, documentdomain.Invoice{
		ID:        invoiceID,
		OrgID:     orgID,
		Number:    "FAC-2026-0003",
		ClientID:  clientID,
		CreatedBy: 5,
		Status:    status,
		Currency:  "EUR",
		Subtotal:  15000,
		VATAmount: 3000,
		Total:     18000,
		IssueDate: issued,
		DueDate:   &due,
		CreatedAt: issued,
		UpdatedAt: issued,
	}))
	require.NoError(t, docs.InsertLines(ctx, db, []documentdomain.Line{{
		ID:           301,
		OrgID:        orgID,
		DocumentType: documentdomain.DocTypeInvoice,
		DocumentID:   invoiceID,
		Position:     0,
		Description:  "Logo design",
		Quantity:     decimal.NewFromInt(3),
		UnitPrice:    5000,
		VATRate:      decimal.NewFromInt(20),
		Subtotal:     15000,
		VATAmount:    3000,
		Total:        18000,
	}}))

	return New(Params{DB: db, Repo: repository.Provide(), Log: zap.NewNop()}), db
}

func TestGetInvoiceSnapshot(t *testing.T) {
	svc, _ := seed(t, documentdomain.StatusSent)

	view, err := svc.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0003", view.Number)
	assert.Equal(t, "Studio Lune", view.OrgName)
	assert.Equal(t, "pk_test_123", view.PublishableKey)
	assert.Equal(t, "Atelier Dupont", view.ClientName)
	assert.Equal(t, "2026-04-02", view.IssueDate)
	assert.Equal(t, "2026-05-02", view.DueDate)
	assert.EqualValues(t, 18000, view.Total)
	assert.True(t, view.Payable)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Logo design", view.Lines[0].Description)
	assert.True(t, view.Lines[0].Quantity.Equal(decimal.NewFromInt(3)))
}

func TestGetInvoiceHidesDraftsAndDeleted(t *testing.T) {
	svc, _ := seed(t, documentdomain.StatusDraft)
	_, err := svc.GetInvoice(context.Background(), invoiceID)
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvoiceUnavailable)

	svc, db := seed(t, documentdomain.StatusSent)
	require.NoError(t, db.Exec(`UPDATE invoices SET deleted_at = ? WHERE id = ?`, time.Now().UTC(), invoiceID).Error)
	_, err = svc.GetInvoice(context.Background(), invoiceID)
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvoiceUnavailable)

	_, err = svc.GetInvoice(context.Background(), 999)
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvoiceUnavailable)
}

func TestGetInvoiceReportsPaid(t *testing.T) {
	svc, _ := seed(t, documentdomain.StatusPaid)
	_, err := svc.GetInvoice(context.Background(), invoiceID)
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvoiceAlreadyPaid)
}

func TestCancelledInvoiceIsVisibleButNotPayable(t *testing.T) {
	svc, _ := seed(t, documentdomain.StatusCancelled)
	view, err := svc.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.False(t, view.Payable)
}
