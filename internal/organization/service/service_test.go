package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/organization/repository"
	"github.com/smallbiznis/atelier/internal/secret"
	"github.com/smallbiznis/atelier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *secret.Cipher) {
	t.Helper()
	db := testutil.NewDB(t)
	cipher, err := secret.New("test-secret")
	require.NoError(t, err)
	svc := NewService(Params{
		DB:     db,
		Repo:   repository.NewRepository(db),
		GenID:  testutil.NewNode(t),
		Cipher: cipher,
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)),
		Log:    zap.NewNop(),
	})
	return svc, db, cipher
}

func TestCreateAddsOwnerAndStartsPeriod(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, 42, domain.CreateRequest{Name: "  Atelier Dupont "})
	require.NoError(t, err)
	assert.Equal(t, "Atelier Dupont", org.Name)
	assert.Equal(t, domain.PlanFree, org.Plan)
	assert.Equal(t, "2026-03", org.CountersPeriod)
	assert.Contains(t, org.Slug, "atelier-dupont-")

	members, err := svc.MemberIDs(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.EqualValues(t, 42, members[0])

	assert.EqualValues(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM organizations WHERE id = ?`, org.ID))
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 0, domain.CreateRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = svc.Create(ctx, 1, domain.CreateRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, 1, domain.CreateRequest{Name: "x", Plan: "enterprise"})
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)

	_, err = svc.Create(ctx, 1, domain.CreateRequest{Name: "x", CommissionRate: decimal.RequireFromString("0.9")})
	assert.ErrorIs(t, err, domain.ErrInvalidCommissionRate)
}

func TestGetMissingOrganization(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetStripeCredentialsStoresSealedKey(t *testing.T) {
	svc, _, cipher := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, 1, domain.CreateRequest{Name: "Studio", Plan: domain.PlanPro})
	require.NoError(t, err)

	err = svc.SetStripeCredentials(ctx, org.ID, domain.StripeCredentialsRequest{
		SecretKey:      "sk_test_123",
		PublishableKey: "pk_test_123",
	})
	require.NoError(t, err)

	stored, err := svc.Get(ctx, org.ID)
	require.NoError(t, err)
	require.True(t, stored.HasOwnStripeKey())
	assert.NotContains(t, *stored.StripeSecretKeyEnc, "sk_test_123")
	assert.Equal(t, "pk_test_123", *stored.StripePublishableKey)

	plain, err := cipher.Decrypt(*stored.StripeSecretKeyEnc)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", plain)
}

func TestSetStripeCredentialsValidatesKeys(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.SetStripeCredentials(ctx, 1, domain.StripeCredentialsRequest{SecretKey: "pk_wrong", PublishableKey: "pk_x"})
	assert.ErrorIs(t, err, domain.ErrInvalidSecretKey)

	err = svc.SetStripeCredentials(ctx, 1, domain.StripeCredentialsRequest{SecretKey: "sk_x", PublishableKey: "sk_x"})
	assert.ErrorIs(t, err, domain.ErrInvalidPublishableKey)

	err = svc.SetStripeCredentials(ctx, 1, domain.StripeCredentialsRequest{SecretKey: "sk_x", PublishableKey: "pk_x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLinkConnectAccountAndPlatformRouting(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, 1, domain.CreateRequest{Name: "Free", CommissionRate: decimal.RequireFromString("0.05")})
	require.NoError(t, err)
	assert.True(t, org.RoutesThroughPlatform())

	assert.ErrorIs(t, svc.LinkConnectAccount(ctx, org.ID, "ba_123"), domain.ErrInvalidAccountID)
	require.NoError(t, svc.LinkConnectAccount(ctx, org.ID, "acct_123"))

	stored, err := svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", stored.ConnectAccountID())

	require.NoError(t, svc.ChangePlan(ctx, org.ID, domain.PlanStarter, decimal.Zero))
	stored, err = svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.False(t, stored.RoutesThroughPlatform())
}
