package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/notification/repository"
	"github.com/smallbiznis/atelier/internal/testutil"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticMembers struct {
	ids []snowflake.ID
	err error
}

func (m staticMembers) MemberIDs(context.Context, snowflake.ID) ([]snowflake.ID, error) {
	return m.ids, m.err
}

// rejectingRepo fails inserts addressed to one user.
type rejectingRepo struct {
	domain.Repository
	userID snowflake.ID
	err    error
}

func (r rejectingRepo) Insert(ctx context.Context, db *gorm.DB, n domain.Notification) error {
	if n.UserID == r.userID {
		return r.err
	}
	return r.Repository.Insert(ctx, db, n)
}

func newTestService(t *testing.T, members domain.MemberLister) (domain.Service, *gorm.DB) {
	t.Helper()
	return newTestServiceWithRepo(t, members, repository.NewRepository())
}

func newTestServiceWithRepo(t *testing.T, members domain.MemberLister, repo domain.Repository) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(Params{
		DB:      db,
		Repo:    repo,
		Members: members,
		GenID:   testutil.NewNode(t),
		Clock:   clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)),
		Log:     zap.NewNop(),
	}), db
}

func TestNotifyUserStoresData(t *testing.T) {
	svc, db := newTestService(t, staticMembers{})
	ctx := context.Background()

	err := svc.NotifyUser(ctx, 1, 10, domain.Message{
		Kind:  domain.KindInvoicePaid,
		Title: "Invoice paid",
		Body:  "FAC-2026-0001 was paid",
		Data:  map[string]any{"invoice_id": "123"},
	})
	require.NoError(t, err)

	items, info, err := svc.List(ctx, 1, 10, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, info.HasMore)
	assert.Equal(t, domain.KindInvoicePaid, items[0].Kind)
	assert.JSONEq(t, `{"invoice_id":"123"}`, string(items[0].Data))
	assert.EqualValues(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications WHERE user_id = ?`, 10))
}

func TestNotifyUserRejectsMissingKind(t *testing.T) {
	svc, _ := newTestService(t, staticMembers{})

	err := svc.NotifyUser(context.Background(), 1, 10, domain.Message{})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	err = svc.NotifyUser(context.Background(), 1, 0, domain.Message{Kind: domain.KindPayoutPaid})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestNotifyMembersFansOut(t *testing.T) {
	svc, db := newTestService(t, staticMembers{ids: []snowflake.ID{10, 11, 12}})

	err := svc.NotifyMembers(context.Background(), 1, domain.Message{Kind: domain.KindPayoutFailed, Title: "Payout failed"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications WHERE org_id = ? AND kind = ?`, 1, domain.KindPayoutFailed))
}

func TestNotifyMembersPropagatesLookupError(t *testing.T) {
	lookupErr := errors.New("boom")
	svc, _ := newTestService(t, staticMembers{err: lookupErr})

	err := svc.NotifyMembers(context.Background(), 1, domain.Message{Kind: domain.KindPayoutPaid})
	assert.ErrorIs(t, err, lookupErr)
}

func TestNotifyMembersAttemptsEveryRecipient(t *testing.T) {
	insertErr := errors.New("insert failed")
	svc, db := newTestServiceWithRepo(t, staticMembers{ids: []snowflake.ID{10, 11, 12}},
		rejectingRepo{Repository: repository.NewRepository(), userID: 11, err: insertErr})

	err := svc.NotifyMembers(context.Background(), 1, domain.Message{Kind: domain.KindDisputeCreated, Title: "Dispute opened"})
	assert.ErrorIs(t, err, insertErr)

	var recipients []snowflake.ID
	require.NoError(t, db.Raw(`SELECT user_id FROM notifications WHERE org_id = ? ORDER BY user_id`, 1).Scan(&recipients).Error)
	assert.Equal(t, []snowflake.ID{10, 12}, recipients)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _ := newTestService(t, staticMembers{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.NotifyUser(ctx, 1, 10, domain.Message{Kind: domain.KindQuoteAccepted}))
	}

	first, info, err := svc.List(ctx, 1, 10, pagination.Pagination{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.True(t, info.HasMore)
	assert.Greater(t, first[0].ID, first[1].ID)

	second, info, err := svc.List(ctx, 1, 10, pagination.Pagination{PageSize: 3, PageToken: info.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.False(t, info.HasMore)
	assert.Less(t, second[0].ID, first[2].ID)
}

func TestMarkRead(t *testing.T) {
	svc, _ := newTestService(t, staticMembers{})
	ctx := context.Background()

	require.NoError(t, svc.NotifyUser(ctx, 1, 10, domain.Message{Kind: domain.KindQuoteRejected}))
	items, _, err := svc.List(ctx, 1, 10, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.MarkRead(ctx, 1, 10, items[0].ID))
	assert.ErrorIs(t, svc.MarkRead(ctx, 1, 10, items[0].ID), domain.ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, 1, 99, items[0].ID), domain.ErrNotFound)
}
