package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/sequence/domain"
	"github.com/smallbiznis/atelier/internal/sequence/repository"
	"github.com/smallbiznis/atelier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(Params{
		DB:    db,
		Repo:  repository.NewRepository(),
		Clock: clock.NewFakeClock(time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)),
		Log:   zap.NewNop(),
	}), db
}

func next(t *testing.T, svc domain.Service, db *gorm.DB, docType domain.DocType) string {
	t.Helper()
	var number string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = svc.Next(context.Background(), tx, 1, docType)
		return err
	})
	require.NoError(t, err)
	return number
}

func TestNextIsGaplessPerDocType(t *testing.T) {
	svc, db := newTestService(t)

	assert.Equal(t, "FAC-2026-0001", next(t, svc, db, domain.DocTypeInvoice))
	assert.Equal(t, "FAC-2026-0002", next(t, svc, db, domain.DocTypeInvoice))
	assert.Equal(t, "DEV-2026-0001", next(t, svc, db, domain.DocTypeQuote))
	assert.Equal(t, "FAC-2026-0003", next(t, svc, db, domain.DocTypeInvoice))
}

func TestRolledBackNumberIsReused(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	assert.Equal(t, "FAC-2026-0001", next(t, svc, db, domain.DocTypeInvoice))

	abort := errors.New("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		number, err := svc.Next(ctx, tx, 1, domain.DocTypeInvoice)
		require.NoError(t, err)
		assert.Equal(t, "FAC-2026-0002", number)
		return abort
	})
	require.ErrorIs(t, err, abort)

	assert.Equal(t, "FAC-2026-0002", next(t, svc, db, domain.DocTypeInvoice))
}

func TestConcurrentNextProducesDistinctNumbers(t *testing.T) {
	svc, db := newTestService(t)
	const workers = 20

	var (
		mu      sync.Mutex
		numbers = map[string]struct{}{}
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var number string
			err := db.Transaction(func(tx *gorm.DB) error {
				var err error
				number, err = svc.Next(context.Background(), tx, 1, domain.DocTypeInvoice)
				return err
			})
			assert.NoError(t, err)
			mu.Lock()
			numbers[number] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, workers)
	_, ok := numbers["FAC-2026-0020"]
	assert.True(t, ok)

	seq, err := svc.Get(context.Background(), 1, domain.DocTypeInvoice)
	require.NoError(t, err)
	assert.EqualValues(t, workers, seq.CurrentNumber)
}

func TestGetReturnsDefaultsWithoutRow(t *testing.T) {
	svc, db := newTestService(t)

	seq, err := svc.Get(context.Background(), 1, domain.DocTypeQuote)
	require.NoError(t, err)
	assert.Equal(t, "DEV", seq.Prefix)
	assert.EqualValues(t, 0, seq.CurrentNumber)
	assert.EqualValues(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM document_sequences`))

	preview, err := svc.Preview(context.Background(), 1, domain.DocTypeQuote)
	require.NoError(t, err)
	assert.Equal(t, "DEV-2026-0001", preview)
}

func TestUpdateConfigRejectsRewind(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		next(t, svc, db, domain.DocTypeInvoice)
	}

	lower := int64(2)
	_, err := svc.UpdateConfig(ctx, 1, domain.DocTypeInvoice, domain.UpdateRequest{CurrentNumber: &lower})
	assert.ErrorIs(t, err, domain.ErrSequenceRewind)

	higher := int64(100)
	prefix := "INV"
	include := false
	seq, err := svc.UpdateConfig(ctx, 1, domain.DocTypeInvoice, domain.UpdateRequest{
		CurrentNumber: &higher,
		Prefix:        &prefix,
		IncludeYear:   &include,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 100, seq.CurrentNumber)

	preview, err := svc.Preview(ctx, 1, domain.DocTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, "INV-0101", preview)
	assert.Equal(t, "INV-0101", next(t, svc, db, domain.DocTypeInvoice))
}

func TestInvalidDocType(t *testing.T) {
	svc, db := newTestService(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Next(context.Background(), tx, 1, "receipt")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDocType)
}
