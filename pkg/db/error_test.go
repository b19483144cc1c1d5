package db_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/atelier/internal/testutil"
	"github.com/smallbiznis/atelier/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm translated", err: errors.Wrap(gorm.ErrDuplicatedKey, "insert"), want: true},
		{name: "postgres unique violation", err: errors.Wrap(&pgconn.PgError{Code: "23505"}, "insert"), want: true},
		{name: "postgres other violation", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "unrelated", err: errors.New("connection reset"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, db.IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestIsDuplicateKeyErrOnSQLite(t *testing.T) {
	conn := testutil.NewDB(t)
	require.NoError(t, conn.Exec(`CREATE TABLE unique_ids (id INTEGER PRIMARY KEY)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO unique_ids (id) VALUES (1)`).Error)

	err := conn.Exec(`INSERT INTO unique_ids (id) VALUES (1)`).Error
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))
}

func TestActiveClauseFor(t *testing.T) {
	assert.Equal(t, "i.deleted_at IS NULL", db.ActiveClauseFor("i"))
}
