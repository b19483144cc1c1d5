package pagination_test

import (
	"testing"

	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"github.com/stretchr/testify/require"
)

func TestPageTrimsAndEmitsCursor(t *testing.T) {
	rows := []string{"5", "4", "3"}

	page, info := pagination.Page(rows, 2, func(s string) string { return s })
	require.Equal(t, []string{"5", "4"}, page)
	require.True(t, info.HasMore)

	cursor, err := pagination.DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	require.Equal(t, "4", cursor.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := pagination.DecodeCursor("%%%")
	require.ErrorIs(t, err, pagination.ErrInvalidPageToken)

	cursor, err := pagination.DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, cursor)
}

func TestLimitClamps(t *testing.T) {
	require.Equal(t, pagination.DefaultPageSize, pagination.Pagination{}.Limit())
	require.Equal(t, pagination.MaxPageSize, pagination.Pagination{PageSize: 1000}.Limit())
	require.Equal(t, 7, pagination.Pagination{PageSize: 7}.Limit())
}
