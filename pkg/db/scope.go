package db

// ActiveClause hides soft-deleted rows in hand-written statements. Every read
// of a table carrying deleted_at includes it.
const ActiveClause = "deleted_at IS NULL"

// ActiveClauseFor is ActiveClause for a table alias, used in joins.
func ActiveClauseFor(alias string) string {
	return alias + "." + ActiveClause
}
