package sqlxrepos

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/maabara/core"
)

// psql builds queries with postgres-style $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// applyOrdering appends ORDER BY clauses, falling back to the given default
// when the caller did not ask for any ordering.
func applyOrdering(q sq.SelectBuilder, ordering []core.DBOrdering, fallback string) sq.SelectBuilder {
	if len(ordering) == 0 {
		return q.OrderBy(fallback)
	}
	for _, ord := range ordering {
		q = q.OrderBy(ord.String())
	}
	return q
}
