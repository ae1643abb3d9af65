package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/activity"
)

type dbActivity struct {
	ID        string    `db:"id"`
	UserID    int       `db:"user_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo activityRepository) CreateActivity(ctx context.Context, act activity.Activity) error {
	stmt, args, err := psql.Insert("activity").
		Columns("id", "user_id", "message", "created_at").
		Values(act.ID, act.UserID, act.Message, act.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "inserting activity")
	}
	return nil
}

func (repo activityRepository) QueryActivities(ctx context.Context, userID int, ordering []core.DBOrdering) ([]activity.Activity, error) {
	q := psql.Select("*").From("activity")
	if userID != 0 {
		q = q.Where(sq.Eq{"user_id": userID})
	}
	q = applyOrdering(q, ordering, "created_at DESC")

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbActivity
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	acts := make([]activity.Activity, 0, len(rows))
	for _, a := range rows {
		acts = append(acts, activity.Activity{ID: a.ID, UserID: a.UserID, Message: a.Message, CreatedAt: a.CreatedAt})
	}
	return acts, nil
}
