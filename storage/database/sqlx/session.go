package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
	"github.com/trezcool/maabara/core/session"
)

type dbSession struct {
	ID          int       `db:"id"`
	LabID       int       `db:"lab_id"`
	Topic       string    `db:"topic"`
	Host        string    `db:"host"`
	ScheduledOn time.Time `db:"scheduled_on"`
	CreatedBy   int       `db:"created_by"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	LabName     string    `db:"lab_name"`
	SchoolState string    `db:"school_state"`
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) unrow(s dbSession) session.Session {
	return session.Session{
		ID:          s.ID,
		LabID:       s.LabID,
		Topic:       s.Topic,
		Host:        s.Host,
		ScheduledOn: s.ScheduledOn,
		CreatedBy:   s.CreatedBy,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		LabName:     s.LabName,
		SchoolState: s.SchoolState,
	}
}

func (repo sessionRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo sessionRepository) selectSessions() sq.SelectBuilder {
	return psql.Select(
		"session.id", "session.lab_id", "session.topic", "session.host", "session.scheduled_on",
		"session.created_by", "session.is_active", "session.created_at", "session.updated_at",
		"lab.name AS lab_name", "school.state AS school_state",
	).
		From("session").
		Join("lab ON lab.id = session.lab_id").
		Join("school ON school.id = lab.school_id")
}

func (repo sessionRepository) scopeQuery(q sq.SelectBuilder, scp scope.Scope) sq.SelectBuilder {
	switch scp.Kind {
	case scope.KindLab:
		q = q.Where(sq.Eq{"session.lab_id": scp.LabID})
	case scope.KindState:
		q = q.Where(sq.Eq{"school.state": scp.State})
	case scope.KindOwner:
		q = q.Where(sq.Eq{"session.created_by": scp.OwnerID})
	}
	if scp.ActiveOnly {
		q = q.Where(sq.Eq{"session.is_active": true})
	}
	return q
}

func (repo sessionRepository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	stmt, args, err := psql.Insert("session").
		Columns("lab_id", "topic", "host", "scheduled_on", "created_by", "is_active", "created_at", "updated_at").
		Values(s.LabID, s.Topic, s.Host, s.ScheduledOn.UTC(), s.CreatedBy, s.IsActive, s.CreatedAt, s.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowContext(ctx, stmt, args...).Scan(&s.ID); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, scp scope.Scope, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	q := repo.scopeQuery(repo.selectSessions(), scp)
	if filter != nil {
		if filter.ID != 0 {
			q = q.Where(sq.Eq{"session.id": filter.ID})
		}
		if filter.Host != "" {
			q = q.Where(sq.Expr("session.host ILIKE ?", filter.Host))
		}
		if filter.State != "" {
			q = q.Where(sq.Eq{"school.state": filter.State})
		}
		if !filter.From.IsZero() {
			q = q.Where(sq.GtOrEq{"session.scheduled_on": filter.From.UTC()})
		}
		if !filter.To.IsZero() {
			q = q.Where(sq.LtOrEq{"session.scheduled_on": filter.To.UTC()})
		}
	}
	q = applyOrdering(q, ordering, "session.scheduled_on DESC")

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbSession
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, s := range rows {
		sessions = append(sessions, repo.unrow(s))
	}
	return sessions, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, scp scope.Scope, id int) (session.Session, error) {
	q := repo.scopeQuery(repo.selectSessions(), scp)
	stmt, args, err := q.Where(sq.Eq{"session.id": id}).ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building query")
	}
	var s dbSession
	if err = repo.db.GetContext(ctx, &s, stmt, args...); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "getting session")
	}
	return repo.unrow(s), nil
}

func (repo sessionRepository) UpdateSession(ctx context.Context, s session.Session) (session.Session, error) {
	s.UpdatedAt = time.Now().UTC()

	stmt, args, err := psql.Update("session").
		SetMap(map[string]interface{}{
			"topic":        s.Topic,
			"host":         s.Host,
			"scheduled_on": s.ScheduledOn.UTC(),
			"is_active":    s.IsActive,
			"updated_at":   s.UpdatedAt,
		}).
		Where(sq.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (repo sessionRepository) ToggleSessionStatus(ctx context.Context, id int) (bool, error) {
	stmt := "UPDATE session SET is_active = NOT is_active, updated_at = $1 WHERE id = $2 RETURNING is_active"
	var isActive bool
	if err := repo.db.QueryRowContext(ctx, stmt, time.Now().UTC(), id).Scan(&isActive); err != nil {
		return false, repo.trapNoRowsErr(err, "toggling session status")
	}
	return isActive, nil
}

func (repo sessionRepository) DeleteSession(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM session WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNotFound
	}
	return nil
}
