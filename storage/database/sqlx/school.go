package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/scope"
)

type dbSchool struct {
	ID           int       `db:"id"`
	Name         string    `db:"name"`
	UDISE        string    `db:"udise"`
	State        string    `db:"state"`
	District     string    `db:"district"`
	InchargeName string    `db:"incharge_name"`
	CreatedBy    int       `db:"created_by"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) row(sch school.School) dbSchool {
	return dbSchool{
		ID:           sch.ID,
		Name:         sch.Name,
		UDISE:        sch.UDISE,
		State:        sch.State,
		District:     sch.District,
		InchargeName: sch.InchargeName,
		CreatedBy:    sch.CreatedBy,
		IsActive:     sch.IsActive,
		CreatedAt:    sch.CreatedAt.UTC(),
		UpdatedAt:    sch.UpdatedAt.UTC(),
	}
}

func (repo schoolRepository) unrow(s dbSchool) school.School {
	return school.School{
		ID:           s.ID,
		Name:         s.Name,
		UDISE:        s.UDISE,
		State:        s.State,
		District:     s.District,
		InchargeName: s.InchargeName,
		CreatedBy:    s.CreatedBy,
		IsActive:     s.IsActive,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (repo schoolRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return school.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// scopeQuery narrows the base SELECT to the rows visible under scp.
func (repo schoolRepository) scopeQuery(q sq.SelectBuilder, scp scope.Scope) sq.SelectBuilder {
	switch scp.Kind {
	case scope.KindSchoolOfLab:
		q = q.Where(sq.Expr("id IN (SELECT school_id FROM lab WHERE id = ?)", scp.LabID))
	case scope.KindState:
		q = q.Where(sq.Eq{"state": scp.State})
	case scope.KindOwner:
		q = q.Where(sq.Eq{"created_by": scp.OwnerID})
	}
	if scp.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	return q
}

func (repo schoolRepository) CheckUDISEUniqueness(ctx context.Context, udise string) error {
	stmt, args, err := psql.Select("COUNT(*)").From("school").Where(sq.Eq{"udise": udise}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.GetContext(ctx, &count, stmt, args...); err != nil {
		return errors.Wrap(err, "checking school uniqueness")
	}
	if count > 0 {
		return school.ErrUDISEExists
	}
	return nil
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	now := time.Now().UTC()
	sch.CreatedAt = now
	sch.UpdatedAt = now
	s := repo.row(sch)

	stmt, args, err := psql.Insert("school").
		Columns("name", "udise", "state", "district", "incharge_name", "created_by", "is_active", "created_at", "updated_at").
		Values(s.Name, s.UDISE, s.State, s.District, s.InchargeName, s.CreatedBy, s.IsActive, s.CreatedAt, s.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return school.School{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowContext(ctx, stmt, args...).Scan(&sch.ID); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]school.School, error) {
	q := repo.scopeQuery(psql.Select("*").From("school"), scp)
	q = applyOrdering(q, ordering, "created_at DESC")

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbSchool
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, s := range rows {
		schools = append(schools, repo.unrow(s))
	}
	return schools, nil
}

// GetSchoolByID carries the scope predicate into the lookup, so an id outside
// the caller's visibility reads as a missing row.
func (repo schoolRepository) GetSchoolByID(ctx context.Context, scp scope.Scope, id int) (school.School, error) {
	q := repo.scopeQuery(psql.Select("*").From("school"), scp)
	stmt, args, err := q.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return school.School{}, errors.Wrap(err, "building query")
	}
	var s dbSchool
	if err = repo.db.GetContext(ctx, &s, stmt, args...); err != nil {
		return school.School{}, repo.trapNoRowsErr(err, "getting school")
	}
	return repo.unrow(s), nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.UpdatedAt = time.Now().UTC()
	s := repo.row(sch)

	stmt, args, err := psql.Update("school").
		SetMap(map[string]interface{}{
			"name":          s.Name,
			"state":         s.State,
			"district":      s.District,
			"incharge_name": s.InchargeName,
			"is_active":     s.IsActive,
			"updated_at":    s.UpdatedAt,
		}).
		Where(sq.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return school.School{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}

func (repo schoolRepository) ToggleSchoolStatus(ctx context.Context, id int) (bool, error) {
	stmt := "UPDATE school SET is_active = NOT is_active, updated_at = $1 WHERE id = $2 RETURNING is_active"
	var isActive bool
	if err := repo.db.QueryRowContext(ctx, stmt, time.Now().UTC(), id).Scan(&isActive); err != nil {
		return false, repo.trapNoRowsErr(err, "toggling school status")
	}
	return isActive, nil
}

// DeleteSchoolWithLabs removes the school and everything hosted in it. The
// school's labs, their allocations and sessions all go in one transaction so
// a failure midway leaves the school intact.
func (repo schoolRepository) DeleteSchoolWithLabs(ctx context.Context, id int) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}

	stmts := []string{
		"DELETE FROM equipment_allocation WHERE school_id = $1",
		"DELETE FROM session WHERE lab_id IN (SELECT id FROM lab WHERE school_id = $1)",
		"DELETE FROM lab WHERE school_id = $1",
		"DELETE FROM student WHERE school_id = $1",
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "deleting school dependents")
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM school WHERE id = $1", id)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "deleting school")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return school.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
