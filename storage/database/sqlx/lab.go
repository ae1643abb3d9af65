package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/scope"
)

type dbLab struct {
	ID          int       `db:"id"`
	SchoolID    int       `db:"school_id"`
	LabTypeID   int       `db:"lab_type_id"`
	Name        string    `db:"name"`
	CreatedBy   int       `db:"created_by"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	SchoolName  string    `db:"school_name"`
	SchoolState string    `db:"school_state"`
}

type dbLabType struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

type labRepository struct {
	db *sqlx.DB
}

var _ lab.Repository = (*labRepository)(nil) // interface compliance check

func NewLabRepository(db *sqlx.DB) *labRepository {
	return &labRepository{db: db}
}

func (repo labRepository) unrow(l dbLab) lab.Lab {
	return lab.Lab{
		ID:          l.ID,
		SchoolID:    l.SchoolID,
		LabTypeID:   l.LabTypeID,
		Name:        l.Name,
		CreatedBy:   l.CreatedBy,
		IsActive:    l.IsActive,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
		SchoolName:  l.SchoolName,
		SchoolState: l.SchoolState,
	}
}

func (repo labRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return lab.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// selectLabs joins the owning school so list views carry its name and state.
func (repo labRepository) selectLabs() sq.SelectBuilder {
	return psql.Select(
		"lab.id", "lab.school_id", "lab.lab_type_id", "lab.name", "lab.created_by",
		"lab.is_active", "lab.created_at", "lab.updated_at",
		"school.name AS school_name", "school.state AS school_state",
	).
		From("lab").
		Join("school ON school.id = lab.school_id")
}

func (repo labRepository) scopeQuery(q sq.SelectBuilder, scp scope.Scope) sq.SelectBuilder {
	switch scp.Kind {
	case scope.KindLab:
		q = q.Where(sq.Eq{"lab.id": scp.LabID})
	case scope.KindState:
		q = q.Where(sq.Eq{"school.state": scp.State})
	case scope.KindOwner:
		q = q.Where(sq.Eq{"lab.created_by": scp.OwnerID})
	}
	if scp.ActiveOnly {
		q = q.Where(sq.Eq{"lab.is_active": true})
	}
	return q
}

func (repo labRepository) CreateLab(ctx context.Context, l lab.Lab) (lab.Lab, error) {
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	stmt, args, err := psql.Insert("lab").
		Columns("school_id", "lab_type_id", "name", "created_by", "is_active", "created_at", "updated_at").
		Values(l.SchoolID, l.LabTypeID, l.Name, l.CreatedBy, l.IsActive, l.CreatedAt, l.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return lab.Lab{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowContext(ctx, stmt, args...).Scan(&l.ID); err != nil {
		return lab.Lab{}, errors.Wrap(err, "inserting lab")
	}
	return l, nil
}

func (repo labRepository) QueryLabs(ctx context.Context, scp scope.Scope, filter *lab.QueryFilter, ordering []core.DBOrdering) ([]lab.Lab, error) {
	q := repo.scopeQuery(repo.selectLabs(), scp)
	if filter != nil {
		if filter.State != "" {
			q = q.Where(sq.Eq{"school.state": filter.State})
		}
		if filter.SchoolID != 0 {
			q = q.Where(sq.Eq{"lab.school_id": filter.SchoolID})
		}
	}
	q = applyOrdering(q, ordering, "lab.created_at DESC")

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbLab
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying labs")
	}
	labs := make([]lab.Lab, 0, len(rows))
	for _, l := range rows {
		labs = append(labs, repo.unrow(l))
	}
	return labs, nil
}

func (repo labRepository) GetLabByID(ctx context.Context, scp scope.Scope, id int) (lab.Lab, error) {
	q := repo.scopeQuery(repo.selectLabs(), scp)
	stmt, args, err := q.Where(sq.Eq{"lab.id": id}).ToSql()
	if err != nil {
		return lab.Lab{}, errors.Wrap(err, "building query")
	}
	var l dbLab
	if err = repo.db.GetContext(ctx, &l, stmt, args...); err != nil {
		return lab.Lab{}, repo.trapNoRowsErr(err, "getting lab")
	}
	return repo.unrow(l), nil
}

func (repo labRepository) UpdateLab(ctx context.Context, l lab.Lab) (lab.Lab, error) {
	l.UpdatedAt = time.Now().UTC()

	stmt, args, err := psql.Update("lab").
		SetMap(map[string]interface{}{
			"lab_type_id": l.LabTypeID,
			"name":        l.Name,
			"is_active":   l.IsActive,
			"updated_at":  l.UpdatedAt,
		}).
		Where(sq.Eq{"id": l.ID}).
		ToSql()
	if err != nil {
		return lab.Lab{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return lab.Lab{}, errors.Wrap(err, "updating lab")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lab.Lab{}, lab.ErrNotFound
	}
	return l, nil
}

func (repo labRepository) ToggleLabStatus(ctx context.Context, id int) (bool, error) {
	stmt := "UPDATE lab SET is_active = NOT is_active, updated_at = $1 WHERE id = $2 RETURNING is_active"
	var isActive bool
	if err := repo.db.QueryRowContext(ctx, stmt, time.Now().UTC(), id).Scan(&isActive); err != nil {
		return false, repo.trapNoRowsErr(err, "toggling lab status")
	}
	return isActive, nil
}

func (repo labRepository) DeleteLab(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM lab WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting lab")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lab.ErrNotFound
	}
	return nil
}

func (repo labRepository) CheckLabTypeUniqueness(ctx context.Context, name string) error {
	stmt, args, err := psql.Select("COUNT(*)").From("lab_type").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.GetContext(ctx, &count, stmt, args...); err != nil {
		return errors.Wrap(err, "checking lab type uniqueness")
	}
	if count > 0 {
		return lab.ErrLabTypeExists
	}
	return nil
}

func (repo labRepository) CreateLabType(ctx context.Context, lt lab.LabType) (lab.LabType, error) {
	lt.CreatedAt = time.Now().UTC()

	stmt, args, err := psql.Insert("lab_type").
		Columns("name", "is_active", "created_at").
		Values(lt.Name, lt.IsActive, lt.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return lab.LabType{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowContext(ctx, stmt, args...).Scan(&lt.ID); err != nil {
		return lab.LabType{}, errors.Wrap(err, "inserting lab type")
	}
	return lt, nil
}

func (repo labRepository) QueryLabTypes(ctx context.Context) ([]lab.LabType, error) {
	stmt, args, err := psql.Select("*").From("lab_type").OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbLabType
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying lab types")
	}
	types := make([]lab.LabType, 0, len(rows))
	for _, lt := range rows {
		types = append(types, lab.LabType{ID: lt.ID, Name: lt.Name, IsActive: lt.IsActive, CreatedAt: lt.CreatedAt})
	}
	return types, nil
}
