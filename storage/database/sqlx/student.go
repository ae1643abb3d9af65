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
	"github.com/trezcool/maabara/core/student"
)

type dbStudent struct {
	ID        int       `db:"id"`
	SchoolID  int       `db:"school_id"`
	Name      string    `db:"name"`
	Aadhar    string    `db:"aadhar"`
	Grade     string    `db:"grade"`
	CreatedBy int       `db:"created_by"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) unrow(s dbStudent) student.Student {
	return student.Student{
		ID:        s.ID,
		SchoolID:  s.SchoolID,
		Name:      s.Name,
		Aadhar:    s.Aadhar,
		Grade:     s.Grade,
		CreatedBy: s.CreatedBy,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// Students scope like schools: an assigned lab narrows to that lab's school,
// a state officer or mentor sees their state.
func (repo studentRepository) scopeQuery(q sq.SelectBuilder, scp scope.Scope) sq.SelectBuilder {
	switch scp.Kind {
	case scope.KindSchoolOfLab:
		q = q.Where(sq.Expr("school_id IN (SELECT school_id FROM lab WHERE id = ?)", scp.LabID))
	case scope.KindState:
		q = q.Where(sq.Expr("school_id IN (SELECT id FROM school WHERE state = ?)", scp.State))
	case scope.KindOwner:
		q = q.Where(sq.Eq{"created_by": scp.OwnerID})
	}
	if scp.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	return q
}

func (repo studentRepository) CheckAadharUniqueness(ctx context.Context, aadhar string) error {
	stmt, args, err := psql.Select("COUNT(*)").From("student").Where(sq.Eq{"aadhar": aadhar}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.GetContext(ctx, &count, stmt, args...); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	if count > 0 {
		return student.ErrAadharExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	stmt, args, err := psql.Insert("student").
		Columns("school_id", "name", "aadhar", "grade", "created_by", "is_active", "created_at", "updated_at").
		Values(st.SchoolID, st.Name, st.Aadhar, st.Grade, st.CreatedBy, st.IsActive, st.CreatedAt, st.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowContext(ctx, stmt, args...).Scan(&st.ID); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]student.Student, error) {
	q := repo.scopeQuery(psql.Select("*").From("student"), scp)
	q = applyOrdering(q, ordering, "created_at DESC")

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbStudent
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, s := range rows {
		students = append(students, repo.unrow(s))
	}
	return students, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, scp scope.Scope, id int) (student.Student, error) {
	q := repo.scopeQuery(psql.Select("*").From("student"), scp)
	stmt, args, err := q.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}
	var s dbStudent
	if err = repo.db.GetContext(ctx, &s, stmt, args...); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "getting student")
	}
	return repo.unrow(s), nil
}

func (repo studentRepository) GetStudentByAadhar(ctx context.Context, scp scope.Scope, aadhar string) (student.Student, error) {
	q := repo.scopeQuery(psql.Select("*").From("student"), scp)
	stmt, args, err := q.Where(sq.Eq{"aadhar": aadhar}).ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}
	var s dbStudent
	if err = repo.db.GetContext(ctx, &s, stmt, args...); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "getting student")
	}
	return repo.unrow(s), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	st.UpdatedAt = time.Now().UTC()

	stmt, args, err := psql.Update("student").
		SetMap(map[string]interface{}{
			"name":       st.Name,
			"grade":      st.Grade,
			"is_active":  st.IsActive,
			"updated_at": st.UpdatedAt,
		}).
		Where(sq.Eq{"id": st.ID}).
		ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return st, nil
}

func (repo studentRepository) ToggleStudentStatus(ctx context.Context, id int) (bool, error) {
	stmt := "UPDATE student SET is_active = NOT is_active, updated_at = $1 WHERE id = $2 RETURNING is_active"
	var isActive bool
	if err := repo.db.QueryRowContext(ctx, stmt, time.Now().UTC(), id).Scan(&isActive); err != nil {
		return false, repo.trapNoRowsErr(err, "toggling student status")
	}
	return isActive, nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM student WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.ErrNotFound
	}
	return nil
}
