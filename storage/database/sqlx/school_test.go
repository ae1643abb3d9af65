package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/scope"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestSchoolRepository_DeleteSchoolWithLabs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSchoolRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM equipment_allocation WHERE school_id = $1")).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM session WHERE lab_id IN (SELECT id FROM lab WHERE school_id = $1)")).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lab WHERE school_id = $1")).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student WHERE school_id = $1")).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM school WHERE id = $1")).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.DeleteSchoolWithLabs(context.Background(), 7); err != nil {
		t.Fatalf("DeleteSchoolWithLabs() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSchoolRepository_DeleteSchoolWithLabs_notFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSchoolRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM equipment_allocation").WithArgs(404).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM session").WithArgs(404).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM lab").WithArgs(404).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM student").WithArgs(404).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM school").WithArgs(404).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteSchoolWithLabs(context.Background(), 404)
	if !errors.Is(err, school.ErrNotFound) {
		t.Fatalf("DeleteSchoolWithLabs() error = %v, want %v", err, school.ErrNotFound)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSchoolRepository_DeleteSchoolWithLabs_rollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSchoolRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM equipment_allocation").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM session").WithArgs(7).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	if err := repo.DeleteSchoolWithLabs(context.Background(), 7); err == nil {
		t.Fatal("DeleteSchoolWithLabs() expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSchoolRepository_ToggleSchoolStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE school SET is_active = NOT is_active, updated_at = $1 WHERE id = $2 RETURNING is_active")).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))

	isActive, err := repo.ToggleSchoolStatus(context.Background(), 3)
	if err != nil {
		t.Fatalf("ToggleSchoolStatus() error = %v", err)
	}
	if isActive {
		t.Error("ToggleSchoolStatus() = true, want false")
	}
}

func TestSchoolRepository_ToggleSchoolStatus_notFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSchoolRepository(db)

	mock.ExpectQuery("UPDATE school SET is_active").
		WithArgs(sqlmock.AnyArg(), 404).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))

	_, err := repo.ToggleSchoolStatus(context.Background(), 404)
	if !errors.Is(err, school.ErrNotFound) {
		t.Fatalf("ToggleSchoolStatus() error = %v, want %v", err, school.ErrNotFound)
	}
}

func TestSchoolRepository_GetSchoolByID_scoping(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSchoolRepository(db)

	// the lookup carries the scope predicate, so an id outside the
	// caller's state yields no row
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM school WHERE state = $1 AND id = $2")).
		WithArgs("Telangana", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "udise", "state", "district", "incharge_name", "created_by", "is_active", "created_at", "updated_at"}))

	scp := scope.Scope{Kind: scope.KindState, State: "Telangana"}
	_, err := repo.GetSchoolByID(context.Background(), scp, 5)
	if !errors.Is(err, school.ErrNotFound) {
		t.Fatalf("GetSchoolByID() error = %v, want %v", err, school.ErrNotFound)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSchoolRepository_QuerySchools_scoping(t *testing.T) {
	tests := []struct {
		name     string
		scp      scope.Scope
		wantStmt string
		args     []driver.Value
	}{
		{
			name:     "unrestricted",
			scp:      scope.Scope{Kind: scope.KindAll},
			wantStmt: "SELECT * FROM school ORDER BY created_at DESC",
		},
		{
			name:     "state",
			scp:      scope.Scope{Kind: scope.KindState, State: "Kano"},
			wantStmt: "SELECT * FROM school WHERE state = $1 ORDER BY created_at DESC",
			args:     []driver.Value{"Kano"},
		},
		{
			name:     "school of assigned lab",
			scp:      scope.Scope{Kind: scope.KindSchoolOfLab, LabID: 12},
			wantStmt: "SELECT * FROM school WHERE id IN (SELECT school_id FROM lab WHERE id = $1) ORDER BY created_at DESC",
			args:     []driver.Value{12},
		},
		{
			name:     "active only",
			scp:      scope.Scope{Kind: scope.KindState, State: "Kano", ActiveOnly: true},
			wantStmt: "SELECT * FROM school WHERE state = $1 AND is_active = $2 ORDER BY created_at DESC",
			args:     []driver.Value{"Kano", true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewSchoolRepository(db)

			mock.ExpectQuery(regexp.QuoteMeta(tt.wantStmt)).
				WithArgs(tt.args...).
				WillReturnRows(sqlmock.NewRows([]string{"id", "name", "udise", "state", "district", "incharge_name", "created_by", "is_active", "created_at", "updated_at"}))

			if _, err := repo.QuerySchools(context.Background(), tt.scp, nil); err != nil {
				t.Fatalf("QuerySchools() error = %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}
