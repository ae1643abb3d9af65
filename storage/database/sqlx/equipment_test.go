package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/equipment"
)

func allocationRows(a dbAllocation) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "equipment_id", "lab_id", "school_id", "quantity",
		"created_by", "is_active", "created_at", "updated_at",
	}).AddRow(a.ID, a.EquipmentID, a.LabID, a.SchoolID, a.Quantity, a.CreatedBy, a.IsActive, a.CreatedAt, a.UpdatedAt)
}

func TestEquipmentRepository_CreateAllocation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEquipmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE equipment SET available = available - $1, updated_at = $2 WHERE id = $3 AND available >= $1")).
		WithArgs(5, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO equipment_allocation").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()

	alloc, err := repo.CreateAllocation(context.Background(), equipment.Allocation{
		EquipmentID: 2, LabID: 4, SchoolID: 1, Quantity: 5, IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateAllocation() error = %v", err)
	}
	if alloc.ID != 9 {
		t.Errorf("CreateAllocation() ID = %d, want 9", alloc.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEquipmentRepository_CreateAllocation_insufficientStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEquipmentRepository(db)

	// the guarded UPDATE matches no row when available < quantity
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE equipment SET available").
		WithArgs(50, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.CreateAllocation(context.Background(), equipment.Allocation{EquipmentID: 2, Quantity: 50})
	if !errors.Is(err, equipment.ErrInsufficientStock) {
		t.Fatalf("CreateAllocation() error = %v, want %v", err, equipment.ErrInsufficientStock)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEquipmentRepository_UpdateAllocationQuantity(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEquipmentRepository(db)

	now := time.Now().UTC()
	existing := dbAllocation{ID: 9, EquipmentID: 2, LabID: 4, SchoolID: 1, Quantity: 10, IsActive: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM equipment_allocation WHERE id = $1 FOR UPDATE")).
		WithArgs(9).
		WillReturnRows(allocationRows(existing))
	// available += old - new, i.e. +4 when dropping 10 -> 6
	mock.ExpectExec(regexp.QuoteMeta("UPDATE equipment SET available = available + $1, updated_at = $2 WHERE id = $3 AND available + $1 >= 0")).
		WithArgs(4, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE equipment_allocation SET quantity = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(6, sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	alloc, err := repo.UpdateAllocationQuantity(context.Background(), 9, 6)
	if err != nil {
		t.Fatalf("UpdateAllocationQuantity() error = %v", err)
	}
	if alloc.Quantity != 6 {
		t.Errorf("UpdateAllocationQuantity() Quantity = %d, want 6", alloc.Quantity)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEquipmentRepository_UpdateAllocationQuantity_insufficientStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEquipmentRepository(db)

	now := time.Now().UTC()
	existing := dbAllocation{ID: 9, EquipmentID: 2, LabID: 4, SchoolID: 1, Quantity: 10, IsActive: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM equipment_allocation WHERE id = $1 FOR UPDATE")).
		WithArgs(9).
		WillReturnRows(allocationRows(existing))
	mock.ExpectExec("UPDATE equipment SET available").
		WithArgs(-40, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.UpdateAllocationQuantity(context.Background(), 9, 50)
	if !errors.Is(err, equipment.ErrInsufficientStock) {
		t.Fatalf("UpdateAllocationQuantity() error = %v, want %v", err, equipment.ErrInsufficientStock)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEquipmentRepository_DeleteAllocation_returnsStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEquipmentRepository(db)

	now := time.Now().UTC()
	existing := dbAllocation{ID: 9, EquipmentID: 2, LabID: 4, SchoolID: 1, Quantity: 10, IsActive: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM equipment_allocation WHERE id = $1 FOR UPDATE")).
		WithArgs(9).
		WillReturnRows(allocationRows(existing))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE equipment SET available = available + $1, updated_at = $2 WHERE id = $3")).
		WithArgs(10, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM equipment_allocation WHERE id = $1")).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.DeleteAllocation(context.Background(), 9); err != nil {
		t.Fatalf("DeleteAllocation() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
