package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/scope"
)

type dbEquipment struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	Quantity  int       `db:"quantity"`
	Available int       `db:"available"`
	CreatedBy int       `db:"created_by"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type dbAllocation struct {
	ID            int       `db:"id"`
	EquipmentID   int       `db:"equipment_id"`
	LabID         int       `db:"lab_id"`
	SchoolID      int       `db:"school_id"`
	Quantity      int       `db:"quantity"`
	CreatedBy     int       `db:"created_by"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	EquipmentName string    `db:"equipment_name"`
	LabName       string    `db:"lab_name"`
}

type equipmentRepository struct {
	db *sqlx.DB
}

var _ equipment.Repository = (*equipmentRepository)(nil) // interface compliance check

func NewEquipmentRepository(db *sqlx.DB) *equipmentRepository {
	return &equipmentRepository{db: db}
}

func (repo equipmentRepository) unrow(e dbEquipment) equipment.Equipment {
	return equipment.Equipment{
		ID:        e.ID,
		Name:      e.Name,
		Quantity:  e.Quantity,
		Available: e.Available,
		CreatedBy: e.CreatedBy,
		IsActive:  e.IsActive,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (repo equipmentRepository) unrowAlloc(a dbAllocation) equipment.Allocation {
	return equipment.Allocation{
		ID:            a.ID,
		EquipmentID:   a.EquipmentID,
		LabID:         a.LabID,
		SchoolID:      a.SchoolID,
		Quantity:      a.Quantity,
		CreatedBy:     a.CreatedBy,
		IsActive:      a.IsActive,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		EquipmentName: a.EquipmentName,
		LabName:       a.LabName,
	}
}

func (repo equipmentRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo equipmentRepository) CreateEquipment(ctx context.Context, eq equipment.Equipment) (equipment.Equipment, error) {
	now := time.Now().UTC()
	eq.CreatedAt = now
	eq.UpdatedAt = now

	stmt, args, err := psql.Insert("equipment").
		Columns("name", "quantity", "available", "created_by", "is_active", "created_at", "updated_at").
		Values(eq.Name, eq.Quantity, eq.Available, eq.CreatedBy, eq.IsActive, eq.CreatedAt, eq.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return equipment.Equipment{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowContext(ctx, stmt, args...).Scan(&eq.ID); err != nil {
		return equipment.Equipment{}, errors.Wrap(err, "inserting equipment")
	}
	return eq, nil
}

func (repo equipmentRepository) QueryEquipment(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]equipment.Equipment, error) {
	q := repo.scopeEquipment(psql.Select("*").From("equipment"), scp)
	q = applyOrdering(q, ordering, "created_at DESC")

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbEquipment
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying equipment")
	}
	items := make([]equipment.Equipment, 0, len(rows))
	for _, e := range rows {
		items = append(items, repo.unrow(e))
	}
	return items, nil
}

func (repo equipmentRepository) scopeEquipment(q sq.SelectBuilder, scp scope.Scope) sq.SelectBuilder {
	if scp.Kind == scope.KindOwner {
		q = q.Where(sq.Eq{"created_by": scp.OwnerID})
	}
	if scp.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	return q
}

func (repo equipmentRepository) GetEquipmentByID(ctx context.Context, scp scope.Scope, id int) (equipment.Equipment, error) {
	q := repo.scopeEquipment(psql.Select("*").From("equipment"), scp)
	stmt, args, err := q.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return equipment.Equipment{}, errors.Wrap(err, "building query")
	}
	var e dbEquipment
	if err = repo.db.GetContext(ctx, &e, stmt, args...); err != nil {
		return equipment.Equipment{}, repo.trapNoRowsErr(err, equipment.ErrNotFound, "getting equipment")
	}
	return repo.unrow(e), nil
}

// UpdateEquipment shifts available by quantityDelta in the same statement as
// the quantity change so the allocated count never drifts.
func (repo equipmentRepository) UpdateEquipment(ctx context.Context, eq equipment.Equipment, quantityDelta int) (equipment.Equipment, error) {
	eq.UpdatedAt = time.Now().UTC()

	stmt := `UPDATE equipment
		SET name = $1, quantity = quantity + $2, available = available + $2, is_active = $3, updated_at = $4
		WHERE id = $5
		RETURNING quantity, available`
	err := repo.db.QueryRowContext(ctx, stmt, eq.Name, quantityDelta, eq.IsActive, eq.UpdatedAt, eq.ID).
		Scan(&eq.Quantity, &eq.Available)
	if err != nil {
		return equipment.Equipment{}, repo.trapNoRowsErr(err, equipment.ErrNotFound, "updating equipment")
	}
	return eq, nil
}

func (repo equipmentRepository) ToggleEquipmentStatus(ctx context.Context, id int) (bool, error) {
	stmt := "UPDATE equipment SET is_active = NOT is_active, updated_at = $1 WHERE id = $2 RETURNING is_active"
	var isActive bool
	if err := repo.db.QueryRowContext(ctx, stmt, time.Now().UTC(), id).Scan(&isActive); err != nil {
		return false, repo.trapNoRowsErr(err, equipment.ErrNotFound, "toggling equipment status")
	}
	return isActive, nil
}

func (repo equipmentRepository) DeleteEquipment(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM equipment WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting equipment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return equipment.ErrNotFound
	}
	return nil
}

// selectAllocations joins the equipment and lab names for list views.
func (repo equipmentRepository) selectAllocations() sq.SelectBuilder {
	return psql.Select(
		"alloc.id", "alloc.equipment_id", "alloc.lab_id", "alloc.school_id", "alloc.quantity",
		"alloc.created_by", "alloc.is_active", "alloc.created_at", "alloc.updated_at",
		"equipment.name AS equipment_name", "lab.name AS lab_name",
	).
		From("equipment_allocation alloc").
		Join("equipment ON equipment.id = alloc.equipment_id").
		Join("lab ON lab.id = alloc.lab_id")
}

func (repo equipmentRepository) scopeAllocations(q sq.SelectBuilder, scp scope.Scope) sq.SelectBuilder {
	switch scp.Kind {
	case scope.KindLab:
		q = q.Where(sq.Eq{"alloc.lab_id": scp.LabID})
	case scope.KindState:
		q = q.Where(sq.Expr("alloc.school_id IN (SELECT id FROM school WHERE state = ?)", scp.State))
	case scope.KindOwner:
		q = q.Where(sq.Eq{"alloc.created_by": scp.OwnerID})
	}
	if scp.ActiveOnly {
		q = q.Where(sq.Eq{"alloc.is_active": true})
	}
	return q
}

// CreateAllocation inserts the allocation row and takes the quantity out of
// the equipment's available stock in one transaction. The stock UPDATE is
// guarded so a concurrent allocation cannot overdraw it.
func (repo equipmentRepository) CreateAllocation(ctx context.Context, alloc equipment.Allocation) (equipment.Allocation, error) {
	now := time.Now().UTC()
	alloc.CreatedAt = now
	alloc.UpdatedAt = now

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return equipment.Allocation{}, errors.Wrap(err, "starting transaction")
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE equipment SET available = available - $1, updated_at = $2 WHERE id = $3 AND available >= $1",
		alloc.Quantity, now, alloc.EquipmentID)
	if err != nil {
		_ = tx.Rollback()
		return equipment.Allocation{}, errors.Wrap(err, "reserving stock")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return equipment.Allocation{}, equipment.ErrInsufficientStock
	}

	stmt, args, err := psql.Insert("equipment_allocation").
		Columns("equipment_id", "lab_id", "school_id", "quantity", "created_by", "is_active", "created_at", "updated_at").
		Values(alloc.EquipmentID, alloc.LabID, alloc.SchoolID, alloc.Quantity, alloc.CreatedBy, alloc.IsActive, alloc.CreatedAt, alloc.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		_ = tx.Rollback()
		return equipment.Allocation{}, errors.Wrap(err, "building query")
	}
	if err = tx.QueryRowContext(ctx, stmt, args...).Scan(&alloc.ID); err != nil {
		_ = tx.Rollback()
		return equipment.Allocation{}, errors.Wrap(err, "inserting allocation")
	}

	if err = tx.Commit(); err != nil {
		return equipment.Allocation{}, errors.Wrap(err, "committing transaction")
	}
	return alloc, nil
}

func (repo equipmentRepository) QueryAllocations(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]equipment.Allocation, error) {
	q := repo.scopeAllocations(repo.selectAllocations(), scp)
	q = applyOrdering(q, ordering, "alloc.created_at DESC")

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []dbAllocation
	if err = repo.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying allocations")
	}
	allocs := make([]equipment.Allocation, 0, len(rows))
	for _, a := range rows {
		allocs = append(allocs, repo.unrowAlloc(a))
	}
	return allocs, nil
}

func (repo equipmentRepository) GetAllocationByID(ctx context.Context, scp scope.Scope, id int) (equipment.Allocation, error) {
	q := repo.scopeAllocations(repo.selectAllocations(), scp)
	stmt, args, err := q.Where(sq.Eq{"alloc.id": id}).ToSql()
	if err != nil {
		return equipment.Allocation{}, errors.Wrap(err, "building query")
	}
	var a dbAllocation
	if err = repo.db.GetContext(ctx, &a, stmt, args...); err != nil {
		return equipment.Allocation{}, repo.trapNoRowsErr(err, equipment.ErrAllocationNotFound, "getting allocation")
	}
	return repo.unrowAlloc(a), nil
}

// UpdateAllocationQuantity moves the difference between the old and new
// quantity back into (or out of) the equipment's available stock. Both rows
// change in the same transaction; raising the allocation past the available
// stock fails the guarded UPDATE and rolls back.
func (repo equipmentRepository) UpdateAllocationQuantity(ctx context.Context, id, newQuantity int) (equipment.Allocation, error) {
	now := time.Now().UTC()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return equipment.Allocation{}, errors.Wrap(err, "starting transaction")
	}

	var a dbAllocation
	if err = tx.GetContext(ctx, &a, "SELECT * FROM equipment_allocation WHERE id = $1 FOR UPDATE", id); err != nil {
		_ = tx.Rollback()
		return equipment.Allocation{}, repo.trapNoRowsErr(err, equipment.ErrAllocationNotFound, "getting allocation")
	}

	// available += old - new
	delta := a.Quantity - newQuantity
	res, err := tx.ExecContext(ctx,
		"UPDATE equipment SET available = available + $1, updated_at = $2 WHERE id = $3 AND available + $1 >= 0",
		delta, now, a.EquipmentID)
	if err != nil {
		_ = tx.Rollback()
		return equipment.Allocation{}, errors.Wrap(err, "adjusting stock")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return equipment.Allocation{}, equipment.ErrInsufficientStock
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE equipment_allocation SET quantity = $1, updated_at = $2 WHERE id = $3",
		newQuantity, now, id); err != nil {
		_ = tx.Rollback()
		return equipment.Allocation{}, errors.Wrap(err, "updating allocation")
	}

	if err = tx.Commit(); err != nil {
		return equipment.Allocation{}, errors.Wrap(err, "committing transaction")
	}
	a.Quantity = newQuantity
	a.UpdatedAt = now
	return repo.unrowAlloc(a), nil
}

func (repo equipmentRepository) ToggleAllocationStatus(ctx context.Context, id int) (bool, error) {
	stmt := "UPDATE equipment_allocation SET is_active = NOT is_active, updated_at = $1 WHERE id = $2 RETURNING is_active"
	var isActive bool
	if err := repo.db.QueryRowContext(ctx, stmt, time.Now().UTC(), id).Scan(&isActive); err != nil {
		return false, repo.trapNoRowsErr(err, equipment.ErrAllocationNotFound, "toggling allocation status")
	}
	return isActive, nil
}

// DeleteAllocation returns the committed quantity to the equipment's
// available stock in the same transaction as the row removal.
func (repo equipmentRepository) DeleteAllocation(ctx context.Context, id int) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}

	var a dbAllocation
	if err = tx.GetContext(ctx, &a, "SELECT * FROM equipment_allocation WHERE id = $1 FOR UPDATE", id); err != nil {
		_ = tx.Rollback()
		return repo.trapNoRowsErr(err, equipment.ErrAllocationNotFound, "getting allocation")
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE equipment SET available = available + $1, updated_at = $2 WHERE id = $3",
		a.Quantity, time.Now().UTC(), a.EquipmentID); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "returning stock")
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM equipment_allocation WHERE id = $1", id); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "deleting allocation")
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
