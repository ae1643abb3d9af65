package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/scope"
)

type equipmentRepository struct {
	db *DB
}

var _ equipment.Repository = (*equipmentRepository)(nil) // interface compliance check

func NewEquipmentRepository(db *DB) *equipmentRepository {
	return &equipmentRepository{db: db}
}

func (repo *equipmentRepository) visible(eq equipment.Equipment, scp scope.Scope) bool {
	if scp.ActiveOnly && !eq.IsActive {
		return false
	}
	if scp.Kind == scope.KindOwner {
		return eq.CreatedBy == scp.OwnerID
	}
	return true
}

func (repo *equipmentRepository) allocVisible(alloc equipment.Allocation, scp scope.Scope) bool {
	if scp.ActiveOnly && !alloc.IsActive {
		return false
	}
	switch scp.Kind {
	case scope.KindLab:
		return alloc.LabID == scp.LabID
	case scope.KindState:
		sch, ok := repo.db.schools[alloc.SchoolID]
		return ok && sch.State == scp.State
	case scope.KindOwner:
		return alloc.CreatedBy == scp.OwnerID
	}
	return true
}

func (repo *equipmentRepository) denormalizeAlloc(a equipment.Allocation) equipment.Allocation {
	if eq, ok := repo.db.equipment[a.EquipmentID]; ok {
		a.EquipmentName = eq.Name
	}
	if l, ok := repo.db.labs[a.LabID]; ok {
		a.LabName = l.Name
	}
	return a
}

func (repo *equipmentRepository) CreateEquipment(_ context.Context, eq equipment.Equipment) (equipment.Equipment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	eq.ID = repo.db.nextPK()
	eq.CreatedAt = now
	eq.UpdatedAt = now
	repo.db.equipment[eq.ID] = &eq
	return eq, nil
}

func (repo *equipmentRepository) QueryEquipment(_ context.Context, scp scope.Scope, _ []core.DBOrdering) ([]equipment.Equipment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	items := make([]equipment.Equipment, 0, len(repo.db.equipment))
	for _, eq := range repo.db.equipment {
		if repo.visible(*eq, scp) {
			items = append(items, *eq)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (repo *equipmentRepository) GetEquipmentByID(_ context.Context, scp scope.Scope, id int) (equipment.Equipment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if eq, ok := repo.db.equipment[id]; ok && repo.visible(*eq, scp) {
		return *eq, nil
	}
	return equipment.Equipment{}, equipment.ErrNotFound
}

func (repo *equipmentRepository) UpdateEquipment(_ context.Context, eq equipment.Equipment, quantityDelta int) (equipment.Equipment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	existing, ok := repo.db.equipment[eq.ID]
	if !ok {
		return equipment.Equipment{}, equipment.ErrNotFound
	}
	eq.Quantity = existing.Quantity + quantityDelta
	eq.Available = existing.Available + quantityDelta
	eq.CreatedAt = existing.CreatedAt
	eq.UpdatedAt = time.Now().UTC()
	repo.db.equipment[eq.ID] = &eq
	return eq, nil
}

func (repo *equipmentRepository) ToggleEquipmentStatus(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	eq, ok := repo.db.equipment[id]
	if !ok {
		return false, equipment.ErrNotFound
	}
	eq.IsActive = !eq.IsActive
	eq.UpdatedAt = time.Now().UTC()
	return eq.IsActive, nil
}

func (repo *equipmentRepository) DeleteEquipment(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.equipment[id]; !ok {
		return equipment.ErrNotFound
	}
	delete(repo.db.equipment, id)
	return nil
}

func (repo *equipmentRepository) CreateAllocation(_ context.Context, alloc equipment.Allocation) (equipment.Allocation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	eq, ok := repo.db.equipment[alloc.EquipmentID]
	if !ok {
		return equipment.Allocation{}, equipment.ErrNotFound
	}
	if eq.Available < alloc.Quantity {
		return equipment.Allocation{}, equipment.ErrInsufficientStock
	}
	eq.Available -= alloc.Quantity

	now := time.Now().UTC()
	alloc.ID = repo.db.nextPK()
	alloc.CreatedAt = now
	alloc.UpdatedAt = now
	repo.db.allocs[alloc.ID] = &alloc
	return repo.denormalizeAlloc(alloc), nil
}

func (repo *equipmentRepository) QueryAllocations(_ context.Context, scp scope.Scope, _ []core.DBOrdering) ([]equipment.Allocation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	allocs := make([]equipment.Allocation, 0, len(repo.db.allocs))
	for _, alloc := range repo.db.allocs {
		if repo.allocVisible(*alloc, scp) {
			allocs = append(allocs, repo.denormalizeAlloc(*alloc))
		}
	}
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].ID < allocs[j].ID })
	return allocs, nil
}

func (repo *equipmentRepository) GetAllocationByID(_ context.Context, scp scope.Scope, id int) (equipment.Allocation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if alloc, ok := repo.db.allocs[id]; ok && repo.allocVisible(*alloc, scp) {
		return repo.denormalizeAlloc(*alloc), nil
	}
	return equipment.Allocation{}, equipment.ErrAllocationNotFound
}

func (repo *equipmentRepository) UpdateAllocationQuantity(_ context.Context, id, newQuantity int) (equipment.Allocation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	alloc, ok := repo.db.allocs[id]
	if !ok {
		return equipment.Allocation{}, equipment.ErrAllocationNotFound
	}
	eq, ok := repo.db.equipment[alloc.EquipmentID]
	if !ok {
		return equipment.Allocation{}, equipment.ErrNotFound
	}

	// available += old - new
	delta := alloc.Quantity - newQuantity
	if eq.Available+delta < 0 {
		return equipment.Allocation{}, equipment.ErrInsufficientStock
	}
	eq.Available += delta
	alloc.Quantity = newQuantity
	alloc.UpdatedAt = time.Now().UTC()
	return repo.denormalizeAlloc(*alloc), nil
}

func (repo *equipmentRepository) ToggleAllocationStatus(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	alloc, ok := repo.db.allocs[id]
	if !ok {
		return false, equipment.ErrAllocationNotFound
	}
	alloc.IsActive = !alloc.IsActive
	alloc.UpdatedAt = time.Now().UTC()
	return alloc.IsActive, nil
}

func (repo *equipmentRepository) DeleteAllocation(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	alloc, ok := repo.db.allocs[id]
	if !ok {
		return equipment.ErrAllocationNotFound
	}
	if eq, ok := repo.db.equipment[alloc.EquipmentID]; ok {
		eq.Available += alloc.Quantity
	}
	delete(repo.db.allocs, id)
	return nil
}
