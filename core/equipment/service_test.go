package equipment

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
)

// fakeRepo records writes so tests can assert nothing was mutated on a
// rejected update.
type fakeRepo struct {
	Repository // panics on anything not overridden

	equipment   map[int]Equipment
	allocations map[int]Allocation
	updates     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		equipment:   make(map[int]Equipment),
		allocations: make(map[int]Allocation),
	}
}

func (r *fakeRepo) GetEquipmentByID(_ context.Context, scp scope.Scope, id int) (Equipment, error) {
	eq, ok := r.equipment[id]
	if !ok || (scp.Kind == scope.KindOwner && eq.CreatedBy != scp.OwnerID) {
		return Equipment{}, ErrNotFound
	}
	return eq, nil
}

func (r *fakeRepo) UpdateEquipment(_ context.Context, eq Equipment, delta int) (Equipment, error) {
	eq.Available += delta
	r.equipment[eq.ID] = eq
	r.updates++
	return eq, nil
}

func (r *fakeRepo) GetAllocationByID(_ context.Context, scp scope.Scope, id int) (Allocation, error) {
	alloc, ok := r.allocations[id]
	if !ok || (scp.Kind == scope.KindOwner && alloc.CreatedBy != scp.OwnerID) {
		return Allocation{}, ErrAllocationNotFound
	}
	return alloc, nil
}

func (r *fakeRepo) UpdateAllocationQuantity(_ context.Context, id, newQuantity int) (Allocation, error) {
	alloc := r.allocations[id]
	eq := r.equipment[alloc.EquipmentID]
	eq.Available += alloc.Quantity - newQuantity
	alloc.Quantity = newQuantity
	r.equipment[eq.ID] = eq
	r.allocations[id] = alloc
	r.updates++
	return alloc, nil
}

func intPtr(i int) *int { return &i }

var testAdmin = scope.Identity{UserID: 1, Role: scope.RoleAdmin}

func TestServiceUpdateQuantityGuard(t *testing.T) {
	repo := newFakeRepo()
	// quantity=100, available=20 => 80 allocated
	repo.equipment[1] = Equipment{ID: 1, Name: "Microscope", Quantity: 100, Available: 20, IsActive: true}
	svc := NewService(repo)
	ctx := context.Background()

	// dropping the total below the allocated quantity is rejected before
	// anything is written
	_, err := svc.Update(ctx, testAdmin, 1, UpdateEquipment{Quantity: intPtr(50)})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Update() error = %v, want *core.ValidationError", err)
	}
	if errors.Cause(vErr.Err) != ErrInvalidQuantity {
		t.Errorf("Update() cause = %v, want %v", vErr.Err, ErrInvalidQuantity)
	}
	if repo.updates != 0 {
		t.Errorf("Update() wrote %d times on a rejected update", repo.updates)
	}
	if eq := repo.equipment[1]; eq.Quantity != 100 || eq.Available != 20 {
		t.Errorf("equipment mutated on rejected update: %+v", eq)
	}

	// exactly the allocated quantity is allowed and empties available stock
	eq, err := svc.Update(ctx, testAdmin, 1, UpdateEquipment{Quantity: intPtr(80)})
	if err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if eq.Quantity != 80 || eq.Available != 0 {
		t.Errorf("Update() = quantity %d available %d, want 80/0", eq.Quantity, eq.Available)
	}

	// raising the total grows available stock by the same delta
	eq, err = svc.Update(ctx, testAdmin, 1, UpdateEquipment{Quantity: intPtr(100)})
	if err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if eq.Quantity != 100 || eq.Available != 20 {
		t.Errorf("Update() = quantity %d available %d, want 100/20", eq.Quantity, eq.Available)
	}
}

func TestServiceUpdateAllocationStockGuard(t *testing.T) {
	repo := newFakeRepo()
	repo.equipment[1] = Equipment{ID: 1, Name: "Burette", Quantity: 100, Available: 10, IsActive: true}
	repo.allocations[5] = Allocation{ID: 5, EquipmentID: 1, LabID: 7, SchoolID: 3, Quantity: 30, IsActive: true}
	svc := NewService(repo)
	ctx := context.Background()

	// raising past available stock is rejected
	if _, err := svc.UpdateAllocation(ctx, testAdmin, 5, UpdateAllocation{Quantity: 41}); err == nil {
		t.Fatal("UpdateAllocation() expected error, got nil")
	}
	if repo.updates != 0 {
		t.Errorf("UpdateAllocation() wrote %d times on a rejected update", repo.updates)
	}

	// lowering frees stock: available += old - new
	alloc, err := svc.UpdateAllocation(ctx, testAdmin, 5, UpdateAllocation{Quantity: 10})
	if err != nil {
		t.Fatalf("UpdateAllocation(): %v", err)
	}
	if alloc.Quantity != 10 {
		t.Errorf("UpdateAllocation() quantity = %d, want 10", alloc.Quantity)
	}
	if eq := repo.equipment[1]; eq.Available != 30 {
		t.Errorf("available = %d, want 30", eq.Available)
	}
}

func TestServiceAllocateStockGuard(t *testing.T) {
	repo := newFakeRepo()
	repo.equipment[1] = Equipment{ID: 1, Name: "Beaker", Quantity: 50, Available: 5, CreatedBy: 9, IsActive: true}
	svc := NewService(repo)
	ident := scope.Identity{UserID: 9, Role: scope.RoleMentor, State: "Kerala"}

	_, err := svc.Allocate(context.Background(), ident, NewAllocation{EquipmentID: 1, LabID: 2, SchoolID: 3, Quantity: 6})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Allocate() error = %v, want *core.ValidationError", err)
	}
	if errors.Cause(vErr.Err) != ErrInsufficientStock {
		t.Errorf("Allocate() cause = %v, want %v", vErr.Err, ErrInsufficientStock)
	}
}

func TestServiceMutationsScopedToOwner(t *testing.T) {
	repo := newFakeRepo()
	repo.equipment[1] = Equipment{ID: 1, Name: "Telescope", Quantity: 3, Available: 3, CreatedBy: 1, IsActive: true}
	svc := NewService(repo)
	ctx := context.Background()
	outsider := scope.Identity{UserID: 9, Role: scope.RoleMentor, State: "Kerala"}

	// another owner's equipment reads as missing for every mutation
	if _, err := svc.Update(ctx, outsider, 1, UpdateEquipment{Quantity: intPtr(1)}); errors.Cause(err) != ErrNotFound {
		t.Errorf("Update() error = %v, want %v", err, ErrNotFound)
	}
	if _, err := svc.ToggleStatus(ctx, outsider, 1); errors.Cause(err) != ErrNotFound {
		t.Errorf("ToggleStatus() error = %v, want %v", err, ErrNotFound)
	}
	if err := svc.Delete(ctx, outsider, 1); errors.Cause(err) != ErrNotFound {
		t.Errorf("Delete() error = %v, want %v", err, ErrNotFound)
	}
	if _, err := svc.Allocate(ctx, outsider, NewAllocation{EquipmentID: 1, LabID: 2, SchoolID: 3, Quantity: 1}); errors.Cause(err) != ErrNotFound {
		t.Errorf("Allocate() error = %v, want %v", err, ErrNotFound)
	}
	if repo.updates != 0 {
		t.Errorf("repo written %d times by out-of-scope calls", repo.updates)
	}
}
