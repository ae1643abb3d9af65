package equipment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
)

var (
	// errors
	ErrNotFound           = errors.New("equipment not found")
	ErrAllocationNotFound = errors.New("allocation not found")
	ErrInvalidQuantity    = errors.New("quantity cannot drop below the allocated quantity")
	ErrInsufficientStock  = errors.New("not enough stock available")
)

type (
	Repository interface {
		CreateEquipment(ctx context.Context, eq Equipment) (Equipment, error)
		QueryEquipment(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]Equipment, error)
		// GetEquipmentByID applies the same scope predicate as QueryEquipment;
		// a row outside scp comes back as ErrNotFound.
		GetEquipmentByID(ctx context.Context, scp scope.Scope, id int) (Equipment, error)
		// UpdateEquipment shifts Available by the same delta as Quantity in a
		// single statement so concurrent allocations cannot observe a drift.
		UpdateEquipment(ctx context.Context, eq Equipment, quantityDelta int) (Equipment, error)
		ToggleEquipmentStatus(ctx context.Context, id int) (bool, error)
		DeleteEquipment(ctx context.Context, id int) error

		// CreateAllocation inserts the allocation and decrements the owning
		// equipment's available stock in one transaction.
		CreateAllocation(ctx context.Context, alloc Allocation) (Allocation, error)
		QueryAllocations(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]Allocation, error)
		// GetAllocationByID applies the same scope predicate as
		// QueryAllocations; a row outside scp comes back as
		// ErrAllocationNotFound.
		GetAllocationByID(ctx context.Context, scp scope.Scope, id int) (Allocation, error)
		// UpdateAllocationQuantity recomputes the owning equipment's available
		// stock as `available += old - new` in the same transaction as the
		// allocation row update; the two rows never change independently.
		UpdateAllocationQuantity(ctx context.Context, id, newQuantity int) (Allocation, error)
		ToggleAllocationStatus(ctx context.Context, id int) (bool, error)
		// DeleteAllocation returns the committed quantity to the equipment's
		// available stock in one transaction.
		DeleteAllocation(ctx context.Context, id int) error
	}

	Service interface {
		List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Equipment, error)
		ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Equipment, error)
		GetByID(ctx context.Context, ident scope.Identity, id int) (Equipment, error)
		Create(ctx context.Context, ident scope.Identity, ne NewEquipment) (Equipment, error)
		Update(ctx context.Context, ident scope.Identity, id int, ue UpdateEquipment) (Equipment, error)
		ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error)
		Delete(ctx context.Context, ident scope.Identity, id int) error

		ListAllocations(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Allocation, error)
		ListMyAllocations(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Allocation, error)
		Allocate(ctx context.Context, ident scope.Identity, na NewAllocation) (Allocation, error)
		UpdateAllocation(ctx context.Context, ident scope.Identity, id int, ua UpdateAllocation) (Allocation, error)
		ToggleAllocationStatus(ctx context.Context, ident scope.Identity, id int) (bool, error)
		DeleteAllocation(ctx context.Context, ident scope.Identity, id int) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Equipment, error) {
	scp := scope.Resolve(scope.Equipment, ident, scope.Options{})
	return svc.repo.QueryEquipment(ctx, scp, ordering)
}

func (svc *service) ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Equipment, error) {
	scp := scope.Resolve(scope.Equipment, ident, scope.Options{OwnedOnly: true})
	return svc.repo.QueryEquipment(ctx, scp, ordering)
}

func (svc *service) GetByID(ctx context.Context, ident scope.Identity, id int) (Equipment, error) {
	scp := scope.Resolve(scope.Equipment, ident, scope.Options{})
	return svc.repo.GetEquipmentByID(ctx, scp, id)
}

func (svc *service) Create(ctx context.Context, ident scope.Identity, ne NewEquipment) (Equipment, error) {
	now := time.Now().UTC()
	eq := Equipment{
		Name:      ne.Name,
		Quantity:  ne.Quantity,
		Available: ne.Quantity,
		CreatedBy: ident.UserID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateEquipment(ctx, eq)
}

// Update rejects any total that would drop below the quantity already
// committed to labs, before anything is written. The target is loaded through
// the caller's scope so rows outside it cannot be written to.
func (svc *service) Update(ctx context.Context, ident scope.Identity, id int, ue UpdateEquipment) (Equipment, error) {
	eq, err := svc.GetByID(ctx, ident, id)
	if err != nil {
		return Equipment{}, err
	}

	var delta int
	if ue.Quantity != nil {
		if *ue.Quantity < eq.Allocated() {
			return Equipment{}, core.NewValidationError(ErrInvalidQuantity,
				core.FieldError{Field: "quantity", Error: ErrInvalidQuantity.Error()})
		}
		delta = *ue.Quantity - eq.Quantity
		eq.Quantity = *ue.Quantity
	}
	if ue.Name != "" {
		eq.Name = ue.Name
	}
	eq.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEquipment(ctx, eq, delta)
}

func (svc *service) ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error) {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return false, err
	}
	return svc.repo.ToggleEquipmentStatus(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ident scope.Identity, id int) error {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteEquipment(ctx, id)
}

func (svc *service) ListAllocations(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Allocation, error) {
	scp := scope.Resolve(scope.Allocations, ident, scope.Options{})
	return svc.repo.QueryAllocations(ctx, scp, ordering)
}

func (svc *service) ListMyAllocations(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Allocation, error) {
	scp := scope.Resolve(scope.Allocations, ident, scope.Options{OwnedOnly: true})
	return svc.repo.QueryAllocations(ctx, scp, ordering)
}

// Allocate draws stock from an equipment row the caller can see; invisible
// rows fail as not found.
func (svc *service) Allocate(ctx context.Context, ident scope.Identity, na NewAllocation) (Allocation, error) {
	eq, err := svc.GetByID(ctx, ident, na.EquipmentID)
	if err != nil {
		return Allocation{}, err
	}
	if na.Quantity > eq.Available {
		return Allocation{}, core.NewValidationError(ErrInsufficientStock,
			core.FieldError{Field: "quantity", Error: ErrInsufficientStock.Error()})
	}

	now := time.Now().UTC()
	alloc := Allocation{
		EquipmentID: na.EquipmentID,
		LabID:       na.LabID,
		SchoolID:    na.SchoolID,
		Quantity:    na.Quantity,
		CreatedBy:   ident.UserID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateAllocation(ctx, alloc)
}

func (svc *service) UpdateAllocation(ctx context.Context, ident scope.Identity, id int, ua UpdateAllocation) (Allocation, error) {
	scp := scope.Resolve(scope.Allocations, ident, scope.Options{})
	alloc, err := svc.repo.GetAllocationByID(ctx, scp, id)
	if err != nil {
		return Allocation{}, err
	}
	// unscoped read: the stock check targets the equipment row backing an
	// allocation the caller has already been cleared for
	eq, err := svc.repo.GetEquipmentByID(ctx, scope.Scope{}, alloc.EquipmentID)
	if err != nil {
		return Allocation{}, err
	}
	// the freed quantity (old - new) flows back into available stock; a raise
	// must fit in what is currently available
	if ua.Quantity-alloc.Quantity > eq.Available {
		return Allocation{}, core.NewValidationError(ErrInsufficientStock,
			core.FieldError{Field: "quantity", Error: ErrInsufficientStock.Error()})
	}
	return svc.repo.UpdateAllocationQuantity(ctx, id, ua.Quantity)
}

func (svc *service) ToggleAllocationStatus(ctx context.Context, ident scope.Identity, id int) (bool, error) {
	scp := scope.Resolve(scope.Allocations, ident, scope.Options{})
	if _, err := svc.repo.GetAllocationByID(ctx, scp, id); err != nil {
		return false, err
	}
	return svc.repo.ToggleAllocationStatus(ctx, id)
}

func (svc *service) DeleteAllocation(ctx context.Context, ident scope.Identity, id int) error {
	scp := scope.Resolve(scope.Allocations, ident, scope.Options{})
	if _, err := svc.repo.GetAllocationByID(ctx, scp, id); err != nil {
		return err
	}
	return svc.repo.DeleteAllocation(ctx, id)
}
