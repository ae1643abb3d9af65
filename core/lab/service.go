package lab

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
)

var (
	// errors
	ErrNotFound        = errors.New("lab not found")
	ErrLabTypeNotFound = errors.New("lab type not found")
	ErrLabTypeExists   = errors.New("a lab type with this name already exists")
)

type (
	Repository interface {
		CreateLab(ctx context.Context, l Lab) (Lab, error)
		QueryLabs(ctx context.Context, scp scope.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Lab, error)
		// GetLabByID applies the same scope predicate as QueryLabs; a row
		// outside scp comes back as ErrNotFound.
		GetLabByID(ctx context.Context, scp scope.Scope, id int) (Lab, error)
		UpdateLab(ctx context.Context, l Lab) (Lab, error)
		ToggleLabStatus(ctx context.Context, id int) (bool, error)
		DeleteLab(ctx context.Context, id int) error

		CheckLabTypeUniqueness(ctx context.Context, name string) error
		CreateLabType(ctx context.Context, lt LabType) (LabType, error)
		QueryLabTypes(ctx context.Context) ([]LabType, error)
	}

	Service interface {
		List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Lab, error)
		ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Lab, error)
		Filter(ctx context.Context, ident scope.Identity, filter QueryFilter) ([]Lab, error)
		GetByID(ctx context.Context, ident scope.Identity, id int) (Lab, error)
		Create(ctx context.Context, ident scope.Identity, nl NewLab) (Lab, error)
		Update(ctx context.Context, ident scope.Identity, id int, ul UpdateLab) (Lab, error)
		ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error)
		Delete(ctx context.Context, ident scope.Identity, id int) error

		CreateType(ctx context.Context, nt NewLabType) (LabType, error)
		ListTypes(ctx context.Context) ([]LabType, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Lab, error) {
	scp := scope.Resolve(scope.Labs, ident, scope.Options{})
	return svc.repo.QueryLabs(ctx, scp, nil, ordering)
}

func (svc *service) ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Lab, error) {
	scp := scope.Resolve(scope.Labs, ident, scope.Options{OwnedOnly: true})
	return svc.repo.QueryLabs(ctx, scp, nil, ordering)
}

func (svc *service) Filter(ctx context.Context, ident scope.Identity, filter QueryFilter) ([]Lab, error) {
	scp := scope.Resolve(scope.Labs, ident, scope.Options{})
	f := &filter
	if f.IsEmpty() {
		f = nil
	}
	return svc.repo.QueryLabs(ctx, scp, f, nil)
}

func (svc *service) GetByID(ctx context.Context, ident scope.Identity, id int) (Lab, error) {
	scp := scope.Resolve(scope.Labs, ident, scope.Options{})
	return svc.repo.GetLabByID(ctx, scp, id)
}

func (svc *service) Create(ctx context.Context, ident scope.Identity, nl NewLab) (Lab, error) {
	now := time.Now().UTC()
	l := Lab{
		SchoolID:  nl.SchoolID,
		LabTypeID: nl.LabTypeID,
		Name:      nl.Name,
		CreatedBy: ident.UserID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateLab(ctx, l)
}

func (svc *service) Update(ctx context.Context, ident scope.Identity, id int, ul UpdateLab) (Lab, error) {
	l, err := svc.GetByID(ctx, ident, id)
	if err != nil {
		return Lab{}, err
	}

	if ul.Name != "" {
		l.Name = ul.Name
	}
	if ul.LabTypeID != 0 {
		l.LabTypeID = ul.LabTypeID
	}
	l.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLab(ctx, l)
}

func (svc *service) ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error) {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return false, err
	}
	return svc.repo.ToggleLabStatus(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ident scope.Identity, id int) error {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteLab(ctx, id)
}

func (svc *service) CreateType(ctx context.Context, nt NewLabType) (LabType, error) {
	if err := svc.repo.CheckLabTypeUniqueness(ctx, nt.Name); err != nil {
		if errors.Cause(err) == ErrLabTypeExists {
			return LabType{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: ErrLabTypeExists.Error()})
		}
		return LabType{}, err
	}
	lt := LabType{
		Name:      nt.Name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateLabType(ctx, lt)
}

func (svc *service) ListTypes(ctx context.Context) ([]LabType, error) {
	return svc.repo.QueryLabTypes(ctx)
}
