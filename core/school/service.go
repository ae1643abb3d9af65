package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
)

var (
	// errors
	ErrNotFound    = errors.New("school not found")
	ErrUDISEExists = errors.New("a school with this UDISE code already exists")
)

type (
	Repository interface {
		CheckUDISEUniqueness(ctx context.Context, udise string) error
		CreateSchool(ctx context.Context, sch School) (School, error)
		// QuerySchools returns the rows visible under scp, ordered by ordering.
		QuerySchools(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]School, error)
		// GetSchoolByID applies the same scope predicate as QuerySchools;
		// a row outside scp comes back as ErrNotFound.
		GetSchoolByID(ctx context.Context, scp scope.Scope, id int) (School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)
		ToggleSchoolStatus(ctx context.Context, id int) (bool, error)
		// DeleteSchoolWithLabs removes the school and its labs in one transaction.
		DeleteSchoolWithLabs(ctx context.Context, id int) error
	}

	Service interface {
		List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]School, error)
		ListActive(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]School, error)
		ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]School, error)
		GetByID(ctx context.Context, ident scope.Identity, id int) (School, error)
		Create(ctx context.Context, ident scope.Identity, ns NewSchool) (School, error)
		Update(ctx context.Context, ident scope.Identity, id int, us UpdateSchool) (School, error)
		ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error)
		Delete(ctx context.Context, ident scope.Identity, id int) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]School, error) {
	scp := scope.Resolve(scope.Schools, ident, scope.Options{})
	return svc.repo.QuerySchools(ctx, scp, ordering)
}

// ListActive feeds the forms composing dependent resources; disabled schools
// are excluded and non-admins keep their state-wide view even when pinned to
// a lab.
func (svc *service) ListActive(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]School, error) {
	scp := scope.Resolve(scope.Schools, ident, scope.Options{ActiveOnly: true})
	return svc.repo.QuerySchools(ctx, scp, ordering)
}

func (svc *service) ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]School, error) {
	scp := scope.Resolve(scope.Schools, ident, scope.Options{OwnedOnly: true})
	return svc.repo.QuerySchools(ctx, scp, ordering)
}

func (svc *service) GetByID(ctx context.Context, ident scope.Identity, id int) (School, error) {
	scp := scope.Resolve(scope.Schools, ident, scope.Options{})
	return svc.repo.GetSchoolByID(ctx, scp, id)
}

func (svc *service) Create(ctx context.Context, ident scope.Identity, ns NewSchool) (School, error) {
	if err := svc.repo.CheckUDISEUniqueness(ctx, ns.UDISE); err != nil {
		if errors.Cause(err) == ErrUDISEExists {
			return School{}, core.NewValidationError(err, core.FieldError{Field: "udise", Error: ErrUDISEExists.Error()})
		}
		return School{}, err
	}

	now := time.Now().UTC()
	sch := School{
		Name:         ns.Name,
		UDISE:        ns.UDISE,
		State:        ns.State,
		District:     ns.District,
		InchargeName: ns.InchargeName,
		CreatedBy:    ident.UserID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateSchool(ctx, sch)
}

// Update loads the target through the caller's scope first, so a school the
// caller cannot see cannot be written to either.
func (svc *service) Update(ctx context.Context, ident scope.Identity, id int, us UpdateSchool) (School, error) {
	sch, err := svc.GetByID(ctx, ident, id)
	if err != nil {
		return School{}, err
	}

	if us.Name != "" {
		sch.Name = us.Name
	}
	if us.State != "" {
		sch.State = us.State
	}
	if us.District != "" {
		sch.District = us.District
	}
	if us.InchargeName != "" {
		sch.InchargeName = us.InchargeName
	}
	sch.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}

func (svc *service) ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error) {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return false, err
	}
	return svc.repo.ToggleSchoolStatus(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ident scope.Identity, id int) error {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteSchoolWithLabs(ctx, id)
}
