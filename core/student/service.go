package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
)

var (
	// errors
	ErrNotFound     = errors.New("student not found")
	ErrAadharExists = errors.New("a student with this Aadhar number already exists")
)

type (
	Repository interface {
		CheckAadharUniqueness(ctx context.Context, aadhar string) error
		CreateStudent(ctx context.Context, st Student) (Student, error)
		QueryStudents(ctx context.Context, scp scope.Scope, ordering []core.DBOrdering) ([]Student, error)
		// GetStudentByID and GetStudentByAadhar apply the same scope predicate
		// as QueryStudents; rows outside scp come back as ErrNotFound.
		GetStudentByID(ctx context.Context, scp scope.Scope, id int) (Student, error)
		GetStudentByAadhar(ctx context.Context, scp scope.Scope, aadhar string) (Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		ToggleStudentStatus(ctx context.Context, id int) (bool, error)
		DeleteStudent(ctx context.Context, id int) error
	}

	Service interface {
		List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Student, error)
		ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, ident scope.Identity, id int) (Student, error)
		GetByAadhar(ctx context.Context, ident scope.Identity, aadhar string) (Student, error)
		Create(ctx context.Context, ident scope.Identity, ns NewStudent) (Student, error)
		Update(ctx context.Context, ident scope.Identity, id int, us UpdateStudent) (Student, error)
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

func (svc *service) List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Student, error) {
	scp := scope.Resolve(scope.Students, ident, scope.Options{})
	return svc.repo.QueryStudents(ctx, scp, ordering)
}

func (svc *service) ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Student, error) {
	scp := scope.Resolve(scope.Students, ident, scope.Options{OwnedOnly: true})
	return svc.repo.QueryStudents(ctx, scp, ordering)
}

func (svc *service) GetByID(ctx context.Context, ident scope.Identity, id int) (Student, error) {
	scp := scope.Resolve(scope.Students, ident, scope.Options{})
	return svc.repo.GetStudentByID(ctx, scp, id)
}

// GetByAadhar looks up within the caller's scope only, so an Aadhar number
// from another state resolves to not found.
func (svc *service) GetByAadhar(ctx context.Context, ident scope.Identity, aadhar string) (Student, error) {
	scp := scope.Resolve(scope.Students, ident, scope.Options{})
	return svc.repo.GetStudentByAadhar(ctx, scp, core.CleanString(aadhar))
}

func (svc *service) Create(ctx context.Context, ident scope.Identity, ns NewStudent) (Student, error) {
	if err := svc.repo.CheckAadharUniqueness(ctx, ns.Aadhar); err != nil {
		if errors.Cause(err) == ErrAadharExists {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "aadhar", Error: ErrAadharExists.Error()})
		}
		return Student{}, err
	}

	now := time.Now().UTC()
	st := Student{
		SchoolID:  ns.SchoolID,
		Name:      ns.Name,
		Aadhar:    ns.Aadhar,
		Grade:     ns.Grade,
		CreatedBy: ident.UserID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *service) Update(ctx context.Context, ident scope.Identity, id int, us UpdateStudent) (Student, error) {
	st, err := svc.GetByID(ctx, ident, id)
	if err != nil {
		return Student{}, err
	}

	if us.Name != "" {
		st.Name = us.Name
	}
	if us.Grade != "" {
		st.Grade = us.Grade
	}
	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *service) ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error) {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return false, err
	}
	return svc.repo.ToggleStudentStatus(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ident scope.Identity, id int) error {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteStudent(ctx, id)
}
