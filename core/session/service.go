package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
)

var ErrNotFound = errors.New("session not found")

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		QuerySessions(ctx context.Context, scp scope.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		// GetSessionByID applies the same scope predicate as QuerySessions;
		// a row outside scp comes back as ErrNotFound.
		GetSessionByID(ctx context.Context, scp scope.Scope, id int) (Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		ToggleSessionStatus(ctx context.Context, id int) (bool, error)
		DeleteSession(ctx context.Context, id int) error
	}

	Service interface {
		List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Session, error)
		ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Session, error)
		Filter(ctx context.Context, ident scope.Identity, filter QueryFilter) ([]Session, error)
		GetByID(ctx context.Context, ident scope.Identity, id int) (Session, error)
		Create(ctx context.Context, ident scope.Identity, ns NewSession) (Session, error)
		Update(ctx context.Context, ident scope.Identity, id int, us UpdateSession) (Session, error)
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

func (svc *service) List(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Session, error) {
	scp := scope.Resolve(scope.Sessions, ident, scope.Options{})
	return svc.repo.QuerySessions(ctx, scp, nil, ordering)
}

func (svc *service) ListMine(ctx context.Context, ident scope.Identity, ordering []core.DBOrdering) ([]Session, error) {
	scp := scope.Resolve(scope.Sessions, ident, scope.Options{OwnedOnly: true})
	return svc.repo.QuerySessions(ctx, scp, nil, ordering)
}

func (svc *service) Filter(ctx context.Context, ident scope.Identity, filter QueryFilter) ([]Session, error) {
	scp := scope.Resolve(scope.Sessions, ident, scope.Options{})
	f := &filter
	if f.IsEmpty() {
		f = nil
	}
	return svc.repo.QuerySessions(ctx, scp, f, nil)
}

func (svc *service) GetByID(ctx context.Context, ident scope.Identity, id int) (Session, error) {
	scp := scope.Resolve(scope.Sessions, ident, scope.Options{})
	return svc.repo.GetSessionByID(ctx, scp, id)
}

func (svc *service) Create(ctx context.Context, ident scope.Identity, ns NewSession) (Session, error) {
	now := time.Now().UTC()
	s := Session{
		LabID:       ns.LabID,
		Topic:       ns.Topic,
		Host:        ns.Host,
		ScheduledOn: ns.ScheduledOn.UTC(),
		CreatedBy:   ident.UserID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *service) Update(ctx context.Context, ident scope.Identity, id int, us UpdateSession) (Session, error) {
	s, err := svc.GetByID(ctx, ident, id)
	if err != nil {
		return Session{}, err
	}

	if us.Topic != "" {
		s.Topic = us.Topic
	}
	if us.Host != "" {
		s.Host = us.Host
	}
	if !us.ScheduledOn.IsZero() {
		s.ScheduledOn = us.ScheduledOn.UTC()
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSession(ctx, s)
}

func (svc *service) ToggleStatus(ctx context.Context, ident scope.Identity, id int) (bool, error) {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return false, err
	}
	return svc.repo.ToggleSessionStatus(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ident scope.Identity, id int) error {
	if _, err := svc.GetByID(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteSession(ctx, id)
}
