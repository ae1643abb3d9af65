package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
	"github.com/trezcool/maabara/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) denormalize(s session.Session) session.Session {
	if l, ok := repo.db.labs[s.LabID]; ok {
		s.LabName = l.Name
	}
	s.SchoolState = repo.db.stateOfLab(s.LabID)
	return s
}

func (repo *sessionRepository) visible(s session.Session, scp scope.Scope) bool {
	if scp.ActiveOnly && !s.IsActive {
		return false
	}
	switch scp.Kind {
	case scope.KindLab:
		return s.LabID == scp.LabID
	case scope.KindState:
		return s.SchoolState == scp.State
	case scope.KindOwner:
		return s.CreatedBy == scp.OwnerID
	}
	return true
}

func (repo *sessionRepository) CreateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	s.ID = repo.db.nextPK()
	s.CreatedAt = now
	s.UpdatedAt = now
	repo.db.sessions[s.ID] = &s
	return repo.denormalize(s), nil
}

func (repo *sessionRepository) QuerySessions(_ context.Context, scp scope.Scope, filter *session.QueryFilter, _ []core.DBOrdering) ([]session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]session.Session, 0, len(repo.db.sessions))
	for _, s := range repo.db.sessions {
		denorm := repo.denormalize(*s)
		if !repo.visible(denorm, scp) {
			continue
		}
		if filter != nil {
			if filter.ID != 0 && denorm.ID != filter.ID {
				continue
			}
			if filter.Host != "" && denorm.Host != filter.Host {
				continue
			}
			if filter.State != "" && denorm.SchoolState != filter.State {
				continue
			}
			if !filter.From.IsZero() && denorm.ScheduledOn.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && denorm.ScheduledOn.After(filter.To) {
				continue
			}
		}
		sessions = append(sessions, denorm)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(_ context.Context, scp scope.Scope, id int) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		if denorm := repo.denormalize(*s); repo.visible(denorm, scp) {
			return denorm, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sessions[s.ID]; !ok {
		return session.Session{}, session.ErrNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	repo.db.sessions[s.ID] = &s
	return repo.denormalize(s), nil
}

func (repo *sessionRepository) ToggleSessionStatus(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.sessions[id]
	if !ok {
		return false, session.ErrNotFound
	}
	s.IsActive = !s.IsActive
	s.UpdatedAt = time.Now().UTC()
	return s.IsActive, nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(repo.db.sessions, id)
	return nil
}
