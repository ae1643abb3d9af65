package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/scope"
)

type labRepository struct {
	db *DB
}

var _ lab.Repository = (*labRepository)(nil) // interface compliance check

func NewLabRepository(db *DB) *labRepository {
	return &labRepository{db: db}
}

// denormalize fills the school name and state carried on list views. Callers
// must hold the lock.
func (repo *labRepository) denormalize(l lab.Lab) lab.Lab {
	if sch, ok := repo.db.schools[l.SchoolID]; ok {
		l.SchoolName = sch.Name
		l.SchoolState = sch.State
	}
	return l
}

func (repo *labRepository) visible(l lab.Lab, scp scope.Scope) bool {
	if scp.ActiveOnly && !l.IsActive {
		return false
	}
	switch scp.Kind {
	case scope.KindLab:
		return l.ID == scp.LabID
	case scope.KindState:
		return l.SchoolState == scp.State
	case scope.KindOwner:
		return l.CreatedBy == scp.OwnerID
	}
	return true
}

func (repo *labRepository) CreateLab(_ context.Context, l lab.Lab) (lab.Lab, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	l.ID = repo.db.nextPK()
	l.CreatedAt = now
	l.UpdatedAt = now
	repo.db.labs[l.ID] = &l
	return repo.denormalize(l), nil
}

func (repo *labRepository) QueryLabs(_ context.Context, scp scope.Scope, filter *lab.QueryFilter, _ []core.DBOrdering) ([]lab.Lab, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	labs := make([]lab.Lab, 0, len(repo.db.labs))
	for _, l := range repo.db.labs {
		denorm := repo.denormalize(*l)
		if !repo.visible(denorm, scp) {
			continue
		}
		if filter != nil {
			if filter.State != "" && denorm.SchoolState != filter.State {
				continue
			}
			if filter.SchoolID != 0 && denorm.SchoolID != filter.SchoolID {
				continue
			}
		}
		labs = append(labs, denorm)
	}
	sort.Slice(labs, func(i, j int) bool { return labs[i].ID < labs[j].ID })
	return labs, nil
}

func (repo *labRepository) GetLabByID(_ context.Context, scp scope.Scope, id int) (lab.Lab, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.labs[id]; ok {
		if denorm := repo.denormalize(*l); repo.visible(denorm, scp) {
			return denorm, nil
		}
	}
	return lab.Lab{}, lab.ErrNotFound
}

func (repo *labRepository) UpdateLab(_ context.Context, l lab.Lab) (lab.Lab, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.labs[l.ID]; !ok {
		return lab.Lab{}, lab.ErrNotFound
	}
	l.UpdatedAt = time.Now().UTC()
	repo.db.labs[l.ID] = &l
	return repo.denormalize(l), nil
}

func (repo *labRepository) ToggleLabStatus(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	l, ok := repo.db.labs[id]
	if !ok {
		return false, lab.ErrNotFound
	}
	l.IsActive = !l.IsActive
	l.UpdatedAt = time.Now().UTC()
	return l.IsActive, nil
}

func (repo *labRepository) DeleteLab(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.labs[id]; !ok {
		return lab.ErrNotFound
	}
	delete(repo.db.labs, id)
	return nil
}

func (repo *labRepository) CheckLabTypeUniqueness(_ context.Context, name string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, lt := range repo.db.labTypes {
		if lt.Name == name {
			return lab.ErrLabTypeExists
		}
	}
	return nil
}

func (repo *labRepository) CreateLabType(_ context.Context, lt lab.LabType) (lab.LabType, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	lt.ID = repo.db.nextPK()
	lt.CreatedAt = time.Now().UTC()
	repo.db.labTypes[lt.ID] = &lt
	return lt, nil
}

func (repo *labRepository) QueryLabTypes(_ context.Context) ([]lab.LabType, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	types := make([]lab.LabType, 0, len(repo.db.labTypes))
	for _, lt := range repo.db.labTypes {
		types = append(types, *lt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}
