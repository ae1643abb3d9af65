package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/scope"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) visible(sch school.School, scp scope.Scope) bool {
	if scp.ActiveOnly && !sch.IsActive {
		return false
	}
	switch scp.Kind {
	case scope.KindSchoolOfLab:
		return sch.ID == repo.db.schoolOfLab(scp.LabID)
	case scope.KindState:
		return sch.State == scp.State
	case scope.KindOwner:
		return sch.CreatedBy == scp.OwnerID
	}
	return true
}

func (repo *schoolRepository) CheckUDISEUniqueness(_ context.Context, udise string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sch := range repo.db.schools {
		if sch.UDISE == udise {
			return school.ErrUDISEExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	sch.ID = repo.db.nextPK()
	sch.CreatedAt = now
	sch.UpdatedAt = now
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) QuerySchools(_ context.Context, scp scope.Scope, _ []core.DBOrdering) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0, len(repo.db.schools))
	for _, sch := range repo.db.schools {
		if repo.visible(*sch, scp) {
			schools = append(schools, *sch)
		}
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].ID < schools[j].ID })
	return schools, nil
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, scp scope.Scope, id int) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sch, ok := repo.db.schools[id]; ok && repo.visible(*sch, scp) {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[sch.ID]; !ok {
		return school.School{}, school.ErrNotFound
	}
	sch.UpdatedAt = time.Now().UTC()
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) ToggleSchoolStatus(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sch, ok := repo.db.schools[id]
	if !ok {
		return false, school.ErrNotFound
	}
	sch.IsActive = !sch.IsActive
	sch.UpdatedAt = time.Now().UTC()
	return sch.IsActive, nil
}

func (repo *schoolRepository) DeleteSchoolWithLabs(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[id]; !ok {
		return school.ErrNotFound
	}
	for allocID, alloc := range repo.db.allocs {
		if alloc.SchoolID == id {
			delete(repo.db.allocs, allocID)
		}
	}
	for labID, l := range repo.db.labs {
		if l.SchoolID != id {
			continue
		}
		for sessID, sess := range repo.db.sessions {
			if sess.LabID == labID {
				delete(repo.db.sessions, sessID)
			}
		}
		delete(repo.db.labs, labID)
	}
	for stID, st := range repo.db.students {
		if st.SchoolID == id {
			delete(repo.db.students, stID)
		}
	}
	delete(repo.db.schools, id)
	return nil
}
