package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
	"github.com/trezcool/maabara/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) visible(st student.Student, scp scope.Scope) bool {
	if scp.ActiveOnly && !st.IsActive {
		return false
	}
	switch scp.Kind {
	case scope.KindSchoolOfLab:
		return st.SchoolID == repo.db.schoolOfLab(scp.LabID)
	case scope.KindState:
		sch, ok := repo.db.schools[st.SchoolID]
		return ok && sch.State == scp.State
	case scope.KindOwner:
		return st.CreatedBy == scp.OwnerID
	}
	return true
}

func (repo *studentRepository) CheckAadharUniqueness(_ context.Context, aadhar string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, st := range repo.db.students {
		if st.Aadhar == aadhar {
			return student.ErrAadharExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	st.ID = repo.db.nextPK()
	st.CreatedAt = now
	st.UpdatedAt = now
	repo.db.students[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, scp scope.Scope, _ []core.DBOrdering) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, st := range repo.db.students {
		if repo.visible(*st, scp) {
			students = append(students, *st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, scp scope.Scope, id int) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if st, ok := repo.db.students[id]; ok && repo.visible(*st, scp) {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByAadhar(_ context.Context, scp scope.Scope, aadhar string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, st := range repo.db.students {
		if st.Aadhar == aadhar && repo.visible(*st, scp) {
			return *st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[st.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	st.UpdatedAt = time.Now().UTC()
	repo.db.students[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) ToggleStudentStatus(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.students[id]
	if !ok {
		return false, student.ErrNotFound
	}
	st.IsActive = !st.IsActive
	st.UpdatedAt = time.Now().UTC()
	return st.IsActive, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.students, id)
	return nil
}
