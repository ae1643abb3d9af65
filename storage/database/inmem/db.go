// Package inmemdb provides map-backed repositories for tests and local
// experiments. Scoping rules match the SQL repositories.
package inmemdb

import (
	"sync"

	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/session"
	"github.com/trezcool/maabara/core/student"
	"github.com/trezcool/maabara/core/user"
)

type DB struct {
	mutex sync.RWMutex

	pkCount    int
	users      map[int]*user.User
	schools    map[int]*school.School
	labs       map[int]*lab.Lab
	labTypes   map[int]*lab.LabType
	equipment  map[int]*equipment.Equipment
	allocs     map[int]*equipment.Allocation
	sessions   map[int]*session.Session
	students   map[int]*student.Student
	activities []activity.Activity
}

func Open() *DB {
	return &DB{
		users:     make(map[int]*user.User),
		schools:   make(map[int]*school.School),
		labs:      make(map[int]*lab.Lab),
		labTypes:  make(map[int]*lab.LabType),
		equipment: make(map[int]*equipment.Equipment),
		allocs:    make(map[int]*equipment.Allocation),
		sessions:  make(map[int]*session.Session),
		students:  make(map[int]*student.Student),
	}
}

func (db *DB) nextPK() int {
	db.pkCount++
	return db.pkCount
}

// schoolOfLab resolves the school hosting the given lab. Callers must hold
// the lock.
func (db *DB) schoolOfLab(labID int) int {
	if l, ok := db.labs[labID]; ok {
		return l.SchoolID
	}
	return 0
}

// stateOfLab resolves the state of the school hosting the given lab. Callers
// must hold the lock.
func (db *DB) stateOfLab(labID int) string {
	if sch, ok := db.schools[db.schoolOfLab(labID)]; ok {
		return sch.State
	}
	return ""
}
