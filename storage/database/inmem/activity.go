package inmemdb

import (
	"context"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/activity"
)

type activityRepository struct {
	db *DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateActivity(_ context.Context, act activity.Activity) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.activities = append(repo.db.activities, act)
	return nil
}

func (repo *activityRepository) QueryActivities(_ context.Context, userID int, _ []core.DBOrdering) ([]activity.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	acts := make([]activity.Activity, 0, len(repo.db.activities))
	for _, act := range repo.db.activities {
		if userID != 0 && act.UserID != userID {
			continue
		}
		acts = append(acts, act)
	}
	return acts, nil
}
