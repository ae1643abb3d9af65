package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
)

var ErrNotFound = errors.New("activity not found")

// Activity is one append-only audit row, keyed to the acting identity.
type Activity struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity) error
		QueryActivities(ctx context.Context, userID int, ordering []core.DBOrdering) ([]Activity, error)
	}

	Service interface {
		// Record appends an audit row for a mutating action. It never blocks
		// and never fails the mutation that triggered it: the write runs in
		// the background and a failed insert is only logged.
		Record(userID int, format string, args ...interface{})
		Query(ctx context.Context, userID int, ordering []core.DBOrdering) ([]Activity, error)
	}

	service struct {
		repo    Repository
		logger  core.Logger
		timeout time.Duration
		async   bool
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) *service {
	return &service{repo: repo, logger: logger, timeout: 5 * time.Second, async: true}
}

// NewSyncService records synchronously; for tests and the admin CLI.
func NewSyncService(repo Repository, logger core.Logger) *service {
	return &service{repo: repo, logger: logger, timeout: 5 * time.Second}
}

func (svc *service) Record(userID int, format string, args ...interface{}) {
	act := Activity{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   fmt.Sprintf(format, args...),
		CreatedAt: time.Now().UTC(),
	}
	if svc.async {
		go svc.record(act)
		return
	}
	svc.record(act)
}

func (svc *service) record(act Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), svc.timeout)
	defer cancel()

	if err := svc.repo.CreateActivity(ctx, act); err != nil {
		svc.logger.Error("recording activity", errors.Wrap(err, "recording activity"), map[string]interface{}{
			"user_id": act.UserID,
			"message": act.Message,
		})
	}
}

func (svc *service) Query(ctx context.Context, userID int, ordering []core.DBOrdering) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, userID, ordering)
}
