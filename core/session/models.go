package session

import (
	"time"

	"github.com/trezcool/maabara/core"
)

// Session is a scheduled teaching session held in a lab.
type Session struct {
	ID          int       `json:"id"`
	LabID       int       `json:"lab_id"`
	Topic       string    `json:"topic"`
	Host        string    `json:"host"` // mentor/guest conducting the session
	ScheduledOn time.Time `json:"scheduled_on"`
	CreatedBy   int       `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC

	// denormalized for list views
	LabName     string `json:"lab_name,omitempty"`
	SchoolState string `json:"school_state,omitempty"`
}

type NewSession struct {
	LabID       int       `json:"lab_id" validate:"required,gt=0"`
	Topic       string    `json:"topic" validate:"required"`
	Host        string    `json:"host" validate:"required"`
	ScheduledOn time.Time `json:"scheduled_on" validate:"required"`
}

func (ns *NewSession) Validate() error {
	ns.Topic = core.CleanString(ns.Topic)
	ns.Host = core.CleanString(ns.Host)
	return core.Validate.Struct(ns)
}

type UpdateSession struct {
	Topic       string    `json:"topic"`
	Host        string    `json:"host"`
	ScheduledOn time.Time `json:"scheduled_on"`
}

func (us *UpdateSession) Validate() error {
	us.Topic = core.CleanString(us.Topic)
	us.Host = core.CleanString(us.Host)
	return core.Validate.Struct(us)
}

// QueryFilter narrows session lists beyond the visibility scope (reports).
type QueryFilter struct {
	ID    int
	Host  string
	State string
	From  time.Time
	To    time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ID == 0 && qf.Host == "" && qf.State == "" && qf.From.IsZero() && qf.To.IsZero()
}
