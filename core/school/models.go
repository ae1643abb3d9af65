package school

import (
	"time"

	"github.com/trezcool/maabara/core"
)

type School struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	UDISE        string    `json:"udise"` // natural key; unique
	State        string    `json:"state"`
	District     string    `json:"district"`
	InchargeName string    `json:"incharge_name"`
	CreatedBy    int       `json:"created_by"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// NewSchool contains information needed to register a new School.
type NewSchool struct {
	Name         string `json:"name" validate:"required"`
	UDISE        string `json:"udise" validate:"required,len=11,number"`
	State        string `json:"state" validate:"required"`
	District     string `json:"district"`
	InchargeName string `json:"incharge_name"`
}

func (ns *NewSchool) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.UDISE = core.CleanString(ns.UDISE)
	ns.State = core.CleanString(ns.State)
	ns.District = core.CleanString(ns.District)
	ns.InchargeName = core.CleanString(ns.InchargeName)
	return core.Validate.Struct(ns)
}

// UpdateSchool defines what information may be provided to modify an existing School.
// The UDISE code is immutable once registered.
type UpdateSchool struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	District     string `json:"district"`
	InchargeName string `json:"incharge_name"`
}

func (us *UpdateSchool) Validate() error {
	us.Name = core.CleanString(us.Name)
	us.State = core.CleanString(us.State)
	us.District = core.CleanString(us.District)
	us.InchargeName = core.CleanString(us.InchargeName)
	return core.Validate.Struct(us)
}
