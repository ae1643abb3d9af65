package lab

import (
	"time"

	"github.com/trezcool/maabara/core"
)

type Lab struct {
	ID        int       `json:"id"`
	SchoolID  int       `json:"school_id"`
	LabTypeID int       `json:"lab_type_id"`
	Name      string    `json:"name"`
	CreatedBy int       `json:"created_by"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	// denormalized for list views and scoping by state
	SchoolName  string `json:"school_name,omitempty"`
	SchoolState string `json:"school_state,omitempty"`
}

type LabType struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"` // unique
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewLab contains information needed to set up a new Lab in a school.
type NewLab struct {
	SchoolID  int    `json:"school_id" validate:"required,gt=0"`
	LabTypeID int    `json:"lab_type_id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required"`
}

func (nl *NewLab) Validate() error {
	nl.Name = core.CleanString(nl.Name)
	return core.Validate.Struct(nl)
}

// UpdateLab defines what information may be provided to modify an existing Lab.
type UpdateLab struct {
	LabTypeID int    `json:"lab_type_id" validate:"omitempty,gt=0"`
	Name      string `json:"name"`
}

func (ul *UpdateLab) Validate() error {
	ul.Name = core.CleanString(ul.Name)
	return core.Validate.Struct(ul)
}

type NewLabType struct {
	Name string `json:"name" validate:"required"`
}

func (nt *NewLabType) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	return core.Validate.Struct(nt)
}

// QueryFilter narrows lab lists beyond the visibility scope (reports).
type QueryFilter struct {
	State    string
	SchoolID int
}

func (qf *QueryFilter) IsEmpty() bool { return qf.State == "" && qf.SchoolID == 0 }
