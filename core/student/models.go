package student

import (
	"time"

	"github.com/trezcool/maabara/core"
)

type Student struct {
	ID        int       `json:"id"`
	SchoolID  int       `json:"school_id"`
	Name      string    `json:"name"`
	Aadhar    string    `json:"aadhar"` // natural key; unique
	Grade     string    `json:"grade"`
	CreatedBy int       `json:"created_by"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewStudent struct {
	SchoolID int    `json:"school_id" validate:"required,gt=0"`
	Name     string `json:"name" validate:"required"`
	Aadhar   string `json:"aadhar" validate:"required,len=12,number"`
	Grade    string `json:"grade"`
}

func (ns *NewStudent) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.Aadhar = core.CleanString(ns.Aadhar)
	ns.Grade = core.CleanString(ns.Grade)
	return core.Validate.Struct(ns)
}

type UpdateStudent struct {
	Name  string `json:"name"`
	Grade string `json:"grade"`
}

func (us *UpdateStudent) Validate() error {
	us.Name = core.CleanString(us.Name)
	us.Grade = core.CleanString(us.Grade)
	return core.Validate.Struct(us)
}
