package equipment

import (
	"time"

	"github.com/trezcool/maabara/core"
)

type Equipment struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`  // total stock
	Available int       `json:"available"` // stock not yet committed to a lab
	CreatedBy int       `json:"created_by"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Allocated is the quantity already committed to labs.
func (e Equipment) Allocated() int { return e.Quantity - e.Available }

// Allocation commits a quantity of an Equipment item to a Lab, decrementing
// that equipment's available stock.
type Allocation struct {
	ID          int       `json:"id"`
	EquipmentID int       `json:"equipment_id"`
	LabID       int       `json:"lab_id"`
	SchoolID    int       `json:"school_id"`
	Quantity    int       `json:"quantity"`
	CreatedBy   int       `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC

	// denormalized for list views
	EquipmentName string `json:"equipment_name,omitempty"`
	LabName       string `json:"lab_name,omitempty"`
}

type NewEquipment struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

func (ne *NewEquipment) Validate() error {
	ne.Name = core.CleanString(ne.Name)
	return core.Validate.Struct(ne)
}

type UpdateEquipment struct {
	Name     string `json:"name"`
	Quantity *int   `json:"quantity" validate:"omitempty,gt=0"`
}

func (ue *UpdateEquipment) Validate() error {
	ue.Name = core.CleanString(ue.Name)
	return core.Validate.Struct(ue)
}

type NewAllocation struct {
	EquipmentID int `json:"equipment_id" validate:"required,gt=0"`
	LabID       int `json:"lab_id" validate:"required,gt=0"`
	SchoolID    int `json:"school_id" validate:"required,gt=0"`
	Quantity    int `json:"quantity" validate:"required,gt=0"`
}

func (na *NewAllocation) Validate() error { return core.Validate.Struct(na) }

type UpdateAllocation struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

func (ua *UpdateAllocation) Validate() error { return core.Validate.Struct(ua) }
