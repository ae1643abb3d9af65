package user

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
)

type User struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          scope.Role `json:"role_id"`
	State         string     `json:"state,omitempty"`
	AssignedLabID int        `json:"assigned_lab,omitempty"`
	IsActive      bool       `json:"is_active"`
	PasswordHash  []byte     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at"` // UTC
	LastLogin     time.Time  `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool { return u.Role == scope.RoleAdmin }

// Identity returns the immutable principal passed to scoped service calls.
func (u User) Identity() scope.Identity {
	return scope.Identity{
		UserID:        u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		State:         u.State,
		AssignedLabID: u.AssignedLabID,
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string     `json:"name" validate:"required"`
	Username        string     `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string     `json:"email" validate:"omitempty,email"`
	Password        string     `json:"password" validate:"required"`
	PasswordConfirm string     `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            scope.Role `json:"role_id" validate:"validrole"`
	State           string     `json:"state"`
	AssignedLabID   int        `json:"assigned_lab"`
}

func (nu *NewUser) Validate(ctx context.Context, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.State = core.CleanString(nu.State)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string     `json:"name"`
	Username        string     `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string     `json:"email" validate:"omitempty,email"`
	IsActive        *bool      `json:"is_active"`
	Role            scope.Role `json:"role_id" validate:"omitempty,validrole"`
	State           string     `json:"state"`
	AssignedLabID   *int       `json:"assigned_lab"`
	Password        string     `json:"password" validate:"omitempty"`
	PasswordConfirm string     `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, svc Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string     `query:"search"`
	Role        scope.Role `query:"role"`
	State       string     `query:"state"`
	IsActive    *bool      `query:"is_active"`
	CreatedFrom time.Time  `query:"created_from"`
	CreatedTo   time.Time  `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == 0 && qf.State == "" && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.State = core.CleanString(qf.State)
}

// GetFilter selects a single user; the first non-empty field wins.
type GetFilter struct {
	ID              int
	Username        string
	Email           string
	UsernameOrEmail []string
}
