package scope

// Roles. Stored as integers on the user row and carried in token claims.
const (
	RoleAdmin        Role = 1
	RoleMentor       Role = 2
	RoleStateOfficer Role = 3
)

type Role int

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleMentor:
		return "Mentor"
	case RoleStateOfficer:
		return "State Officer"
	}
	return "Unknown"
}

func (r Role) Valid() bool {
	return r >= RoleAdmin && r <= RoleStateOfficer
}

// Identity is the authenticated principal decoded from a verified token.
// It is immutable; services receive it as an explicit argument, never via
// ambient request state.
type Identity struct {
	UserID        int
	Username      string
	Email         string
	Role          Role
	State         string // empty when the user has no state assignment
	AssignedLabID int    // 0 when the user is not pinned to a lab
}

func (id Identity) IsAdmin() bool        { return id.Role == RoleAdmin }
func (id Identity) HasState() bool       { return id.State != "" }
func (id Identity) HasAssignedLab() bool { return id.AssignedLabID > 0 }

// Resource enumerates the row sets the resolver knows how to scope.
type Resource int

const (
	Schools Resource = iota
	Labs
	Equipment
	Allocations
	Sessions
	Students
)

// Kind says how a Scope restricts rows. Restrictions are mutually
// exclusive: the resolver picks exactly one.
type Kind int

const (
	KindAll         Kind = iota // no row restriction
	KindLab                     // rows tied to a single lab
	KindSchoolOfLab             // the school owning a given lab
	KindState                   // rows whose school sits in a state
	KindOwner                   // rows created by the identity
)

// Scope is the computed subset of rows an identity may read or mutate.
// It is derived per-request from the Identity alone, never from
// client-supplied parameters, and interpreted by each repository.
type Scope struct {
	Kind       Kind
	LabID      int    // set when Kind is KindLab or KindSchoolOfLab
	State      string // set when Kind is KindState
	OwnerID    int    // set when Kind is KindOwner
	ActiveOnly bool   // additionally exclude soft-deleted rows
}

func (s Scope) Unrestricted() bool { return s.Kind == KindAll && !s.ActiveOnly }

type Options struct {
	// OwnedOnly restricts to rows created by the identity ("my X" views).
	// It replaces the state/lab restrictions, it never combines with them.
	OwnedOnly bool
	// ActiveOnly excludes soft-deleted rows; used when composing dependent
	// resources (e.g. the school list backing lab/allocation forms).
	ActiveOnly bool
}

// Resolve maps (resource, identity, options) to the visibility Scope.
// Pure function; no I/O.
//
// The rules are non-uniform across resource types on purpose; they mirror
// shipped product behavior and must not be silently unified:
//
//   - an assigned lab always beats a state restriction (narrower wins),
//     except on the active-school list where only admins are narrowed to
//     the lab's school; mentors and state officers keep their state-wide
//     view of active schools even when pinned to a lab.
//   - the plain school list narrows admins to the lab's school too, and
//     everyone else falls through to their state.
//   - ownership, when requested, replaces the state/lab scoping entirely.
func Resolve(res Resource, id Identity, opts Options) Scope {
	if opts.OwnedOnly {
		return Scope{Kind: KindOwner, OwnerID: id.UserID, ActiveOnly: opts.ActiveOnly}
	}

	s := Scope{ActiveOnly: opts.ActiveOnly}

	switch res {
	case Schools, Students:
		if id.IsAdmin() && id.HasAssignedLab() {
			s.Kind = KindSchoolOfLab
			s.LabID = id.AssignedLabID
		} else if !id.IsAdmin() && id.HasState() {
			s.Kind = KindState
			s.State = id.State
		}

	case Labs, Allocations, Sessions:
		if id.HasAssignedLab() {
			s.Kind = KindLab
			s.LabID = id.AssignedLabID
		} else if !id.IsAdmin() && id.HasState() {
			s.Kind = KindState
			s.State = id.State
		}

	case Equipment:
		// the stock catalog has no location; non-admins only see their own rows
		if !id.IsAdmin() {
			s.Kind = KindOwner
			s.OwnerID = id.UserID
		}
	}

	return s
}
