package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// emailRegex accepts local@domain.tld with a single @ per side. RE2's \s is
// ASCII only, so NewEmail also rejects any Unicode space.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserID is the opaque identifier of a user.
type UserID struct {
	value string
}

// NewUserID validates and wraps a user identifier.
func NewUserID(value string) (UserID, error) {
	if strings.TrimSpace(value) == "" {
		return UserID{}, ErrEmptyUserID
	}
	return UserID{value: value}, nil
}

// String returns the raw identifier.
func (id UserID) String() string { return id.value }

// Equals reports whether both identifiers carry the same value.
func (id UserID) Equals(other UserID) bool { return id.value == other.value }

// Email is a syntactically valid email address.
type Email struct {
	value string
}

// NewEmail validates an email address. The value is stored unchanged.
func NewEmail(value string) (Email, error) {
	if !emailRegex.MatchString(value) || strings.IndexFunc(value, isSpace) >= 0 {
		return Email{}, NewDomainError(ErrInvalidEmail, "malformed address", value)
	}
	return Email{value: value}, nil
}

// isSpace also treats the byte order mark as whitespace.
func isSpace(r rune) bool { return unicode.IsSpace(r) || r == '\ufeff' }

// Value returns the address exactly as it was given.
func (e Email) Value() string { return e.value }

// String implements fmt.Stringer.
func (e Email) String() string { return e.value }

// Domain returns the part after the @.
func (e Email) Domain() string {
	_, domain, _ := strings.Cut(e.value, "@")
	return domain
}

// Equals reports whether both addresses are identical.
func (e Email) Equals(other Email) bool { return e.value == other.value }

// Role is the authorization tier of a user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
)

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleUser, RoleModerator:
		return r, nil
	}
	return "", NewDomainError(ErrInvalidRole, "unknown role", s)
}

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleModerator, RoleUser}
}

// Permission is a capability granted by a role.
type Permission string

const (
	PermissionRead            Permission = "read"
	PermissionWrite           Permission = "write"
	PermissionDelete          Permission = "delete"
	PermissionManageUsers     Permission = "manage_users"
	PermissionManageSystem    Permission = "manage_system"
	PermissionModerateContent Permission = "moderate_content"
)

// PermissionsFor returns the permissions granted to role. Unknown roles get read only.
// The returned slice is freshly allocated on every call.
func PermissionsFor(role Role) []Permission {
	switch role {
	case RoleAdmin:
		return []Permission{PermissionRead, PermissionWrite, PermissionDelete, PermissionManageUsers, PermissionManageSystem}
	case RoleModerator:
		return []Permission{PermissionRead, PermissionWrite, PermissionModerateContent, PermissionManageUsers}
	case RoleUser:
		return []Permission{PermissionRead, PermissionWrite}
	default:
		return []Permission{PermissionRead}
	}
}

// Permissions returns the permissions granted to the role.
func (r Role) Permissions() []Permission { return PermissionsFor(r) }

// Can reports whether the role grants p.
func (r Role) Can(p Permission) bool {
	for _, granted := range PermissionsFor(r) {
		if granted == p {
			return true
		}
	}
	return false
}

func (r Role) IsAdmin() bool     { return r == RoleAdmin }
func (r Role) IsModerator() bool { return r == RoleModerator }
func (r Role) IsUser() bool      { return r == RoleUser }

// RolesWith returns every role that grants p.
func RolesWith(p Permission) []Role {
	var out []Role
	for _, r := range Roles() {
		if r.Can(p) {
			out = append(out, r)
		}
	}
	return out
}

// UserState is the lifecycle state of a user account.
type UserState string

const (
	StateActive    UserState = "active"
	StateInactive  UserState = "inactive"
	StatePending   UserState = "pending"
	StateSuspended UserState = "suspended"
)

// ParseUserState converts a raw string into a UserState.
func ParseUserState(s string) (UserState, error) {
	switch st := UserState(s); st {
	case StateActive, StateInactive, StatePending, StateSuspended:
		return st, nil
	}
	return "", NewDomainError(ErrInvalidStatus, "unknown status", s)
}

// UserStates lists every valid state.
func UserStates() []UserState {
	return []UserState{StateActive, StateInactive, StatePending, StateSuspended}
}

// Status is a user state plus the audit data of the transition that produced it.
type Status struct {
	state     UserState
	reason    string
	changedAt time.Time
	changedBy string
}

// NewStatus builds a Status. reason and changedBy may be empty.
func NewStatus(state UserState, reason, changedBy string, changedAt time.Time) (Status, error) {
	if _, err := ParseUserState(string(state)); err != nil {
		return Status{}, err
	}
	return Status{
		state:     state,
		reason:    reason,
		changedAt: changedAt.UTC(),
		changedBy: changedBy,
	}, nil
}

func (s Status) State() UserState     { return s.state }
func (s Status) Reason() string       { return s.reason }
func (s Status) ChangedAt() time.Time { return s.changedAt }
func (s Status) ChangedBy() string    { return s.changedBy }

// IsActive reports whether the account is active.
func (s Status) IsActive() bool { return s.state == StateActive }

// CanLogin reports whether the account may sign in. Only active accounts can.
func (s Status) CanLogin() bool { return s.state == StateActive }

// RequiresApproval reports whether the account awaits approval.
func (s Status) RequiresApproval() bool { return s.state == StatePending }

// IsSuspended reports whether the account is suspended.
func (s Status) IsSuspended() bool { return s.state == StateSuspended }
