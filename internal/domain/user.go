// Package domain contains the core business entities for Meridian.
// Value objects validate on construction and every aggregate is immutable:
// changes are expressed as With* methods that return a new copy.
package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Profile holds the descriptive attributes of a user.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Location  string `json:"location,omitempty"`
	Website   string `json:"website,omitempty"`
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Theme is the UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Visibility controls who may see a profile.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
)

// NotificationPreferences toggles each notification channel.
type NotificationPreferences struct {
	Email     bool `json:"email"`
	Push      bool `json:"push"`
	SMS       bool `json:"sms"`
	Marketing bool `json:"marketing"`
}

// PrivacyPreferences controls profile exposure.
type PrivacyPreferences struct {
	ProfileVisibility Visibility `json:"profile_visibility"`
	ShowEmail         bool       `json:"show_email"`
	ShowLocation      bool       `json:"show_location"`
	AllowSearch       bool       `json:"allow_search"`
}

// Preferences are per-user settings.
type Preferences struct {
	Theme         Theme                   `json:"theme"`
	Language      string                  `json:"language"`
	Notifications NotificationPreferences `json:"notifications"`
	Privacy       PrivacyPreferences      `json:"privacy"`
}

// DefaultPreferences returns the settings given to every new user.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:    ThemeSystem,
		Language: "en",
		Notifications: NotificationPreferences{
			Email: true,
			Push:  true,
		},
		Privacy: PrivacyPreferences{
			ProfileVisibility: VisibilityPublic,
			AllowSearch:       true,
		},
	}
}

// normalize fills blank enum fields with their defaults and validates the rest.
func (p Preferences) normalize() (Preferences, error) {
	if p.Theme == "" {
		p.Theme = ThemeSystem
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.Privacy.ProfileVisibility == "" {
		p.Privacy.ProfileVisibility = VisibilityPublic
	}

	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return Preferences{}, NewDomainError(ErrInvalidTheme, "unknown theme", string(p.Theme))
	}
	switch p.Privacy.ProfileVisibility {
	case VisibilityPublic, VisibilityPrivate, VisibilityFriends:
	default:
		return Preferences{}, NewDomainError(ErrInvalidVisibility, "unknown visibility", string(p.Privacy.ProfileVisibility))
	}
	return p, nil
}

// User is the user aggregate.
// The identifier and email are fixed at construction.
type User struct {
	id          UserID
	email       Email
	role        Role
	profile     Profile
	status      Status
	createdAt   time.Time
	updatedAt   time.Time
	lastLoginAt *time.Time
	preferences Preferences
}

// NewUserParams contains the data needed to create a new user.
type NewUserParams struct {
	ID        string
	Email     string
	Role      Role
	FirstName string
	LastName  string

	// State defaults to pending.
	State UserState

	// Now defaults to the current time.
	Now time.Time
}

// NewUser creates a user with default preferences.
func NewUser(p NewUserParams) (*User, error) {
	id, err := NewUserID(p.ID)
	if err != nil {
		return nil, err
	}
	email, err := NewEmail(p.Email)
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(string(p.Role))
	if err != nil {
		return nil, err
	}

	state := p.State
	if state == "" {
		state = StatePending
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	status, err := NewStatus(state, "", "", now)
	if err != nil {
		return nil, err
	}

	return &User{
		id:          id,
		email:       email,
		role:        role,
		profile:     Profile{FirstName: p.FirstName, LastName: p.LastName},
		status:      status,
		createdAt:   now,
		updatedAt:   now,
		preferences: DefaultPreferences(),
	}, nil
}

func (u *User) ID() UserID               { return u.id }
func (u *User) Email() Email             { return u.email }
func (u *User) Role() Role               { return u.role }
func (u *User) Profile() Profile         { return u.profile }
func (u *User) Status() Status           { return u.status }
func (u *User) CreatedAt() time.Time     { return u.createdAt }
func (u *User) UpdatedAt() time.Time     { return u.updatedAt }
func (u *User) Preferences() Preferences { return u.preferences }

// LastLoginAt returns the last login time and whether the user ever logged in.
func (u *User) LastLoginAt() (time.Time, bool) {
	if u.lastLoginAt == nil {
		return time.Time{}, false
	}
	return *u.lastLoginAt, true
}

// Permissions returns the permissions granted by the user's role.
func (u *User) Permissions() []Permission { return PermissionsFor(u.role) }

// HasPermission reports whether the user's role grants p.
func (u *User) HasPermission(p Permission) bool { return u.role.Can(p) }

// IsActive reports whether the user account is active.
func (u *User) IsActive() bool { return u.status.IsActive() }

// CanLogin reports whether the user may sign in.
func (u *User) CanLogin() bool { return u.status.CanLogin() }

// clone returns a shallow copy with updatedAt set to at.
func (u *User) clone(at time.Time) *User {
	c := *u
	if u.lastLoginAt != nil {
		t := *u.lastLoginAt
		c.lastLoginAt = &t
	}
	c.updatedAt = at.UTC()
	return &c
}

// WithStatus returns a copy carrying the new status.
func (u *User) WithStatus(s Status, at time.Time) *User {
	c := u.clone(at)
	c.status = s
	return c
}

// WithRole returns a copy carrying the new role.
func (u *User) WithRole(r Role, at time.Time) (*User, error) {
	role, err := ParseRole(string(r))
	if err != nil {
		return nil, err
	}
	c := u.clone(at)
	c.role = role
	return c, nil
}

// WithProfile returns a copy carrying the new profile.
func (u *User) WithProfile(p Profile, at time.Time) *User {
	c := u.clone(at)
	c.profile = p
	return c
}

// WithPreferences returns a copy carrying the new preferences.
func (u *User) WithPreferences(p Preferences, at time.Time) (*User, error) {
	prefs, err := p.normalize()
	if err != nil {
		return nil, err
	}
	c := u.clone(at)
	c.preferences = prefs
	return c, nil
}

// WithLastLogin returns a copy recording a login at the given time.
func (u *User) WithLastLogin(at time.Time) *User {
	c := u.clone(at)
	t := at.UTC()
	c.lastLoginAt = &t
	return c
}

// =============================================================================
// Records
// =============================================================================

// UserRecord is the loosely typed, serializable form of a User.
type UserRecord struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Role        string       `json:"role"`
	Profile     Profile      `json:"profile"`
	Status      StatusRecord `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	LastLoginAt *time.Time   `json:"last_login_at,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// StatusRecord is the serializable form of a Status.
// It decodes from either an object or a bare state string.
type StatusRecord struct {
	Value     string     `json:"value"`
	Reason    string     `json:"reason,omitempty"`
	ChangedAt *time.Time `json:"changed_at,omitempty"`
	ChangedBy string     `json:"changed_by,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StatusRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = StatusRecord{Value: value}
		return nil
	}

	type plain StatusRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = StatusRecord(p)
	return nil
}

// Record converts the user into its serializable form.
func (u *User) Record() UserRecord {
	changedAt := u.status.changedAt
	prefs := u.preferences
	rec := UserRecord{
		ID:      u.id.String(),
		Email:   u.email.Value(),
		Role:    string(u.role),
		Profile: u.profile,
		Status: StatusRecord{
			Value:     string(u.status.state),
			Reason:    u.status.reason,
			ChangedAt: &changedAt,
			ChangedBy: u.status.changedBy,
		},
		CreatedAt:   u.createdAt,
		UpdatedAt:   u.updatedAt,
		Preferences: &prefs,
	}
	if u.lastLoginAt != nil {
		t := *u.lastLoginAt
		rec.LastLoginAt = &t
	}
	return rec
}

// MarshalJSON implements json.Marshaler.
func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Record())
}

// UserFromRecord rebuilds a User, running every value-object validation again.
func UserFromRecord(rec UserRecord) (*User, error) {
	id, err := NewUserID(rec.ID)
	if err != nil {
		return nil, err
	}
	email, err := NewEmail(rec.Email)
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(rec.Role)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt.IsZero() {
		return nil, NewDomainError(ErrValidation, "created_at is required", rec.ID)
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = rec.CreatedAt
	}
	changedAt := updatedAt
	if rec.Status.ChangedAt != nil {
		changedAt = *rec.Status.ChangedAt
	}
	status, err := NewStatus(UserState(rec.Status.Value), rec.Status.Reason, rec.Status.ChangedBy, changedAt)
	if err != nil {
		return nil, err
	}

	prefs := DefaultPreferences()
	if rec.Preferences != nil {
		prefs = *rec.Preferences
	}
	prefs, err = prefs.normalize()
	if err != nil {
		return nil, err
	}

	u := &User{
		id:          id,
		email:       email,
		role:        role,
		profile:     rec.Profile,
		status:      status,
		createdAt:   rec.CreatedAt.UTC(),
		updatedAt:   updatedAt.UTC(),
		preferences: prefs,
	}
	if rec.LastLoginAt != nil {
		t := rec.LastLoginAt.UTC()
		u.lastLoginAt = &t
	}
	return u, nil
}
