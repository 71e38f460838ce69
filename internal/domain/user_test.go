package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestUser(t *testing.T) *User {
	t.Helper()
	u, err := NewUser(NewUserParams{
		ID:        "u-1",
		Email:     "jane.doe@company.com",
		Role:      RoleUser,
		FirstName: "Jane",
		LastName:  "Doe",
		Now:       testNow,
	})
	require.NoError(t, err)
	return u
}

func TestNewEmail(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"admin@company.com", true},
		{"a.b+tag@sub.example.org", true},
		{"no-at-sign.com", false},
		{"two@@example.com", false},
		{"user@nodot", false},
		{"has space@example.com", false},
		{"", false},
		{"@example.com", false},
		{"a\vb@x.com", false},
		{"a\u00a0b@x.com", false},
		{"a@x\u2028y.com", false},
		{"a@x.com\u3000", false},
		{"\ufeffa@x.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, err := NewEmail(tt.input)
			if !tt.valid {
				require.ErrorIs(t, err, ErrInvalidEmail)
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.input, e.Value())
		})
	}
}

func TestEmailDomain(t *testing.T) {
	e, err := NewEmail("sarah.johnson@company.com")
	require.NoError(t, err)
	require.Equal(t, "company.com", e.Domain())
}

func TestNewUserID(t *testing.T) {
	_, err := NewUserID("   ")
	require.ErrorIs(t, err, ErrEmptyUserID)

	id, err := NewUserID("abc")
	require.NoError(t, err)
	require.True(t, id.Equals(UserID{value: "abc"}))
}

func TestPermissionsFor(t *testing.T) {
	tests := []struct {
		role Role
		want []Permission
	}{
		{RoleAdmin, []Permission{PermissionRead, PermissionWrite, PermissionDelete, PermissionManageUsers, PermissionManageSystem}},
		{RoleModerator, []Permission{PermissionRead, PermissionWrite, PermissionModerateContent, PermissionManageUsers}},
		{RoleUser, []Permission{PermissionRead, PermissionWrite}},
		{Role("guest"), []Permission{PermissionRead}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			require.Equal(t, tt.want, PermissionsFor(tt.role))
		})
	}
}

func TestPermissionsForReturnsFreshSlice(t *testing.T) {
	first := PermissionsFor(RoleUser)
	first[0] = PermissionManageSystem
	require.Equal(t, PermissionRead, PermissionsFor(RoleUser)[0])
}

func TestRolesWith(t *testing.T) {
	require.ElementsMatch(t, []Role{RoleAdmin, RoleModerator}, RolesWith(PermissionManageUsers))
	require.Equal(t, []Role{RoleAdmin}, RolesWith(PermissionDelete))
	require.Len(t, RolesWith(PermissionRead), 3)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("moderator")
	require.NoError(t, err)
	require.True(t, r.IsModerator())

	_, err = ParseRole("root")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		state            UserState
		canLogin         bool
		requiresApproval bool
		suspended        bool
	}{
		{StateActive, true, false, false},
		{StateInactive, false, false, false},
		{StatePending, false, true, false},
		{StateSuspended, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			s, err := NewStatus(tt.state, "", "", testNow)
			require.NoError(t, err)
			require.Equal(t, tt.canLogin, s.CanLogin())
			require.Equal(t, tt.canLogin, s.IsActive())
			require.Equal(t, tt.requiresApproval, s.RequiresApproval())
			require.Equal(t, tt.suspended, s.IsSuspended())
		})
	}

	_, err := NewStatus("deleted", "", "", testNow)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestNewUserDefaults(t *testing.T) {
	u := newTestUser(t)

	require.Equal(t, StatePending, u.Status().State())
	require.True(t, u.Status().RequiresApproval())
	require.Equal(t, DefaultPreferences(), u.Preferences())
	require.Equal(t, testNow, u.CreatedAt())
	require.Equal(t, testNow, u.UpdatedAt())
	_, loggedIn := u.LastLoginAt()
	require.False(t, loggedIn)
	require.Equal(t, "Jane Doe", u.Profile().FullName())
}

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences()
	require.Equal(t, ThemeSystem, p.Theme)
	require.Equal(t, "en", p.Language)
	require.True(t, p.Notifications.Email)
	require.True(t, p.Notifications.Push)
	require.False(t, p.Notifications.SMS)
	require.False(t, p.Notifications.Marketing)
	require.Equal(t, VisibilityPublic, p.Privacy.ProfileVisibility)
	require.False(t, p.Privacy.ShowEmail)
	require.False(t, p.Privacy.ShowLocation)
	require.True(t, p.Privacy.AllowSearch)
}

func TestNewUserRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		params NewUserParams
		err    error
	}{
		{"empty id", NewUserParams{Email: "a@b.co", Role: RoleUser}, ErrEmptyUserID},
		{"bad email", NewUserParams{ID: "1", Email: "nope", Role: RoleUser}, ErrInvalidEmail},
		{"bad role", NewUserParams{ID: "1", Email: "a@b.co", Role: "owner"}, ErrInvalidRole},
		{"bad state", NewUserParams{ID: "1", Email: "a@b.co", Role: RoleUser, State: "gone"}, ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.params)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUserMutationsReturnCopies(t *testing.T) {
	u := newTestUser(t)
	later := testNow.Add(time.Hour)

	status, err := NewStatus(StateActive, "approved", "admin-1", later)
	require.NoError(t, err)
	activated := u.WithStatus(status, later)

	require.Equal(t, StatePending, u.Status().State())
	require.Equal(t, StateActive, activated.Status().State())
	require.Equal(t, later, activated.UpdatedAt())
	require.Equal(t, u.ID(), activated.ID())
	require.Equal(t, u.Email(), activated.Email())
	require.Equal(t, "admin-1", activated.Status().ChangedBy())

	promoted, err := activated.WithRole(RoleAdmin, later)
	require.NoError(t, err)
	require.True(t, promoted.HasPermission(PermissionManageSystem))
	require.False(t, activated.HasPermission(PermissionManageSystem))

	_, err = activated.WithRole("owner", later)
	require.ErrorIs(t, err, ErrInvalidRole)

	loggedIn := promoted.WithLastLogin(later)
	at, ok := loggedIn.LastLoginAt()
	require.True(t, ok)
	require.Equal(t, later, at)
	_, ok = promoted.LastLoginAt()
	require.False(t, ok)
}

func TestWithPreferencesValidates(t *testing.T) {
	u := newTestUser(t)

	_, err := u.WithPreferences(Preferences{Theme: "neon"}, testNow)
	require.ErrorIs(t, err, ErrInvalidTheme)

	p := DefaultPreferences()
	p.Privacy.ProfileVisibility = "everyone"
	_, err = u.WithPreferences(p, testNow)
	require.ErrorIs(t, err, ErrInvalidVisibility)

	updated, err := u.WithPreferences(Preferences{Theme: ThemeDark}, testNow)
	require.NoError(t, err)
	require.Equal(t, ThemeDark, updated.Preferences().Theme)
	require.Equal(t, "en", updated.Preferences().Language)
}

func TestUserRecordRoundTrip(t *testing.T) {
	u := newTestUser(t).WithLastLogin(testNow.Add(2 * time.Hour))

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var rec UserRecord
	require.NoError(t, json.Unmarshal(data, &rec))

	back, err := UserFromRecord(rec)
	require.NoError(t, err)
	require.Equal(t, u.Record(), back.Record())
}

func TestUserFromRecordRevalidates(t *testing.T) {
	base := newTestUser(t).Record()

	tests := []struct {
		name   string
		mutate func(*UserRecord)
		err    error
	}{
		{"bad email", func(r *UserRecord) { r.Email = "broken" }, ErrInvalidEmail},
		{"bad role", func(r *UserRecord) { r.Role = "superuser" }, ErrInvalidRole},
		{"bad status", func(r *UserRecord) { r.Status.Value = "archived" }, ErrInvalidStatus},
		{"empty id", func(r *UserRecord) { r.ID = "" }, ErrEmptyUserID},
		{"missing created_at", func(r *UserRecord) { r.CreatedAt = time.Time{} }, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mutate(&rec)
			_, err := UserFromRecord(rec)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStatusRecordAcceptsBareString(t *testing.T) {
	raw := `{
		"id": "7",
		"email": "legacy@company.com",
		"role": "user",
		"profile": {"first_name": "Leg", "last_name": "Acy"},
		"status": "suspended",
		"created_at": "2024-01-07T00:00:00Z"
	}`

	var rec UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	u, err := UserFromRecord(rec)
	require.NoError(t, err)
	require.True(t, u.Status().IsSuspended())
	require.Equal(t, u.CreatedAt(), u.UpdatedAt())
	require.Equal(t, DefaultPreferences(), u.Preferences())
}
