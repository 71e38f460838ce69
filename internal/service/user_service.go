package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/metrics"
	"github.com/prn-tf/meridian/internal/query"
	"github.com/prn-tf/meridian/internal/repository"
)

// Reasons recorded when the caller gives none.
const (
	ReasonActivated        = "Activated by administrator"
	ReasonDeactivated      = "Deactivated by administrator"
	ReasonSuspensionLifted = "Suspension lifted by administrator"
	ReasonReturnedPending  = "Returned to pending by administrator"
)

// Option configures a service.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func defaultOptions() options {
	return options{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides how new entity IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// UserService handles user management operations.
type UserService struct {
	userRepo  repository.UserRepository
	userQuery repository.UserQuerier
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	opts      options
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	userQuery repository.UserQuerier,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts ...Option,
) *UserService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &UserService{
		userRepo:  userRepo,
		userQuery: userQuery,
		metrics:   m,
		logger:    logger.With().Str("service", "user").Logger(),
		opts:      o,
	}
}

func (s *UserService) now() time.Time {
	return s.opts.now().UTC()
}

// ===== Requests =====

// ProfileUpdate carries the profile fields to change. Nil fields are kept.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitnil,min=1"`
	LastName  *string `json:"last_name,omitempty" validate:"omitnil,min=1"`
	Avatar    *string `json:"avatar,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Location  *string `json:"location,omitempty"`
	Website   *string `json:"website,omitempty"`
}

func (u *ProfileUpdate) apply(p domain.Profile) domain.Profile {
	if u == nil {
		return p
	}
	setString(&p.FirstName, u.FirstName)
	setString(&p.LastName, u.LastName)
	setString(&p.Avatar, u.Avatar)
	setString(&p.Bio, u.Bio)
	setString(&p.Location, u.Location)
	setString(&p.Website, u.Website)
	return p
}

// NotificationsUpdate toggles notification channels. Nil fields are kept.
type NotificationsUpdate struct {
	Email     *bool `json:"email,omitempty"`
	Push      *bool `json:"push,omitempty"`
	SMS       *bool `json:"sms,omitempty"`
	Marketing *bool `json:"marketing,omitempty"`
}

// PrivacyUpdate changes privacy settings. Nil fields are kept.
type PrivacyUpdate struct {
	ProfileVisibility *domain.Visibility `json:"profile_visibility,omitempty"`
	ShowEmail         *bool              `json:"show_email,omitempty"`
	ShowLocation      *bool              `json:"show_location,omitempty"`
	AllowSearch       *bool              `json:"allow_search,omitempty"`
}

// PreferencesUpdate is merged field by field over the stored preferences.
type PreferencesUpdate struct {
	Theme         *domain.Theme        `json:"theme,omitempty"`
	Language      *string              `json:"language,omitempty" validate:"omitnil,min=2"`
	Notifications *NotificationsUpdate `json:"notifications,omitempty"`
	Privacy       *PrivacyUpdate       `json:"privacy,omitempty"`
}

func (u *PreferencesUpdate) apply(p domain.Preferences) domain.Preferences {
	if u == nil {
		return p
	}
	if u.Theme != nil {
		p.Theme = *u.Theme
	}
	setString(&p.Language, u.Language)
	if n := u.Notifications; n != nil {
		setBool(&p.Notifications.Email, n.Email)
		setBool(&p.Notifications.Push, n.Push)
		setBool(&p.Notifications.SMS, n.SMS)
		setBool(&p.Notifications.Marketing, n.Marketing)
	}
	if pr := u.Privacy; pr != nil {
		if pr.ProfileVisibility != nil {
			p.Privacy.ProfileVisibility = *pr.ProfileVisibility
		}
		setBool(&p.Privacy.ShowEmail, pr.ShowEmail)
		setBool(&p.Privacy.ShowLocation, pr.ShowLocation)
		setBool(&p.Privacy.AllowSearch, pr.AllowSearch)
	}
	return p
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// CreateUserRequest contains the data needed to create a new user.
type CreateUserRequest struct {
	Email       string             `json:"email" validate:"required"`
	FirstName   string             `json:"first_name" validate:"required"`
	LastName    string             `json:"last_name" validate:"required"`
	Role        domain.Role        `json:"role" validate:"required"`
	Profile     *ProfileUpdate     `json:"profile,omitempty"`
	Preferences *PreferencesUpdate `json:"preferences,omitempty"`
}

// UpdateUserRequest changes a user's profile and preferences.
type UpdateUserRequest struct {
	ID          string             `json:"id" validate:"required"`
	Profile     *ProfileUpdate     `json:"profile,omitempty"`
	Preferences *PreferencesUpdate `json:"preferences,omitempty"`
}

// ChangeUserStatusRequest moves a user to State.
type ChangeUserStatusRequest struct {
	ID        string           `json:"id" validate:"required"`
	State     domain.UserState `json:"state" validate:"required"`
	Reason    string           `json:"reason,omitempty"`
	ChangedBy string           `json:"changed_by,omitempty"`
}

// ChangeUserRoleRequest replaces a user's role.
type ChangeUserRoleRequest struct {
	ID        string      `json:"id" validate:"required"`
	Role      domain.Role `json:"role" validate:"required"`
	ChangedBy string      `json:"changed_by,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// BulkChangeUserStatusRequest applies one status to many users.
type BulkChangeUserStatusRequest struct {
	IDs       []string         `json:"ids"`
	State     domain.UserState `json:"state" validate:"required"`
	Reason    string           `json:"reason,omitempty"`
	ChangedBy string           `json:"changed_by,omitempty"`
}

// BulkChangeUserRoleRequest applies one role to many users.
type BulkChangeUserRoleRequest struct {
	IDs       []string    `json:"ids"`
	Role      domain.Role `json:"role" validate:"required"`
	ChangedBy string      `json:"changed_by,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// =============================================================================
// Create / update / delete
// =============================================================================

// CreateUser registers a new pending user.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (user *domain.User, err error) {
	defer func() { s.metrics.RecordUserOperation("create", err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	email, err := domain.NewEmail(req.Email)
	if err != nil {
		return nil, err
	}
	exists, err := s.emailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.NewDomainError(domain.ErrUserAlreadyExists, "email already registered", email.Value())
	}

	now := s.now()
	user, err = domain.NewUser(domain.NewUserParams{
		ID:        s.opts.newID(),
		Email:     email.Value(),
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		State:     domain.StatePending,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}
	if req.Profile != nil {
		user = user.WithProfile(req.Profile.apply(user.Profile()), now)
	}
	if req.Preferences != nil {
		if user, err = user.WithPreferences(req.Preferences.apply(user.Preferences()), now); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		if !domain.IsConflict(err) {
			s.logger.Error().Err(err).Str("email", email.Value()).Msg("failed to create user")
		}
		return nil, passThrough(err)
	}

	s.logger.Info().
		Str("user_id", user.ID().String()).
		Str("email", email.Value()).
		Str("role", string(user.Role())).
		Msg("user created")

	return user, nil
}

func (s *UserService) emailTaken(ctx context.Context, email domain.Email) (bool, error) {
	_, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case domain.IsNotFound(err):
		return false, nil
	default:
		s.logger.Error().Err(err).Str("email", email.Value()).Msg("failed to check email existence")
		return false, passThrough(err)
	}
}

// UpdateUser merges profile and preference changes into a stored user.
func (s *UserService) UpdateUser(ctx context.Context, req UpdateUserRequest) (user *domain.User, err error) {
	defer func() { s.metrics.RecordUserOperation("update", err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	user, err = s.GetUserByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user = user.WithProfile(req.Profile.apply(user.Profile()), now)
	if user, err = user.WithPreferences(req.Preferences.apply(user.Preferences()), now); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, user, "failed to update user"); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", req.ID).Msg("user updated")
	return user, nil
}

// DeleteUser removes a user and reports whether one existed.
func (s *UserService) DeleteUser(ctx context.Context, id string) (removed bool, err error) {
	defer func() { s.metrics.RecordUserOperation("delete", err) }()

	userID, err := domain.NewUserID(id)
	if err != nil {
		return false, err
	}
	removed, err = s.userRepo.Delete(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to delete user")
		return false, passThrough(err)
	}
	if removed {
		s.logger.Info().Str("user_id", id).Msg("user deleted")
	}
	return removed, nil
}

func (s *UserService) persist(ctx context.Context, user *domain.User, msg string) error {
	if err := s.userRepo.Update(ctx, user); err != nil {
		if !domain.IsNotFound(err) && !domain.IsConflict(err) {
			s.logger.Error().Err(err).Str("user_id", user.ID().String()).Msg(msg)
		}
		return passThrough(err)
	}
	return nil
}

// =============================================================================
// Lookups
// =============================================================================

// GetUserByID retrieves a user by ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	userID, err := domain.NewUserID(id)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.Error().Err(err).Str("user_id", id).Msg("failed to get user")
		}
		return nil, passThrough(err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	addr, err := domain.NewEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByEmail(ctx, addr)
	if err != nil {
		return nil, passThrough(err)
	}
	return user, nil
}

// FindAll returns every user in insertion order.
func (s *UserService) FindAll(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	return users, passThrough(err)
}

// GetActiveUsers returns users whose status is active.
func (s *UserService) GetActiveUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.FindActive(ctx)
	return users, passThrough(err)
}

// GetUsersByRole returns users holding role.
func (s *UserService) GetUsersByRole(ctx context.Context, role string) ([]*domain.User, error) {
	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.FindByRole(ctx, r)
	return users, passThrough(err)
}

// GetUsersByStatus returns users in state.
func (s *UserService) GetUsersByStatus(ctx context.Context, state string) ([]*domain.User, error) {
	st, err := domain.ParseUserState(state)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.FindByStatus(ctx, st)
	return users, passThrough(err)
}

// =============================================================================
// Status and role
// =============================================================================

// ActivateUser marks a user active.
func (s *UserService) ActivateUser(ctx context.Context, id, activatedBy string) (*domain.User, error) {
	return s.ChangeUserStatus(ctx, ChangeUserStatusRequest{ID: id, State: domain.StateActive, ChangedBy: activatedBy})
}

// DeactivateUser marks a user inactive. An empty reason uses the default.
func (s *UserService) DeactivateUser(ctx context.Context, id, deactivatedBy, reason string) (*domain.User, error) {
	return s.ChangeUserStatus(ctx, ChangeUserStatusRequest{ID: id, State: domain.StateInactive, Reason: reason, ChangedBy: deactivatedBy})
}

// SuspendUser suspends a user. The reason is mandatory.
func (s *UserService) SuspendUser(ctx context.Context, id, suspendedBy, reason string) (*domain.User, error) {
	return s.ChangeUserStatus(ctx, ChangeUserStatusRequest{ID: id, State: domain.StateSuspended, Reason: reason, ChangedBy: suspendedBy})
}

// UnsuspendUser lifts a suspension by reactivating the user.
func (s *UserService) UnsuspendUser(ctx context.Context, id, unsuspendedBy string) (*domain.User, error) {
	return s.ChangeUserStatus(ctx, ChangeUserStatusRequest{
		ID:        id,
		State:     domain.StateActive,
		Reason:    ReasonSuspensionLifted,
		ChangedBy: unsuspendedBy,
	})
}

// ChangeUserStatus moves a user to any state. Transitions are unrestricted;
// each one records its reason, time and actor.
func (s *UserService) ChangeUserStatus(ctx context.Context, req ChangeUserStatusRequest) (user *domain.User, err error) {
	defer func() { s.metrics.RecordUserOperation("change_status", err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	state, err := domain.ParseUserState(string(req.State))
	if err != nil {
		return nil, err
	}
	user, err = s.GetUserByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	reason, err := statusReason(state, req.Reason)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status, err := domain.NewStatus(state, reason, req.ChangedBy, now)
	if err != nil {
		return nil, err
	}
	previous := user.Status().State()
	user = user.WithStatus(status, now)
	if err := s.persist(ctx, user, "failed to update user status"); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", req.ID).
		Str("from", string(previous)).
		Str("to", string(state)).
		Str("changed_by", req.ChangedBy).
		Str("reason", reason).
		Msg("user status changed")

	return user, nil
}

func statusReason(state domain.UserState, reason string) (string, error) {
	if reason != "" {
		return reason, nil
	}
	switch state {
	case domain.StateActive:
		return ReasonActivated, nil
	case domain.StateInactive:
		return ReasonDeactivated, nil
	case domain.StatePending:
		return ReasonReturnedPending, nil
	default:
		return "", ErrSuspensionReasonRequired
	}
}

// ChangeUserRole replaces a user's role; permissions follow the new role.
func (s *UserService) ChangeUserRole(ctx context.Context, req ChangeUserRoleRequest) (user *domain.User, err error) {
	defer func() { s.metrics.RecordUserOperation("change_role", err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(string(req.Role))
	if err != nil {
		return nil, err
	}
	user, err = s.GetUserByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	previous := user.Role()
	if user, err = user.WithRole(role, s.now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, user, "failed to update user role"); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", req.ID).
		Str("from", string(previous)).
		Str("to", string(role)).
		Str("changed_by", req.ChangedBy).
		Msg("user role changed")

	return user, nil
}

// =============================================================================
// Bulk operations
// =============================================================================

// BulkChangeUserStatus applies ChangeUserStatus to each ID in order.
// Only a malformed request or an unknown state fails the call. Every other
// failure, a suspension without reason included, is recorded per item.
func (s *UserService) BulkChangeUserStatus(ctx context.Context, req BulkChangeUserStatusRequest) (*BatchReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	state, err := domain.ParseUserState(string(req.State))
	if err != nil {
		return nil, err
	}

	report := newBatchReport(len(req.IDs))
	for _, id := range req.IDs {
		_, err := s.ChangeUserStatus(ctx, ChangeUserStatusRequest{
			ID:        id,
			State:     state,
			Reason:    req.Reason,
			ChangedBy: req.ChangedBy,
		})
		s.recordBulk(report, "bulk_status", id, err)
	}

	s.logBatch("bulk status change finished", report)
	return report, nil
}

// BulkChangeUserRole applies ChangeUserRole to each ID in order.
func (s *UserService) BulkChangeUserRole(ctx context.Context, req BulkChangeUserRoleRequest) (*BatchReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(string(req.Role))
	if err != nil {
		return nil, err
	}

	report := newBatchReport(len(req.IDs))
	for _, id := range req.IDs {
		_, err := s.ChangeUserRole(ctx, ChangeUserRoleRequest{
			ID:        id,
			Role:      role,
			ChangedBy: req.ChangedBy,
			Reason:    req.Reason,
		})
		s.recordBulk(report, "bulk_role", id, err)
	}

	s.logBatch("bulk role change finished", report)
	return report, nil
}

func (s *UserService) recordBulk(report *BatchReport, op, id string, err error) {
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", id).Str("operation", op).Msg("bulk item failed")
	}
	s.metrics.RecordBulkItem(op, err)
	report.record(id, err)
}

func (s *UserService) logBatch(msg string, report *BatchReport) {
	s.logger.Info().
		Int("requested", report.Requested).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg(msg)
}

// =============================================================================
// Permissions
// =============================================================================

// GetUserPermissions lists what the user's role allows.
func (s *UserService) GetUserPermissions(ctx context.Context, id string) ([]domain.Permission, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Permissions(), nil
}

// CanUserPerformAction reports whether the user holds p.
// Unknown users cannot perform anything.
func (s *UserService) CanUserPerformAction(ctx context.Context, id string, p domain.Permission) (bool, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) || domain.IsValidation(err) {
			return false, nil
		}
		return false, err
	}
	return user.HasPermission(p), nil
}

// =============================================================================
// Queries
// =============================================================================

// SearchUsers filters, sorts and paginates users.
func (s *UserService) SearchUsers(ctx context.Context, criteria repository.UserSearchCriteria) (*repository.UserSearchResult, error) {
	res, err := s.userQuery.Search(ctx, criteria)
	if err != nil {
		return nil, passThrough(err)
	}
	return res, nil
}

// GetUserStatistics aggregates counts over all users.
func (s *UserService) GetUserStatistics(ctx context.Context) (*repository.UserStatistics, error) {
	stats, err := s.userQuery.Statistics(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute user statistics")
		return nil, passThrough(err)
	}
	return stats, nil
}

// GetUsersWithLowActivity returns users idle for at least days.
func (s *UserService) GetUsersWithLowActivity(ctx context.Context, days int) ([]*domain.User, error) {
	if days < 0 {
		return nil, domain.NewDomainError(domain.ErrValidation, "days must not be negative", fmt.Sprint(days))
	}
	users, err := s.userQuery.FindWithLowActivity(ctx, days)
	return users, passThrough(err)
}

// GetNewUsersThisMonth returns users created since the start of the current UTC month.
func (s *UserService) GetNewUsersThisMonth(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, passThrough(err)
	}
	return query.NewUsersSince(users, query.StartOfMonth(s.now())), nil
}

// GetUsersByPermission returns users whose role grants p.
func (s *UserService) GetUsersByPermission(ctx context.Context, p domain.Permission) ([]*domain.User, error) {
	users, err := s.userQuery.FindByPermission(ctx, p)
	return users, passThrough(err)
}

// =============================================================================
// Preferences and activity
// =============================================================================

// UpdateUserPreferences merges preference changes into a stored user.
func (s *UserService) UpdateUserPreferences(ctx context.Context, id string, prefs PreferencesUpdate) (*domain.User, error) {
	return s.UpdateUser(ctx, UpdateUserRequest{ID: id, Preferences: &prefs})
}

// GetUserPreferences returns a user's preferences.
func (s *UserService) GetUserPreferences(ctx context.Context, id string) (domain.Preferences, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return domain.Preferences{}, err
	}
	return user.Preferences(), nil
}

// RecordUserLogin stamps the user's last login time.
func (s *UserService) RecordUserLogin(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordUserOperation("record_login", err) }()

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	user = user.WithLastLogin(s.now())
	if err := s.persist(ctx, user, "failed to record login"); err != nil {
		return err
	}
	s.logger.Debug().Str("user_id", id).Msg("login recorded")
	return nil
}
