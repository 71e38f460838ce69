package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/service"
)

// UserHandler serves /api/v1/users.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("handler", "user").Logger(),
	}
}

// Routes mounts the user endpoints.
func (h *UserHandler) Routes(r chi.Router) {
	r.Get("/", h.Search)
	r.Post("/", h.Create)
	r.Get("/statistics", h.Statistics)
	r.Get("/low-activity", h.LowActivity)
	r.Get("/new-this-month", h.NewThisMonth)
	r.Get("/by-permission/{permission}", h.ByPermission)
	r.Post("/bulk/status", h.BulkStatus)
	r.Post("/bulk/role", h.BulkRole)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Put("/status", h.ChangeStatus)
		r.Post("/activate", h.statusAction(domain.StateActive))
		r.Post("/deactivate", h.statusAction(domain.StateInactive))
		r.Post("/suspend", h.statusAction(domain.StateSuspended))
		r.Post("/unsuspend", h.Unsuspend)
		r.Put("/role", h.ChangeRole)
		r.Get("/permissions", h.Permissions)
		r.Get("/can/{permission}", h.Can)
		r.Get("/preferences", h.GetPreferences)
		r.Patch("/preferences", h.UpdatePreferences)
		r.Post("/login", h.RecordLogin)
	})
}

func (h *UserHandler) fail(w http.ResponseWriter, err error) {
	writeServiceError(w, h.logger, err)
}

// ===== Queries =====

// Search handles GET /users with role, state, active, q, created_after,
// created_before, sort, order, limit and offset parameters.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	criteria := repository.UserSearchCriteria{
		Role:          q.Role("role"),
		State:         q.State("state"),
		IsActive:      q.OptionalBool("active"),
		CreatedAfter:  q.OptionalTime("created_after"),
		CreatedBefore: q.OptionalTime("created_before"),
		SearchTerm:    q.String("q"),
		Limit:         q.Int("limit", 0),
		Offset:        q.Int("offset", 0),
		SortBy:        q.String("sort"),
		SortOrder:     repository.SortOrder(q.String("order")),
	}
	if err := q.Err(); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}

	res, err := h.users.SearchUsers(r.Context(), criteria)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h *UserHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.GetUserStatistics(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *UserHandler) LowActivity(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	days := q.Int("days", 30)
	if err := q.Err(); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	users, err := h.users.GetUsersWithLowActivity(r.Context(), days)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

func (h *UserHandler) NewThisMonth(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.GetNewUsersThisMonth(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

func (h *UserHandler) ByPermission(w http.ResponseWriter, r *http.Request) {
	p := domain.Permission(chi.URLParam(r, "permission"))
	users, err := h.users.GetUsersByPermission(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

// ===== Single user =====

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if !bind(w, r, &req) {
		return
	}
	user, err := h.users.CreateUser(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUserRequest
	if !bind(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	user, err := h.users.UpdateUser(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := h.users.DeleteUser(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !removed {
		WriteError(w, http.StatusNotFound, CodeNotFound, domain.ErrUserNotFound.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusBody is the body of the status action endpoints.
type statusBody struct {
	Reason    string `json:"reason,omitempty"`
	ChangedBy string `json:"changed_by,omitempty"`
}

// bindOptional decodes a body when one was sent.
func bindOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return bind(w, r, v)
}

func (h *UserHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req service.ChangeUserStatusRequest
	if !bind(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	user, err := h.users.ChangeUserStatus(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) statusAction(state domain.UserState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body statusBody
		if !bindOptional(w, r, &body) {
			return
		}
		user, err := h.users.ChangeUserStatus(r.Context(), service.ChangeUserStatusRequest{
			ID:        chi.URLParam(r, "id"),
			State:     state,
			Reason:    body.Reason,
			ChangedBy: body.ChangedBy,
		})
		if err != nil {
			h.fail(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, user)
	}
}

func (h *UserHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if !bindOptional(w, r, &body) {
		return
	}
	user, err := h.users.UnsuspendUser(r.Context(), chi.URLParam(r, "id"), body.ChangedBy)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req service.ChangeUserRoleRequest
	if !bind(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	user, err := h.users.ChangeUserRole(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.users.GetUserPermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *UserHandler) Can(w http.ResponseWriter, r *http.Request) {
	p := domain.Permission(chi.URLParam(r, "permission"))
	allowed, err := h.users.CanUserPerformAction(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"permission": p, "allowed": allowed})
}

func (h *UserHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.users.GetUserPreferences(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, prefs)
}

func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req service.PreferencesUpdate
	if !bind(w, r, &req) {
		return
	}
	user, err := h.users.UpdateUserPreferences(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user.Preferences())
}

func (h *UserHandler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	if err := h.users.RecordUserLogin(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Bulk =====

func (h *UserHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req service.BulkChangeUserStatusRequest
	if !bind(w, r, &req) {
		return
	}
	report, err := h.users.BulkChangeUserStatus(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (h *UserHandler) BulkRole(w http.ResponseWriter, r *http.Request) {
	var req service.BulkChangeUserRoleRequest
	if !bind(w, r, &req) {
		return
	}
	report, err := h.users.BulkChangeUserRole(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
