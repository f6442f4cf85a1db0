package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dawnmoon/charon/internal/authz"
	"github.com/dawnmoon/charon/internal/platform/httpx"
	"github.com/dawnmoon/charon/internal/shared"
)

// Handler wires HTTP endpoints for role and permission management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validator: validator.New()}
}

// MountRoles registers role routes.
func (h *Handler) MountRoles(r chi.Router) {
	r.Use(h.authz.Authenticate)

	r.With(h.authz.RequireAll(shared.PermRoleView)).Get("/", h.listRoles)
	r.With(h.authz.RequireAll(shared.PermRoleView)).Get("/{id}", h.getRole)
	r.With(h.authz.RequireAll(shared.PermRoleCreate)).Post("/", h.createRole)
	r.With(h.authz.RequireAll(shared.PermRoleUpdate)).Put("/{id}", h.updateRole)
	r.With(h.authz.RequireAll(shared.PermRoleDelete)).Delete("/{id}", h.deleteRole)

	r.With(h.authz.RequireAll(shared.PermRoleUpdate)).Post("/user/{userID}/{id}", h.assignRole)
	r.With(h.authz.RequireAll(shared.PermRoleUpdate)).Delete("/user/{userID}/{id}", h.removeRole)
	r.With(h.authz.RequireAll(shared.PermRoleView)).Get("/user/{userID}", h.userRoles)
	r.With(h.authz.RequireAll(shared.PermRoleView)).Get("/{id}/users", h.roleUsers)
}

// MountPermissions registers permission routes.
func (h *Handler) MountPermissions(r chi.Router) {
	r.Use(h.authz.Authenticate)

	r.With(h.authz.RequireAll(shared.PermPermissionView)).Get("/", h.listPermissions)
	r.With(h.authz.RequireAll(shared.PermPermissionCreate)).Post("/", h.createPermission)
	r.With(h.authz.RequireAll(shared.PermPermissionDelete)).Delete("/{id}", h.deletePermission)

	r.With(h.authz.RequireAll(shared.PermPermissionUpdate)).Post("/role/{roleID}/{id}", h.grantPermission)
	r.With(h.authz.RequireAll(shared.PermPermissionUpdate)).Delete("/role/{roleID}/{id}", h.revokePermission)
	r.With(h.authz.RequireAll(shared.PermPermissionUpdate)).Put("/role/{roleID}", h.setRolePermissions)
	r.With(h.authz.RequireAll(shared.PermPermissionView)).Get("/role/{roleID}", h.rolePermissions)
	r.With(h.authz.
		Require(authz.All(shared.PermPermissionView).AndAny(shared.PermUserView, shared.PermUserUpdate))).
		Get("/user/{userID}", h.userPermissions)
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{ID: role.ID, Name: role.Name, Description: role.Description}
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func toPermissionResponse(perm Permission) permissionResponse {
	return permissionResponse{ID: perm.ID, Code: perm.Code, Description: perm.Description}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", "")
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=256"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", "")
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", "")
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, roleID, err := pathUserRole(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "")
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, roleID, err := pathUserRole(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "")
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "")
		return
	}
	roles, err := h.service.repo.FindRolesByUserID(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) roleUsers(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", "")
		return
	}
	ids, err := h.service.repo.FindUsersByRoleID(r.Context(), roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]int64{"user_ids": ids})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		resp = append(resp, toPermissionResponse(perm))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type permissionRequest struct {
	Code        string `json:"code" validate:"required,max=128"`
	Description string `json:"description" validate:"max=256"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Code, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Permission ID", "")
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, permID, err := pathRolePermission(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "")
		return
	}
	if err := h.service.GrantPermission(r.Context(), roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, permID, err := pathRolePermission(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "")
		return
	}
	if err := h.service.RevokePermission(r.Context(), roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setRolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", "")
		return
	}
	var req setRolePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", "")
		return
	}
	perms, err := h.service.repo.FindPermissionsByRoleID(r.Context(), roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		resp = append(resp, toPermissionResponse(perm))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "")
		return
	}
	perms, err := h.service.repo.FindPermissionsByUserID(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		resp = append(resp, toPermissionResponse(perm))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func pathInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func pathUserRole(r *http.Request) (userID, roleID int64, err error) {
	if userID, err = pathInt64(r, "userID"); err != nil {
		return 0, 0, err
	}
	roleID, err = pathInt64(r, "id")
	return userID, roleID, err
}

func pathRolePermission(r *http.Request) (roleID, permID int64, err error) {
	if roleID, err = pathInt64(r, "roleID"); err != nil {
		return 0, 0, err
	}
	permID, err = pathInt64(r, "id")
	return roleID, permID, err
}
