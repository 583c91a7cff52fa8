package handlers

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/screens"
	"github.com/diewo77/go-backoffice/internal/services"
)

// RoleHandler manages roles and their screen permission matrix.
type RoleHandler struct {
	responder
	roles *services.RoleService
}

// NewRoleHandler creates a role handler.
func NewRoleHandler(roles *services.RoleService, log *logrus.Logger) *RoleHandler {
	return &RoleHandler{responder: responder{log: log}, roles: roles}
}

// parseRoleForm reads name, isMaster and the permission checkboxes named
// permissions[<screen id>].canView|canEdit|canDelete. An absent checkbox is false.
func parseRoleForm(vals url.Values) services.RoleInput {
	in := services.RoleInput{Name: formString(vals, "name"), IsMaster: checked(vals, "isMaster")}
	rows := map[string]*services.ScreenPermissionInput{}
	for key := range vals {
		if !strings.HasPrefix(key, "permissions[") {
			continue
		}
		end := strings.Index(key, "].")
		if end < 0 {
			continue
		}
		id := key[len("permissions["):end]
		p, ok := rows[id]
		if !ok {
			p = &services.ScreenPermissionInput{ScreenID: id}
			rows[id] = p
		}
		switch key[end+2:] {
		case "canView":
			p.CanView = checked(vals, key)
		case "canEdit":
			p.CanEdit = checked(vals, key)
		case "canDelete":
			p.CanDelete = checked(vals, key)
		}
	}
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		in.ScreenPermissions = append(in.ScreenPermissions, *rows[id])
	}
	return in
}

// formData prepares the permission editor: the catalog grouped by module
// and the grants currently checked, keyed by screen id.
func roleFormData(id, name string, master bool, grants map[string]gate.Grant) map[string]any {
	return map[string]any{
		"ID":       id,
		"IsEdit":   id != "",
		"Name":     name,
		"IsMaster": master,
		"Grants":   grants,
		"Modules":  screens.Modules(),
	}
}

func grantsOf(role *models.Role) map[string]gate.Grant {
	out := make(map[string]gate.Grant, len(role.Permissions))
	for _, p := range role.Permissions {
		out[p.ScreenID.String()] = gate.Grant{CanView: p.CanView, CanEdit: p.CanEdit, CanDelete: p.CanDelete}
	}
	return out
}

func grantsOfInput(in services.RoleInput) map[string]gate.Grant {
	out := make(map[string]gate.Grant, len(in.ScreenPermissions))
	for _, p := range in.ScreenPermissions {
		out[p.ScreenID] = gate.Grant{CanView: p.CanView, CanEdit: p.CanEdit, CanDelete: p.CanDelete}
	}
	return out
}

// List displays all roles with their user counts.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "admin/roles/index.html", roles, map[string]any{"Roles": roles})
}

// Screens returns the screen catalog grouped by module, for API clients
// building a permission payload.
func (h *RoleHandler) Screens(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, httpx.OK("", screens.Modules()))
}

// New displays the form to create a role.
func (h *RoleHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin/roles/form.html", roleFormData("", "", false, nil))
}

// Edit displays a role with its permission matrix.
func (h *RoleHandler) Edit(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.GetRole(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "admin/roles/form.html", role, roleFormData(role.ID.String(), role.Name, role.IsMaster, grantsOf(role)))
}

func (h *RoleHandler) input(r *http.Request) (services.RoleInput, error) {
	var in services.RoleInput
	err := decode(r, &in, func(vals url.Values) error {
		in = parseRoleForm(vals)
		return nil
	})
	return in, err
}

// Create handles POST to create a role with its permissions.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var role *models.Role
		if role, err = h.roles.CreateRole(r.Context(), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", role, "/admin/roles")
			return
		}
	}
	h.fail(w, r, err, "admin/roles/form.html", roleFormData("", in.Name, in.IsMaster, grantsOfInput(in)))
}

// Update handles POST to replace a role and its whole permission set.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var role *models.Role
		if role, err = h.roles.UpdateRole(r.Context(), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", role, "/admin/roles")
			return
		}
	}
	h.fail(w, r, err, "admin/roles/form.html", roleFormData(id, in.Name, in.IsMaster, grantsOfInput(in)))
}

// Delete removes a role that no user holds.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.DeleteRole(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/admin/roles")
}
