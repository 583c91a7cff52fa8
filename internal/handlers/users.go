package handlers

import (
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/services"
)

// UserHandler administers users: identity plus profile (company and role).
type UserHandler struct {
	responder
	users     *services.UserService
	roles     *services.RoleService
	companies *services.CompanyService
}

func NewUserHandler(users *services.UserService, roles *services.RoleService, companies *services.CompanyService, log *logrus.Logger) *UserHandler {
	return &UserHandler{responder: responder{log: log}, users: users, roles: roles, companies: companies}
}

// formData loads the role and company choices of the user form.
func (h *UserHandler) formData(r *http.Request, id string, in services.UserInput) map[string]any {
	data := map[string]any{"ID": id, "IsEdit": id != "", "User": in}
	if roles, err := h.roles.ListRoles(r.Context()); err == nil {
		data["Roles"] = roles
	}
	if companies, err := h.companies.List(r.Context()); err == nil {
		data["Companies"] = companies
	}
	return data
}

func (h *UserHandler) input(r *http.Request) (services.UserInput, error) {
	var in services.UserInput
	err := decode(r, &in, func(vals url.Values) error {
		in = services.UserInput{
			Email:        formString(vals, "email"),
			Password:     vals.Get("password"),
			FullName:     formString(vals, "fullName"),
			CompanyID:    formString(vals, "companyId"),
			RoleID:       formString(vals, "roleId"),
			ConfirmEmail: checked(vals, "confirmEmail"),
		}
		return nil
	})
	return in, err
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "admin/users/index.html", users, map[string]any{"Users": users})
}

func (h *UserHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin/users/form.html", h.formData(r, "", services.UserInput{}))
}

func (h *UserHandler) Edit(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	in := services.UserInput{Email: u.Email, FullName: u.FullName}
	if u.CompanyID != nil {
		in.CompanyID = u.CompanyID.String()
	}
	if u.RoleID != nil {
		in.RoleID = u.RoleID.String()
	}
	h.page(w, r, "admin/users/form.html", u, h.formData(r, u.ID.String(), in))
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var u *services.UserView
		if u, err = h.users.CreateUser(r.Context(), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", u, "/admin/users")
			return
		}
	}
	in.Password = ""
	h.fail(w, r, err, "admin/users/form.html", h.formData(r, "", in))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var u *services.UserView
		if u, err = h.users.UpdateUser(r.Context(), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", u, "/admin/users")
			return
		}
	}
	in.Password = ""
	h.fail(w, r, err, "admin/users/form.html", h.formData(r, id, in))
}

// Delete removes the identity and the profile. Admins cannot delete themselves.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserIDFromContext(r.Context())
	if err := h.users.DeleteUser(r.Context(), actor, r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/admin/users")
}
