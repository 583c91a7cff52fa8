package handlers

import (
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
)

// CompanyHandler administers tenants.
type CompanyHandler struct {
	responder
	companies *services.CompanyService
}

func NewCompanyHandler(companies *services.CompanyService, log *logrus.Logger) *CompanyHandler {
	return &CompanyHandler{responder: responder{log: log}, companies: companies}
}

func companyForm(id string, in services.CompanyInput) map[string]any {
	return map[string]any{"ID": id, "IsEdit": id != "", "Company": in}
}

func (h *CompanyHandler) input(r *http.Request) (services.CompanyInput, error) {
	var in services.CompanyInput
	err := decode(r, &in, func(vals url.Values) error {
		in = services.CompanyInput{
			Name:     formString(vals, "name"),
			Document: formString(vals, "document"),
			Email:    formString(vals, "email"),
			Phone:    formString(vals, "phone"),
		}
		return nil
	})
	return in, err
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companies.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "admin/companies/index.html", companies, map[string]any{"Companies": companies})
}

func (h *CompanyHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin/companies/form.html", companyForm("", services.CompanyInput{}))
}

func (h *CompanyHandler) Edit(w http.ResponseWriter, r *http.Request) {
	c, err := h.companies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	in := services.CompanyInput{Name: c.Name, Document: c.Document, Email: c.Email, Phone: c.Phone}
	h.page(w, r, "admin/companies/form.html", c, companyForm(c.ID.String(), in))
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var c *models.Company
		if c, err = h.companies.Create(r.Context(), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", c, "/admin/companies")
			return
		}
	}
	h.fail(w, r, err, "admin/companies/form.html", companyForm("", in))
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var c *models.Company
		if c, err = h.companies.Update(r.Context(), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", c, "/admin/companies")
			return
		}
	}
	h.fail(w, r, err, "admin/companies/form.html", companyForm(id, in))
}

// Delete removes a company no user belongs to.
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.companies.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/admin/companies")
}
