package handlers

import (
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
)

// CategoryHandler manages income and expense categories.
type CategoryHandler struct {
	responder
	categories *services.CategoryService
}

func NewCategoryHandler(categories *services.CategoryService, log *logrus.Logger) *CategoryHandler {
	return &CategoryHandler{responder: responder{log: log}, categories: categories}
}

func categoryForm(id string, in services.CategoryInput) map[string]any {
	return map[string]any{"ID": id, "IsEdit": id != "", "Category": in, "Types": services.CategoryTypes}
}

func (h *CategoryHandler) input(r *http.Request) (services.CategoryInput, error) {
	var in services.CategoryInput
	err := decode(r, &in, func(vals url.Values) error {
		in = services.CategoryInput{
			Name:  formString(vals, "name"),
			Type:  formString(vals, "type"),
			Color: formString(vals, "color"),
		}
		return nil
	})
	return in, err
}

// List accepts an optional ?type=income|expense filter.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	categories, err := h.categories.List(r.Context(), caller(r), typ)
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "categories/index.html", categories, map[string]any{"Categories": categories, "Type": typ})
}

func (h *CategoryHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "categories/form.html", categoryForm("", services.CategoryInput{Type: string(models.TypeExpense)}))
}

func (h *CategoryHandler) Edit(w http.ResponseWriter, r *http.Request) {
	c, err := h.categories.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	in := services.CategoryInput{Name: c.Name, Type: string(c.Type), Color: c.Color}
	h.page(w, r, "categories/form.html", c, categoryForm(c.ID.String(), in))
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var c *models.TransactionCategory
		if c, err = h.categories.Create(r.Context(), caller(r), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", c, "/categories")
			return
		}
	}
	h.fail(w, r, err, "categories/form.html", categoryForm("", in))
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var c *models.TransactionCategory
		if c, err = h.categories.Update(r.Context(), caller(r), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", c, "/categories")
			return
		}
	}
	h.fail(w, r, err, "categories/form.html", categoryForm(id, in))
}

// SetActive toggles a category; the body carries "active".
func (h *CategoryHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	err := decode(r, &body, func(vals url.Values) error {
		body.Active = checked(vals, "active")
		return nil
	})
	if err == nil {
		err = h.categories.SetActive(r.Context(), caller(r), r.PathValue("id"), body.Active)
	}
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "saved", body, "/categories")
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Delete(r.Context(), caller(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/categories")
}
