package handlers

import (
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
)

// ContactHandler manages customers, suppliers and other counterparties.
type ContactHandler struct {
	responder
	contacts *services.ContactService
}

func NewContactHandler(contacts *services.ContactService, log *logrus.Logger) *ContactHandler {
	return &ContactHandler{responder: responder{log: log}, contacts: contacts}
}

func contactForm(id string, in services.ContactInput) map[string]any {
	return map[string]any{"ID": id, "IsEdit": id != "", "Contact": in, "Types": models.ContactTypes}
}

func (h *ContactHandler) input(r *http.Request) (services.ContactInput, error) {
	var in services.ContactInput
	err := decode(r, &in, func(vals url.Values) error {
		in = services.ContactInput{
			Name:     formString(vals, "name"),
			Type:     formString(vals, "type"),
			Email:    formString(vals, "email"),
			Phone:    formString(vals, "phone"),
			Document: formString(vals, "document"),
			Notes:    formString(vals, "notes"),
		}
		return nil
	})
	return in, err
}

// List accepts an optional ?type= filter.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	contacts, err := h.contacts.List(r.Context(), caller(r), typ)
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "contacts/index.html", contacts, map[string]any{"Contacts": contacts, "Type": typ})
}

func (h *ContactHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "contacts/form.html", contactForm("", services.ContactInput{Type: string(models.ContactCustomer)}))
}

func (h *ContactHandler) Edit(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	in := services.ContactInput{Name: c.Name, Type: string(c.Type), Email: c.Email, Phone: c.Phone, Document: c.Document, Notes: c.Notes}
	h.page(w, r, "contacts/form.html", c, contactForm(c.ID.String(), in))
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var c *models.Contact
		if c, err = h.contacts.Create(r.Context(), caller(r), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", c, "/contacts")
			return
		}
	}
	h.fail(w, r, err, "contacts/form.html", contactForm("", in))
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var c *models.Contact
		if c, err = h.contacts.Update(r.Context(), caller(r), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", c, "/contacts")
			return
		}
	}
	h.fail(w, r, err, "contacts/form.html", contactForm(id, in))
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Delete(r.Context(), caller(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/contacts")
}
