package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
	"github.com/diewo77/go-backoffice/validation"
)

// RecurringHandler manages recurring templates and their lifecycle.
type RecurringHandler struct {
	responder
	choices
	recurring *services.RecurringService
}

func NewRecurringHandler(recurring *services.RecurringService, accounts *services.AccountService, categories *services.CategoryService, contacts *services.ContactService, log *logrus.Logger) *RecurringHandler {
	return &RecurringHandler{
		responder: responder{log: log},
		choices:   choices{accounts: accounts, categories: categories, contacts: contacts},
		recurring: recurring,
	}
}

func (h *RecurringHandler) formData(r *http.Request, id string, in services.RecurringInput) map[string]any {
	return h.fill(r, map[string]any{
		"ID":        id,
		"IsEdit":    id != "",
		"Recurring": in,
		"Types":     services.CategoryTypes,
		"Aliases":   []string{"daily", "weekly", "biweekly", "monthly", "quarterly", "yearly"},
	})
}

func recurringInput(t *models.RecurringTransaction) services.RecurringInput {
	return services.RecurringInput{
		AccountID:             t.AccountID.String(),
		CategoryID:            optID(t.CategoryID),
		ContactID:             optID(t.ContactID),
		Description:           t.Description,
		Type:                  string(t.BaseTransactionType),
		Amount:                t.BaseAmount,
		RecurrenceRule:        t.RecurrenceRule,
		StartDate:             t.StartDate.Format(validation.DateLayout),
		EndDate:               optDate(t.EndDate),
		AutoCreateTransaction: t.AutoCreateTransaction,
		DaysBeforeDueToCreate: t.DaysBeforeDueToCreate,
	}
}

func (h *RecurringHandler) input(r *http.Request) (services.RecurringInput, error) {
	var in services.RecurringInput
	err := decode(r, &in, func(vals url.Values) error {
		v := validation.Violations{}
		in = services.RecurringInput{
			AccountID:             formString(vals, "accountId"),
			CategoryID:            formString(vals, "categoryId"),
			ContactID:             formString(vals, "contactId"),
			Description:           formString(vals, "description"),
			Type:                  formString(vals, "baseTransactionType"),
			Amount:                formDecimal(vals, "baseAmount", v),
			RecurrenceRule:        formString(vals, "recurrenceRule"),
			StartDate:             formString(vals, "startDate"),
			EndDate:               formString(vals, "endDate"),
			AutoCreateTransaction: checked(vals, "autoCreateTransaction"),
		}
		if days := formOptInt(vals, "daysBeforeDueToCreate", v); days != nil {
			in.DaysBeforeDueToCreate = *days
		}
		return violations(v)
	})
	return in, err
}

// List accepts an optional ?status=active|paused|finished filter.
func (h *RecurringHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	items, err := h.recurring.List(r.Context(), caller(r), models.RecurringStatus(status))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "recurring/index.html", items, map[string]any{"Recurring": items, "Status": status})
}

func (h *RecurringHandler) New(w http.ResponseWriter, r *http.Request) {
	in := services.RecurringInput{
		Type:                  string(models.TypeExpense),
		RecurrenceRule:        "monthly",
		StartDate:             time.Now().UTC().Format(validation.DateLayout),
		AutoCreateTransaction: true,
	}
	h.render(w, r, "recurring/form.html", h.formData(r, "", in))
}

func (h *RecurringHandler) Edit(w http.ResponseWriter, r *http.Request) {
	t, err := h.recurring.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	data := h.formData(r, t.ID.String(), recurringInput(t))
	data["Template"] = t
	h.page(w, r, "recurring/form.html", t, data)
}

func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var t *models.RecurringTransaction
		if t, err = h.recurring.Create(r.Context(), caller(r), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", t, "/recurring")
			return
		}
	}
	h.fail(w, r, err, "recurring/form.html", h.formData(r, "", in))
}

func (h *RecurringHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var t *models.RecurringTransaction
		if t, err = h.recurring.Update(r.Context(), caller(r), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", t, "/recurring")
			return
		}
	}
	h.fail(w, r, err, "recurring/form.html", h.formData(r, id, in))
}

type transitionFunc func(h *RecurringHandler, r *http.Request) (*models.RecurringTransaction, error)

func (h *RecurringHandler) transition(w http.ResponseWriter, r *http.Request, f transitionFunc) {
	t, err := f(h, r)
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "saved", t, "/recurring")
}

// Pause freezes an active template.
func (h *RecurringHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(h *RecurringHandler, r *http.Request) (*models.RecurringTransaction, error) {
		return h.recurring.Pause(r.Context(), caller(r), r.PathValue("id"))
	})
}

// Resume reactivates a paused template.
func (h *RecurringHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(h *RecurringHandler, r *http.Request) (*models.RecurringTransaction, error) {
		return h.recurring.Resume(r.Context(), caller(r), r.PathValue("id"))
	})
}

// Finish ends a template for good.
func (h *RecurringHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(h *RecurringHandler, r *http.Request) (*models.RecurringTransaction, error) {
		return h.recurring.Finish(r.Context(), caller(r), r.PathValue("id"))
	})
}

func (h *RecurringHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.recurring.Delete(r.Context(), caller(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/recurring")
}
