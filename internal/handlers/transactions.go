package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
	"github.com/diewo77/go-backoffice/validation"
)

// choices loads the accounts, categories and contacts offered by the
// transaction and recurring forms.
type choices struct {
	accounts   *services.AccountService
	categories *services.CategoryService
	contacts   *services.ContactService
}

func (c choices) fill(r *http.Request, data map[string]any) map[string]any {
	tc := caller(r)
	if as, err := c.accounts.List(r.Context(), tc); err == nil {
		data["Accounts"] = as
	}
	if cs, err := c.categories.List(r.Context(), tc, ""); err == nil {
		data["Categories"] = cs
	}
	if ct, err := c.contacts.List(r.Context(), tc, ""); err == nil {
		data["Contacts"] = ct
	}
	return data
}

func optID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func optDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(validation.DateLayout)
}

// TransactionHandler manages payables and receivables.
type TransactionHandler struct {
	responder
	choices
	transactions *services.TransactionService
}

func NewTransactionHandler(transactions *services.TransactionService, accounts *services.AccountService, categories *services.CategoryService, contacts *services.ContactService, log *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{
		responder:    responder{log: log},
		choices:      choices{accounts: accounts, categories: categories, contacts: contacts},
		transactions: transactions,
	}
}

func (h *TransactionHandler) formData(r *http.Request, id string, in services.TransactionInput) map[string]any {
	return h.fill(r, map[string]any{
		"ID":          id,
		"IsEdit":      id != "",
		"Transaction": in,
		"Types":       models.TransactionTypes,
		"Statuses":    models.TransactionStatuses,
	})
}

func transactionInput(t *models.Transaction) services.TransactionInput {
	return services.TransactionInput{
		AccountID:       t.AccountID.String(),
		CategoryID:      optID(t.CategoryID),
		ContactID:       optID(t.ContactID),
		Type:            string(t.Type),
		Status:          string(t.Status),
		Amount:          t.Amount,
		Description:     t.Description,
		TransactionDate: t.TransactionDate.Format(validation.DateLayout),
		DueDate:         optDate(t.DueDate),
		PaymentDate:     optDate(t.PaymentDate),
	}
}

func (h *TransactionHandler) input(r *http.Request) (services.TransactionInput, error) {
	var in services.TransactionInput
	err := decode(r, &in, func(vals url.Values) error {
		v := validation.Violations{}
		in = services.TransactionInput{
			AccountID:       formString(vals, "accountId"),
			CategoryID:      formString(vals, "categoryId"),
			ContactID:       formString(vals, "contactId"),
			Type:            formString(vals, "type"),
			Status:          formString(vals, "status"),
			Amount:          formDecimal(vals, "amount", v),
			Description:     formString(vals, "description"),
			TransactionDate: formString(vals, "transactionDate"),
			DueDate:         formString(vals, "dueDate"),
			PaymentDate:     formString(vals, "paymentDate"),
		}
		return violations(v)
	})
	return in, err
}

// filter reads ?type, ?status, ?accountId, ?from and ?to.
func filter(q url.Values) (services.TransactionFilter, error) {
	v := validation.Violations{}
	f := services.TransactionFilter{
		Type:   models.TransactionType(q.Get("type")),
		Status: models.TransactionStatus(q.Get("status")),
	}
	if raw := q.Get("type"); raw != "" {
		validation.OneOf("type", raw, models.TransactionTypes, v)
	}
	if raw := q.Get("status"); raw != "" {
		validation.OneOf("status", raw, models.TransactionStatuses, v)
	}
	f.AccountID = validation.OptionalUUID("accountId", q.Get("accountId"), v)
	f.From = validation.OptionalDate("from", q.Get("from"), v)
	f.To = validation.OptionalDate("to", q.Get("to"), v)
	return f, violations(v)
}

func (h *TransactionHandler) list(w http.ResponseWriter, r *http.Request, typ models.TransactionType, title string) {
	f, err := filter(r.URL.Query())
	if err == nil {
		if typ != "" {
			f.Type = typ
		}
		var txs []models.Transaction
		if txs, err = h.transactions.List(r.Context(), caller(r), f); err == nil {
			h.page(w, r, "transactions/index.html", txs, map[string]any{"Transactions": txs, "Title": title, "Filter": f, "Statuses": models.TransactionStatuses})
			return
		}
	}
	h.fail(w, r, err, "", nil)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "", "screen.transactions")
}

// Payables lists expenses.
func (h *TransactionHandler) Payables(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.TypeExpense, "screen.payables")
}

// Receivables lists incomes.
func (h *TransactionHandler) Receivables(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.TypeIncome, "screen.receivables")
}

func (h *TransactionHandler) New(w http.ResponseWriter, r *http.Request) {
	in := services.TransactionInput{
		Type:            string(models.TypeExpense),
		Status:          string(models.StatusPending),
		TransactionDate: time.Now().UTC().Format(validation.DateLayout),
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		in.Type = typ
	}
	h.render(w, r, "transactions/form.html", h.formData(r, "", in))
}

func (h *TransactionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	t, err := h.transactions.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "transactions/form.html", t, h.formData(r, t.ID.String(), transactionInput(t)))
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var t *models.Transaction
		if t, err = h.transactions.Create(r.Context(), caller(r), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", t, "/transactions")
			return
		}
	}
	h.fail(w, r, err, "transactions/form.html", h.formData(r, "", in))
}

func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var t *models.Transaction
		if t, err = h.transactions.Update(r.Context(), caller(r), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", t, "/transactions")
			return
		}
	}
	h.fail(w, r, err, "transactions/form.html", h.formData(r, id, in))
}

// MarkPaid settles a transaction on paymentDate, or its transaction date
// when none is given.
func (h *TransactionHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentDate string `json:"paymentDate"`
	}
	err := decode(r, &body, func(vals url.Values) error {
		body.PaymentDate = formString(vals, "paymentDate")
		return nil
	})
	var t *models.Transaction
	if err == nil {
		v := validation.Violations{}
		var paidOn time.Time
		if d := validation.OptionalDate("paymentDate", body.PaymentDate, v); d != nil {
			paidOn = *d
		}
		if err = violations(v); err == nil {
			t, err = h.transactions.MarkPaid(r.Context(), caller(r), r.PathValue("id"), paidOn)
		}
	}
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "saved", t, "/transactions")
}

func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.transactions.Delete(r.Context(), caller(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/transactions")
}
