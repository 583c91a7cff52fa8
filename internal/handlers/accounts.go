package handlers

import (
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
	"github.com/diewo77/go-backoffice/validation"
)

// AccountHandler manages the financial accounts of the caller's company.
type AccountHandler struct {
	responder
	accounts   *services.AccountService
	currencies *services.CurrencyService
}

func NewAccountHandler(accounts *services.AccountService, currencies *services.CurrencyService, log *logrus.Logger) *AccountHandler {
	return &AccountHandler{responder: responder{log: log}, accounts: accounts, currencies: currencies}
}

func (h *AccountHandler) formData(r *http.Request, id string, in services.AccountInput) map[string]any {
	data := map[string]any{"ID": id, "IsEdit": id != "", "Account": in, "Types": models.AccountTypes}
	if cs, err := h.currencies.List(r.Context()); err == nil {
		data["Currencies"] = cs
	}
	return data
}

func accountInput(a *models.FinancialAccount) services.AccountInput {
	in := services.AccountInput{
		Name:           a.Name,
		Type:           string(a.Type),
		CurrencyCode:   a.CurrencyCode,
		Institution:    a.Institution,
		InitialBalance: a.InitialBalance,
		IsActive:       a.IsActive,
		StatementDay:   a.StatementDay,
		DueDay:         a.DueDay,
	}
	if a.CardNetwork != nil {
		in.CardNetwork = *a.CardNetwork
	}
	if a.CardLastFour != nil {
		in.CardLastFour = *a.CardLastFour
	}
	if a.CreditLimit.Valid {
		in.CreditLimit = &a.CreditLimit.Decimal
	}
	return in
}

func (h *AccountHandler) input(r *http.Request) (services.AccountInput, error) {
	in := services.AccountInput{IsActive: true}
	err := decode(r, &in, func(vals url.Values) error {
		v := validation.Violations{}
		in = services.AccountInput{
			Name:           formString(vals, "name"),
			Type:           formString(vals, "type"),
			CurrencyCode:   formString(vals, "currencyCode"),
			Institution:    formString(vals, "institution"),
			InitialBalance: formDecimal(vals, "initialBalance", v),
			IsActive:       checked(vals, "isActive"),
			CardNetwork:    formString(vals, "cardNetwork"),
			CardLastFour:   formString(vals, "cardLastFour"),
			CreditLimit:    formOptDecimal(vals, "creditLimit", v),
			StatementDay:   formOptInt(vals, "statementDay", v),
			DueDay:         formOptInt(vals, "dueDay", v),
		}
		return violations(v)
	})
	return in, err
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "accounts/index.html", accounts, map[string]any{"Accounts": accounts})
}

func (h *AccountHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "accounts/form.html", h.formData(r, "", services.AccountInput{IsActive: true, CurrencyCode: "BRL"}))
}

func (h *AccountHandler) Edit(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.page(w, r, "accounts/form.html", a, h.formData(r, a.ID.String(), accountInput(a)))
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err == nil {
		var a *models.FinancialAccount
		if a, err = h.accounts.Create(r.Context(), caller(r), in); err == nil {
			h.done(w, r, http.StatusCreated, "saved", a, "/accounts")
			return
		}
	}
	h.fail(w, r, err, "accounts/form.html", h.formData(r, "", in))
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.input(r)
	if err == nil {
		var a *models.FinancialAccount
		if a, err = h.accounts.Update(r.Context(), caller(r), id, in); err == nil {
			h.done(w, r, http.StatusOK, "saved", a, "/accounts")
			return
		}
	}
	h.fail(w, r, err, "accounts/form.html", h.formData(r, id, in))
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Delete(r.Context(), caller(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	h.done(w, r, http.StatusOK, "deleted", nil, "/accounts")
}
