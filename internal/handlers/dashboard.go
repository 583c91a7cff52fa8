package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
)

// DashboardHandler summarises open payables, receivables and upcoming
// recurring items of the caller's company.
type DashboardHandler struct {
	responder
	transactions *services.TransactionService
	recurring    *services.RecurringService
}

func NewDashboardHandler(transactions *services.TransactionService, recurring *services.RecurringService, log *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{responder: responder{log: log}, transactions: transactions, recurring: recurring}
}

// Summary is the dashboard payload.
type Summary struct {
	OpenPayables    decimal.Decimal               `json:"open_payables"`
	OpenReceivables decimal.Decimal               `json:"open_receivables"`
	OpenCount       int                           `json:"open_count"`
	Upcoming        []models.RecurringTransaction `json:"upcoming"`
}

// open reports whether t still awaits settlement.
func open(t models.Transaction) bool {
	switch t.Status {
	case models.StatusPending, models.StatusOverdue, models.StatusScheduled:
		return true
	}
	return false
}

func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	tc := caller(r)
	txs, err := h.transactions.List(r.Context(), tc, services.TransactionFilter{})
	if errors.Is(err, services.ErrNoTenant) {
		// Users without a company still reach the dashboard.
		h.page(w, r, "dashboard.html", Summary{}, map[string]any{"NoTenant": true})
		return
	}
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	s := Summary{OpenPayables: decimal.Zero, OpenReceivables: decimal.Zero}
	for _, t := range txs {
		if !open(t) {
			continue
		}
		s.OpenCount++
		switch t.Type {
		case models.TypeExpense:
			s.OpenPayables = s.OpenPayables.Add(t.Amount)
		case models.TypeIncome:
			s.OpenReceivables = s.OpenReceivables.Add(t.Amount)
		}
	}
	upcoming, err := h.recurring.List(r.Context(), tc, models.RecurringActive)
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	if len(upcoming) > 5 {
		upcoming = upcoming[:5]
	}
	s.Upcoming = upcoming
	h.page(w, r, "dashboard.html", s, map[string]any{"Summary": s})
}
