package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"hisab/internal/core"
)

// handleIndex renders the dashboard and both tabs. A page load is a mount:
// the three views re-fetch concurrently under the request context and the
// totals bypass the stats cache.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user, page := s.page(r)
	ctx := r.Context()

	data := pageData{
		Title:           "Dashboard",
		User:            user,
		TransactionForm: formData[core.TransactionInput]{Input: page.TransactionForm.Input()},
		DebtForm:        formData[core.DebtInput]{Input: page.DebtForm.Input()},
	}

	var g errgroup.Group
	g.Go(func() error {
		data.Dashboard = newDashboardData(page.Dashboard.Reload(ctx))
		return nil
	})
	g.Go(func() error {
		data.Transactions = newTransactionList(page.Transactions.Refresh(ctx))
		return nil
	})
	g.Go(func() error {
		data.Debts = newDebtList(page.Debts.Refresh(ctx))
		return nil
	})
	_ = g.Wait()

	s.render(w, r, NewHTMXResponse(), "index.html", data)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	_, page := s.page(r)
	data := newDashboardData(page.Dashboard.Refresh(r.Context()))

	b := NewHTMXResponse()
	if data.Err != "" {
		b.TriggerErrorNotification(data.Err)
	}
	s.render(w, r, b, "dashboard", data)
}

func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	_, page := s.page(r)
	data := newTransactionList(page.Transactions.Refresh(r.Context()))

	b := NewHTMXResponse()
	if data.Err != "" {
		b.TriggerErrorNotification(data.Err)
	}
	s.render(w, r, b, "transaction_list", data)
}

func (s *Server) handleDebtList(w http.ResponseWriter, r *http.Request) {
	_, page := s.page(r)
	data := newDebtList(page.Debts.Refresh(r.Context()))

	b := NewHTMXResponse()
	if data.Err != "" {
		b.TriggerErrorNotification(data.Err)
	}
	s.render(w, r, b, "debt_list", data)
}
