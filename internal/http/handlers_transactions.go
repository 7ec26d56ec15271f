package http

import (
	"net/http"

	"hisab/internal/core"
	"hisab/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, fail := parseBody(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	in := transactionInput(p)

	_, page := s.page(r)
	err := page.SubmitTransaction(r.Context(), in, func() {
		s.appMetrics.transactionsCreated.Add(1)
	})
	if err != nil {
		s.submitFailed(w, r, err, "Failed to add transaction", "transaction_form", func(msg string) any {
			return formData[core.TransactionInput]{Input: in, Error: msg}
		})
		return
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Transaction form submitted",
		log.FieldKind, in.Type,
		log.FieldCategory, in.Category)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	b := NewHTMXResponse().
		TriggerTransactionChanged().
		TriggerStatsRefresh().
		TriggerFormReset("transaction-form").
		TriggerSuccessNotification("Transaction added successfully!")
	s.render(w, r, b, "transaction_form", formData[core.TransactionInput]{Input: page.TransactionForm.Input()})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		s.mutationFailed(w, r, err, "Failed to delete transaction")
		return
	}
	s.appMetrics.recordsDeleted.Add(1)

	s.done(w, r, NewHTMXResponse().
		TriggerTransactionChanged().
		TriggerStatsRefresh().
		TriggerSuccessNotification("Transaction deleted"))
}
