package http

import (
	"net/http"

	"hisab/internal/core"
	"hisab/internal/log"
)

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	p, fail := parseBody(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	in := debtInput(p)

	_, page := s.page(r)
	err := page.SubmitDebt(r.Context(), in, func() {
		s.appMetrics.debtsCreated.Add(1)
	})
	if err != nil {
		s.submitFailed(w, r, err, "Failed to add debt record", "debt_form", func(msg string) any {
			return formData[core.DebtInput]{Input: in, Error: msg}
		})
		return
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Debt form submitted",
		log.FieldKind, in.Type,
		log.FieldPerson, in.PersonName)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	b := NewHTMXResponse().
		TriggerDebtChanged().
		TriggerStatsRefresh().
		TriggerFormReset("debt-form").
		TriggerSuccessNotification("Debt record added successfully!")
	s.render(w, r, b, "debt_form", formData[core.DebtInput]{Input: page.DebtForm.Input()})
}

func (s *Server) handleSettleDebt(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.SettleDebt(r.Context(), r.PathValue("id")); err != nil {
		s.mutationFailed(w, r, err, "Failed to settle debt")
		return
	}
	s.appMetrics.debtsSettled.Add(1)

	s.done(w, r, NewHTMXResponse().
		TriggerDebtChanged().
		TriggerStatsRefresh().
		TriggerSuccessNotification("Debt marked as settled!"))
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteDebt(r.Context(), r.PathValue("id")); err != nil {
		s.mutationFailed(w, r, err, "Failed to delete debt record")
		return
	}
	s.appMetrics.recordsDeleted.Add(1)

	s.done(w, r, NewHTMXResponse().
		TriggerDebtChanged().
		TriggerStatsRefresh().
		TriggerSuccessNotification("Debt record deleted"))
}
