package views

import (
	"context"
	"sync"
	"time"

	"hisab/internal/cache"
	"hisab/internal/core"
)

// Ledger is the part of the data access facade the views read and write.
type Ledger interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListDebts(ctx context.Context) ([]core.Debt, error)
	Stats(ctx context.Context) (core.DashboardStats, error)
	ReloadStats(ctx context.Context) (core.DashboardStats, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	CreateDebt(ctx context.Context, in core.DebtInput) (core.Debt, error)
}

// Dashboard is the state of the stats panel. Refresh may reuse the ledger's
// cached totals, which in-process events invalidate; Reload always
// aggregates from the store.
type Dashboard struct {
	loader[core.DashboardStats]
	reload func(ctx context.Context) (core.DashboardStats, error)
}

// Reload re-aggregates the totals from the store, bypassing the ledger cache.
func (d *Dashboard) Reload(ctx context.Context) Snapshot[core.DashboardStats] {
	return d.refreshWith(ctx, d.reload)
}

// Page is the view state of one signed-in user.
type Page struct {
	Dashboard       *Dashboard
	Transactions    *List[core.Transaction]
	Debts           *List[core.Debt]
	TransactionForm *Form[core.TransactionInput]
	DebtForm        *Form[core.DebtInput]
	ledger          Ledger
}

func newPage(l Ledger) *Page {
	return &Page{
		Dashboard:       &Dashboard{loader: loader[core.DashboardStats]{fetch: l.Stats}, reload: l.ReloadStats},
		Transactions:    NewList(l.ListTransactions),
		Debts:           NewList(l.ListDebts),
		TransactionForm: NewTransactionForm(),
		DebtForm:        NewDebtForm(),
		ledger:          l,
	}
}

// SubmitTransaction runs the transaction form against the ledger.
func (p *Page) SubmitTransaction(ctx context.Context, in core.TransactionInput, onSuccess func()) error {
	return p.TransactionForm.Submit(ctx, in, func(ctx context.Context, in core.TransactionInput) error {
		_, err := p.ledger.CreateTransaction(ctx, in)
		return err
	}, onSuccess)
}

// SubmitDebt runs the debt form against the ledger.
func (p *Page) SubmitDebt(ctx context.Context, in core.DebtInput, onSuccess func()) error {
	return p.DebtForm.Submit(ctx, in, func(ctx context.Context, in core.DebtInput) error {
		_, err := p.ledger.CreateDebt(ctx, in)
		return err
	}, onSuccess)
}

// Registry hands out per-user pages. Idle pages expire with the session TTL.
type Registry struct {
	mu     sync.Mutex
	ledger Ledger
	pages  *cache.LRUCache[*Page]
}

const maxPages = 10000

func NewRegistry(l Ledger, ttl time.Duration) *Registry {
	return &Registry{ledger: l, pages: cache.NewLRUCache[*Page](maxPages, ttl)}
}

// For returns the page of userID, creating it on first use.
func (r *Registry) For(userID string) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pages.Get(userID); ok {
		return p
	}
	p := newPage(r.ledger)
	r.pages.Set(userID, p)
	return p
}

// Pages exposes the page cache so it can join the cleanup cycle.
func (r *Registry) Pages() cache.Cleaner {
	return r.pages
}
