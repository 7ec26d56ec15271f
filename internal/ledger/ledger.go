// Package ledger is the data access facade: it validates input, attaches the
// signed-in owner, talks to the store and publishes a ledger event after every
// committed write.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hisab/internal/auth"
	"hisab/internal/cache"
	"hisab/internal/core"
	"hisab/internal/events"
	"hisab/internal/log"
	"hisab/internal/store"
)

type Options struct {
	// CacheTTL bounds how long a dashboard snapshot is reused.
	CacheTTL time.Duration
	// Timeout bounds each store call.
	Timeout time.Duration
	// Now is the clock used for created_at and settlement dates.
	Now func() time.Time
}

type Ledger struct {
	store   store.Store
	auth    auth.Provider
	bus     *events.Bus
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger

	stats  *cache.LRUCache[core.DashboardStats]
	flight singleflight.Group
	mu     sync.Mutex
	guards map[string]*statsGuard
}

const maxCachedStats = 1000

func New(st store.Store, p auth.Provider, bus *events.Bus, opts Options) *Ledger {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 7 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Ledger{
		store:    st,
		auth:     p,
		bus:      bus,
		timeout:  opts.Timeout,
		now:      opts.Now,
		logger:   log.WithComponent(log.ComponentLedger),
		stats:    cache.NewLRUCache[core.DashboardStats](maxCachedStats, opts.CacheTTL),
		guards:   make(map[string]*statsGuard),
	}
	bus.Subscribe(func(_ context.Context, e events.Event) { l.invalidate(e.UserID) })
	return l
}

// StatsCache exposes the snapshot cache so it can join the cleanup cycle.
func (l *Ledger) StatsCache() cache.Cleaner {
	return l.stats
}

// owner resolves the signed-in user and returns ctx scoped to them.
func (l *Ledger) owner(ctx context.Context, op string) (context.Context, string, error) {
	u, ok := l.auth.CurrentUser(ctx)
	if !ok {
		return nil, "", &AuthError{Op: op}
	}
	return store.WithOwner(ctx, u.ID), u.ID, nil
}

func (l *Ledger) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Ledger) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	tx, err := in.Parse()
	if err != nil {
		return core.Transaction{}, err
	}
	ctx, userID, err := l.owner(ctx, "create transaction")
	if err != nil {
		return core.Transaction{}, err
	}

	rec := transactionRecord(uuid.NewString(), userID, tx, l.now())
	cctx, cancel := l.call(ctx)
	defer cancel()
	if err := l.store.Insert(cctx, store.Transactions, rec); err != nil {
		return core.Transaction{}, storeErr("insert", store.Transactions, err)
	}

	l.logger.InfoContext(ctx, "Transaction created", log.NewFields().
		WithUser(userID).
		WithOperation(log.OpCreate).
		WithEntry(store.Transactions, rec.String("id"), string(tx.Type), tx.Amount).
		ToSlice()...)
	l.publish(ctx, events.TransactionCreated, store.Transactions, rec.String("id"), userID, payload(rec))
	return toTransaction(rec)
}

func (l *Ledger) CreateDebt(ctx context.Context, in core.DebtInput) (core.Debt, error) {
	d, err := in.Parse()
	if err != nil {
		return core.Debt{}, err
	}
	ctx, userID, err := l.owner(ctx, "create debt")
	if err != nil {
		return core.Debt{}, err
	}

	rec := debtRecord(uuid.NewString(), userID, d)
	cctx, cancel := l.call(ctx)
	defer cancel()
	if err := l.store.Insert(cctx, store.Debts, rec); err != nil {
		return core.Debt{}, storeErr("insert", store.Debts, err)
	}

	l.logger.InfoContext(ctx, "Debt created", log.NewFields().
		WithUser(userID).
		WithOperation(log.OpCreate).
		WithEntry(store.Debts, rec.String("id"), string(d.Type), d.Amount).
		ToSlice()...)
	l.publish(ctx, events.DebtCreated, store.Debts, rec.String("id"), userID, payload(rec))
	return toDebt(rec)
}

// ListTransactions returns the user's transactions, newest date first and
// newest entry first within a date.
func (l *Ledger) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	ctx, _, err := l.owner(ctx, "list transactions")
	if err != nil {
		return nil, err
	}
	return l.listTransactions(ctx)
}

func (l *Ledger) listTransactions(ctx context.Context) ([]core.Transaction, error) {
	cctx, cancel := l.call(ctx)
	defer cancel()
	rows, err := l.store.Query(cctx, store.Transactions, store.Query{
		Order: []store.Order{store.Desc("transaction_date"), store.Desc("created_at")},
	})
	if err != nil {
		return nil, storeErr("query", store.Transactions, err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := toTransaction(r)
		if err != nil {
			return nil, storeErr("decode", store.Transactions, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// ListDebts returns pending debts before settled ones, newest date first.
func (l *Ledger) ListDebts(ctx context.Context) ([]core.Debt, error) {
	ctx, _, err := l.owner(ctx, "list debts")
	if err != nil {
		return nil, err
	}
	return l.listDebts(ctx, store.Query{
		Order: []store.Order{store.Asc("status"), store.Desc("debt_date")},
	})
}

// ListPendingDebts returns only debts still awaiting settlement.
func (l *Ledger) ListPendingDebts(ctx context.Context) ([]core.Debt, error) {
	ctx, _, err := l.owner(ctx, "list pending debts")
	if err != nil {
		return nil, err
	}
	return l.listPending(ctx)
}

func (l *Ledger) listPending(ctx context.Context) ([]core.Debt, error) {
	return l.listDebts(ctx, store.Query{
		Filters: []store.Filter{store.Eq("status", string(core.Pending))},
	})
}

func (l *Ledger) listDebts(ctx context.Context, q store.Query) ([]core.Debt, error) {
	cctx, cancel := l.call(ctx)
	defer cancel()
	rows, err := l.store.Query(cctx, store.Debts, q)
	if err != nil {
		return nil, storeErr("query", store.Debts, err)
	}
	out := make([]core.Debt, 0, len(rows))
	for _, r := range rows {
		d, err := toDebt(r)
		if err != nil {
			return nil, storeErr("decode", store.Debts, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// SettleDebt marks the debt settled as of today. Settling an already settled
// or unknown debt changes nothing.
func (l *Ledger) SettleDebt(ctx context.Context, id string) error {
	ctx, userID, err := l.owner(ctx, "settle debt")
	if err != nil {
		return err
	}
	if !validID(id) {
		return nil
	}

	y, m, d := l.now().Date()
	patch := store.Record{
		"status":       string(core.Settled),
		"settled_date": core.NewDate(y, int(m), d).String(),
	}
	cctx, cancel := l.call(ctx)
	defer cancel()
	// Only a pending row is updated, so concurrent settles change it once.
	n, err := l.store.Update(cctx, store.Debts, id, patch, store.Eq("status", string(core.Pending)))
	if err != nil {
		return storeErr("update", store.Debts, err)
	}
	if n == 0 {
		return nil
	}

	l.logger.InfoContext(ctx, "Debt settled",
		log.FieldUserID, userID,
		log.FieldID, id,
		log.FieldOperation, log.OpSettle)
	l.publish(ctx, events.DebtSettled, store.Debts, id, userID, payload(patch))
	return nil
}

func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	return l.delete(ctx, store.Transactions, id, events.TransactionDeleted)
}

func (l *Ledger) DeleteDebt(ctx context.Context, id string) error {
	return l.delete(ctx, store.Debts, id, events.DebtDeleted)
}

// delete removes one of the user's rows. Nothing is published when the id
// matched no row of theirs.
func (l *Ledger) delete(ctx context.Context, collection, id string, typ events.Type) error {
	ctx, userID, err := l.owner(ctx, "delete "+collection)
	if err != nil {
		return err
	}
	if !validID(id) {
		return nil
	}

	cctx, cancel := l.call(ctx)
	defer cancel()
	n, err := l.store.Delete(cctx, collection, id)
	if err != nil {
		return storeErr("delete", collection, err)
	}
	if n == 0 {
		l.logger.DebugContext(ctx, "Delete matched no row",
			log.FieldUserID, userID,
			log.FieldTable, collection,
			log.FieldID, id)
		return nil
	}

	l.logger.InfoContext(ctx, "Row deleted",
		log.FieldUserID, userID,
		log.FieldTable, collection,
		log.FieldID, id,
		log.FieldOperation, log.OpDelete)
	l.publish(ctx, typ, collection, id, userID, nil)
	return nil
}

// Stats aggregates the dashboard totals. Transactions and pending debts are
// fetched concurrently, concurrent callers for the same user share one fetch
// and the snapshot is cached until the next ledger event for that user.
//
// The shared fetch does not inherit the caller's cancellation, so one client
// going away does not fail the others waiting on it.
func (l *Ledger) Stats(ctx context.Context) (core.DashboardStats, error) {
	ctx, userID, err := l.owner(ctx, "stats")
	if err != nil {
		return core.DashboardStats{}, err
	}
	if s, ok := l.stats.Get(userID); ok {
		return s, nil
	}
	return l.sharedStats(ctx, userID)
}

// ReloadStats drops the cached snapshot and aggregates from the store again.
// Pages use it on mount so writes made outside this process show up.
func (l *Ledger) ReloadStats(ctx context.Context) (core.DashboardStats, error) {
	ctx, userID, err := l.owner(ctx, "stats")
	if err != nil {
		return core.DashboardStats{}, err
	}
	l.invalidate(userID)
	l.flight.Forget(userID)
	return l.sharedStats(ctx, userID)
}

func (l *Ledger) sharedStats(ctx context.Context, userID string) (core.DashboardStats, error) {
	ch := l.flight.DoChan(userID, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.computeStats(fctx, userID)
	})
	select {
	case <-ctx.Done():
		return core.DashboardStats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.DashboardStats{}, res.Err
		}
		return res.Val.(core.DashboardStats), nil
	}
}

func (l *Ledger) computeStats(ctx context.Context, userID string) (core.DashboardStats, error) {
	version := l.beginStats(userID)
	var (
		stats core.DashboardStats
		ok    bool
	)
	defer func() { l.finishStats(userID, version, stats, ok) }()

	var (
		txs   []core.Transaction
		debts []core.Debt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = l.listTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		debts, err = l.listPending(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.DashboardStats{}, err
	}

	stats, ok = core.Aggregate(txs, debts), true
	return stats, nil
}

// statsGuard tracks a user's running aggregations. Events bump version so a
// snapshot read before a write is not cached after it.
type statsGuard struct {
	version  uint64
	inFlight int
}

func (l *Ledger) beginStats(userID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.guards[userID]
	if !ok {
		g = &statsGuard{}
		l.guards[userID] = g
	}
	g.inFlight++
	return g.version
}

// finishStats caches stats unless a write landed while they were computed,
// and forgets the guard once no aggregation for the user is running.
func (l *Ledger) finishStats(userID string, version uint64, stats core.DashboardStats, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := l.guards[userID]
	if ok && g.version == version {
		l.stats.Set(userID, stats)
	}
	if g.inFlight--; g.inFlight == 0 {
		delete(l.guards, userID)
	}
}

func (l *Ledger) invalidate(userID string) {
	l.mu.Lock()
	if g, ok := l.guards[userID]; ok {
		g.version++
	}
	l.mu.Unlock()
	l.stats.Delete(userID)
}

func (l *Ledger) publish(ctx context.Context, typ events.Type, collection, id, userID string, record map[string]any) {
	l.bus.Publish(ctx, events.Event{
		Type:       typ,
		Collection: collection,
		RecordID:   id,
		UserID:     userID,
		Record:     record,
		Timestamp:  l.now().UTC(),
	})
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
