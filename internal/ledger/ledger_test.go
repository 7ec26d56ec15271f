package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hisab/internal/auth"
	"hisab/internal/core"
	"hisab/internal/events"
	"hisab/internal/store"
	"hisab/internal/store/memory"
)

const (
	alice = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	bob   = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
)

type ctxProvider struct{}

func (ctxProvider) CurrentUser(ctx context.Context) (auth.User, bool) { return auth.UserFrom(ctx) }
func (ctxProvider) SignOut(context.Context) error                     { return nil }

// countingStore records how many calls reached the provider.
type countingStore struct {
	store.Store
	calls   atomic.Int64
	queries atomic.Int64
	fail    error
}

func (s *countingStore) Insert(ctx context.Context, c string, r store.Record) error {
	s.calls.Add(1)
	if s.fail != nil {
		return s.fail
	}
	return s.Store.Insert(ctx, c, r)
}

func (s *countingStore) Query(ctx context.Context, c string, q store.Query) ([]store.Record, error) {
	s.calls.Add(1)
	s.queries.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	return s.Store.Query(ctx, c, q)
}

var fixedNow = time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *countingStore, *events.Bus) {
	t.Helper()
	st := &countingStore{Store: memory.New()}
	bus := events.NewBus()
	l := New(st, ctxProvider{}, bus, Options{Now: func() time.Time { return fixedNow }})
	return l, st, bus
}

func as(userID string) context.Context {
	return auth.WithUser(context.Background(), auth.User{ID: userID})
}

func mustAmount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateTransactionValidatesBeforeStore(t *testing.T) {
	l, st, _ := newTestLedger(t)

	tests := []struct {
		name string
		in   core.TransactionInput
		want string
	}{
		{"zero amount", core.TransactionInput{Type: "expense", Category: "Food", Amount: "0", Date: "2024-01-15"}, "Amount must be positive"},
		{"negative amount", core.TransactionInput{Type: "expense", Category: "Food", Amount: "-5", Date: "2024-01-15"}, "Amount must be positive"},
		{"not a number", core.TransactionInput{Type: "expense", Category: "Food", Amount: "abc", Date: "2024-01-15"}, "Amount must be a valid number"},
		{"missing category", core.TransactionInput{Type: "income", Amount: "5", Date: "2024-01-15"}, "Category is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CreateTransaction(as(alice), tt.in)
			if got := UserMessage(err, "fallback"); got != tt.want {
				t.Fatalf("message = %q, want %q", got, tt.want)
			}
		})
	}
	if n := st.calls.Load(); n != 0 {
		t.Fatalf("invalid input reached the store %d times", n)
	}
}

func TestCreateRequiresUser(t *testing.T) {
	l, st, _ := newTestLedger(t)

	_, err := l.CreateDebt(context.Background(), core.DebtInput{
		Type: "lent", PersonName: "Alice", Amount: "500", Date: "2024-03-01",
	})
	var aerr *AuthError
	if !errors.As(err, &aerr) || !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if UserMessage(err, "Failed to add debt record") != "Not authenticated" {
		t.Fatalf("unexpected message for %v", err)
	}
	if st.calls.Load() != 0 {
		t.Fatal("unauthenticated create reached the store")
	}
	if _, err := l.Stats(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("stats without user: %v", err)
	}
}

func TestExpenseScenario(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := as(alice)

	tx, err := l.CreateTransaction(ctx, core.TransactionInput{
		Type: "expense", Category: "Food", Amount: "250.00", Date: "2024-01-15",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tx.SignedAmount() != "-৳250.00" || tx.Date.Display() != "Jan 15, 2024" {
		t.Fatalf("rendered %q on %q", tx.SignedAmount(), tx.Date.Display())
	}
	if tx.UserID != alice || !tx.CreatedAt.Equal(fixedNow) {
		t.Fatalf("owner/created_at not attached: %+v", tx)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.TotalExpense.Equal(mustAmount("250")) || !stats.Balance.Equal(mustAmount("-250")) {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestListTransactionsOrderAndIsolation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	for _, in := range []core.TransactionInput{
		{Type: "income", Category: "Salary", Amount: "1000", Date: "2024-01-01"},
		{Type: "expense", Category: "Rent", Amount: "400", Date: "2024-02-01"},
	} {
		if _, err := l.CreateTransaction(as(alice), in); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.CreateTransaction(as(bob), core.TransactionInput{
		Type: "income", Category: "Gift", Amount: "5", Date: "2024-03-01",
	}); err != nil {
		t.Fatal(err)
	}

	txs, err := l.ListTransactions(as(alice))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 || txs[0].Category != "Rent" || txs[1].Category != "Salary" {
		t.Fatalf("unexpected list %+v", txs)
	}
}

func TestDebtOrderingPendingFirst(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := as(alice)

	var settledID string
	for i, in := range []core.DebtInput{
		{Type: "lent", PersonName: "Settled", Amount: "10", Date: "2024-03-05"},
		{Type: "lent", PersonName: "Older", Amount: "20", Date: "2024-01-01"},
		{Type: "borrowed", PersonName: "Newer", Amount: "30", Date: "2024-02-01"},
	} {
		d, err := l.CreateDebt(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			settledID = d.ID
		}
	}
	if err := l.SettleDebt(ctx, settledID); err != nil {
		t.Fatal(err)
	}

	debts, err := l.ListDebts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{debts[0].PersonName, debts[1].PersonName, debts[2].PersonName}
	want := []string{"Newer", "Older", "Settled"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSettleScenario(t *testing.T) {
	l, _, bus := newTestLedger(t)
	ctx := as(alice)

	var settledEvents int
	bus.Subscribe(func(_ context.Context, e events.Event) {
		if e.Type == events.DebtSettled {
			settledEvents++
		}
	}, store.Debts)

	d, err := l.CreateDebt(ctx, core.DebtInput{Type: "lent", PersonName: "Alice", Amount: "500.00", Date: "2024-03-01"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != core.Pending || d.SettledDate != nil {
		t.Fatalf("new debt should be pending: %+v", d)
	}

	before, _ := l.Stats(ctx)
	if !before.PendingLent.Equal(mustAmount("500")) {
		t.Fatalf("pending lent before = %s", before.PendingLent)
	}

	if err := l.SettleDebt(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	debts, _ := l.ListDebts(ctx)
	if debts[0].Status != core.Settled || debts[0].SettledDate == nil || debts[0].SettledDate.String() != "2024-03-10" {
		t.Fatalf("settled debt = %+v", debts[0])
	}

	after, _ := l.Stats(ctx)
	if !after.PendingLent.IsZero() {
		t.Fatalf("settled debt still pending in stats: %s", after.PendingLent)
	}

	// Settling again keeps the original settlement.
	l.now = func() time.Time { return fixedNow.AddDate(0, 0, 5) }
	if err := l.SettleDebt(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	debts, _ = l.ListDebts(ctx)
	if debts[0].SettledDate.String() != "2024-03-10" || settledEvents != 1 {
		t.Fatalf("second settle changed state: %+v events=%d", debts[0], settledEvents)
	}
}

func TestDeleteScenario(t *testing.T) {
	l, _, bus := newTestLedger(t)
	ctx := as(alice)

	var deleted []events.Event
	bus.Subscribe(func(_ context.Context, e events.Event) {
		if e.Type == events.TransactionDeleted {
			deleted = append(deleted, e)
		}
	}, store.Transactions)

	tx, err := l.CreateTransaction(ctx, core.TransactionInput{Type: "income", Category: "Salary", Amount: "100", Date: "2024-03-01"})
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := l.Stats(ctx); !s.TotalIncome.Equal(mustAmount("100")) {
		t.Fatalf("income = %s", s.TotalIncome)
	}

	if err := l.DeleteTransaction(as(bob), tx.ID); err != nil {
		t.Fatalf("foreign delete: %v", err)
	}
	if txs, _ := l.ListTransactions(ctx); len(txs) != 1 {
		t.Fatal("another user deleted alice's transaction")
	}
	if len(deleted) != 0 {
		t.Fatalf("delete that matched nothing published %v", deleted)
	}

	if err := l.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if txs, _ := l.ListTransactions(ctx); len(txs) != 0 {
		t.Fatalf("transaction still listed: %+v", txs)
	}
	if s, _ := l.Stats(ctx); !s.TotalIncome.IsZero() {
		t.Fatalf("deleted transaction still counted: %s", s.TotalIncome)
	}
	if len(deleted) != 1 || deleted[0].UserID != alice || deleted[0].RecordID != tx.ID {
		t.Fatalf("expected one delete event for alice, got %v", deleted)
	}

	if err := l.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 1 {
		t.Fatalf("repeated delete published again: %v", deleted)
	}

	if err := l.DeleteDebt(ctx, "not-a-uuid"); err != nil {
		t.Fatalf("malformed id should be a no-op, got %v", err)
	}
}

func TestConcurrentSettlesPublishOnce(t *testing.T) {
	l, _, bus := newTestLedger(t)
	ctx := as(alice)

	var settled atomic.Int64
	bus.Subscribe(func(_ context.Context, e events.Event) {
		if e.Type == events.DebtSettled {
			settled.Add(1)
		}
	}, store.Debts)

	d, err := l.CreateDebt(ctx, core.DebtInput{Type: "borrowed", PersonName: "Karim", Amount: "75", Date: "2024-03-01"})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.SettleDebt(ctx, d.ID); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := settled.Load(); n != 1 {
		t.Fatalf("debt.settled published %d times, want 1", n)
	}
}

func TestStatsCachedUntilEvent(t *testing.T) {
	l, st, bus := newTestLedger(t)
	ctx := as(alice)

	if _, err := l.Stats(ctx); err != nil {
		t.Fatal(err)
	}
	first := st.queries.Load()
	if _, err := l.Stats(ctx); err != nil {
		t.Fatal(err)
	}
	if st.queries.Load() != first {
		t.Fatal("second Stats call should be served from cache")
	}

	bus.Publish(ctx, events.Event{Type: events.DebtDeleted, Collection: store.Debts, UserID: alice})
	if _, err := l.Stats(ctx); err != nil {
		t.Fatal(err)
	}
	if st.queries.Load() == first {
		t.Fatal("event should invalidate the cached snapshot")
	}
}

func TestStaleSnapshotNotCached(t *testing.T) {
	l, _, _ := newTestLedger(t)
	v := l.beginStats(alice)
	l.invalidate(alice)
	l.finishStats(alice, v, core.DashboardStats{TotalIncome: mustAmount("1")}, true)
	if _, ok := l.stats.Get(alice); ok {
		t.Fatal("snapshot computed before a write must not be cached")
	}
	if len(l.guards) != 0 {
		t.Fatalf("guard kept after the aggregation finished: %v", l.guards)
	}
}

func TestStatsGuardsDoNotAccumulate(t *testing.T) {
	l, _, bus := newTestLedger(t)

	users := []string{alice, bob, "cccccccc-cccc-cccc-cccc-cccccccccccc"}
	for _, u := range users {
		if _, err := l.Stats(as(u)); err != nil {
			t.Fatal(err)
		}
		bus.Publish(context.Background(), events.Event{Type: events.TransactionDeleted, Collection: store.Transactions, UserID: u})
	}
	if n := len(l.guards); n != 0 {
		t.Fatalf("%d stats guards left after all aggregations finished", n)
	}
}

func TestReloadStatsSeesOutOfBandWrites(t *testing.T) {
	l, st, _ := newTestLedger(t)
	ctx := as(alice)

	if _, err := l.Stats(ctx); err != nil {
		t.Fatal(err)
	}
	// Another process writes straight to the store; no event reaches this ledger.
	tx, err := core.TransactionInput{Type: "income", Category: "Salary", Amount: "70", Date: "2024-03-01"}.Parse()
	if err != nil {
		t.Fatal(err)
	}
	rec := transactionRecord("dddddddd-dddd-dddd-dddd-dddddddddddd", alice, tx, fixedNow)
	if err := st.Store.Insert(store.WithOwner(context.Background(), alice), store.Transactions, rec); err != nil {
		t.Fatal(err)
	}

	if s, _ := l.Stats(ctx); !s.TotalIncome.IsZero() {
		t.Fatalf("cached snapshot expected, got income %s", s.TotalIncome)
	}
	s, err := l.ReloadStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !s.TotalIncome.Equal(mustAmount("70")) {
		t.Fatalf("reload income = %s, want 70", s.TotalIncome)
	}
}

// gatedStore holds every query until release is closed, honoring the
// caller's context while it waits.
type gatedStore struct {
	store.Store
	started chan struct{}
	release chan struct{}
}

func (s *gatedStore) Query(ctx context.Context, c string, q store.Query) ([]store.Record, error) {
	s.started <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Store.Query(ctx, c, q)
}

func TestSharedStatsSurviveFirstCallerCancel(t *testing.T) {
	st := &gatedStore{Store: memory.New(), started: make(chan struct{}, 16), release: make(chan struct{})}
	l := New(st, ctxProvider{}, events.NewBus(), Options{Now: func() time.Time { return fixedNow }})

	first, cancel := context.WithCancel(as(alice))
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Stats(first)
		firstErr <- err
	}()
	<-st.started
	<-st.started

	secondErr := make(chan error, 1)
	go func() {
		_, err := l.Stats(as(alice))
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller: expected context.Canceled, got %v", err)
	}
	close(st.release)
	if err := <-secondErr; err != nil {
		t.Fatalf("second caller failed after the first went away: %v", err)
	}
}

func TestStoreFailureBecomesStoreError(t *testing.T) {
	l, st, _ := newTestLedger(t)
	st.fail = errors.New("connection refused")

	_, err := l.CreateTransaction(as(alice), core.TransactionInput{Type: "income", Category: "x", Amount: "1", Date: "2024-03-01"})
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Collection != store.Transactions {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if got := UserMessage(err, "Failed to add transaction"); got != "Failed to add transaction" {
		t.Fatalf("internal cause leaked: %q", got)
	}

	if _, err := l.ListDebts(as(alice)); !errors.As(err, &serr) {
		t.Fatalf("expected StoreError from list, got %v", err)
	}
}

func TestUserMessageForStoreSentinels(t *testing.T) {
	err := storeErr("insert", store.Debts, store.ErrForbidden)
	if got := UserMessage(err, "fallback"); got != "You do not have access to this record" {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(errors.New("boom"), "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
}
