package views

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"hisab/internal/core"
)

// ErrSubmitInFlight rejects a submit while the previous one is still running.
var ErrSubmitInFlight = errors.New("a submission is already in progress")

// Form holds the uncommitted input of an entry form.
type Form[In any] struct {
	mu       sync.Mutex
	input    In
	inFlight atomic.Bool
	reset    func(In) In
}

func newForm[In any](initial In, reset func(In) In) *Form[In] {
	return &Form[In]{input: initial, reset: reset}
}

// Submit stores in as the current input and runs submit. On success the
// input is reset and onSuccess runs; on failure the input is kept so the user
// can correct it.
func (f *Form[In]) Submit(ctx context.Context, in In, submit func(context.Context, In) error, onSuccess func()) error {
	if !f.inFlight.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer f.inFlight.Store(false)

	f.mu.Lock()
	f.input = in
	f.mu.Unlock()

	if err := submit(ctx, in); err != nil {
		return err
	}

	f.mu.Lock()
	f.input = f.reset(in)
	f.mu.Unlock()
	if onSuccess != nil {
		onSuccess()
	}
	return nil
}

// Input returns the input to render.
func (f *Form[In]) Input() In {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

// Submitting reports whether a submit is running.
func (f *Form[In]) Submitting() bool {
	return f.inFlight.Load()
}

// NewTransactionForm starts as an expense dated today.
func NewTransactionForm() *Form[core.TransactionInput] {
	return newForm(core.TransactionInput{Type: string(core.Expense), Date: core.Today().String()},
		func(in core.TransactionInput) core.TransactionInput {
			return core.TransactionInput{Type: in.Type, Date: core.Today().String()}
		})
}

// NewDebtForm starts as a borrowed debt dated today.
func NewDebtForm() *Form[core.DebtInput] {
	return newForm(core.DebtInput{Type: string(core.Borrowed), Date: core.Today().String()},
		func(in core.DebtInput) core.DebtInput {
			return core.DebtInput{Type: in.Type, Date: core.Today().String()}
		})
}
