package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/ledger/store"
	"github.com/warp/sales-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testStore is what both store implementations offer to tests.
type testStore interface {
	ledger.TxStore
	SaveProduct(ctx context.Context, p ledger.Product) error
	SetSetting(ctx context.Context, key, value string) error
}

func newSQLiteStore(t *testing.T) testStore {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemoryStore(t *testing.T) testStore {
	return store.NewMemory()
}

// eachStore runs fn against a fresh SQLite store and a fresh memory store.
func eachStore(t *testing.T, fn func(t *testing.T, s testStore)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryStore(t)) })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// laptop: cost 800, price 1200, commission 8%.
func laptop(stock int) ledger.Product {
	return ledger.Product{
		ID:             "prod-laptop",
		Name:           "Laptop Computer",
		CostPrice:      dec("800"),
		SellingPrice:   dec("1200"),
		StockQuantity:  stock,
		CommissionRate: dec("8"),
	}
}

func saveProduct(t *testing.T, s testStore, p ledger.Product) {
	t.Helper()
	require.NoError(t, s.SaveProduct(context.Background(), p))
}

func stockOf(t *testing.T, s ledger.Store, id ledger.ProductID) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.StockQuantity
}

func fundOf(t *testing.T, s ledger.Store, ft ledger.FundType) decimal.Decimal {
	t.Helper()
	f, err := s.GetFund(context.Background(), ft)
	require.NoError(t, err)
	require.NotNil(t, f)
	return f.Amount
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// =============================================================================
// FAULT INJECTION
// =============================================================================

var errInjected = errors.New("injected store failure")

// faultyStore fails the named operation inside transactions. Everything else
// passes through to the wrapped store.
type faultyStore struct {
	ledger.TxStore
	failOn string
	// failFund narrows a CompareAndSetFund failure to one fund. Empty fails all.
	failFund ledger.FundType
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return f.TxStore.WithTx(ctx, func(s ledger.Store) error {
		return fn(&faultyTx{Store: s, parent: f})
	})
}

type faultyTx struct {
	ledger.Store
	parent *faultyStore
}

func (f *faultyTx) InsertSale(ctx context.Context, sale ledger.Sale) error {
	if f.parent.failOn == "InsertSale" {
		return errInjected
	}
	return f.Store.InsertSale(ctx, sale)
}

func (f *faultyTx) IncrementStock(ctx context.Context, id ledger.ProductID, quantity int) error {
	if f.parent.failOn == "IncrementStock" {
		return errInjected
	}
	return f.Store.IncrementStock(ctx, id, quantity)
}

func (f *faultyTx) InsertLoanPayment(ctx context.Context, p ledger.LoanPayment) error {
	if f.parent.failOn == "InsertLoanPayment" {
		return errInjected
	}
	return f.Store.InsertLoanPayment(ctx, p)
}

func (f *faultyTx) CompareAndSetFund(ctx context.Context, ft ledger.FundType, expected, next decimal.Decimal, at time.Time) (bool, error) {
	if f.parent.failOn == "CompareAndSetFund" && (f.parent.failFund == "" || f.parent.failFund == ft) {
		return false, errInjected
	}
	return f.Store.CompareAndSetFund(ctx, ft, expected, next, at)
}

// =============================================================================
// CONCURRENCY HELPERS
// =============================================================================

// outcomes counts results of concurrent calls by error kind.
type outcomes struct {
	mu     sync.Mutex
	ok     int
	byKind map[error]int
	other  []error
}

func newOutcomes() *outcomes {
	return &outcomes{byKind: make(map[error]int)}
}

func (o *outcomes) record(err error, kinds ...error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		o.ok++
		return
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			o.byKind[k]++
			return
		}
	}
	o.other = append(o.other, err)
}
