// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/sales-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a ledger.TxStore held in process memory.
//
// WithTx runs against a private copy of the state under the write lock and
// swaps it in only when fn succeeds, so a failed transaction leaves nothing
// behind.
type Memory struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	products map[ledger.ProductID]ledger.Product
	sales    map[ledger.SaleID]ledger.Sale
	loans    map[ledger.LoanID]ledger.Loan
	payments map[ledger.LoanID][]ledger.LoanPayment
	funds    map[ledger.FundType]ledger.Fund
	settings map[string]string
}

// NewMemory returns a store with the four funds seeded at zero.
func NewMemory() *Memory {
	st := &state{
		products: make(map[ledger.ProductID]ledger.Product),
		sales:    make(map[ledger.SaleID]ledger.Sale),
		loans:    make(map[ledger.LoanID]ledger.Loan),
		payments: make(map[ledger.LoanID][]ledger.LoanPayment),
		funds:    make(map[ledger.FundType]ledger.Fund),
		settings: make(map[string]string),
	}
	for _, ft := range ledger.FundTypes {
		st.funds[ft] = ledger.Fund{Type: ft, Amount: decimal.Zero}
	}
	return &Memory{state: st}
}

func (st *state) clone() *state {
	c := &state{
		products: make(map[ledger.ProductID]ledger.Product, len(st.products)),
		sales:    make(map[ledger.SaleID]ledger.Sale, len(st.sales)),
		loans:    make(map[ledger.LoanID]ledger.Loan, len(st.loans)),
		payments: make(map[ledger.LoanID][]ledger.LoanPayment, len(st.payments)),
		funds:    make(map[ledger.FundType]ledger.Fund, len(st.funds)),
		settings: make(map[string]string, len(st.settings)),
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.sales {
		c.sales[k] = v
	}
	for k, v := range st.loans {
		c.loans[k] = v
	}
	for k, v := range st.payments {
		c.payments[k] = append([]ledger.LoanPayment(nil), v...)
	}
	for k, v := range st.funds {
		c.funds[k] = v
	}
	for k, v := range st.settings {
		c.settings[k] = v
	}
	return c
}

// =============================================================================
// ADMIN WRITES (not part of ledger.Store)
// =============================================================================

// SaveProduct inserts or replaces a catalog entry.
func (m *Memory) SaveProduct(_ context.Context, p ledger.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
	return nil
}

// SetSetting upserts a system setting.
func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.settings[key] = value
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn against a snapshot and commits it only if fn returns nil.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// memTx is the ledger.Store handed to WithTx callbacks. The enclosing
// WithTx already holds the write lock.
type memTx struct {
	*state
}

// =============================================================================
// ledger.Store on Memory (each call is its own transaction)
// =============================================================================

func (m *Memory) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetProduct(ctx, id)
}

func (m *Memory) DecrementStock(ctx context.Context, id ledger.ProductID, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DecrementStock(ctx, id, quantity)
}

func (m *Memory) IncrementStock(ctx context.Context, id ledger.ProductID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IncrementStock(ctx, id, quantity)
}

func (m *Memory) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetSale(ctx, id)
}

func (m *Memory) InsertSale(ctx context.Context, sale ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertSale(ctx, sale)
}

func (m *Memory) TransitionSale(ctx context.Context, t ledger.SaleTransition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.TransitionSale(ctx, t)
}

func (m *Memory) GetLoan(ctx context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetLoan(ctx, id)
}

func (m *Memory) InsertLoan(ctx context.Context, loan ledger.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertLoan(ctx, loan)
}

func (m *Memory) TransitionLoan(ctx context.Context, t ledger.LoanTransition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.TransitionLoan(ctx, t)
}

func (m *Memory) InsertLoanPayment(ctx context.Context, p ledger.LoanPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertLoanPayment(ctx, p)
}

func (m *Memory) ListLoanPayments(ctx context.Context, id ledger.LoanID) ([]ledger.LoanPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListLoanPayments(ctx, id)
}

func (m *Memory) GetFund(ctx context.Context, ft ledger.FundType) (*ledger.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetFund(ctx, ft)
}

func (m *Memory) ListFunds(ctx context.Context) ([]ledger.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListFunds(ctx)
}

func (m *Memory) CompareAndSetFund(ctx context.Context, ft ledger.FundType, expected, next decimal.Decimal, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CompareAndSetFund(ctx, ft, expected, next, at)
}

func (m *Memory) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetSetting(ctx, key)
}

// =============================================================================
// state - unlocked implementation shared by Memory and memTx
// =============================================================================

func (st *state) GetProduct(_ context.Context, id ledger.ProductID) (*ledger.Product, error) {
	p, ok := st.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (st *state) DecrementStock(_ context.Context, id ledger.ProductID, quantity int) (bool, error) {
	p, ok := st.products[id]
	if !ok || p.StockQuantity < quantity {
		return false, nil
	}
	p.StockQuantity -= quantity
	st.products[id] = p
	return true, nil
}

func (st *state) IncrementStock(_ context.Context, id ledger.ProductID, quantity int) error {
	p, ok := st.products[id]
	if !ok {
		return ledger.ErrProductNotFound
	}
	p.StockQuantity += quantity
	st.products[id] = p
	return nil
}

func (st *state) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	s, ok := st.sales[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (st *state) InsertSale(_ context.Context, sale ledger.Sale) error {
	st.sales[sale.ID] = sale
	return nil
}

func (st *state) TransitionSale(_ context.Context, t ledger.SaleTransition) (bool, error) {
	s, ok := st.sales[t.ID]
	if !ok || s.Status != t.From {
		return false, nil
	}
	approver, at := t.ApprovedBy, t.ApprovedAt
	s.Status = t.To
	s.ApprovedBy = &approver
	s.ApprovedAt = &at
	st.sales[t.ID] = s
	return true, nil
}

func (st *state) GetLoan(_ context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	l, ok := st.loans[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (st *state) InsertLoan(_ context.Context, loan ledger.Loan) error {
	st.loans[loan.ID] = loan
	return nil
}

func (st *state) TransitionLoan(_ context.Context, t ledger.LoanTransition) (bool, error) {
	l, ok := st.loans[t.ID]
	if !ok || l.Status != t.From {
		return false, nil
	}
	l.Status = t.To
	if t.ApprovedBy != "" {
		approver := t.ApprovedBy
		l.ApprovedBy = &approver
	}
	if t.ApprovedAt != nil {
		l.ApprovedAt = t.ApprovedAt
	}
	if t.DisbursedAt != nil {
		l.DisbursedAt = t.DisbursedAt
	}
	if t.CompletedAt != nil {
		l.CompletedAt = t.CompletedAt
	}
	st.loans[t.ID] = l
	return true, nil
}

func (st *state) InsertLoanPayment(_ context.Context, p ledger.LoanPayment) error {
	if _, ok := st.loans[p.LoanID]; !ok {
		return ledger.ErrLoanNotFound
	}
	st.payments[p.LoanID] = append(st.payments[p.LoanID], p)
	return nil
}

func (st *state) ListLoanPayments(_ context.Context, id ledger.LoanID) ([]ledger.LoanPayment, error) {
	out := append([]ledger.LoanPayment(nil), st.payments[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, nil
}

func (st *state) GetFund(_ context.Context, ft ledger.FundType) (*ledger.Fund, error) {
	f, ok := st.funds[ft]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (st *state) ListFunds(_ context.Context) ([]ledger.Fund, error) {
	out := make([]ledger.Fund, 0, len(st.funds))
	for _, f := range st.funds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (st *state) CompareAndSetFund(_ context.Context, ft ledger.FundType, expected, next decimal.Decimal, at time.Time) (bool, error) {
	f, ok := st.funds[ft]
	if !ok || !f.Amount.Equal(expected) {
		return false, nil
	}
	f.Amount = next
	f.UpdatedAt = at
	st.funds[ft] = f
	return true, nil
}

func (st *state) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := st.settings[key]
	return v, ok, nil
}

// Interface checks.
var (
	_ ledger.TxStore = (*Memory)(nil)
	_ ledger.Store   = (*memTx)(nil)
)
