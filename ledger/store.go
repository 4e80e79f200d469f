/*
store.go - Persistence interface for the ledger workflows

PURPOSE:
  Defines the interface between the workflows and the database. Workflows
  never hold a database handle; they receive a transaction-scoped Store
  from TxStore.WithTx and perform every read and write through it.

KEY INTERFACES:
  Store:   Reads plus guarded writes (conditional stock decrement,
           status compare-and-swap, fund compare-and-update)
  TxStore: Store plus WithTx for atomic multi-write operations

GUARDED WRITES:
  Writes that protect an invariant report whether they applied instead of
  blindly overwriting:
  - DecrementStock only applies when stock_quantity >= quantity
  - TransitionSale/TransitionLoan only apply when the current status matches
  - CompareAndSetFund only applies when the amount still equals the one read
  These hold even without the store-level lock, so a SQL backend with
  row-level concurrency keeps the same guarantees.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (production)
  - ledger/store: In-memory (testing/dev)

SEE ALSO:
  - sales.go, loans.go, funds.go: the only callers of the write methods
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Reads and guarded writes
// =============================================================================

// Store is the set of operations a workflow may perform inside a transaction.
// Get* methods return (nil, nil) when the record does not exist.
type Store interface {
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	// DecrementStock subtracts quantity if enough stock remains.
	// Returns false (and changes nothing) when stock is insufficient or the product is gone.
	DecrementStock(ctx context.Context, id ProductID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id ProductID, quantity int) error

	GetSale(ctx context.Context, id SaleID) (*Sale, error)
	InsertSale(ctx context.Context, sale Sale) error
	// TransitionSale applies t only if the sale is still in t.From.
	TransitionSale(ctx context.Context, t SaleTransition) (bool, error)

	GetLoan(ctx context.Context, id LoanID) (*Loan, error)
	InsertLoan(ctx context.Context, loan Loan) error
	TransitionLoan(ctx context.Context, t LoanTransition) (bool, error)

	InsertLoanPayment(ctx context.Context, p LoanPayment) error
	ListLoanPayments(ctx context.Context, id LoanID) ([]LoanPayment, error)

	GetFund(ctx context.Context, fundType FundType) (*Fund, error)
	ListFunds(ctx context.Context) ([]Fund, error)
	// CompareAndSetFund writes next only if the stored amount equals expected.
	CompareAndSetFund(ctx context.Context, fundType FundType, expected, next decimal.Decimal, at time.Time) (bool, error)

	// GetSetting returns the raw value of a system setting.
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// SaleTransition moves a sale between statuses.
type SaleTransition struct {
	ID         SaleID
	From       SaleStatus
	To         SaleStatus
	ApprovedBy UserID
	ApprovedAt time.Time
}

// LoanTransition moves a loan between statuses. Nil timestamps and an empty
// approver leave the stored values untouched.
type LoanTransition struct {
	ID          LoanID
	From        LoanStatus
	To          LoanStatus
	ApprovedBy  UserID
	ApprovedAt  *time.Time
	DisbursedAt *time.Time
	CompletedAt *time.Time
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
