/*
Package ledger provides the transactional core of the sales and loan back office.

PURPOSE:
  Sales staff submit sales and loan applications, sub-managers approve or
  reject them, and every decision applies exactly one set of inventory and
  fund mutations. This package owns those state machines and the rules for
  how they touch stock and the four financial funds.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: catalog entry whose stock is reserved by sales
  - Sale: a pending/approved/rejected sale with amounts snapshotted at submit
  - Loan: an amortized loan that moves pending -> active -> completed
  - LoanPayment: append-only repayment record
  - Fund: one of four running balances (stock, bank, profit, commission)

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Snapshots: derived amounts are computed once and stored, never recomputed
  3. Type Safety: typed IDs prevent passing a sale ID where a loan ID belongs
  4. Atomicity: every workflow operation runs in one TxStore.WithTx block

SEE ALSO:
  - state.go: Status enums and transition tables
  - store.go: Persistence interfaces
  - sales.go, loans.go, funds.go: Workflows
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type SaleID string
type LoanID string
type PaymentID string
type UserID string

// =============================================================================
// MONEY HELPERS
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Cents rounds a money value half-up to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// =============================================================================
// PRODUCT
// =============================================================================

// Product is a catalog entry. StockQuantity is never negative in a committed state.
type Product struct {
	ID             ProductID
	Name           string
	Description    string
	CostPrice      decimal.Decimal
	SellingPrice   decimal.Decimal
	StockQuantity  int
	CommissionRate decimal.Decimal // percent, 0-100
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// SALE
// =============================================================================

// Sale records one sale of a product by a sales person.
// Amounts are fixed at submission time; later catalog edits do not change them.
type Sale struct {
	ID               SaleID
	SalesPersonID    UserID
	ProductID        ProductID
	Quantity         int
	UnitPrice        decimal.Decimal
	TotalAmount      decimal.Decimal
	CommissionAmount decimal.Decimal
	ProfitAmount     decimal.Decimal
	Status           SaleStatus
	ApprovedBy       *UserID
	ApprovedAt       *time.Time
	CreatedAt        time.Time
}

// SaleAmounts holds the derived money values of a sale.
type SaleAmounts struct {
	Total      decimal.Decimal
	Commission decimal.Decimal
	Profit     decimal.Decimal
}

// ComputeSaleAmounts derives total, commission and profit using the product's
// current commission rate and cost price.
func ComputeSaleAmounts(p Product, quantity int, unitPrice decimal.Decimal) SaleAmounts {
	qty := decimal.NewFromInt(int64(quantity))
	total := qty.Mul(unitPrice)
	return SaleAmounts{
		Total:      total,
		Commission: total.Mul(p.CommissionRate).Div(hundred),
		Profit:     total.Sub(qty.Mul(p.CostPrice)),
	}
}

// =============================================================================
// LOAN
// =============================================================================

// Loan is an amortized loan to a borrower.
// MonthlyPayment and TotalRepayment are derived at application and never recomputed.
type Loan struct {
	ID             LoanID
	BorrowerID     UserID
	Amount         decimal.Decimal
	InterestRate   decimal.Decimal // annual percent
	DurationMonths int
	MonthlyPayment decimal.Decimal
	TotalRepayment decimal.Decimal
	Status         LoanStatus
	ApprovedBy     *UserID
	ApprovedAt     *time.Time
	DisbursedAt    *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// LoanPayment is an append-only repayment record.
type LoanPayment struct {
	ID                 PaymentID
	LoanID             LoanID
	PaymentAmount      decimal.Decimal
	CommissionDeducted decimal.Decimal
	PaymentDate        time.Time
}

// =============================================================================
// FUNDS
// =============================================================================

// FundType names one of the four fixed running balances.
type FundType string

const (
	FundStock      FundType = "stock"
	FundBank       FundType = "bank"
	FundProfit     FundType = "profit"
	FundCommission FundType = "commission"
)

// FundTypes lists every fund in display order.
var FundTypes = []FundType{FundBank, FundCommission, FundProfit, FundStock}

// Valid reports whether t is one of the seeded fund types.
func (t FundType) Valid() bool {
	switch t {
	case FundStock, FundBank, FundProfit, FundCommission:
		return true
	}
	return false
}

// Fund is the current amount of one fund.
type Fund struct {
	Type      FundType
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// =============================================================================
// SETTINGS
// =============================================================================

// Setting keys read by the workflows.
const (
	SettingDefaultLoanInterestRate = "default_loan_interest_rate"
	SettingDefaultCommissionRate   = "default_commission_rate"
)
