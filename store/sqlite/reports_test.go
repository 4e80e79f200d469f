package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/store/sqlite"
)

// reportFixture holds a store with users, two products and a mix of
// sales and loans in every status.
type reportFixture struct {
	store *sqlite.Store
	sales *ledger.SaleWorkflow
	loans *ledger.LoanWorkflow
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	s := newTestStore(t)
	seedUsers(t, s)
	ctx := context.Background()
	require.NoError(t, s.SaveProduct(ctx, laptop(50)))
	require.NoError(t, s.SaveProduct(ctx, mouse(200)))

	clock := ledger.WithClock(steppingClock())
	return &reportFixture{
		store: s,
		sales: ledger.NewSaleWorkflow(s, clock),
		loans: ledger.NewLoanWorkflow(s, clock),
	}
}

func (f *reportFixture) sell(t *testing.T, person ledger.UserID, product ledger.ProductID, qty int, price, decision string) *ledger.Sale {
	t.Helper()
	ctx := context.Background()
	sale, err := f.sales.Submit(ctx, ledger.SubmitSaleInput{
		SalesPersonID: person, ProductID: product, Quantity: qty, UnitPrice: dec(price),
	})
	require.NoError(t, err)
	if decision != "" {
		_, err := f.sales.Decide(ctx, sale.ID, "user-manager1", decision)
		require.NoError(t, err)
	}
	return sale
}

func (f *reportFixture) borrow(t *testing.T, person ledger.UserID, amount string, decision string) *ledger.Loan {
	t.Helper()
	ctx := context.Background()
	loan, err := f.loans.Apply(ctx, ledger.ApplyLoanInput{BorrowerID: person, Amount: dec(amount), DurationMonths: 12})
	require.NoError(t, err)
	if decision != "" {
		_, err := f.loans.Decide(ctx, loan.ID, "user-manager1", decision)
		require.NoError(t, err)
	}
	return loan
}

// =============================================================================
// SALES
// =============================================================================

func TestSalesReports(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	approved := f.sell(t, "user-sales1", "prod-laptop", 2, "1200", "approved")
	f.sell(t, "user-sales1", "prod-mouse", 4, "25", "rejected")
	pending := f.sell(t, "user-sales1", "prod-mouse", 3, "25", "")
	f.sell(t, "user-sales2", "prod-mouse", 1, "25", "")
	f.sell(t, "user-sales3", "prod-laptop", 1, "1200", "")

	t.Run("list newest first with names", func(t *testing.T) {
		views, err := f.store.ListSalesBySalesPerson(ctx, "user-sales1", "")
		require.NoError(t, err)
		require.Len(t, views, 3)
		assert.Equal(t, pending.ID, views[0].ID)
		assert.Equal(t, approved.ID, views[2].ID)
		assert.Equal(t, "Laptop Computer", views[2].ProductName)
		assert.Equal(t, "Alice Seller", views[2].SalesPersonName)
	})

	t.Run("filter by status", func(t *testing.T) {
		views, err := f.store.ListSalesBySalesPerson(ctx, "user-sales1", ledger.SaleApproved)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, approved.ID, views[0].ID)
	})

	t.Run("recent sales limit", func(t *testing.T) {
		views, err := f.store.RecentSales(ctx, "user-sales1", 2)
		require.NoError(t, err)
		assert.Len(t, views, 2)
		views, err = f.store.RecentSales(ctx, "user-sales1", 0)
		require.NoError(t, err)
		assert.Len(t, views, 3)
	})

	t.Run("pending for manager covers the team only", func(t *testing.T) {
		views, err := f.store.PendingSalesForManager(ctx, "user-manager1")
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, pending.ID, views[0].ID)
		assert.Equal(t, ledger.UserID("user-sales2"), views[1].SalesPersonID)

		views, err = f.store.PendingSalesForManager(ctx, "user-manager2")
		require.NoError(t, err)
		assert.Len(t, views, 1)
	})

	t.Run("stats count approved revenue only", func(t *testing.T) {
		stats, err := f.store.SalesStatsFor(ctx, "user-sales1")
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalSales)
		assert.Equal(t, 1, stats.PendingSales)
		assert.Equal(t, 1, stats.ApprovedSales)
		assert.Equal(t, 1, stats.RejectedSales)
		assert.True(t, dec("2400").Equal(stats.TotalRevenue))
		assert.True(t, dec("192").Equal(stats.TotalCommission))
	})

	t.Run("stats for someone without sales", func(t *testing.T) {
		stats, err := f.store.SalesStatsFor(ctx, "user-nobody")
		require.NoError(t, err)
		assert.Zero(t, stats.TotalSales)
		assert.True(t, stats.TotalRevenue.IsZero())
	})
}

func TestSalesReports_UnknownSalesPersonStillListed(t *testing.T) {
	f := newReportFixture(t)
	f.sell(t, "user-external", "prod-mouse", 1, "25", "")

	views, err := f.store.ListSalesBySalesPerson(context.Background(), "user-external", "")

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "", views[0].SalesPersonName)
}

// =============================================================================
// LOANS
// =============================================================================

func TestLoanReports(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	active := f.borrow(t, "user-sales1", "1200", "approved")
	completed := f.borrow(t, "user-sales1", "500", "approved")
	_, err := f.loans.Pay(ctx, completed.ID, dec("1000"), dec("0"))
	require.NoError(t, err)
	f.borrow(t, "user-sales1", "300", "rejected")
	pending := f.borrow(t, "user-sales1", "700", "")
	f.borrow(t, "user-sales3", "900", "")

	t.Run("list newest first", func(t *testing.T) {
		views, err := f.store.ListLoansByBorrower(ctx, "user-sales1", "")
		require.NoError(t, err)
		require.Len(t, views, 4)
		assert.Equal(t, pending.ID, views[0].ID)
		assert.Equal(t, active.ID, views[3].ID)
		assert.Equal(t, "Alice Seller", views[3].BorrowerName)
	})

	t.Run("filter by status", func(t *testing.T) {
		views, err := f.store.ListLoansByBorrower(ctx, "user-sales1", ledger.LoanCompleted)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, completed.ID, views[0].ID)
		assert.NotNil(t, views[0].CompletedAt)
	})

	t.Run("pending for manager", func(t *testing.T) {
		views, err := f.store.PendingLoansForManager(ctx, "user-manager1")
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, pending.ID, views[0].ID)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := f.store.LoanStatsFor(ctx, "user-sales1")
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalLoans)
		assert.Equal(t, 1, stats.PendingLoans)
		assert.Equal(t, 1, stats.ActiveLoans)
		assert.Equal(t, 1, stats.CompletedLoans)
		assert.True(t, dec("1700").Equal(stats.TotalBorrowed))
		assert.True(t, dec("1200").Equal(stats.Outstanding))
	})
}

// =============================================================================
// BUSINESS
// =============================================================================

func TestProductStatistics(t *testing.T) {
	f := newReportFixture(t)
	f.sell(t, "user-sales1", "prod-mouse", 10, "25", "approved")
	f.sell(t, "user-sales1", "prod-mouse", 5, "25", "")
	f.sell(t, "user-sales1", "prod-mouse", 7, "25", "rejected")
	f.sell(t, "user-sales2", "prod-laptop", 1, "1200", "approved")

	stats, err := f.store.ProductStatistics(context.Background())

	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, ledger.ProductID("prod-laptop"), stats[0].ProductID)
	assert.True(t, dec("1200").Equal(stats[0].TotalRevenue))
	assert.Equal(t, 1, stats[0].TotalSold)
	assert.Equal(t, 49, stats[0].StockQuantity)

	assert.Equal(t, ledger.ProductID("prod-mouse"), stats[1].ProductID)
	assert.Equal(t, 15, stats[1].TotalSold)
	assert.True(t, dec("250").Equal(stats[1].TotalRevenue))
	assert.Equal(t, 185, stats[1].StockQuantity)
}

func TestOverviewAndPerformance(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	f.sell(t, "user-sales1", "prod-laptop", 1, "1200", "approved")
	f.sell(t, "user-sales2", "prod-laptop", 2, "1200", "approved")
	f.sell(t, "user-sales2", "prod-mouse", 2, "25", "")
	f.borrow(t, "user-sales3", "1000", "")

	ov, err := f.store.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, ov.TotalUsers)
	assert.Equal(t, 2, ov.TotalProducts)
	assert.Equal(t, 1, ov.PendingSales)
	assert.Equal(t, 1, ov.PendingLoans)
	assert.True(t, dec("3600").Equal(ov.TotalRevenue))
	assert.True(t, dec("1200").Equal(ov.TotalProfit))
	assert.True(t, dec("288").Equal(ov.TotalCommission))

	perf, err := f.store.Performance(ctx)
	require.NoError(t, err)
	require.Len(t, perf, 3)
	assert.Equal(t, ledger.UserID("user-sales2"), perf[0].SalesPersonID)
	assert.Equal(t, 2, perf[0].TotalSales)
	assert.True(t, dec("2400").Equal(perf[0].TotalRevenue))
	assert.Equal(t, ledger.UserID("user-sales1"), perf[1].SalesPersonID)
	assert.Equal(t, ledger.UserID("user-sales3"), perf[2].SalesPersonID)
	assert.Equal(t, 0, perf[2].TotalSales)
}
