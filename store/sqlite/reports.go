package sqlite

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/sales-engine/ledger"
)

// =============================================================================
// READ MODELS
// =============================================================================

// SaleView is a sale joined with its product and sales person names.
type SaleView struct {
	ledger.Sale
	ProductName     string
	SalesPersonName string
}

// LoanView is a loan joined with its borrower name.
type LoanView struct {
	ledger.Loan
	BorrowerName string
}

// SalesStats summarizes one sales person's sales.
// Revenue and commission count approved sales only.
type SalesStats struct {
	TotalSales      int
	PendingSales    int
	ApprovedSales   int
	RejectedSales   int
	TotalRevenue    decimal.Decimal
	TotalCommission decimal.Decimal
}

// LoanStats summarizes one borrower's loans.
type LoanStats struct {
	TotalLoans     int
	PendingLoans   int
	ActiveLoans    int
	CompletedLoans int
	// TotalBorrowed counts loans that were disbursed.
	TotalBorrowed decimal.Decimal
	// Outstanding is the principal of loans still active.
	Outstanding decimal.Decimal
}

// ProductStats is the sales summary of one product.
type ProductStats struct {
	ProductID     ledger.ProductID
	Name          string
	StockQuantity int
	// TotalSold counts units held by pending or approved sales.
	TotalSold    int
	TotalRevenue decimal.Decimal
}

// BusinessOverview is the top-level dashboard summary.
type BusinessOverview struct {
	TotalUsers      int
	TotalProducts   int
	TotalRevenue    decimal.Decimal
	TotalProfit     decimal.Decimal
	TotalCommission decimal.Decimal
	PendingSales    int
	PendingLoans    int
}

// SalesPerformance ranks a sales person by approved revenue.
type SalesPerformance struct {
	SalesPersonID   ledger.UserID
	FullName        string
	TotalSales      int
	TotalRevenue    decimal.Decimal
	TotalCommission decimal.Decimal
}

// Decimals are TEXT columns, so sums are computed here rather than in SQL.

// =============================================================================
// SALES
// =============================================================================

const saleViewSelect = `
	SELECT s.id, s.sales_person_id, s.product_id, s.quantity, s.unit_price, s.total_amount,
		s.commission_amount, s.profit_amount, s.status, s.approved_by, s.approved_at, s.created_at,
		p.name, COALESCE(u.full_name, '')
	FROM sales s
	JOIN products p ON s.product_id = p.id
	LEFT JOIN users u ON s.sales_person_id = u.id`

func (s *Store) querySaleViews(ctx context.Context, query string, args ...any) ([]SaleView, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []SaleView
	for rows.Next() {
		var v SaleView
		var productName, personName string
		sale, err := scanSale(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &productName, &personName)...)
		}))
		if err != nil {
			return nil, err
		}
		v.Sale = *sale
		v.ProductName = productName
		v.SalesPersonName = personName
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListSalesBySalesPerson returns a sales person's sales, newest first,
// optionally filtered by status.
func (s *Store) ListSalesBySalesPerson(ctx context.Context, id ledger.UserID, status ledger.SaleStatus) ([]SaleView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := saleViewSelect + ` WHERE s.sales_person_id = ?`
	args := []any{string(id)}
	if status != "" {
		query += ` AND s.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY s.created_at DESC`
	return s.querySaleViews(ctx, query, args...)
}

// RecentSales returns a sales person's latest sales.
func (s *Store) RecentSales(ctx context.Context, id ledger.UserID, limit int) ([]SaleView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	return s.querySaleViews(ctx, saleViewSelect+`
		WHERE s.sales_person_id = ?
		ORDER BY s.created_at DESC
		LIMIT ?`, string(id), limit)
}

// PendingSalesForManager returns the pending sales of a sub-manager's team,
// oldest first.
func (s *Store) PendingSalesForManager(ctx context.Context, managerID ledger.UserID) ([]SaleView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySaleViews(ctx, saleViewSelect+`
		WHERE u.sub_manager_id = ? AND s.status = 'pending'
		ORDER BY s.created_at ASC`, string(managerID))
}

// SalesStatsFor summarizes a sales person's sales.
func (s *Store) SalesStatsFor(ctx context.Context, id ledger.UserID) (SalesStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SalesStats{TotalRevenue: decimal.Zero, TotalCommission: decimal.Zero}
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, total_amount, commission_amount FROM sales WHERE sales_person_id = ?`, string(id))
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status, total, commission string
		if err := rows.Scan(&status, &total, &commission); err != nil {
			return stats, err
		}
		stats.TotalSales++
		switch ledger.SaleStatus(status) {
		case ledger.SalePending:
			stats.PendingSales++
		case ledger.SaleRejected:
			stats.RejectedSales++
		case ledger.SaleApproved:
			stats.ApprovedSales++
			var c columns
			stats.TotalRevenue = stats.TotalRevenue.Add(c.decimal("total_amount", total))
			stats.TotalCommission = stats.TotalCommission.Add(c.decimal("commission_amount", commission))
			if c.err != nil {
				return stats, c.err
			}
		}
	}
	return stats, rows.Err()
}

// =============================================================================
// LOANS
// =============================================================================

const loanViewSelect = `
	SELECT l.id, l.borrower_id, l.amount, l.interest_rate, l.duration_months, l.monthly_payment,
		l.total_repayment, l.status, l.approved_by, l.approved_at, l.disbursed_at, l.completed_at,
		l.created_at, COALESCE(u.full_name, '')
	FROM loans l
	LEFT JOIN users u ON l.borrower_id = u.id`

func (s *Store) queryLoanViews(ctx context.Context, query string, args ...any) ([]LoanView, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []LoanView
	for rows.Next() {
		var borrowerName string
		loan, err := scanLoan(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &borrowerName)...)
		}))
		if err != nil {
			return nil, err
		}
		views = append(views, LoanView{Loan: *loan, BorrowerName: borrowerName})
	}
	return views, rows.Err()
}

// ListLoansByBorrower returns a borrower's loans, newest first, optionally
// filtered by status.
func (s *Store) ListLoansByBorrower(ctx context.Context, id ledger.UserID, status ledger.LoanStatus) ([]LoanView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := loanViewSelect + ` WHERE l.borrower_id = ?`
	args := []any{string(id)}
	if status != "" {
		query += ` AND l.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY l.created_at DESC`
	return s.queryLoanViews(ctx, query, args...)
}

// PendingLoansForManager returns the pending loans of a sub-manager's team,
// oldest first.
func (s *Store) PendingLoansForManager(ctx context.Context, managerID ledger.UserID) ([]LoanView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLoanViews(ctx, loanViewSelect+`
		WHERE u.sub_manager_id = ? AND l.status = 'pending'
		ORDER BY l.created_at ASC`, string(managerID))
}

// LoanStatsFor summarizes a borrower's loans.
func (s *Store) LoanStatsFor(ctx context.Context, id ledger.UserID) (LoanStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := LoanStats{TotalBorrowed: decimal.Zero, Outstanding: decimal.Zero}
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, amount FROM loans WHERE borrower_id = ?`, string(id))
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status, amount string
		if err := rows.Scan(&status, &amount); err != nil {
			return stats, err
		}
		var c columns
		principal := c.decimal("amount", amount)
		if c.err != nil {
			return stats, c.err
		}
		stats.TotalLoans++
		switch ledger.LoanStatus(status) {
		case ledger.LoanPending:
			stats.PendingLoans++
		case ledger.LoanActive:
			stats.ActiveLoans++
			stats.TotalBorrowed = stats.TotalBorrowed.Add(principal)
			stats.Outstanding = stats.Outstanding.Add(principal)
		case ledger.LoanCompleted:
			stats.CompletedLoans++
			stats.TotalBorrowed = stats.TotalBorrowed.Add(principal)
		}
	}
	return stats, rows.Err()
}

// =============================================================================
// CATALOG AND BUSINESS
// =============================================================================

// ProductStatistics returns per-product sales, highest revenue first.
func (s *Store) ProductStatistics(ctx context.Context) ([]ProductStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.stock_quantity, s.quantity, s.status, s.total_amount
		FROM products p
		LEFT JOIN sales s ON p.id = s.product_id
		ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[ledger.ProductID]*ProductStats)
	var order []ledger.ProductID
	for rows.Next() {
		var id ledger.ProductID
		var name string
		var stock int
		var quantity *int
		var status, total *string
		if err := rows.Scan(&id, &name, &stock, &quantity, &status, &total); err != nil {
			return nil, err
		}
		ps, ok := byID[id]
		if !ok {
			ps = &ProductStats{ProductID: id, Name: name, StockQuantity: stock, TotalRevenue: decimal.Zero}
			byID[id] = ps
			order = append(order, id)
		}
		if status == nil || ledger.SaleStatus(*status) == ledger.SaleRejected {
			continue
		}
		ps.TotalSold += *quantity
		if ledger.SaleStatus(*status) == ledger.SaleApproved {
			var c columns
			ps.TotalRevenue = ps.TotalRevenue.Add(c.decimal("total_amount", *total))
			if c.err != nil {
				return nil, c.err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ProductStats, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalRevenue.GreaterThan(out[j].TotalRevenue)
	})
	return out, nil
}

// Overview returns the business-wide summary.
func (s *Store) Overview(ctx context.Context) (BusinessOverview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ov := BusinessOverview{TotalRevenue: decimal.Zero, TotalProfit: decimal.Zero, TotalCommission: decimal.Zero}
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM sales WHERE status = 'pending'),
			(SELECT COUNT(*) FROM loans WHERE status = 'pending')`).
		Scan(&ov.TotalUsers, &ov.TotalProducts, &ov.PendingSales, &ov.PendingLoans); err != nil {
		return ov, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT total_amount, profit_amount, commission_amount FROM sales WHERE status = 'approved'`)
	if err != nil {
		return ov, err
	}
	defer rows.Close()

	for rows.Next() {
		var total, profit, commission string
		if err := rows.Scan(&total, &profit, &commission); err != nil {
			return ov, err
		}
		var c columns
		ov.TotalRevenue = ov.TotalRevenue.Add(c.decimal("total_amount", total))
		ov.TotalProfit = ov.TotalProfit.Add(c.decimal("profit_amount", profit))
		ov.TotalCommission = ov.TotalCommission.Add(c.decimal("commission_amount", commission))
		if c.err != nil {
			return ov, c.err
		}
	}
	return ov, rows.Err()
}

// Performance ranks sales persons by approved revenue, highest first.
func (s *Store) Performance(ctx context.Context) ([]SalesPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.full_name, s.status, s.total_amount, s.commission_amount
		FROM users u
		LEFT JOIN sales s ON u.id = s.sales_person_id
		WHERE u.role = 'sales_person'
		ORDER BY u.full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[ledger.UserID]*SalesPerformance)
	var order []ledger.UserID
	for rows.Next() {
		var id ledger.UserID
		var name string
		var status, total, commission *string
		if err := rows.Scan(&id, &name, &status, &total, &commission); err != nil {
			return nil, err
		}
		sp, ok := byID[id]
		if !ok {
			sp = &SalesPerformance{SalesPersonID: id, FullName: name,
				TotalRevenue: decimal.Zero, TotalCommission: decimal.Zero}
			byID[id] = sp
			order = append(order, id)
		}
		if status == nil {
			continue
		}
		sp.TotalSales++
		if ledger.SaleStatus(*status) == ledger.SaleApproved {
			var c columns
			sp.TotalRevenue = sp.TotalRevenue.Add(c.decimal("total_amount", *total))
			sp.TotalCommission = sp.TotalCommission.Add(c.decimal("commission_amount", *commission))
			if c.err != nil {
				return nil, c.err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]SalesPerformance, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalRevenue.GreaterThan(out[j].TotalRevenue)
	})
	return out, nil
}

// scanFunc adapts a closure to the scanner interface so joined columns can
// be appended after the base record's columns.
type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }
