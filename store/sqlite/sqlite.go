/*
Package sqlite provides a SQLite-backed implementation of the ledger store.

PURPOSE:
  Implements ledger.TxStore (products, sales, loans, payments, funds,
  settings) plus the catalog, user directory and reporting queries used by
  the API. In production the same SQL runs on PostgreSQL with minor dialect
  differences.

GUARDED WRITES:
  Every write that protects an invariant is a single conditional statement
  whose affected-row count tells the caller whether it applied:
  - stock:  UPDATE ... SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?
  - status: UPDATE ... SET status = ? WHERE id = ? AND status = ?
  - funds:  UPDATE ... SET amount = ? WHERE fund_type = ? AND amount = ?
  The schema backs this up with CHECK(stock_quantity >= 0).

KEY TABLES:
  products, sales, loans, loan_payments: workflow records
  financial_funds: exactly four rows, seeded on migrate
  system_settings: key/value settings (default loan rate, commission rate)
  users:           directory of sales persons and managers

MONEY:
  Decimals are stored as TEXT in canonical decimal.Decimal.String() form so
  no precision is lost and fund compare-and-update can match exactly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection, since
  SQLite allows one writer at a time anyway.

USAGE:
  store, err := sqlite.New("./data/sales.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  sales := ledger.NewSaleWorkflow(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - catalog.go: Products, users, settings administration
  - reports.go: Listing and statistics queries
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/sales-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  queries
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and SQLite
	// serializes writers regardless.
	db.SetMaxOpenConns(1)

	store := NewWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already-open, already-migrated database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, q: queries{db: db}}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema and seeds the fixed rows.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('sales_person', 'sub_manager', 'top_manager')),
		full_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		sub_manager_id TEXT REFERENCES users(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_sub_manager ON users(sub_manager_id);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		cost_price TEXT NOT NULL,
		selling_price TEXT NOT NULL,
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK(stock_quantity >= 0),
		commission_rate TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Sales reference users loosely: the directory is an external collaborator.
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		sales_person_id TEXT NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK(quantity > 0),
		unit_price TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		commission_amount TEXT NOT NULL,
		profit_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'rejected')),
		approved_by TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_sales_person ON sales(sales_person_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_sales_product ON sales(product_id);
	CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		duration_months INTEGER NOT NULL CHECK(duration_months > 0),
		monthly_payment TEXT NOT NULL,
		total_repayment TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'rejected', 'active', 'completed')),
		approved_by TEXT,
		approved_at TEXT,
		disbursed_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);

	-- Append-only
	CREATE TABLE IF NOT EXISTS loan_payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(id),
		payment_amount TEXT NOT NULL,
		commission_deducted TEXT NOT NULL DEFAULT '0',
		payment_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loan_payments_loan ON loan_payments(loan_id, payment_date);

	CREATE TABLE IF NOT EXISTS financial_funds (
		fund_type TEXT PRIMARY KEY CHECK(fund_type IN ('stock', 'bank', 'profit', 'commission')),
		amount TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS system_settings (
		setting_key TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.seed(context.Background(), s.db)
}

// seed inserts the four fund rows and default settings if absent.
func (s *Store) seed(ctx context.Context, db dbtx) error {
	now := formatTime(time.Now().UTC())
	for _, ft := range ledger.FundTypes {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO financial_funds (fund_type, amount, updated_at) VALUES (?, '0', ?)`,
			string(ft), now); err != nil {
			return fmt.Errorf("seed fund %s: %w", ft, err)
		}
	}
	defaults := map[string]string{
		ledger.SettingDefaultCommissionRate:   "5.0",
		ledger.SettingDefaultLoanInterestRate: "10.0",
	}
	for k, v := range defaults {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO system_settings (setting_key, setting_value, updated_at) VALUES (?, ?, ?)`,
			k, v, now); err != nil {
			return fmt.Errorf("seed setting %s: %w", k, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{queries{db: sqlTx}}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the ledger.Store handed to WithTx callbacks.
type txStore struct {
	queries
}

// =============================================================================
// ledger.Store on Store (each call is its own statement)
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetProduct(ctx, id)
}

func (s *Store) DecrementStock(ctx context.Context, id ledger.ProductID, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DecrementStock(ctx, id, quantity)
}

func (s *Store) IncrementStock(ctx context.Context, id ledger.ProductID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.IncrementStock(ctx, id, quantity)
}

func (s *Store) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetSale(ctx, id)
}

func (s *Store) InsertSale(ctx context.Context, sale ledger.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertSale(ctx, sale)
}

func (s *Store) TransitionSale(ctx context.Context, t ledger.SaleTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.TransitionSale(ctx, t)
}

func (s *Store) GetLoan(ctx context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetLoan(ctx, id)
}

func (s *Store) InsertLoan(ctx context.Context, loan ledger.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertLoan(ctx, loan)
}

func (s *Store) TransitionLoan(ctx context.Context, t ledger.LoanTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.TransitionLoan(ctx, t)
}

func (s *Store) InsertLoanPayment(ctx context.Context, p ledger.LoanPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertLoanPayment(ctx, p)
}

func (s *Store) ListLoanPayments(ctx context.Context, id ledger.LoanID) ([]ledger.LoanPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListLoanPayments(ctx, id)
}

func (s *Store) GetFund(ctx context.Context, ft ledger.FundType) (*ledger.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetFund(ctx, ft)
}

func (s *Store) ListFunds(ctx context.Context) ([]ledger.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListFunds(ctx)
}

func (s *Store) CompareAndSetFund(ctx context.Context, ft ledger.FundType, expected, next decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.CompareAndSetFund(ctx, ft, expected, next, at)
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetSetting(ctx, key)
}

// =============================================================================
// QUERIES - shared by Store and txStore
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, name, description, cost_price, selling_price, stock_quantity, commission_rate, created_at, updated_at`

func scanProduct(row scanner) (*ledger.Product, error) {
	var p ledger.Product
	var cost, selling, rate, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &cost, &selling,
		&p.StockQuantity, &rate, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var c columns
	p.CostPrice = c.decimal("cost_price", cost)
	p.SellingPrice = c.decimal("selling_price", selling)
	p.CommissionRate = c.decimal("commission_rate", rate)
	p.CreatedAt = c.time("created_at", createdAt)
	p.UpdatedAt = c.time("updated_at", updatedAt)
	if c.err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, c.err)
	}
	return &p, nil
}

func (q queries) GetProduct(ctx context.Context, id ledger.ProductID) (*ledger.Product, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, string(id))
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (q queries) DecrementStock(ctx context.Context, id ledger.ProductID, quantity int) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE id = ? AND stock_quantity >= ?`,
		quantity, formatTime(time.Now().UTC()), string(id), quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return affectedOne(res)
}

func (q queries) IncrementStock(ctx context.Context, id ledger.ProductID, quantity int) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ?
		WHERE id = ?`,
		quantity, formatTime(time.Now().UTC()), string(id))
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrProductNotFound
	}
	return nil
}

const saleColumns = `id, sales_person_id, product_id, quantity, unit_price, total_amount,
	commission_amount, profit_amount, status, approved_by, approved_at, created_at`

func scanSale(row scanner) (*ledger.Sale, error) {
	var sl ledger.Sale
	var unit, total, commission, profit, status, createdAt string
	var approvedBy, approvedAt sql.NullString
	if err := row.Scan(&sl.ID, &sl.SalesPersonID, &sl.ProductID, &sl.Quantity, &unit, &total,
		&commission, &profit, &status, &approvedBy, &approvedAt, &createdAt); err != nil {
		return nil, err
	}
	var c columns
	sl.UnitPrice = c.decimal("unit_price", unit)
	sl.TotalAmount = c.decimal("total_amount", total)
	sl.CommissionAmount = c.decimal("commission_amount", commission)
	sl.ProfitAmount = c.decimal("profit_amount", profit)
	sl.Status = ledger.SaleStatus(status)
	sl.CreatedAt = c.time("created_at", createdAt)
	if approvedBy.Valid {
		u := ledger.UserID(approvedBy.String)
		sl.ApprovedBy = &u
	}
	sl.ApprovedAt = c.nullTime("approved_at", approvedAt)
	if c.err != nil {
		return nil, fmt.Errorf("sale %s: %w", sl.ID, c.err)
	}
	return &sl, nil
}

func (q queries) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, string(id))
	sl, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sl, err
}

func (q queries) InsertSale(ctx context.Context, sl ledger.Sale) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sales (id, sales_person_id, product_id, quantity, unit_price, total_amount,
			commission_amount, profit_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sl.ID), string(sl.SalesPersonID), string(sl.ProductID), sl.Quantity,
		sl.UnitPrice.String(), sl.TotalAmount.String(), sl.CommissionAmount.String(),
		sl.ProfitAmount.String(), string(sl.Status), formatTime(sl.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	return nil
}

func (q queries) TransitionSale(ctx context.Context, t ledger.SaleTransition) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sales SET status = ?, approved_by = ?, approved_at = ?
		WHERE id = ? AND status = ?`,
		string(t.To), string(t.ApprovedBy), formatTime(t.ApprovedAt), string(t.ID), string(t.From))
	if err != nil {
		return false, fmt.Errorf("failed to update sale status: %w", err)
	}
	return affectedOne(res)
}

const loanColumns = `id, borrower_id, amount, interest_rate, duration_months, monthly_payment,
	total_repayment, status, approved_by, approved_at, disbursed_at, completed_at, created_at`

func scanLoan(row scanner) (*ledger.Loan, error) {
	var l ledger.Loan
	var amount, rate, monthly, total, status, createdAt string
	var approvedBy, approvedAt, disbursedAt, completedAt sql.NullString
	if err := row.Scan(&l.ID, &l.BorrowerID, &amount, &rate, &l.DurationMonths, &monthly,
		&total, &status, &approvedBy, &approvedAt, &disbursedAt, &completedAt, &createdAt); err != nil {
		return nil, err
	}
	var c columns
	l.Amount = c.decimal("amount", amount)
	l.InterestRate = c.decimal("interest_rate", rate)
	l.MonthlyPayment = c.decimal("monthly_payment", monthly)
	l.TotalRepayment = c.decimal("total_repayment", total)
	l.Status = ledger.LoanStatus(status)
	l.CreatedAt = c.time("created_at", createdAt)
	if approvedBy.Valid {
		u := ledger.UserID(approvedBy.String)
		l.ApprovedBy = &u
	}
	l.ApprovedAt = c.nullTime("approved_at", approvedAt)
	l.DisbursedAt = c.nullTime("disbursed_at", disbursedAt)
	l.CompletedAt = c.nullTime("completed_at", completedAt)
	if c.err != nil {
		return nil, fmt.Errorf("loan %s: %w", l.ID, c.err)
	}
	return &l, nil
}

func (q queries) GetLoan(ctx context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, string(id))
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (q queries) InsertLoan(ctx context.Context, l ledger.Loan) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO loans (id, borrower_id, amount, interest_rate, duration_months,
			monthly_payment, total_repayment, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(l.ID), string(l.BorrowerID), l.Amount.String(), l.InterestRate.String(),
		l.DurationMonths, l.MonthlyPayment.String(), l.TotalRepayment.String(),
		string(l.Status), formatTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

func (q queries) TransitionLoan(ctx context.Context, t ledger.LoanTransition) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE loans SET status = ?,
			approved_by = COALESCE(?, approved_by),
			approved_at = COALESCE(?, approved_at),
			disbursed_at = COALESCE(?, disbursed_at),
			completed_at = COALESCE(?, completed_at)
		WHERE id = ? AND status = ?`,
		string(t.To), nullString(string(t.ApprovedBy)), nullTime(t.ApprovedAt),
		nullTime(t.DisbursedAt), nullTime(t.CompletedAt), string(t.ID), string(t.From))
	if err != nil {
		return false, fmt.Errorf("failed to update loan status: %w", err)
	}
	return affectedOne(res)
}

func (q queries) InsertLoanPayment(ctx context.Context, p ledger.LoanPayment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO loan_payments (id, loan_id, payment_amount, commission_deducted, payment_date)
		VALUES (?, ?, ?, ?, ?)`,
		string(p.ID), string(p.LoanID), p.PaymentAmount.String(),
		p.CommissionDeducted.String(), formatTime(p.PaymentDate))
	if err != nil {
		return fmt.Errorf("failed to insert loan payment: %w", err)
	}
	return nil
}

func (q queries) ListLoanPayments(ctx context.Context, id ledger.LoanID) ([]ledger.LoanPayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, loan_id, payment_amount, commission_deducted, payment_date
		FROM loan_payments WHERE loan_id = ?
		ORDER BY payment_date ASC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []ledger.LoanPayment
	for rows.Next() {
		var p ledger.LoanPayment
		var amount, commission, date string
		if err := rows.Scan(&p.ID, &p.LoanID, &amount, &commission, &date); err != nil {
			return nil, err
		}
		var c columns
		p.PaymentAmount = c.decimal("payment_amount", amount)
		p.CommissionDeducted = c.decimal("commission_deducted", commission)
		p.PaymentDate = c.time("payment_date", date)
		if c.err != nil {
			return nil, fmt.Errorf("loan payment %s: %w", p.ID, c.err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (q queries) GetFund(ctx context.Context, ft ledger.FundType) (*ledger.Fund, error) {
	var f ledger.Fund
	var amount, updatedAt string
	err := q.db.QueryRowContext(ctx,
		`SELECT fund_type, amount, updated_at FROM financial_funds WHERE fund_type = ?`, string(ft)).
		Scan(&f.Type, &amount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c columns
	f.Amount = c.decimal("amount", amount)
	f.UpdatedAt = c.time("updated_at", updatedAt)
	if c.err != nil {
		return nil, fmt.Errorf("fund %s: %w", f.Type, c.err)
	}
	return &f, nil
}

func (q queries) ListFunds(ctx context.Context) ([]ledger.Fund, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT fund_type, amount, updated_at FROM financial_funds ORDER BY fund_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funds []ledger.Fund
	for rows.Next() {
		var f ledger.Fund
		var amount, updatedAt string
		if err := rows.Scan(&f.Type, &amount, &updatedAt); err != nil {
			return nil, err
		}
		var c columns
		f.Amount = c.decimal("amount", amount)
		f.UpdatedAt = c.time("updated_at", updatedAt)
		if c.err != nil {
			return nil, fmt.Errorf("fund %s: %w", f.Type, c.err)
		}
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

func (q queries) CompareAndSetFund(ctx context.Context, ft ledger.FundType, expected, next decimal.Decimal, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE financial_funds SET amount = ?, updated_at = ?
		WHERE fund_type = ? AND amount = ?`,
		next.String(), formatTime(at), string(ft), expected.String())
	if err != nil {
		return false, fmt.Errorf("failed to update fund: %w", err)
	}
	return affectedOne(res)
}

func (q queries) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := q.db.QueryRowContext(ctx,
		`SELECT setting_value FROM system_settings WHERE setting_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ErrCorruptRow is returned when a stored value cannot be decoded.
var ErrCorruptRow = errors.New("corrupt row")

// columns decodes TEXT columns of one row, keeping the first failure.
type columns struct {
	err error
}

func (c *columns) fail(name, value string, err error) {
	if c.err == nil {
		c.err = fmt.Errorf("%w: column %s holds %q: %v", ErrCorruptRow, name, value, err)
	}
}

func (c *columns) decimal(name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		c.fail(name, value, err)
		return decimal.Zero
	}
	return d
}

func (c *columns) time(name, value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		c.fail(name, value, err)
	}
	return t
}

func (c *columns) nullTime(name string, value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t := c.time(name, value.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// Interface checks.
var (
	_ ledger.TxStore = (*Store)(nil)
	_ ledger.Store   = (*txStore)(nil)
)
