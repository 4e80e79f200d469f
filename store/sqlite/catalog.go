package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/sales-engine/ledger"
)

// =============================================================================
// PRODUCTS
// =============================================================================

// SaveProduct inserts a product or replaces an existing one with the same ID.
func (s *Store) SaveProduct(ctx context.Context, p ledger.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			cost_price = excluded.cost_price,
			selling_price = excluded.selling_price,
			stock_quantity = excluded.stock_quantity,
			commission_rate = excluded.commission_rate,
			updated_at = excluded.updated_at`,
		string(p.ID), p.Name, p.Description, p.CostPrice.String(), p.SellingPrice.String(),
		p.StockQuantity, p.CommissionRate.String(), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// UpdateProduct replaces the catalog fields of an existing product.
func (s *Store) UpdateProduct(ctx context.Context, p ledger.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, cost_price = ?, selling_price = ?,
			stock_quantity = ?, commission_rate = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.CostPrice.String(), p.SellingPrice.String(),
		p.StockQuantity, p.CommissionRate.String(), formatTime(time.Now().UTC()), string(p.ID))
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrProductNotFound, p.ID)
	}
	return nil
}

// DeleteProduct removes a product that no sale references.
func (s *Store) DeleteProduct(ctx context.Context, id ledger.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var salesCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales WHERE product_id = ?`, string(id)).Scan(&salesCount); err != nil {
		return fmt.Errorf("failed to count sales: %w", err)
	}
	if salesCount > 0 {
		return fmt.Errorf("%w: %s has %d sales", ledger.ErrProductInUse, id, salesCount)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrProductNotFound, id)
	}
	return tx.Commit()
}

// ListProducts returns the catalog ordered by name.
func (s *Store) ListProducts(ctx context.Context, inStockOnly bool) ([]ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + productColumns + ` FROM products`
	if inStockOnly {
		query += ` WHERE stock_quantity > 0`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []ledger.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = `id, username, role, full_name, email, phone, sub_manager_id, created_at`

func scanUser(row scanner) (*ledger.User, error) {
	var u ledger.User
	var role, createdAt string
	var subManager sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &role, &u.FullName, &u.Email, &u.Phone,
		&subManager, &createdAt); err != nil {
		return nil, err
	}
	var c columns
	u.Role = ledger.Role(role)
	u.CreatedAt = c.time("created_at", createdAt)
	if subManager.Valid {
		m := ledger.UserID(subManager.String)
		u.SubManagerID = &m
	}
	if c.err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, c.err)
	}
	return &u, nil
}

// ErrDuplicateUsername is returned when a username is already taken.
var ErrDuplicateUsername = fmt.Errorf("%w: username already exists", ledger.ErrInvalidInput)

// SaveUser inserts a directory entry.
func (s *Store) SaveUser(ctx context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	var subManager sql.NullString
	if u.SubManagerID != nil {
		subManager = nullString(string(*u.SubManagerID))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(u.ID), u.Username, string(u.Role), u.FullName, u.Email, u.Phone,
		subManager, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, u.Username)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser returns a user, or nil if none exists.
func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// ListUsers returns users with the given role, or everyone when role is empty.
func (s *Store) ListUsers(ctx context.Context, role ledger.Role) ([]ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY full_name`
	return s.queryUsers(ctx, query, args...)
}

// ListTeam returns the sales persons reporting to a sub-manager.
func (s *Store) ListTeam(ctx context.Context, managerID ledger.UserID) ([]ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE sub_manager_id = ? AND role = 'sales_person'
		ORDER BY full_name`, string(managerID))
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// =============================================================================
// SETTINGS
// =============================================================================

// Setting is one system_settings row.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// ListSettings returns all settings ordered by key.
func (s *Store) ListSettings(ctx context.Context) ([]Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT setting_key, setting_value, updated_at FROM system_settings ORDER BY setting_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		var updatedAt string
		if err := rows.Scan(&st.Key, &st.Value, &updatedAt); err != nil {
			return nil, err
		}
		var c columns
		st.UpdatedAt = c.time("updated_at", updatedAt)
		if c.err != nil {
			return nil, fmt.Errorf("setting %s: %w", st.Key, c.err)
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all data and restores the seeded funds and settings.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first; foreign keys are enforced.
	for _, table := range []string{
		"loan_payments", "loans", "sales", "products", "financial_funds", "system_settings",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	// Sales persons reference their manager.
	if _, err := tx.ExecContext(ctx, `UPDATE users SET sub_manager_id = NULL`); err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	if err := s.seed(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}
