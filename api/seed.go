/*
seed.go - Demo data loader

PURPOSE:
  Resets the database and loads a small back office: one top manager, two
  sub-managers, three sales persons, five products, and opening balances in
  the bank (10000) and stock (5000) funds.

  IDs are stable (user-admin, user-sales1, prod-laptop, ...) so demos and
  tests can address records without looking them up.

USAGE VIA API:
  POST /api/seed

NOTE:
  Seeding resets the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Workflow endpoints exercised against this data
  - store/sqlite/catalog.go: Reset, SaveUser, SaveProduct
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/logger"
	"go.uber.org/zap"
)

// =============================================================================
// DEMO DATA
// =============================================================================

func userRef(id string) *ledger.UserID {
	u := ledger.UserID(id)
	return &u
}

var demoUsers = []ledger.User{
	{ID: "user-admin", Username: "admin", Role: ledger.RoleTopManager, FullName: "System Administrator",
		Email: "admin@company.com", Phone: "+1234567890"},
	{ID: "user-manager1", Username: "manager1", Role: ledger.RoleSubManager, FullName: "John Manager",
		Email: "john@company.com", Phone: "+1234567891"},
	{ID: "user-manager2", Username: "manager2", Role: ledger.RoleSubManager, FullName: "Jane Manager",
		Email: "jane@company.com", Phone: "+1234567892"},
	{ID: "user-sales1", Username: "sales1", Role: ledger.RoleSalesPerson, FullName: "Alice Sales",
		Email: "alice@company.com", Phone: "+1234567893", SubManagerID: userRef("user-manager1")},
	{ID: "user-sales2", Username: "sales2", Role: ledger.RoleSalesPerson, FullName: "Bob Sales",
		Email: "bob@company.com", Phone: "+1234567894", SubManagerID: userRef("user-manager1")},
	{ID: "user-sales3", Username: "sales3", Role: ledger.RoleSalesPerson, FullName: "Charlie Sales",
		Email: "charlie@company.com", Phone: "+1234567895", SubManagerID: userRef("user-manager2")},
}

func demoProduct(id, name, description string, cost, selling int64, stock int, commission int64) ledger.Product {
	return ledger.Product{
		ID:             ledger.ProductID(id),
		Name:           name,
		Description:    description,
		CostPrice:      decimal.NewFromInt(cost),
		SellingPrice:   decimal.NewFromInt(selling),
		StockQuantity:  stock,
		CommissionRate: decimal.NewFromInt(commission),
	}
}

var demoProducts = []ledger.Product{
	demoProduct("prod-laptop", "Laptop Computer", "High-performance laptop for business use", 800, 1200, 50, 8),
	demoProduct("prod-mouse", "Wireless Mouse", "Ergonomic wireless mouse", 15, 25, 200, 5),
	demoProduct("prod-chair", "Office Chair", "Comfortable ergonomic office chair", 150, 250, 30, 10),
	demoProduct("prod-monitor", `Monitor 24"`, "24-inch LED monitor", 200, 300, 75, 7),
	demoProduct("prod-keyboard", "Keyboard", "Mechanical keyboard", 50, 80, 100, 6),
}

var demoFunds = map[ledger.FundType]decimal.Decimal{
	ledger.FundBank:  decimal.NewFromInt(10000),
	ledger.FundStock: decimal.NewFromInt(5000),
}

// =============================================================================
// HANDLER
// =============================================================================

// Seed resets the database and loads the demo data.
// POST /api/seed
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.seedDemo(ctx); err != nil {
		h.fail(w, r, "Failed to seed database", err)
		return
	}
	logger.FromContext(ctx).Info("demo data loaded",
		zap.Int("users", len(demoUsers)),
		zap.Int("products", len(demoProducts)))
	writeJSON(w, http.StatusOK, SeedResponse{Users: len(demoUsers), Products: len(demoProducts)})
}

func (h *Handler) seedDemo(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	// Managers precede their sales persons in demoUsers.
	for _, u := range demoUsers {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
	}
	for _, p := range demoProducts {
		if err := h.Store.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("product %s: %w", p.Name, err)
		}
	}
	for _, ft := range ledger.FundTypes {
		amount, ok := demoFunds[ft]
		if !ok {
			continue
		}
		if _, err := h.Funds.Set(ctx, ft, amount); err != nil {
			return fmt.Errorf("fund %s: %w", ft, err)
		}
	}
	return nil
}
