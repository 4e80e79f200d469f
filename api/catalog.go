package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/logger"
	"go.uber.org/zap"
)

// =============================================================================
// PRODUCTS
// =============================================================================

// ListProducts returns the catalog.
// GET /api/products?in_stock=true
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context(), r.URL.Query().Get("in_stock") == "true")
	if err != nil {
		h.fail(w, r, "Failed to list products", err)
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct adds a catalog entry.
// POST /api/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	p := productFromRequest(ledger.ProductID(uuid.NewString()), req)
	p.CreatedAt, p.UpdatedAt = now, now
	if err := ledger.ValidateProduct(p); err != nil {
		h.fail(w, r, "Invalid product", err)
		return
	}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		h.fail(w, r, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// UpdateProduct replaces a product's catalog fields.
// PUT /api/products/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	p := productFromRequest(ledger.ProductID(chi.URLParam(r, "id")), req)
	if err := ledger.ValidateProduct(p); err != nil {
		h.fail(w, r, "Invalid product", err)
		return
	}
	if err := h.Store.UpdateProduct(ctx, p); err != nil {
		h.fail(w, r, "Failed to update product", err)
		return
	}
	updated, err := h.Store.GetProduct(ctx, p.ID)
	if err != nil || updated == nil {
		h.fail(w, r, "Failed to reload product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*updated))
}

// DeleteProduct removes a product with no sales.
// DELETE /api/products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteProduct(r.Context(), ledger.ProductID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProductStats returns per-product sales, highest revenue first.
// GET /api/products/stats
func (h *Handler) GetProductStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.ProductStatistics(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get product statistics", err)
		return
	}
	dtos := make([]ProductStatsDTO, len(stats))
	for i, s := range stats {
		dtos[i] = ProductStatsDTO{
			ProductID:     string(s.ProductID),
			Name:          s.Name,
			StockQuantity: s.StockQuantity,
			TotalSold:     s.TotalSold,
			TotalRevenue:  s.TotalRevenue,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func productFromRequest(id ledger.ProductID, req ProductRequest) ledger.Product {
	return ledger.Product{
		ID:             id,
		Name:           req.Name,
		Description:    req.Description,
		CostPrice:      req.CostPrice,
		SellingPrice:   req.SellingPrice,
		StockQuantity:  req.StockQuantity,
		CommissionRate: req.CommissionRate,
	}
}

// =============================================================================
// USERS
// =============================================================================

// ListUsers returns the directory, optionally filtered by role.
// GET /api/users?role=sales_person
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := ledger.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		h.fail(w, r, "Invalid role", fmt.Errorf("%w: unknown role %q", ledger.ErrInvalidInput, role))
		return
	}
	users, err := h.Store.ListUsers(r.Context(), role)
	if err != nil {
		h.fail(w, r, "Failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// CreateUser adds a directory entry. A sales person's sub-manager must exist.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	u := ledger.User{
		ID:        ledger.UserID(uuid.NewString()),
		Username:  req.Username,
		Role:      ledger.Role(req.Role),
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if req.SubManagerID != "" {
		manager, err := h.Store.GetUser(ctx, ledger.UserID(req.SubManagerID))
		if err != nil {
			h.fail(w, r, "Failed to look up sub-manager", err)
			return
		}
		if manager == nil || manager.Role != ledger.RoleSubManager {
			h.fail(w, r, "Invalid sub-manager",
				fmt.Errorf("%w: %s is not a sub-manager", ledger.ErrInvalidInput, req.SubManagerID))
			return
		}
		u.SubManagerID = &manager.ID
	}
	if err := u.Validate(); err != nil {
		h.fail(w, r, "Invalid user", err)
		return
	}
	if err := h.Store.SaveUser(ctx, u); err != nil {
		h.fail(w, r, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// GetTeam returns the sales persons reporting to a sub-manager.
// GET /api/users/{id}/team
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListTeam(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to list team", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

func toUserDTOs(users []ledger.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	return dtos
}

// =============================================================================
// FUNDS
// =============================================================================

// ListFunds returns the four fund balances.
// GET /api/funds
func (h *Handler) ListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.Funds.List(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list funds", err)
		return
	}
	writeJSON(w, http.StatusOK, toFundDTOs(funds))
}

// SetFund overrides a fund balance.
// PUT /api/funds/{type}
func (h *Handler) SetFund(w http.ResponseWriter, r *http.Request) {
	var req FundAmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	fund, err := h.Funds.Set(r.Context(), ledger.FundType(chi.URLParam(r, "type")), req.Amount)
	if err != nil {
		h.fail(w, r, "Failed to set fund", err)
		return
	}
	writeJSON(w, http.StatusOK, toFundDTO(fund))
}

// AdjustFund applies a signed delta to a fund.
// POST /api/funds/{type}/adjustments
func (h *Handler) AdjustFund(w http.ResponseWriter, r *http.Request) {
	var req FundAdjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	fund, err := h.Funds.Adjust(r.Context(), ledger.FundType(chi.URLParam(r, "type")), req.Delta)
	if err != nil {
		h.fail(w, r, "Failed to adjust fund", err)
		return
	}
	if req.Reason != "" {
		logger.FromContext(r.Context()).Info("fund adjustment reason",
			zap.String("fund_type", string(fund.Type)),
			zap.String("reason", req.Reason))
	}
	writeJSON(w, http.StatusOK, toFundDTO(fund))
}

func toFundDTOs(funds []ledger.Fund) []FundDTO {
	dtos := make([]FundDTO, len(funds))
	for i, f := range funds {
		dtos[i] = toFundDTO(f)
	}
	return dtos
}

// =============================================================================
// SETTINGS
// =============================================================================

// ListSettings returns all system settings.
// GET /api/settings
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.ListSettings(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list settings", err)
		return
	}
	dtos := make([]SettingDTO, len(settings))
	for i, s := range settings {
		dtos[i] = SettingDTO{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// rateSettings must hold a percentage.
var rateSettings = map[string]bool{
	ledger.SettingDefaultLoanInterestRate: true,
	ledger.SettingDefaultCommissionRate:   true,
}

// UpdateSetting upserts a system setting.
// PUT /api/settings/{key}
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if !h.decode(w, r, &req) {
		return
	}

	key := chi.URLParam(r, "key")
	if rateSettings[key] {
		rate, err := decimal.NewFromString(req.Value)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			h.fail(w, r, "Invalid rate",
				fmt.Errorf("%w: %s must be a percentage between 0 and 100", ledger.ErrInvalidInput, key))
			return
		}
	}
	if err := h.Store.SetSetting(r.Context(), key, req.Value); err != nil {
		h.fail(w, r, "Failed to update setting", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingDTO{Key: key, Value: req.Value, UpdatedAt: time.Now().UTC()})
}

// =============================================================================
// REPORTS
// =============================================================================

// GetOverview returns the business dashboard summary with fund balances.
// GET /api/reports/overview
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ov, err := h.Store.Overview(ctx)
	if err != nil {
		h.fail(w, r, "Failed to get overview", err)
		return
	}
	funds, err := h.Funds.List(ctx)
	if err != nil {
		h.fail(w, r, "Failed to list funds", err)
		return
	}
	writeJSON(w, http.StatusOK, OverviewDTO{
		TotalUsers:      ov.TotalUsers,
		TotalProducts:   ov.TotalProducts,
		TotalRevenue:    ov.TotalRevenue,
		TotalProfit:     ov.TotalProfit,
		TotalCommission: ov.TotalCommission,
		PendingSales:    ov.PendingSales,
		PendingLoans:    ov.PendingLoans,
		Funds:           toFundDTOs(funds),
	})
}

// GetSalesPerformance ranks sales persons by approved revenue.
// GET /api/reports/sales-performance
func (h *Handler) GetSalesPerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := h.Store.Performance(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get sales performance", err)
		return
	}
	dtos := make([]PerformanceDTO, len(perf))
	for i, p := range perf {
		dtos[i] = PerformanceDTO{
			SalesPersonID:   string(p.SalesPersonID),
			FullName:        p.FullName,
			TotalSales:      p.TotalSales,
			TotalRevenue:    p.TotalRevenue,
			TotalCommission: p.TotalCommission,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}
