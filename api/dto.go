/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the ledger
  types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Operation results

VALIDATION:
  Request shapes are checked with go-playground/validator struct tags
  (required fields, numeric ranges, roles). Business rules such as loan
  durations, decision actions and stock stay in the ledger so every caller
  gets the same error codes.

MONEY:
  decimal.Decimal marshals as a JSON string ("105.5") and accepts either a
  string or a number on input.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/store/sqlite"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitSaleRequest records a sale.
type SubmitSaleRequest struct {
	SalesPersonID string          `json:"sales_person_id" validate:"required"`
	ProductID     string          `json:"product_id" validate:"required"`
	Quantity      int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// DecisionRequest approves or rejects a pending sale or loan.
type DecisionRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Action     string `json:"action"`
}

// ApplyLoanRequest is a loan application.
type ApplyLoanRequest struct {
	BorrowerID     string          `json:"borrower_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	DurationMonths int             `json:"duration_months"`
}

// LoanPaymentRequest is a repayment.
type LoanPaymentRequest struct {
	PaymentAmount      decimal.Decimal `json:"payment_amount" validate:"gt=0"`
	CommissionDeducted decimal.Decimal `json:"commission_deducted" validate:"gte=0"`
}

// ProductRequest creates or updates a product.
type ProductRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Description    string          `json:"description" validate:"max=2000"`
	CostPrice      decimal.Decimal `json:"cost_price" validate:"gte=0"`
	SellingPrice   decimal.Decimal `json:"selling_price" validate:"gte=0"`
	StockQuantity  int             `json:"stock_quantity" validate:"gte=0"`
	CommissionRate decimal.Decimal `json:"commission_rate" validate:"gte=0,lte=100"`
}

// CreateUserRequest adds a directory entry.
type CreateUserRequest struct {
	Username     string `json:"username" validate:"required,alphanum,min=3,max=50"`
	Role         string `json:"role" validate:"required,oneof=sales_person sub_manager top_manager"`
	FullName     string `json:"full_name" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,max=30"`
	SubManagerID string `json:"sub_manager_id" validate:"required_if=Role sales_person"`
}

// FundAmountRequest overrides a fund balance.
type FundAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// FundAdjustmentRequest applies a signed delta to a fund.
type FundAdjustmentRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason" validate:"max=500"`
}

// SettingRequest upserts a system setting.
type SettingRequest struct {
	Value string `json:"value" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SaleDTO represents a sale in API responses.
type SaleDTO struct {
	ID               string          `json:"id"`
	SalesPersonID    string          `json:"sales_person_id"`
	SalesPersonName  string          `json:"sales_person_name,omitempty"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	ProfitAmount     decimal.Decimal `json:"profit_amount"`
	Status           string          `json:"status"`
	ApprovedBy       *string         `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func toSaleDTO(s ledger.Sale) SaleDTO {
	return SaleDTO{
		ID:               string(s.ID),
		SalesPersonID:    string(s.SalesPersonID),
		ProductID:        string(s.ProductID),
		Quantity:         s.Quantity,
		UnitPrice:        s.UnitPrice,
		TotalAmount:      s.TotalAmount,
		CommissionAmount: s.CommissionAmount,
		ProfitAmount:     s.ProfitAmount,
		Status:           string(s.Status),
		ApprovedBy:       userIDPtr(s.ApprovedBy),
		ApprovedAt:       s.ApprovedAt,
		CreatedAt:        s.CreatedAt,
	}
}

func toSaleViewDTOs(views []sqlite.SaleView) []SaleDTO {
	dtos := make([]SaleDTO, len(views))
	for i, v := range views {
		dtos[i] = toSaleDTO(v.Sale)
		dtos[i].ProductName = v.ProductName
		dtos[i].SalesPersonName = v.SalesPersonName
	}
	return dtos
}

// LoanDTO represents a loan in API responses.
type LoanDTO struct {
	ID             string          `json:"id"`
	BorrowerID     string          `json:"borrower_id"`
	BorrowerName   string          `json:"borrower_name,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	DurationMonths int             `json:"duration_months"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalRepayment decimal.Decimal `json:"total_repayment"`
	Status         string          `json:"status"`
	ApprovedBy     *string         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	DisbursedAt    *time.Time      `json:"disbursed_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toLoanDTO(l ledger.Loan) LoanDTO {
	return LoanDTO{
		ID:             string(l.ID),
		BorrowerID:     string(l.BorrowerID),
		Amount:         l.Amount,
		InterestRate:   l.InterestRate,
		DurationMonths: l.DurationMonths,
		MonthlyPayment: l.MonthlyPayment,
		TotalRepayment: l.TotalRepayment,
		Status:         string(l.Status),
		ApprovedBy:     userIDPtr(l.ApprovedBy),
		ApprovedAt:     l.ApprovedAt,
		DisbursedAt:    l.DisbursedAt,
		CompletedAt:    l.CompletedAt,
		CreatedAt:      l.CreatedAt,
	}
}

func toLoanViewDTOs(views []sqlite.LoanView) []LoanDTO {
	dtos := make([]LoanDTO, len(views))
	for i, v := range views {
		dtos[i] = toLoanDTO(v.Loan)
		dtos[i].BorrowerName = v.BorrowerName
	}
	return dtos
}

// LoanPaymentDTO represents a repayment.
type LoanPaymentDTO struct {
	ID                 string          `json:"id"`
	LoanID             string          `json:"loan_id"`
	PaymentAmount      decimal.Decimal `json:"payment_amount"`
	CommissionDeducted decimal.Decimal `json:"commission_deducted"`
	PaymentDate        time.Time       `json:"payment_date"`
}

func toPaymentDTO(p ledger.LoanPayment) LoanPaymentDTO {
	return LoanPaymentDTO{
		ID:                 string(p.ID),
		LoanID:             string(p.LoanID),
		PaymentAmount:      p.PaymentAmount,
		CommissionDeducted: p.CommissionDeducted,
		PaymentDate:        p.PaymentDate,
	}
}

// DecisionResponse is returned by both decision endpoints.
type DecisionResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
}

// PaymentResponse is returned after a repayment.
type PaymentResponse struct {
	Success       bool            `json:"success"`
	LoanCompleted bool            `json:"loan_completed"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Payment       LoanPaymentDTO  `json:"payment"`
}

// InterestRateResponse reports the current loan terms, with a repayment
// preview when amount and duration were supplied.
type InterestRateResponse struct {
	InterestRate     decimal.Decimal  `json:"interest_rate"`
	AllowedDurations []int            `json:"allowed_durations,omitempty"`
	MonthlyPayment   *decimal.Decimal `json:"monthly_payment,omitempty"`
	TotalRepayment   *decimal.Decimal `json:"total_repayment,omitempty"`
}

// ProductDTO represents a catalog entry.
type ProductDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	StockQuantity  int             `json:"stock_quantity"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toProductDTO(p ledger.Product) ProductDTO {
	return ProductDTO{
		ID:             string(p.ID),
		Name:           p.Name,
		Description:    p.Description,
		CostPrice:      p.CostPrice,
		SellingPrice:   p.SellingPrice,
		StockQuantity:  p.StockQuantity,
		CommissionRate: p.CommissionRate,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// UserDTO represents a directory entry.
type UserDTO struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	SubManagerID *string   `json:"sub_manager_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toUserDTO(u ledger.User) UserDTO {
	return UserDTO{
		ID:           string(u.ID),
		Username:     u.Username,
		Role:         string(u.Role),
		FullName:     u.FullName,
		Email:        u.Email,
		Phone:        u.Phone,
		SubManagerID: userIDPtr(u.SubManagerID),
		CreatedAt:    u.CreatedAt,
	}
}

// FundDTO represents a fund balance.
type FundDTO struct {
	FundType  string          `json:"fund_type"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toFundDTO(f ledger.Fund) FundDTO {
	return FundDTO{FundType: string(f.Type), Amount: f.Amount, UpdatedAt: f.UpdatedAt}
}

// SettingDTO represents a system setting.
type SettingDTO struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SalesStatsDTO summarizes one sales person.
type SalesStatsDTO struct {
	TotalSales      int             `json:"total_sales"`
	PendingSales    int             `json:"pending_sales"`
	ApprovedSales   int             `json:"approved_sales"`
	RejectedSales   int             `json:"rejected_sales"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// LoanStatsDTO summarizes one borrower.
type LoanStatsDTO struct {
	TotalLoans     int             `json:"total_loans"`
	PendingLoans   int             `json:"pending_loans"`
	ActiveLoans    int             `json:"active_loans"`
	CompletedLoans int             `json:"completed_loans"`
	TotalBorrowed  decimal.Decimal `json:"total_borrowed"`
	Outstanding    decimal.Decimal `json:"outstanding_amount"`
}

// ProductStatsDTO is one row of the product report.
type ProductStatsDTO struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	StockQuantity int             `json:"stock_quantity"`
	TotalSold     int             `json:"total_sold"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// OverviewDTO is the business dashboard summary.
type OverviewDTO struct {
	TotalUsers      int             `json:"total_users"`
	TotalProducts   int             `json:"total_products"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	PendingSales    int             `json:"pending_sales"`
	PendingLoans    int             `json:"pending_loans"`
	Funds           []FundDTO       `json:"funds"`
}

// PerformanceDTO is one row of the sales performance report.
type PerformanceDTO struct {
	SalesPersonID   string          `json:"sales_person_id"`
	FullName        string          `json:"full_name"`
	TotalSales      int             `json:"total_sales"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// SeedResponse reports what the demo seed created.
type SeedResponse struct {
	Users    int `json:"users"`
	Products int `json:"products"`
}

func userIDPtr(id *ledger.UserID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}
