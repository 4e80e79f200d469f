/*
handlers.go - HTTP API handlers for the sales and loan back office

PURPOSE:
  Exposes the ledger workflows via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to the ledger package.

ENDPOINTS:
  Sales:
    POST   /api/sales                          Submit a sale (reserves stock)
    GET    /api/sales?sales_person_id=&status= Sales of one sales person
    GET    /api/sales/pending?manager_id=      Pending sales of a team
    GET    /api/sales/{id}                     Get sale
    POST   /api/sales/{id}/decision            Approve or reject
    GET    /api/sales-persons/{id}/stats       Sales statistics
    GET    /api/sales-persons/{id}/recent-sales

  Loans:
    POST   /api/loans                          Apply for a loan
    GET    /api/loans?borrower_id=&status=     Loans of one borrower
    GET    /api/loans/pending?manager_id=      Pending loans of a team
    GET    /api/loans/interest-rate            Current rate and preview
    GET    /api/loans/{id}                     Get loan
    POST   /api/loans/{id}/decision            Approve (disburse) or reject
    POST   /api/loans/{id}/payments            Record a repayment
    GET    /api/loans/{id}/payments            Repayment history
    GET    /api/borrowers/{id}/loan-stats      Loan statistics

  Catalog, directory, funds, settings and reports: see catalog.go.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: SQLite store (ledger.TxStore plus catalog and report queries)
  - Sales, Loans, Funds: ledger workflows over the same store

ERROR HANDLING:
  Errors are returned as JSON {error, code, details} with the status
  derived from ledger.Code:
  - 400: Validation errors, invalid action or duration, unknown fund type
  - 404: Record not found
  - 409: Already processed, not active, insufficient stock, product in use,
         concurrent modification
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Approver and actor IDs are taken from the request.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/logger"
	"github.com/warp/sales-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Sales *ledger.SaleWorkflow
	Loans *ledger.LoanWorkflow
	Funds *ledger.FundLedger

	allowedDurations []int
	logger           *zap.Logger
	validate         *validator.Validate
}

// Config carries the loan policy and logger into the workflows.
type Config struct {
	Logger *zap.Logger
	// FallbackInterestRate is used when settings hold no usable rate. Zero
	// keeps ledger.DefaultInterestRate.
	FallbackInterestRate decimal.Decimal
	// AllowedDurations nil keeps ledger.DefaultLoanDurations.
	AllowedDurations []int
}

// NewHandler creates a handler whose workflows share store.
func NewHandler(store *sqlite.Store, cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	opts := []ledger.Option{ledger.WithLogger(log.Named("ledger"))}
	if !cfg.FallbackInterestRate.IsZero() {
		opts = append(opts, ledger.WithFallbackInterestRate(cfg.FallbackInterestRate))
	}
	durations := ledger.DefaultLoanDurations
	if cfg.AllowedDurations != nil {
		durations = cfg.AllowedDurations
		opts = append(opts, ledger.WithAllowedDurations(durations...))
	}

	return &Handler{
		Store:            store,
		Sales:            ledger.NewSaleWorkflow(store, opts...),
		Loans:            ledger.NewLoanWorkflow(store, opts...),
		Funds:            ledger.NewFundLedger(store, opts...),
		allowedDurations: durations,
		logger:           log,
		validate:         newValidator(),
	}
}

// newValidator validates decimal fields as floats so numeric tags
// (gt, gte, lte) apply to money.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// SALES
// =============================================================================

// SubmitSale records a pending sale.
// POST /api/sales
func (h *Handler) SubmitSale(w http.ResponseWriter, r *http.Request) {
	var req SubmitSaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	sale, err := h.Sales.Submit(r.Context(), ledger.SubmitSaleInput{
		SalesPersonID: ledger.UserID(req.SalesPersonID),
		ProductID:     ledger.ProductID(req.ProductID),
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
	})
	if err != nil {
		h.fail(w, r, "Failed to submit sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(*sale))
}

// GetSale returns one sale.
// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Sales.Get(r.Context(), ledger.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// ListSales returns a sales person's sales, newest first.
// GET /api/sales?sales_person_id=...&status=...
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	personID := r.URL.Query().Get("sales_person_id")
	if personID == "" {
		h.fail(w, r, "sales_person_id is required", missingParam("sales_person_id"))
		return
	}
	views, err := h.Store.ListSalesBySalesPerson(r.Context(), ledger.UserID(personID),
		ledger.SaleStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleViewDTOs(views))
}

// ListPendingSales returns the pending sales of a sub-manager's team.
// GET /api/sales/pending?manager_id=...
func (h *Handler) ListPendingSales(w http.ResponseWriter, r *http.Request) {
	managerID := r.URL.Query().Get("manager_id")
	if managerID == "" {
		h.fail(w, r, "manager_id is required", missingParam("manager_id"))
		return
	}
	views, err := h.Store.PendingSalesForManager(r.Context(), ledger.UserID(managerID))
	if err != nil {
		h.fail(w, r, "Failed to list pending sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleViewDTOs(views))
}

// DecideSale approves or rejects a pending sale.
// POST /api/sales/{id}/decision
func (h *Handler) DecideSale(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.Sales.Decide(r.Context(), ledger.SaleID(chi.URLParam(r, "id")),
		ledger.UserID(req.ApproverID), req.Action)
	if err != nil {
		h.fail(w, r, "Failed to decide sale", err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionResponse{Success: result.Success, Action: string(result.Action)})
}

// GetSalesStats summarizes a sales person's sales.
// GET /api/sales-persons/{id}/stats
func (h *Handler) GetSalesStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.SalesStatsFor(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get sales statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, SalesStatsDTO{
		TotalSales:      stats.TotalSales,
		PendingSales:    stats.PendingSales,
		ApprovedSales:   stats.ApprovedSales,
		RejectedSales:   stats.RejectedSales,
		TotalRevenue:    stats.TotalRevenue,
		TotalCommission: stats.TotalCommission,
	})
}

// GetRecentSales returns a sales person's latest sales.
// GET /api/sales-persons/{id}/recent-sales?limit=5
func (h *Handler) GetRecentSales(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 5)
	if err != nil {
		h.fail(w, r, "Invalid limit", err)
		return
	}
	views, err := h.Store.RecentSales(r.Context(), ledger.UserID(chi.URLParam(r, "id")), limit)
	if err != nil {
		h.fail(w, r, "Failed to get recent sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleViewDTOs(views))
}

// =============================================================================
// LOANS
// =============================================================================

// ApplyLoan records a pending loan.
// POST /api/loans
func (h *Handler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	var req ApplyLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.Loans.Apply(r.Context(), ledger.ApplyLoanInput{
		BorrowerID:     ledger.UserID(req.BorrowerID),
		Amount:         req.Amount,
		DurationMonths: req.DurationMonths,
	})
	if err != nil {
		h.fail(w, r, "Failed to apply for loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(*loan))
}

// GetLoan returns one loan.
// GET /api/loans/{id}
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.Loans.Get(r.Context(), ledger.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(*loan))
}

// ListLoans returns a borrower's loans, newest first.
// GET /api/loans?borrower_id=...&status=...
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	borrowerID := r.URL.Query().Get("borrower_id")
	if borrowerID == "" {
		h.fail(w, r, "borrower_id is required", missingParam("borrower_id"))
		return
	}
	views, err := h.Store.ListLoansByBorrower(r.Context(), ledger.UserID(borrowerID),
		ledger.LoanStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, "Failed to list loans", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanViewDTOs(views))
}

// ListPendingLoans returns the pending loans of a sub-manager's team.
// GET /api/loans/pending?manager_id=...
func (h *Handler) ListPendingLoans(w http.ResponseWriter, r *http.Request) {
	managerID := r.URL.Query().Get("manager_id")
	if managerID == "" {
		h.fail(w, r, "manager_id is required", missingParam("manager_id"))
		return
	}
	views, err := h.Store.PendingLoansForManager(r.Context(), ledger.UserID(managerID))
	if err != nil {
		h.fail(w, r, "Failed to list pending loans", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanViewDTOs(views))
}

// GetInterestRate returns the current default rate. With amount and
// duration_months it also previews the repayment schedule.
// GET /api/loans/interest-rate?amount=1200&duration_months=12
func (h *Handler) GetInterestRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Loans.InterestRate(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get interest rate", err)
		return
	}
	resp := InterestRateResponse{InterestRate: rate, AllowedDurations: h.allowedDurations}

	q := r.URL.Query()
	if q.Get("amount") != "" && q.Get("duration_months") != "" {
		amount, err := decimal.NewFromString(q.Get("amount"))
		if err != nil || !amount.IsPositive() {
			h.fail(w, r, "Invalid amount", fmt.Errorf("%w: amount must be a positive number", ledger.ErrInvalidInput))
			return
		}
		months, err := strconv.Atoi(q.Get("duration_months"))
		if err != nil || months <= 0 {
			h.fail(w, r, "Invalid duration", fmt.Errorf("%w: duration_months must be a positive integer", ledger.ErrInvalidInput))
			return
		}
		schedule := ledger.Amortize(amount, rate, months)
		resp.MonthlyPayment = &schedule.MonthlyPayment
		resp.TotalRepayment = &schedule.TotalRepayment
	}
	writeJSON(w, http.StatusOK, resp)
}

// DecideLoan approves (and disburses) or rejects a pending loan.
// POST /api/loans/{id}/decision
func (h *Handler) DecideLoan(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.Loans.Decide(r.Context(), ledger.LoanID(chi.URLParam(r, "id")),
		ledger.UserID(req.ApproverID), req.Action)
	if err != nil {
		h.fail(w, r, "Failed to decide loan", err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionResponse{Success: result.Success, Action: string(result.Action)})
}

// PayLoan records a repayment against an active loan.
// POST /api/loans/{id}/payments
func (h *Handler) PayLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.Loans.Pay(r.Context(), ledger.LoanID(chi.URLParam(r, "id")),
		req.PaymentAmount, req.CommissionDeducted)
	if err != nil {
		h.fail(w, r, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, PaymentResponse{
		Success:       result.Success,
		LoanCompleted: result.LoanCompleted,
		TotalPaid:     result.TotalPaid,
		Payment:       toPaymentDTO(result.Payment),
	})
}

// ListLoanPayments returns a loan's repayments, oldest first.
// GET /api/loans/{id}/payments
func (h *Handler) ListLoanPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Loans.Payments(r.Context(), ledger.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to list payments", err)
		return
	}
	dtos := make([]LoanPaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLoanStats summarizes a borrower's loans.
// GET /api/borrowers/{id}/loan-stats
func (h *Handler) GetLoanStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.LoanStatsFor(r.Context(), ledger.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get loan statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, LoanStatsDTO{
		TotalLoans:     stats.TotalLoans,
		PendingLoans:   stats.PendingLoans,
		ActiveLoans:    stats.ActiveLoans,
		CompletedLoans: stats.CompletedLoans,
		TotalBorrowed:  stats.TotalBorrowed,
		Outstanding:    stats.Outstanding,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps a ledger error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "INVALID_INPUT", "INVALID_DURATION", "INVALID_ACTION", "UNKNOWN_FUND_TYPE":
		return http.StatusBadRequest
	case "PRODUCT_NOT_FOUND", "NOT_FOUND":
		return http.StatusNotFound
	case "ALREADY_PROCESSED", "NOT_ACTIVE", "INSUFFICIENT_STOCK", "PRODUCT_IN_USE", "CONCURRENT_MODIFICATION":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its ledger code maps to. Server errors are
// logged with the request-scoped logger.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	code := ledger.Code(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(message, zap.Error(err))
		if code == "" {
			code = "INTERNAL"
		}
	}
	writeError(w, status, message, code, err)
}

// decode reads a JSON body into dst and validates it. On failure it writes
// a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.fail(w, r, "Invalid request body", fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.fail(w, r, "Validation failed", validationError(err))
		return false
	}
	return true
}

// validationError flattens validator output into one ErrInvalidInput.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ledger.ErrInvalidInput, strings.Join(msgs, "; "))
}

func missingParam(name string) error {
	return fmt.Errorf("%w: query parameter %s is required", ledger.ErrInvalidInput, name)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ledger.ErrInvalidInput, name)
	}
	return n, nil
}
