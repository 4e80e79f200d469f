package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// LOAN WORKFLOW - pending -> active -> completed, or pending -> rejected
// =============================================================================

// LoanWorkflow handles applications, decisions and repayments.
type LoanWorkflow struct {
	store TxStore
	opts  options
}

// NewLoanWorkflow creates a LoanWorkflow over store.
func NewLoanWorkflow(store TxStore, opts ...Option) *LoanWorkflow {
	return &LoanWorkflow{store: store, opts: newOptions(opts)}
}

// ApplyLoanInput is a borrower's application.
type ApplyLoanInput struct {
	BorrowerID     UserID
	Amount         decimal.Decimal
	DurationMonths int
}

func (w *LoanWorkflow) validate(in ApplyLoanInput) error {
	switch {
	case in.BorrowerID == "":
		return invalidInput("borrower_id", "is required")
	case !in.Amount.IsPositive():
		return invalidInput("amount", "must be positive")
	case in.DurationMonths <= 0:
		return invalidInput("duration_months", "must be positive")
	}
	if w.opts.allowedDurations != nil && !w.opts.allowedDurations[in.DurationMonths] {
		return &ValidationError{
			Field:  "duration_months",
			Reason: fmt.Sprintf("%d is not an offered duration", in.DurationMonths),
			kind:   ErrInvalidDuration,
		}
	}
	return nil
}

// PaymentResult is returned by a successful Pay.
type PaymentResult struct {
	Success       bool
	LoanCompleted bool
	TotalPaid     decimal.Decimal
	Payment       LoanPayment
}

// InterestRate returns the current default loan rate from settings, falling
// back to the configured rate when the setting is missing or malformed.
func (w *LoanWorkflow) InterestRate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := w.interestRate(ctx, w.store)
	if err != nil {
		return decimal.Zero, storeFailure("read interest rate", err)
	}
	return rate, nil
}

func (w *LoanWorkflow) interestRate(ctx context.Context, s Store) (decimal.Decimal, error) {
	raw, ok, err := s.GetSetting(ctx, SettingDefaultLoanInterestRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load setting: %w", err)
	}
	if !ok {
		return w.opts.fallbackRate, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		w.opts.logger.Warn("ignoring malformed interest rate setting", zap.String("value", raw))
		return w.opts.fallbackRate, nil
	}
	return rate, nil
}

// Apply records a pending loan with its amortization fixed at today's rate.
func (w *LoanWorkflow) Apply(ctx context.Context, in ApplyLoanInput) (*Loan, error) {
	if err := w.validate(in); err != nil {
		return nil, err
	}

	var loan Loan
	err := w.store.WithTx(ctx, func(s Store) error {
		rate, err := w.interestRate(ctx, s)
		if err != nil {
			return err
		}
		schedule := Amortize(in.Amount, rate, in.DurationMonths)

		loan = Loan{
			ID:             LoanID(w.opts.newID()),
			BorrowerID:     in.BorrowerID,
			Amount:         in.Amount,
			InterestRate:   rate,
			DurationMonths: in.DurationMonths,
			MonthlyPayment: schedule.MonthlyPayment,
			TotalRepayment: schedule.TotalRepayment,
			Status:         LoanPending,
			CreatedAt:      w.opts.now(),
		}
		if err := s.InsertLoan(ctx, loan); err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, storeFailure("apply loan", err)
	}

	w.opts.logger.Info("loan applied",
		zap.String("loan_id", string(loan.ID)),
		zap.String("amount", loan.Amount.String()),
		zap.Int("duration_months", loan.DurationMonths),
		zap.String("monthly_payment", loan.MonthlyPayment.String()))
	return &loan, nil
}

// Decide approves or rejects a pending loan.
//
// Approval and disbursement are one step: the loan goes straight to active,
// disbursed_at is set and the amount leaves the bank fund. Rejection is
// terminal and moves no money, since nothing was disbursed.
func (w *LoanWorkflow) Decide(ctx context.Context, id LoanID, approver UserID, action string) (DecisionResult, error) {
	decision, err := ParseDecision(action)
	if err != nil {
		return DecisionResult{}, err
	}
	if approver == "" {
		return DecisionResult{}, invalidInput("approver_id", "is required")
	}

	err = w.store.WithTx(ctx, func(s Store) error {
		loan, err := s.GetLoan(ctx, id)
		if err != nil {
			return fmt.Errorf("load loan: %w", err)
		}
		if loan == nil {
			return fmt.Errorf("%w: %s", ErrLoanNotFound, id)
		}

		next := decision.loanStatus()
		if !loan.Status.CanTransitionTo(next) {
			return &AlreadyProcessedError{Record: "loan", ID: string(id), Status: string(loan.Status)}
		}

		now := w.opts.now()
		t := LoanTransition{ID: id, From: loan.Status, To: next, ApprovedBy: approver, ApprovedAt: &now}
		if decision == DecisionApproved {
			t.DisbursedAt = &now
		}

		ok, err := s.TransitionLoan(ctx, t)
		if err != nil {
			return fmt.Errorf("update loan status: %w", err)
		}
		if !ok {
			return &AlreadyProcessedError{Record: "loan", ID: string(id), Status: "decided"}
		}

		if decision == DecisionApproved {
			if _, err := adjustFund(ctx, s, FundBank, loan.Amount.Neg(), &w.opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			w.opts.logger.Warn("loan decision refused",
				zap.String("loan_id", string(id)),
				zap.String("action", action),
				zap.Error(err))
		}
		return DecisionResult{}, storeFailure("decide loan", err)
	}

	w.opts.logger.Info("loan decided",
		zap.String("loan_id", string(id)),
		zap.String("action", string(decision)),
		zap.String("approver_id", string(approver)))
	return DecisionResult{Success: true, Action: decision}, nil
}

// Pay records a repayment against an active loan and credits the bank fund.
// When cumulative payments reach the total repayment the loan completes.
// The payment row, the fund credit and the completion commit together.
func (w *LoanWorkflow) Pay(ctx context.Context, id LoanID, paymentAmount, commissionDeducted decimal.Decimal) (PaymentResult, error) {
	if !paymentAmount.IsPositive() {
		return PaymentResult{}, invalidInput("payment_amount", "must be positive")
	}
	if commissionDeducted.IsNegative() {
		return PaymentResult{}, invalidInput("commission_deducted", "must not be negative")
	}

	var result PaymentResult
	err := w.store.WithTx(ctx, func(s Store) error {
		loan, err := s.GetLoan(ctx, id)
		if err != nil {
			return fmt.Errorf("load loan: %w", err)
		}
		if loan == nil {
			return fmt.Errorf("%w: %s", ErrLoanNotFound, id)
		}
		if loan.Status != LoanActive {
			return &NotActiveError{LoanID: id, Status: loan.Status}
		}

		now := w.opts.now()
		payment := LoanPayment{
			ID:                 PaymentID(w.opts.newID()),
			LoanID:             id,
			PaymentAmount:      paymentAmount,
			CommissionDeducted: commissionDeducted,
			PaymentDate:        now,
		}
		if err := s.InsertLoanPayment(ctx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if _, err := adjustFund(ctx, s, FundBank, paymentAmount, &w.opts); err != nil {
			return err
		}

		payments, err := s.ListLoanPayments(ctx, id)
		if err != nil {
			return fmt.Errorf("load payments: %w", err)
		}
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.PaymentAmount)
		}

		result = PaymentResult{Success: true, TotalPaid: paid, Payment: payment}
		if paid.LessThan(loan.TotalRepayment) {
			return nil
		}

		ok, err := s.TransitionLoan(ctx, LoanTransition{ID: id, From: LoanActive, To: LoanCompleted, CompletedAt: &now})
		if err != nil {
			return fmt.Errorf("complete loan: %w", err)
		}
		if !ok {
			return fmt.Errorf("complete loan %s: %w", id, ErrConcurrentModification)
		}
		result.LoanCompleted = true
		return nil
	})
	if err != nil {
		return PaymentResult{}, storeFailure("pay loan", err)
	}

	w.opts.logger.Info("loan payment recorded",
		zap.String("loan_id", string(id)),
		zap.String("payment_amount", paymentAmount.String()),
		zap.String("total_paid", result.TotalPaid.String()),
		zap.Bool("loan_completed", result.LoanCompleted))
	return result, nil
}

// Get returns a loan, or ErrLoanNotFound.
func (w *LoanWorkflow) Get(ctx context.Context, id LoanID) (*Loan, error) {
	loan, err := w.store.GetLoan(ctx, id)
	if err != nil {
		return nil, storeFailure("get loan", err)
	}
	if loan == nil {
		return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, id)
	}
	return loan, nil
}

// Payments lists the repayments of a loan, oldest first.
func (w *LoanWorkflow) Payments(ctx context.Context, id LoanID) ([]LoanPayment, error) {
	if _, err := w.Get(ctx, id); err != nil {
		return nil, err
	}
	payments, err := w.store.ListLoanPayments(ctx, id)
	if err != nil {
		return nil, storeFailure("list payments", err)
	}
	return payments, nil
}
