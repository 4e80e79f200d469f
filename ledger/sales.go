package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// SALE WORKFLOW - pending -> approved | rejected
// =============================================================================

// SaleWorkflow submits sales and applies sub-manager decisions.
type SaleWorkflow struct {
	store TxStore
	opts  options
}

// NewSaleWorkflow creates a SaleWorkflow over store.
func NewSaleWorkflow(store TxStore, opts ...Option) *SaleWorkflow {
	return &SaleWorkflow{store: store, opts: newOptions(opts)}
}

// SubmitSaleInput is what a sales person records.
type SubmitSaleInput struct {
	SalesPersonID UserID
	ProductID     ProductID
	Quantity      int
	UnitPrice     decimal.Decimal
}

func (in SubmitSaleInput) validate() error {
	switch {
	case in.SalesPersonID == "":
		return invalidInput("sales_person_id", "is required")
	case in.ProductID == "":
		return invalidInput("product_id", "is required")
	case in.Quantity <= 0:
		return invalidInput("quantity", "must be positive")
	case in.UnitPrice.IsNegative():
		return invalidInput("unit_price", "must not be negative")
	}
	return nil
}

// DecisionResult is returned by a successful Decide.
type DecisionResult struct {
	Success bool
	Action  Decision
}

// Submit records a pending sale and reserves its stock.
//
// This is TRANSACTIONAL: the stock reservation and the sale row are
// committed together or not at all. If stock is insufficient no sale exists.
func (w *SaleWorkflow) Submit(ctx context.Context, in SubmitSaleInput) (*Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var sale Sale
	err := w.store.WithTx(ctx, func(s Store) error {
		product, err := s.GetProduct(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}
		if product == nil {
			return ErrProductNotFound
		}

		// Cost and commission rate are snapshotted here.
		amounts := ComputeSaleAmounts(*product, in.Quantity, in.UnitPrice)

		if err := Reserve(ctx, s, product.ID, in.Quantity); err != nil {
			return err
		}

		sale = Sale{
			ID:               SaleID(w.opts.newID()),
			SalesPersonID:    in.SalesPersonID,
			ProductID:        product.ID,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			TotalAmount:      amounts.Total,
			CommissionAmount: amounts.Commission,
			ProfitAmount:     amounts.Profit,
			Status:           SalePending,
			CreatedAt:        w.opts.now(),
		}
		if err := s.InsertSale(ctx, sale); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		return nil
	})
	if err != nil {
		w.opts.logger.Debug("sale rejected at submit",
			zap.String("product_id", string(in.ProductID)),
			zap.Int("quantity", in.Quantity),
			zap.Error(err))
		return nil, storeFailure("submit sale", err)
	}

	w.opts.logger.Info("sale submitted",
		zap.String("sale_id", string(sale.ID)),
		zap.String("product_id", string(sale.ProductID)),
		zap.Int("quantity", sale.Quantity),
		zap.String("total_amount", sale.TotalAmount.String()))
	return &sale, nil
}

// Decide approves or rejects a pending sale.
//
// This is TRANSACTIONAL:
//   - the status moves pending -> approved|rejected with a compare-and-swap
//   - rejection returns the reserved stock
//   - approval credits the profit and commission funds
//
// If ANY step fails, ALL changes are rolled back and the sale stays pending.
func (w *SaleWorkflow) Decide(ctx context.Context, id SaleID, approver UserID, action string) (DecisionResult, error) {
	decision, err := ParseDecision(action)
	if err != nil {
		return DecisionResult{}, err
	}
	if approver == "" {
		return DecisionResult{}, invalidInput("approver_id", "is required")
	}

	err = w.store.WithTx(ctx, func(s Store) error {
		sale, err := s.GetSale(ctx, id)
		if err != nil {
			return fmt.Errorf("load sale: %w", err)
		}
		if sale == nil {
			return fmt.Errorf("%w: %s", ErrSaleNotFound, id)
		}

		next := decision.saleStatus()
		if !sale.Status.CanTransitionTo(next) {
			return &AlreadyProcessedError{Record: "sale", ID: string(id), Status: string(sale.Status)}
		}

		ok, err := s.TransitionSale(ctx, SaleTransition{
			ID:         id,
			From:       sale.Status,
			To:         next,
			ApprovedBy: approver,
			ApprovedAt: w.opts.now(),
		})
		if err != nil {
			return fmt.Errorf("update sale status: %w", err)
		}
		if !ok {
			// Lost the race to another decision.
			return &AlreadyProcessedError{Record: "sale", ID: string(id), Status: "decided"}
		}

		switch decision {
		case DecisionRejected:
			return Release(ctx, s, sale.ProductID, sale.Quantity)
		case DecisionApproved:
			if _, err := adjustFund(ctx, s, FundProfit, sale.ProfitAmount, &w.opts); err != nil {
				return err
			}
			if _, err := adjustFund(ctx, s, FundCommission, sale.CommissionAmount, &w.opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			w.opts.logger.Warn("sale decision refused",
				zap.String("sale_id", string(id)),
				zap.String("action", action),
				zap.Error(err))
		}
		return DecisionResult{}, storeFailure("decide sale", err)
	}

	w.opts.logger.Info("sale decided",
		zap.String("sale_id", string(id)),
		zap.String("action", string(decision)),
		zap.String("approver_id", string(approver)))
	return DecisionResult{Success: true, Action: decision}, nil
}

// Get returns a sale, or ErrSaleNotFound.
func (w *SaleWorkflow) Get(ctx context.Context, id SaleID) (*Sale, error) {
	sale, err := w.store.GetSale(ctx, id)
	if err != nil {
		return nil, storeFailure("get sale", err)
	}
	if sale == nil {
		return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
	}
	return sale, nil
}
