package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// FUND LEDGER - Four running balances, mutated through compare-and-update
// =============================================================================

// adjustFund applies amount += delta to one fund inside the transaction behind s.
// The write is conditional on the amount still being what was read.
func adjustFund(ctx context.Context, s Store, fundType FundType, delta decimal.Decimal, o *options) (Fund, error) {
	if !fundType.Valid() {
		return Fund{}, fmt.Errorf("%w: %q", ErrUnknownFundType, fundType)
	}

	current, err := s.GetFund(ctx, fundType)
	if err != nil {
		return Fund{}, fmt.Errorf("load fund %s: %w", fundType, err)
	}
	if current == nil {
		// Funds are seeded once; a missing row is never recreated here.
		return Fund{}, fmt.Errorf("%w: %q has no row", ErrUnknownFundType, fundType)
	}

	next := current.Amount.Add(delta)
	at := o.now()
	ok, err := s.CompareAndSetFund(ctx, fundType, current.Amount, next, at)
	if err != nil {
		return Fund{}, fmt.Errorf("update fund %s: %w", fundType, err)
	}
	if !ok {
		return Fund{}, fmt.Errorf("fund %s: %w", fundType, ErrConcurrentModification)
	}
	return Fund{Type: fundType, Amount: next, UpdatedAt: at}, nil
}

// FundLedger exposes the administrative fund operations. Workflow-driven
// adjustments never go through it; they happen inside the sale or loan
// transaction.
type FundLedger struct {
	store TxStore
	opts  options
}

// NewFundLedger creates a FundLedger over store.
func NewFundLedger(store TxStore, opts ...Option) *FundLedger {
	return &FundLedger{store: store, opts: newOptions(opts)}
}

// Adjust applies amount += delta to a fund in its own transaction.
func (f *FundLedger) Adjust(ctx context.Context, fundType FundType, delta decimal.Decimal) (Fund, error) {
	var fund Fund
	err := f.store.WithTx(ctx, func(s Store) error {
		var err error
		fund, err = adjustFund(ctx, s, fundType, delta, &f.opts)
		return err
	})
	if err != nil {
		return Fund{}, storeFailure("adjust fund", err)
	}

	f.opts.logger.Info("fund adjusted",
		zap.String("fund_type", string(fundType)),
		zap.String("delta", delta.String()),
		zap.String("amount", fund.Amount.String()))
	return fund, nil
}

// Set overrides a fund's amount. It is an administrative correction and is
// logged at warn level.
func (f *FundLedger) Set(ctx context.Context, fundType FundType, amount decimal.Decimal) (Fund, error) {
	var fund Fund
	err := f.store.WithTx(ctx, func(s Store) error {
		if !fundType.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownFundType, fundType)
		}
		current, err := s.GetFund(ctx, fundType)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %q has no row", ErrUnknownFundType, fundType)
		}
		fund, err = adjustFund(ctx, s, fundType, amount.Sub(current.Amount), &f.opts)
		return err
	})
	if err != nil {
		return Fund{}, storeFailure("set fund", err)
	}

	f.opts.logger.Warn("fund overridden",
		zap.String("fund_type", string(fundType)),
		zap.String("amount", fund.Amount.String()))
	return fund, nil
}

// List returns every fund.
func (f *FundLedger) List(ctx context.Context) ([]Fund, error) {
	funds, err := f.store.ListFunds(ctx)
	if err != nil {
		return nil, storeFailure("list funds", err)
	}
	return funds, nil
}

// Get returns one fund.
func (f *FundLedger) Get(ctx context.Context, fundType FundType) (Fund, error) {
	if !fundType.Valid() {
		return Fund{}, fmt.Errorf("%w: %q", ErrUnknownFundType, fundType)
	}
	fund, err := f.store.GetFund(ctx, fundType)
	if err != nil {
		return Fund{}, storeFailure("get fund", err)
	}
	if fund == nil {
		return Fund{}, fmt.Errorf("%w: %q has no row", ErrUnknownFundType, fundType)
	}
	return *fund, nil
}
