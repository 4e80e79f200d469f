package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sales-engine/ledger"
	"golang.org/x/sync/errgroup"
)

func applyLoan(t *testing.T, w *ledger.LoanWorkflow, amount string, months int) *ledger.Loan {
	t.Helper()
	loan, err := w.Apply(context.Background(), ledger.ApplyLoanInput{
		BorrowerID:     "user-sales1",
		Amount:         dec(amount),
		DurationMonths: months,
	})
	require.NoError(t, err)
	return loan
}

// fundBank gives the bank fund a starting balance.
func fundBank(t *testing.T, s testStore, amount string) {
	t.Helper()
	_, err := ledger.NewFundLedger(s).Set(context.Background(), ledger.FundBank, dec(amount))
	require.NoError(t, err)
}

// =============================================================================
// APPLY
// =============================================================================

func TestApply_ComputesScheduleAtDefaultRate(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		// GIVEN: the default 10% rate (seeded in sqlite, fallback in memory)
		w := ledger.NewLoanWorkflow(s)

		// WHEN
		loan := applyLoan(t, w, "1200", 12)

		// THEN
		requireDecimal(t, "10", loan.InterestRate)
		requireDecimal(t, "105.50", loan.MonthlyPayment)
		requireDecimal(t, "1265.99", loan.TotalRepayment)
		assert.Equal(t, ledger.LoanPending, loan.Status)
		assert.Nil(t, loan.DisbursedAt)

		stored, err := w.Get(context.Background(), loan.ID)
		require.NoError(t, err)
		requireDecimal(t, "1265.99", stored.TotalRepayment)
		assert.Equal(t, 12, stored.DurationMonths)
	})
}

func TestApply_UsesStoredRate(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		require.NoError(t, s.SetSetting(context.Background(), ledger.SettingDefaultLoanInterestRate, "12"))
		w := ledger.NewLoanWorkflow(s)

		loan := applyLoan(t, w, "5000", 6)

		requireDecimal(t, "12", loan.InterestRate)
		requireDecimal(t, "862.74", loan.MonthlyPayment)
		requireDecimal(t, "5176.45", loan.TotalRepayment)

		rate, err := w.InterestRate(context.Background())
		require.NoError(t, err)
		requireDecimal(t, "12", rate)
	})
}

func TestApply_MalformedRateFallsBack(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		require.NoError(t, s.SetSetting(context.Background(), ledger.SettingDefaultLoanInterestRate, "ten"))
		w := ledger.NewLoanWorkflow(s, ledger.WithFallbackInterestRate(dec("5")))

		loan := applyLoan(t, w, "10000", 24)

		requireDecimal(t, "5", loan.InterestRate)
		requireDecimal(t, "438.71", loan.MonthlyPayment)
		requireDecimal(t, "10529.13", loan.TotalRepayment)
	})
}

func TestApply_ZeroRate(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		require.NoError(t, s.SetSetting(context.Background(), ledger.SettingDefaultLoanInterestRate, "0"))
		w := ledger.NewLoanWorkflow(s)

		loan := applyLoan(t, w, "1000", 12)

		requireDecimal(t, "83.33", loan.MonthlyPayment)
		requireDecimal(t, "1000", loan.TotalRepayment)
	})
}

func TestApply_RateChangeDoesNotAffectExistingLoans(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)

		require.NoError(t, s.SetSetting(context.Background(), ledger.SettingDefaultLoanInterestRate, "20"))

		stored, err := w.Get(context.Background(), loan.ID)
		require.NoError(t, err)
		requireDecimal(t, "10", stored.InterestRate)
		requireDecimal(t, "105.50", stored.MonthlyPayment)
	})
}

func TestApply_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		input   ledger.ApplyLoanInput
		wantErr error
		code    string
	}{
		{"duration not offered", ledger.ApplyLoanInput{BorrowerID: "u", Amount: dec("1000"), DurationMonths: 7}, ledger.ErrInvalidDuration, "INVALID_DURATION"},
		{"zero duration", ledger.ApplyLoanInput{BorrowerID: "u", Amount: dec("1000"), DurationMonths: 0}, ledger.ErrInvalidInput, "INVALID_INPUT"},
		{"zero amount", ledger.ApplyLoanInput{BorrowerID: "u", Amount: dec("0"), DurationMonths: 12}, ledger.ErrInvalidInput, "INVALID_INPUT"},
		{"negative amount", ledger.ApplyLoanInput{BorrowerID: "u", Amount: dec("-5"), DurationMonths: 12}, ledger.ErrInvalidInput, "INVALID_INPUT"},
		{"missing borrower", ledger.ApplyLoanInput{Amount: dec("1000"), DurationMonths: 12}, ledger.ErrInvalidInput, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ledger.NewLoanWorkflow(newMemoryStore(t))

			_, err := w.Apply(context.Background(), tt.input)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.code, ledger.Code(err))
			assert.True(t, ledger.IsClientError(err))
		})
	}
}

func TestApply_AnyDurationWhenUnrestricted(t *testing.T) {
	w := ledger.NewLoanWorkflow(newMemoryStore(t), ledger.WithAllowedDurations())

	// No stored rate, so the 10% fallback applies.
	loan := applyLoan(t, w, "2500", 18)
	requireDecimal(t, "10", loan.InterestRate)
	requireDecimal(t, "150.14", loan.MonthlyPayment)

	_, err := w.Apply(context.Background(), ledger.ApplyLoanInput{
		BorrowerID: "u", Amount: dec("1000"), DurationMonths: 7,
	})
	require.NoError(t, err)
}

// =============================================================================
// DECIDE
// =============================================================================

func TestLoanDecide_ApproveDisbursesFromBank(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		// GIVEN: bank holds 10000 and a pending loan of 1200
		fundBank(t, s, "10000")
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		w := ledger.NewLoanWorkflow(s, ledger.WithClock(func() time.Time { return now }))
		loan := applyLoan(t, w, "1200", 12)

		// WHEN: approved
		res, err := w.Decide(context.Background(), loan.ID, "user-manager1", "approved")

		// THEN: the loan is active and disbursed, and the bank paid out
		require.NoError(t, err)
		assert.True(t, res.Success)
		stored, err := w.Get(context.Background(), loan.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.LoanActive, stored.Status)
		require.NotNil(t, stored.DisbursedAt)
		assert.True(t, now.Equal(*stored.DisbursedAt))
		require.NotNil(t, stored.ApprovedBy)
		assert.Equal(t, ledger.UserID("user-manager1"), *stored.ApprovedBy)
		requireDecimal(t, "8800", fundOf(t, s, ledger.FundBank))
	})
}

func TestLoanDecide_BankMayGoNegative(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)

		_, err := w.Decide(context.Background(), loan.ID, "user-manager1", "approved")

		require.NoError(t, err)
		requireDecimal(t, "-1200", fundOf(t, s, ledger.FundBank))
	})
}

func TestLoanDecide_RejectMovesNoMoney(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		fundBank(t, s, "10000")
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)

		_, err := w.Decide(context.Background(), loan.ID, "user-manager1", "rejected")

		require.NoError(t, err)
		stored, err := w.Get(context.Background(), loan.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.LoanRejected, stored.Status)
		assert.Nil(t, stored.DisbursedAt)
		requireDecimal(t, "10000", fundOf(t, s, ledger.FundBank))
	})
}

func TestLoanDecide_OnlyPendingLoans(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)
		_, err := w.Decide(context.Background(), loan.ID, "user-manager1", "approved")
		require.NoError(t, err)

		for _, action := range []string{"rejected", "approved"} {
			_, err = w.Decide(context.Background(), loan.ID, "user-manager1", action)

			require.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
			var processed *ledger.AlreadyProcessedError
			require.ErrorAs(t, err, &processed)
			assert.Equal(t, string(ledger.LoanActive), processed.Status)
		}
		requireDecimal(t, "-1200", fundOf(t, s, ledger.FundBank))

		rejected := applyLoan(t, w, "500", 6)
		_, err = w.Decide(context.Background(), rejected.ID, "user-manager1", "rejected")
		require.NoError(t, err)
		_, err = w.Decide(context.Background(), rejected.ID, "user-manager1", "approved")
		require.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
		requireDecimal(t, "-1200", fundOf(t, s, ledger.FundBank))
	})
}

func TestLoanDecide_UnknownLoanAndBadAction(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		w := ledger.NewLoanWorkflow(s)

		_, err := w.Decide(context.Background(), "loan-missing", "user-manager1", "approved")
		require.ErrorIs(t, err, ledger.ErrLoanNotFound)

		loan := applyLoan(t, w, "1200", 12)
		_, err = w.Decide(context.Background(), loan.ID, "user-manager1", "approve")
		require.ErrorIs(t, err, ledger.ErrInvalidAction)
	})
}

func TestLoanDecide_ConcurrentApprovalsDisburseOnce(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		fundBank(t, s, "10000")
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)
		results := newOutcomes()

		var g errgroup.Group
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				_, err := w.Decide(context.Background(), loan.ID, "user-manager1", "approved")
				results.record(err, ledger.ErrAlreadyProcessed)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Empty(t, results.other)
		assert.Equal(t, 1, results.ok)
		assert.Equal(t, 7, results.byKind[ledger.ErrAlreadyProcessed])
		requireDecimal(t, "8800", fundOf(t, s, ledger.FundBank))
	})
}

// =============================================================================
// PAY
// =============================================================================

func TestPay_CompletesWhenTotalReached(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		// GIVEN: an active loan repaying 1265.99
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)
		_, err := w.Decide(context.Background(), loan.ID, "user-manager1", "approved")
		require.NoError(t, err)

		// WHEN: a partial payment
		first, err := w.Pay(context.Background(), loan.ID, dec("600"), dec("12.50"))

		// THEN: still active
		require.NoError(t, err)
		assert.True(t, first.Success)
		assert.False(t, first.LoanCompleted)
		requireDecimal(t, "600", first.TotalPaid)
		requireDecimal(t, "12.50", first.Payment.CommissionDeducted)
		requireDecimal(t, "-600", fundOf(t, s, ledger.FundBank))

		// WHEN: the remainder
		second, err := w.Pay(context.Background(), loan.ID, dec("665.99"), dec("0"))

		// THEN: completed, bank credited with every payment
		require.NoError(t, err)
		assert.True(t, second.LoanCompleted)
		requireDecimal(t, "1265.99", second.TotalPaid)
		requireDecimal(t, "65.99", fundOf(t, s, ledger.FundBank))

		stored, err := w.Get(context.Background(), loan.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.LoanCompleted, stored.Status)
		assert.NotNil(t, stored.CompletedAt)
		assert.NotNil(t, stored.DisbursedAt)

		payments, err := w.Payments(context.Background(), loan.ID)
		require.NoError(t, err)
		require.Len(t, payments, 2)
		requireDecimal(t, "600", payments[0].PaymentAmount)
		requireDecimal(t, "665.99", payments[1].PaymentAmount)

		// AND: a completed loan takes no more payments
		_, err = w.Pay(context.Background(), loan.ID, dec("1"), dec("0"))
		require.ErrorIs(t, err, ledger.ErrNotActive)
	})
}

func TestPay_OverpaymentCompletes(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)
		_, err := w.Decide(context.Background(), loan.ID, "m", "approved")
		require.NoError(t, err)

		res, err := w.Pay(context.Background(), loan.ID, dec("2000"), dec("0"))

		require.NoError(t, err)
		assert.True(t, res.LoanCompleted)
		requireDecimal(t, "800", fundOf(t, s, ledger.FundBank))
	})
}

func TestPay_RequiresActiveLoan(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		w := ledger.NewLoanWorkflow(s)
		pending := applyLoan(t, w, "1200", 12)
		rejected := applyLoan(t, w, "1200", 12)
		_, err := w.Decide(context.Background(), rejected.ID, "m", "rejected")
		require.NoError(t, err)

		for _, id := range []ledger.LoanID{pending.ID, rejected.ID} {
			_, err := w.Pay(context.Background(), id, dec("100"), dec("0"))

			require.ErrorIs(t, err, ledger.ErrNotActive)
			var nae *ledger.NotActiveError
			require.ErrorAs(t, err, &nae)
			assert.Equal(t, id, nae.LoanID)
		}
		requireDecimal(t, "0", fundOf(t, s, ledger.FundBank))
		payments, err := w.Payments(context.Background(), pending.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
	})
}

func TestPay_InvalidAmounts(t *testing.T) {
	w := ledger.NewLoanWorkflow(newMemoryStore(t))

	_, err := w.Pay(context.Background(), "loan-1", dec("0"), dec("0"))
	require.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = w.Pay(context.Background(), "loan-1", dec("10"), dec("-1"))
	require.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = w.Pay(context.Background(), "loan-1", dec("10"), dec("0"))
	require.ErrorIs(t, err, ledger.ErrLoanNotFound)
}

func TestPay_RollsBackWhenBankUpdateFails(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		// GIVEN: an active loan and a bank update that will fail
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)
		_, err := w.Decide(context.Background(), loan.ID, "m", "approved")
		require.NoError(t, err)
		faulty := ledger.NewLoanWorkflow(&faultyStore{TxStore: s, failOn: "CompareAndSetFund"})

		// WHEN: the full amount is paid
		_, err = faulty.Pay(context.Background(), loan.ID, dec("1265.99"), dec("0"))

		// THEN: no payment row, no credit, still active
		require.ErrorIs(t, err, ledger.ErrTransactionFailed)
		payments, err := w.Payments(context.Background(), loan.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
		requireDecimal(t, "-1200", fundOf(t, s, ledger.FundBank))
		stored, err := w.Get(context.Background(), loan.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.LoanActive, stored.Status)
	})
}

func TestPay_ConcurrentPaymentsAllCount(t *testing.T) {
	eachStore(t, func(t *testing.T, s testStore) {
		w := ledger.NewLoanWorkflow(s)
		loan := applyLoan(t, w, "1200", 12)
		_, err := w.Decide(context.Background(), loan.ID, "m", "approved")
		require.NoError(t, err)

		var g errgroup.Group
		for i := 0; i < 10; i++ {
			g.Go(func() error {
				_, err := w.Pay(context.Background(), loan.ID, dec("100"), dec("0"))
				return err
			})
		}
		require.NoError(t, g.Wait())

		payments, err := w.Payments(context.Background(), loan.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 10)
		requireDecimal(t, "-200", fundOf(t, s, ledger.FundBank))
	})
}
