package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/sales-engine/ledger"
)

func TestAmortize(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		rate    string
		months  int
		payment string
		total   string
	}{
		{"one year at ten percent", "1200", "10", 12, "105.50", "1265.99"},
		{"two years at five percent", "10000", "5", 24, "438.71", "10529.13"},
		{"six months at twelve percent", "5000", "12", 6, "862.74", "5176.45"},
		{"fractional rate", "2500", "7.5", 18, "147.28", "2651.06"},
		{"zero rate", "1000", "0", 12, "83.33", "1000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ledger.Amortize(dec(tt.amount), dec(tt.rate), tt.months)

			requireDecimal(t, tt.payment, s.MonthlyPayment)
			requireDecimal(t, tt.total, s.TotalRepayment)
		})
	}
}

func TestAmortize_TotalUsesUnroundedPayment(t *testing.T) {
	s := ledger.Amortize(dec("1200"), dec("10"), 12)

	// 105.50 * 12 would be 1266.00
	assert.False(t, s.MonthlyPayment.Mul(dec("12")).Equal(s.TotalRepayment))
	assert.True(t, s.TotalRepayment.GreaterThanOrEqual(dec("1200")))
}

func TestAmortize_MonthlyRate(t *testing.T) {
	s := ledger.Amortize(dec("1200"), dec("12"), 12)

	requireDecimal(t, "0.01", s.MonthlyRate)
}

func TestCents(t *testing.T) {
	requireDecimal(t, "1.01", ledger.Cents(dec("1.005")))
	requireDecimal(t, "1", ledger.Cents(dec("0.999")))
	requireDecimal(t, "-2.35", ledger.Cents(dec("-2.345")))
}

func TestComputeSaleAmounts(t *testing.T) {
	mouse := ledger.Product{CostPrice: dec("15"), CommissionRate: dec("5")}

	a := ledger.ComputeSaleAmounts(mouse, 3, dec("25.99"))

	requireDecimal(t, "77.97", a.Total)
	requireDecimal(t, "3.8985", a.Commission)
	requireDecimal(t, "32.97", a.Profit)
}
