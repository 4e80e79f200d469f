package ledger

import "github.com/shopspring/decimal"

// Schedule is the fixed repayment plan of an amortized loan.
type Schedule struct {
	MonthlyRate    decimal.Decimal
	MonthlyPayment decimal.Decimal
	TotalRepayment decimal.Decimal
}

// Amortize computes the equal monthly payment that repays amount plus interest
// over months payments at annualRate percent:
//
//	r       = annualRate / 100 / 12
//	payment = amount * r * (1+r)^n / ((1+r)^n - 1)
//	total   = payment * n
//
// total is derived from the unrounded payment; both are then rounded to cents.
// A zero rate degenerates to amount / n.
func Amortize(amount, annualRate decimal.Decimal, months int) Schedule {
	n := decimal.NewFromInt(int64(months))
	r := annualRate.Div(hundred).Div(twelve)

	var payment decimal.Decimal
	if r.IsZero() {
		payment = amount.Div(n)
	} else {
		growth := decimal.NewFromInt(1).Add(r).Pow(n)
		payment = amount.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	}

	return Schedule{
		MonthlyRate:    r,
		MonthlyPayment: Cents(payment),
		TotalRepayment: Cents(payment.Mul(n)),
	}
}
