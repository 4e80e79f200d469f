package ledger

import "fmt"

// =============================================================================
// DECISION - The action a sub-manager takes on a pending record
// =============================================================================

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision validates a raw action string.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApproved, DecisionRejected:
		return d, nil
	}
	return "", &ValidationError{Field: "action", Reason: fmt.Sprintf("must be approved or rejected, got %q", s), kind: ErrInvalidAction}
}

// =============================================================================
// SALE STATES
// =============================================================================

type SaleStatus string

const (
	SalePending  SaleStatus = "pending"
	SaleApproved SaleStatus = "approved"
	SaleRejected SaleStatus = "rejected"
)

// saleTransitions is the only place sale state changes are allowed.
var saleTransitions = map[SaleStatus][]SaleStatus{
	SalePending: {SaleApproved, SaleRejected},
}

// CanTransitionTo reports whether from -> to is in the sale transition table.
func (s SaleStatus) CanTransitionTo(to SaleStatus) bool {
	for _, next := range saleTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s SaleStatus) Terminal() bool { return len(saleTransitions[s]) == 0 }

func (d Decision) saleStatus() SaleStatus {
	if d == DecisionApproved {
		return SaleApproved
	}
	return SaleRejected
}

// =============================================================================
// LOAN STATES
// =============================================================================

type LoanStatus string

const (
	LoanPending LoanStatus = "pending"
	// LoanApproved is accepted by storage but never a resting state:
	// approval disburses immediately and lands on LoanActive.
	LoanApproved  LoanStatus = "approved"
	LoanRejected  LoanStatus = "rejected"
	LoanActive    LoanStatus = "active"
	LoanCompleted LoanStatus = "completed"
)

var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanPending: {LoanActive, LoanRejected},
	LoanActive:  {LoanCompleted},
}

func (s LoanStatus) CanTransitionTo(to LoanStatus) bool {
	for _, next := range loanTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s LoanStatus) Terminal() bool { return len(loanTransitions[s]) == 0 }

func (d Decision) loanStatus() LoanStatus {
	if d == DecisionApproved {
		return LoanActive
	}
	return LoanRejected
}
