package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultInterestRate is used when the settings store has no usable rate.
var DefaultInterestRate = decimal.NewFromInt(10)

// DefaultLoanDurations are the durations offered to borrowers, in months.
var DefaultLoanDurations = []int{6, 12, 18, 24}

type options struct {
	logger           *zap.Logger
	now              func() time.Time
	newID            func() string
	fallbackRate     decimal.Decimal
	allowedDurations map[int]bool
}

// Option configures a workflow.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:       zap.NewNop(),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return uuid.NewString() },
		fallbackRate: DefaultInterestRate,
	}
	WithAllowedDurations(DefaultLoanDurations...)(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides UUID generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

// WithFallbackInterestRate sets the rate used when no setting is stored.
func WithFallbackInterestRate(rate decimal.Decimal) Option {
	return func(o *options) { o.fallbackRate = rate }
}

// WithAllowedDurations restricts loan durations. No arguments allows any positive duration.
func WithAllowedDurations(months ...int) Option {
	return func(o *options) {
		o.allowedDurations = nil
		if len(months) == 0 {
			return
		}
		o.allowedDurations = make(map[int]bool, len(months))
		for _, m := range months {
			o.allowedDurations[m] = true
		}
	}
}
