package core

import "sync"

// RetryBudget bounds the number of validation-triggered re-aggregation
// cycles of one run.
type RetryBudget struct {
	max  int
	used int
	mu   sync.Mutex
}

// NewRetryBudget creates a budget allowing max retries. A negative max is
// treated as zero.
func NewRetryBudget(max int) *RetryBudget {
	if max < 0 {
		max = 0
	}
	return &RetryBudget{max: max}
}

// Consume spends one retry, returning RetryBudgetExhausted once none remain.
func (rb *RetryBudget) Consume() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.used >= rb.max {
		return NewRetryBudgetExhausted(rb.max)
	}
	rb.used++

	return nil
}

// Restore sets the number of retries already spent, used when a run resumes
// from a checkpoint.
func (rb *RetryBudget) Restore(used int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.used = min(max(used, 0), rb.max)
}

// Used returns the number of retries spent.
func (rb *RetryBudget) Used() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return rb.used
}

// Remaining returns how many retries are left.
func (rb *RetryBudget) Remaining() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return rb.max - rb.used
}
