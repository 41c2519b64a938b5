package queue

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of submissions waiting for a worker.
// Non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithRejectHook registers fn to be called with the submission and a reason
// ("closed", "context_cancelled" or "queue_full") whenever Enqueue refuses one.
func WithRejectHook(fn func(s Submission, reason string)) Option {
	return func(q *InMemoryQueue) {
		q.onReject = fn
	}
}
