package notify

import (
	"sync"
	"time"
)

// retryQueue re-dispatches failed jobs after a delay. Pending timers are
// stopped on shutdown so no job lands after the workers are gone.
type retryQueue struct {
	out  chan<- pushJob
	done <-chan struct{}

	mu      sync.Mutex
	stopped bool
	pending map[*time.Timer]struct{}
}

func newRetryQueue(out chan<- pushJob, done <-chan struct{}) *retryQueue {
	return &retryQueue{out: out, done: done, pending: map[*time.Timer]struct{}{}}
}

func (q *retryQueue) Enqueue(job pushJob, delay time.Duration) bool {
	if delay < 0 {
		delay = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.pending, timer)
		metricNotifyRetryPending.Set(int64(len(q.pending)))
		q.mu.Unlock()
		select {
		case <-q.done:
		case q.out <- job:
			metricNotifyQueueLen.Set(int64(len(q.out)))
		}
	})
	q.pending[timer] = struct{}{}
	metricNotifyRetryPending.Set(int64(len(q.pending)))
	return true
}

// Stop cancels pending retries and reports how many were dropped.
func (q *retryQueue) Stop() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	dropped := 0
	for timer := range q.pending {
		if timer.Stop() {
			dropped++
		}
	}
	q.pending = map[*time.Timer]struct{}{}
	metricNotifyRetryPending.Set(0)
	return dropped
}

func (q *retryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
