package reminder

import (
	"container/heap"
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrUnknownJob = errors.New("no pending job for transaction")

type entry struct {
	job   Job
	index int
}

type jobHeap []*entry

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].job.At.Equal(h[j].job.At) {
		return h[i].job.TransactionID < h[j].job.TransactionID
	}
	return h[i].job.At.Before(h[j].job.At)
}
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *jobHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerQueue is an in-process Deferrer: a min-heap of jobs keyed by fire time,
// drained by Run. Jobs live in memory only and are lost when the process exits.
type TimerQueue struct {
	mu   sync.Mutex
	jobs jobHeap
	byID map[uint]*entry
	wake chan struct{}
	now  func() time.Time
}

var _ Deferrer = (*TimerQueue)(nil)

func NewTimerQueue() *TimerQueue {
	return &TimerQueue{
		byID: make(map[uint]*entry),
		wake: make(chan struct{}, 1),
		now:  time.Now,
	}
}

// Schedule registers a job; a job already pending for the same transaction is
// moved to the new time.
func (q *TimerQueue) Schedule(_ context.Context, job Job) error {
	q.mu.Lock()
	if e, ok := q.byID[job.TransactionID]; ok {
		e.job = job
		heap.Fix(&q.jobs, e.index)
	} else {
		e := &entry{job: job}
		heap.Push(&q.jobs, e)
		q.byID[job.TransactionID] = e
	}
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *TimerQueue) Cancel(_ context.Context, transactionID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[transactionID]
	if !ok {
		return ErrUnknownJob
	}
	heap.Remove(&q.jobs, e.index)
	delete(q.byID, transactionID)
	return nil
}

// Requeue moves a pending job to a new fire time.
func (q *TimerQueue) Requeue(_ context.Context, transactionID uint, at time.Time) error {
	q.mu.Lock()
	e, ok := q.byID[transactionID]
	if !ok {
		q.mu.Unlock()
		return ErrUnknownJob
	}
	e.job.At = at
	heap.Fix(&q.jobs, e.index)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pending returns the queued jobs ordered by fire time.
func (q *TimerQueue) Pending() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.jobs))
	for _, e := range q.jobs {
		out = append(out, e.job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].TransactionID < out[j].TransactionID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Run fires due jobs until ctx is done. Jobs are fired one at a time on the
// calling goroutine.
func (q *TimerQueue) Run(ctx context.Context, fire func(context.Context, Job)) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		for _, job := range q.due() {
			fire(ctx, job)
		}

		wait, ok := q.nextWait()
		if !ok {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-timer.C:
		}
	}
}

func (q *TimerQueue) due() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []Job
	for len(q.jobs) > 0 && !q.jobs[0].job.At.After(now) {
		e := heap.Pop(&q.jobs).(*entry)
		delete(q.byID, e.job.TransactionID)
		out = append(out, e.job)
	}
	return out
}

func (q *TimerQueue) nextWait() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return 0, false
	}
	return max(q.jobs[0].job.At.Sub(q.now()), 0), true
}

func (q *TimerQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
