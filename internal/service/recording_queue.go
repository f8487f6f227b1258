package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder is the subset of DecisionRecorder the queue drives.
type Recorder interface {
	Record(ctx context.Context, in RecordInput) (RecordResult, error)
}

// RecordingQueue records decisions asynchronously so the evaluation
// response does not wait on the record store.
//
// Enqueue applies backpressure: a non-blocking send first, then a blocking
// send bounded by sendTimeout. Records that still don't fit are dropped and
// counted. Failed writes are logged and counted; they are not retried.
type RecordingQueue struct {
	recorder    Recorder
	ch          chan RecordInput
	capacity    int
	workers     int
	sendTimeout time.Duration
	logger      *slog.Logger

	wg        sync.WaitGroup
	stopOnce  sync.Once
	dropCount atomic.Int64
	failCount atomic.Int64
	doneCount atomic.Int64

	warningThreshold int
	lastWarning      atomic.Int64
}

// RecordingQueueOption configures RecordingQueue.
type RecordingQueueOption func(*RecordingQueue)

// WithQueueSize sets the channel buffer size.
func WithQueueSize(size int) RecordingQueueOption {
	return func(q *RecordingQueue) {
		if size > 0 {
			q.capacity = size
		}
	}
}

// WithQueueSendTimeout sets how long Enqueue may block on a full queue.
// 0 drops immediately.
func WithQueueSendTimeout(d time.Duration) RecordingQueueOption {
	return func(q *RecordingQueue) {
		q.sendTimeout = d
	}
}

// WithQueueWorkers sets the number of background writers.
func WithQueueWorkers(n int) RecordingQueueOption {
	return func(q *RecordingQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// NewRecordingQueue creates a queue feeding recorder.
func NewRecordingQueue(recorder Recorder, logger *slog.Logger, opts ...RecordingQueueOption) *RecordingQueue {
	q := &RecordingQueue{
		recorder:         recorder,
		capacity:         1000,
		workers:          1,
		sendTimeout:      100 * time.Millisecond,
		logger:           logger,
		warningThreshold: 80,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ch = make(chan RecordInput, q.capacity)
	return q
}

// Start launches the workers. Records already queued are drained by Stop.
func (q *RecordingQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Enqueue submits in for recording. It reports false if the record was dropped.
func (q *RecordingQueue) Enqueue(in RecordInput) bool {
	if depth := len(q.ch); depth >= q.capacity*q.warningThreshold/100 {
		q.warnDepth(depth)
	}

	select {
	case q.ch <- in:
		return true
	default:
	}

	if q.sendTimeout <= 0 {
		q.drop(in)
		return false
	}

	timer := time.NewTimer(q.sendTimeout)
	defer timer.Stop()
	select {
	case q.ch <- in:
		return true
	case <-timer.C:
		q.drop(in)
		return false
	}
}

// Stop closes the queue and waits for the workers to drain it.
// Enqueue must not be called after Stop.
func (q *RecordingQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.ch)
	})
	q.wg.Wait()
}

// Dropped returns the number of records dropped on a full queue.
func (q *RecordingQueue) Dropped() int64 { return q.dropCount.Load() }

// Failed returns the number of records the recorder rejected.
func (q *RecordingQueue) Failed() int64 { return q.failCount.Load() }

// Recorded returns the number of records written.
func (q *RecordingQueue) Recorded() int64 { return q.doneCount.Load() }

// Depth returns the number of queued records.
func (q *RecordingQueue) Depth() int { return len(q.ch) }

// Capacity returns the queue buffer size.
func (q *RecordingQueue) Capacity() int { return q.capacity }

func (q *RecordingQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for in := range q.ch {
		// Records are written even after ctx is cancelled so Stop drains the queue.
		recCtx := context.WithoutCancel(ctx)
		if _, err := q.recorder.Record(recCtx, in); err != nil {
			fails := q.failCount.Add(1)
			q.logger.Warn("async decision record failed",
				"org_id", in.OrgID,
				"policy_id", in.PolicyID,
				"error", err,
				"total_failures", fails,
			)
			continue
		}
		q.doneCount.Add(1)
	}
}

func (q *RecordingQueue) drop(in RecordInput) {
	drops := q.dropCount.Add(1)
	q.logger.Warn("decision record dropped",
		"org_id", in.OrgID,
		"policy_id", in.PolicyID,
		"total_drops", drops,
	)
}

// warnDepth logs at most once per second.
func (q *RecordingQueue) warnDepth(depth int) {
	now := time.Now().UnixNano()
	last := q.lastWarning.Load()
	if now-last < int64(time.Second) {
		return
	}
	if q.lastWarning.CompareAndSwap(last, now) {
		q.logger.Warn("recording queue approaching capacity",
			"depth", depth,
			"capacity", q.capacity,
		)
	}
}
