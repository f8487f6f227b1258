package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// stubRecorder records inputs and optionally blocks or fails.
type stubRecorder struct {
	mu      sync.Mutex
	inputs  []RecordInput
	release chan struct{}
	err     error
}

func (r *stubRecorder) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return RecordResult{}, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, in)
	return RecordResult{SessionID: "s", PolicyHitID: in.PolicyID}, nil
}

func (r *stubRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

func TestRecordingQueue_StopDrains(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &stubRecorder{}
	q := NewRecordingQueue(rec, discardLogger(), WithQueueSize(100), WithQueueWorkers(3))
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	for i := 0; i < 50; i++ {
		if !q.Enqueue(recordInput("", "p")) {
			t.Fatalf("Enqueue(%d) dropped", i)
		}
	}
	cancel()
	q.Stop()

	if rec.len() != 50 || q.Recorded() != 50 {
		t.Errorf("recorded = %d (counter %d), want 50", rec.len(), q.Recorded())
	}
	if q.Depth() != 0 {
		t.Errorf("Depth() = %d after Stop, want 0", q.Depth())
	}
}

func TestRecordingQueue_DropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &stubRecorder{release: make(chan struct{})}
	q := NewRecordingQueue(rec, discardLogger(), WithQueueSize(1), WithQueueSendTimeout(0))
	q.Start(context.Background())

	// The worker takes the first record and blocks; the second fills the buffer.
	q.Enqueue(recordInput("", "p-1"))
	deadline := time.Now().Add(time.Second)
	for q.Depth() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !q.Enqueue(recordInput("", "p-2")) {
		t.Fatal("Enqueue(p-2) dropped, want buffered")
	}
	if q.Enqueue(recordInput("", "p-3")) {
		t.Error("Enqueue(p-3) accepted, want dropped")
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}

	close(rec.release)
	q.Stop()
	if q.Recorded() != 2 {
		t.Errorf("Recorded() = %d, want 2", q.Recorded())
	}
}

func TestRecordingQueue_CountsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &stubRecorder{err: errors.New("boom")}
	q := NewRecordingQueue(rec, discardLogger())
	q.Start(context.Background())
	q.Enqueue(recordInput("", "p-1"))
	q.Enqueue(recordInput("", "p-2"))
	q.Stop()
	q.Stop()

	if q.Failed() != 2 || q.Recorded() != 0 {
		t.Errorf("Failed() = %d, Recorded() = %d; want 2, 0", q.Failed(), q.Recorded())
	}
}

func TestRecordingQueue_Defaults(t *testing.T) {
	q := NewRecordingQueue(&stubRecorder{}, discardLogger(), WithQueueSize(-1), WithQueueWorkers(0))
	if q.Capacity() != 1000 {
		t.Errorf("Capacity() = %d, want 1000", q.Capacity())
	}
}
