package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueDispatchesByType(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 2})
	done := make(chan string, 2)
	q.Register("csv", func(_ context.Context, j Job) error { done <- "csv:" + j.ID; return nil })
	q.Register("pdf", func(_ context.Context, j Job) error { done <- "pdf:" + j.ID; return nil })

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "csv"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Type: "pdf"}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-done:
			got[v] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Equal(t, map[string]bool{"csv:1": true, "pdf:2": true}, got)
}

func TestQueueRejectsUnknownTypeAndUnstarted(t *testing.T) {
	q := NewQueue("test", QueueConfig{})
	q.Register("known", func(context.Context, Job) error { return nil })

	err := q.Enqueue(Job{Type: "known"})
	assert.ErrorIs(t, err, ErrNotRunning)

	q.Start(context.Background())
	defer q.Stop()
	err = q.Enqueue(Job{Type: "other"})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var attempts int32
	failed := make(chan Job, 1)
	q := NewQueue("test", QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnFailure:  func(_ context.Context, j Job, _ error) { failed <- j },
	})
	q.Register("flaky", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "flaky"}))

	select {
	case j := <-failed:
		assert.Equal(t, "job-1", j.ID)
		assert.Equal(t, 3, j.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("failure handler not invoked")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueStopDropsPendingRetries(t *testing.T) {
	q := NewQueue("test", QueueConfig{RetryDelay: time.Hour})
	called := make(chan struct{}, 1)
	q.Register("slow", func(context.Context, Job) error {
		called <- struct{}{}
		return errors.New("retry later")
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "slow"}))
	<-called

	stopped := make(chan struct{})
	go func() { q.Stop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop blocked on pending retry")
	}
}

func TestQueueRecoversPanickingHandler(t *testing.T) {
	failed := make(chan error, 1)
	q := NewQueue("test", QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnFailure:  func(_ context.Context, _ Job, err error) { failed <- err },
	})
	ok := make(chan struct{}, 1)
	q.Register("explode", func(context.Context, Job) error { panic("nil map") })
	q.Register("fine", func(context.Context, Job) error { ok <- struct{}{}; return nil })
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "bad", Type: "explode"}))
	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "panicked: nil map")
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not reported as a failure")
	}

	require.NoError(t, q.Enqueue(Job{ID: "good", Type: "fine"}))
	select {
	case <-ok:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	require.Eventually(t, func() bool { return q.Stats().Succeeded == 1 }, time.Second, time.Millisecond)
	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Retried)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestQueueBackoff(t *testing.T) {
	q := NewQueue("test", QueueConfig{RetryDelay: 100 * time.Millisecond, MaxRetryDelay: time.Second})
	cases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: time.Second,
		9: time.Second,
	}
	for attempt, want := range cases {
		assert.Equal(t, want, q.backoff(attempt), "attempt %d", attempt)
	}
}
