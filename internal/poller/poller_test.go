package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lamim/questionforge/internal/api"
	"github.com/lamim/questionforge/internal/testutil"
	"github.com/lamim/questionforge/pkg/models"
)

// scriptedFetcher returns the scripted responses in order, repeating the last one
type scriptedFetcher struct {
	mu        sync.Mutex
	responses []fetchResponse
	calls     []string
}

type fetchResponse struct {
	status models.Status
	err    error
}

func (f *scriptedFetcher) GetJobStatus(ctx context.Context, jobID string) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.calls)
	f.calls = append(f.calls, jobID)
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	if r.err != nil {
		return models.Snapshot{}, r.err
	}
	return models.Snapshot{Status: models.Set(r.status)}, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *scriptedFetcher) callsFor(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.calls {
		if id == jobID {
			n++
		}
	}
	return n
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *countingMetrics) RecordPoll(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *countingMetrics) count(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[outcome]
}

func stopOnTerminal(res Result) bool {
	return res.Err == nil && res.Snapshot.Status.Value.IsTerminalForPolling()
}

func newTestPoller(f Fetcher, interval time.Duration) *Poller {
	return New(f, Options{
		Interval:               interval,
		MaxConsecutiveFailures: 3,
		MaxBackoff:             4 * interval,
	}, testutil.QuietLogger())
}

func TestStartFetchesImmediately(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{status: models.StatusQueued}}}
	p := newTestPoller(f, time.Hour)
	defer p.Stop()

	p.Start(context.Background(), "abc123", stopOnTerminal)

	testutil.MustWaitFor(t, func() bool { return f.callCount() == 1 }, "immediate fetch",
		testutil.WithTimeout(time.Second))
	if !p.Running() {
		t.Error("Poller should keep running while the job is in progress")
	}
}

func TestStopsOnTerminalStatus(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{
		{status: models.StatusQueued},
		{status: models.StatusGeneratingInitialQuestion},
		{status: models.StatusAwaitingFeedback},
	}}
	p := newTestPoller(f, 5*time.Millisecond)

	var seen []models.Status
	var mu sync.Mutex
	p.Start(context.Background(), "abc123", func(res Result) bool {
		mu.Lock()
		seen = append(seen, res.Snapshot.Status.Value)
		mu.Unlock()
		return stopOnTerminal(res)
	})
	p.Wait()

	if p.Running() {
		t.Error("Poller should stop after a terminal status")
	}
	mu.Lock()
	defer mu.Unlock()
	want := []models.Status{models.StatusQueued, models.StatusGeneratingInitialQuestion, models.StatusAwaitingFeedback}
	if len(seen) != len(want) {
		t.Fatalf("Expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("result %d: expected %s, got %s", i, want[i], seen[i])
		}
	}

	time.Sleep(20 * time.Millisecond)
	if f.callCount() != 3 {
		t.Errorf("Expected no fetches after stop, got %d total", f.callCount())
	}
}

func TestNotFoundIsFatal(t *testing.T) {
	notFound := &api.APIError{StatusCode: http.StatusNotFound, Message: "not found"}
	f := &scriptedFetcher{responses: []fetchResponse{{status: models.StatusQueued}, {err: notFound}}}
	p := newTestPoller(f, 5*time.Millisecond)
	metrics := &countingMetrics{}
	p.SetMetrics(metrics)

	var got atomic.Value
	p.Start(context.Background(), "gone", func(res Result) bool {
		if res.Err != nil {
			got.Store(res)
		}
		return stopOnTerminal(res)
	})
	p.Wait()

	res, ok := got.Load().(Result)
	if !ok || !res.NotFound {
		t.Fatalf("Expected a not-found result, got %+v", res)
	}
	if p.Running() {
		t.Error("Poller must stop permanently on not found")
	}
	time.Sleep(20 * time.Millisecond)
	if f.callCount() != 2 {
		t.Errorf("Expected 2 fetches, got %d", f.callCount())
	}
	if metrics.count(OutcomeNotFound) != 1 {
		t.Errorf("Expected one not_found outcome, got %d", metrics.count(OutcomeNotFound))
	}
}

func TestTransientFailuresThenRecovery(t *testing.T) {
	transient := &api.APIError{StatusCode: http.StatusBadGateway, Retryable: true}
	f := &scriptedFetcher{responses: []fetchResponse{
		{err: transient},
		{err: transient},
		{status: models.StatusCompleted},
	}}
	p := newTestPoller(f, 2*time.Millisecond)
	metrics := &countingMetrics{}
	p.SetMetrics(metrics)

	var failures atomic.Int32
	p.Start(context.Background(), "abc123", func(res Result) bool {
		if res.Err != nil {
			if res.GaveUp || res.NotFound {
				t.Errorf("Transient failure reported as fatal: %+v", res)
			}
			failures.Add(1)
		}
		return stopOnTerminal(res)
	})
	p.Wait()

	if failures.Load() != 2 {
		t.Errorf("Expected 2 transient results, got %d", failures.Load())
	}
	if metrics.count(OutcomeTransient) != 2 || metrics.count(OutcomeOK) != 1 {
		t.Errorf("Unexpected outcomes %+v", metrics.outcomes)
	}
}

func TestGivesUpAfterConsecutiveFailures(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{err: errors.New("connection refused")}}}
	p := newTestPoller(f, time.Millisecond)

	var gaveUp atomic.Bool
	p.Start(context.Background(), "abc123", func(res Result) bool {
		if res.GaveUp {
			gaveUp.Store(true)
		}
		return false
	})
	p.Wait()

	if !gaveUp.Load() {
		t.Error("Expected poller to give up")
	}
	if f.callCount() != 3 {
		t.Errorf("Expected 3 attempts, got %d", f.callCount())
	}
}

func TestStartReplacesActiveRun(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{status: models.StatusProcessingSetup}}}
	p := newTestPoller(f, 2*time.Millisecond)
	defer p.Stop()

	var firstCalls atomic.Int32
	firstRun := p.Start(context.Background(), "job-a", func(res Result) bool {
		firstCalls.Add(1)
		return false
	})
	testutil.MustWaitFor(t, func() bool { return f.callsFor("job-a") >= 2 }, "first job polling")

	secondRun := p.Start(context.Background(), "job-b", func(res Result) bool {
		if res.JobID != "job-b" {
			t.Errorf("Second handler received result for %s", res.JobID)
		}
		return false
	})
	if secondRun == firstRun {
		t.Error("Each Start must produce a new run id")
	}
	handledBefore := firstCalls.Load()

	before := f.callsFor("job-a")
	testutil.MustWaitFor(t, func() bool { return f.callsFor("job-b") >= 3 }, "second job polling")
	if after := f.callsFor("job-a"); after > before+1 {
		t.Errorf("First job kept polling after restart: %d -> %d", before, after)
	}
	// A result already past the run check when Start was called may still land once
	if handled := firstCalls.Load(); handled > handledBefore+1 {
		t.Errorf("First handler kept receiving results after restart: %d -> %d", handledBefore, handled)
	}
}

// blockingFetcher holds every request until released, ignoring cancellation
type blockingFetcher struct {
	release chan struct{}
	started chan struct{}
}

func (f *blockingFetcher) GetJobStatus(ctx context.Context, jobID string) (models.Snapshot, error) {
	f.started <- struct{}{}
	<-f.release
	return models.Snapshot{Status: models.Set(models.StatusAwaitingFeedback)}, nil
}

func TestStopDiscardsInFlightFetch(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), started: make(chan struct{}, 1)}
	p := newTestPoller(f, time.Hour)
	metrics := &countingMetrics{}
	p.SetMetrics(metrics)

	var delivered atomic.Bool
	p.Start(context.Background(), "abc123", func(res Result) bool {
		delivered.Store(true)
		return true
	})

	<-f.started
	p.Stop()
	close(f.release)
	p.Wait()

	if delivered.Load() {
		t.Error("A response that resolved after Stop must not be delivered")
	}
	if metrics.count(OutcomeStale) != 1 {
		t.Errorf("Expected one stale outcome, got %d", metrics.count(OutcomeStale))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{status: models.StatusQueued}}}
	p := newTestPoller(f, time.Millisecond)

	p.Stop()
	p.Start(context.Background(), "abc123", stopOnTerminal)
	p.Stop()
	p.Stop()
	p.Wait()

	if p.Running() {
		t.Error("Poller should not be running after Stop")
	}
}
