package replicator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bft-labs/syncdispatch/internal/domain"
	"github.com/bft-labs/syncdispatch/pkg/executor"
	"github.com/bft-labs/syncdispatch/pkg/log"
	"github.com/bft-labs/syncdispatch/pkg/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTransport struct {
	mu       sync.Mutex
	calls    int
	failN    int
	shutdown bool
	urls     []string
}

func (f *fakeTransport) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.urls = append(f.urls, req.URL)
	f.mu.Unlock()

	if call <= f.failN {
		return &transport.Response{StatusCode: 503}, &transport.StatusError{StatusCode: 503}
	}
	return &transport.Response{StatusCode: 200, Body: []byte(`{"accepted":["ok"]}`)}, nil
}

func (f *fakeTransport) IsShutdown() bool { return f.shutdown }

func (f *fakeTransport) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return ""
	}
	return f.urls[len(f.urls)-1]
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func newTestReplicator(t *testing.T, tr transport.Transport) (*PushReplicator, executor.ScheduledExecutor, executor.RequestExecutor) {
	t.Helper()
	schedExec := executor.NewScheduledExecutor()
	reqExec := executor.NewRequestExecutor(4)
	t.Cleanup(func() {
		schedExec.Shutdown()
		reqExec.Shutdown()
	})

	cfg := DefaultConfig()
	cfg.BatchCapacity = 2
	cfg.BatchDelay = 20 * time.Millisecond
	cfg.BaseRetryDelay = 5 * time.Millisecond
	cfg.ServiceURL = "http://example.invalid"
	cfg.StatsInterval = 0

	return New(schedExec, reqExec, tr, log.NewNoopLogger(), cfg), schedExec, reqExec
}

func TestPushReplicator_DeliversGroupOnSuccess(t *testing.T) {
	tr := &fakeTransport{}
	pr, _, _ := newTestReplicator(t, tr)

	pr.Enqueue(domain.NewDocument("doc-1", "1-a", []byte(`{}`)))

	waitUntil(t, time.Second, func() bool { return pr.Stats().Succeeded == 1 })

	snap := pr.Stats()
	if snap.Delivered != 1 || snap.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
}

func TestPushReplicator_RetriesTransientThenSucceeds(t *testing.T) {
	tr := &fakeTransport{failN: 2}
	pr, _, _ := newTestReplicator(t, tr)

	pr.Enqueue(domain.NewDocument("doc-1", "1-a", []byte(`{}`)))

	waitUntil(t, 2*time.Second, func() bool { return pr.Stats().Succeeded == 1 })

	tr.mu.Lock()
	calls := tr.calls
	tr.mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", calls)
	}
	if got := pr.Stats().Retried; got != 2 {
		t.Fatalf("expected 2 retries recorded, got %d", got)
	}
}

func TestPushReplicator_ExhaustionRecordsFailure(t *testing.T) {
	tr := &fakeTransport{failN: 1000}
	pr, _, _ := newTestReplicator(t, tr)
	pr.UpdateTunables(Tunables{
		ServiceURL:     pr.cfg.ServiceURL,
		MaxRetries:     1,
		BaseRetryDelay: time.Millisecond,
	})

	pr.Enqueue(domain.NewDocument("doc-1", "1-a", []byte(`{}`)))

	waitUntil(t, 2*time.Second, func() bool { return pr.Stats().Failed == 1 })

	if got := len(pr.RecentFailures()); got != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", got)
	}
	if got := pr.Stats().Retried; got != 1 {
		t.Fatalf("expected 1 retry recorded before exhaustion, got %d", got)
	}
}

func TestPushReplicator_GroupsRespectCapacity(t *testing.T) {
	tr := &fakeTransport{}
	pr, _, _ := newTestReplicator(t, tr)

	docs := make([]domain.Document, 5)
	for i := range docs {
		docs[i] = domain.NewDocument("", "1-a", []byte(`{}`))
	}
	pr.Enqueue(docs...)

	waitUntil(t, 2*time.Second, func() bool { return pr.Stats().Succeeded == 5 })

	tr.mu.Lock()
	calls := tr.calls
	tr.mu.Unlock()
	// capacity 2, 5 docs -> groups of [2,2,1] -> 3 calls
	if calls != 3 {
		t.Fatalf("expected 3 group pushes, got %d", calls)
	}
}

func TestPushReplicator_StartStopLifecycle(t *testing.T) {
	tr := &fakeTransport{}
	pr, _, _ := newTestReplicator(t, tr)

	if err := pr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pr.Start(context.Background()); err == nil {
		t.Fatalf("expected error starting twice")
	}
	if err := pr.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPushReplicator_StatsReporterRuns(t *testing.T) {
	tr := &fakeTransport{}
	schedExec := executor.NewScheduledExecutor()
	reqExec := executor.NewRequestExecutor(4)
	defer schedExec.Shutdown()
	defer reqExec.Shutdown()

	var logged atomic.Bool
	cfg := DefaultConfig()
	cfg.StatsInterval = 50 * time.Millisecond
	cfg.ServiceURL = "http://example.invalid"

	pr := New(schedExec, reqExec, tr, countingLogger{&logged}, cfg)
	if err := pr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pr.Stop()

	// cron rounds sub-second @every intervals up to one second.
	waitUntil(t, 2*time.Second, logged.Load)
}

// countingLogger records whether the stats reporter has logged; other Info
// messages (such as lifecycle state transitions) are ignored.
type countingLogger struct{ logged *atomic.Bool }

func (countingLogger) Debug(string, ...log.Field) {}
func (l countingLogger) Info(msg string, _ ...log.Field) {
	if msg == "replicator stats" {
		l.logged.Store(true)
	}
}
func (countingLogger) Warn(string, ...log.Field)  {}
func (countingLogger) Error(string, ...log.Field) {}

func TestPushReplicator_UpdateTunablesAffectsSubsequentPushes(t *testing.T) {
	tr := &fakeTransport{}
	pr, _, _ := newTestReplicator(t, tr)

	pr.Enqueue(domain.NewDocument("doc-1", "1-a", []byte(`{}`)))
	waitUntil(t, time.Second, func() bool { return pr.Stats().Succeeded == 1 })

	if got := tr.lastURL(); got != "http://example.invalid/v1/documents/_bulk_docs" {
		t.Fatalf("first push URL = %q, want original ServiceURL", got)
	}

	pr.UpdateTunables(Tunables{
		ServiceURL:     "http://updated.invalid",
		MaxRetries:     pr.cfg.MaxRetries,
		BaseRetryDelay: pr.cfg.BaseRetryDelay,
	})

	pr.Enqueue(domain.NewDocument("doc-2", "1-a", []byte(`{}`)))
	waitUntil(t, time.Second, func() bool { return pr.Stats().Succeeded == 2 })

	if got := tr.lastURL(); got != "http://updated.invalid/v1/documents/_bulk_docs" {
		t.Fatalf("second push URL = %q, want updated ServiceURL", got)
	}
}

func TestPushReplicator_UpdateTunablesDoesNotAffectInFlightPush(t *testing.T) {
	tr := &fakeTransport{failN: 1000}
	pr, _, _ := newTestReplicator(t, tr)

	// Generous retry budget so the in-flight request is still retrying
	// when UpdateTunables lands, proving the snapshot it loaded at push()
	// time is the one it keeps using.
	pr.UpdateTunables(Tunables{
		ServiceURL:     pr.cfg.ServiceURL,
		MaxRetries:     5,
		BaseRetryDelay: 5 * time.Millisecond,
	})

	pr.Enqueue(domain.NewDocument("doc-1", "1-a", []byte(`{}`)))

	// Wait for the group push to make its first attempt (it has loaded its
	// Tunables snapshot by then), then swap in a much smaller retry budget;
	// the in-flight request should still run to its original 5-retry budget
	// (6 attempts) rather than the newly installed value of 1.
	waitUntil(t, time.Second, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.calls >= 1
	})
	pr.UpdateTunables(Tunables{
		ServiceURL:     pr.cfg.ServiceURL,
		MaxRetries:     1,
		BaseRetryDelay: 5 * time.Millisecond,
	})

	waitUntil(t, 2*time.Second, func() bool { return pr.Stats().Failed == 1 })

	tr.mu.Lock()
	calls := tr.calls
	tr.mu.Unlock()
	if calls < 6 {
		t.Fatalf("expected the in-flight push to keep its original retry budget (6 attempts), got %d", calls)
	}
}
