// Package replicator wires the dispatch core (pkg/batch, pkg/retrier)
// together with a transport.Transport into the minimal push-replication
// loop the original Batcher/RemoteRequestRetry classes exist to serve:
// accumulate documents, push them in groups, retry transient failures.
//
// Document modeling, revision trees, conflict resolution, and change-feed
// parsing are explicitly out of scope; PushReplicator only moves opaque
// domain.Document values from Enqueue to the remote endpoint.
package replicator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bft-labs/syncdispatch/internal/diagnostics"
	"github.com/bft-labs/syncdispatch/internal/domain"
	"github.com/bft-labs/syncdispatch/pkg/batch"
	"github.com/bft-labs/syncdispatch/pkg/executor"
	"github.com/bft-labs/syncdispatch/pkg/lifecycle"
	"github.com/bft-labs/syncdispatch/pkg/log"
	"github.com/bft-labs/syncdispatch/pkg/retrier"
	"github.com/bft-labs/syncdispatch/pkg/transport"
)

// Tunables holds the subset of Config that can be safely swapped while the
// replicator is running: values read fresh on every group push rather than
// baked into the Batcher or executors at construction time.
type Tunables struct {
	ServiceURL         string
	MaxRetries         int
	BaseRetryDelay     time.Duration
	Compressed         bool
	Suppress404Logging bool
}

// Config configures a PushReplicator.
type Config struct {
	// BatchCapacity and BatchDelay size and time-bound the Batcher that
	// groups documents before each push.
	BatchCapacity int
	BatchDelay    time.Duration

	// ServiceURL is the base URL documents are pushed to; the bulk push
	// endpoint is ServiceURL + "/v1/documents/_bulk_docs".
	ServiceURL string

	// MaxRetries and BaseRetryDelay configure the RetryingRequest built for
	// each group.
	MaxRetries     int
	BaseRetryDelay time.Duration

	// StatsInterval, when positive, logs Stats.Snapshot on a cron schedule.
	// Zero disables periodic stats logging.
	StatsInterval time.Duration

	// FailureHistorySize bounds the diagnostics ring of recent failures.
	FailureHistorySize int

	// Compressed requests gzip-compressed push bodies.
	Compressed bool

	Suppress404Logging bool
}

// DefaultConfig returns a Config matching the scenarios in the dispatch
// core's design notes (capacity 100, 1s delay, 3 retries at a 4s base).
func DefaultConfig() Config {
	return Config{
		BatchCapacity:      100,
		BatchDelay:         time.Second,
		MaxRetries:         3,
		BaseRetryDelay:     4 * time.Second,
		StatsInterval:      time.Minute,
		FailureHistorySize: 200,
	}
}

const bulkDocsEndpoint = "/v1/documents/_bulk_docs"

// PushReplicator accumulates documents with a Batcher and pushes each group
// through a RetryingRequest, retrying transient failures with exponential
// backoff.
//
// Grounded on walship's internal/app.Agent loop: read/batch/send/persist
// generalized here to enqueue/batch/push, with position-persistence (a
// Non-goal) dropped.
type PushReplicator struct {
	cfg             Config
	scheduledExec   executor.ScheduledExecutor
	requestExec     executor.RequestExecutor
	transport       transport.Transport
	logger          log.Logger
	lifecycleMgr    *lifecycle.DefaultManager
	failures        *diagnostics.RecentFailures
	stats           Stats
	cronSched       *cron.Cron
	batcher         *batch.Batcher[domain.Document]

	tunables atomic.Pointer[Tunables]

	mu          sync.Mutex
	outstanding map[*retrier.RetryingRequest[domain.PushResult]]struct{}
	cancel      context.CancelFunc
}

// New creates a PushReplicator. The Batcher is created immediately, so
// Enqueue can be called before Start, and outbound pushes and retries begin
// as soon as the Batcher delivers a group, whether or not Start has been
// called. Start only runs the periodic stats reporter.
func New(
	scheduledExec executor.ScheduledExecutor,
	requestExec executor.RequestExecutor,
	tr transport.Transport,
	logger log.Logger,
	cfg Config,
) *PushReplicator {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	pr := &PushReplicator{
		cfg:           cfg,
		scheduledExec: scheduledExec,
		requestExec:   requestExec,
		transport:     tr,
		logger:        logger,
		lifecycleMgr:  lifecycle.NewManager(logger, nil),
		failures:      diagnostics.NewRecentFailures(cfg.FailureHistorySize),
		outstanding:   make(map[*retrier.RetryingRequest[domain.PushResult]]struct{}),
	}
	pr.batcher = batch.NewBatcher[domain.Document](
		scheduledExec,
		cfg.BatchCapacity,
		cfg.BatchDelay,
		batch.ProcessorFunc[domain.Document](pr.push),
		batch.WithLogger[domain.Document](logger),
	)
	pr.tunables.Store(&Tunables{
		ServiceURL:         cfg.ServiceURL,
		MaxRetries:         cfg.MaxRetries,
		BaseRetryDelay:     cfg.BaseRetryDelay,
		Compressed:         cfg.Compressed,
		Suppress404Logging: cfg.Suppress404Logging,
	})
	return pr
}

// UpdateTunables swaps the replicator's hot-reloadable settings. In-flight
// group pushes keep using the Tunables they already loaded; only pushes
// started afterward observe the update. BatchCapacity, BatchDelay, and
// worker pool sizing are fixed at construction and are not covered here.
func (p *PushReplicator) UpdateTunables(t Tunables) {
	p.tunables.Store(&t)
	p.logger.Info("replicator tunables updated",
		log.String("service_url", t.ServiceURL),
		log.Int("max_retries", t.MaxRetries),
		log.Duration("base_retry_delay", t.BaseRetryDelay),
		log.Bool("compressed", t.Compressed),
		log.Bool("suppress_404_logging", t.Suppress404Logging),
	)
}

// Enqueue queues documents for the next group push.
func (p *PushReplicator) Enqueue(docs ...domain.Document) {
	p.stats.queued.Add(int64(len(docs)))
	p.batcher.AddAll(docs)
}

// Start begins the periodic stats reporter, if configured. The Batcher
// accepts Enqueue calls regardless of Start/Stop; Start only governs the
// cron reporter's lifecycle.
func (p *PushReplicator) Start(ctx context.Context) error {
	if !p.lifecycleMgr.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := p.lifecycleMgr.TransitionTo(lifecycle.StateStarting, "Start() called"); err != nil {
		return err
	}

	_, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.lifecycleMgr.SetCancel(cancel)

	if p.cfg.StatsInterval > 0 {
		p.cronSched = cron.New()
		spec := fmt.Sprintf("@every %s", p.cfg.StatsInterval)
		if _, err := p.cronSched.AddFunc(spec, p.logStats); err != nil {
			cancel()
			_ = p.lifecycleMgr.TransitionTo(lifecycle.StateCrashed, "cron schedule failed")
			return fmt.Errorf("schedule stats reporter: %w", err)
		}
		p.cronSched.Start()
	}

	return p.lifecycleMgr.TransitionTo(lifecycle.StateRunning, "replicator running")
}

// State reports the replicator's lifecycle state.
func (p *PushReplicator) State() lifecycle.State { return p.lifecycleMgr.State() }

// Stop stops the periodic stats reporter and waits for outstanding
// RetryingRequests to be cancelled. It does not flush the Batcher; call
// FlushOutstanding first if queued documents must be delivered.
func (p *PushReplicator) Stop() error {
	if !p.lifecycleMgr.CanStop() {
		return domain.ErrNotRunning
	}
	if err := p.lifecycleMgr.TransitionTo(lifecycle.StateStopping, "Stop() called"); err != nil {
		return err
	}
	if p.cancel != nil {
		p.cancel()
	}
	if p.cronSched != nil {
		<-p.cronSched.Stop().Done()
	}

	p.mu.Lock()
	for req := range p.outstanding {
		req.Cancel()
	}
	p.mu.Unlock()

	return p.lifecycleMgr.TransitionTo(lifecycle.StateStopped, "graceful shutdown")
}

// FlushOutstanding synchronously delivers every item currently queued in the
// Batcher. See batch.Batcher.FlushAll for the guarantee it provides.
func (p *PushReplicator) FlushOutstanding() {
	p.batcher.FlushAll()
}

// Stats returns a snapshot of the replicator's counters.
func (p *PushReplicator) Stats() Snapshot { return p.stats.Snapshot() }

// RecentFailures returns the most recent terminal failures, oldest first.
func (p *PushReplicator) RecentFailures() []diagnostics.Failure { return p.failures.Recent() }

func (p *PushReplicator) logStats() {
	s := p.stats.Snapshot()
	p.logger.Info("replicator stats",
		log.Int64("queued", s.Queued),
		log.Int64("delivered", s.Delivered),
		log.Int64("succeeded", s.Succeeded),
		log.Int64("retried", s.Retried),
		log.Int64("failed", s.Failed),
	)
}

// push is the Batcher's Processor: it builds one RetryingRequest per group
// and submits it. It does not block on the outcome — the RetryingRequest's
// completion callback records stats and removes itself from outstanding.
func (p *PushReplicator) push(group []domain.Document) {
	p.stats.delivered.Add(int64(len(group)))
	tunables := p.tunables.Load()

	body, err := json.Marshal(bulkDocsPayload(group))
	if err != nil {
		p.logger.Error("marshal bulk docs payload", log.Err(err))
		p.stats.failed.Add(int64(len(group)))
		return
	}

	attempt := func(ctx context.Context) (domain.PushResult, error) {
		req := transport.Request{
			Type:               transport.Simple,
			Method:             http.MethodPost,
			URL:                tunables.ServiceURL + bulkDocsEndpoint,
			Headers:            http.Header{"Content-Type": []string{"application/json"}},
			Body:               bytes.NewReader(body),
			Compressed:         tunables.Compressed,
			Suppress404Logging: tunables.Suppress404Logging,
		}
		resp, err := p.transport.Do(ctx, req)
		if err != nil {
			var zero domain.PushResult
			return zero, err
		}
		var result domain.PushResult
		if len(resp.Body) > 0 {
			if jsonErr := json.Unmarshal(resp.Body, &result); jsonErr != nil {
				return domain.PushResult{StatusCode: resp.StatusCode}, jsonErr
			}
		}
		result.StatusCode = resp.StatusCode
		return result, nil
	}

	retryCfg := retrier.Config{
		MaxRetries:     tunables.MaxRetries,
		BaseRetryDelay: tunables.BaseRetryDelay,
		Classifier:     retrier.ClassifierFunc(transport.IsTransient),
		Logger:         p.logger,
		OnRetry: func(int, time.Duration, error) {
			p.stats.retried.Add(int64(len(group)))
		},
	}

	req := retrier.New[domain.PushResult](
		p.requestExec,
		p.scheduledExec,
		retryCfg,
		attempt,
		func(result domain.PushResult, err error) {
			p.onGroupComplete(group, result, err)
		},
		retrier.WithOwningQueue[domain.PushResult](outstandingQueue{p}),
	)

	p.mu.Lock()
	p.outstanding[req] = struct{}{}
	p.mu.Unlock()

	req.Submit(context.Background(), tunables.Compressed)
}

func (p *PushReplicator) onGroupComplete(group []domain.Document, result domain.PushResult, err error) {
	if err == nil {
		p.stats.succeeded.Add(int64(len(group)))
		return
	}
	p.stats.failed.Add(int64(len(group)))
	p.logger.Error("group push failed", log.Int("count", len(group)), log.Err(err))

	for _, d := range group {
		p.failures.Record(diagnostics.Failure{
			DocumentID: d.ID,
			Method:     http.MethodPost,
			URL:        p.cfg.ServiceURL + bulkDocsEndpoint,
			Err:        err.Error(),
		})
	}
}

// outstandingQueue adapts PushReplicator to retrier.OwningQueue so a
// RetryingRequest removes itself once it reaches a terminal state.
type outstandingQueue struct {
	p *PushReplicator
}

func (q outstandingQueue) Remove(req *retrier.RetryingRequest[domain.PushResult]) {
	q.p.mu.Lock()
	delete(q.p.outstanding, req)
	q.p.mu.Unlock()
}

func bulkDocsPayload(docs []domain.Document) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = map[string]any{
			"_id":  d.ID,
			"_rev": d.Revision,
			"body": json.RawMessage(d.Body),
		}
	}
	return out
}
