// Package progress publishes each worker's latest iteration to the run bucket.
//
// The solver calls Update from its iteration hook; a background loop writes
// the newest snapshot to "progress.<rank>" at a fixed interval, so the
// relaxation loop never waits on JetStream. Operators can watch the bucket
// to follow a run.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/jacobi/internal/kvutil"
	"github.com/arloliu/jacobi/internal/logging"
	"github.com/arloliu/jacobi/types"
)

// Common errors for progress publishing.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
)

// Snapshot is one published progress record.
type Snapshot struct {
	Iteration int
	Norm      float64
	Done      bool
}

// String encodes the snapshot as stored in the bucket.
func (s Snapshot) String() string {
	return fmt.Sprintf("iteration=%d norm=%g done=%t", s.Iteration, s.Norm, s.Done)
}

// ParseSnapshot decodes a bucket value written by Publisher.
func ParseSnapshot(value []byte) (Snapshot, error) {
	var s Snapshot
	if _, err := fmt.Sscanf(string(value), "iteration=%d norm=%g done=%t", &s.Iteration, &s.Norm, &s.Done); err != nil {
		return Snapshot{}, fmt.Errorf("parse progress %q: %w", value, err)
	}

	return s, nil
}

// Publisher writes a worker's progress to KV at a fixed interval.
type Publisher struct {
	kv       jetstream.KeyValue
	key      string
	interval time.Duration
	logger   types.Logger

	mu        sync.Mutex
	latest    Snapshot
	published Snapshot
	dirty     bool
	started   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a progress publisher for rank.
//
// Parameters:
//   - kv: Run bucket
//   - rank: Worker rank, used in the key
//   - interval: Publish interval
//   - logger: Logger (nil for no-op)
func New(kv jetstream.KeyValue, rank int, interval time.Duration, logger types.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Publisher{
		kv:       kv,
		key:      kvutil.RankKey(kvutil.ProgressKeyPrefix, rank),
		interval: interval,
		logger:   logger,
	}
}

// Key returns the KV key this publisher writes.
func (p *Publisher) Key() string {
	return p.key
}

// Update records the latest state. It never blocks on the network.
func (p *Publisher) Update(state types.ConvergenceState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = Snapshot{Iteration: state.Iteration, Norm: state.GlobalNorm, Done: state.Done()}
	p.dirty = true
}

// OnIteration adapts Update to the Hooks.OnIteration signature.
func (p *Publisher) OnIteration(_ context.Context, state types.ConvergenceState) error {
	p.Update(state)
	return nil
}

// Start publishes the current snapshot and begins the background loop.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.dirty = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	if err := p.flush(ctx); err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()

		return fmt.Errorf("failed to publish initial progress: %w", err)
	}

	go p.publishLoop()

	return nil
}

// Stop ends the loop and writes the final snapshot.
//
// The key is left in place so the final state stays visible until the
// bucket TTL expires it.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.doneCh

	return p.flush(ctx)
}

// Published returns the last snapshot written to KV.
func (p *Publisher) Published() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.published
}

func (p *Publisher) publishLoop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.flush(ctx)
			cancel()

			if err != nil {
				p.logger.Warn("progress publish failed", "key", p.key, "error", err)
			}
		}
	}
}

// flush writes the latest snapshot if it changed since the last write.
func (p *Publisher) flush(ctx context.Context) error {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	snap := p.latest
	p.dirty = false
	p.mu.Unlock()

	if _, err := p.kv.Put(ctx, p.key, []byte(snap.String())); err != nil {
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()

		return fmt.Errorf("publish progress %s: %w", p.key, err)
	}

	p.mu.Lock()
	p.published = snap
	p.mu.Unlock()

	return nil
}
