// Package natscomm implements types.Communicator over NATS core messaging,
// with JetStream KV for startup coordination.
//
// Each worker process opens one Comm on its own connection. Rows travel on
//
//	<prefix>.<run>.p2p.<dst>.<src>.<tag>
//
// and a failing worker broadcasts on <prefix>.<run>.abort. A Comm subscribes
// to everything addressed to its rank and queues messages per (src, tag), so
// NATS per-publisher ordering gives the ordered point-to-point semantics the
// solver relies on.
//
// Startup:
//
//  1. open or create the run bucket
//  2. claim a rank (explicit or lowest free) as a renewed KV lease
//  3. subscribe and flush
//  4. publish "ready.<rank>" and wait until every rank is ready
//
// Step 4 guarantees no worker publishes a row before its receiver listens.
package natscomm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/jacobi/internal/kvutil"
	"github.com/arloliu/jacobi/internal/logging"
	"github.com/arloliu/jacobi/internal/metrics"
	"github.com/arloliu/jacobi/internal/natsutil"
	"github.com/arloliu/jacobi/internal/rankclaim"
	"github.com/arloliu/jacobi/types"
)

// AnyRank asks Open to claim the lowest free rank.
const AnyRank = -1

var errStopped = errors.New("communicator stopped")

// Option configures a Comm.
type Option func(*Comm)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(c *Comm) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the transport metrics sink.
func WithMetrics(m types.TransportMetrics) Option {
	return func(c *Comm) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithOwner sets the value stored with rank claims. Defaults to "<host>/<pid>".
func WithOwner(owner string) Option {
	return func(c *Comm) {
		if owner != "" {
			c.owner = owner
		}
	}
}

// Comm is one worker's NATS communicator.
//
// Send, Recv and the collectives must be called from a single goroutine.
// Abort and Close are safe to call from any goroutine.
type Comm struct {
	nc      *nats.Conn
	cfg     Config
	size    int
	rank    int
	owner   string
	logger  types.Logger
	metrics types.TransportMetrics

	kv      jetstream.KeyValue
	claimer *rankclaim.Claimer
	subs    []*nats.Subscription
	inboxes *xsync.Map[inboxKey, *inbox]

	p2pPrefix    string
	abortSubject string

	stop      chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex
	stopErr   error
	closeOnce sync.Once
	closeErr  error
}

// Compile-time assertion that Comm implements Communicator.
var _ types.Communicator = (*Comm)(nil)

// Open joins a run of size workers as rank (or AnyRank).
//
// It returns only after every worker of the run has subscribed, or fails
// once cfg.StartupTimeout elapses. The caller keeps ownership of nc.
//
// Returns:
//   - *Comm: Ready communicator; call Close when done
//   - error: ErrInvalidConfig, ErrInvalidRank, rankclaim.ErrRankTaken,
//     rankclaim.ErrNoAvailableRank or ErrCommunication
func Open(ctx context.Context, nc *nats.Conn, cfg Config, size, rank int, opts ...Option) (*Comm, error) {
	if nc == nil {
		return nil, fmt.Errorf("%w: nats connection is required", types.ErrInvalidConfig)
	}
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", types.ErrInvalidConfig, size)
	}
	if rank < AnyRank || rank >= size {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", types.ErrInvalidRank, rank, size)
	}

	c := &Comm{
		nc:           nc,
		cfg:          cfg,
		size:         size,
		rank:         rank,
		owner:        defaultOwner(),
		logger:       logging.NewNop(),
		metrics:      metrics.NewNop(),
		inboxes:      xsync.NewMap[inboxKey, *inbox](),
		p2pPrefix:    cfg.SubjectPrefix + "." + cfg.RunID + ".p2p",
		abortSubject: cfg.SubjectPrefix + "." + cfg.RunID + ".abort",
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	cfg.ValidateWithWarnings(c.logger)

	startCtx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	if err := c.start(startCtx); err != nil {
		c.stopWith(fmt.Errorf("%w: startup failed", types.ErrClosed))
		_ = c.release(context.WithoutCancel(ctx))

		return nil, err
	}

	c.logger.Info("communicator ready", "rank", c.rank, "size", c.size, "run_id", cfg.RunID, "bucket", cfg.Bucket)

	return c, nil
}

func (c *Comm) start(ctx context.Context) error {
	js, err := jetstream.New(c.nc)
	if err != nil {
		return natsutil.Classify("jetstream", err)
	}

	c.kv, err = kvutil.EnsureKVBucketWithRetry(ctx, js, kvutil.RunBucketConfig(c.cfg.Bucket, c.cfg.ClaimTTL), 5)
	if err != nil {
		return natsutil.Classify("open run bucket", err)
	}

	c.claimer = rankclaim.NewClaimer(c.kv, c.size, c.cfg.ClaimTTL, c.owner, c.logger)
	if c.rank == AnyRank {
		c.rank, err = c.claimer.Claim(ctx)
	} else {
		err = c.claimer.ClaimRank(ctx, c.rank)
	}
	if err != nil {
		return err
	}
	if err := c.claimer.StartRenewal(); err != nil {
		return err
	}

	if err := c.subscribe(); err != nil {
		return err
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return natsutil.Classify("flush subscriptions", err)
	}

	return c.rendezvous(ctx)
}

func (c *Comm) subscribe() error {
	p2p, err := c.nc.Subscribe(c.p2pPrefix+"."+strconv.Itoa(c.rank)+".>", c.handleP2P)
	if err != nil {
		return natsutil.Classify("subscribe p2p", err)
	}
	c.subs = append(c.subs, p2p)

	// Gather bursts must never trip slow-consumer drops.
	if err := p2p.SetPendingLimits(-1, -1); err != nil {
		return natsutil.Classify("pending limits", err)
	}

	abort, err := c.nc.Subscribe(c.abortSubject, c.handleAbort)
	if err != nil {
		return natsutil.Classify("subscribe abort", err)
	}
	c.subs = append(c.subs, abort)

	return nil
}

// Rank returns this worker's index.
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the number of workers.
func (c *Comm) Size() int {
	return c.size
}

// KV returns the run bucket.
func (c *Comm) KV() jetstream.KeyValue {
	return c.kv
}

// Config returns the effective configuration.
func (c *Comm) Config() Config {
	return c.cfg
}

// Send publishes data to dst on tag. It does not wait for the receiver.
func (c *Comm) Send(ctx context.Context, dst int, tag types.Tag, data []float32) error {
	if err := c.checkPeer(dst); err != nil {
		return err
	}
	if err := c.checkLive(ctx); err != nil {
		return err
	}

	return c.publish(dst, tag, encodeRow(data))
}

// Recv waits for the next message from src on tag and decodes it into buf.
func (c *Comm) Recv(ctx context.Context, src int, tag types.Tag, buf []float32) error {
	if err := c.checkPeer(src); err != nil {
		return err
	}

	payload, err := c.next(ctx, src, tag)
	if err != nil {
		return err
	}
	if err := decodeRow(payload, buf); err != nil {
		return fmt.Errorf("recv %s from %d: %w", tag, src, err)
	}

	return nil
}

// AllReduceSum sends value to every peer and sums all contributions in rank
// order, so every rank computes the bit-identical result.
func (c *Comm) AllReduceSum(ctx context.Context, value float64) (float64, error) {
	values, err := c.allToAll(ctx, types.TagReduce, value)
	if err != nil {
		return 0, err
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum, nil
}

// Barrier returns once every rank has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	_, err := c.allToAll(ctx, types.TagBarrier, 0)

	return err
}

// Abort fails the whole run. Every rank's blocked and later operations
// return ErrAborted carrying cause.
//
// Without a deadline on ctx the flush is bounded by StartupTimeout.
func (c *Comm) Abort(ctx context.Context, cause error) error {
	if cause == nil {
		cause = errors.New("no cause given")
	}

	c.stopWith(fmt.Errorf("%w by rank %d: %w", types.ErrAborted, c.rank, cause))
	c.metrics.RecordAbort(c.rank)
	c.logger.Warn("aborting run", "rank", c.rank, "error", cause)

	if err := c.nc.Publish(c.abortSubject, encodeAbort(c.rank, cause)); err != nil {
		return natsutil.Classify("publish abort", err)
	}

	// FlushWithContext rejects contexts without a deadline, and callers on
	// the failure path usually pass context.WithoutCancel.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.StartupTimeout)
		defer cancel()
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return natsutil.Classify("flush abort", err)
	}

	return nil
}

// Close unsubscribes and releases this rank's keys. It does not close the
// NATS connection. Later operations fail with ErrClosed.
func (c *Comm) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.stopWith(types.ErrClosed)
		c.closeErr = c.release(ctx)
	})

	return c.closeErr
}

func (c *Comm) release(ctx context.Context) error {
	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	c.subs = nil

	// Keys are only ours while the claim is held.
	if c.claimer != nil && c.claimer.Rank() >= 0 {
		if err := kvutil.DeleteKeys(ctx, c.kv, kvutil.RankKey(kvutil.ReadyKeyPrefix, c.rank)); err != nil {
			errs = append(errs, err)
		}
		if err := c.claimer.Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Comm) allToAll(ctx context.Context, tag types.Tag, value float64) ([]float64, error) {
	if err := c.checkLive(ctx); err != nil {
		return nil, err
	}

	var payload []byte
	if tag == types.TagReduce {
		payload = encodeFloat64(value)
	}

	for peer := range c.size {
		if peer == c.rank {
			continue
		}
		if err := c.publish(peer, tag, payload); err != nil {
			return nil, err
		}
	}

	values := make([]float64, c.size)
	values[c.rank] = value
	for peer := range c.size {
		if peer == c.rank {
			continue
		}
		p, err := c.next(ctx, peer, tag)
		if err != nil {
			return nil, err
		}
		if tag == types.TagReduce {
			if values[peer], err = decodeFloat64(p); err != nil {
				return nil, fmt.Errorf("reduce from %d: %w", peer, err)
			}
		}
	}

	return values, nil
}

func (c *Comm) publish(dst int, tag types.Tag, payload []byte) error {
	if limit := c.nc.MaxPayload(); limit > 0 && int64(len(payload)) > limit {
		return fmt.Errorf("%w: %s message of %d bytes exceeds server max payload %d",
			types.ErrCommunication, tag, len(payload), limit)
	}

	subject := fmt.Sprintf("%s.%d.%d.%d", c.p2pPrefix, dst, c.rank, uint8(tag))
	if err := c.nc.Publish(subject, payload); err != nil {
		return natsutil.Classify(fmt.Sprintf("send %s to %d", tag, dst), err)
	}
	c.metrics.RecordMessage("sent", tag.String(), len(payload))

	return nil
}

// next pops the next payload from src on tag.
func (c *Comm) next(ctx context.Context, src int, tag types.Tag) ([]byte, error) {
	if err := c.checkLive(ctx); err != nil {
		return nil, err
	}

	payload, err := c.inboxFor(src, tag).pop(ctx, c.stop)
	switch {
	case errors.Is(err, errStopped):
		return nil, c.stoppedErr()
	case err != nil:
		return nil, fmt.Errorf("%w: recv %s from %d: %w", types.ErrCommunication, tag, src, err)
	}
	c.metrics.RecordMessage("received", tag.String(), len(payload))

	return payload, nil
}

func (c *Comm) inboxFor(src int, tag types.Tag) *inbox {
	key := inboxKey{src: src, tag: tag}
	if b, ok := c.inboxes.Load(key); ok {
		return b
	}
	b, _ := c.inboxes.LoadOrStore(key, newInbox())

	return b
}

func (c *Comm) handleP2P(msg *nats.Msg) {
	src, tag, ok := parseP2PSubject(msg.Subject)
	if !ok || src < 0 || src >= c.size {
		c.logger.Warn("dropping message on unexpected subject", "subject", msg.Subject)
		return
	}

	c.inboxFor(src, tag).push(msg.Data)
}

func (c *Comm) handleAbort(msg *nats.Msg) {
	rank, cause := decodeAbort(msg.Data)
	if rank == c.rank {
		return
	}

	c.stopWith(fmt.Errorf("%w by rank %d: %s", types.ErrAborted, rank, cause))
	c.metrics.RecordAbort(c.rank)
	c.logger.Error("run aborted by peer", "rank", c.rank, "peer", rank, "cause", cause)
}

// stopWith records the first terminal error and wakes every blocked operation.
func (c *Comm) stopWith(err error) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopErr = err
		c.mu.Unlock()
		close(c.stop)
	})
}

func (c *Comm) stoppedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopErr
}

func (c *Comm) checkLive(ctx context.Context) error {
	select {
	case <-c.stop:
		return c.stoppedErr()
	default:
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrCommunication, err)
	}

	return nil
}

func (c *Comm) checkPeer(rank int) error {
	if rank < 0 || rank >= c.size || rank == c.rank {
		return fmt.Errorf("%w: %d (self %d, size %d)", types.ErrInvalidRank, rank, c.rank, c.size)
	}

	return nil
}

// parseP2PSubject extracts src and tag from the last two subject tokens.
func parseP2PSubject(subject string) (int, types.Tag, bool) {
	rest, tagStr, ok := cutLast(subject)
	if !ok {
		return 0, 0, false
	}
	_, srcStr, ok := cutLast(rest)
	if !ok {
		return 0, 0, false
	}

	src, err := strconv.Atoi(srcStr)
	if err != nil {
		return 0, 0, false
	}
	tag, err := strconv.ParseUint(tagStr, 10, 8)
	if err != nil {
		return 0, 0, false
	}

	return src, types.Tag(tag), true
}

func cutLast(s string) (string, string, bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", "", false
	}

	return s[:i], s[i+1:], true
}

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return host + "/" + strconv.Itoa(os.Getpid())
}
