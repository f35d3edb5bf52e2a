// Package local provides an in-process Communicator group.
//
// Point-to-point links are unbuffered channels, so every Send blocks until
// the matching Recv takes the row. This is the strictest blocking model a
// transport can have, which makes the group useful for checking that the
// halo ordering cannot deadlock.
//
// Example:
//
//	group := local.NewGroup(4)
//	for _, comm := range group.Comms() {
//	    go runWorker(ctx, comm)
//	}
package local

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/jacobi/internal/logging"
	"github.com/arloliu/jacobi/internal/metrics"
	"github.com/arloliu/jacobi/types"
)

// Option configures a Group.
type Option func(*Group)

// WithLogger sets the logger used by the group.
func WithLogger(logger types.Logger) Option {
	return func(g *Group) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the transport metrics sink.
func WithMetrics(m types.TransportMetrics) Option {
	return func(g *Group) {
		if m != nil {
			g.metrics = m
		}
	}
}

// linkKey identifies one directed, tagged channel.
type linkKey struct {
	src int
	dst int
	tag types.Tag
}

// round is one collective operation. Each rank deposits its value; the last
// arrival publishes the rank-ordered sum and closes done.
type round struct {
	values  []float64
	arrived int
	sum     float64
	done    chan struct{}
}

// Group is a set of Size communicators sharing one process.
type Group struct {
	size    int
	logger  types.Logger
	metrics types.TransportMetrics

	links *xsync.Map[linkKey, chan []float32]
	comms []*Comm

	mu    sync.Mutex
	round *round

	abortOnce sync.Once
	aborted   chan struct{}
	cause     error
}

// NewGroup creates a group of size communicators.
//
// Panics if size < 1.
func NewGroup(size int, opts ...Option) *Group {
	if size < 1 {
		panic(fmt.Sprintf("local: group size must be positive, got %d", size))
	}

	g := &Group{
		size:    size,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
		links:   xsync.NewMap[linkKey, chan []float32](),
		aborted: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.round = newRound(size)
	g.comms = make([]*Comm, size)
	for rank := range size {
		g.comms[rank] = &Comm{group: g, rank: rank}
	}

	return g
}

// Size returns the number of communicators.
func (g *Group) Size() int {
	return g.size
}

// Comm returns the communicator for rank.
//
// Panics if rank is out of range.
func (g *Group) Comm(rank int) *Comm {
	return g.comms[rank]
}

// Comms returns all communicators in rank order.
func (g *Group) Comms() []*Comm {
	out := make([]*Comm, len(g.comms))
	copy(out, g.comms)

	return out
}

// Aborted reports whether any member has aborted the group.
func (g *Group) Aborted() bool {
	select {
	case <-g.aborted:
		return true
	default:
		return false
	}
}

func newRound(size int) *round {
	return &round{values: make([]float64, size), done: make(chan struct{})}
}

// link returns the channel for (src, dst, tag), creating it on first use.
func (g *Group) link(src, dst int, tag types.Tag) chan []float32 {
	key := linkKey{src: src, dst: dst, tag: tag}
	if ch, ok := g.links.Load(key); ok {
		return ch
	}
	ch, _ := g.links.LoadOrStore(key, make(chan []float32))

	return ch
}

// join deposits value for rank into the current round and returns that round.
func (g *Group) join(rank int, value float64) *round {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.round
	r.values[rank] = value
	r.arrived++
	if r.arrived == g.size {
		sum := 0.0
		for _, v := range r.values {
			sum += v
		}
		r.sum = sum
		close(r.done)
		g.round = newRound(g.size)
	}

	return r
}

// abort closes the group exactly once. Returns false if it was already aborted.
func (g *Group) abort(rank int, cause error) bool {
	first := false
	g.abortOnce.Do(func() {
		first = true
		g.cause = fmt.Errorf("%w by rank %d: %w", types.ErrAborted, rank, cause)
		close(g.aborted)
	})

	return first
}

// abortErr returns the error reported to operations interrupted by an abort.
func (g *Group) abortErr() error {
	<-g.aborted

	return g.cause
}
