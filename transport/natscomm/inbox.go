package natscomm

import (
	"context"
	"sync"

	"github.com/arloliu/jacobi/types"
)

// inboxKey identifies the messages one rank receives from src on tag.
type inboxKey struct {
	src int
	tag types.Tag
}

// inbox is an unbounded FIFO filled by the subscription handler and drained
// by the single worker goroutine that owns the communicator.
//
// It never blocks the handler: a bounded queue could fill during the gather,
// where every worker sends all its rows to the coordinator at once, and stall
// delivery of every other subject on the connection.
type inbox struct {
	mu     sync.Mutex
	queue  [][]byte
	notify chan struct{}
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

func (b *inbox) push(payload []byte) {
	b.mu.Lock()
	b.queue = append(b.queue, payload)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// pop waits for the next payload. stop is closed on abort or close; the
// caller decides which error that means.
func (b *inbox) pop(ctx context.Context, stop <-chan struct{}) ([]byte, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			payload := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()

			return payload, nil
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-stop:
			return nil, errStopped
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}
