package anthropic

import (
	"context"
	"sync"

	"mercator-hq/conduit/pkg/providers"
)

// chunkBridge turns push-style emitter callbacks into a pull-style channel.
//
// push and finish never block: chunks go to an unbounded ordered queue and a
// single-slot notify channel wakes the consumer. Termination is a state: the
// consumer sees the end only after every queued chunk has been delivered.
type chunkBridge struct {
	mu     sync.Mutex
	queue  []*providers.StreamChunk
	done   bool
	notify chan struct{}
}

func newChunkBridge() *chunkBridge {
	return &chunkBridge{notify: make(chan struct{}, 1)}
}

// push enqueues a chunk. Chunks pushed after finish are discarded.
func (b *chunkBridge) push(chunk *providers.StreamChunk) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, chunk)
	b.mu.Unlock()
	b.wake()
}

// finish enqueues an optional last chunk and marks the stream done. Only the
// first call has an effect.
func (b *chunkBridge) finish(last *providers.StreamChunk) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	if last != nil {
		b.queue = append(b.queue, last)
	}
	b.done = true
	b.mu.Unlock()
	b.wake()
}

func (b *chunkBridge) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// next returns the next queued chunk, waiting if necessary. It returns false
// once the bridge is done and drained, or when ctx is done.
func (b *chunkBridge) next(ctx context.Context) (*providers.StreamChunk, bool) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			chunk := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return chunk, true
		}
		if b.done {
			b.mu.Unlock()
			return nil, false
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// drain forwards chunks to out until the bridge is exhausted or ctx is done.
func (b *chunkBridge) drain(ctx context.Context, out chan<- *providers.StreamChunk) {
	for {
		chunk, ok := b.next(ctx)
		if !ok {
			return
		}
		if !providers.SendChunk(ctx, out, chunk) {
			return
		}
	}
}
