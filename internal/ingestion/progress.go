package ingestion

import (
	"sync"

	"indistocks/pkg/contracts/domain"
)

// emitterCapacity bounds the progress stream. When the consumer lags,
// the oldest events are dropped; a UI only ever needs the recent tail.
const emitterCapacity = 64

// Emitter is a bounded, lossy progress event stream. Publishing never
// blocks the coordinator.
type Emitter struct {
	mu     sync.Mutex
	ch     chan domain.BatchProgress
	closed bool
}

// NewEmitter creates an emitter with the default capacity.
func NewEmitter() *Emitter {
	return &Emitter{ch: make(chan domain.BatchProgress, emitterCapacity)}
}

// Publish enqueues an event, evicting the oldest unconsumed event when
// the buffer is full.
func (e *Emitter) Publish(ev domain.BatchProgress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for {
		select {
		case e.ch <- ev:
			return
		default:
			select {
			case <-e.ch:
			default:
			}
		}
	}
}

// Events exposes the consumer side of the stream.
func (e *Emitter) Events() <-chan domain.BatchProgress {
	return e.ch
}
