package downloader

import "time"

// Event reports one unit of download work.
type Event struct {
	Date     time.Time
	Bytes    int64
	Status   string
	FromCache bool
}

// ProgressFunc receives download events. Implementations must return
// quickly; slow consumers should subscribe through a Slot instead.
type ProgressFunc func(Event)

// Slot is a latest-only progress buffer: publishing never blocks the
// producer, and a stalled consumer simply observes the newest event
// when it catches up.
type Slot struct {
	ch chan Event
}

// NewSlot creates a progress slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan Event, 1)}
}

// Publish stores ev, displacing an unconsumed older event if needed.
func (s *Slot) Publish(ev Event) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Events exposes the consumer side of the slot.
func (s *Slot) Events() <-chan Event {
	return s.ch
}

// Notify adapts the slot into a ProgressFunc.
func (s *Slot) Notify() ProgressFunc {
	return s.Publish
}
