package workqueue

import "github.com/Borislavv/go-lazy-writeback/internal/stream"

type Kind uint8

const (
	// KindFlush writes a stream's dirty pages back (and lazy-closes it
	// when nothing keeps it alive).
	KindFlush Kind = iota

	// KindReadAhead performs opportunistic read-ahead for a stream.
	KindReadAhead

	// KindNotify signals a drain waiter once everything queued before it
	// has finished.
	KindNotify

	// KindScan runs one lazy-write scan tick.
	KindScan
)

type Lane uint8

const (
	// Express is the priority lane for teardown-critical work.
	Express Lane = iota
	Regular
)

// Item is one unit of queued work. Items are claimed from a bounded budget
// via Allocate and returned to it after execution, so producers observe
// resource exhaustion instead of growing the queues without bound.
type Item struct {
	kind   Kind
	stream *stream.Stream
	done   chan struct{}
	lane   Lane
}

func (it *Item) Kind() Kind             { return it.kind }
func (it *Item) Stream() *stream.Stream { return it.stream }

func (it *Item) SetFlush(s *stream.Stream) {
	it.kind, it.stream, it.done = KindFlush, s, nil
}

func (it *Item) SetReadAhead(s *stream.Stream) {
	it.kind, it.stream, it.done = KindReadAhead, s, nil
}

func (it *Item) SetScan() {
	it.kind, it.stream, it.done = KindScan, nil, nil
}

// SetNotify arms the item as a drain barrier; done is closed exactly once
// when the item executes.
func (it *Item) SetNotify(done chan struct{}) {
	it.kind, it.stream, it.done = KindNotify, nil, done
}
