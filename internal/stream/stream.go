package stream

import "github.com/zeebo/xxh3"

type Flags uint32

const (
	// FlagWriteQueued marks a stream with an outstanding flush task.
	// It is mutually exclusive with issuing further flush tasks for the
	// same stream.
	FlagWriteQueued Flags = 1 << iota

	// FlagWaitingForTeardown marks a stream whose owner wants it flushed
	// and torn down as soon as possible. Its flush tasks go to the
	// express lane.
	FlagWaitingForTeardown

	// FlagModifiedWriteDisabled marks a stream requiring exclusive access
	// for writes. Such streams are batched specially to reduce
	// serialization with foreground activity.
	FlagModifiedWriteDisabled

	// FlagCursor marks the ring sentinel. Exactly one exists per ring and
	// it never carries data.
	FlagCursor
)

func (f Flags) Has(mask Flags) bool { return f&mask != 0 }

// Key hashes a stream name into the registry key space.
func Key(name string) uint64 {
	return xxh3.HashString(name)
}

// Stream is one open cached data source. All mutable fields are guarded by
// the owning writer's master lock; Stream itself does no locking.
type Stream struct {
	next, prev *Stream // dirty ring links, nil when not resident

	name string
	key  uint64
	size int64

	flags     Flags
	dirty     int // pages awaiting flush
	toWrite   int // per-pass flush budget, recomputed each scan
	passCount uint32
	openCount int

	temporary bool
}

func New(name string, size int64, temporary bool) *Stream {
	return &Stream{
		name:      name,
		key:       Key(name),
		size:      size,
		temporary: temporary,
		openCount: 1,
	}
}

// NewCursor makes the ring sentinel.
func NewCursor() *Stream {
	return &Stream{flags: FlagCursor}
}

func (s *Stream) Name() string { return s.name }
func (s *Stream) Key() uint64  { return s.key }
func (s *Stream) Size() int64  { return s.size }

func (s *Stream) Flags() Flags          { return s.flags }
func (s *Stream) SetFlags(mask Flags)   { s.flags |= mask }
func (s *Stream) ClearFlags(mask Flags) { s.flags &^= mask }

func (s *Stream) DirtyPages() int     { return s.dirty }
func (s *Stream) AddDirty(pages int)  { s.dirty += pages }
func (s *Stream) PagesToWrite() int   { return s.toWrite }
func (s *Stream) SetPagesToWrite(n int) { s.toWrite = n }

func (s *Stream) OpenCount() int { return s.openCount }
func (s *Stream) Open()          { s.openCount++ }
func (s *Stream) Release()       { s.openCount-- }

func (s *Stream) Temporary() bool { return s.temporary }

func (s *Stream) SetSize(size int64) { s.size = size }

// BumpPass increments the per-stream pass counter and reports whether this
// visit is a forced-progress one (every 16th).
func (s *Stream) BumpPass() bool {
	s.passCount++
	return s.passCount&0xF == 0
}

// PassAligned reports whether the counter currently sits on a forced
// progress boundary, without bumping it.
func (s *Stream) PassAligned() bool {
	return s.passCount&0xF == 0
}

// InRing reports dirty ring residency.
func (s *Stream) InRing() bool { return s.next != nil }
