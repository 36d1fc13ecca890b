package stream

// Ring is the dirty-stream list: a circular doubly linked list whose only
// permanent member is the cursor sentinel. Ordering reflects recency of
// cursor visitation, not dirtiness magnitude. The ring is not
// self-synchronizing; the owning writer's master lock guards all calls.
type Ring struct {
	cursor *Stream
	len    int // non-cursor members
}

func NewRing() *Ring {
	c := NewCursor()
	c.next, c.prev = c, c
	return &Ring{cursor: c}
}

func (r *Ring) Cursor() *Stream { return r.cursor }

// Len counts resident streams, excluding the cursor.
func (r *Ring) Len() int { return r.len }

// Next returns the ring member after s.
func (r *Ring) Next(s *Stream) *Stream { return s.next }

// InsertBehindCursor links s so it will be visited last in walk order.
func (r *Ring) InsertBehindCursor(s *Stream) {
	if s.InRing() {
		return
	}
	r.insertBefore(s, r.cursor)
	r.len++
}

// Remove unlinks s. The cursor itself is never removed.
func (r *Ring) Remove(s *Stream) {
	if !s.InRing() || s == r.cursor {
		return
	}
	s.prev.next = s.next
	s.next.prev = s.prev
	s.next, s.prev = nil, nil
	r.len--
}

// ResumeOn repositions the cursor so the next walk starts on s.
func (r *Ring) ResumeOn(s *Stream) {
	r.unlinkCursor()
	r.insertBefore(r.cursor, s)
}

// ResumeAfter repositions the cursor so the next walk starts on the member
// following s; s becomes the last visited.
func (r *Ring) ResumeAfter(s *Stream) {
	r.unlinkCursor()
	r.insertBefore(r.cursor, s.next)
}

func (r *Ring) unlinkCursor() {
	c := r.cursor
	c.prev.next = c.next
	c.next.prev = c.prev
}

func (r *Ring) insertBefore(s, at *Stream) {
	s.prev = at.prev
	s.next = at
	at.prev.next = s
	at.prev = s
}
