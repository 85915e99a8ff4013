package sim

import (
	"fmt"
	"math"
	"sort"
)

// Sample is one raw (timestamp, value) row handed over by trace ingestion.
// Timestamps are absolute epoch milliseconds.
type Sample struct {
	Timestamp int64
	Value     float64
}

// Fragment is a value that holds constant over the half-open interval [Start, End).
type Fragment struct {
	Start int64
	End   int64
	Value float64
}

// Contains reports whether t falls inside the fragment.
func (f Fragment) Contains(t int64) bool {
	return t >= f.Start && t < f.End
}

// BuildFragments turns unordered samples into a contiguous fragment sequence.
// Samples are sorted by timestamp (stable, so equal timestamps keep input order),
// each fragment ends where the next one starts, the first fragment starts at
// math.MinInt64 and the last one ends at math.MaxInt64.
// An empty input yields an empty sequence.
func BuildFragments(samples []Sample) []Fragment {
	if len(samples) == 0 {
		return nil
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	fragments := make([]Fragment, len(sorted))
	for i, s := range sorted {
		fragments[i] = Fragment{Start: s.Timestamp, End: math.MaxInt64, Value: s.Value}
		if i > 0 {
			fragments[i-1].End = s.Timestamp
		}
	}
	fragments[0].Start = math.MinInt64
	return fragments
}

// Cursor is a seek position over an immutable fragment sequence.
// Callers query with mostly increasing times, so Seek walks from the
// previous position instead of binary searching.
//
// Thread-safety: NOT thread-safe. A cursor belongs to a single supplier.
type Cursor struct {
	fragments []Fragment
	index     int
	started   bool
}

// NewCursor creates a cursor positioned on the first fragment.
func NewCursor(fragments []Fragment) *Cursor {
	return &Cursor{fragments: fragments}
}

// Len returns the number of fragments behind the cursor.
func (c *Cursor) Len() int {
	return len(c.fragments)
}

// Index returns the position of the current fragment.
func (c *Cursor) Index() int {
	return c.index
}

// Current returns the fragment under the cursor.
func (c *Cursor) Current() Fragment {
	c.checkBounds()
	return c.fragments[c.index]
}

// Seek moves the cursor to the fragment containing t and returns it.
// changed is true when the fragment differs from the one returned by the
// previous Seek; the first Seek always reports a change.
func (c *Cursor) Seek(t int64) (Fragment, bool) {
	if len(c.fragments) == 0 {
		panic("Cursor.Seek: empty fragment sequence")
	}
	prev := c.index
	for t < c.fragments[c.index].Start && c.fragments[c.index].Start != math.MinInt64 {
		c.index--
		c.checkBounds()
	}
	for t >= c.fragments[c.index].End && c.fragments[c.index].End != math.MaxInt64 {
		c.index++
		c.checkBounds()
	}
	changed := !c.started || prev != c.index
	c.started = true
	return c.fragments[c.index], changed
}

// NextBoundary returns the end of the fragment containing t, i.e. the next
// time at which a Seek may report a change. Returns math.MaxInt64 when the
// sequence is empty or t lies in the last fragment.
func (c *Cursor) NextBoundary(t int64) int64 {
	if len(c.fragments) == 0 {
		return math.MaxInt64
	}
	f, _ := c.peek(t)
	return f.End
}

// peek locates the fragment containing t without moving the cursor.
func (c *Cursor) peek(t int64) (Fragment, int) {
	i := c.index
	for t < c.fragments[i].Start && i > 0 {
		i--
	}
	for t >= c.fragments[i].End && i < len(c.fragments)-1 {
		i++
	}
	return c.fragments[i], i
}

func (c *Cursor) checkBounds() {
	if c.index < 0 || c.index >= len(c.fragments) {
		panic(fmt.Sprintf("Cursor: index %d out of range [0, %d)", c.index, len(c.fragments)))
	}
}
