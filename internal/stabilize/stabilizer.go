// Package stabilize smooths per-frame plate candidates with a majority vote
// over a short window of recent observations.
//
// A Stabilizer is owned by a single scanning session and is not safe for
// concurrent use; the session serializes access to it.
package stabilize

// DefaultCapacity is the number of recent candidates kept for voting.
const DefaultCapacity = 10

// Result is the outcome of a vote over the current window.
type Result struct {
	// Winner is the most frequent value in the window.
	Winner string `json:"winner"`

	// Count is how many times Winner occurs in the window.
	Count int `json:"count"`
}

// Stabilizer keeps a bounded FIFO of normalized candidate texts.
type Stabilizer struct {
	capacity int
	buf      []string
}

// New creates a Stabilizer that votes over the last capacity observations.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Stabilizer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stabilizer{
		capacity: capacity,
		buf:      make([]string, 0, capacity+1),
	}
}

// Observe appends text to the window, evicting the oldest entries beyond
// capacity, and returns the vote over the updated window.
func (s *Stabilizer) Observe(text string) Result {
	s.buf = append(s.buf, text)
	if over := len(s.buf) - s.capacity; over > 0 {
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
	return s.Vote()
}

// Vote returns the most frequent value in the window. When several values
// share the highest count, the one observed most recently wins. An empty
// window yields the zero Result.
func (s *Stabilizer) Vote() Result {
	counts := make(map[string]int, len(s.buf))
	for _, v := range s.buf {
		counts[v]++
	}

	var best Result
	for i := len(s.buf) - 1; i >= 0; i-- {
		v := s.buf[i]
		if c := counts[v]; c > best.Count {
			best = Result{Winner: v, Count: c}
		}
	}
	return best
}

// Reset empties the window.
func (s *Stabilizer) Reset() {
	s.buf = s.buf[:0]
}

// Len returns the number of observations currently in the window.
func (s *Stabilizer) Len() int {
	return len(s.buf)
}

// Capacity returns the window size.
func (s *Stabilizer) Capacity() int {
	return s.capacity
}

// Snapshot returns a copy of the window, oldest first.
func (s *Stabilizer) Snapshot() []string {
	out := make([]string, len(s.buf))
	copy(out, s.buf)
	return out
}
