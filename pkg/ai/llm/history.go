package llm

import "sync"

// DefaultHistoryLimit is how many turns are kept and sent per request.
const DefaultHistoryLimit = 10

// History is the bounded conversation memory of one call. Appending past
// the limit evicts the oldest turns first.
type History struct {
	mu    sync.Mutex
	limit int
	msgs  []Message
}

// NewHistory creates a history holding at most limit turns. A non-positive
// limit selects DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append adds a turn and trims to the limit.
func (h *History) Append(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, m)
	if over := len(h.msgs) - h.limit; over > 0 {
		h.msgs = append(h.msgs[:0:0], h.msgs[over:]...)
	}
}

// Messages returns a copy of the turns, oldest first.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.msgs...)
}

// Len returns the number of turns held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Reset forgets every turn.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = nil
}
