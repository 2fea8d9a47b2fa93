package trigger

import (
	"sort"
	"sync"
	"time"

	"github.com/stellarlinkco/nudge/internal/recommend"
)

// QueuedMessage is a recommendation held back for later delivery.
type QueuedMessage struct {
	UserID         string
	Recommendation recommend.ScoredCandidate
	DeliverAfter   time.Time
	Priority       float64
}

// MessageQueue holds deliveries that could not go out immediately,
// ordered by delivery time then priority. Safe for concurrent use.
type MessageQueue struct {
	mu    sync.Mutex
	queue []QueuedMessage
	now   func() time.Time
}

func NewMessageQueue() *MessageQueue {
	return &MessageQueue{now: time.Now}
}

// Add enqueues a message and keeps the queue sorted by deliver-after
// ascending, priority descending.
func (q *MessageQueue) Add(userID string, rec recommend.ScoredCandidate, deliverAfter time.Time, priority float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.queue = append(q.queue, QueuedMessage{
		UserID:         userID,
		Recommendation: rec,
		DeliverAfter:   deliverAfter,
		Priority:       priority,
	})
	sort.SliceStable(q.queue, func(i, j int) bool {
		if !q.queue[i].DeliverAfter.Equal(q.queue[j].DeliverAfter) {
			return q.queue[i].DeliverAfter.Before(q.queue[j].DeliverAfter)
		}
		return q.queue[i].Priority > q.queue[j].Priority
	})
}

// Ready removes and returns every message whose delivery time has
// passed. Each message is handed out at most once.
func (q *MessageQueue) Ready() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	ready := make([]QueuedMessage, 0)
	remaining := q.queue[:0]
	for _, m := range q.queue {
		if !m.DeliverAfter.After(now) {
			ready = append(ready, m)
		} else {
			remaining = append(remaining, m)
		}
	}
	q.queue = remaining
	return ready
}

// UserQueue returns the pending messages for a user without removing
// them.
func (q *MessageQueue) UserQueue(userID string) []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]QueuedMessage, 0)
	for _, m := range q.queue {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// ClearUser drops all pending messages for a user and returns how many
// were removed.
func (q *MessageQueue) ClearUser(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.queue[:0]
	removed := 0
	for _, m := range q.queue {
		if m.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	q.queue = kept
	return removed
}

// Len reports the number of pending messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
