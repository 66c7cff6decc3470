package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionType enumerates the deferred state transitions an order can await.
type ActionType string

const (
	// ActionSubmit acknowledges an order after submission latency.
	ActionSubmit ActionType = "SUBMIT"
	// ActionFill executes a trade after fill latency.
	ActionFill ActionType = "FILL"
	// ActionCancel cancels an order after cancellation latency.
	ActionCancel ActionType = "CANCEL"
)

// PendingAction is a scheduled future transition with its trigger time.
// Fill actions carry the market price captured when the fill was
// scheduled; latency delays confirmation but never changes the matched
// price.
type PendingAction struct {
	Type        ActionType
	OrderID     string
	ScheduledAt time.Time
	Price       *decimal.Decimal
}

// PendingQueue is a time-ordered queue of pending actions. Actions with
// equal scheduled times preserve arrival order.
type PendingQueue struct {
	actions []PendingAction
}

// NewPendingQueue returns an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{actions: nil}
}

// Add inserts the action before the first entry whose scheduled time
// strictly exceeds it, keeping equal-time actions FIFO.
func (q *PendingQueue) Add(action PendingAction) {
	idx := len(q.actions)
	for i, existing := range q.actions {
		if existing.ScheduledAt.After(action.ScheduledAt) {
			idx = i
			break
		}
	}
	q.actions = append(q.actions, PendingAction{})
	copy(q.actions[idx+1:], q.actions[idx:])
	q.actions[idx] = action
}

// PopDue removes and returns, in ascending time order, every action
// scheduled at or before now.
func (q *PendingQueue) PopDue(now time.Time) []PendingAction {
	cut := 0
	for cut < len(q.actions) && !q.actions[cut].ScheduledAt.After(now) {
		cut++
	}
	if cut == 0 {
		return nil
	}
	due := make([]PendingAction, cut)
	copy(due, q.actions[:cut])
	q.actions = q.actions[cut:]
	return due
}

// CancelOrder removes every queued action referencing the order id and
// returns the removed count.
func (q *PendingQueue) CancelOrder(orderID string) int {
	kept := q.actions[:0]
	removed := 0
	for _, action := range q.actions {
		if action.OrderID == orderID {
			removed++
			continue
		}
		kept = append(kept, action)
	}
	q.actions = kept
	return removed
}

// PendingFor returns a copy of the queued actions for the order id.
func (q *PendingQueue) PendingFor(orderID string) []PendingAction {
	var out []PendingAction
	for _, action := range q.actions {
		if action.OrderID == orderID {
			out = append(out, action)
		}
	}
	return out
}

// Len returns the number of queued actions.
func (q *PendingQueue) Len() int {
	return len(q.actions)
}

// Clear empties the queue.
func (q *PendingQueue) Clear() {
	q.actions = nil
}
