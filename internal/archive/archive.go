// Package archive defines the order-history sink fed by the simulator
// once orders reach a terminal state.
package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coachpo/simbroker/errs"
	"github.com/coachpo/simbroker/internal/schema"
)

// Query scopes archived-order lookups. Zero fields match everything.
type Query struct {
	Symbol string
	Status schema.OrderStatus
	Day    time.Time
	Limit  int
}

// Archiver is the write-side contract for completed orders. Records
// are keyed by order id and partitioned by creation date.
type Archiver interface {
	Archive(ctx context.Context, order *schema.Order) error
	Get(ctx context.Context, orderID string) (*schema.Order, error)
	List(ctx context.Context, query Query) ([]*schema.Order, error)
}

// MemoryArchive is an in-process Archiver used by the CLI and tests.
type MemoryArchive struct {
	mu     sync.RWMutex
	byID   map[string]*schema.Order
	byDate map[string][]string
}

// NewMemoryArchive returns an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		byID:   make(map[string]*schema.Order),
		byDate: make(map[string][]string),
	}
}

// Archive stores a deep copy of the order. Only terminal orders are
// accepted; re-archiving the same id replaces the stored copy.
func (a *MemoryArchive) Archive(_ context.Context, order *schema.Order) error {
	if order == nil {
		return errs.New("archive", errs.CodeInvalid, errs.WithMessage("nil order"))
	}
	if !order.IsTerminal() {
		return errs.New("archive", errs.CodeInvalid,
			errs.WithMessage("order "+order.OrderID+" is not terminal"))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.byID[order.OrderID]; !seen {
		day := dateKey(order.CreatedAt)
		a.byDate[day] = append(a.byDate[day], order.OrderID)
	}
	a.byID[order.OrderID] = order.Clone()
	return nil
}

// Get returns a copy of the archived order.
func (a *MemoryArchive) Get(_ context.Context, orderID string) (*schema.Order, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	order, ok := a.byID[orderID]
	if !ok {
		return nil, errs.New("archive", errs.CodeNotFound,
			errs.WithMessage("order "+orderID+" not archived"))
	}
	return order.Clone(), nil
}

// List returns copies of matching orders, oldest first.
func (a *MemoryArchive) List(_ context.Context, query Query) ([]*schema.Order, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var ids []string
	if !query.Day.IsZero() {
		ids = a.byDate[dateKey(query.Day)]
	} else {
		for id := range a.byID {
			ids = append(ids, id)
		}
	}

	var out []*schema.Order
	for _, id := range ids {
		order := a.byID[id]
		if query.Symbol != "" && order.Symbol != query.Symbol {
			continue
		}
		if query.Status != "" && order.Status != query.Status {
			continue
		}
		out = append(out, order.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// Len returns the number of archived orders.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byID)
}

func dateKey(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}
