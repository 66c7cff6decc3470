package archive

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/simbroker/errs"
	"github.com/coachpo/simbroker/internal/schema"
)

func archivedOrder(id, symbol string, createdAt time.Time) *schema.Order {
	order := schema.NewOrder(id, symbol, schema.TradeSideBuy, schema.OrderTypeMarket,
		decimal.NewFromInt(10), nil, createdAt)
	order.Cancel(createdAt.Add(time.Second))
	return order
}

func TestArchiveRejectsLiveOrders(t *testing.T) {
	a := NewMemoryArchive()
	live := schema.NewOrder("live", "SPY", schema.TradeSideBuy, schema.OrderTypeMarket,
		decimal.NewFromInt(1), nil, time.Now())

	err := a.Archive(context.Background(), live)
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalid, errs.CodeOf(err))
	require.Zero(t, a.Len())
}

func TestArchiveGetReturnsDetachedCopy(t *testing.T) {
	a := NewMemoryArchive()
	created := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, a.Archive(context.Background(), archivedOrder("o1", "SPY", created)))

	got, err := a.Get(context.Background(), "o1")
	require.NoError(t, err)
	got.Symbol = "QQQ"

	again, err := a.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, "SPY", again.Symbol)

	_, err = a.Get(context.Background(), "ghost")
	require.True(t, errs.IsNotFound(err))
}

func TestArchiveListFilters(t *testing.T) {
	a := NewMemoryArchive()
	ctx := context.Background()
	day1 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

	require.NoError(t, a.Archive(ctx, archivedOrder("a", "SPY", day1)))
	require.NoError(t, a.Archive(ctx, archivedOrder("b", "QQQ", day1.Add(time.Minute))))
	require.NoError(t, a.Archive(ctx, archivedOrder("c", "SPY", day2)))

	byDay, err := a.List(ctx, Query{Day: day1})
	require.NoError(t, err)
	require.Len(t, byDay, 2)
	require.Equal(t, "a", byDay[0].OrderID)
	require.Equal(t, "b", byDay[1].OrderID)

	bySymbol, err := a.List(ctx, Query{Symbol: "SPY"})
	require.NoError(t, err)
	require.Len(t, bySymbol, 2)

	limited, err := a.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "a", limited[0].OrderID)
}
