package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipbot/gopip/internal/domain"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_StageEvents(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	evt := domain.StageEvent{
		Symbol: "EURUSD",
		Stage:  1,
		Snapshot: domain.PriceSnapshot{
			Symbol:         "EURUSD",
			ThresholdRatio: 1.23,
		},
	}
	j.RecordStageEvent(ctx, evt, day)

	rows, err := j.ListStageEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EURUSD", rows[0].Symbol)
	assert.Equal(t, 1, rows[0].Stage)
	assert.InDelta(t, 1.23, rows[0].Ratio, 1e-9)
	assert.Equal(t, "2026-08-20", rows[0].TradingDay)
}

func TestJournal_Orders(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	ok := domain.TradeDecision{
		Signal: domain.SignalOpen,
		Symbol: "EURUSD",
		Side:   domain.SideLong,
		Ratio:  1.10,
	}
	j.RecordOrder(ctx, ok, 1.1033, nil)

	failed := domain.TradeDecision{
		Signal: domain.SignalClose,
		Symbol: "USDJPY",
		Side:   domain.SideShort,
		Ratio:  1.85,
	}
	j.RecordOrder(ctx, failed, 0, fmt.Errorf("MARKET_CLOSED"))

	rows, err := j.ListOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byStatus := map[string]OrderRow{}
	for _, r := range rows {
		byStatus[r.Status] = r
	}
	assert.Equal(t, "EURUSD", byStatus["ok"].Symbol)
	assert.Equal(t, string(domain.SignalOpen), byStatus["ok"].Signal)
	assert.InDelta(t, 1.1033, byStatus["ok"].Price, 1e-9)
	assert.Equal(t, "USDJPY", byStatus["error"].Symbol)
	assert.Contains(t, byStatus["error"].Error, "MARKET_CLOSED")
}

func TestJournal_NilReceiverSafe(t *testing.T) {
	var j *Journal
	// 未启用流水时调用方可以直接透传 nil
	j.RecordStageEvent(context.Background(), domain.StageEvent{}, time.Now())
	j.RecordOrder(context.Background(), domain.TradeDecision{}, 0, nil)
	assert.NoError(t, j.Close())
}
