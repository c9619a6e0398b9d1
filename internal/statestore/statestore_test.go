package statestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktgogineni08-hub/nifty-trader/internal/broker"
	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

func testSnapshot() domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{
		AsOf:  time.Now(),
		Cash:  money.Rupees(500000),
		Positions: []domain.Position{
			{Symbol: "NIFTY24JUL25000CE", Quantity: 50, AvgPrice: money.Rupees(100)},
		},
	}
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	s := New(path, time.Millisecond, zerolog.Nop())

	snap := testSnapshot()
	require.NoError(t, s.Save(snap, true))

	loaded, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.Cash, loaded.Cash)
	require.Len(t, loaded.Positions, 1)
	assert.Equal(t, "NIFTY24JUL25000CE", loaded.Positions[0].Symbol)
}

func TestLoad_MissingFileReturnsNotOkNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := New(path, time.Millisecond, zerolog.Nop())

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_ChecksumMismatchIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	s := New(path, time.Millisecond, zerolog.Nop())
	require.NoError(t, s.Save(testSnapshot(), true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc["cash_paise"] = 99999999 // mutate a field without touching the stored checksum
	tampered, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tampered, 0644))

	_, _, err = s.Load()
	assert.Error(t, err)
}

func TestSave_ThrottlesWithinMinInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	s := New(path, time.Hour, zerolog.Nop())

	require.NoError(t, s.Save(testSnapshot(), true))
	info1, err := os.Stat(path)
	require.NoError(t, err)

	// non-forced save within minInterval must be a no-op, not even touching the file
	snap2 := testSnapshot()
	snap2.Cash = money.Rupees(999999)
	require.NoError(t, s.Save(snap2, false))

	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestSave_ForceBypassesThrottle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	s := New(path, time.Hour, zerolog.Nop())

	require.NoError(t, s.Save(testSnapshot(), true))

	snap2 := testSnapshot()
	snap2.Cash = money.Rupees(999999)
	require.NoError(t, s.Save(snap2, true))

	loaded, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, money.Rupees(999999), loaded.Cash)
}

type fakeReconcileBroker struct {
	statuses map[string]broker.OrderStatus
}

func (f fakeReconcileBroker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	return "", nil
}
func (f fakeReconcileBroker) GetOrder(ctx context.Context, brokerOrderID string) (broker.OrderStatus, error) {
	st, ok := f.statuses[brokerOrderID]
	if !ok {
		return broker.OrderStatus{}, assertErr{}
	}
	return st, nil
}
func (f fakeReconcileBroker) CancelOrder(ctx context.Context, brokerOrderID string) error { return nil }
func (f fakeReconcileBroker) GetOpenOrders(ctx context.Context) ([]broker.OrderStatus, error) {
	return nil, nil
}
func (f fakeReconcileBroker) Quote(ctx context.Context, symbol string) (broker.Quote, error) {
	return broker.Quote{}, nil
}
func (f fakeReconcileBroker) Quotes(ctx context.Context, symbols []string) (map[string]broker.Quote, error) {
	return nil, nil
}
func (f fakeReconcileBroker) MarginFor(ctx context.Context, req broker.OrderRequest) (money.Paise, error) {
	return 0, nil
}
func (f fakeReconcileBroker) Margins(ctx context.Context) (broker.Margins, error) {
	return broker.Margins{}, nil
}
func (f fakeReconcileBroker) Name() string { return "fake" }

type assertErr struct{}

func (assertErr) Error() string { return "not found" }

func TestReconcile_OnlyReturnsTerminalOrders(t *testing.T) {
	br := fakeReconcileBroker{statuses: map[string]broker.OrderStatus{
		"bo-1": {BrokerOrderID: "bo-1", State: domain.Filled},
		"bo-2": {BrokerOrderID: "bo-2", State: domain.Placed},
	}}
	snap := domain.PortfolioSnapshot{OpenOrders: []domain.Order{
		{ClientOrderID: "c1", BrokerOrderID: "bo-1"},
		{ClientOrderID: "c2", BrokerOrderID: "bo-2"},
		{ClientOrderID: "c3", BrokerOrderID: ""}, // never placed at the broker, skipped
	}}

	resolved, err := Reconcile(context.Background(), br, snap, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "bo-1", resolved[0].BrokerOrderID)
}
