package trading

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktgogineni08-hub/nifty-trader/internal/database"
	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

func TestValidate(t *testing.T) {
	valid := domain.Trade{
		ClientOrderID: "order-1",
		Symbol:        "NIFTY24JUL25000CE",
		Side:          domain.SideBuy,
		Quantity:      50,
		Price:         money.Rupees(100),
	}
	assert.NoError(t, Validate(valid))

	noSymbol := valid
	noSymbol.Symbol = "  "
	assert.Error(t, Validate(noSymbol))

	badSide := valid
	badSide.Side = "HOLD"
	assert.Error(t, Validate(badSide))

	zeroQty := valid
	zeroQty.Quantity = 0
	assert.Error(t, Validate(zeroQty))

	zeroPrice := valid
	zeroPrice.Price = 0
	assert.Error(t, Validate(zeroPrice))

	noClientOrderID := valid
	noClientOrderID.ClientOrderID = ""
	assert.Error(t, Validate(noClientOrderID))
}

func TestSummarize(t *testing.T) {
	trades := []domain.Trade{
		{Side: domain.SideBuy, Fees: money.Rupees(1), RealizedPnL: 0},
		{Side: domain.SideSell, Fees: money.Rupees(1), RealizedPnL: money.Rupees(50)},
		{Side: domain.SideSell, Fees: money.Rupees(1), RealizedPnL: -money.Rupees(20)},
	}

	s := Summarize(trades)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, s.BuyCount)
	assert.Equal(t, 2, s.SellCount)
	assert.Equal(t, int64(money.Rupees(3)), s.TotalFees)
	assert.Equal(t, int64(money.Rupees(30)), s.TotalRealizedPnL)
}

func newTestRepo(t *testing.T) *TradeRepository {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewTradeRepository(db.Conn(), zerolog.Nop())
}

func TestRecordAndGetHistory(t *testing.T) {
	repo := newTestRepo(t)

	trade := domain.Trade{
		ClientOrderID: "order-1",
		Symbol:        "niftysym",
		Side:          domain.SideBuy,
		Quantity:      50,
		Price:         money.Rupees(100),
		Fees:          money.Rupees(2),
		ExecutedAt:    time.Now(),
	}
	require.NoError(t, repo.Record(trade))

	exists, err := repo.Exists("order-1")
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := repo.Exists("order-does-not-exist")
	require.NoError(t, err)
	assert.False(t, missing)

	history, err := repo.GetHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "NIFTYSYM", history[0].Symbol) // stored upper-cased
	assert.Equal(t, money.Rupees(100), history[0].Price)
}

func TestGetBySymbolFiltersAndOrdersNewestFirst(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Now()
	require.NoError(t, repo.Record(domain.Trade{ClientOrderID: "a", Symbol: "SYM1", Side: domain.SideBuy, Quantity: 1, Price: money.Rupees(1), ExecutedAt: base}))
	require.NoError(t, repo.Record(domain.Trade{ClientOrderID: "b", Symbol: "SYM1", Side: domain.SideSell, Quantity: 1, Price: money.Rupees(1), ExecutedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Record(domain.Trade{ClientOrderID: "c", Symbol: "SYM2", Side: domain.SideBuy, Quantity: 1, Price: money.Rupees(1), ExecutedAt: base}))

	rows, err := repo.GetBySymbol("sym1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].ClientOrderID) // newest first
}

func TestGetTradeCountToday(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Record(domain.Trade{ClientOrderID: "a", Symbol: "SYM", Side: domain.SideBuy, Quantity: 1, Price: money.Rupees(1), ExecutedAt: time.Now()}))

	count, err := repo.GetTradeCountToday()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}
