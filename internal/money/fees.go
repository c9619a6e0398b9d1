package money

// Product distinguishes the settlement/margin treatment of a fill, which
// drives which statutory charges apply.
type Product string

const (
	ProductEquityDelivery Product = "CNC"
	ProductEquityIntraday Product = "MIS"
	ProductIndexOptions   Product = "NRML_OPT"
	ProductIndexFutures   Product = "NRML_FUT"
)

// Side of a single leg being charged.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// FillContext carries everything a FeeModel needs to price one leg.
type FillContext struct {
	Product  Product
	Side     Side
	Price    Paise
	Quantity int
}

func (f FillContext) turnover() Paise {
	return f.Price.MulQty(f.Quantity)
}

// FeeModel computes the statutory + brokerage charges for a single fill leg.
// Implementations must be pure functions of FillContext: PaperBroker calls
// this once per simulated fill and the executor calls it to estimate an
// entry's fee for the risk gate; the ledger deducts the fee it is given from
// cash on both legs of a round trip, never just the closing one.
type FeeModel interface {
	Compute(FillContext) Paise
}

// FlatFeeModel charges a single fixed amount regardless of size, useful for
// tests and paper-mode defaults when charges aren't being modeled.
type FlatFeeModel struct {
	Flat Paise
}

func (m FlatFeeModel) Compute(FillContext) Paise { return m.Flat }

// IndianBrokerageModel reproduces NSE-listed statutory charges: brokerage,
// STT, exchange transaction charges, SEBI turnover fees, stamp duty and GST,
// differentiated by product and leg side.
type IndianBrokerageModel struct {
	// BrokerageRate is charged per side, capped at BrokerageCap (0 means
	// no cap). Equity delivery (CNC) conventionally has zero brokerage.
	BrokerageRate float64 // e.g. 0.0003 for 0.03%
	BrokerageCap  Paise   // e.g. Rupees(20)

	// STT rates differ by product and which side it taxes.
	STTBuyRate  float64 // CNC buy: usually 0
	STTSellRate float64

	StampDutyBuyRate float64

	ExchangeTxnRate float64 // 0.0000345 universal
	SEBIRate        float64 // 0.000001 universal
	GSTRate         float64 // 0.18 on (brokerage + exchange txn + SEBI)
}

// DefaultEquityDeliveryFees matches CNC: zero brokerage, STT on both legs,
// stamp duty only on buy.
func DefaultEquityDeliveryFees() IndianBrokerageModel {
	return IndianBrokerageModel{
		BrokerageRate:    0,
		BrokerageCap:     0,
		STTBuyRate:       0.001,
		STTSellRate:      0.001,
		StampDutyBuyRate: 0.00015,
		ExchangeTxnRate:  0.0000345,
		SEBIRate:         0.000001,
		GSTRate:          0.18,
	}
}

// DefaultEquityIntradayFees matches MIS: capped brokerage both legs, STT on
// sell only, smaller stamp duty on buy.
func DefaultEquityIntradayFees() IndianBrokerageModel {
	return IndianBrokerageModel{
		BrokerageRate:    0.0003,
		BrokerageCap:     Rupees(20),
		STTBuyRate:       0,
		STTSellRate:      0.00025,
		StampDutyBuyRate: 0.00003,
		ExchangeTxnRate:  0.0000345,
		SEBIRate:         0.000001,
		GSTRate:          0.18,
	}
}

// DefaultIndexOptionsFees matches NRML options on NSE: same brokerage
// formula as intraday, higher STT on sell reflecting F&O rates.
func DefaultIndexOptionsFees() IndianBrokerageModel {
	return IndianBrokerageModel{
		BrokerageRate:    0.0003,
		BrokerageCap:     Rupees(20),
		STTBuyRate:       0,
		STTSellRate:      0.000625,
		StampDutyBuyRate: 0.00003,
		ExchangeTxnRate:  0.0000345,
		SEBIRate:         0.000001,
		GSTRate:          0.18,
	}
}

// DefaultIndexFuturesFees mirrors options but with the futures STT rate,
// which is lower than the options rate on NSE.
func DefaultIndexFuturesFees() IndianBrokerageModel {
	m := DefaultIndexOptionsFees()
	m.STTSellRate = 0.0000125
	return m
}

func (m IndianBrokerageModel) Compute(f FillContext) Paise {
	turnover := f.turnover()

	brokerage := turnover.ProportionOf(int(m.BrokerageRate*1e7), 1e7)
	if m.BrokerageCap > 0 && brokerage > m.BrokerageCap {
		brokerage = m.BrokerageCap
	}

	var stt Paise
	switch f.Side {
	case Buy:
		stt = turnover.ProportionOf(int(m.STTBuyRate*1e7), 1e7)
	case Sell:
		stt = turnover.ProportionOf(int(m.STTSellRate*1e7), 1e7)
	}

	var stampDuty Paise
	if f.Side == Buy {
		stampDuty = turnover.ProportionOf(int(m.StampDutyBuyRate*1e7), 1e7)
	}

	exchangeTxn := turnover.ProportionOf(int(m.ExchangeTxnRate*1e9), 1e9)
	sebi := turnover.ProportionOf(int(m.SEBIRate*1e9), 1e9)
	gst := (brokerage + exchangeTxn + sebi).ProportionOf(int(m.GSTRate*100), 100)

	return brokerage + stt + stampDuty + exchangeTxn + sebi + gst
}
