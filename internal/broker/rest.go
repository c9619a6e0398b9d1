package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// RESTBroker talks to a broker gateway microservice over HTTP, the same
// request/response shape the gateway client used for the portfolio API:
// a POST/GET wrapper returning {success, data, error}.
type RESTBroker struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
	limiter *TokenBucket
	breaker *CircuitBreaker
	name    string
}

type serviceResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

// RESTBrokerConfig configures rate limiting and circuit breaking for one
// broker connection.
type RESTBrokerConfig struct {
	BaseURL          string
	Name             string
	RateLimitPerSec  float64
	RateLimitBurst   int
	FailureThreshold int
	CooldownSeconds  int
	Timeout          time.Duration
}

func NewRESTBroker(cfg RESTBrokerConfig, log zerolog.Logger) *RESTBroker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 3
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CooldownSeconds <= 0 {
		cfg.CooldownSeconds = 30
	}
	return &RESTBroker{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "broker").Str("broker", cfg.Name).Logger(),
		limiter: NewTokenBucket(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		breaker: NewCircuitBreaker(cfg.FailureThreshold, time.Duration(cfg.CooldownSeconds)*time.Second),
		name:    cfg.Name,
	}
}

func (b *RESTBroker) Name() string { return b.name }

func (b *RESTBroker) do(ctx context.Context, method, path string, body interface{}) (*serviceResponse, error) {
	if !b.breaker.Allow() {
		return nil, errs.New(errs.TransientBroker, "broker.do", fmt.Errorf("circuit open for %s", b.name))
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.RateLimited, "broker.do", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errs.New(errs.ValidationError, "broker.do", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, errs.New(errs.ValidationError, "broker.do", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		b.recordFailure()
		return nil, errs.New(errs.TransientBroker, "broker.do", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		b.recordFailure()
		return nil, errs.New(errs.TransientBroker, "broker.do", err)
	}

	if resp.StatusCode >= 500 {
		b.recordFailure()
		return nil, errs.New(errs.TransientBroker, "broker.do", fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}

	var sr serviceResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		b.recordFailure()
		return nil, errs.New(errs.TransientBroker, "broker.do", err)
	}
	if !sr.Success {
		msg := "unknown error"
		if sr.Error != nil {
			msg = *sr.Error
		}
		// a well-formed rejection is not a transport failure; don't trip the breaker.
		b.recordSuccess()
		return &sr, errs.New(errs.OrderRejected, "broker.do", fmt.Errorf("%s", msg))
	}

	b.recordSuccess()
	return &sr, nil
}

// recordFailure and recordSuccess wrap CircuitBreaker's state transitions
// with the CIRCUIT_TRIPPED/CIRCUIT_RECOVERED log lines operators watch for.
func (b *RESTBroker) recordFailure() {
	wasTripped := b.breaker.Tripped()
	b.breaker.RecordFailure()
	if !wasTripped && b.breaker.Tripped() {
		b.log.Warn().Str("broker", b.name).Msg("CIRCUIT_TRIPPED: broker circuit breaker opened")
	}
}

func (b *RESTBroker) recordSuccess() {
	wasTripped := b.breaker.Tripped()
	b.breaker.RecordSuccess()
	if wasTripped {
		b.log.Info().Str("broker", b.name).Msg("CIRCUIT_RECOVERED: broker circuit breaker closed")
	}
}

type placeOrderWire struct {
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Product       string `json:"product"`
	Quantity      int    `json:"quantity"`
	LimitPricePaise int64 `json:"limit_price_paise,omitempty"`
}

type placeOrderResultWire struct {
	BrokerOrderID string `json:"broker_order_id"`
}

func (b *RESTBroker) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	wire := placeOrderWire{
		ClientOrderID:   req.ClientOrderID,
		Symbol:          req.Symbol,
		Side:            string(req.Side),
		Product:         string(req.Product),
		Quantity:        req.Quantity,
		LimitPricePaise: int64(req.LimitPrice),
	}
	sr, err := b.do(ctx, http.MethodPost, "/api/trading/place-order", wire)
	if err != nil {
		return "", err
	}
	var result placeOrderResultWire
	if err := json.Unmarshal(sr.Data, &result); err != nil {
		return "", errs.New(errs.TransientBroker, "broker.PlaceOrder", err)
	}
	return result.BrokerOrderID, nil
}

type orderStatusWire struct {
	BrokerOrderID    string `json:"broker_order_id"`
	ClientOrderID    string `json:"client_order_id"`
	State            string `json:"state"`
	FilledQuantity   int    `json:"filled_quantity"`
	AveragePriceP    int64  `json:"average_price_paise"`
	FeesP            int64  `json:"fees_paise"`
	UpdatedAtUnixSec int64  `json:"updated_at_unix"`
}

func (w orderStatusWire) toStatus() OrderStatus {
	return OrderStatus{
		BrokerOrderID:  w.BrokerOrderID,
		ClientOrderID:  w.ClientOrderID,
		State:          domain.OrderState(w.State),
		FilledQuantity: w.FilledQuantity,
		AveragePrice:   money.Paise(w.AveragePriceP),
		Fees:           money.Paise(w.FeesP),
		UpdatedAt:      time.Unix(w.UpdatedAtUnixSec, 0),
	}
}

func (b *RESTBroker) GetOrder(ctx context.Context, brokerOrderID string) (OrderStatus, error) {
	sr, err := b.do(ctx, http.MethodGet, "/api/trading/orders/"+brokerOrderID, nil)
	if err != nil {
		return OrderStatus{}, err
	}
	var w orderStatusWire
	if err := json.Unmarshal(sr.Data, &w); err != nil {
		return OrderStatus{}, errs.New(errs.TransientBroker, "broker.GetOrder", err)
	}
	return w.toStatus(), nil
}

func (b *RESTBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	_, err := b.do(ctx, http.MethodPost, "/api/trading/orders/"+brokerOrderID+"/cancel", nil)
	return err
}

func (b *RESTBroker) GetOpenOrders(ctx context.Context) ([]OrderStatus, error) {
	sr, err := b.do(ctx, http.MethodGet, "/api/trading/orders/open", nil)
	if err != nil {
		return nil, err
	}
	var wires []orderStatusWire
	if err := json.Unmarshal(sr.Data, &wires); err != nil {
		return nil, errs.New(errs.TransientBroker, "broker.GetOpenOrders", err)
	}
	out := make([]OrderStatus, len(wires))
	for i, w := range wires {
		out[i] = w.toStatus()
	}
	return out, nil
}

type quoteWire struct {
	Symbol      string `json:"symbol"`
	LTPPaise    int64  `json:"ltp_paise"`
	BidPaise    int64  `json:"bid_paise"`
	AskPaise    int64  `json:"ask_paise"`
	TimestampUx int64  `json:"timestamp_unix"`
}

func (b *RESTBroker) Quote(ctx context.Context, symbol string) (Quote, error) {
	sr, err := b.do(ctx, http.MethodGet, "/api/market/quote?symbol="+symbol, nil)
	if err != nil {
		return Quote{}, err
	}
	var w quoteWire
	if err := json.Unmarshal(sr.Data, &w); err != nil {
		return Quote{}, errs.New(errs.TransientBroker, "broker.Quote", err)
	}
	return Quote{
		Symbol:    w.Symbol,
		LTP:       money.Paise(w.LTPPaise),
		Bid:       money.Paise(w.BidPaise),
		Ask:       money.Paise(w.AskPaise),
		Timestamp: time.Unix(w.TimestampUx, 0),
	}, nil
}

type quotesRequestWire struct {
	Symbols []string `json:"symbols"`
}

// Quotes fetches every symbol in one POST rather than one GET per symbol,
// the batched form the gateway expects for watch-list-sized requests.
func (b *RESTBroker) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	sr, err := b.do(ctx, http.MethodPost, "/api/market/quotes", quotesRequestWire{Symbols: symbols})
	if err != nil {
		return nil, err
	}
	var wires []quoteWire
	if err := json.Unmarshal(sr.Data, &wires); err != nil {
		return nil, errs.New(errs.TransientBroker, "broker.Quotes", err)
	}
	out := make(map[string]Quote, len(wires))
	for _, w := range wires {
		out[w.Symbol] = Quote{
			Symbol:    w.Symbol,
			LTP:       money.Paise(w.LTPPaise),
			Bid:       money.Paise(w.BidPaise),
			Ask:       money.Paise(w.AskPaise),
			Timestamp: time.Unix(w.TimestampUx, 0),
		}
	}
	return out, nil
}

type marginForRequestWire struct {
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Product         string `json:"product"`
	Quantity        int    `json:"quantity"`
	LimitPricePaise int64  `json:"limit_price_paise,omitempty"`
}

type marginForResultWire struct {
	RequiredMarginPaise int64 `json:"required_margin_paise"`
}

// MarginFor asks the gateway for the product-specific margin it would
// actually hold against req, rather than assuming full notional.
func (b *RESTBroker) MarginFor(ctx context.Context, req OrderRequest) (money.Paise, error) {
	wire := marginForRequestWire{
		Symbol:          req.Symbol,
		Side:            string(req.Side),
		Product:         string(req.Product),
		Quantity:        req.Quantity,
		LimitPricePaise: int64(req.LimitPrice),
	}
	sr, err := b.do(ctx, http.MethodPost, "/api/trading/margin-for", wire)
	if err != nil {
		return 0, err
	}
	var w marginForResultWire
	if err := json.Unmarshal(sr.Data, &w); err != nil {
		return 0, errs.New(errs.TransientBroker, "broker.MarginFor", err)
	}
	return money.Paise(w.RequiredMarginPaise), nil
}

type marginsWire struct {
	AvailableCashPaise int64 `json:"available_cash_paise"`
	UsedMarginPaise    int64 `json:"used_margin_paise"`
}

func (b *RESTBroker) Margins(ctx context.Context) (Margins, error) {
	sr, err := b.do(ctx, http.MethodGet, "/api/portfolio/margins", nil)
	if err != nil {
		return Margins{}, err
	}
	var w marginsWire
	if err := json.Unmarshal(sr.Data, &w); err != nil {
		return Margins{}, errs.New(errs.TransientBroker, "broker.Margins", err)
	}
	return Margins{
		AvailableCash: money.Paise(w.AvailableCashPaise),
		UsedMargin:    money.Paise(w.UsedMarginPaise),
	}, nil
}
