package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// RESTSource loads the instrument master from the broker gateway's
// /api/market/instruments endpoint, the same {success, data, error}
// envelope RESTBroker itself speaks.
type RESTSource struct {
	baseURL string
	http    *http.Client
}

func NewRESTSource(baseURL string, timeout time.Duration) *RESTSource {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RESTSource{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type instrumentWire struct {
	Token         int64  `json:"token"`
	Symbol        string `json:"symbol"`
	Underlying    string `json:"underlying"`
	Kind          string `json:"kind"`
	ExpiryUnix    int64  `json:"expiry_unix,omitempty"`
	StrikePaise   int64  `json:"strike_paise,omitempty"`
	OptionType    string `json:"option_type,omitempty"`
	LotSize       int    `json:"lot_size"`
	TickSizePaise int64  `json:"tick_size_paise"`
}

type instrumentsResponse struct {
	Success bool              `json:"success"`
	Data    []instrumentWire  `json:"data"`
	Error   *string           `json:"error"`
}

func (s *RESTSource) LoadInstruments(ctx context.Context) ([]domain.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/market/instruments", nil)
	if err != nil {
		return nil, errs.New(errs.ValidationError, "catalog.RESTSource.LoadInstruments", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errs.New(errs.TransientBroker, "catalog.RESTSource.LoadInstruments", err)
	}
	defer resp.Body.Close()

	var body instrumentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errs.New(errs.TransientBroker, "catalog.RESTSource.LoadInstruments", err)
	}
	if !body.Success {
		msg := "unknown error"
		if body.Error != nil {
			msg = *body.Error
		}
		return nil, errs.New(errs.TransientBroker, "catalog.RESTSource.LoadInstruments", fmt.Errorf("%s", msg))
	}

	out := make([]domain.Instrument, len(body.Data))
	for i, w := range body.Data {
		inst := domain.Instrument{
			Token:      w.Token,
			Symbol:     w.Symbol,
			Underlying: w.Underlying,
			Kind:       domain.InstrumentKind(w.Kind),
			Strike:     money.Paise(w.StrikePaise),
			OptionType: domain.OptionType(w.OptionType),
			LotSize:    w.LotSize,
			TickSize:   money.Paise(w.TickSizePaise),
		}
		if w.ExpiryUnix > 0 {
			inst.Expiry = time.Unix(w.ExpiryUnix, 0)
		}
		out[i] = inst
	}
	return out, nil
}
