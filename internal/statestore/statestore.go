// Package statestore persists Portfolio snapshots to a single JSON file
// with atomic write-then-rename, and reconciles open orders against the
// broker at startup in live mode.
package statestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/broker"
	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

const schemaVersion = 1

// document is the on-disk schema, versioned and checksummed.
type document struct {
	Version        int                     `json:"version"`
	AsOf           time.Time               `json:"as_of"`
	CashPaise      int64                   `json:"cash_paise"`
	Positions      []domain.Position       `json:"positions"`
	OpenOrders     []domain.Order          `json:"open_orders"`
	RealizedPnLDay int64                   `json:"realized_pnl_day_paise"`
	Checksum       string                  `json:"checksum"`
}

func (d document) computeChecksum() string {
	d.Checksum = ""
	raw, _ := json.Marshal(d)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Store persists and restores PortfolioSnapshot to a single file path.
type Store struct {
	mu            sync.Mutex
	path          string
	lastPersisted time.Time
	minInterval   time.Duration
	log           zerolog.Logger
}

func New(path string, minInterval time.Duration, log zerolog.Logger) *Store {
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	return &Store{path: path, minInterval: minInterval, log: log.With().Str("component", "statestore").Logger()}
}

// Save writes snap to disk via a temp-file-then-rename, skipping the write
// if called again before minInterval has elapsed since the last persist
// (force bypasses the throttle, used on graceful shutdown).
func (s *Store) Save(snap domain.PortfolioSnapshot, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && time.Since(s.lastPersisted) < s.minInterval {
		return nil
	}

	doc := document{
		Version:        schemaVersion,
		AsOf:           snap.AsOf,
		CashPaise:      int64(snap.Cash),
		Positions:      snap.Positions,
		OpenOrders:     snap.OpenOrders,
		RealizedPnLDay: int64(snap.RealizedPnLDay),
	}
	doc.Checksum = doc.computeChecksum()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.New(errs.StateIntegrity, "statestore.Save", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errs.New(errs.StateIntegrity, "statestore.Save", err)
	}
	if err := os.WriteFile(tempPath, raw, 0644); err != nil {
		return errs.New(errs.StateIntegrity, "statestore.Save", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errs.New(errs.StateIntegrity, "statestore.Save", err)
	}

	s.lastPersisted = time.Now()
	return nil
}

// Load reads and validates the persisted snapshot. A checksum mismatch is
// a StateIntegrity error and must abort startup rather than proceed on
// possibly-corrupt state.
func (s *Store) Load() (domain.PortfolioSnapshot, bool, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.PortfolioSnapshot{}, false, nil
	}
	if err != nil {
		return domain.PortfolioSnapshot{}, false, errs.New(errs.StateIntegrity, "statestore.Load", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.PortfolioSnapshot{}, false, errs.New(errs.StateIntegrity, "statestore.Load", err)
	}

	want := doc.computeChecksum()
	if want != doc.Checksum {
		return domain.PortfolioSnapshot{}, false, errs.New(errs.StateIntegrity, "statestore.Load",
			fmt.Errorf("checksum mismatch: file may be corrupt or hand-edited"))
	}

	snap := domain.PortfolioSnapshot{
		AsOf:           doc.AsOf,
		Cash:           money.Paise(doc.CashPaise),
		Positions:      doc.Positions,
		OpenOrders:     doc.OpenOrders,
		RealizedPnLDay: money.Paise(doc.RealizedPnLDay),
	}
	return snap, true, nil
}

// Reconcile polls the broker's current status for every open order in
// snap and returns the orders that resolved to a terminal state since the
// last persist. Paper mode should never call this — the snapshot itself
// is the sole source of truth there, since there is no external broker
// position to drift against.
func Reconcile(ctx context.Context, br broker.Broker, snap domain.PortfolioSnapshot, log zerolog.Logger) ([]broker.OrderStatus, error) {
	resolved := make([]broker.OrderStatus, 0, len(snap.OpenOrders))
	for _, o := range snap.OpenOrders {
		if o.BrokerOrderID == "" {
			continue
		}
		status, err := br.GetOrder(ctx, o.BrokerOrderID)
		if err != nil {
			log.Warn().Str("client_order_id", o.ClientOrderID).Err(err).Msg("could not reconcile open order at startup")
			continue
		}
		if status.State.Terminal() {
			resolved = append(resolved, status)
		}
	}
	return resolved, nil
}

