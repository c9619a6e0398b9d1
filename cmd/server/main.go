package main

import (
	"context"
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/broker"
	"github.com/ktgogineni08-hub/nifty-trader/internal/catalog"
	"github.com/ktgogineni08-hub/nifty-trader/internal/config"
	"github.com/ktgogineni08-hub/nifty-trader/internal/database"
	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/events"
	"github.com/ktgogineni08-hub/nifty-trader/internal/executor"
	"github.com/ktgogineni08-hub/nifty-trader/internal/ledger"
	"github.com/ktgogineni08-hub/nifty-trader/internal/marketclock"
	"github.com/ktgogineni08-hub/nifty-trader/internal/modules/portfolio"
	"github.com/ktgogineni08-hub/nifty-trader/internal/modules/trading"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
	"github.com/ktgogineni08-hub/nifty-trader/internal/quotecache"
	"github.com/ktgogineni08-hub/nifty-trader/internal/risk"
	"github.com/ktgogineni08-hub/nifty-trader/internal/scheduler"
	"github.com/ktgogineni08-hub/nifty-trader/internal/server"
	"github.com/ktgogineni08-hub/nifty-trader/internal/signal"
	"github.com/ktgogineni08-hub/nifty-trader/internal/sizing"
	"github.com/ktgogineni08-hub/nifty-trader/internal/statestore"
	"github.com/ktgogineni08-hub/nifty-trader/internal/tradingloop"
	"github.com/ktgogineni08-hub/nifty-trader/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting nifty-trader")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	session := marketclock.DefaultNSESession()
	session.FlattenBeforeClose = time.Duration(cfg.ExpiryFlattenBeforeCloseMins) * time.Minute
	clock, err := marketclock.New(nil, session, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize market clock")
	}

	quotes := quotecache.New(5 * time.Second)

	// quoteFeed is the one hard external dependency both modes share: a real
	// broker gateway connection used purely to keep the quote cache current.
	// Paper mode never places orders through it, only live mode does.
	quoteFeed := broker.NewRESTBroker(broker.RESTBrokerConfig{
		BaseURL:          cfg.BrokerGatewayURL,
		Name:             "broker-gateway-quotes",
		RateLimitPerSec:  cfg.RateLimitPerSecond,
		RateLimitBurst:   cfg.RateLimitBurst,
		FailureThreshold: cfg.CircuitFailureLimit,
		CooldownSeconds:  cfg.CircuitCooldownSec,
	}, log)

	var br broker.Broker
	fees := money.DefaultIndexOptionsFees()
	if cfg.Mode == config.ModeLive {
		br = quoteFeed
	} else {
		br = broker.NewPaperBroker(money.Paise(cfg.PaperStartingCashPaise), quotes, fees, cfg.PaperSlippageBps, 0)
	}

	catSource := catalog.NewRESTSource(cfg.BrokerGatewayURL, 30*time.Second)
	cat := catalog.New(catSource, log)
	if err := cat.Refresh(context.Background()); err != nil {
		log.Warn().Err(err).Msg("initial catalog refresh failed, continuing with an empty catalog")
	}
	riskCfg := risk.DefaultConfig()
	riskCfg.TradingEnabled = cfg.TradingEnabled
	riskCfg.MaxPositionsPerIndex = cfg.MaxPositionsPerIndex
	riskCfg.MaxRiskPctPerTrade = cfg.RiskPctPerTrade
	riskCfg.MinRiskRewardRatio = cfg.MinRiskRewardRatio
	riskCfg.MaxSectorExposurePct = cfg.MaxSectorExposurePct
	gate := risk.New(riskCfg, clock, log)

	sizingCfg := sizing.DefaultConfig()
	sizingCfg.RiskPctPerTrade = cfg.RiskPctPerTrade
	sizingCfg.MaxPositionPct = cfg.MaxPositionPct
	sizer := sizing.New(sizingCfg)

	aggCfg := signal.DefaultConfig()
	aggCfg.MinConfidence = cfg.MinConfidence
	aggCfg.MinAgreeingStrategies = cfg.MinAgreeingStrategies
	aggregator := signal.New(aggCfg)

	store := statestore.New(cfg.StateFilePath, time.Duration(cfg.PersistIntervalSeconds)*time.Second, log)
	tradeRepo := trading.NewTradeRepository(db.Conn(), log)

	startingCash := money.Paise(cfg.PaperStartingCashPaise)
	book := ledger.New(startingCash, log)
	if !cfg.PaperResetOnStart {
		if snap, found, err := store.Load(); err != nil {
			log.Fatal().Err(err).Msg("failed to load persisted portfolio state")
		} else if found {
			book.Restore(snap)
			log.Info().Time("as_of", snap.AsOf).Msg("restored portfolio state from disk")

			if cfg.Mode == config.ModeLive {
				resolved, err := statestore.Reconcile(context.Background(), br, snap, log)
				if err != nil {
					log.Fatal().Err(err).Msg("startup order reconciliation failed")
				}
				ordersByID := make(map[string]domain.Order, len(snap.OpenOrders))
				for _, o := range snap.OpenOrders {
					ordersByID[o.BrokerOrderID] = o
				}
				for _, status := range resolved {
					if status.State != domain.Filled {
						continue
					}
					o, ok := ordersByID[status.BrokerOrderID]
					if !ok {
						continue
					}
					book.ApplyFill(o.ClientOrderID, o.Symbol, status.FilledQuantity, status.AveragePrice, status.Fees, o.Side, status.UpdatedAt)
				}
			}

			trades, err := tradeRepo.GetAll()
			if err != nil {
				log.Fatal().Err(err).Msg("failed to load trade history for ledger equation validation")
			}
			if err := ledger.ValidateEquation(trades, startingCash, book.Snapshot().Cash); err != nil {
				log.Fatal().Err(err).Msg("ledger equation validation failed at startup")
			}
		}
	}

	evtManager := events.NewManager(log)
	exec := executor.New(br, gate, book, fees, tradeRepo, evtManager, executor.DefaultConfig(), log)

	tradingHandlers := trading.NewHandlers(tradeRepo, log)

	equityLog := portfolio.NewEquityLog()
	analytics := portfolio.NewService(log)
	portfolioHandlers := portfolio.NewHandler(book, tradeRepo, equityLog, analytics, portfolio.DefaultRiskParameters(), log)

	scanner := &noopScanner{} // strategy signal generation is external to this engine
	exits := []tradingloop.ExitChecker{tradingloop.StopTargetExitChecker{}}

	loopCfg := tradingloop.DefaultConfig()
	loopCfg.TickInterval = time.Duration(cfg.TickIntervalSeconds) * time.Second
	loopCfg.PersistInterval = time.Duration(cfg.PersistIntervalSeconds) * time.Second
	loop := tradingloop.New(clock, book, exec, exits, scanner, store, equityLog, quotes, quoteFeed, loopCfg, log)

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()
	if err := registerJobs(sched, cat, log); err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduled jobs")
	}

	srv := server.New(server.Config{
		Port:              cfg.Port,
		Log:               log,
		DevMode:           cfg.DevMode,
		Cfg:               cfg,
		Clock:             clock,
		TradingHandlers:   tradingHandlers,
		PortfolioHandlers: portfolioHandlers,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := loop.Run(ctx); err != nil {
			log.Info().Err(err).Msg("trading loop stopped")
		}
	}()

	log.Info().Int("port", cfg.Port).Str("mode", string(cfg.Mode)).Msg("nifty-trader started")

	quit := make(chan os.Signal, 1)
	osSignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}

	log.Info().Msg("stopped")
}

// noopScanner returns no candidates — strategy signal generation is an
// explicit non-goal of this engine (spec.md §1); a real deployment wires a
// VoteSource backed by whatever external strategy process it runs.
type noopScanner struct{}

func (noopScanner) Scan(ctx context.Context, now time.Time) ([]executor.Request, error) {
	return nil, nil
}

func registerJobs(sched *scheduler.Scheduler, cat *catalog.Catalog, log zerolog.Logger) error {
	return sched.AddJob("0 0 8 * * *", catalogRefreshJob{cat: cat, log: log})
}

type catalogRefreshJob struct {
	cat *catalog.Catalog
	log zerolog.Logger
}

func (j catalogRefreshJob) Name() string { return "catalog-refresh" }

func (j catalogRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return j.cat.Refresh(ctx)
}
