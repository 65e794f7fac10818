// Package main wires every component described across internal/ into a
// running engine process: config, persistence, control plane, breakers,
// risk, the entry-gate pipeline, an executor, the trading loop, the live
// event stream, and the Prometheus/health HTTP surface. Grounded on the
// teacher's main.go boot sequence (load env -> load config -> wire broker ->
// start metrics server -> run loop -> graceful shutdown), generalized from
// one hardcoded Trader to the full dependency-injected engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/breakers"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/clock"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/config"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/control"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/ensemble"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/eventstream"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/exchange"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/execution"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/gates"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/metrics"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/persistence"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/risk"
	"github.com/riverahendrick/quantsail-bot-sub001/internal/tradingloop"

	"github.com/google/uuid"
)

func main() {
	var intervalSec int
	var port int
	flag.IntVar(&intervalSec, "interval", 15, "Trading loop tick interval in seconds")
	flag.IntVar(&port, "port", 8080, "HTTP port for /healthz and /metrics")
	flag.Parse()

	config.LoadDotEnv()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	clk := clock.Real{}

	repo, err := openRepository(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open persistence layer")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing persistence layer")
		}
	}()

	ctrl, newsCache := buildControlPlane(log, clk)

	breakerMgr := breakers.NewManager(cfg.Breakers, repo, newsCache, clk)
	dailyLock := risk.NewDailyLock(cfg.Daily, repo, clk)
	if pnls, err := repo.TodayClosedPnLs(context.Background()); err == nil {
		dailyLock.SeedPeak(pnls)
	}
	trailing := risk.NewTrailingStopManager(cfg.TrailingStop)

	adapter := buildExchangeAdapter(log, cfg)
	provider := adapterAsProvider(adapter)

	entryGates := buildEntryGates(cfg, provider, repo, breakerMgr)

	executor := buildExecutor(cfg, clk, adapter, repo)

	events := repo
	engine := tradingloop.NewEngine(cfg, ctrl, breakerMgr, dailyLock, trailing, entryGates, executor, repo, provider, events, clk)

	if err := engine.Restore(context.Background()); err != nil {
		log.Error().Err(err).Msg("failed to restore open positions from persistence")
	}

	if cfg.Execution.Mode == config.ExecutionModeLive {
		open, err := repo.GetOpenTrades(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("reconcile: failed to load open trades")
		} else if err := execution.Reconcile(context.Background(), adapter, open, repo); err != nil {
			log.Error().Err(err).Msg("reconcile failed")
		}
	}

	hub := eventstream.NewHub()
	streamServer := eventstream.NewServer(hub, repo, newBearerAuthenticator())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/stream", streamServer)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go hub.Run(ctx)

	go func() {
		log.Info().Int("port", port).Msg("serving /healthz, /metrics, /stream")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	metrics.SetBotState(string(control.BotStateStopped),
		[]string{string(control.BotStateStopped), string(control.BotStateArmed), string(control.BotStateRunning), string(control.BotStatePausedEntries)})

	log.Info().
		Str("mode", string(cfg.Execution.Mode)).
		Strs("symbols", cfg.Symbols.Enabled).
		Int("interval_sec", intervalSec).
		Msg("quantsail engine starting")

	engine.Run(ctx, time.Duration(intervalSec)*time.Second)

	shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("quantsail engine stopped")
}

// openRepository connects to MySQL via QUANTSAIL_DATABASE_URL. Grounded on
// chidi150c-coinbase/main.go's env-driven wiring, generalized from a flat
// broker selection to a persistence DSN.
func openRepository(log zerolog.Logger) (*persistence.Repository, error) {
	dsn := os.Getenv("QUANTSAIL_DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("QUANTSAIL_DATABASE_URL is required (MySQL DSN, e.g. user:pass@tcp(host:3306)/quantsail?parseTime=True&loc=UTC)")
	}
	return persistence.NewRepository(dsn)
}

// buildControlPlane prefers a shared Redis instance (QUANTSAIL_REDIS_URL)
// so the dashboard/API process and the engine process observe the same bot
// state; falling back to an in-memory control plane keeps single-process
// dry-run/dev setups from requiring Redis at all.
func buildControlPlane(log zerolog.Logger, clk clock.Clock) (control.ControlPlane, breakers.NewsCache) {
	redisURL := os.Getenv("QUANTSAIL_REDIS_URL")
	if redisURL == "" {
		log.Warn().Msg("QUANTSAIL_REDIS_URL not set, falling back to in-memory control plane (single process only)")
		return control.NewInMemoryControlPlane(clk), noopNewsCache{}
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid QUANTSAIL_REDIS_URL")
	}
	client := redis.NewClient(opts)
	return control.NewRedisControlPlane(client), control.NewNewsCache(client)
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return parsed
}

type noopNewsCache struct{}

func (noopNewsCache) IsNegativeNewsActive(ctx context.Context) bool { return false }

// buildExchangeAdapter selects a venue adapter by QUANTSAIL_EXCHANGE,
// defaulting to the paper adapter so DRY_RUN mode never requires exchange
// credentials. Grounded on chidi150c-coinbase/main.go's broker switch.
func buildExchangeAdapter(log zerolog.Logger, cfg config.BotConfig) execution.ExchangeAdapter {
	switch strings.ToLower(os.Getenv("QUANTSAIL_EXCHANGE")) {
	case "binance":
		recvWindow, _ := strconv.ParseInt(os.Getenv("QUANTSAIL_BINANCE_RECV_WINDOW_MS"), 10, 64)
		return exchange.NewBinanceAdapter(
			os.Getenv("QUANTSAIL_BINANCE_API_BASE"),
			os.Getenv("QUANTSAIL_BINANCE_API_KEY"),
			os.Getenv("QUANTSAIL_BINANCE_API_SECRET"),
			recvWindow,
		)
	case "coinbase":
		return exchange.NewCoinbaseAdapter(
			os.Getenv("QUANTSAIL_COINBASE_API_BASE"),
			os.Getenv("QUANTSAIL_COINBASE_KEY_NAME"),
			os.Getenv("QUANTSAIL_COINBASE_PRIVATE_KEY_PEM"),
			os.Getenv("QUANTSAIL_COINBASE_BEARER_TOKEN"),
		)
	case "coinbase-bridge":
		return exchange.NewCoinbaseBridgeAdapter(os.Getenv("QUANTSAIL_BRIDGE_URL"))
	case "binance-bridge":
		return exchange.NewBinanceBridgeAdapter(os.Getenv("QUANTSAIL_BRIDGE_URL"))
	case "hitbtc-bridge":
		return exchange.NewHitBTCBridgeAdapter(os.Getenv("QUANTSAIL_BRIDGE_URL"))
	default:
		log.Info().Msg("QUANTSAIL_EXCHANGE not set (or unrecognized), using paper adapter")
		startPrice := envDecimal("QUANTSAIL_PAPER_START_PRICE", decimal.NewFromInt(100))
		spread := envDecimal("QUANTSAIL_PAPER_SPREAD", decimal.NewFromFloat(0.05))
		return exchange.NewPaperAdapter(startPrice, spread)
	}
}

// buildExecutor selects DRY_RUN vs LIVE per config, wiring the live
// executor's idempotency collaborators (repo satisfies both TradeFinder and
// EventAppender) so a crash-and-retry never double-places an order.
func buildExecutor(cfg config.BotConfig, clk clock.Clock, adapter execution.ExchangeAdapter, repo *persistence.Repository) execution.Executor {
	if cfg.Execution.Mode == config.ExecutionModeLive {
		return execution.NewLiveExecutor(adapter, clk, repo, repo)
	}
	return execution.NewDryRunExecutor(clk, uuid.NewString)
}

// buildEntryGates assembles the fixed ten-step pipeline spec.md §4.4
// mandates, in order. Gate 4 (ensemble signal) and gates 9-10 (position
// sizer, profitability) share the same MarketDataProvider (the exchange
// adapter itself) and the strategy ensemble combiner.
func buildEntryGates(cfg config.BotConfig, provider gates.MarketDataProvider, repo *persistence.Repository, breakerMgr *breakers.Manager) []gates.Gate {
	comb := ensemble.New()
	sizer := risk.NewSizer(cfg.PositionSizing)

	sizerGate := gates.NewPositionSizerGate(cfg.StopLoss, cfg.TakeProfit, sizer, repo, provider)
	profitGate := gates.NewProfitabilityGate(sizerGate, cfg.Execution)

	return []gates.Gate{
		gates.NewNewsPauseGate(breakerMgr),
		gates.NewActiveBreakerGate(breakerMgr),
		gates.NewRegimeFilterGate(cfg.Strategies.Regime, provider),
		gates.NewEnsembleSignalGate(cfg, comb, provider, 100),
		gates.NewPortfolioRiskGate(cfg.Symbols, cfg.Portfolio, repo),
		gates.NewCooldownGate(cfg.Cooldown, repo, clock.Real{}),
		gates.NewDailySymbolLimitGate(cfg.DailySymbol, repo),
		gates.NewStreakSizerGate(cfg.StreakSizer, repo),
		sizerGate,
		profitGate,
	}
}

// adapterAsProvider narrows an execution.ExchangeAdapter to the
// gates.MarketDataProvider surface (GetCandles/GetOrderbook); every
// concrete adapter already implements both methods directly.
func adapterAsProvider(adapter execution.ExchangeAdapter) gates.MarketDataProvider {
	p, ok := adapter.(gates.MarketDataProvider)
	if !ok {
		panic("main: exchange adapter does not implement gates.MarketDataProvider")
	}
	return p
}

// newBearerAuthenticator is a minimal stand-in for the external
// authentication/authorization service spec.md §1 places out of scope: it
// trusts a single shared bearer token (QUANTSAIL_STREAM_TOKEN) and reports
// a fixed role, enough to exercise eventstream's RBAC gate in this repo
// without standing up real user/session management.
func newBearerAuthenticator() eventstream.Authenticator {
	return bearerAuthenticator{
		token: os.Getenv("QUANTSAIL_STREAM_TOKEN"),
		role:  os.Getenv("QUANTSAIL_STREAM_ROLE"),
	}
}

type bearerAuthenticator struct {
	token string
	role  string
}

func (a bearerAuthenticator) Authenticate(r *http.Request) (string, bool) {
	if a.token == "" {
		return "", false
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if got == "" || got == r.Header.Get("Authorization") {
		got = r.URL.Query().Get("token")
	}
	if got != a.token {
		return "", false
	}
	role := a.role
	if role == "" {
		role = "OWNER"
	}
	return role, true
}
