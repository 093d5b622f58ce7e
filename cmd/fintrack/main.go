package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/currency"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

const (
	maxSessions       = 10000
	maxCachedRates    = 512
	cacheSweepEvery   = time.Minute
	shutdownTimeout   = 30 * time.Second
	rateClientTimeout = 10 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	loc := cfg.Location()
	repo := cli.InitSQLite(logger.WithComponent(log.ComponentStorage), cfg.SQLiteDBPath, loc)
	defer repo.Close()

	rates := newRateProvider(cfg, logger)
	normalizer := currency.NewNormalizer(rates, cfg.HomeCurrency, cfg.CurrencyTimeout)

	// events stays a nil interface when AMQP is off.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP publishing disabled - no AMQP_URL provided")
	}

	ledger := services.NewLedgerService(repo, normalizer, events, nil)
	balance := services.NewBalanceService(repo, loc, nil)
	budget := services.NewBudgetService(repo, balance, events)
	goals := services.NewGoalService(repo, cfg.HomeCurrency, events, nil)
	dashboard := services.NewDashboardService(repo, balance, cfg.HomeCurrency)
	auth := services.NewAuthService(repo, bcrypt.DefaultCost)
	sessions := apphttp.NewSessionManager(cfg.SessionTTL, maxSessions)

	caches := cache.NewManager()
	caches.Register("sessions", sessions.Cache())
	if cached, ok := rates.(*currency.CachedProvider); ok {
		caches.Register("exchange_rates", cached.Cache())
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             ledger,
		Balance:            balance,
		Budget:             budget,
		Goals:              goals,
		Dashboard:          dashboard,
		Auth:               auth,
		Sessions:           sessions,
		Store:              repo,
		Logger:             logger,
		Location:           loc,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})
	caches.Start(ctx, cacheSweepEvery)

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"home_currency", cfg.HomeCurrency,
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	caches.Wait()
	m := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"total_requests", m.TotalRequests,
		"server_errors", m.ServerErrors)
}

// newRateProvider chains the live API ahead of the static table and caches
// the result. It returns nil when neither source is configured, which keeps
// every foreign amount unconverted.
func newRateProvider(cfg *config.Config, logger *log.Logger) currency.RateProvider {
	logger = logger.WithComponent(log.ComponentCurrency)

	var chain currency.Chain
	if cfg.ExchangeRateAPIKey != "" {
		chain = append(chain, currency.NewHTTPProvider(cfg.ExchangeRateAPIURL, cfg.ExchangeRateAPIKey,
			&http.Client{Timeout: rateClientTimeout}))
		logger.Info("Live exchange rates enabled", "url", cfg.ExchangeRateAPIURL)
	}
	if cfg.CurrencyStaticRates != "" {
		static, err := currency.ParseStaticRates(cfg.HomeCurrency, cfg.CurrencyStaticRates)
		if err != nil {
			logger.Error("Invalid static rates", "error", err)
			os.Exit(1)
		}
		chain = append(chain, static)
		logger.Info("Static exchange rates loaded", "currencies", static.Len())
	}
	if len(chain) == 0 {
		logger.Warn("No exchange rate source configured; foreign amounts will be stored unconverted")
		return nil
	}
	return currency.NewCachedProvider(chain, cfg.CurrencyCacheTTL, maxCachedRates)
}
