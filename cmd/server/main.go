// Package main is the entry point for the token research API, a service
// that aggregates market data from multiple public providers, scores
// token risk, and persists the resulting research reports.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/aggregate"
	"github.com/yourorg/token-research-api/internal/analyze"
	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/circuitbreaker"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/monitor"
	"github.com/yourorg/token-research-api/internal/notify"
	"github.com/yourorg/token-research-api/internal/otel"
	"github.com/yourorg/token-research-api/internal/ratelimit"
	"github.com/yourorg/token-research-api/internal/research"
	"github.com/yourorg/token-research-api/internal/security"
	"github.com/yourorg/token-research-api/internal/source"
	"github.com/yourorg/token-research-api/internal/store"
)

func main() {
	// .env is optional; environment variables win either way
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded environment from .env")
	}

	setupLogging()
	cfg := config.Load()

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("opening database: %v", err)
	}
	defer st.Close()

	market := source.NewCoinGecko(cfg)

	relay := notify.NewDiscord(cfg.DiscordWebhookURL)
	batcher := notify.NewBatcher(relay, 10, time.Minute)
	defer batcher.Stop()

	breaker := circuitbreaker.New(circuitbreaker.Thresholds{
		MinSources:       cfg.MinSources,
		MaxPriceVariance: cfg.MaxPriceVariance,
		MaxTVLChange:     cfg.MaxTVLChange,
	}).WithResetDelay(cfg.CircuitReset).WithTripCallback(func(reason, symbol string) {
		logrus.WithFields(logrus.Fields{"reason": reason, "token": symbol}).Warn("circuit breaker tripped")
		batcher.Add(notify.Alert{
			Token:   symbol,
			Type:    notify.AlertResearchShare,
			Message: "Data quality circuit tripped: " + reason,
		})
	})

	signer, err := newSigner(cfg)
	if err != nil {
		logrus.Fatalf("initializing report signer: %v", err)
	}

	server := NewServer(cfg, market,
		aggregate.New(buildAdapters(cfg), aggregate.WithTimeout(cfg.RequestTimeout)),
		analyze.New(analyze.DefaultConfig()),
		research.NewBuilder(),
		breaker, st, relay, batcher, signer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MonitorEnabled {
		go monitor.New(st, market, batcher, cfg.MonitorInterval).Run(ctx)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}
	logrus.Info("Server stopped")
}

// buildAdapters creates the secondary source fan-out. All adapters share
// one cache and one provider rate limiter.
func buildAdapters(cfg config.Config) []source.Adapter {
	shared := cache.New(cfg.CacheTTL).WithFailureCaching(cfg.CacheFailures)
	limiter := ratelimit.New()

	return []source.Adapter{
		source.NewDefiLlama(cfg, shared),
		source.NewDexScreener(cfg, shared),
		source.NewEthplorer(cfg, shared),
		source.NewEtherscan(cfg, shared, limiter),
		source.NewCoinMarketCap(cfg, shared, limiter),
		source.NewMessari(cfg, shared),
		source.NewMoralis(cfg, shared),
	}
}

// newSigner prefers a configured stable key over a generated one.
func newSigner(cfg config.Config) (*security.Signer, error) {
	if cfg.SigningEnabled && cfg.SigningKey != "" {
		return security.NewSignerFromHex(cfg.SigningKey)
	}
	return security.NewSigner(cfg.SigningEnabled)
}

// setupLogging configures the logging for the application
func setupLogging() {
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}
