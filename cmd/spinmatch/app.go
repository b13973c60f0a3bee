package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sydlexius/spinmatch/internal/config"
	"github.com/sydlexius/spinmatch/internal/database"
	"github.com/sydlexius/spinmatch/internal/gateway"
	"github.com/sydlexius/spinmatch/internal/logging"
	"github.com/sydlexius/spinmatch/internal/oracle"
	"github.com/sydlexius/spinmatch/internal/pricecache"
	"github.com/sydlexius/spinmatch/internal/pricing"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/provider/coverart"
	"github.com/sydlexius/spinmatch/internal/provider/discogs"
	"github.com/sydlexius/spinmatch/internal/provider/musicbrainz"
	"github.com/sydlexius/spinmatch/internal/provider/wikipedia"
	"github.com/sydlexius/spinmatch/internal/reconcile"
	"github.com/sydlexius/spinmatch/internal/version"
)

// app holds the wired services shared by every command.
type app struct {
	cfg        *config.Config
	logManager *logging.Manager
	logger     *slog.Logger
	registry   *provider.Registry
	pipeline   *reconcile.Pipeline
	pricer     pricing.Pricer
	cache      *pricecache.Store
	db         *sql.DB
}

// newApp builds every adapter and service from cfg. Logs go to logOut.
func newApp(ctx context.Context, cfg *config.Config, logOut *os.File) (*app, error) {
	logManager, logger := logging.NewManager(cfg.Logging, logOut)
	a := &app{cfg: cfg, logManager: logManager, logger: logger, registry: provider.NewRegistry()}

	limiter := provider.NewRateLimiterMap()
	for name, rps := range cfg.Providers.RateLimits {
		limiter.SetLimit(provider.ProviderName(strings.ToLower(name)), rps)
	}
	gw := []gateway.Option{
		gateway.WithMaxAttempts(cfg.Gateway.MaxAttempts),
		gateway.WithBaseDelay(cfg.Gateway.BaseDelay),
	}
	ua := version.UserAgent(cfg.Providers.Contact)
	p := cfg.Providers

	mbOpts := []musicbrainz.Option{musicbrainz.WithUserAgent(ua), musicbrainz.WithGatewayOptions(gw...)}
	var mb *musicbrainz.Adapter
	if p.MusicBrainzURL != "" {
		mb = musicbrainz.NewWithBaseURL(limiter, logger, p.MusicBrainzURL, mbOpts...)
	} else {
		mb = musicbrainz.New(limiter, logger, mbOpts...)
	}
	a.registry.Register(mb)

	pipeOpts := []reconcile.Option{
		reconcile.WithTimeout(cfg.Reconcile.Timeout),
		reconcile.WithLogger(logger),
	}
	if cfg.Reconcile.Art {
		var art *coverart.Adapter
		if p.CoverArtURL != "" {
			art = coverart.NewWithBaseURL(limiter, logger, p.CoverArtURL, ua, cfg.Reconcile.ArtMaxDim, gw...)
		} else {
			art = coverart.New(limiter, logger, ua, cfg.Reconcile.ArtMaxDim, gw...)
		}
		var wiki *wikipedia.Adapter
		if p.WikipediaURL != "" {
			wiki = wikipedia.NewWithBaseURL(limiter, logger, p.WikipediaURL, ua, gw...)
		} else {
			wiki = wikipedia.New(limiter, logger, ua, gw...)
		}
		a.registry.Register(art)
		a.registry.Register(wiki)
		pipeOpts = append(pipeOpts, reconcile.WithArt(art), reconcile.WithPortraits(wiki))
	}
	if cfg.Oracle.APIKey != "" {
		orc := oracle.New(oracle.Config{
			APIKey:  cfg.Oracle.APIKey,
			BaseURL: cfg.Oracle.BaseURL,
			Model:   cfg.Oracle.Model,
			Referer: "https://github.com/sydlexius/spinmatch",
			Title:   "Spinmatch",
			Timeout: cfg.Oracle.Timeout,
		}, logger, gw...)
		a.registry.Register(orc)
		pipeOpts = append(pipeOpts, reconcile.WithOracle(orc))
	}
	a.pipeline = reconcile.New(mb, pipeOpts...)

	var market *discogs.Adapter
	if p.DiscogsURL != "" {
		market = discogs.NewWithBaseURL(limiter, logger, p.DiscogsURL, p.DiscogsToken, ua, gw...)
	} else {
		market = discogs.New(limiter, logger, p.DiscogsToken, ua, gw...)
	}
	a.registry.Register(market)

	shipping := pricing.DefaultShippingTable()
	for country, cost := range cfg.Marketplace.Shipping {
		shipping[strings.ToLower(strings.TrimSpace(country))] = cost
	}
	svc := pricing.NewService(market, logger,
		pricing.WithCurrency(cfg.Marketplace.Currency),
		pricing.WithShippingTable(shipping),
		pricing.WithDefaultShipping(cfg.Marketplace.DefaultShipping),
	)
	a.pricer = svc

	if cfg.Cache.Path != "" {
		if err := a.openCache(ctx, svc); err != nil {
			a.Close() //nolint:errcheck
			return nil, err
		}
	}

	logger.Debug("services wired",
		slog.Bool("art", cfg.Reconcile.Art),
		slog.Bool("oracle", cfg.Oracle.APIKey != ""),
		slog.Bool("cache", a.cache != nil),
		slog.String("currency", svc.Currency()))
	return a, nil
}

func (a *app) openCache(ctx context.Context, svc *pricing.Service) error {
	db, err := database.Open(ctx, a.cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("opening price cache: %w", err)
	}
	a.db = db
	if err := database.Migrate(ctx, db, a.logger); err != nil {
		return fmt.Errorf("migrating price cache: %w", err)
	}
	a.cache = pricecache.NewStore(db, a.cfg.Cache.TTL)
	a.pricer = pricecache.NewPricer(svc, a.cache, svc.Currency(), a.logger)
	a.purgeCache(ctx)
	return nil
}

func (a *app) purgeCache(ctx context.Context) {
	if a.cache == nil {
		return
	}
	n, err := a.cache.Purge(ctx)
	if err != nil {
		a.logger.Warn("price cache purge failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		a.logger.Info("price cache purged", slog.Int64("removed", n))
	}
}

// Close releases the cache database and the log file.
func (a *app) Close() error {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}
	return a.logManager.Close()
}
