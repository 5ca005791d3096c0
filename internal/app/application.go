package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/services/advisor"
	"github.com/estatehub/marketplace/internal/app/services/auctions"
	"github.com/estatehub/marketplace/internal/app/services/construction"
	"github.com/estatehub/marketplace/internal/app/services/finance"
	"github.com/estatehub/marketplace/internal/app/services/properties"
	"github.com/estatehub/marketplace/internal/app/services/scraper"
	"github.com/estatehub/marketplace/internal/app/services/users"
	"github.com/estatehub/marketplace/internal/app/storage"
	"github.com/estatehub/marketplace/internal/app/storage/memory"
	"github.com/estatehub/marketplace/internal/app/system"
	"github.com/estatehub/marketplace/internal/cache"
	"github.com/estatehub/marketplace/internal/config"
	"github.com/estatehub/marketplace/internal/httputil"
	"github.com/estatehub/marketplace/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users      storage.UserStore
	Properties storage.PropertyStore
	Favorites  storage.FavoriteStore
	Auctions   storage.AuctionStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager   *system.Manager
	log       *logger.Logger
	hub       *auctions.Hub
	startedAt time.Time

	Users      *users.Service
	Properties *properties.Service
	Auctions   *auctions.Service
	Advisor    *advisor.Service
	Scraper    *scraper.Runner
	Sweeper    *auctions.Sweeper
}

// New builds a fully initialised application. A nil cache uses an in-process
// cache; cfg.Auth.JWTSecret must be set.
func New(cfg config.Config, stores Stores, c cache.Cache, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Properties == nil {
		stores.Properties = mem
	}
	if stores.Favorites == nil {
		stores.Favorites = mem
	}
	if stores.Auctions == nil {
		stores.Auctions = mem
	}
	if c == nil {
		c = cache.NewMemory()
	}

	manager := system.NewManager()

	userService := users.New(stores.Users, users.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		TTL:      cfg.Auth.TokenTTL,
		Issuer:   cfg.Auth.Issuer,
		AdminIDs: cfg.Auth.AdminUserIDs,
	}, log.WithComponent("users"))

	propertyService := properties.New(stores.Properties, stores.Favorites, stores.Auctions, c,
		properties.Options{SearchTTL: cfg.Redis.SearchTTL}, log.WithComponent("properties"))

	hub := auctions.NewHub(0)
	auctionService := auctions.New(stores.Auctions, propertyService, c, hub, auctions.Options{
		MinIncrement:   cfg.Auction.MinIncrement,
		DepositPercent: cfg.Auction.DepositPercent,
		PaymentWindow:  cfg.Auction.PaymentWindow,
	}, log.WithComponent("auctions"))
	sweeper := auctions.NewSweeper(auctionService, cfg.Auction.SweepSchedule, log.WithComponent("auction-sweeper"))

	sources, err := scraperSources(cfg.Scraper)
	if err != nil {
		return nil, err
	}
	runner := scraper.NewRunner(propertyService, sources, log.WithComponent("scraper"))

	services := []system.Service{sweeper}
	if cfg.Scraper.Enabled {
		services = append(services, scraper.NewScheduler(runner, cfg.Scraper.Schedule, log.WithComponent("scraper")))
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		hub:        hub,
		Users:      userService,
		Properties: propertyService,
		Auctions:   auctionService,
		Advisor:    advisor.New(propertyService, log.WithComponent("advisor")),
		Scraper:    runner,
		Sweeper:    sweeper,
	}, nil
}

func scraperSources(cfg config.ScraperConfig) ([]scraper.Source, error) {
	var sources []scraper.Source
	if cfg.Count > 0 {
		sources = append(sources, scraper.NewMockSource(cfg.Seed, cfg.Count, cfg.Cities))
	}
	for _, feed := range cfg.Feeds {
		fields, err := scraper.ParseFieldMap(feed.Fields)
		if err != nil {
			return nil, fmt.Errorf("scraper feed %s: %w", feed.Name, err)
		}
		client := httputil.NewClient(httputil.ClientConfig{
			Timeout:    feed.Timeout,
			MaxRetries: feed.Retries,
		})
		sources = append(sources, scraper.NewFeedSource(feed.Name, feed.URL, fields, client))
	}
	return sources, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	a.startedAt = time.Now().UTC()
	a.log.WithField("services", len(a.manager.Status())).Info("application started")
	return nil
}

// Stop stops all services and disconnects auction subscribers.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.hub.Close()
	return err
}

// Descriptors lists what every service advertises.
func (a *Application) Descriptors() []service.Descriptor {
	return []service.Descriptor{
		a.Users.Descriptor(),
		a.Properties.Descriptor(),
		a.Auctions.Descriptor(),
		finance.Descriptor(),
		construction.Descriptor(),
		a.Advisor.Descriptor(),
		a.Scraper.Descriptor(),
	}
}

// Status is the system status report.
type Status struct {
	StartedAt     time.Time              `json:"started_at"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Services      []system.ServiceStatus `json:"services"`
	Descriptors   []service.Descriptor   `json:"descriptors"`
	Host          system.HostStatus      `json:"host"`
}

// Status reports lifecycle state, descriptors and host resources.
func (a *Application) Status(ctx context.Context) Status {
	status := Status{
		StartedAt:   a.startedAt,
		Services:    a.manager.Status(),
		Descriptors: a.Descriptors(),
		Host:        system.ReadHostStatus(ctx),
	}
	if !a.startedAt.IsZero() {
		status.UptimeSeconds = int64(time.Since(a.startedAt).Seconds())
	}
	return status
}
