// README: Entry point; loads config, wires services, starts HTTP server and session janitor.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nearby/internal/config"
	httptransport "nearby/internal/http"
	"nearby/internal/infra"
	"nearby/internal/maps"
	"nearby/internal/modules/catalog"
	"nearby/internal/modules/location"
	"nearby/internal/modules/search"
	"nearby/internal/modules/session"
	"nearby/internal/observability"
	"nearby/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logCfg := telemetry.DefaultLogConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	logCfg.Rotation = cfg.Log.Rotation
	logger, err := telemetry.NewLogger(logCfg)
	if err != nil {
		logrus.WithError(err).Fatal("logger init")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier infra.TokenVerifier
	if cfg.Auth.Mode == config.AuthDev {
		logger.Warn("dev auth mode enabled; bearer tokens are not verified")
		verifier = infra.DevVerifier{}
	} else {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredentials)
		if err != nil {
			logger.WithError(err).Fatal("firebase init")
		}
	}

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.WithError(err).Fatal("redis init")
	}
	defer redisClient.Close()

	mapsCfg := maps.ClientConfig{
		APIKey:   cfg.Maps.APIKey,
		QPS:      cfg.Maps.QPS,
		Language: cfg.Maps.Language,
		Region:   cfg.Maps.Region,
	}
	var routes search.RouteProvider = maps.NoRouteService{}
	var places search.PlaceSearcher
	if cfg.Maps.APIKey != "" {
		client, err := maps.NewClient(mapsCfg)
		if err != nil {
			logger.WithError(err).Fatal("maps init")
		}
		routes = maps.NewRouteService(client, mapsCfg)
		places = maps.NewPlacesService(client, mapsCfg)
	} else {
		logger.Warn("GOOGLE_MAPS_API_KEY not set; travel times are unavailable")
	}
	if cfg.Search.Provider == config.ProviderCatalog {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			logger.WithError(err).Fatal("db init")
		}
		defer dbPool.Close()
		places = catalog.NewStore(dbPool)
	}

	metrics := observability.NewMetrics()

	locationStore := location.NewStore(redisClient)
	locationSvc := location.NewService(locationStore, location.ServiceConfig{
		ReportsPerSecond: cfg.Location.ReportsPerSecond,
		Burst:            cfg.Location.ReportBurst,
		Logger:           logger,
		Metrics:          metrics,
	})

	sessions := session.NewManager(places, search.NewEnrichmentManager(routes, logger, metrics), locationStore, session.Config{
		Search: search.Options{
			Debounce:     cfg.Search.Debounce(),
			RadiusMeters: cfg.Search.RadiusMeters,
			InitialQuery: cfg.Search.DefaultQuery,
		},
		IdleTTL:      time.Duration(cfg.Session.IdleMinutes) * time.Minute,
		PollInterval: cfg.Location.PollInterval(),
		MaxFixAge:    cfg.Location.MaxFixAge(),
		Logger:       logger,
		Metrics:      metrics,
		OnEvict:      locationSvc.Forget,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Sessions: sessions,
		Location: locationSvc,
		Verifier: verifier,
		Logger:   logger,
		Metrics:  httptransport.MetricsHandler(),
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
		return httptransport.Serve(groupCtx, server)
	})
	group.Go(func() error {
		sessions.Run(groupCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("shutdown complete")
}
