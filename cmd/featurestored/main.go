// Command featurestored serves online features over HTTP backed by a dual
// store, and periodically checks the two stores against each other.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/featuremesh/featurestore-go/checker"
	"github.com/featuremesh/featurestore-go/config"
	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/datasource/duckdb"
	"github.com/featuremesh/featurestore-go/datasource/mysql"
	"github.com/featuremesh/featurestore-go/datasource/postgres"
	"github.com/featuremesh/featurestore-go/datasource/redisdb"
	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/featurestore"
	"github.com/featuremesh/featurestore-go/offlinestore"
	"github.com/featuremesh/featurestore-go/onlinestore"
	"github.com/featuremesh/featurestore-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	onlineDatasourceName  = "online"
	offlineDatasourceName = "offline"
)

func main() {
	configPath := flag.String("config", "featurestore.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "featurestored: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if !cfg.JSON {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// printer adapts zerolog to the Printf logger the packages take.
type printer struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (p printer) Printf(format string, v ...interface{}) {
	p.log.WithLevel(p.level).Msgf(format, v...)
}

func run(cfg *config.Config, log zerolog.Logger) error {
	infoLog := printer{log: log, level: zerolog.InfoLevel}
	errorLog := printer{log: log, level: zerolog.ErrorLevel}

	if err := registerDatasource(onlineDatasourceName, cfg.OnlineStore); err != nil {
		return fmt.Errorf("register online datasource: %w", err)
	}
	if err := registerDatasource(offlineDatasourceName, cfg.OfflineStore); err != nil {
		return fmt.Errorf("register offline datasource: %w", err)
	}

	// the redis backend can only look rows up by their key column
	keyColumns := make(map[string]string, len(cfg.FeatureViews))
	for _, view := range cfg.FeatureViews {
		keyColumns[view.Name] = view.Entities[0]
	}

	driver, err := onlinestore.NewDriver(onlinestore.DriverConfig{
		DatasourceType: cfg.OnlineStore.Type,
		DatasourceName: onlineDatasourceName,
		KeyColumns:     keyColumns,
	})
	if err != nil {
		return fmt.Errorf("build online store: %w", err)
	}
	online := onlinestore.NewStore(driver,
		onlinestore.WithLogger(infoLog), onlinestore.WithErrorLogger(errorLog))

	offline, err := offlinestore.NewOfflineStore(offlinestore.Config{
		DatasourceType: cfg.OfflineStore.Type,
		DatasourceName: offlineDatasourceName,
	}, offlinestore.WithLogger(infoLog), offlinestore.WithErrorLogger(errorLog))
	if err != nil {
		return fmt.Errorf("build offline store: %w", err)
	}

	registry := domain.NewFeatureViewRegistry()
	store := featurestore.NewFeatureStore(registry, online, offline,
		featurestore.WithLogger(infoLog),
		featurestore.WithErrorLogger(errorLog),
		featurestore.WithEntityTypes(cfg.ParsedEntityTypes()))
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close stores")
		}
	}()

	for _, viewCfg := range cfg.FeatureViews {
		view, err := store.ApplyFeatureView(featureViewFromConfig(viewCfg))
		if err != nil {
			return fmt.Errorf("apply feature view %s: %w", viewCfg.Name, err)
		}
		log.Info().Str("feature_view", view.Name).Int("version", view.Version).
			Msg("registered feature view")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.NewServer(store, server.WithErrorLogger(errorLog)).Handler(),
	}
	g.Go(func() error {
		log.Info().Str("listen", cfg.Server.Listen).Msg("http server starting")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Checker.Enabled {
		check := checker.NewChecker(registry, offline, online,
			checker.WithSampleSize(cfg.Checker.SampleSize),
			checker.WithLogger(infoLog),
			checker.WithErrorLogger(errorLog))
		g.Go(func() error {
			runCheckerLoop(ctx, check, cfg.Checker.Interval, log)
			return nil
		})
	}

	err = g.Wait()
	log.Info().Msg("shut down")
	return err
}

func runCheckerLoop(ctx context.Context, check *checker.Checker, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result := check.Check()
		event := log.Info()
		if len(result.Inconsistencies) > 0 {
			event = log.Warn()
		}
		event.Int("inconsistencies", len(result.Inconsistencies))
		if result.Drift != nil {
			event.Int64("compared", result.Drift.Compared).
				Float64("drift_p95", result.Drift.P95)
		}
		event.Msg("consistency check")
	}
}

func registerDatasource(name string, cfg config.StoreConfig) error {
	switch cfg.Type {
	case constants.Datasource_Type_MySQL:
		return mysql.RegisterMysql(name, cfg.DSN)
	case constants.Datasource_Type_Postgres:
		return postgres.RegisterPostgres(name, cfg.DSN)
	case constants.Datasource_Type_DuckDB:
		return duckdb.RegisterDuckDB(name, cfg.DSN)
	case constants.Datasource_Type_Redis:
		return redisdb.RegisterRedisClient(name, cfg.DSN, cfg.Password, cfg.DB)
	case constants.Datasource_Type_Memory:
		return nil
	}
	return fmt.Errorf("unknown datasource type:%s", cfg.Type)
}

func featureViewFromConfig(cfg config.FeatureViewConfig) *domain.FeatureView {
	features := make([]domain.Feature, 0, len(cfg.Features))
	for _, f := range cfg.Features {
		dtype, _ := constants.FSTypeFromName(f.Dtype)
		features = append(features, domain.Feature{Name: f.Name, Dtype: dtype})
	}
	return &domain.FeatureView{
		Name:     cfg.Name,
		Features: features,
		Entities: cfg.Entities,
		TTL:      cfg.TTLSeconds,
	}
}
