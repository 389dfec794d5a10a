package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/config"
	"github.com/Freedomtukun/free-yoga/internal/database"
	"github.com/Freedomtukun/free-yoga/internal/detector"
	logger "github.com/Freedomtukun/free-yoga/internal/logging"
	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/practice"
	"github.com/Freedomtukun/free-yoga/internal/realtime"
	"github.com/Freedomtukun/free-yoga/internal/repository"
	"github.com/Freedomtukun/free-yoga/internal/router"
	"github.com/Freedomtukun/free-yoga/internal/services"
	"github.com/Freedomtukun/free-yoga/internal/timeutil"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	projectRoot     = "."
	shutdownTimeout = 10 * time.Second
)

func main() {
	v, err := config.Load(projectRoot)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	cfg := config.Get()

	// Initialize Logger
	log, err := logger.Init(projectRoot, cfg.Logging)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if cfg.Server.GeneratedSecret() {
		log.Warn("No session secret configured; generated one for this run. Cookies will not survive a restart.")
	}
	config.OnReload(func(c *config.Config) {
		if err := logger.SetConsoleLevel(c.Logging.ConsoleLevel); err != nil {
			log.Warn("Failed to apply console log level", zap.Error(err))
		}
	})
	config.Watch(v, log)

	if err := run(log, cfg); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server stopped")
}

func run(log *zap.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	content := repository.NewContentRepository(db)
	records := repository.NewRecordRepository(db)

	// Load the pose catalog at startup
	catalog, err := models.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	if err := content.SyncCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("failed to sync pose catalog: %w", err)
	}
	log.Info("Pose catalog loaded",
		zap.Int("poses", len(catalog.Poses)),
		zap.Int("sequences", len(catalog.Sequences)),
	)

	g, gctx := errgroup.WithContext(ctx)

	broker := practice.NewBroker()
	publisher := practice.MultiPublisher{broker}
	if cfg.Redis.Enabled {
		rp, err := startRedis(gctx, g, log, cfg.Redis, broker)
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher = append(publisher, rp)
	}

	manager := practice.NewManager(log, timeutil.RealClock{}, publisher, records, practice.ManagerConfig{
		MinConfidence:  cfg.Practice.MinConfidence,
		IdleTimeout:    cfg.Practice.IdleTimeout,
		Retention:      cfg.Practice.Retention,
		PersistTimeout: cfg.Practice.PersistTimeout,
	})

	reaper := services.NewReaper(log, timeutil.RealClock{}, manager, cfg.Practice.SweepInterval)
	g.Go(func() error { return reaper.Run(gctx) })

	if cfg.MQTT.Enabled {
		listener := detector.NewMQTTListener(log, detector.ListenerConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, manager)
		if err := listener.Start(); err != nil {
			return err
		}
		defer listener.Stop()
	}

	// Setup router, passing the logger to it
	r := router.Setup(log, cfg.Server, router.Deps{
		Content:    content,
		Records:    records,
		Manager:    manager,
		Broker:     broker,
		Comparator: metrics.Comparator{MinConfidence: cfg.Practice.MinConfidence},
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("Server listening on http://localhost:" + cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			manager.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

func startRedis(ctx context.Context, g *errgroup.Group, log *zap.Logger, cfg config.RedisConfig, broker *practice.Broker) (*realtime.RedisPublisher, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	rp := realtime.NewRedisPublisher(log, rdb, cfg.Channel)
	if err := rp.Forward(ctx, broker); err != nil {
		_ = rp.Close()
		return nil, err
	}
	g.Go(func() error { return rp.Run(ctx) })
	log.Info("Publishing practice events to redis", zap.String("addr", cfg.Addr), zap.String("channel", cfg.Channel))
	return rp, nil
}
