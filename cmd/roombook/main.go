package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"roombook/internal/api"
	"roombook/internal/booking"
	"roombook/internal/cache"
	"roombook/internal/config"
	"roombook/internal/db"
	"roombook/internal/events"
	"roombook/internal/maintenance"
	"roombook/internal/metrics"
	"roombook/internal/tz"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env not found, using process environment")
	}

	cfg, err := config.Load(os.Getenv("ROOMBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	zone, err := tz.Load(cfg.Timezone, cfg.TimezoneOffset())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load timezone")
	}
	logger.Info().Str("timezone", zone.Name()).Msg("timezone resolved")

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	var bookingCache booking.Cache
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		bookingCache = cache.NewRedisCache(rdb, cfg.CacheTTL(), &logger)
	}

	bus := events.NewEventBus()
	if cfg.AMQP.Enabled {
		fwd := events.NewForwarder(cfg.AMQP.URL, cfg.AMQP.Exchange, &logger)
		fwd.Attach(bus)
		defer fwd.Close()
	}

	infer := cfg.Booking.InferLegacySeries == nil || *cfg.Booking.InferLegacySeries
	svc := booking.NewService(database, zone, bus, bookingCache, booking.Options{
		SeriesThreshold:  cfg.Booking.SeriesThreshold,
		DisableInference: !infer,
		MaxOccurrences:   cfg.Booking.MaxOccurrences,
		FirstHour:        cfg.Booking.CalendarFirstHour,
		LastHour:         cfg.Booking.CalendarLastHour,
	}, &logger)

	// Rooms and squads come from rooms.yaml and are reapplied on change.
	err = config.WatchRooms(ctx, cfg.RoomsConfigPath, 30*time.Second,
		func(updated *config.RoomsConfig) {
			applyRooms(ctx, database, svc, updated, cfg.Admins, &logger)
		},
		func(err error) {
			logger.Error().Err(err).Msg("rooms config reload failed")
		})
	if err != nil {
		logger.Error().Err(err).Msg("rooms watch failed")
		applyRooms(ctx, database, svc, &config.RoomsConfig{}, cfg.Admins, &logger)
	}

	backupSchedule := ""
	if cfg.Backup.Enabled {
		backupSchedule = cfg.Backup.Schedule
		if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("failed to create backup directory")
			backupSchedule = ""
		}
	}
	scheduler, err := maintenance.New(database, svc, maintenance.Options{
		BackupSchedule:   backupSchedule,
		BackupDir:        cfg.Backup.Path,
		BackupRetention:  time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour,
		PurgeSchedule:    cfg.Booking.PurgeSchedule,
		BookingRetention: cfg.BookingRetention(),
		Location:         zone.Location(),
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid maintenance schedule")
	}
	scheduler.Start(ctx)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(svc, api.Config{
		Addr:        fmt.Sprintf(":%d", cfg.API.Port),
		UserHeader:  cfg.API.UserHeader,
		RateLimit:   cfg.API.RateLimit,
		RateBurst:   cfg.API.RateBurst,
		CORSOrigins: splitList(cfg.API.CORSOrigins),
	}, &logger)

	logger.Info().Msg("roombook started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

func applyRooms(ctx context.Context, database *db.DB, svc *booking.Service, roomsCfg *config.RoomsConfig, admins []string, logger *zerolog.Logger) {
	stats, err := database.SyncFromConfig(ctx, roomsCfg, admins)
	if err != nil {
		logger.Error().Err(err).Msg("failed to apply rooms config")
		return
	}
	svc.InvalidateAll(ctx)
	logger.Info().
		Int("rooms_created", stats.RoomsCreated).
		Int("rooms_updated", stats.RoomsUpdated).
		Int("squads_created", stats.SquadsCreated).
		Int("admins_granted", stats.AdminsGranted).
		Msg("rooms config applied")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
