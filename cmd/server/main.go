package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/office_hours/internal/app"
	"github.com/Freeeeeet/office_hours/internal/auth"
	"github.com/Freeeeeet/office_hours/internal/config"
	"github.com/Freeeeeet/office_hours/internal/controller"
	"github.com/Freeeeeet/office_hours/internal/controller/middleware"
	"github.com/Freeeeeet/office_hours/internal/metrics"
	"github.com/Freeeeeet/office_hours/internal/notify"
	"github.com/Freeeeeet/office_hours/internal/repository"
	"github.com/Freeeeeet/office_hours/internal/repository/memory"
	"github.com/Freeeeeet/office_hours/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env-file", ".env", "path to the .env file")
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "server")
	defer logger.Sync()

	if !cfg.EnvFileLoaded {
		logger.Info("No env file found, using environment variables", zap.String("path", *envFile))
	}

	if err := run(cfg, *migrateOnly, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

type stores struct {
	users        service.UserStore
	availability service.AvailabilityStore
	appointments service.AppointmentStore
}

func run(cfg *config.Config, migrateOnly bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]controller.HealthCheck{}

	var st stores
	switch cfg.StorageBackend {
	case config.StorageBackendMemory:
		if migrateOnly {
			return errors.New("--migrate-only requires the postgres storage backend")
		}
		logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		st = stores{users: store.Users(), availability: store.Availabilities(), appointments: store.Appointments()}
	default:
		pool, err := app.OpenPostgres(ctx, cfg.GetDBDSN())
		if err != nil {
			return err
		}
		defer pool.Close()

		migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
		if err != nil {
			return err
		}
		err = migrator.Run(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}
		if migrateOnly {
			return nil
		}

		st = stores{
			users:        repository.NewUserRepository(pool),
			availability: repository.NewAvailabilityRepository(pool),
			appointments: repository.NewAppointmentRepository(pool),
		}
		healthChecks["postgres"] = pool.Ping
	}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		client, err := app.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		healthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	queue, err := app.NewQueue(cfg, redisClient, logger)
	if err != nil {
		return fmt.Errorf("create event queue: %w", err)
	}
	defer queue.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	clock := service.SystemClock{}
	userService := service.NewUserService(st.users, logger)
	availabilityService := service.NewAvailabilityService(st.availability, st.users, clock, logger)
	publisher := app.Publisher(cfg, queue)
	if publisher == nil {
		logger.Info("Appointment events disabled, in-memory queue has no consumer without TELEGRAM_TOKEN")
	}
	bookingService := service.NewBookingService(availabilityService, st.appointments, st.users, publisher, recorder, clock, logger)
	appointmentService := service.NewAppointmentService(st.appointments)

	var limiter middleware.Limiter
	switch {
	case cfg.RateLimitPerMin == 0:
	case redisClient != nil:
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimitPerMin)
	default:
		limiter = middleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := controller.NewRouter(controller.Dependencies{
		UserService:         userService,
		AvailabilityService: availabilityService,
		BookingService:      bookingService,
		AppointmentService:  appointmentService,
		Issuer:              auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL),
		Limiter:             limiter,
		Metrics:             recorder,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthChecks:        healthChecks,
		Logger:              logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	reconciler := app.NewReconciler(availabilityService, recorder, cfg.ReconcileInterval, cfg.ReconcileGrace, logger)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	// При очереди в памяти уведомления отправляет сам сервер
	if app.NotifiesInProcess(cfg) {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		notifier := notify.NewNotifier(queue, st.users, b, time.Local, logger.Named("notifier"))
		go func() {
			if err := notifier.Run(ctx); err != nil {
				logger.Error("Notifier stopped with error", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.StorageBackend),
			zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}
