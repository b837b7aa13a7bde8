package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"employeehub/internal/domain/appraisal"
	"employeehub/internal/domain/audit"
	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/notifications"
	"employeehub/internal/domain/reports"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/supervision"
	"employeehub/internal/domain/training"
	"employeehub/internal/platform/config"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/email"
	"employeehub/internal/platform/jobs"
	"employeehub/internal/platform/kafka"
	"employeehub/internal/platform/metrics"
	"employeehub/internal/platform/redis"
	"employeehub/internal/platform/tracing"
	appraisalhandler "employeehub/internal/transport/http/handlers/appraisal"
	audithandler "employeehub/internal/transport/http/handlers/audit"
	authhandler "employeehub/internal/transport/http/handlers/auth"
	employeeshandler "employeehub/internal/transport/http/handlers/employees"
	notificationshandler "employeehub/internal/transport/http/handlers/notifications"
	reportshandler "employeehub/internal/transport/http/handlers/reports"
	supervisionhandler "employeehub/internal/transport/http/handlers/supervision"
	traininghandler "employeehub/internal/transport/http/handlers/training"
)

const shutdownTimeout = 15 * time.Second

// App owns the process-wide resources. Close releases them.
type App struct {
	Config   config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Producer *kafka.Producer
	Tracer   *sdktrace.TracerProvider
	Router   http.Handler
}

func Run() error {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("employeehub listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// New connects the backing services, prepares the schema and builds the
// router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool}

	app.Tracer, err = tracing.Install(tracing.Options{
		Exporter:    cfg.TracingExporter,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("tracing: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := auth.Seed(ctx, pool, auth.SeedOptions{AdminEmail: cfg.SeedAdminEmail, AdminPassword: cfg.SeedAdminPassword}); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.Redis, err = redis.New(ctx, cfg.RedisURL)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Producer, err = kafka.NewProducer(cfg.AuditKafkaBrokers, cfg.AuditKafkaTopic, "employeehub")
	if err != nil {
		app.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	app.Router = NewRouter(RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		Production:     cfg.Environment == "production",
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		LoginRateLimit: cfg.LoginRateLimit,
		Ready:          app.ready,
		Metrics:        m,
	}, app.handlers(m))
	return app, nil
}

func (a *App) handlers(m *metrics.Metrics) Handlers {
	cfg := a.Config
	comp := cfg.Compliance

	auditOpts := []audit.Option{audit.WithMetrics(m)}
	if a.Producer != nil {
		auditOpts = append(auditOpts, audit.WithPublisher(a.Producer))
	}
	auditSvc := audit.New(a.DB, auditOpts...)

	empStore := employees.NewStore(a.DB)
	resolver := scope.NewResolver(empStore, scope.WithTransitiveReports(comp.TransitiveReports))

	authStore := auth.NewStore(a.DB)
	authSvc := auth.NewService(authStore, auditSvc, cfg.JWTSecret, cfg.JWTTTL)

	trainingSvc := training.NewService(training.NewStore(a.DB), empStore, resolver, auditSvc,
		training.WithMetrics(m),
		training.WithDefaultWarningDays(comp.TrainingExpiryWarningDays),
	)
	supervisionSvc := supervision.NewService(supervision.NewStore(a.DB), empStore, resolver, auditSvc,
		supervision.WithMetrics(m),
		supervision.WithDueSoonDays(comp.SupervisionDueSoonDays),
		supervision.WithWindow(comp.SupervisionMonthsBack, comp.SupervisionMonthsForward),
	)
	appraisalSvc := appraisal.NewService(appraisal.NewStore(a.DB), empStore, resolver, auditSvc,
		appraisal.WithMetrics(m),
		appraisal.WithMatrixWindow(comp.AppraisalReviewsBack, comp.AppraisalReviewsForward),
	)

	jobsSvc := jobs.New(a.DB)
	notifyOpts := []notifications.Option{
		notifications.WithFrom(cfg.EmailFrom),
		notifications.WithDedupeWindow(comp.NotificationDedupeWindow),
		notifications.WithRecipients(comp.NotifyEmployee, comp.NotifyAdmin),
		notifications.WithJobs(jobsSvc),
		notifications.WithMetrics(m),
		notifications.WithTracerProvider(a.Tracer),
	}
	if a.Redis != nil {
		notifyOpts = append(notifyOpts, notifications.WithLocker(redis.NewLocker(a.Redis.Client, "employeehub:lock:"), comp.DispatchLockTTL))
	}
	notifySvc := notifications.New(notifications.NewStore(a.DB), trainingSvc, email.New(cfg), auditSvc, notifyOpts...)

	return Handlers{
		Auth:          authhandler.NewHandler(authSvc, authStore),
		Employees:     employeeshandler.NewHandler(employees.NewService(empStore, resolver)),
		Training:      traininghandler.NewHandler(trainingSvc, authStore, comp.TrainingExpiryWarningDays),
		Supervision:   supervisionhandler.NewHandler(supervisionSvc, authStore),
		Appraisals:    appraisalhandler.NewHandler(appraisalSvc, authStore),
		Notifications: notificationshandler.NewHandler(notifySvc, jobsSvc, authStore, cfg.DispatchRateLimit),
		Audit:         audithandler.NewHandler(auditSvc, authStore),
		Reports:       reportshandler.NewHandler(reports.NewService(trainingSvc, supervisionSvc, appraisalSvc)),
	}
}

func (a *App) ready(ctx context.Context) error {
	if err := a.DB.Ping(ctx); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if a.Producer != nil {
		if err := a.Producer.Ping(ctx); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.Tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.Shutdown(ctx, a.Tracer); err != nil {
			slog.Warn("tracer shutdown", "error", err)
		}
		cancel()
	}
	if a.Producer != nil {
		a.Producer.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
