package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/annotations"
	"github.com/aurora-portal/aurora/internal/app"
	"github.com/aurora-portal/aurora/internal/audit"
	"github.com/aurora-portal/aurora/internal/auth"
	"github.com/aurora-portal/aurora/internal/catalog"
	"github.com/aurora-portal/aurora/internal/groups"
	"github.com/aurora-portal/aurora/internal/observability"
	"github.com/aurora-portal/aurora/internal/observations"
	"github.com/aurora-portal/aurora/internal/platform/cache"
	"github.com/aurora-portal/aurora/internal/platform/db"
	"github.com/aurora-portal/aurora/internal/roles"
	"github.com/aurora-portal/aurora/internal/shared"
	"github.com/aurora-portal/aurora/internal/tokens"
	"github.com/aurora-portal/aurora/internal/users"
	"github.com/aurora-portal/aurora/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "aurora_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	metrics := observability.NewMetrics()

	engine, err := app.BuildEngine(metrics)
	if err != nil {
		logger.Error("build access engine", slog.Any("error", err))
		os.Exit(1)
	}

	accessStore := access.NewSQLStore(dbpool)
	guard := auth.NewMiddleware(accessStore)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, engine, dbpool, guard, auditLogger)

	groupsRepo := groups.NewRepository(dbpool, engine)
	groupsService := groups.NewService(groupsRepo)
	groupsHandler := groups.NewHandler(logger, groupsService, engine, dbpool)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)

	tokensRepo := tokens.NewRepository(dbpool, engine)
	tokensService := tokens.NewService(tokensRepo)
	tokensHandler := tokens.NewHandler(logger, tokensService, engine, dbpool)

	catalogRepo := catalog.NewRepository(dbpool, engine)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService, engine, dbpool)

	observationsRepo := observations.NewRepository(dbpool, engine)
	observationsService := observations.NewService(observationsRepo)
	observationsHandler := observations.NewHandler(logger, observationsService, engine, dbpool)

	annotationsRepo := annotations.NewRepository(dbpool, engine)
	annotationsService := annotations.NewService(annotationsRepo)
	annotationsHandler := annotations.NewHandler(logger, annotationsService, engine, dbpool)

	auditHandler := audit.NewHandler(logger, audit.NewRepository(dbpool), guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		Guard:               guard,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		GroupsHandler:       groupsHandler,
		RolesHandler:        rolesHandler,
		TokensHandler:       tokensHandler,
		CatalogHandler:      catalogHandler,
		ObservationsHandler: observationsHandler,
		AnnotationsHandler:  annotationsHandler,
		AuditHandler:        auditHandler,
		JobsHandler:         jobsHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
