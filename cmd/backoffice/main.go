package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/backoffice/backoffice/internal/app"
	"github.com/backoffice/backoffice/internal/audit"
	audithttp "github.com/backoffice/backoffice/internal/audit/http"
	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/observability"
	"github.com/backoffice/backoffice/internal/platform/cache"
	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/users"
	"github.com/backoffice/backoffice/jobs"
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

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	roleRepo := rbac.NewRepository(dbpool)
	roleCache := rbac.NewCachedRoleFinder(roleRepo, redisClient, cfg.RoleCacheTTL, logger)
	resolver := rbac.NewResolver(roleCache, logger)
	userRepo := auth.NewRepository(dbpool)
	userAdminRepo := users.NewRepository(dbpool)

	auditRepo := audit.NewRepository(dbpool)
	var (
		auditSink       audit.Sink            = auditRepo
		auditPrincipals audit.PrincipalLookup = userRepo
	)
	if cfg.AuditMode == app.AuditModeQueue {
		// The worker resolves principals when it persists the entry.
		auditSink, auditPrincipals = jobsClient, nil
	}
	recorder := audit.NewRecorder(auditSink, auditPrincipals, audit.RecorderOptions{
		QueueSize: cfg.AuditQueueSize,
		Logger:    logger.With(slog.String("component", "audit")),
		Metrics:   metrics,
	})

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:       []byte(cfg.TokenSecret),
		RememberDays: cfg.TokenExpires,
		Location:     cfg.Location(),
	})
	if err != nil {
		logger.Error("token codec", slog.Any("error", err))
		os.Exit(1)
	}

	authMiddleware := &auth.Middleware{
		Codec:     codec,
		Recorder:  recorder,
		Users:     userRepo,
		Decisions: metrics,
		Logger:    logger,
	}
	rbacMiddleware := rbac.Middleware{Checker: auth.Checker, Logger: logger}

	roleService := rbac.NewService(roleRepo, userAdminRepo, roleCache, cfg.PagingMaxPerPage)
	if err := roleService.SyncAdminClaims(ctx); err != nil {
		logger.Warn("sync admin claims", slog.Any("error", err))
	}

	authService := auth.NewService(userRepo, roleRepo, resolver, codec, jobsClient, logger, auth.ServiceConfig{
		ActivationEmail: cfg.UserActivationEmail,
		ResetCodeTTL:    cfg.ResetCodeTTL,
		HashCost:        cfg.BcryptCost,
	})
	userService := users.NewService(userAdminRepo, userRepo, roleCache, cfg.BcryptCost, cfg.PagingMaxPerPage)
	auditService := audit.NewService(auditRepo, cfg.PagingMaxPerPage)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthMiddleware: authMiddleware,
		AuthHandler:    auth.NewHandler(logger, authService, rbacMiddleware),
		RolesHandler:   rbac.NewHandler(logger, roleService, rbacMiddleware),
		UsersHandler:   users.NewHandler(logger, userService, rbacMiddleware),
		AuditHandler:   audithttp.NewHandler(logger, auditService, rbacMiddleware, currentUserID),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
		Checks: map[string]app.Pinger{
			"postgres": dbpool,
			"redis":    cache.Health{Client: redisClient},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Runs until Close so entries recorded while draining requests are kept.
		return recorder.Run(context.Background())
	})
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("audit_mode", cfg.AuditMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		recorder.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func currentUserID(r *http.Request) string {
	return auth.FromContext(r.Context()).CurrentUserID()
}
