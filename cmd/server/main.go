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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"timeclock/internal/platform/config"
	"timeclock/internal/platform/httpserver"
	"timeclock/internal/platform/logger"
	platformmetrics "timeclock/internal/platform/metrics"
	"timeclock/internal/timeclock/handler"
	timeclockmetrics "timeclock/internal/timeclock/metrics"
	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/ratelimit"
	"timeclock/internal/timeclock/recorder"
	"timeclock/internal/timeclock/service"
	"timeclock/internal/timeclock/session"
	"timeclock/internal/timeclock/store"
	"timeclock/pkg/platform/audit/publisher"
	"timeclock/pkg/platform/httputil"
	"timeclock/pkg/platform/middleware/metadata"
	"timeclock/pkg/platform/middleware/request"
	"timeclock/pkg/platform/middleware/requesttime"
)

const (
	shutdownGrace   = 10 * time.Second
	auditBufferSize = 256
)

// main wires the record store, services and HTTP router, then serves until
// SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("timeclock exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.UsesDevSigningKey() {
		log.Warn("using development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := timeclockmetrics.New(reg)
	httpMetrics := platformmetrics.New(reg)

	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	st := store.New(deps.backend,
		store.WithIdentity(models.Identity{
			OrgID:    cfg.Device.OrgID,
			SiteID:   cfg.Device.SiteID,
			DeviceID: cfg.Device.DeviceID,
		}),
		store.WithLogger(log),
		store.WithMetrics(domainMetrics),
	)
	st.Subscribe(domainMetrics.ObserveDocument)
	doc, err := st.Load(ctx)
	if err != nil {
		return err
	}
	log.Info("record store loaded",
		"backend", cfg.Store.Backend,
		"device_id", doc.Device.DeviceID,
		"employees", len(doc.Employees),
		"events", len(doc.Events),
	)

	rec := recorder.New(st,
		recorder.WithLogger(log),
		recorder.WithMetrics(domainMetrics),
	)
	sessions := session.NewService(cfg.Server.JWTSigningKey, session.WithTTL(cfg.Server.SessionTTL))
	auditPublisher := publisher.NewPublisher(deps.auditStore,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
	}
	if !cfg.Server.RateLimitDisabled {
		svcOpts = append(svcOpts, service.WithLoginGuard(
			ratelimit.NewGuard(ratelimit.NewInMemoryLockoutStore(), ratelimit.WithGuardLogger(log)),
		))
	}
	svc := service.New(st, rec, sessions, svcOpts...)
	limiter := ratelimit.NewMiddleware(deps.windowStore(), log,
		ratelimit.WithDisabled(cfg.Server.RateLimitDisabled),
	)

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))
	r.Use(platformmetrics.LatencyMiddleware(httpMetrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	handler.New(svc, sessions, log, httpMetrics,
		handler.WithKioskLimit(limiter.Limit(ratelimit.KioskPolicy)),
		handler.WithLoginLimit(limiter.Limit(ratelimit.LoginPolicy)),
	).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)
	log.Info("starting timeclock",
		"addr", cfg.Server.Addr,
		"api_base", cfg.Server.APIBase,
		"store_backend", cfg.Store.Backend,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, shutdownGrace)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
