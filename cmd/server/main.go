// Command server runs the hackgate HTTP API: team registry, invite tokens,
// nomination quotas, jury panels, and selection recording.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eligibilityhandler "hackgate/internal/eligibility/handler"
	"hackgate/internal/identity"
	invitehandler "hackgate/internal/invite/handler"
	invitemetrics "hackgate/internal/invite/metrics"
	inviteservice "hackgate/internal/invite/service"
	invitestore "hackgate/internal/invite/store"
	juryhandler "hackgate/internal/jury/handler"
	jurymetrics "hackgate/internal/jury/metrics"
	juryservice "hackgate/internal/jury/service"
	jurystore "hackgate/internal/jury/store"
	nominationhandler "hackgate/internal/nomination/handler"
	nominationmetrics "hackgate/internal/nomination/metrics"
	nominationservice "hackgate/internal/nomination/service"
	nominationstore "hackgate/internal/nomination/store"
	"hackgate/internal/notify"
	"hackgate/internal/platform/config"
	"hackgate/internal/platform/httpserver"
	"hackgate/internal/platform/logger"
	"hackgate/internal/platform/middleware"
	"hackgate/internal/platform/postgres"
	platformredis "hackgate/internal/platform/redis"
	"hackgate/internal/profile"
	registryhandler "hackgate/internal/registry/handler"
	registrymetrics "hackgate/internal/registry/metrics"
	registryservice "hackgate/internal/registry/service"
	teamstore "hackgate/internal/registry/store/team"
	selectionhandler "hackgate/internal/selection/handler"
	selectionservice "hackgate/internal/selection/service"
	"hackgate/pkg/platform/audit"
	auditkafka "hackgate/pkg/platform/audit/kafka"
	auditmemory "hackgate/pkg/platform/audit/store/memory"
	auditworker "hackgate/pkg/platform/audit/worker"
	"hackgate/pkg/platform/circuit"
	"hackgate/pkg/platform/keylock"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	// Persistence: Postgres and Redis when configured, in-memory otherwise.
	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var teams registryservice.TeamStore
	var institutes nominationservice.InstituteStore
	var counter nominationservice.NominationCounter
	var panels juryservice.PanelStore
	if db != nil {
		pg := teamstore.NewPostgres(db)
		teams, counter = pg, pg
		institutes = nominationstore.NewPostgres(db)
		panels = jurystore.NewPostgres(db)
	} else {
		mem := teamstore.NewInMemoryStore()
		teams, counter = mem, mem
		institutes = nominationstore.NewInMemoryStore()
		panels = jurystore.NewInMemoryStore()
	}

	var invites inviteservice.TokenStore
	if redisClient != nil {
		invites = invitestore.NewRedisStore(redisClient.Client)
	} else {
		invites = invitestore.NewInMemoryStore()
	}

	// Profile linkage is served by the identity platform; the in-process
	// store stands in until that integration lands.
	profiles := profile.NewInMemoryStore()

	// Audit pipeline: Kafka when brokers are configured, otherwise an
	// in-process worker draining to the memory store.
	var auditPublisher audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaPub.Close()
		auditPublisher = kafkaPub
	} else {
		inbox := make(chan audit.Event, 1024)
		worker := auditworker.NewWorker(auditmemory.NewInMemoryStore(), inbox)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
		}()
		auditPublisher = auditworker.NewChannelPublisher(inbox)
	}

	dispatcher := notify.NewDispatcher(&notify.SlogNotifier{Logger: log.With("component", "notify")}, 256, log)
	go dispatcher.Run(ctx)

	teamLock := keylock.New(keylock.WithDefaultTimeout(cfg.LockTimeout))
	quotaLock := keylock.New(keylock.WithDefaultTimeout(cfg.LockTimeout))

	registryMetrics := registrymetrics.New()
	inviteMetrics := invitemetrics.New()
	nominationMetrics := nominationmetrics.New()
	juryMetrics := jurymetrics.New()

	registry := registryservice.New(teams, profiles,
		registryservice.WithLogger(log.With("component", "registry")),
		registryservice.WithAuditPublisher(auditPublisher),
		registryservice.WithMetrics(registryMetrics),
		registryservice.WithInviteRevoker(invites),
		registryservice.WithUpdateRetries(cfg.UpdateRetries),
	)

	inviteSvc := inviteservice.New(invites, registry, teamLock,
		inviteservice.WithLogger(log.With("component", "invite")),
		inviteservice.WithAuditPublisher(auditPublisher),
		inviteservice.WithMetrics(inviteMetrics),
		inviteservice.WithNotifier(dispatcher),
	)

	nominationSvc := nominationservice.New(institutes, registry, counter, profiles, quotaLock,
		nominationservice.WithLogger(log.With("component", "nomination")),
		nominationservice.WithAuditPublisher(auditPublisher),
		nominationservice.WithMetrics(nominationMetrics),
		nominationservice.WithNotifier(dispatcher),
		nominationservice.WithEvaluationWindow(cfg.EvaluationWindowStart, cfg.EvaluationWindowEnd),
		nominationservice.WithUpdateRetries(cfg.UpdateRetries),
	)

	provisioner := identity.NewBreakerProvisioner(
		identity.NewInMemoryProvisioner(),
		circuit.New("identity-provider", circuit.WithFailureThreshold(3)),
		identity.WithBreakerLogger(log.With("component", "identity")),
	)

	jurySvc := juryservice.New(panels, provisioner, registry,
		juryservice.WithLogger(log.With("component", "jury")),
		juryservice.WithAuditPublisher(auditPublisher),
		juryservice.WithMetrics(juryMetrics),
		juryservice.WithNotifier(dispatcher),
		juryservice.WithUpdateRetries(cfg.UpdateRetries),
	)

	selectionSvc := selectionservice.New(registry, cfg.SelectionOpensAt,
		selectionservice.WithLogger(log.With("component", "selection")),
		selectionservice.WithAuditPublisher(auditPublisher),
		selectionservice.WithNotifier(dispatcher),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestMeta)
	r.Use(middleware.Device)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			if err := db.PingContext(req.Context()); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(req.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth([]byte(cfg.JWTSigningKey)))

		registryhandler.New(registry, log.With("handler", "registry"), registryMetrics).Register(r)
		invitehandler.New(inviteSvc, log.With("handler", "invite"), inviteMetrics).Register(r)
		eligibilityhandler.New(registry, profiles, log.With("handler", "eligibility")).Register(r)
		nominationhandler.New(nominationSvc, log.With("handler", "nomination"), nominationMetrics).Register(r)
		juryhandler.New(jurySvc, log.With("handler", "jury"), juryMetrics).Register(r)
		selectionhandler.New(selectionSvc, log.With("handler", "selection")).Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	errCh := make(chan error, 1)
	go func() {
		log.Info("hackgate listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
