package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"amanah/internal/escrow"
	escrowhandler "amanah/internal/escrow/handler"
	escrowmetrics "amanah/internal/escrow/metrics"
	escrowservice "amanah/internal/escrow/service"
	"amanah/internal/installment"
	installmentcache "amanah/internal/installment/cache"
	installmenthandler "amanah/internal/installment/handler"
	installmentmetrics "amanah/internal/installment/metrics"
	installmentservice "amanah/internal/installment/service"
	"amanah/internal/platform/config"
	"amanah/internal/platform/httpserver"
	"amanah/internal/platform/logger"
	"amanah/internal/platform/middleware"
	"amanah/internal/platform/postgres"
	platformredis "amanah/internal/platform/redis"
	"amanah/pkg/platform/events"
)

// main wires stores, engines, and transport, then runs the HTTP server,
// event worker, and overdue sweeper under one lifecycle. Business logic
// lives in the internal engine packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err.Error())
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var escrowStore escrow.Store = escrow.NewInMemoryStore()
	var planStore installment.Store = installment.NewInMemoryStore()
	if db != nil {
		escrowStore = escrow.NewPostgres(db)
		planStore = installment.NewPostgres(db)
	} else {
		log.Warn("postgres not configured; using in-memory stores")
	}

	group, ctx := errgroup.WithContext(ctx)

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	} else {
		channel := events.NewChannelPublisher(1024)
		worker := events.NewWorker(events.NewMemorySink(), channel.Inbox(), log)
		group.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		publisher = channel
	}

	escrowSvc, err := escrowservice.New(escrowStore,
		escrowservice.WithLogger(log),
		escrowservice.WithMetrics(escrowmetrics.New()),
		escrowservice.WithPublisher(publisher),
	)
	if err != nil {
		log.Error("escrow service init failed", "error", err.Error())
		os.Exit(1)
	}

	installmentOpts := []installmentservice.Option{
		installmentservice.WithLogger(log),
		installmentservice.WithMetrics(installmentmetrics.New()),
		installmentservice.WithPublisher(publisher),
	}
	if redisClient != nil {
		installmentOpts = append(installmentOpts,
			installmentservice.WithUpcomingCache(
				installmentcache.NewRedis(redisClient.Client, cfg.UpcomingCacheTTL)))
	}
	installmentSvc, err := installmentservice.New(planStore, installmentOpts...)
	if err != nil {
		log.Error("installment service init failed", "error", err.Error())
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))
	escrowhandler.New(escrowSvc, log).Register(router)
	installmenthandler.New(installmentSvc, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	group.Go(func() error {
		log.Info("starting amanah server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.SweepInterval > 0 {
		group.Go(func() error {
			err := installmentSvc.RunSweeper(ctx, cfg.SweepInterval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
}
