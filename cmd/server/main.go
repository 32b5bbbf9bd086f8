package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"

	"github.com/iliyamo/venue-reservation-sync/internal/config"
	"github.com/iliyamo/venue-reservation-sync/internal/database"
	"github.com/iliyamo/venue-reservation-sync/internal/feed"
	"github.com/iliyamo/venue-reservation-sync/internal/handler"
	"github.com/iliyamo/venue-reservation-sync/internal/outbox"
	"github.com/iliyamo/venue-reservation-sync/internal/repository"
	"github.com/iliyamo/venue-reservation-sync/internal/router"
	"github.com/iliyamo/venue-reservation-sync/internal/session"
	"github.com/iliyamo/venue-reservation-sync/internal/sync"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("remote datastore: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when unavailable; features degrade

	box, err := outbox.Open(cfg.OutboxPath)
	if err != nil {
		log.Fatalf("outbox: %v", err)
	}
	defer box.Close()

	// The session id identifies this instance on the change feed.  A
	// stable fingerprint (hostname) keeps it constant across
	// restarts so the private feed queue is reused.
	sid := session.New()
	if host, herr := os.Hostname(); herr == nil && cfg.SessionKey != "" {
		sid = session.Derive([]byte(cfg.SessionKey), host)
	}
	log.Printf("session %s (env=%s)", sid, cfg.Env)

	remote := repository.NewRemoteStore(db)
	state := sync.NewState()
	guard := sync.NewGuard(ctx, state, cfg.Sync.GuardCooldown)
	agg := sync.NewAggregator(state, rdb)
	pub := feed.NewPublisher(cfg.AMQPURL)
	engine := sync.NewEngine(remote, state, guard, box, pub, agg, sid.String(), cfg.Sync)

	// Serve the persisted snapshot until the first remote contact.
	if err := engine.Restore(ctx); err != nil {
		log.Printf("snapshot restore failed: %v", err)
	}
	if err := engine.Refresh(ctx); err != nil {
		log.Printf("initial refresh failed, serving last known state: %v", err)
	}
	if _, err := engine.Drain(ctx); err != nil {
		log.Printf("startup drain failed: %v", err)
	}

	go func() {
		if err := feed.StartConsumer(ctx, cfg.AMQPURL, sid.String(), func(n feed.Notification) {
			if err := engine.HandleNotification(ctx, n); err != nil {
				log.Printf("feed notification dropped: %v", err)
			}
		}); err != nil {
			log.Printf("feed consumer stopped: %v", err)
		}
	}()

	cr := cron.New()
	every := func(d time.Duration, name string, job func()) {
		if _, err := cr.AddFunc("@every "+d.String(), job); err != nil {
			log.Fatalf("schedule %s: %v", name, err)
		}
	}
	every(cfg.Sync.DrainInterval, "outbox drain", func() {
		if _, err := engine.Drain(ctx); err != nil {
			log.Printf("outbox drain failed: %v", err)
		}
	})
	every(cfg.Sync.RecomputeInterval, "count recompute", func() {
		engine.RecomputeCount(ctx)
	})
	every(cfg.Sync.SweepInterval, "promotion sweep", func() {
		if err := engine.SweepPromotions(ctx, cfg.Sync.SweepInterval); err != nil {
			log.Printf("promotion sweep failed: %v", err)
		}
	})
	cr.Start()
	defer cr.Stop()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, repository.NewUserRepo(db)),
		Reservation: handler.NewReservationHandler(engine),
		Request:     handler.NewRequestHandler(engine),
		Sync:        handler.NewSyncHandler(engine),
		Engine:      handler.Health(engine),
	}, cfg, rdb)

	go func() {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
