package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prepa3/turnstile/internal/config"
	"github.com/prepa3/turnstile/internal/db"
	"github.com/prepa3/turnstile/internal/health"
	"github.com/prepa3/turnstile/internal/httpapi"
	"github.com/prepa3/turnstile/internal/turnstile/broadcast"
	"github.com/prepa3/turnstile/internal/turnstile/service"
	"github.com/prepa3/turnstile/internal/turnstile/store"
	boltstore "github.com/prepa3/turnstile/internal/turnstile/store/bolt"
	"github.com/prepa3/turnstile/internal/turnstile/store/memory"
	sqlitestore "github.com/prepa3/turnstile/internal/turnstile/store/sqlite"
)

func main() {
	logger := log.New(os.Stdout, "turnstile-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer closeStore()

	// Broadcast
	hub := broadcast.NewHub(logger, cfg.AllowedOrigins)
	defer hub.Close()

	// Services
	attendanceSvc := service.NewAttendanceService(st, hub, service.AttendanceConfig{
		Location:    loc,
		MaxAttempts: cfg.DecideMaxAttempts,
	}, logger)
	reportSvc := service.NewReportService(st)
	rosterSvc := service.NewRosterService(st, logger)

	janitor := service.NewLogJanitor(rosterSvc, service.JanitorConfig{
		Schedule: cfg.LogClearSchedule,
		Location: loc,
	}, logger)
	if err := janitor.Start(); err != nil {
		logger.Fatalf("janitor: %v", err)
	}
	defer janitor.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:            logger,
		Addr:              cfg.HTTPAddr,
		AttendanceService: attendanceSvc,
		ReportService:     reportSvc,
		RosterService:     rosterSvc,
		Events:            hub,
		APIKey:            cfg.APIKey,
	})

	go func() {
		logger.Printf("listening on %s (store=%s tz=%s)", cfg.HTTPAddr, cfg.Store, loc)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	// gRPC health
	var hs *health.Server
	if cfg.GRPCAddr != "" {
		hs = health.NewServer(logger)
		go func() {
			if err := hs.ListenAndServe(cfg.GRPCAddr); err != nil {
				logger.Printf("health server error: %v", err)
				stop()
			}
		}()
		hs.SetServing()
	}

	<-ctx.Done()
	logger.Printf("shutting down")

	if hs != nil {
		hs.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// openStore builds the configured backend and returns its cleanup.
func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		logger.Printf("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil

	case "bolt":
		bs, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return bs, func() { closeLogged(logger, "bolt", bs) }, nil

	case "sqlite":
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
				_ = conn.Close()
				return nil, nil, fmt.Errorf("seed dev: %w", err)
			}
		}
		writer := db.NewWorker(conn)
		return sqlitestore.NewStore(conn, writer), func() {
			writer.Close()
			closeLogged(logger, "sqlite", conn)
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func closeLogged(logger *log.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Printf("close %s: %v", name, err)
	}
}
