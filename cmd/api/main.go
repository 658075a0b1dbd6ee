package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/events"
	"github.com/Dan9191/card-service/internal/handler"
	"github.com/Dan9191/card-service/internal/integrations/cbr"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/repository/memory"
	"github.com/Dan9191/card-service/internal/scheduler"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/Dan9191/card-service/internal/utils/email"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env for local development, missing file is fine
	_ = godotenv.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	// Event publisher, optional
	var publisher service.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warnf("Failed to connect to AMQP, events disabled: %v", err)
		} else {
			defer p.Close()
			publisher = p
		}
	} else {
		logger.Info("AMQP disabled, EMI events will not be published")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize layers
	cbrClient := cbr.NewClient(cfg, logger)
	svc := service.NewService(store, logger, cfg,
		service.WithMailer(email.NewSender(cfg, logger)),
		service.WithRateSource(cbrClient),
		service.WithPublisher(publisher),
		service.WithMetrics(m),
	)
	h := handler.NewHandler(svc, logger, cbrClient)
	r := handler.NewRouter(h, m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	sched, err := scheduler.New(cfg.ReminderCron, svc, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize scheduler: %v", err)
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("Server stopped with error: %v", err)
	}
	logger.Info("Server stopped")
}

// openStore selects the storage backend. The postgres backend is migrated
// before use.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (service.Store, *sql.DB, error) {
	if cfg.DataBackend == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), nil, nil
	}

	if err := repository.RunMigrations(cfg.DBConn); err != nil {
		return nil, nil, err
	}
	db, err := repository.Open(ctx, cfg.DBConn)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to PostgreSQL")
	return repository.NewRepository(db), db, nil
}
