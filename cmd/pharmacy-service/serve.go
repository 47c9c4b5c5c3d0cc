package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/consumers"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/events"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/handler"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and event consumers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Str("database", cfg.Database.Target()).Msg("starting Pharmacy Service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, &cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Messaging is optional; without it events are dropped and the catalog is fed over HTTP.
	var (
		publisher service.EventPublisher
		rmq       *messaging.RabbitMQ
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(ctx, &cfg.RabbitMQ, log)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer rmq.Close()

		if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
			return err
		}

		sender, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, serviceName, log)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		publisher = events.NewPublisher(sender, log)
	}

	// Initialize services
	stockService := service.NewStockService(store, publisher, log)
	dispenseService := service.NewDispenseService(store, publisher, service.RetryPolicyFromConfig(cfg.Dispensing), log)
	reportService := service.NewReportService(store, cfg.Dispensing.ReportLimit)

	if rmq != nil {
		catalogConsumer, err := consumers.NewCatalogEventConsumer(rmq, stockService, log)
		if err != nil {
			return fmt.Errorf("failed to create catalog event consumer: %w", err)
		}
		if err := catalogConsumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start catalog event consumer: %w", err)
		}
	}

	var brokerHealth func() map[string]string
	if rmq != nil {
		brokerHealth = rmq.Health
	}

	router := handler.NewRouter(handler.Handlers{
		Medicines: handler.NewMedicineHandler(stockService, log),
		Lots:      handler.NewLotHandler(stockService, log),
		Dispenses: handler.NewDispenseHandler(dispenseService, reportService, log),
		Reports:   handler.NewReportHandler(reportService, log),
		Health:    handler.NewHealthHandler(serviceName, store, brokerHealth),
	}, cfg.Server.CORSOrigins, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	return shutdown(srv, log)
}

func shutdown(srv *http.Server, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
