package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/config"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/db"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/intake"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/pipeline"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/repository"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/rules"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/schema"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/uniqueness"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/faults"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/kafka"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/logger"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/metrics"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var source schema.Source
	switch cfg.SchemaSource {
	case "dynamic":
		source = schema.DynamicSource{Path: cfg.SchemaDocument}
	default:
		source = schema.StaticSource{}
	}
	registry, err := schema.NewRegistry(source)
	if err != nil {
		log.Fatalf("Failed to load category schemas: %v", err)
	}

	subs := repository.NewSubmissionRepository(conn)
	ledger := repository.NewLedgerRepository(conn)
	records := repository.NewCategoryRecordRepository(conn)
	orgs := repository.NewOrganizationRepository(conn)
	stations := repository.NewStationRepository(conn)

	detector := uniqueness.NewDetector(records)
	ruleRegistry := rules.DefaultRegistry()
	m := metrics.New()

	integrityProducer := kafka.NewProducer(cfg.Kafka, cfg.Topics.Integrity)
	validationProducer := kafka.NewProducer(cfg.Kafka, cfg.Topics.Validation)
	actionsProducer := kafka.NewProducer(cfg.Kafka, cfg.Topics.Actions)
	notifyProducer := kafka.NewProducer(cfg.Kafka, cfg.Topics.Notifications)
	defer func() {
		_ = integrityProducer.Close()
		_ = validationProducer.Close()
		_ = actionsProducer.Close()
		_ = notifyProducer.Close()
	}()

	orch := pipeline.NewOrchestrator(
		subs, ledger, records, stations,
		registry, ruleRegistry, detector,
		validationProducer, notifyProducer,
		pipeline.Options{
			Features:     cfg.Features,
			StageTimeout: cfg.StageTimeout,
			Metrics:      m,
		},
	)

	consumers := []*kafka.Consumer{
		kafka.NewConsumer(cfg.Kafka, cfg.Topics.Integrity, stageHandler(orch, func(ctx context.Context, msg pipeline.IntegrityMessage) error {
			return orch.HandleIntegrity(ctx, msg)
		}, func(msg pipeline.IntegrityMessage) uuid.UUID { return msg.SubmissionID })),
		kafka.NewConsumer(cfg.Kafka, cfg.Topics.Validation, stageHandler(orch, func(ctx context.Context, msg pipeline.ValidationMessage) error {
			return orch.HandleValidation(ctx, msg)
		}, func(msg pipeline.ValidationMessage) uuid.UUID { return msg.SubmissionID })),
		kafka.NewConsumer(cfg.Kafka, cfg.Topics.Actions, stageHandler(orch, func(ctx context.Context, msg pipeline.ActionMessage) error {
			switch msg.Type {
			case pipeline.ActionSubmit:
				return orch.HandleSubmit(ctx, msg)
			case pipeline.ActionApprove, pipeline.ActionReject:
				return orch.HandleApproval(ctx, msg)
			default:
				slog.Warn("unknown action type", "type", msg.Type, "submission_id", msg.SubmissionID)
				return nil
			}
		}, func(msg pipeline.ActionMessage) uuid.UUID { return msg.SubmissionID })),
	}
	for _, c := range consumers {
		consumer := c
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("consumer stopped", "error", err)
			}
		}()
	}
	defer func() {
		for _, c := range consumers {
			_ = c.Close()
		}
	}()

	go func() {
		if err := m.Serve(ctx, cfg.MetricsAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()

	handler := intake.NewHandler(subs, orgs, ledger, registry, integrityProducer, actionsProducer, cfg.StuckAfter).WithMetrics(m)
	server := &http.Server{
		Addr:         cfg.IntakeAddr,
		Handler:      handler.Routes(cfg.AllowedOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("intake server listening", "addr", cfg.IntakeAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start intake server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("intake server forced to shut down", "error", err)
	}
	slog.Info("pipeline exited")
}

// stageHandler adapts one orchestrator stage to the consumer contract:
// retryable faults leave the offset uncommitted, everything else is settled
// before committing so redelivery cannot loop on a defect.
func stageHandler[T any](orch *pipeline.Orchestrator, handle func(context.Context, T) error, id func(T) uuid.UUID) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		msg, err := kafka.DecodeJSON[T](value)
		if err != nil {
			slog.Error("dropping undecodable message", "key", string(key), "error", err)
			return nil
		}
		err = handle(ctx, msg)
		if err == nil {
			return nil
		}
		if faults.Retryable(err) {
			return err
		}
		var fault *faults.Fault
		if errors.As(err, &fault) {
			// Classified business faults (unauthorized actor, illegal
			// transition) are settled by refusing them, not by ledger entries.
			slog.Warn("stage refused message", "submission_id", id(msg), "error", err)
			return nil
		}
		if settleErr := orch.SettleUnknown(ctx, id(msg), err); settleErr != nil {
			if faults.Retryable(settleErr) {
				return settleErr
			}
			slog.Error("failed to settle stage defect", "submission_id", id(msg), "error", settleErr)
		}
		return nil
	}
}
