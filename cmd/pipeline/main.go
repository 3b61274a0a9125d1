// Command pipeline runs the streaming decision pipeline: enrichment,
// per-record fan-out to the analyzer panel, routing, and the feedback
// sink, all driven off the Kafka bus.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/analyzer"
	"github.com/enterprise/fraud-pipeline/internal/bus"
	"github.com/enterprise/fraud-pipeline/internal/coordinator"
	"github.com/enterprise/fraud-pipeline/internal/decision"
	"github.com/enterprise/fraud-pipeline/internal/enrichment"
	"github.com/enterprise/fraud-pipeline/internal/feedback"
	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/repositories"
	"github.com/enterprise/fraud-pipeline/internal/router"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
	"github.com/enterprise/fraud-pipeline/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := configs.Load()

	setupLogging(cfg.Server.Environment)

	log.Info().
		Str("environment", cfg.Server.Environment).
		Strs("brokers", cfg.Bus.Brokers).
		Msg("starting fraud pipeline")

	db, err := repositories.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	profileStore, err := store.NewProfileStore(cfg.Store.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open profile store")
	}
	defer profileStore.Close()

	velocityStore, err := store.NewVelocityStore(cfg.Store.DataDir, cfg.Velocity.Window)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open velocity store")
	}
	defer velocityStore.Close()

	topology := enrichment.New(profileStore, velocityStore)

	baseScorer := scorer.New(cfg.Scorer)

	var liveScorer scorer.Scorer = baseScorer
	if cacheClient, err := scorer.NewCacheClient(cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("scorer response cache unavailable, continuing without it")
	} else {
		defer cacheClient.Close()
		liveScorer = scorer.NewCachingScorer(baseScorer, cacheClient)
	}

	var analyzers []*analyzer.Analyzer
	for _, spec := range analyzer.All {
		analyzers = append(analyzers, analyzer.New(spec, liveScorer))
	}
	coord := coordinator.New(analyzers, liveScorer, cfg.Risk, cfg.Velocity)

	producer, err := bus.NewProducer(cfg.Bus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Kafka producer")
	}
	defer producer.Close()

	feedbackRepo := repositories.NewFeedbackRepository(db)
	feedbackSink := feedback.New(feedbackRepo, analyzers)

	stage := decision.New("decision-stage-0", topology, coord, publishDecision(producer, cfg.Bus, cfg.Risk), cfg.Worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 3)

	go runConsumer(ctx, cfg, []string{cfg.Bus.TopicTransactions}, errCh, func(ctx context.Context, msg bus.Message) error {
		var event models.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("malformed event: %w", err)
		}
		stage.Process(ctx, event)
		return nil
	})

	go runConsumer(ctx, cfg, []string{cfg.Bus.TopicProfiles}, errCh, func(ctx context.Context, msg bus.Message) error {
		var profile models.Profile
		if err := json.Unmarshal(msg.Value, &profile); err != nil {
			return fmt.Errorf("malformed profile: %w", err)
		}
		return topology.OnProfile(profile)
	})

	go runConsumer(ctx, cfg, []string{cfg.Bus.TopicFeedback}, errCh, feedbackSink.HandleMessage)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("consumer error")
		}
		cancel()
	}

	log.Info().Msg("fraud pipeline shutdown complete")
}

func runConsumer(ctx context.Context, cfg *configs.Config, topics []string, errCh chan<- error, handler bus.RecordHandler) {
	consumer, err := bus.NewConsumer(cfg.Bus, topics, handler)
	if err != nil {
		errCh <- err
		return
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && err != context.Canceled {
		errCh <- err
	}
}

func publishDecision(producer *bus.Producer, busCfg configs.BusConfig, riskCfg configs.RiskConfig) func(context.Context, models.Decision) error {
	r := router.New(riskCfg)
	return func(ctx context.Context, d models.Decision) error {
		envelope := r.Route(d)

		topic := busCfg.TopicApproved
		switch envelope.EnvelopeType() {
		case "AI_FRAUD_ALERT":
			topic = busCfg.TopicFraudAlerts
		case "AI_REVIEW_CASE":
			topic = busCfg.TopicHumanReview
		}

		// Output topics are keyed by payer id (spec §6), preserving per-payer
		// ordering across partitions the way the transactions topic does.
		return producer.Publish(ctx, topic, d.CustomerID, envelope)
	}
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
