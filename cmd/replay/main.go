// Command replay re-runs a batch of recorded transactions through
// enrichment and the coordinator, without publishing anywhere, and logs a
// routing summary of the pass; with -verify-idempotence it instead runs two
// passes and reports whether they produce identical decisions. It is an
// offline verification tool, not a production entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/analyzer"
	"github.com/enterprise/fraud-pipeline/internal/coordinator"
	"github.com/enterprise/fraud-pipeline/internal/enrichment"
	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/replay"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
	"github.com/enterprise/fraud-pipeline/internal/store"
)

func main() {
	eventsPath := flag.String("events", "", "path to a JSON array of recorded transaction events")
	verifyIdempotence := flag.Bool("verify-idempotence", false, "run the batch twice and report any diverging decisions")
	flag.Parse()

	if *eventsPath == "" {
		log.Fatal().Msg("-events is required")
	}

	_ = godotenv.Load()
	cfg := configs.Load()
	setupLogging(cfg.Server.Environment)

	raw, err := os.ReadFile(*eventsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *eventsPath).Msg("failed to read events file")
	}

	var events []models.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		log.Fatal().Err(err).Msg("failed to decode events file")
	}

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
	var analyzers []*analyzer.Analyzer
	for _, spec := range analyzer.All {
		analyzers = append(analyzers, analyzer.New(spec, baseScorer))
	}
	coord := coordinator.New(analyzers, baseScorer, cfg.Risk, cfg.Velocity)

	runner := replay.New(topology, coord, cfg.Risk)
	ctx := context.Background()

	if *verifyIdempotence {
		diverged, err := runner.VerifyIdempotence(ctx, events)
		if err != nil {
			log.Fatal().Err(err).Msg("idempotence verification failed")
		}
		if len(diverged) > 0 {
			log.Error().Strs("transactionIds", diverged).Msg("decisions diverged across replay passes")
			os.Exit(1)
		}
		log.Info().Int("totalEvents", len(events)).Msg("all decisions stable across replay passes")
		return
	}

	summary, err := runner.Run(ctx, events)
	if err != nil {
		log.Fatal().Err(err).Msg("replay run failed")
	}

	log.Info().
		Int("total", summary.TotalEvents).
		Int("fraud", summary.FraudCount).
		Int("review", summary.ReviewCount).
		Int("approved", summary.ApprovedCount).
		Float64("avgConfidence", summary.AverageConfidence).
		Int64("processingTimeMs", summary.ProcessingTimeMs).
		Msg("replay complete")
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
