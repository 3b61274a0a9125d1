// Command httpapi starts the synchronous analyze-one HTTP boundary. It
// opens the same stores as the streaming pipeline (for its health report)
// and builds the same analyzer panel, but never publishes to the bus itself.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/analyzer"
	"github.com/enterprise/fraud-pipeline/internal/bus"
	"github.com/enterprise/fraud-pipeline/internal/coordinator"
	"github.com/enterprise/fraud-pipeline/internal/enrichment"
	"github.com/enterprise/fraud-pipeline/internal/httpapi"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
	"github.com/enterprise/fraud-pipeline/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := configs.Load()
	setupLogging(cfg.Server.Environment)

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
		log.Fatal().Err(err).Msg("failed to connect to Kafka bus")
	}
	defer producer.Close()

	server := httpapi.New(topology, coord, producer, cfg.Server.Environment)

	log.Info().Str("port", cfg.Server.Port).Msg("starting fraud pipeline HTTP boundary")
	if err := server.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("http server exited")
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
