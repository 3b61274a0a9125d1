package scorer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
)

// ShadowScorer calls a primary Scorer on the hot path and, for a sampled
// fraction of calls, also calls a candidate Scorer in the background and
// logs the delta. Adapted from the teacher's A/B variant-comparison
// harness (internal/scoring/ab_testing.go), generalized from routing a
// fraction of live traffic to a different rule variant into comparing a
// candidate Scorer profile against the live one without affecting the
// decision path.
type ShadowScorer struct {
	primary   Scorer
	candidate Scorer
	enabled   bool
	sampleFn  func() bool
}

// NewShadowScorer wraps primary with an optional shadow comparison against
// candidate. cfg.ShadowEnabled switches the comparison on; which calls are
// sampled is decided by sampleFn alone (cfg.ShadowSampleRate is not read).
func NewShadowScorer(primary, candidate Scorer, cfg configs.ScorerConfig, sampleFn func() bool) *ShadowScorer {
	return &ShadowScorer{
		primary:   primary,
		candidate: candidate,
		enabled:   cfg.ShadowEnabled && candidate != nil,
		sampleFn:  sampleFn,
	}
}

// Score returns the primary's response. When shadow comparison is enabled
// and the sample draw hits, the candidate is also called and the
// comparison is logged; the candidate result never affects the return
// value or the caller's latency.
func (s *ShadowScorer) Score(ctx context.Context, prompt string) (Response, error) {
	resp, err := s.primary.Score(ctx, prompt)
	if err != nil {
		return Response{}, err
	}

	if s.enabled && s.sampleFn() {
		go s.compare(prompt, resp)
	}

	return resp, nil
}

func (s *ShadowScorer) compare(prompt string, primaryResp Response) {
	ctx := context.Background()
	candidateResp, err := s.candidate.Score(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("shadow scorer candidate call failed")
		return
	}

	delta := primaryResp.RiskScore - candidateResp.RiskScore
	if delta < 0 {
		delta = -delta
	}

	log.Info().
		Float64("primaryRiskScore", primaryResp.RiskScore).
		Float64("candidateRiskScore", candidateResp.RiskScore).
		Float64("delta", delta).
		Msg("shadow scorer comparison")
}
