// Package scorer talks to the external Scorer capability: an opaque
// prompt-in, text-out endpoint fronted by a circuit breaker, with a
// response cache and an optional shadow-comparison path.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/enterprise/fraud-pipeline/configs"
)

// Response is the parsed result of one Scorer call.
type Response struct {
	RiskScore      float64
	Reasoning      string
	Recommendation string
	Raw            string
}

// Scorer is the capability contract every analyzer calls through: prompt
// in, parsed response out. Nothing upstream knows whether a call landed on
// the cloud or local profile, or tripped the breaker.
type Scorer interface {
	Score(ctx context.Context, prompt string) (Response, error)
}

// httpScorer posts a prompt to the configured endpoint and parses its text
// response by the fixed rules spec §4.1 describes. No ecosystem HTTP client
// library is grounded in the retrieved pack for outbound calls of this
// shape, so this uses net/http directly rather than inventing a dependency.
type httpScorer struct {
	endpoint    string
	credentials string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
}

// New builds the Scorer for the configured profile ("cloud" or "local"),
// wrapped in a circuit breaker matching spec §7's "Scorer unavailable"
// handling.
func New(cfg configs.ScorerConfig) Scorer {
	endpoint := cfg.CloudEndpoint
	if cfg.Profile == "local" {
		endpoint = cfg.LocalEndpoint
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "scorer-" + cfg.Profile,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("scorer circuit breaker state change")
		},
	})

	return &httpScorer{
		endpoint:    endpoint,
		credentials: cfg.Credentials,
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		breaker:     breaker,
	}
}

type scorerRequest struct {
	Prompt string `json:"prompt"`
}

// Score sends prompt to the Scorer endpoint through the circuit breaker and
// parses the response text into a Response.
func (s *httpScorer) Score(ctx context.Context, prompt string) (Response, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.call(ctx, prompt)
	})
	if err != nil {
		return Response{}, fmt.Errorf("scorer call failed: %w", err)
	}
	return result.(Response), nil
}

func (s *httpScorer) call(ctx context.Context, prompt string) (Response, error) {
	body, err := json.Marshal(scorerRequest{Prompt: prompt})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal scorer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build scorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.credentials != "" {
		req.Header.Set("Authorization", "Bearer "+s.credentials)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Response{}, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read scorer response: %w", err)
	}

	return ParseResponse(string(text)), nil
}

// ParseResponse applies the fixed text-parsing rules from spec §4.1,
// reproduced exactly: a "RISK_SCORE:" line wins over the keyword
// heuristic, which wins over a neutral 0.5 default; reasoning is the span
// between "REASONING:" and "RECOMMENDATION:" (or the first 200 characters
// of the raw text when absent); recommendation is the span after
// "RECOMMENDATION:" (or a fixed standard-review string when absent).
func ParseResponse(text string) Response {
	r := Response{Raw: text}
	r.RiskScore = parseRiskScore(text)
	r.Reasoning = parseReasoning(text)
	r.Recommendation = parseRecommendation(text)
	return r
}

func parseRiskScore(text string) float64 {
	if idx := strings.Index(strings.ToUpper(text), "RISK_SCORE:"); idx >= 0 {
		rest := text[idx+len("RISK_SCORE:"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if score, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
			return clamp01(score)
		}
	}
	return keywordHeuristic(text)
}

func keywordHeuristic(text string) float64 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "high risk") || strings.Contains(lower, "fraudulent") || strings.Contains(lower, "suspicious"):
		return 0.8
	case strings.Contains(lower, "medium risk") || strings.Contains(lower, "unusual") || strings.Contains(lower, "concerning"):
		return 0.6
	case strings.Contains(lower, "low risk") || strings.Contains(lower, "normal") || strings.Contains(lower, "legitimate"):
		return 0.2
	default:
		return 0.5
	}
}

func parseReasoning(text string) string {
	upper := strings.ToUpper(text)
	start := strings.Index(upper, "REASONING:")
	if start < 0 {
		if len(text) > 200 {
			return text[:200] + "…"
		}
		return text + "…"
	}
	start += len("REASONING:")
	rest := text[start:]
	if end := strings.Index(strings.ToUpper(rest), "RECOMMENDATION:"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func parseRecommendation(text string) string {
	upper := strings.ToUpper(text)
	start := strings.Index(upper, "RECOMMENDATION:")
	if start < 0 {
		return "Standard fraud review recommended"
	}
	return strings.TrimSpace(text[start+len("RECOMMENDATION:"):])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
