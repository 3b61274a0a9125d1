package analyzer

import (
	"fmt"
	"strings"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// eventText renders the event portion of a prompt shared by every
// specialization: the analyzer receives the full enriched event, never the
// raw event alone, per spec §4.2.
func eventText(e models.EnrichedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction %s: customer %s charged %.2f %s at merchant %s (%s), location %s, at %s.",
		e.Event.TransactionID, e.Event.CustomerID, e.Event.Amount, e.Event.Currency,
		e.Event.MerchantID, e.Event.MerchantCategory, e.Event.Location, e.Event.Timestamp.Format("2006-01-02T15:04:05"))

	if e.HasProfile() {
		fmt.Fprintf(&b, " Customer profile: average spend %.2f, daily limit %.2f, typical categories %s, primary location %s, risk tier %s.",
			e.Profile.AverageAmount, e.Profile.DailyLimit, strings.Join(e.Profile.TypicalCategories, ", "),
			e.Profile.PrimaryLocation, e.Profile.RiskTier)
	} else {
		b.WriteString(" No customer profile is on file.")
	}

	if e.HasVelocity() {
		fmt.Fprintf(&b, " %d transactions observed for this customer in the current 5-minute window.", e.Velocity())
	} else {
		b.WriteString(" No velocity data is available for this customer.")
	}

	return b.String()
}

// BuildPrompt constructs the independent-scoring prompt for one
// specialization, asking the Scorer to focus on that specialization's
// concern and to answer using the fixed RISK_SCORE/REASONING/RECOMMENDATION
// response shape.
func BuildPrompt(spec Specialization, enriched models.EnrichedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a fraud analyst specializing in %s (%s).\n", spec.Label, spec.Focus)
	b.WriteString(eventText(enriched))
	b.WriteString("\nRespond with a line beginning RISK_SCORE: followed by a number from 0 to 1, ")
	b.WriteString("a line beginning REASONING: with your analysis, and a line beginning RECOMMENDATION: with your recommended action.")
	return b.String()
}

// BuildCollaborationPrompt constructs the collaboration-phase prompt,
// embedding question alongside the event text and this analyzer's
// specialization.
func BuildCollaborationPrompt(spec Specialization, enriched models.EnrichedEvent, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a fraud analyst specializing in %s. A colleague has raised the following question:\n%s\n", spec.Label, question)
	b.WriteString(eventText(enriched))
	b.WriteString("\nRespond with a line beginning RISK_SCORE: followed by a number from 0 to 1, ")
	b.WriteString("a line beginning REASONING: with your analysis, and a line beginning RECOMMENDATION: with your recommended action.")
	return b.String()
}

// BuildConsensusPrompt constructs the phase-3 consensus prompt: a summary
// of each phase-1 opinion plus the streaming context.
func BuildConsensusPrompt(opinions []models.Opinion, streamingContext string) string {
	var b strings.Builder
	b.WriteString("You are synthesizing a fraud consensus from the following specialist opinions:\n")
	for _, o := range opinions {
		fmt.Fprintf(&b, "- %s (risk %.2f): %s\n", o.AnalyzerID, o.RiskScore, o.Reasoning)
	}
	if streamingContext != "" {
		fmt.Fprintf(&b, "Streaming context: %s\n", streamingContext)
	}
	b.WriteString("Respond with a line beginning RISK_SCORE: followed by a number from 0 to 1, ")
	b.WriteString("a line beginning REASONING: with your synthesis, and a line beginning RECOMMENDATION: with your recommended action.")
	return b.String()
}
