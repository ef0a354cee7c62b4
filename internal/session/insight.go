package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vitalink/teleconsult/internal/providers/ai"
)

const (
	// contextWindow is how many recent transcript entries accompany each
	// analyze call.
	contextWindow = 5

	// defaultInsightConfidence applies when the model omits a confidence.
	defaultInsightConfidence = 0.7

	defaultAITimeout = 10 * time.Second
)

// InsightGenerator wraps the external analysis service. It never returns an
// error: a failed or malformed call yields no insights and a warning log,
// because insight generation must never block or fail the recording flow.
type InsightGenerator struct {
	svc     ai.InsightService
	log     *logrus.Logger
	timeout time.Duration
}

func NewInsightGenerator(svc ai.InsightService, log *logrus.Logger) *InsightGenerator {
	if log == nil {
		log = logrus.New()
	}
	return &InsightGenerator{svc: svc, log: log, timeout: defaultAITimeout}
}

// Analyze sends one attributed segment with its rolling context and maps the
// response into typed insights. recent must be the buffer tail at dispatch
// time; span is the matching context range.
func (g *InsightGenerator) Analyze(ctx context.Context, entry TranscriptEntry, language string, recent []TranscriptEntry, span ContextRange) []Insight {
	if g.svc == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.svc.Analyze(ctx, ai.AnalyzeRequest{
		Transcript: entry.Text,
		Speaker:    string(entry.Speaker),
		Language:   language,
		Context:    RenderLines(recent),
	})
	if err != nil {
		g.log.WithError(err).Warn("insight analysis unavailable, continuing without")
		return nil
	}
	if resp == nil {
		g.log.Warn("insight analysis returned nothing, continuing without")
		return nil
	}

	confidence := resp.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = defaultInsightConfidence
	}

	now := time.Now().UTC()
	var out []Insight

	if len(resp.DiagnosticSuggestions) > 0 {
		content := resp.DiagnosticSuggestions[0]
		if content == "" {
			content = "Diagnostic consideration flagged; review transcript segment."
		}
		out = append(out, Insight{
			ID:           uuid.NewString(),
			Kind:         InsightDiagnostic,
			Content:      content,
			Confidence:   confidence,
			Priority:     PriorityHigh,
			GeneratedAt:  now,
			ContextRange: span,
		})
	}

	if len(resp.RecommendedTests) > 0 {
		content := resp.RecommendedTests[0]
		if content == "" {
			content = "Additional testing suggested; review transcript segment."
		}
		out = append(out, Insight{
			ID:           uuid.NewString(),
			Kind:         InsightTreatment,
			Content:      content,
			Confidence:   confidence,
			Priority:     PriorityMedium,
			GeneratedAt:  now,
			ContextRange: span,
		})
	}

	return out
}
