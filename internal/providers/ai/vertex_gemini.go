package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

// VertexGemini backs all three AI contracts with one Gemini model.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

const analyzePromptTmpl = `You are a clinical decision-support assistant listening to a live consultation.
Recent conversation:
%s

The %s just said (language %s):
%q

Respond with JSON only, no prose, matching:
{"diagnosticSuggestions": ["..."], "recommendedTests": ["..."], "confidence": 0.0}
Suggestions must be short clinical phrases. Omit arrays you have nothing for.`

func (v *VertexGemini) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	prompt := fmt.Sprintf(analyzePromptTmpl, req.Context, req.Speaker, req.Language, req.Transcript)

	raw, err := v.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out AnalyzeResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("malformed analyze response: %w", err)
	}
	return &out, nil
}

const reducePromptTmpl = `You are summarizing a completed medical consultation for the clinical record.
Full transcript:
%s

Insights noted during the session:
%s

Doctor notes: %s

Respond with JSON only, matching:
{"patientSummary": "...", "doctorSummary": "...", "diagnosis": "...",
 "prescriptions": ["..."], "recommendations": ["..."], "followUpDate": "YYYY-MM-DD"}
patientSummary is plain language for the patient; doctorSummary is clinical.`

func (v *VertexGemini) Reduce(ctx context.Context, req ReduceRequest) (*ReduceResponse, error) {
	insights := "none"
	if len(req.Insights) > 0 {
		insights = "- " + strings.Join(req.Insights, "\n- ")
	}
	prompt := fmt.Sprintf(reducePromptTmpl, req.Transcript, insights, req.Notes)

	raw, err := v.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out ReduceResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("malformed reduce response: %w", err)
	}
	return &out, nil
}

// Reply streams a free-form answer and returns the accumulated text.
func (v *VertexGemini) Reply(ctx context.Context, prompt string) (string, error) {
	var sb strings.Builder

	it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					sb.WriteString(string(t))
				}
			}
		}
	}

	if sb.Len() == 0 {
		return "", errors.New("empty model response")
	}
	return sb.String(), nil
}

func (v *VertexGemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}

	if sb.Len() == 0 {
		return "", errors.New("empty model response")
	}
	return sb.String(), nil
}

// stripFences removes a ```json ... ``` wrapper when the model adds one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
