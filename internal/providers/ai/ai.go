package ai

import "context"

// AnalyzeRequest carries one transcript segment plus its rolling context to
// the clinical-insight model.
type AnalyzeRequest struct {
	Transcript string `json:"transcript"`
	Speaker    string `json:"speaker"`
	Language   string `json:"language"`
	Context    string `json:"context"`
}

type AnalyzeResponse struct {
	DiagnosticSuggestions []string `json:"diagnosticSuggestions"`
	RecommendedTests      []string `json:"recommendedTests"`
	Confidence            float64  `json:"confidence"`
}

// InsightService is the incremental analysis contract. Callers must treat
// every error as degradable: insight generation is best-effort.
type InsightService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
}

// ReduceRequest is the end-of-session reduction input: full transcript,
// accumulated insight contents, and doctor notes.
type ReduceRequest struct {
	Transcript string   `json:"transcript"`
	Insights   []string `json:"insights"`
	Notes      string   `json:"notes"`
}

type ReduceResponse struct {
	PatientSummary  string   `json:"patientSummary"`
	DoctorSummary   string   `json:"doctorSummary"`
	Diagnosis       string   `json:"diagnosis"`
	Prescriptions   []string `json:"prescriptions"`
	Recommendations []string `json:"recommendations"`
	FollowUpDate    string   `json:"followUpDate"`
}

// ReportService reduces a completed consultation into a structured report.
type ReportService interface {
	Reduce(ctx context.Context, req ReduceRequest) (*ReduceResponse, error)
}

// ChatService answers free-form patient portal messages.
type ChatService interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// EmbeddingService turns text into a dense vector for semantic recall over
// stored portal messages. Errors are degradable: callers store and answer
// without a vector when embedding fails.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
