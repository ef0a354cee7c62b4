package session

import "strings"

// SpeakerClassifier decides who spoke a finalized segment. The production
// implementation is lexical; the interface leaves room for a future
// voice-biometric classifier without touching the state machine.
type SpeakerClassifier interface {
	Classify(text string, confidence float64) Speaker
}

// clinicalTerms are the markers that, combined with high recognition
// confidence, attribute a segment to the doctor.
var clinicalTerms = []string{
	"diagnosis",
	"symptoms",
	"treatment",
	"prescription",
	"examination",
}

// HeuristicClassifier attributes segments by lexical and confidence signals.
// The default is patient: mis-attributing doctor authority is the costlier
// mistake.
type HeuristicClassifier struct{}

func NewHeuristicClassifier() HeuristicClassifier { return HeuristicClassifier{} }

func (HeuristicClassifier) Classify(text string, confidence float64) Speaker {
	lower := strings.ToLower(text)

	if confidence > 0.8 {
		for _, term := range clinicalTerms {
			if strings.Contains(lower, term) {
				return SpeakerDoctor
			}
		}
	}

	if confidence < 0.7 && (strings.Contains(lower, "i feel") || strings.Contains(lower, "my")) {
		return SpeakerPatient
	}

	return SpeakerPatient
}
