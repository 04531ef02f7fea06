package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Sentiment is the direction of an industry evaluation
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// ParseSentiment normalises s and reports whether it is a known sentiment
func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(strings.ToUpper(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, true
	case SentimentNegative:
		return SentimentNegative, true
	case SentimentNeutral:
		return SentimentNeutral, true
	}
	return SentimentNeutral, false
}

// DefaultConfidence is used when a confidence score cannot be parsed or is out of range
const DefaultConfidence = 0.5

// UnscoredEvaluation is the first-pass result for one industry.
// It carries no confidence and is never persisted; Score turns it into an IndustryEvaluation.
type UnscoredEvaluation struct {
	IndustryName        string
	Sentiment           Sentiment
	Summary             string
	KeyDrivers          []string
	KeyRisks            []string
	ReferencedReportIDs []string
}

// Score attaches a second-pass confidence. Values outside [0,1] become DefaultConfidence.
func (u UnscoredEvaluation) Score(confidence float64) IndustryEvaluation {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		confidence = DefaultConfidence
	}
	return IndustryEvaluation{
		IndustryName:        u.IndustryName,
		Sentiment:           u.Sentiment,
		Confidence:          confidence,
		Summary:             u.Summary,
		KeyDrivers:          u.KeyDrivers,
		KeyRisks:            u.KeyRisks,
		ReferencedReportIDs: u.ReferencedReportIDs,
	}
}

// IndustryEvaluation is a scored evaluation for one industry
type IndustryEvaluation struct {
	IndustryName        string    `json:"industry_name"`
	Sentiment           Sentiment `json:"sentiment"`
	Confidence          float64   `json:"confidence"`
	Summary             string    `json:"summary"`
	KeyDrivers          []string  `json:"key_drivers"`
	KeyRisks            []string  `json:"key_risks"`
	ReferencedReportIDs []string  `json:"referenced_report_ids"`
}

// EvaluationArtifact is the full result of one evaluation run.
// Each run replaces the previous artifact wholesale.
type EvaluationArtifact struct {
	RunID                string               `json:"run_id"`
	EvaluatedAt          time.Time            `json:"evaluated_at"`
	EvaluatedReportCount int                  `json:"evaluated_report_count"`
	Evaluations          []IndustryEvaluation `json:"evaluations"`
}

// EvaluationArtifactKey is the single key the current artifact is stored under
const EvaluationArtifactKey = "current"

// Validate checks every evaluation has a known sentiment and a confidence in [0,1]
func (a *EvaluationArtifact) Validate() error {
	for _, e := range a.Evaluations {
		if _, ok := ParseSentiment(string(e.Sentiment)); !ok {
			return fmt.Errorf("evaluation %q has unknown sentiment %q", e.IndustryName, e.Sentiment)
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return fmt.Errorf("evaluation %q has confidence %f outside [0,1]", e.IndustryName, e.Confidence)
		}
	}
	return nil
}

// FilterForConsumers drops neutral and low-confidence evaluations.
// The stored artifact keeps everything; this applies on read only.
func FilterForConsumers(evaluations []IndustryEvaluation, minConfidence float64) []IndustryEvaluation {
	filtered := make([]IndustryEvaluation, 0, len(evaluations))
	for _, e := range evaluations {
		if e.Sentiment == SentimentNeutral || e.Confidence < minConfidence {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}
