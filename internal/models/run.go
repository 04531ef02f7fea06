package models

import "time"

// RunStage is a step of the ingestion pipeline
type RunStage string

const (
	RunStageIdle           RunStage = "idle"
	RunStageCheckFreshness RunStage = "check_freshness"
	RunStageDiscover       RunStage = "discover"
	RunStageDedupAppend    RunStage = "dedup_append"
	RunStageConvertPending RunStage = "convert_pending"
	RunStageEvaluate       RunStage = "evaluate"
	RunStageDone           RunStage = "done"
)

// ConversionFailure records one report that did not convert during a run
type ConversionFailure struct {
	ReportID string `json:"report_id"`
	Error    string `json:"error"`
	Fatal    bool   `json:"fatal"`
}

// RunReport summarises one pipeline run
type RunReport struct {
	RunID        string              `json:"run_id"`
	Forced       bool                `json:"forced"`
	SkippedFresh bool                `json:"skipped_fresh"`
	Discovered   int                 `json:"discovered"`
	Added        int                 `json:"added"`
	Pending      int                 `json:"pending"`
	Converted    int                 `json:"converted"`
	Failed       int                 `json:"failed"`
	Skipped      int                 `json:"skipped"` // pending but marked not retryable
	Cancelled    bool                `json:"cancelled"`
	Failures     []ConversionFailure `json:"failures,omitempty"`
	Error        string              `json:"error,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	Duration     time.Duration       `json:"duration"`
}
