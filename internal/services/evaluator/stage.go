package evaluator

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Stage is a step of an evaluation run
type Stage int

const (
	StageIdle Stage = iota
	StageClassify
	StageGroup
	StageEvaluate
	StageScore
	StagePersist
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageClassify:
		return "classify"
	case StageGroup:
		return "group"
	case StageEvaluate:
		return "evaluate"
	case StageScore:
		return "score"
	case StagePersist:
		return "persist"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// stageTracker records the current stage of a run and logs each transition
type stageTracker struct {
	mu      sync.RWMutex
	current Stage
	entered time.Time
	runID   string
	logger  arbor.ILogger
}

func (t *stageTracker) begin(runID string) {
	t.mu.Lock()
	t.runID = runID
	t.current = StageIdle
	t.entered = time.Now()
	t.mu.Unlock()
}

func (t *stageTracker) advance(next Stage) {
	t.mu.Lock()
	prev := t.current
	elapsed := time.Since(t.entered)
	t.current = next
	t.entered = time.Now()
	runID := t.runID
	t.mu.Unlock()

	t.logger.Debug().
		Str("run_id", runID).
		Str("from", prev.String()).
		Str("to", next.String()).
		Dur("elapsed", elapsed).
		Msg("Evaluation stage transition")
}

func (t *stageTracker) stage() Stage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}
