package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

// Snapshot is the current pipeline status
type Snapshot struct {
	State         models.RunStage   `json:"state"`
	ActiveRunID   string            `json:"active_run_id,omitempty"`
	Converted     int               `json:"converted_this_run"`
	Failed        int               `json:"failed_this_run"`
	LastRun       *models.RunReport `json:"last_run,omitempty"`
	LastEvaluated time.Time         `json:"last_evaluated,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Service tracks pipeline progress from published events
type Service struct {
	mu       sync.RWMutex
	snapshot Snapshot
	logger   arbor.ILogger
}

// NewService creates a new StatusService
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		snapshot: Snapshot{State: models.RunStageIdle, UpdatedAt: time.Now()},
		logger:   logger,
	}
}

// GetStatus returns a copy of the current status (thread-safe)
func (s *Service) GetStatus() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.snapshot
	if s.snapshot.LastRun != nil {
		report := *s.snapshot.LastRun
		snapshot.LastRun = &report
	}
	return snapshot
}

func (s *Service) update(fn func(snapshot *Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snapshot)
	s.snapshot.UpdatedAt = time.Now()
}

// SubscribeToPipelineEvents subscribes to pipeline events to keep the status current
func (s *Service) SubscribeToPipelineEvents(eventService interfaces.EventService) error {
	handlers := map[interfaces.EventType]interfaces.EventHandler{
		interfaces.EventPipelineStarted:        s.onStarted,
		interfaces.EventStageChanged:           s.onStageChanged,
		interfaces.EventReportConverted:        s.onConverted,
		interfaces.EventReportConversionFailed: s.onFailed,
		interfaces.EventEvaluationCompleted:    s.onEvaluated,
		interfaces.EventPipelineCompleted:      s.onCompleted,
	}

	for eventType, handler := range handlers {
		if err := eventService.Subscribe(eventType, handler); err != nil {
			return err
		}
	}

	s.logger.Debug().Msg("StatusService subscribed to pipeline events")
	return nil
}

func (s *Service) onStarted(ctx context.Context, event interfaces.Event) error {
	runID, _ := event.Payload["run_id"].(string)
	s.update(func(snapshot *Snapshot) {
		snapshot.State = models.RunStageCheckFreshness
		snapshot.ActiveRunID = runID
		snapshot.Converted = 0
		snapshot.Failed = 0
	})
	return nil
}

func (s *Service) onStageChanged(ctx context.Context, event interfaces.Event) error {
	stage, ok := event.Payload["stage"].(string)
	if !ok {
		return nil
	}
	s.update(func(snapshot *Snapshot) {
		snapshot.State = models.RunStage(stage)
	})
	return nil
}

func (s *Service) onConverted(ctx context.Context, event interfaces.Event) error {
	s.update(func(snapshot *Snapshot) {
		snapshot.Converted++
	})
	return nil
}

func (s *Service) onFailed(ctx context.Context, event interfaces.Event) error {
	s.update(func(snapshot *Snapshot) {
		snapshot.Failed++
	})
	return nil
}

func (s *Service) onEvaluated(ctx context.Context, event interfaces.Event) error {
	s.update(func(snapshot *Snapshot) {
		snapshot.LastEvaluated = time.Now()
	})
	return nil
}

func (s *Service) onCompleted(ctx context.Context, event interfaces.Event) error {
	report, _ := event.Payload["report"].(*models.RunReport)
	s.update(func(snapshot *Snapshot) {
		snapshot.State = models.RunStageIdle
		snapshot.ActiveRunID = ""
		if report != nil {
			copied := *report
			snapshot.LastRun = &copied
		}
	})
	return nil
}
