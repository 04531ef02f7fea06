package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
)

// JobHandler is the work performed on each tick
type JobHandler func(ctx context.Context) error

// JobStatus reports the state of a registered job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	IsRunning   bool       `json:"is_running"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     JobHandler
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service runs registered jobs on cron schedules
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	jobMu   sync.Mutex // Protects jobs map
	jobs    map[string]*jobEntry
	running bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob adds a job to the cron scheduler
func (s *Service) RegisterJob(name string, schedule string, description string, handler JobHandler) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// Start begins running registered jobs
func (s *Service) Start() {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop cancels in-flight jobs and waits for them to return
func (s *Service) Stop() {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return
	}
	s.running = false
	s.jobMu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the scheduler has been started
func (s *Service) IsRunning() bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.running
}

// TriggerJob runs a job immediately in the background
func (s *Service) TriggerJob(name string) error {
	s.jobMu.Lock()
	_, exists := s.jobs[name]
	s.jobMu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	common.SafeGo(s.logger, "job:"+name, func() {
		s.executeJob(name)
	})
	return nil
}

// executeJob runs a job handler, skipping the tick if the previous run is still going
func (s *Service) executeJob(name string) {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Job not found")
		return
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Job still running, skipping tick")
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	start := time.Now()
	s.logger.Info().Str("job_name", name).Msg("Job execution started")

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = handler(s.ctx)
	}()

	completed := time.Now()
	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &completed
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.jobMu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Job execution failed")
		return
	}
	s.logger.Info().
		Str("job_name", name).
		Dur("duration", time.Since(start)).
		Msg("Job execution completed")
}

// GetJobStatus returns the status of one job
func (s *Service) GetJobStatus(name string) (*JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return s.statusOf(entry), nil
}

// GetAllJobStatuses returns every job's status ordered by name
func (s *Service) GetAllJobStatuses() []*JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make([]*JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		statuses = append(statuses, s.statusOf(entry))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// statusOf must be called with jobMu held
func (s *Service) statusOf(entry *jobEntry) *JobStatus {
	status := &JobStatus{
		Name:        entry.name,
		Schedule:    entry.schedule,
		Description: entry.description,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
	}
	if entry.lastRun != nil {
		lastRun := *entry.lastRun
		status.LastRun = &lastRun
	}
	if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
		status.NextRun = &next
	}
	return status
}
