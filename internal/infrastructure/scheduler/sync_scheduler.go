package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/tallybridge/backend/internal/application/sync"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// SyncJobStatus represents the status of a scheduled sync run
type SyncJobStatus string

const (
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
)

// SyncJob records one scheduled synchronization run for monitoring.
type SyncJob struct {
	ID          uuid.UUID
	Status      SyncJobStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Report      *appsync.SyncReport
}

func newSyncJob() *SyncJob {
	return &SyncJob{
		ID:        uuid.New(),
		Status:    SyncJobStatusRunning,
		StartedAt: time.Now(),
	}
}

// Complete marks the job as successful
func (j *SyncJob) Complete(report *appsync.SyncReport) {
	now := time.Now()
	j.Status = SyncJobStatusSuccess
	j.CompletedAt = &now
	j.Report = report
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ---------------------------------------------------------------------------
// SyncRunner Interface
// ---------------------------------------------------------------------------

// SyncRunner executes one full synchronization run
type SyncRunner interface {
	SyncNow(ctx context.Context) (*appsync.SyncReport, error)
}

// ---------------------------------------------------------------------------
// SyncSchedulerConfig
// ---------------------------------------------------------------------------

// SyncSchedulerConfig holds configuration for the periodic sync scheduler
type SyncSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// Interval is the pause between successful sync runs
	Interval time.Duration
	// RetryDelay is the base delay after a failed run (with exponential backoff)
	RetryDelay time.Duration
	// MaxRetryDelay caps the failure backoff
	MaxRetryDelay time.Duration
	// RunTimeout is the maximum time one sync run can take
	RunTimeout time.Duration
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:       true,
		Interval:      15 * time.Minute,
		RetryDelay:    1 * time.Minute,
		MaxRetryDelay: 30 * time.Minute,
		RunTimeout:    5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryDelay <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxRetryDelay < c.RetryDelay {
		return ErrInvalidConfig
	}
	if c.RunTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler runs full synchronization on a fixed interval. One run at a
// time: the engine enforces the single-writer model and the scheduler never
// overlaps runs. Consecutive failures back off exponentially up to the cap;
// the first success resets the cadence to the configured interval.
type SyncScheduler struct {
	config SyncSchedulerConfig
	runner SyncRunner
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Job history for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*SyncJob
	maxHistory int
}

// NewSyncScheduler creates a new periodic sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, runner SyncRunner, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:     config,
		runner:     runner,
		logger:     logger,
		history:    make([]*SyncJob, 0, 50),
		maxHistory: 50,
	}, nil
}

// Start starts the scheduler loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight run
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// loop runs sync at the configured cadence until the context is cancelled
func (s *SyncScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	failures := 0
	timer := time.NewTimer(0) // first run immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if s.runOnce(ctx) {
			failures = 0
			timer.Reset(s.config.Interval)
		} else {
			failures++
			timer.Reset(s.failureDelay(failures))
		}
	}
}

// runOnce executes one sync run and records it, returning true on success
func (s *SyncScheduler) runOnce(ctx context.Context) bool {
	job := newSyncJob()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	report, err := s.runner.SyncNow(runCtx)
	if err != nil {
		job.Fail(err.Error())
		s.addToHistory(job)
		s.logger.Error("Scheduled sync run failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return false
	}

	job.Complete(report)
	s.addToHistory(job)
	s.logger.Info("Scheduled sync run completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("drained", report.Drain.Synced),
		zap.Int("queue_remaining", report.Drain.Remaining),
		zap.Int("rows_fetched", report.TotalFetched()),
	)
	return true
}

// failureDelay returns RetryDelay * 2^(failures-1) capped at MaxRetryDelay
func (s *SyncScheduler) failureDelay(failures int) time.Duration {
	if failures > 10 {
		return s.config.MaxRetryDelay
	}
	delay := s.config.RetryDelay * time.Duration(1<<(failures-1))
	if delay > s.config.MaxRetryDelay {
		delay = s.config.MaxRetryDelay
	}
	return delay
}

// addToHistory adds a completed job to history
func (s *SyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*SyncJob{job}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// GetJobHistory returns recent job history
func (s *SyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}
