package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type lineageAuditor interface {
	ListLineageViolations(ctx context.Context) ([]models.LineageViolation, error)
}

type meetingAuditor interface {
	ListSyncViolations(ctx context.Context) ([]models.MeetingSyncViolation, error)
	ListApprovedEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Meeting, error)
	UpdateStatus(ctx context.Context, id string, status models.MeetingStatus, responseMessage *string) error
}

// IntegrityReport is the outcome of one sweep.
type IntegrityReport struct {
	RanAt             time.Time                     `json:"ran_at"`
	LineageViolations []models.LineageViolation     `json:"lineage_violations"`
	SyncViolations    []models.MeetingSyncViolation `json:"sync_violations"`
	AutoCompleted     int                           `json:"auto_completed"`
}

// Clean reports whether the sweep found nothing to flag.
func (r IntegrityReport) Clean() bool {
	return len(r.LineageViolations) == 0 && len(r.SyncViolations) == 0
}

// IntegrityService runs the scheduled data audits: reschedule lineage
// consistency, meeting-to-activity sync, and auto-completion of approved
// meetings whose window has passed. Violations are surfaced, never
// auto-repaired; the lineage chain is an audit trail an operator must
// inspect.
type IntegrityService struct {
	sessions   lineageAuditor
	meetings   meetingAuditor
	activities meetingActivityStore
	metrics    *MetricsService
	cron       *cron.Cron
	logger     *zap.Logger
}

// NewIntegrityService builds the sweeper.
func NewIntegrityService(sessions lineageAuditor, meetings meetingAuditor, activities meetingActivityStore, metrics *MetricsService, logger *zap.Logger) *IntegrityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityService{
		sessions:   sessions,
		meetings:   meetings,
		activities: activities,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start schedules the sweep with the given cron expression and begins the
// scheduler.
func (s *IntegrityService) Start(schedule string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("integrity sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("integrity sweep scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *IntegrityService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs every audit once and returns the combined report. Also exposed
// over the admin API for on-demand runs.
func (s *IntegrityService) Sweep(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{RanAt: time.Now().UTC()}

	lineage, err := s.sessions.ListLineageViolations(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataIntegrity.Code, appErrors.ErrDataIntegrity.Status, "lineage audit failed")
	}
	report.LineageViolations = lineage
	for _, v := range lineage {
		s.logger.Warn("reschedule lineage violation",
			zap.String("session_id", v.SessionID),
			zap.String("faculty_id", v.FacultyID),
			zap.String("problem", v.Problem))
		if s.metrics != nil {
			s.metrics.ObserveIntegrityWarning("lineage")
		}
	}

	sync, err := s.meetings.ListSyncViolations(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataIntegrity.Code, appErrors.ErrDataIntegrity.Status, "meeting sync audit failed")
	}
	report.SyncViolations = sync
	for _, v := range sync {
		s.logger.Warn("meeting activity sync violation",
			zap.String("meeting_id", v.MeetingID),
			zap.String("faculty_id", v.FacultyID),
			zap.Int("activity_count", v.ActivityCount))
		if s.metrics != nil {
			s.metrics.ObserveIntegrityWarning("meeting_sync")
		}
	}

	completed, err := s.autoCompleteMeetings(ctx)
	if err != nil {
		return nil, err
	}
	report.AutoCompleted = completed

	s.logger.Info("integrity sweep finished",
		zap.Int("lineage_violations", len(report.LineageViolations)),
		zap.Int("sync_violations", len(report.SyncViolations)),
		zap.Int("auto_completed", report.AutoCompleted))
	return report, nil
}

// autoCompleteMeetings retires approved meetings whose window has fully
// passed, removing their derived activities.
func (s *IntegrityService) autoCompleteMeetings(ctx context.Context) (int, error) {
	ended, err := s.meetings.ListApprovedEndedBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrDataIntegrity.Code, appErrors.ErrDataIntegrity.Status, "auto-complete scan failed")
	}

	completed := 0
	for _, m := range ended {
		if err := s.activities.DeleteByMeeting(ctx, m.ID); err != nil {
			s.logger.Error("failed to remove activity for ended meeting",
				zap.String("meeting_id", m.ID), zap.Error(err))
			continue
		}
		if err := s.meetings.UpdateStatus(ctx, m.ID, models.MeetingCompleted, nil); err != nil {
			s.logger.Error("failed to auto-complete meeting",
				zap.String("meeting_id", m.ID), zap.Error(err))
			continue
		}
		completed++
	}
	return completed, nil
}
