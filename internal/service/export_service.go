package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
	"github.com/campusdesk/faculty-api/pkg/export"
)

// ExportFormat selects the report rendering.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type sessionLister interface {
	List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult carries the rendered document and its HTTP metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders faculty session reports as CSV or PDF downloads.
type ExportService struct {
	sessions sessionLister
	csv      renderer
	pdf      renderer
	logger   *zap.Logger
}

// NewExportService builds the service with both renderers.
func NewExportService(sessions sessionLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		sessions: sessions,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

var sessionReportHeaders = []string{"Date", "Time", "Subject", "Group", "Status", "Topic"}

// SessionReport renders the faculty's sessions in [from, to] as a download.
func (s *ExportService) SessionReport(ctx context.Context, facultyID string, from, to time.Time, format ExportFormat) (*ExportResult, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must not precede range start")
	}

	sessions, err := s.sessions.List(ctx, models.ClassSessionFilter{
		FacultyID: facultyID,
		From:      &from,
		To:        &to,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, map[string]string{
			"Date":    session.StartsAt.Format("2006-01-02"),
			"Time":    session.StartsAt.Format("15:04"),
			"Subject": session.Subject,
			"Group":   session.GroupID,
			"Status":  string(session.Status),
			"Topic":   session.Topic,
		})
	}

	data := export.Dataset{
		Title:    "Class Session Report",
		Subtitle: fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		Headers:  sessionReportHeaders,
		Rows:     rows,
	}

	base := fmt.Sprintf("sessions_%s_%s", from.Format("20060102"), to.Format("20060102"))
	switch format {
	case FormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: base + ".csv"}, nil
	case FormatPDF:
		content, err := s.pdf.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: base + ".pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
