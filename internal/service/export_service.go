package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
	"github.com/tutorhive/tutorhive-api/pkg/export"
)

type exportSessionSource interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
}

// ExportFormat selects the timetable rendering.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes plus HTTP metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders timetables as CSV or PDF documents.
type ExportService struct {
	sessions exportSessionSource
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService wires the timetable exporter.
func NewExportService(sessions exportSessionSource, logger *zap.Logger) *ExportService {
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

// Timetable renders the sessions matching the filter. The filter is
// expected to name at least one of enrollment, teacher or student.
func (s *ExportService) Timetable(ctx context.Context, filter models.SessionFilter, format ExportFormat) (*ExportResult, error) {
	if filter.EnrollmentID == "" && filter.TeacherID == "" && filter.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable export requires an enrollment, teacher or student")
	}

	sessions, _, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions for export")
	}

	dataset := timetableDataset(sessions)
	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv timetable")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    exportFilename(filter, "csv"),
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Timetable")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf timetable")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    exportFilename(filter, "pdf"),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func timetableDataset(sessions []models.Session) export.Dataset {
	dataset := export.Dataset{
		Columns: []string{"Date", "Weekday", "Time", "Session #", "Status", "Trial"},
	}
	for _, session := range sessions {
		trial := ""
		if session.IsTrial {
			trial = "yes"
		}
		dataset.Rows = append(dataset.Rows, []string{
			session.DateKey(),
			session.Date.Weekday().String(),
			session.Slot().String(),
			fmt.Sprintf("%d", session.SessionNumber),
			string(session.Status),
			trial,
		})
	}
	return dataset
}

func exportFilename(filter models.SessionFilter, ext string) string {
	parts := []string{"timetable"}
	if filter.EnrollmentID != "" {
		parts = append(parts, filter.EnrollmentID)
	} else if filter.TeacherID != "" {
		parts = append(parts, filter.TeacherID)
	} else if filter.StudentID != "" {
		parts = append(parts, filter.StudentID)
	}
	return strings.Join(parts, "-") + "." + ext
}
