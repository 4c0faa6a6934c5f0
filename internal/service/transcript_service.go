package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/export"
)

type academicRecordReader interface {
	AcademicRecord(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type transcriptStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// TranscriptFormat selects the export encoding.
type TranscriptFormat string

const (
	TranscriptCSV TranscriptFormat = "csv"
	TranscriptPDF TranscriptFormat = "pdf"
)

// Transcript is a rendered academic record export.
type Transcript struct {
	FileName    string
	ContentType string
	Content     []byte
}

// TranscriptService renders a student's full academic record, canceled
// rows included, as CSV or PDF.
type TranscriptService struct {
	students    transcriptStudentReader
	enrollments academicRecordReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewTranscriptService creates a new TranscriptService.
func NewTranscriptService(
	students transcriptStudentReader,
	enrollments academicRecordReader,
	csv *export.CSVExporter,
	pdf *export.PDFExporter,
	logger *zap.Logger,
) *TranscriptService {
	return &TranscriptService{students: students, enrollments: enrollments, csv: csv, pdf: pdf, logger: logger}
}

var transcriptHeaders = []string{"Semester", "Unit", "Size", "Grade", "Passed", "Status"}

// Export renders the transcript in the requested format.
func (s *TranscriptService) Export(ctx context.Context, studentID string, format TranscriptFormat) (*Transcript, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}

	records, err := s.enrollments.AcademicRecord(ctx, studentID)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: transcriptHeaders, Rows: make([]map[string]string, 0, len(records))}
	for _, record := range records {
		data.Rows = append(data.Rows, transcriptRow(record))
	}

	switch format {
	case TranscriptCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, fmt.Errorf("render transcript csv: %w", err)
		}
		return &Transcript{
			FileName:    fmt.Sprintf("transcript_%s.csv", student.StudentNo),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case TranscriptPDF:
		title := fmt.Sprintf("Academic Transcript - %s (%s)", student.FullName, student.StudentNo)
		summary := fmt.Sprintf("GPA: %.2f", student.GPA)
		content, err := s.pdf.Render(data, title, summary)
		if err != nil {
			return nil, fmt.Errorf("render transcript pdf: %w", err)
		}
		return &Transcript{
			FileName:    fmt.Sprintf("transcript_%s.pdf", student.StudentNo),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported transcript format")
	}
}

func transcriptRow(record models.EnrollmentDetail) map[string]string {
	grade := "-"
	passed := "-"
	if record.Grade != nil {
		grade = strconv.FormatFloat(*record.Grade, 'f', 2, 64)
	}
	if record.Passed != nil {
		if *record.Passed {
			passed = "yes"
		} else {
			passed = "no"
		}
	}
	status := "enrolled"
	if record.Canceled {
		status = "canceled"
	} else if record.Grade != nil {
		status = "graded"
	}
	return map[string]string{
		"Semester": strconv.Itoa(record.SemesterCodename),
		"Unit":     record.UnitName,
		"Size":     strconv.Itoa(record.UnitSize),
		"Grade":    grade,
		"Passed":   passed,
		"Status":   status,
	}
}
