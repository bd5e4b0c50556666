package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/gradebook"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/pkg/export"
	"github.com/noah-isme/school-portal-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportRenderers groups the format renderers; nil entries fall back to the defaults.
type ExportRenderers struct {
	CSV  csvRenderer
	PDF  tableRenderer
	XLSX tableRenderer
}

// ExportService builds roster datasets and persists rendered files.
type ExportService struct {
	roster   RosterStore
	settings gradingTablesProvider
	storage  fileStorage
	render   ExportRenderers
	signer   *storage.DownloadSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(roster RosterStore, settings gradingTablesProvider, store fileStorage, signer *storage.DownloadSigner, cfg ExportConfig, logger *zap.Logger, renderers ExportRenderers) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderers.CSV == nil {
		renderers.CSV = export.NewCSVExporter()
	}
	if renderers.PDF == nil {
		renderers.PDF = export.NewPDFExporter()
	}
	if renderers.XLSX == nil {
		renderers.XLSX = export.NewXLSXExporter()
	}
	return &ExportService{
		roster:   roster,
		settings: settings,
		storage:  store,
		render:   renderers,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the dataset for job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.render.CSV.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.render.PDF.Render(dataset, title)
	case models.ReportFormatXLSX:
		payload, err = s.render.XLSX.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, issued, err := s.signer.Sign(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	s.logger.Debug("export rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    issued.ExpiresAt,
	}, nil
}

// ParseToken validates a download token and returns what it points at.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadToken, error) {
	return s.signer.Verify(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	parts := []string{strings.ToLower(string(job.Type)), sanitizeFilename(job.Params.ClassLabel)}
	if job.Params.Term != "" {
		parts = append(parts, sanitizeFilename(job.Params.Term))
	}
	parts = append(parts, timestamp)
	return fmt.Sprintf("%s.%s", strings.Join(parts, "_"), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	params := job.Params
	students, err := s.roster.FetchRoster(ctx)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("fetch roster: %w", err)
	}
	switch job.Type {
	case models.ReportTypeClassResults, models.ReportTypeReportCards:
		if params.Term == "" {
			return export.Dataset{}, "", fmt.Errorf("%s report requires a term", job.Type)
		}
		weights, subjects, err := s.settings.GradingTables(ctx)
		if err != nil {
			return export.Dataset{}, "", err
		}
		if job.Type == models.ReportTypeClassResults {
			return classResultsDataset(students, params, subjects.For(params.ClassLabel), weights), fmt.Sprintf("Class %s Results %s", params.ClassLabel, params.Term), nil
		}
		return reportCardsDataset(students, params, weights), fmt.Sprintf("Class %s Report Cards %s", params.ClassLabel, params.Term), nil
	case models.ReportTypeAttendance:
		return attendanceDataset(students, params), fmt.Sprintf("Class %s Attendance", params.ClassLabel), nil
	case models.ReportTypeFees:
		return feesDataset(students, params), fmt.Sprintf("Class %s Fees", params.ClassLabel), nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// classResultsDataset is the student × subject sheet ordered by class position. Students
// who did not appear are listed last without a position.
func classResultsDataset(students []models.Student, params models.ReportJobParams, subjects []string, weights gradebook.WeightsTable) export.Dataset {
	headers := []string{"Position", "Student ID", "Name"}
	subjectHeaders := make([]string, len(subjects))
	for i, subject := range subjects {
		subjectHeaders[i] = fmt.Sprintf("%s (%s)", subject, formatMarks(weights.ResolveTotal(subject, params.Term)))
	}
	headers = append(headers, subjectHeaders...)
	headers = append(headers, "Overall (%)", "Grade", "Result")

	view, _ := termView(students, params.ClassLabel, params.Term)
	byID := make(map[string]models.Student, len(view))
	for _, st := range view {
		byID[st.ID] = st
	}
	rows := make([]map[string]string, 0, len(view))
	ranked := map[string]bool{}
	for _, r := range gradebook.Rankings(view, params.ClassLabel, params.Term, weights) {
		ranked[r.StudentID] = true
		row := map[string]string{
			"Position":    strconv.Itoa(r.Position),
			"Student ID":  r.StudentID,
			"Name":        r.Name,
			"Overall (%)": strconv.Itoa(r.Overall),
			"Grade":       r.Grade,
			"Result":      passLabel(r.Passed),
		}
		st := byID[r.StudentID]
		for i, subject := range subjects {
			if res, ok := st.Results.Find(subject, params.Term); ok {
				row[subjectHeaders[i]] = formatMarks(res.ObtainedOf(weights.ResolveTotal(subject, params.Term)))
			}
		}
		rows = append(rows, row)
	}
	for _, st := range view {
		if st.Grade != params.ClassLabel || ranked[st.ID] {
			continue
		}
		rows = append(rows, map[string]string{"Student ID": st.ID, "Name": st.Name, "Result": "ABSENT"})
	}
	return export.Dataset{Headers: headers, Rows: rows, Summary: classSummaryLines(view, params, weights)}
}

func classSummaryLines(students []models.Student, params models.ReportJobParams, weights gradebook.WeightsTable) []export.SummaryLine {
	summary := gradebook.ClassSummary(students, params.ClassLabel, params.Term, weights)
	lines := []export.SummaryLine{
		{Label: "Appeared", Value: strconv.Itoa(summary.Appeared)},
		{Label: "Passed", Value: fmt.Sprintf("%d (%d%%)", summary.PassCount, summary.PassRate)},
		{Label: "Class average (%)", Value: strconv.Itoa(summary.ClassAverage)},
	}
	if summary.TopStudent != nil {
		lines = append(lines, export.SummaryLine{Label: "Top student", Value: fmt.Sprintf("%s (%d%%)", summary.TopStudent.Name, summary.TopStudent.Overall)})
	}
	return lines
}

func reportCardsDataset(students []models.Student, params models.ReportJobParams, weights gradebook.WeightsTable) export.Dataset {
	headers := []string{"Student ID", "Name", "Subject", "Obtained", "Total", "Percentage", "Grade", "Overall (%)", "Overall Grade", "Position"}
	rows := []map[string]string{}
	for i, st := range students {
		if st.Grade != params.ClassLabel {
			continue
		}
		card := buildReportCard(students, i, params.Term, weights)
		position := ""
		if card.Position > 0 {
			position = fmt.Sprintf("%d/%d", card.Position, card.ClassSize)
		}
		for _, subject := range card.Subjects {
			rows = append(rows, map[string]string{
				"Student ID":    card.StudentID,
				"Name":          card.Name,
				"Subject":       subject.Subject,
				"Obtained":      formatMarks(subject.Obtained),
				"Total":         formatMarks(subject.Total),
				"Percentage":    strconv.Itoa(subject.Percentage),
				"Grade":         subject.Grade,
				"Overall (%)":   strconv.Itoa(card.Overall),
				"Overall Grade": card.Grade,
				"Position":      position,
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func attendanceDataset(students []models.Student, params models.ReportJobParams) export.Dataset {
	headers := []string{"Student ID", "Name", "Present", "Absent", "Late", "Total", "Attendance (%)"}
	rows := []map[string]string{}
	for _, st := range students {
		if st.Grade != params.ClassLabel {
			continue
		}
		a := st.Attendance
		rows = append(rows, map[string]string{
			"Student ID":     st.ID,
			"Name":           st.Name,
			"Present":        strconv.Itoa(a.Present),
			"Absent":         strconv.Itoa(a.Absent),
			"Late":           strconv.Itoa(a.Late),
			"Total":          strconv.Itoa(a.Total),
			"Attendance (%)": strconv.Itoa(a.Percentage()),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// feesDataset lists every ledger month of the class. Extras["month"] narrows it to one month.
func feesDataset(students []models.Student, params models.ReportJobParams) export.Dataset {
	headers := []string{"Student ID", "Name", "Month", "Amount", "Paid", "Outstanding", "Status"}
	month := params.Extras["month"]
	rows := []map[string]string{}
	for _, st := range students {
		if st.Grade != params.ClassLabel {
			continue
		}
		for _, rec := range st.FeeHistory.Sorted() {
			if month != "" && rec.Month != month {
				continue
			}
			rows = append(rows, map[string]string{
				"Student ID":  st.ID,
				"Name":        st.Name,
				"Month":       rec.Month,
				"Amount":      formatMoney(rec.Amount),
				"Paid":        formatMoney(rec.Paid),
				"Outstanding": formatMoney(rec.Outstanding()),
				"Status":      string(rec.Status),
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatMarks(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func passLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
