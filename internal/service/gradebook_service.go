package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/gradebook"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// GradingSessionStore persists pending edits per user, class and term.
type GradingSessionStore interface {
	Load(ctx context.Context, userID, classLabel, term string) (*gradebook.GradingSession, error)
	Store(ctx context.Context, userID string, session *gradebook.GradingSession) error
	Delete(ctx context.Context, userID, classLabel, term string) error
}

type gradingTablesProvider interface {
	GradingTables(ctx context.Context) (gradebook.WeightsTable, gradebook.SubjectsTable, error)
}

// GradebookServiceConfig tunes gradebook behaviour.
type GradebookServiceConfig struct {
	ArchiveSkipEmpty bool
}

// GradebookService drives the grid, pending sessions, saving, archiving and class statistics.
type GradebookService struct {
	roster   RosterStore
	sessions GradingSessionStore
	settings gradingTablesProvider
	audit    auditLogger
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      GradebookServiceConfig
	locks    sessionLocks
}

// sessionLocks serialises load-modify-store cycles on one grading session within the process.
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func (l *sessionLocks) lock(userID, classLabel, term string) func() {
	key := userID + "\x00" + classLabel + "\x00" + term
	l.mu.Lock()
	if l.held == nil {
		l.held = map[string]*sessionLock{}
	}
	entry := l.held[key]
	if entry == nil {
		entry = &sessionLock{}
		l.held[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}
}

// NewGradebookService constructs a GradebookService.
func NewGradebookService(roster RosterStore, sessions GradingSessionStore, settings gradingTablesProvider, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg GradebookServiceConfig) *GradebookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{
		roster:   roster,
		sessions: sessions,
		settings: settings,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Grid returns the editable students × subjects grid with pending edits overlaid.
func (s *GradebookService) Grid(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.GradebookGrid, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classLabel, term, err := normalizeClassTerm(classLabel, term)
	if err != nil {
		return nil, err
	}
	weights, subjects, err := s.tables(ctx, classLabel)
	if err != nil {
		return nil, err
	}
	students, err := s.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, actor, classLabel, term)
	if err != nil {
		return nil, err
	}

	grid := &dto.GradebookGrid{
		ClassLabel:   classLabel,
		Term:         term,
		Subjects:     subjects,
		Rows:         []dto.GradebookRow{},
		PendingEdits: session.Len(),
	}
	for _, student := range students {
		if student.Grade != classLabel {
			continue
		}
		row := dto.GradebookRow{StudentID: student.ID, Name: student.Name, Cells: make([]dto.GradebookCell, 0, len(subjects))}
		for _, subject := range subjects {
			row.Cells = append(row.Cells, gridCell(student, session, subject, term, weights))
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid, nil
}

func gridCell(student models.Student, session *gradebook.GradingSession, subject, term string, weights gradebook.WeightsTable) dto.GradebookCell {
	total := weights.ResolveTotal(subject, term)
	prior, hasPrior := student.Results.Find(subject, term)
	edit, pending := session.Edit(student.ID, subject)
	cell := dto.GradebookCell{Subject: subject, Total: total, Pending: pending}
	if !pending && !hasPrior {
		return cell
	}
	raw := edit
	var priorRef *models.Result
	if hasPrior {
		priorRef = &prior
		if !pending {
			raw = prior.ObtainedOf(total)
			_, scored := prior.Points()
			cell.Legacy = !scored
		}
	}
	result := gradebook.Normalize(subject, term, raw, weights, priorRef)
	cell.Obtained = result.ObtainedOf(total)
	cell.Percentage = result.Percentage
	cell.Grade = result.Grade
	return cell
}

// StageEdits records cell values in the caller's session for class and term.
func (s *GradebookService) StageEdits(ctx context.Context, actor *models.JWTClaims, classLabel, term string, req dto.StageEditsRequest) (*dto.SessionResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classLabel, term, err := normalizeClassTerm(classLabel, term)
	if err != nil {
		return nil, err
	}
	if len(req.Edits) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "edits are required")
	}
	_, subjects, err := s.tables(ctx, classLabel)
	if err != nil {
		return nil, err
	}
	students, err := s.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateEdits(req.Edits, students, classLabel, subjects); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(actor.UserID, classLabel, term)
	defer unlock()
	session, err := s.loadSession(ctx, actor, classLabel, term)
	if err != nil {
		return nil, err
	}
	for studentID, cells := range req.Edits {
		for subject, value := range cells {
			session.Stage(studentID, subject, float64(value))
		}
	}
	if err := s.sessions.Store(ctx, actor.UserID, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grading session")
	}
	return sessionResponse(session), nil
}

func validateEdits(edits map[string]map[string]models.LenientFloat, students []models.Student, classLabel string, subjects []string) error {
	inClass := map[string]bool{}
	for _, st := range students {
		if st.Grade == classLabel {
			inClass[st.ID] = true
		}
	}
	known := map[string]bool{}
	for _, subject := range subjects {
		known[subject] = true
	}
	for studentID, cells := range edits {
		if !inClass[studentID] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in class %s", studentID, classLabel))
		}
		for subject := range cells {
			if !known[subject] {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s is not taught in class %s", subject, classLabel))
			}
		}
	}
	return nil
}

// Session returns the caller's pending edits for class and term.
func (s *GradebookService) Session(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.SessionResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classLabel, term, err := normalizeClassTerm(classLabel, term)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, actor, classLabel, term)
	if err != nil {
		return nil, err
	}
	return sessionResponse(session), nil
}

// Discard drops the caller's session without touching the roster.
func (s *GradebookService) Discard(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.SessionResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classLabel, term, err := normalizeClassTerm(classLabel, term)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(actor.UserID, classLabel, term)
	defer unlock()
	if err := s.sessions.Delete(ctx, actor.UserID, classLabel, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard grading session")
	}
	return sessionResponse(gradebook.NewSession(classLabel, term)), nil
}

// Save merges the caller's session into the roster and persists it. An empty session is a
// no-op that never reaches the roster store. On a failed save the session is kept.
func (s *GradebookService) Save(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.SaveResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classLabel, term, err := normalizeClassTerm(classLabel, term)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(actor.UserID, classLabel, term)
	defer unlock()
	session, err := s.loadSession(ctx, actor, classLabel, term)
	if err != nil {
		return nil, err
	}
	if session.IsEmpty() {
		return &dto.SaveResult{Saved: false, Code: appErrors.ErrNothingToSave.Code, Message: appErrors.ErrNothingToSave.Message}, nil
	}

	weights, subjects, err := s.tables(ctx, classLabel)
	if err != nil {
		return nil, err
	}
	students, err := s.fetchRoster(ctx)
	if err != nil {
		s.metrics.RecordGradebookSave("failure", 0)
		return nil, err
	}
	merged, changed := gradebook.MergeTerm(students, session, subjects, weights)
	if !changed {
		return &dto.SaveResult{Saved: false, Code: appErrors.ErrNothingToSave.Code, Message: appErrors.ErrNothingToSave.Message}, nil
	}
	if err := s.roster.SaveRoster(ctx, merged); err != nil {
		s.metrics.RecordGradebookSave("failure", 0)
		s.logger.Error("gradebook save failed",
			zap.String("class", classLabel),
			zap.String("term", term),
			zap.Int("pending_edits", session.Len()),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, "failed to save roster; pending edits were kept")
	}

	edits := session.Len()
	if err := s.sessions.Delete(ctx, actor.UserID, classLabel, term); err != nil {
		s.logger.Warn("grading session not cleared after save", zap.String("class", classLabel), zap.String("term", term), zap.Error(err))
	}
	s.metrics.RecordGradebookSave("success", edits)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionGradebookSave, "gradebook", classLabel+"/"+term, nil, session.Pending)
	s.logger.Info("gradebook saved", zap.String("class", classLabel), zap.String("term", term), zap.Int("edits", edits))

	return &dto.SaveResult{
		Saved:    true,
		Message:  "gradebook saved",
		Edits:    edits,
		Students: countClass(merged, classLabel),
	}, nil
}

// Archive moves the class's results for term into each student's history and persists the
// roster. skipEmpty overrides the configured default when non-nil.
func (s *GradebookService) Archive(ctx context.Context, actor *models.JWTClaims, classLabel, term string, skipEmpty *bool) (*dto.ArchiveResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classLabel, term, err := normalizeClassTerm(classLabel, term)
	if err != nil {
		return nil, err
	}
	opts := gradebook.ArchiveOptions{SkipEmpty: s.cfg.ArchiveSkipEmpty}
	if skipEmpty != nil {
		opts.SkipEmpty = *skipEmpty
	}
	students, err := s.fetchRoster(ctx)
	if err != nil {
		s.metrics.RecordTermArchive("failure", 0)
		return nil, err
	}
	archived, count := gradebook.ArchiveTermWith(students, classLabel, term, opts)
	result := &dto.ArchiveResult{ClassLabel: classLabel, Term: term, Archived: count}
	if count == 0 {
		return result, nil
	}
	if err := s.roster.SaveRoster(ctx, archived); err != nil {
		s.metrics.RecordTermArchive("failure", 0)
		s.logger.Error("term archive failed", zap.String("class", classLabel), zap.String("term", term), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, "failed to save roster")
	}
	s.metrics.RecordTermArchive("success", count)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionTermArchive, "gradebook", classLabel+"/"+term, nil, result)
	s.logger.Info("term archived", zap.String("class", classLabel), zap.String("term", term), zap.Int("students", count))
	return result, nil
}

// Summary returns class statistics, rankings and the grade distribution for term.
func (s *GradebookService) Summary(ctx context.Context, classLabel, term string) (*dto.ClassSummaryResponse, error) {
	classLabel, term, err := normalizeClassTerm(classLabel, term)
	if err != nil {
		return nil, err
	}
	weights, _, err := s.settings.GradingTables(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}
	view, _ := termView(students, classLabel, term)
	rankings := gradebook.Rankings(view, classLabel, term, weights)
	if rankings == nil {
		rankings = []gradebook.RankedStudent{}
	}
	return &dto.ClassSummaryResponse{
		Summary:      gradebook.ClassSummary(view, classLabel, term, weights),
		Rankings:     rankings,
		Distribution: gradebook.GradeDistribution(view, classLabel, term, weights),
	}, nil
}

// ReportCard builds one student's card for term. When the term was archived the latest
// snapshot is used instead of the active results.
func (s *GradebookService) ReportCard(ctx context.Context, studentID, term string) (*dto.ReportCard, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term is required")
	}
	weights, _, err := s.settings.GradingTables(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}
	idx := findStudent(students, studentID)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return buildReportCard(students, idx, term, weights), nil
}

func buildReportCard(students []models.Student, idx int, term string, weights gradebook.WeightsTable) *dto.ReportCard {
	student := students[idx]
	view, archived := termView(students, student.Grade, term)
	results := view[idx].Results.ForTerm(term)

	card := &dto.ReportCard{
		StudentID:  student.ID,
		Name:       student.Name,
		ClassLabel: student.Grade,
		Term:       term,
		Archived:   archived[student.ID],
		Subjects:   make([]dto.ReportCardSubject, 0, len(results)),
		Attendance: student.Attendance.Percentage(),
	}
	for _, r := range results {
		total := weights.ResolveTotal(r.Subject, r.Term)
		card.Subjects = append(card.Subjects, dto.ReportCardSubject{
			Subject:    r.Subject,
			Obtained:   r.ObtainedOf(total),
			Total:      total,
			Percentage: r.Percentage,
			Grade:      gradebook.ClassifyExam(r.Percentage),
			Remarks:    r.Remarks,
		})
	}
	card.Overall = gradebook.OverallPercentage(results, weights)
	card.Grade = gradebook.ClassifyExam(card.Overall)
	card.Passed = gradebook.Passed(card.Overall)

	rankings := gradebook.Rankings(view, student.Grade, term, weights)
	card.ClassSize = len(rankings)
	for _, r := range rankings {
		if r.StudentID == student.ID {
			card.Position = r.Position
			break
		}
	}
	return card
}

// termView returns copies of students whose Results hold only the term's results, taken from
// the latest archived snapshot when nothing is active for term. The second value marks the
// students served from a snapshot.
func termView(students []models.Student, classLabel, term string) ([]models.Student, map[string]bool) {
	view := make([]models.Student, len(students))
	archived := map[string]bool{}
	for i, st := range students {
		view[i] = st
		if st.Grade != classLabel {
			continue
		}
		active := st.Results.ForTerm(term)
		if len(active) == 0 {
			if snap, ok := st.PreviousResults.Latest(term); ok && len(snap.Results) > 0 {
				active = snap.Results
				archived[st.ID] = true
			}
		}
		view[i].Results = models.ResultList(active)
	}
	return view, archived
}

func (s *GradebookService) tables(ctx context.Context, classLabel string) (gradebook.WeightsTable, []string, error) {
	weights, subjects, err := s.settings.GradingTables(ctx)
	if err != nil {
		return gradebook.WeightsTable{}, nil, err
	}
	list := subjects.For(classLabel)
	if len(list) == 0 {
		return gradebook.WeightsTable{}, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no subjects configured for class %s", classLabel))
	}
	return weights, list, nil
}

func (s *GradebookService) fetchRoster(ctx context.Context) ([]models.Student, error) {
	students, err := s.roster.FetchRoster(ctx)
	if err != nil {
		s.logger.Error("roster fetch failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, appErrors.ErrRosterUnavailable.Message)
	}
	return students, nil
}

func (s *GradebookService) loadSession(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*gradebook.GradingSession, error) {
	session, err := s.sessions.Load(ctx, actor.UserID, classLabel, term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading session")
	}
	if session == nil {
		session = gradebook.NewSession(classLabel, term)
	}
	return session, nil
}

func sessionResponse(session *gradebook.GradingSession) *dto.SessionResponse {
	pending := session.Pending
	if pending == nil {
		pending = gradebook.PendingEdits{}
	}
	return &dto.SessionResponse{
		ClassLabel:   session.ClassLabel,
		Term:         session.Term,
		PendingEdits: session.Len(),
		Pending:      pending,
	}
}

func normalizeClassTerm(classLabel, term string) (string, string, error) {
	classLabel = strings.TrimSpace(classLabel)
	term = strings.TrimSpace(term)
	if classLabel == "" || term == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "class and term are required")
	}
	return classLabel, term, nil
}

func countClass(students []models.Student, classLabel string) int {
	n := 0
	for _, st := range students {
		if st.Grade == classLabel {
			n++
		}
	}
	return n
}
