package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
	"github.com/noah-isme/school-dashboard-api/pkg/export"
	"github.com/noah-isme/school-dashboard-api/pkg/jobs"
	"github.com/noah-isme/school-dashboard-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string, progress int) error
	MarkFinished(ctx context.Context, id, resultPath string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, finishedAt time.Time) error
}

type classTeacherRosterReader interface {
	ListClassTeachers(ctx context.Context, termID string) ([]models.ClassTeacherRow, error)
}

type classAttendanceReader interface {
	SummaryForClass(ctx context.Context, classID, termID string) ([]models.AttendanceSummary, error)
}

type exportFileStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (io.ReadCloser, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// CreateExportRequest asks for an asynchronous export.
type CreateExportRequest struct {
	Type    models.ExportType `json:"type" validate:"required,oneof=class_teacher_roster attendance_summary"`
	Format  string            `json:"format" validate:"required,oneof=csv pdf"`
	TermID  string            `json:"termId"`
	ClassID *string           `json:"classId"`
}

// ExportStatusResponse exposes job progress and, once finished, a signed download URL.
type ExportStatusResponse struct {
	models.ExportJob
	DownloadURL *string    `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// ExportDownload is an opened export file.
type ExportDownload struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
}

// ExportServiceParams groups the collaborators of ExportService.
type ExportServiceParams struct {
	Jobs         exportJobStore
	Terms        termReader
	Classes      classLookup
	Students     classStudentReader
	ClassTeacher classTeacherRosterReader
	Attendance   classAttendanceReader
	Storage      exportFileStore
	Signer       *storage.SignedURLSigner
	Metrics      *MetricsService
	Validator    *validator.Validate
	Logger       *zap.Logger
	Config       ExportConfig
}

// ExportService creates export jobs, renders them on the worker queue and serves the results.
type ExportService struct {
	jobs         exportJobStore
	terms        termReader
	classes      classLookup
	students     classStudentReader
	classTeacher classTeacherRosterReader
	attendance   classAttendanceReader
	storage      exportFileStore
	signer       *storage.SignedURLSigner
	queue        jobDispatcher
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ExportConfig
	now          func() time.Time
}

// NewExportService constructs an ExportService. A queue must be attached with SetQueue before requests are accepted.
func NewExportService(params ExportServiceParams) *ExportService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &ExportService{
		jobs:         params.Jobs,
		terms:        params.Terms,
		classes:      params.Classes,
		students:     params.Students,
		classTeacher: params.ClassTeacher,
		attendance:   params.Attendance,
		storage:      params.Storage,
		signer:       params.Signer,
		metrics:      params.Metrics,
		validator:    params.Validator,
		logger:       params.Logger,
		cfg:          params.Config,
		now:          time.Now,
	}
}

// SetQueue attaches the dispatcher. The queue's handler is usually s.Handle, hence the late binding.
func (s *ExportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Request validates and persists an export job and hands it to the worker queue.
func (s *ExportService) Request(ctx context.Context, actor *models.JWTClaims, req CreateExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	term, err := resolveTerm(ctx, s.terms, req.TermID)
	if err != nil {
		return nil, err
	}
	classID := normalizeOptional(req.ClassID)
	if req.Type == models.ExportTypeAttendanceSummary {
		if classID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required for attendance exports")
		}
		if _, err := s.classes.FindByID(ctx, *classID); err != nil {
			return nil, lookupError(err, "class")
		}
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export queue is not running")
	}

	job := &models.ExportJob{
		Type:      req.Type,
		Format:    req.Format,
		Params:    models.ExportParams{TermID: term.ID, ClassID: classID},
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		_ = s.jobs.MarkFailed(ctx, job.ID, "failed to enqueue job", s.now().UTC())
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	s.logger.Info("export job queued", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.String("format", job.Format))
	return job, nil
}

// Status returns the job state. Non-admins may only read jobs they created.
func (s *ExportService) Status(ctx context.Context, actor *models.JWTClaims, id string) (*ExportStatusResponse, error) {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != nil && !actor.IsAdmin() && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export belongs to another user")
	}
	resp := &ExportStatusResponse{ExportJob: *job}
	if job.Status == models.ExportStatusFinished && job.ResultPath != nil {
		token, expiresAt, err := s.signer.Sign(job.ID, *job.ResultPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		url := fmt.Sprintf("%s/exports/download/%s", s.cfg.APIPrefix, token)
		resp.DownloadURL = &url
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// Download verifies a signed token and opens the export it grants.
func (s *ExportService) Download(ctx context.Context, token string) (*ExportDownload, error) {
	grant, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	job, err := s.loadJob(ctx, grant.ResourceID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ExportStatusFinished || job.ResultPath == nil || *job.ResultPath != grant.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export is not available")
	}
	body, err := s.storage.Open(grant.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		Body:        body,
		Filename:    path.Base(grant.Path),
		ContentType: export.Format(job.Format).ContentType(),
	}, nil
}

// Handle renders a queued job. It is the worker queue handler.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	start := s.now()
	record, err := s.jobs.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", job.ID, err)
	}
	if err := s.jobs.MarkProcessing(ctx, record.ID, 10); err != nil {
		return err
	}

	dataset, err := s.buildDataset(ctx, record)
	if err != nil {
		return err
	}
	payload, err := export.Render(export.Format(record.Format), dataset)
	if err != nil {
		return fmt.Errorf("render export %s: %w", record.ID, err)
	}
	name := fmt.Sprintf("%s/%s.%s", record.Type, record.ID, record.Format)
	stored, err := s.storage.Save(name, payload)
	if err != nil {
		return fmt.Errorf("store export %s: %w", record.ID, err)
	}
	if err := s.jobs.MarkFinished(ctx, record.ID, stored, s.now().UTC()); err != nil {
		return err
	}
	s.metrics.RecordExportJob(string(record.Type), string(models.ExportStatusFinished), s.now().Sub(start))
	s.logger.Info("export job finished", zap.String("job_id", record.ID), zap.Int("bytes", len(payload)))
	return nil
}

// Fail marks a job whose retries are exhausted. It is the worker queue failure hook.
func (s *ExportService) Fail(job jobs.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobs.MarkFailed(ctx, job.ID, cause.Error(), s.now().UTC()); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	s.metrics.RecordExportJob(job.Type, string(models.ExportStatusFailed), 0)
}

func (s *ExportService) loadJob(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ExportTypeClassTeacherRoster:
		return s.buildRosterDataset(ctx, job.Params)
	case models.ExportTypeAttendanceSummary:
		return s.buildAttendanceDataset(ctx, job.Params)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported export type %q", job.Type)
	}
}

func (s *ExportService) buildRosterDataset(ctx context.Context, params models.ExportParams) (export.Dataset, error) {
	rows, err := s.classTeacher.ListClassTeachers(ctx, params.TermID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load class teachers: %w", err)
	}
	data := export.Dataset{
		Title:   fmt.Sprintf("Class teachers (term %s)", params.TermID),
		Headers: []string{"Class", "Grade", "Class Teacher"},
	}
	for _, row := range rows {
		teacher := "-"
		if row.TeacherName != nil {
			teacher = *row.TeacherName
		}
		data.Rows = append(data.Rows, map[string]string{
			"Class":         row.ClassName,
			"Grade":         strconv.Itoa(row.GradeLevel),
			"Class Teacher": teacher,
		})
	}
	return data, nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ExportParams) (export.Dataset, error) {
	if params.ClassID == nil {
		return export.Dataset{}, fmt.Errorf("attendance export without class")
	}
	classID := *params.ClassID
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load class %s: %w", classID, err)
	}
	roster, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load roster: %w", err)
	}
	names := make(map[string]string, len(roster))
	for _, st := range roster {
		names[st.ID] = st.FullName
	}
	summaries, err := s.attendance.SummaryForClass(ctx, classID, params.TermID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load attendance: %w", err)
	}
	data := export.Dataset{
		Title:   fmt.Sprintf("Attendance summary %s (term %s)", class.Name, params.TermID),
		Headers: []string{"Student", "Present", "Absent", "Late", "Excused", "Total", "Rate"},
	}
	for _, sum := range summaries {
		name := names[sum.StudentID]
		if name == "" {
			name = sum.StudentID
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student": name,
			"Present": strconv.Itoa(sum.Present),
			"Absent":  strconv.Itoa(sum.Absent),
			"Late":    strconv.Itoa(sum.Late),
			"Excused": strconv.Itoa(sum.Excused),
			"Total":   strconv.Itoa(sum.Total),
			"Rate":    strconv.FormatFloat(sum.Rate, 'f', 2, 64),
		})
	}
	return data, nil
}
