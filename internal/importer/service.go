// Package importer turns uploaded spreadsheets into reviewable candidate
// fields and applies the reviewed selection to report templates.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/inference"
	logpkg "github.com/benvon/report-templates/internal/logger"
	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/queue"
	"github.com/benvon/report-templates/internal/review"
	"github.com/benvon/report-templates/internal/sessions"
	"github.com/benvon/report-templates/internal/sheets"
	"github.com/benvon/report-templates/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrNoValidData indicates the workbook parsed but produced no candidate fields.
	ErrNoValidData = errors.New("no valid data found in the uploaded file")
	// ErrNothingToAssemble indicates every field was deleted or deselected.
	ErrNothingToAssemble = errors.New("no fields selected for import")
	// ErrTemplateRequired indicates a confirm without a target template.
	ErrTemplateRequired = errors.New("a template is required to confirm an import")
	// ErrInvalidMode indicates a confirm mode other than replace or append.
	ErrInvalidMode = errors.New("confirm mode must be replace or append")
	// ErrSessionNotFound indicates an unknown, expired or already confirmed session.
	ErrSessionNotFound = sessions.ErrNotFound
)

// Mode selects how confirmed categories are written to a template.
type Mode string

const (
	// ModeReplace overwrites the template's sections.
	ModeReplace Mode = "replace"
	// ModeAppend adds the imported categories after the existing sections.
	ModeAppend Mode = "append"
)

// Upload is a spreadsheet submitted for import.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	TemplateID  *uuid.UUID
}

// View is a session as presented to the reviewer.
type View struct {
	ID            uuid.UUID               `json:"id"`
	FileName      string                  `json:"file_name"`
	TemplateID    *uuid.UUID              `json:"template_id,omitempty"`
	Fields        []models.CandidateField `json:"fields"`
	Sheets        []review.SheetSummary   `json:"sheets"`
	IncludedCount int                     `json:"included_count"`
	ExpiresAt     time.Time               `json:"expires_at"`
}

// ConfirmRequest selects the template and write mode for a confirm.
type ConfirmRequest struct {
	TemplateID *uuid.UUID
	Mode       Mode
}

// ConfirmResult describes what a confirm wrote.
type ConfirmResult struct {
	TemplateID    uuid.UUID             `json:"template_id"`
	Mode          Mode                  `json:"mode"`
	Categories    []models.FormCategory `json:"categories"`
	CategoryCount int                   `json:"category_count"`
	FieldCount    int                   `json:"field_count"`
}

// Service runs the import pipeline and owns review sessions.
type Service struct {
	sessions  sessions.Repository
	templates database.TemplateRepositoryInterface
	events    queue.Publisher
	nextID    inference.IDGenerator
	now       func() time.Time
	log       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher publishes template_imported events after each confirm.
func WithPublisher(p queue.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithIDGenerator overrides the candidate field id generator.
func WithIDGenerator(g inference.IDGenerator) Option {
	return func(s *Service) { s.nextID = g }
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an import service.
func NewService(sessionRepo sessions.Repository, templates database.TemplateRepositoryInterface, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		sessions:  sessionRepo,
		templates: templates,
		nextID:    inference.UUIDs(),
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inspect runs accept, load and extraction without creating a session.
func Inspect(filename, contentType string, data []byte, nextID inference.IDGenerator) (*inference.Result, error) {
	format, err := sheets.Accept(filename, contentType, data)
	if err != nil {
		return nil, err
	}
	wb, err := sheets.Load(filename, format, data)
	if err != nil {
		return nil, err
	}
	if len(wb.Sheets) == 0 {
		return nil, ErrNoValidData
	}

	res := inference.ExtractWorkbook(wb, nextID)
	if len(res.Fields) == 0 {
		return nil, ErrNoValidData
	}
	return res, nil
}

// Upload extracts candidate fields from a spreadsheet and opens a review session.
func (s *Service) Upload(ctx context.Context, up Upload) (view *View, err error) {
	ctx, span := telemetry.StartSpan(ctx, "importer.upload", attribute.Int("size_bytes", len(up.Data)))
	defer func() { telemetry.EndSpan(span, err) }()

	if up.TemplateID != nil {
		if _, err := s.templates.GetByID(ctx, *up.TemplateID); err != nil {
			return nil, err
		}
	}

	started := s.now()
	res, err := Inspect(up.FileName, up.ContentType, up.Data, s.nextID)
	if err != nil {
		s.log.Info("import_rejected",
			zap.String("file_name", logpkg.SanitizeFileName(up.FileName)),
			zap.Int("size_bytes", len(up.Data)),
			zap.String("reason", logpkg.SanitizeError(err)),
		)
		return nil, err
	}

	sess := &models.ImportSession{
		ID:         uuid.New(),
		FileName:   up.FileName,
		TemplateID: up.TemplateID,
		SheetCount: len(res.Sheets),
		Fields:     res.Fields,
		CreatedAt:  started,
	}
	span.SetAttributes(
		attribute.Int("sheet_count", len(res.Sheets)),
		attribute.Int("field_count", len(res.Fields)),
	)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save import session: %w", err)
	}

	s.log.Info("import_session_created",
		zap.String("session_id", sess.ID.String()),
		zap.String("file_name", logpkg.SanitizeFileName(up.FileName)),
		zap.Int("sheet_count", len(res.Sheets)),
		zap.Int("field_count", len(res.Fields)),
		zap.Duration("duration", s.now().Sub(started)),
	)
	return viewOf(sess, review.Restore(sess.Fields)), nil
}

// Session returns the current state of a review session.
func (s *Service) Session(ctx context.Context, id uuid.UUID) (*View, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(sess, review.Restore(sess.Fields)), nil
}

// Apply runs a reviewer command against the session and saves the result.
// Concurrent edits of one session are last-write-wins; an edit racing a
// confirm or cancel fails with ErrSessionNotFound.
func (s *Service) Apply(ctx context.Context, id uuid.UUID, cmd Command) (*View, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	store := review.Restore(sess.Fields)
	if err := cmd.Apply(store); err != nil {
		return nil, err
	}
	sess.Fields = store.Snapshot()

	if err := s.sessions.Update(ctx, sess); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save import session: %w", err)
	}

	s.log.Debug("import_session_updated",
		zap.String("session_id", id.String()),
		zap.String("command", cmd.Name()),
		zap.Int("field_count", store.Len()),
		zap.Int("included_count", store.IncludedCount()),
	)
	return viewOf(sess, store), nil
}

// Preview assembles the current selection without writing anything.
func (s *Service) Preview(ctx context.Context, id uuid.UUID) ([]models.FormCategory, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	categories := review.Restore(sess.Fields).Assemble()
	if categories == nil {
		categories = []models.FormCategory{}
	}
	return categories, nil
}

// Confirm writes the assembled categories to the template, closes the
// session and publishes a template_imported event. The session is claimed
// before the write, so a repeated confirm of one session finds it gone; it
// is put back when the confirm fails.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, req ConfirmRequest) (result *ConfirmResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "importer.confirm", attribute.String("session_id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	mode := req.Mode
	if mode == "" {
		mode = ModeReplace
	}
	if mode != ModeReplace && mode != ModeAppend {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	sess, err := s.sessions.Take(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			s.restore(ctx, sess)
		}
	}()

	templateID := req.TemplateID
	if templateID == nil {
		templateID = sess.TemplateID
	}
	if templateID == nil {
		return nil, ErrTemplateRequired
	}

	imported := review.Restore(sess.Fields).Assemble()
	if len(imported) == 0 {
		return nil, ErrNothingToAssemble
	}

	if mode == ModeAppend {
		_, err = s.templates.AppendSections(ctx, *templateID, imported)
	} else {
		err = s.templates.UpdateSections(ctx, *templateID, imported)
	}
	if err != nil {
		return nil, err
	}

	result = &ConfirmResult{
		TemplateID:    *templateID,
		Mode:          mode,
		Categories:    imported,
		CategoryCount: len(imported),
		FieldCount:    models.FieldCount(imported),
	}
	s.log.Info("import_confirmed",
		zap.String("session_id", id.String()),
		zap.String("template_id", templateID.String()),
		zap.String("mode", string(mode)),
		zap.Int("category_count", result.CategoryCount),
		zap.Int("field_count", result.FieldCount),
	)

	s.publish(ctx, queue.ImportEvent{
		SessionID:     sess.ID,
		TemplateID:    *templateID,
		FileName:      sess.FileName,
		SheetCount:    sess.SheetCount,
		CategoryCount: result.CategoryCount,
		FieldCount:    result.FieldCount,
		ImportedAt:    s.now(),
	})
	return result, nil
}

// restore puts a claimed session back after a failed confirm. It runs even
// when the request context is already cancelled.
func (s *Service) restore(ctx context.Context, sess *models.ImportSession) {
	if err := s.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		s.log.Warn("failed_to_restore_import_session",
			zap.String("session_id", sess.ID.String()),
			zap.Error(err),
		)
	}
}

// Cancel discards a session.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("import_session_cancelled", zap.String("session_id", id.String()))
	return nil
}

// publish is best-effort: the template is already updated, so a queue
// failure only loses the history entry.
func (s *Service) publish(ctx context.Context, event queue.ImportEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Enqueue(ctx, queue.NewTemplateImportedJob(event)); err != nil {
		s.log.Error("failed_to_enqueue_template_imported_job",
			zap.String("session_id", event.SessionID.String()),
			zap.String("template_id", event.TemplateID.String()),
			zap.Error(err),
		)
	}
}

func viewOf(sess *models.ImportSession, store *review.Store) *View {
	return &View{
		ID:            sess.ID,
		FileName:      sess.FileName,
		TemplateID:    sess.TemplateID,
		Fields:        store.Fields(),
		Sheets:        store.Sheets(),
		IncludedCount: store.IncludedCount(),
		ExpiresAt:     sess.ExpiresAt,
	}
}
