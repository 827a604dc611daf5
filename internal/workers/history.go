package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/report-templates/internal/database"
	logpkg "github.com/benvon/report-templates/internal/logger"
	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/queue"
	"github.com/benvon/report-templates/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// errInvalidEvent marks events that can never be recorded; they go straight to the DLQ.
var errInvalidEvent = errors.New("invalid template_imported event")

// HistoryRecorder writes template_imported events to the import history table
type HistoryRecorder struct {
	history database.ImportHistoryRepositoryInterface
	retries queue.Publisher // re-publishes failed jobs with their retry count bumped
	log     *zap.Logger
}

// NewHistoryRecorder creates a new history recorder. Without a retry
// publisher failed jobs go straight to the DLQ.
func NewHistoryRecorder(history database.ImportHistoryRepositoryInterface, retries queue.Publisher, log *zap.Logger) *HistoryRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryRecorder{history: history, retries: retries, log: log}
}

// RecordImport stores one import event. Redelivered events are recorded once.
func (r *HistoryRecorder) RecordImport(ctx context.Context, job *queue.Job) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "workers.record_import",
		attribute.String("job_id", job.ID.String()),
		attribute.Int("retry_count", job.RetryCount),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	event := job.Import
	if event == nil || event.SessionID == uuid.Nil || event.TemplateID == uuid.Nil {
		return errInvalidEvent
	}

	rec := &models.ImportRecord{
		SessionID:     event.SessionID,
		TemplateID:    event.TemplateID,
		FileName:      event.FileName,
		SheetCount:    event.SheetCount,
		CategoryCount: event.CategoryCount,
		FieldCount:    event.FieldCount,
		ImportedAt:    event.ImportedAt,
	}
	inserted, err := r.history.Record(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}

	if !inserted {
		r.log.Debug("import_history_duplicate",
			zap.String("job_id", job.ID.String()),
			zap.String("session_id", event.SessionID.String()),
		)
		return nil
	}
	r.log.Info("import_history_recorded",
		zap.String("job_id", job.ID.String()),
		zap.String("template_id", event.TemplateID.String()),
		zap.String("file_name", logpkg.SanitizeFileName(event.FileName)),
		zap.Int("field_count", event.FieldCount),
	)
	return nil
}

// ProcessJob processes a job based on its type and settles the message
func (r *HistoryRecorder) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if !job.ShouldProcess() {
		// Requeue and let another delivery pick it up once NotBefore has passed
		if nackErr := msg.Nack(true); nackErr != nil {
			r.log.Warn("failed_to_requeue_early_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeTemplateImported:
		if err := r.RecordImport(ctx, job); err != nil {
			return r.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			r.log.Warn("failed_to_nack_unknown_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError re-publishes failed jobs until their retries are spent, then
// dead-letters them. A redelivered message carries its original body, so the
// retry count only survives through a fresh publish.
func (r *HistoryRecorder) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if !errors.Is(err, errInvalidEvent) && job.CanRetry() && r.retries != nil {
		retry := *job
		retry.IncrementRetry()
		enqueueErr := r.retries.Enqueue(ctx, &retry)
		if enqueueErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				r.log.Warn("failed_to_ack_retried_job", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
			}
			r.log.Warn("job_failed_will_retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("attempt", retry.RetryCount),
				zap.Int("max_retries", retry.MaxRetries),
				zap.Error(err),
			)
			return fmt.Errorf("job failed (will retry): %w", err)
		}
		r.log.Error("failed_to_republish_job", zap.String("job_id", job.ID.String()), zap.Error(enqueueErr))
	}

	r.log.Error("job_failed_sending_to_dlq",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		r.log.Warn("failed_to_nack_job_to_dlq", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (sent to DLQ): %w", err)
}

// Run consumes the queue until ctx is cancelled or the delivery channel closes
func (r *HistoryRecorder) Run(ctx context.Context, q queue.JobQueue, prefetch int) error {
	msgChan, errChan, err := q.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			r.log.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				r.log.Info("message_channel_closed")
				return nil
			}
			if err := r.ProcessJob(ctx, msg); err != nil {
				r.log.Error("failed_to_process_job",
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
					zap.Error(err),
				)
			}
		}
	}
}
