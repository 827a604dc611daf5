package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

// mockHistoryRepo is a mock implementation of ImportHistoryRepositoryInterface
type mockHistoryRepo struct {
	mu         sync.Mutex
	recordFunc func(ctx context.Context, rec *models.ImportRecord) (bool, error)
	records    []*models.ImportRecord
}

func (m *mockHistoryRepo) Record(ctx context.Context, rec *models.ImportRecord) (bool, error) {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return true, nil
}

func (m *mockHistoryRepo) ListByTemplate(_ context.Context, templateID uuid.UUID, _ int) ([]*models.ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ImportRecord
	for _, r := range m.records {
		if r.TemplateID == templateID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockPublisher records re-published jobs
type mockPublisher struct {
	jobs []*queue.Job
	err  error
}

func (m *mockPublisher) Enqueue(_ context.Context, job *queue.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// mockMessage is a mock implementation of MessageInterface
type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

var _ queue.MessageInterface = (*mockMessage)(nil)

func importedJob() *queue.Job {
	return queue.NewTemplateImportedJob(queue.ImportEvent{
		SessionID:     uuid.New(),
		TemplateID:    uuid.New(),
		FileName:      "site-inspection.xlsx",
		SheetCount:    2,
		CategoryCount: 2,
		FieldCount:    7,
		ImportedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	})
}

func TestHistoryRecorder_ProcessJob(t *testing.T) {
	t.Parallel()

	errDB := errors.New("connection reset")
	exhausted := importedJob()
	exhausted.RetryCount = exhausted.MaxRetries
	future := time.Now().Add(time.Hour)
	early := importedJob()
	early.NotBefore = &future
	noPayload := queue.NewJob(queue.JobTypeTemplateImported)

	tests := []struct {
		name          string
		job           *queue.Job
		recordErr     error
		publishErr    error
		noPublisher   bool
		wantErr       bool
		wantAck       bool
		wantNack      bool
		wantRequeue   bool
		wantPublished int
	}{
		{name: "records import", job: importedJob(), wantAck: true},
		{name: "retries by republishing", job: importedJob(), recordErr: errDB, wantErr: true, wantAck: true, wantPublished: 1},
		{name: "retries exhausted", job: exhausted, recordErr: errDB, wantErr: true, wantNack: true},
		{name: "republish fails", job: importedJob(), recordErr: errDB, publishErr: errors.New("closed"), wantErr: true, wantNack: true},
		{name: "no retry publisher", job: importedJob(), recordErr: errDB, noPublisher: true, wantErr: true, wantNack: true},
		{name: "missing payload goes to DLQ", job: noPayload, wantErr: true, wantNack: true},
		{name: "unknown job type", job: queue.NewJob("task_analysis"), wantErr: true, wantNack: true},
		{name: "not ready yet", job: early, wantNack: true, wantRequeue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &mockHistoryRepo{}
			if tt.recordErr != nil {
				repo.recordFunc = func(context.Context, *models.ImportRecord) (bool, error) {
					return false, tt.recordErr
				}
			}
			pub := &mockPublisher{err: tt.publishErr}
			var retries queue.Publisher = pub
			if tt.noPublisher {
				retries = nil
			}

			recorder := NewHistoryRecorder(repo, retries, zaptest.NewLogger(t))
			msg := &mockMessage{job: tt.job}
			err := recorder.ProcessJob(context.Background(), msg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", msg.acked, tt.wantAck)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("nacked = %v, want %v", msg.nacked, tt.wantNack)
			}
			if msg.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", msg.requeue, tt.wantRequeue)
			}
			if len(pub.jobs) != tt.wantPublished {
				t.Errorf("published %d jobs, want %d", len(pub.jobs), tt.wantPublished)
			}
		})
	}
}

func TestHistoryRecorder_RecordImport(t *testing.T) {
	t.Parallel()

	repo := &mockHistoryRepo{}
	recorder := NewHistoryRecorder(repo, nil, nil)
	job := importedJob()

	if err := recorder.RecordImport(context.Background(), job); err != nil {
		t.Fatalf("RecordImport: %v", err)
	}

	got, _ := repo.ListByTemplate(context.Background(), job.Import.TemplateID, 10)
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	rec := got[0]
	if rec.SessionID != job.Import.SessionID || rec.FileName != "site-inspection.xlsx" || rec.FieldCount != 7 || rec.CategoryCount != 2 {
		t.Errorf("Unexpected record %+v", rec)
	}
	if !rec.ImportedAt.Equal(job.Import.ImportedAt) {
		t.Errorf("ImportedAt = %v, want %v", rec.ImportedAt, job.Import.ImportedAt)
	}
}

func TestHistoryRecorder_RetryCarriesCount(t *testing.T) {
	t.Parallel()

	repo := &mockHistoryRepo{recordFunc: func(context.Context, *models.ImportRecord) (bool, error) {
		return false, errors.New("timeout")
	}}
	pub := &mockPublisher{}
	recorder := NewHistoryRecorder(repo, pub, zaptest.NewLogger(t))

	job := importedJob()
	_ = recorder.ProcessJob(context.Background(), &mockMessage{job: job})

	if len(pub.jobs) != 1 {
		t.Fatalf("Expected one republished job, got %d", len(pub.jobs))
	}
	if pub.jobs[0].RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", pub.jobs[0].RetryCount)
	}
	if pub.jobs[0].ID != job.ID {
		t.Error("Expected the republished job to keep its id")
	}
	if job.RetryCount != 0 {
		t.Error("Expected the delivered job to be left untouched")
	}
}

func TestHistoryRecorder_DuplicateIsAcked(t *testing.T) {
	t.Parallel()

	repo := &mockHistoryRepo{recordFunc: func(context.Context, *models.ImportRecord) (bool, error) {
		return false, nil
	}}
	recorder := NewHistoryRecorder(repo, nil, zaptest.NewLogger(t))
	msg := &mockMessage{job: importedJob()}

	if err := recorder.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Errorf("Expected duplicate to be acked, acked=%v nacked=%v", msg.acked, msg.nacked)
	}
}
