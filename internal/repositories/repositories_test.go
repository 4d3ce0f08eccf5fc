package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/services"
	"github.com/desertthunder/ytq/internal/shared"
	"github.com/desertthunder/ytq/internal/tasks"
)

var testChannel = models.ChannelID{Category: "gaming", Name: "main"}

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newRecord(ch models.ChannelID, path string, state models.JobState) *models.UploadRecord {
	job := &models.UploadJob{
		ID:        shared.GenerateID(),
		VideoPath: path,
		Title:     "Title for " + path,
		Privacy:   models.PrivacyUnlisted,
		State:     state,
	}
	if state == models.JobDone {
		job.VideoID = "vid-" + path
	}
	if state == models.JobError {
		job.Err = fmt.Errorf("%w: connection reset", shared.ErrTransferTransport)
	}
	return models.NewUploadRecord(0, ch, job)
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "uploads")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestUploadRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobDone)

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}
		if rec.ID() == "" {
			t.Error("record ID should be set after creation")
		}
		if rec.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", rec.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		publishAt := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobError)
		rec.PublishAt = &publishAt

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get record: %v", err)
		}

		if got.Channel != "gaming/main" || got.VideoPath != "/videos/a.mp4" || got.JobID != rec.JobID {
			t.Errorf("unexpected record: %+v", got)
		}
		if got.State != models.JobError || got.Privacy != models.PrivacyUnlisted {
			t.Errorf("expected error/unlisted, got %v/%v", got.State, got.Privacy)
		}
		if got.Error == "" {
			t.Error("expected error text to round trip")
		}
		if got.PublishAt == nil || !got.PublishAt.Equal(publishAt) {
			t.Errorf("expected publish at %v, got %v", publishAt, got.PublishAt)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("GetByJobID", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobDone)
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}

		got, err := repo.GetByJobID(rec.JobID)
		if err != nil {
			t.Fatalf("failed to get record by job: %v", err)
		}
		if got.ID() != rec.ID() {
			t.Errorf("expected ID %s, got %s", rec.ID(), got.ID())
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobError)
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}

		rec.State = models.JobDone
		rec.VideoID = "vid-retry"
		rec.Error = ""
		if err := repo.Update(rec); err != nil {
			t.Fatalf("failed to update record: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get record: %v", err)
		}
		if got.State != models.JobDone || got.VideoID != "vid-retry" || got.Error != "" {
			t.Errorf("update not applied: %+v", got)
		}
	})

	t.Run("UpdateValidation", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobDone)
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}

		rec.State = models.JobUploading
		if err := repo.Update(rec); err == nil {
			t.Error("expected validation error for non-terminal state")
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobDone)
		rec.SetID("nonexistent-id")
		if err := repo.Update(rec); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobDone)
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}

		if err := repo.Delete(rec.ID()); err != nil {
			t.Fatalf("failed to delete record: %v", err)
		}
		if _, err := repo.Get(rec.ID()); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("deleted record should not be found, got %v", err)
		}
		if err := repo.Delete(rec.ID()); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("second delete should fail with ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("CreateValidation", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		rec := newRecord(testChannel, "/videos/a.mp4", models.JobQueued)
		if err := repo.Create(rec); err == nil {
			t.Error("expected validation error for non-terminal state")
		}
	})
}

func TestUploadRepositoryList(t *testing.T) {
	repo := NewUploadRepository(setupTestDB(t))
	other := models.ChannelID{Category: "art", Name: "daily"}

	fixtures := []*models.UploadRecord{
		newRecord(testChannel, "/videos/1.mp4", models.JobDone),
		newRecord(testChannel, "/videos/2.mp4", models.JobError),
		newRecord(other, "/videos/3.mp4", models.JobDone),
		newRecord(testChannel, "/videos/4.mp4", models.JobDone),
	}
	for _, rec := range fixtures {
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}
	}
	if err := repo.Delete(fixtures[3].ID()); err != nil {
		t.Fatalf("failed to delete record: %v", err)
	}

	tests := []struct {
		name     string
		criteria map[string]any
		want     []string
	}{
		{name: "all newest first", criteria: map[string]any{}, want: []string{"/videos/3.mp4", "/videos/2.mp4", "/videos/1.mp4"}},
		{name: "by channel", criteria: map[string]any{"channel": "gaming/main"}, want: []string{"/videos/2.mp4", "/videos/1.mp4"}},
		{name: "by state", criteria: map[string]any{"state": models.JobDone}, want: []string{"/videos/3.mp4", "/videos/1.mp4"}},
		{name: "limit", criteria: map[string]any{"limit": 1}, want: []string{"/videos/3.mp4"}},
		{name: "no match", criteria: map[string]any{"channel": "none/none"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(tt.criteria)
			if err != nil {
				t.Fatalf("failed to list records: %v", err)
			}
			var paths []string
			for _, rec := range got {
				paths = append(paths, rec.VideoPath)
			}
			if fmt.Sprint(paths) != fmt.Sprint(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, paths)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	db := setupTestDB(t)
	h := NewHistory(db)

	results := []tasks.JobResult{
		{JobID: "j1", Title: "One", VideoPath: "/videos/1.mp4", VideoID: "vid-1", Privacy: models.PrivacyPublic, State: models.JobDone},
		{JobID: "j2", Title: "Two", VideoPath: "/videos/2.mp4", State: models.JobError, Err: shared.ErrTransferIO},
	}
	for _, res := range results {
		if err := h.Record(context.Background(), testChannel, res); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	t.Run("recent for channel", func(t *testing.T) {
		got, err := h.Recent(&testChannel, 10)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(got) != 2 || got[0].JobID != "j2" || got[1].JobID != "j1" {
			t.Fatalf("unexpected records: %+v", got)
		}
		if got[0].Error != shared.ErrTransferIO.Error() {
			t.Errorf("expected error text %q, got %q", shared.ErrTransferIO.Error(), got[0].Error)
		}
		if got[1].VideoID != "vid-1" || got[1].Privacy != models.PrivacyPublic {
			t.Errorf("unexpected success record: %+v", got[1])
		}
	})

	t.Run("recent for all channels", func(t *testing.T) {
		got, err := h.Recent(nil, 1)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 record, got %d", len(got))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := h.Record(ctx, testChannel, results[0]); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("queue writes history", func(t *testing.T) {
		repo := NewUploadRepository(setupTestDB(t))
		hist := &History{uploads: repo}
		q := tasks.NewUploadQueue(tasks.QueueOpts{
			Channel:     testChannel,
			Credentials: staticCreds{},
			Uploaders:   okUploaders,
			History:     hist,
		})
		if err := q.Enqueue(&models.UploadJob{VideoPath: "/videos/q.mp4", Title: "Queued"}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if err := q.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		q.Wait()

		got, err := repo.List(map[string]any{"channel": testChannel.String()})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(got) != 1 || got[0].State != models.JobDone || got[0].VideoID != "vid-q" {
			t.Errorf("unexpected ledger: %+v", got)
		}
	})
}

type staticCreds struct{}

func (staticCreds) Token(context.Context, models.ChannelID) (*models.CredentialRecord, error) {
	return &models.CredentialRecord{AccessToken: "access-1"}, nil
}

type okUploader struct{}

func (okUploader) Upload(_ context.Context, job *models.UploadJob, progress func(int)) (string, error) {
	progress(100)
	return "vid-q", nil
}

func okUploaders(context.Context, models.ChannelID, *models.CredentialRecord) (services.Uploader, error) {
	return okUploader{}, nil
}
