package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/database"
	"github.com/xgirouxb/open-ice/internal/messaging"
	"github.com/xgirouxb/open-ice/internal/storage"
)

type processorFixture struct {
	proc  *TaskProcessor
	db    *gorm.DB
	queue *messaging.InMemoryQueue
	store storage.ObjectStore
}

func setupProcessor(t *testing.T) *processorFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase("sqlite://" + filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(ctx, "scenes"))
	require.NoError(t, store.CreateBucket(ctx, "results"))

	cat := catalog.New(store, "scenes")
	lakes := loadTestLakes(t)
	seedTestArchive(t, cat, lakes)

	queue := messaging.NewInMemoryQueue()
	detector := NewDetector(cat, lakes)

	return &processorFixture{
		proc:  NewTaskProcessor(db, store, queue, detector, "results"),
		db:    db,
		queue: queue,
		store: store,
	}
}

func (f *processorFixture) createJob(t *testing.T, job database.BreakupJob) uuid.UUID {
	t.Helper()
	if job.Id == uuid.Nil {
		job.Id = uuid.New()
	}
	if job.Status == "" {
		job.Status = database.JobQueued
	}
	if job.CreationTime.IsZero() {
		job.CreationTime = time.Now().UTC()
	}
	require.NoError(t, f.db.Create(&job).Error)
	return job.Id
}

// runTask publishes a breakup task for the job and feeds it to the processor
// the way the worker loop would.
func (f *processorFixture) runTask(t *testing.T, jobId uuid.UUID) {
	t.Helper()
	require.NoError(t, f.queue.PublishBreakupTask(context.Background(), messaging.BreakupTaskPayload{JobId: jobId}))
	f.proc.ProcessTask(<-f.queue.Tasks())
}

func defaultTestJob() database.BreakupJob {
	return database.BreakupJob{
		LakeId:          testLakeId,
		Year:            2019,
		CloudThreshold:  90,
		GlobalWater:     true,
		LogisticFilter:  true,
		ExportDirectory: "runs",
		ExportFilename:  "test-lake-2019",
	}
}

func TestProcessBreakupTask(t *testing.T) {
	f := setupProcessor(t)
	jobId := f.createJob(t, defaultTestJob())

	f.runTask(t, jobId)

	var job database.BreakupJob
	require.NoError(t, f.db.First(&job, "id = ?", jobId).Error)
	assert.Equal(t, database.JobCompleted, job.Status)
	assert.Equal(t, 5, job.SceneCount)
	assert.Equal(t, "runs/test-lake-2019.nc", job.ArtifactKey)
	assert.True(t, job.CompletionTime.Valid)

	artifact, err := f.store.GetObject(context.Background(), "results", job.ArtifactKey)
	require.NoError(t, err)
	assert.NotEmpty(t, artifact)
}

func TestProcessBreakupTask_SkipsStoppedJob(t *testing.T) {
	f := setupProcessor(t)
	job := defaultTestJob()
	job.Stopped = true
	jobId := f.createJob(t, job)

	f.runTask(t, jobId)

	var got database.BreakupJob
	require.NoError(t, f.db.First(&got, "id = ?", jobId).Error)
	assert.Equal(t, database.JobQueued, got.Status)
	assert.Empty(t, got.ArtifactKey)
}

func TestProcessBreakupTask_DetectionFailure(t *testing.T) {
	f := setupProcessor(t)
	job := defaultTestJob()
	job.LakeId = 501 // lake exists but has no archived tile
	jobId := f.createJob(t, job)

	f.runTask(t, jobId)

	var got database.BreakupJob
	require.NoError(t, f.db.Preload("Errors").First(&got, "id = ?", jobId).Error)
	assert.Equal(t, database.JobFailed, got.Status)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0].Error, "grid")
}

func TestProcessBreakupTask_UnknownJob(t *testing.T) {
	f := setupProcessor(t)

	// Must not panic or write anything; the message is nacked.
	f.runTask(t, uuid.New())

	var count int64
	require.NoError(t, f.db.Model(&database.BreakupJob{}).Count(&count).Error)
	assert.Zero(t, count)
}
