package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase("sqlite://" + filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	return db
}

func newTestJob() BreakupJob {
	return BreakupJob{
		Id:              uuid.New(),
		LakeId:          109,
		Year:            2019,
		CloudThreshold:  90,
		GlobalWater:     true,
		LogisticFilter:  true,
		ExportDirectory: "runs",
		ExportFilename:  "gsl-2019",
		Status:          JobQueued,
		CreationTime:    time.Now().UTC(),
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := "sqlite://" + filepath.Join(t.TempDir(), "jobs.db")

	_, err := NewDatabase(path)
	require.NoError(t, err)

	// Reopening an already migrated database must be a no-op.
	db, err := NewDatabase(path)
	require.NoError(t, err)
	require.NoError(t, db.Create(&BreakupJob{Id: uuid.New(), Status: JobQueued}).Error)
}

func TestUpdateJobStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, db.Create(&job).Error)

	require.NoError(t, UpdateJobStatus(ctx, db, job.Id, JobRunning))
	var got BreakupJob
	require.NoError(t, db.First(&got, "id = ?", job.Id).Error)
	assert.Equal(t, JobRunning, got.Status)
	assert.False(t, got.CompletionTime.Valid, "running jobs have no completion time")

	require.NoError(t, UpdateJobStatus(ctx, db, job.Id, JobFailed))
	require.NoError(t, db.First(&got, "id = ?", job.Id).Error)
	assert.Equal(t, JobFailed, got.Status)
	assert.True(t, got.CompletionTime.Valid)
}

func TestMarkJobCompleted(t *testing.T) {
	db := setupTestDB(t)

	job := newTestJob()
	require.NoError(t, db.Create(&job).Error)

	require.NoError(t, MarkJobCompleted(context.Background(), db, job.Id, "runs/gsl-2019.nc", 42))

	var got BreakupJob
	require.NoError(t, db.First(&got, "id = ?", job.Id).Error)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, "runs/gsl-2019.nc", got.ArtifactKey)
	assert.Equal(t, 42, got.SceneCount)
	assert.True(t, got.CompletionTime.Valid)
}

func TestSaveJobError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, db.Create(&job).Error)

	SaveJobError(ctx, db, job.Id, "scene archive unreachable")
	SaveJobError(ctx, db, job.Id, "scene archive still unreachable")

	var got BreakupJob
	require.NoError(t, db.Preload("Errors").First(&got, "id = ?", job.Id).Error)
	require.Len(t, got.Errors, 2)
	messages := []string{got.Errors[0].Error, got.Errors[1].Error}
	assert.Contains(t, messages, "scene archive unreachable")
	assert.Contains(t, messages, "scene archive still unreachable")
}
