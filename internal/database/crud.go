package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateJobStatus(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == JobCompleted || status == JobFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&BreakupJob{Id: jobId}).Updates(updates).Error; err != nil {
		slog.Error("error updating job status", "job_id", jobId, "status", status, "error", err)
		return err
	}
	return nil
}

func MarkJobCompleted(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, artifactKey string, sceneCount int) error {
	updates := map[string]any{
		"status":          JobCompleted,
		"artifact_key":    artifactKey,
		"scene_count":     sceneCount,
		"completion_time": time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Model(&BreakupJob{Id: jobId}).Updates(updates).Error; err != nil {
		slog.Error("error marking job completed", "job_id", jobId, "error", err)
		return err
	}
	return nil
}

func SaveJobError(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, errorMessage string) {
	jobError := JobError{
		JobId:     jobId,
		ErrorId:   uuid.New(),
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&jobError).Error; err != nil {
		slog.Error("error saving job error", "job_id", jobId, "error", err)
	}
}
