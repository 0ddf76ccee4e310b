package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/xgirouxb/open-ice/internal/database"
	"github.com/xgirouxb/open-ice/internal/export"
	"github.com/xgirouxb/open-ice/internal/messaging"
	"github.com/xgirouxb/open-ice/internal/storage"

	"gorm.io/gorm"
)

// TaskProcessor consumes breakup detection jobs from the queue, runs the
// analysis, and stores the exported artifact.
type TaskProcessor struct {
	db       *gorm.DB
	storage  storage.ObjectStore
	receiver messaging.Receiver

	detector     *Detector
	resultBucket string
}

func NewTaskProcessor(db *gorm.DB, store storage.ObjectStore, receiver messaging.Receiver, detector *Detector, resultBucket string) *TaskProcessor {
	return &TaskProcessor{
		db:           db,
		storage:      store,
		receiver:     receiver,
		detector:     detector,
		resultBucket: resultBucket,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.receiver.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.receiver.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {

	case messaging.BreakupQueue:
		var payload messaging.BreakupTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling breakup task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processBreakupTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil { // reject unknown message type
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processBreakupTask(ctx context.Context, payload messaging.BreakupTaskPayload) error {
	jobId := payload.JobId

	slog.Info("processing breakup task", "job_id", jobId)

	var job database.BreakupJob
	if err := proc.db.First(&job, "id = ?", jobId).Error; err != nil {
		slog.Error("error fetching breakup job", "job_id", jobId, "error", err)
		return fmt.Errorf("error getting breakup job: %w", err)
	}

	if job.Stopped || job.Deleted {
		slog.Info("job stopped, skipping breakup task", "job_id", jobId)
		return nil
	}

	if err := database.UpdateJobStatus(ctx, proc.db, jobId, database.JobRunning); err != nil {
		slog.Error("error marking job as running", "job_id", jobId, "error", err)
	}

	opts := Options{
		Year:           job.Year,
		CloudThreshold: job.CloudThreshold,
		GlobalWater:    job.GlobalWater,
		LogisticFilter: job.LogisticFilter,
		DummyWater:     job.DummyWater,
		Concurrency:    DefaultOptions(job.Year).Concurrency,
	}

	result, workerErr := proc.detector.Detect(ctx, job.LakeId, opts)
	if workerErr != nil {
		slog.Error("error running breakup detection", "job_id", jobId, "error", workerErr)
		database.UpdateJobStatus(ctx, proc.db, jobId, database.JobFailed) // nolint:errcheck
		database.SaveJobError(ctx, proc.db, jobId, workerErr.Error())
		return fmt.Errorf("error running breakup detection: %w", workerErr)
	}

	artifactKey := path.Join(job.ExportDirectory, job.ExportFilename+".nc")
	if err := export.Upload(ctx, proc.storage, proc.resultBucket, artifactKey, job.LakeId, result); err != nil {
		slog.Error("error exporting breakup result", "job_id", jobId, "error", err)
		database.UpdateJobStatus(ctx, proc.db, jobId, database.JobFailed) // nolint:errcheck
		database.SaveJobError(ctx, proc.db, jobId, err.Error())
		return fmt.Errorf("error exporting breakup result: %w", err)
	}

	if err := database.MarkJobCompleted(ctx, proc.db, jobId, artifactKey, result.SceneCount); err != nil {
		return fmt.Errorf("error updating job status to complete: %w", err)
	}

	slog.Info("breakup task completed successfully",
		"job_id", jobId, "lake_id", job.LakeId, "year", job.Year, "artifact", artifactKey)

	return nil
}
