// Package api exposes the REST surface: submitting breakup detection jobs,
// tracking their progress, and looking up lakes from the HydroLAKES export.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xgirouxb/open-ice/internal/core"
	"github.com/xgirouxb/open-ice/internal/database"
	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/messaging"
	"github.com/xgirouxb/open-ice/pkg/api"
)

// Lakes this far north get a warning when the permanent water mask is on;
// the occurrence layer degrades at high latitudes.
const highLatitudeCutoff = 70.0

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	lakes     *geo.LakeSource
}

func NewBackendService(db *gorm.DB, publisher messaging.Publisher, lakes *geo.LakeSource) *BackendService {
	return &BackendService{db: db, publisher: publisher, lakes: lakes}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateJob))
		r.Get("/", RestHandler(s.ListJobs))
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/", RestHandler(s.GetJob))
			r.Post("/stop", RestHandler(s.StopJob))
			r.Delete("/", RestHandler(s.DeleteJob))
		})
	})
	r.Route("/lakes", func(r chi.Router) {
		r.Get("/{lake_id}", RestHandler(s.GetLake))
	})
}

func (s *BackendService) CreateJob(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateJobRequest](r)
	if err != nil {
		return nil, err
	}

	lake, err := s.lakes.Lake(req.LakeId)
	if err != nil {
		if errors.Is(err, geo.ErrLakeNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "lake %d not found", req.LakeId)
		}
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	if req.Year < core.MinYear || req.Year > core.MaxYear {
		return nil, CodedErrorf(http.StatusBadRequest, "year %d outside supported range [%d, %d]", req.Year, core.MinYear, core.MaxYear)
	}

	defaults := core.DefaultOptions(req.Year)

	cloudThreshold := defaults.CloudThreshold
	if req.CloudThreshold != nil {
		cloudThreshold = *req.CloudThreshold
	}
	if cloudThreshold < 0 || cloudThreshold > 100 {
		return nil, CodedErrorf(http.StatusBadRequest, "cloud threshold %v outside range [0, 100]", cloudThreshold)
	}

	globalWater := defaults.GlobalWater
	if req.GlobalWater != nil {
		globalWater = *req.GlobalWater
	}
	if globalWater && lake.MaxLat() > highLatitudeCutoff {
		slog.Warn("global water mask requested for high latitude lake, occurrence layer may be unreliable",
			"lake_id", lake.Id, "max_lat", lake.MaxLat())
	}

	logisticFilter := defaults.LogisticFilter
	if req.LogisticFilter != nil {
		logisticFilter = *req.LogisticFilter
	}
	dummyWater := defaults.DummyWater
	if req.DummyWater != nil {
		dummyWater = *req.DummyWater
	}

	if err := validateName("export directory", req.ExportDirectory); err != nil {
		return nil, err
	}
	if err := validateName("export filename", req.ExportFilename); err != nil {
		return nil, err
	}

	job := database.BreakupJob{
		Id:              uuid.New(),
		LakeId:          req.LakeId,
		Year:            req.Year,
		CloudThreshold:  cloudThreshold,
		GlobalWater:     globalWater,
		LogisticFilter:  logisticFilter,
		DummyWater:      dummyWater,
		ExportDirectory: req.ExportDirectory,
		ExportFilename:  req.ExportFilename,
		Status:          database.JobQueued,
		CreationTime:    time.Now().UTC(),
	}

	if err := s.db.Create(&job).Error; err != nil {
		slog.Error("error creating breakup job", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error creating job")
	}

	if err := s.publisher.PublishBreakupTask(r.Context(), messaging.BreakupTaskPayload{JobId: job.Id}); err != nil {
		slog.Error("error publishing breakup task", "job_id", job.Id, "error", err)
		database.UpdateJobStatus(r.Context(), s.db, job.Id, database.JobFailed) // nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "error enqueueing job")
	}

	slog.Info("breakup job created", "job_id", job.Id, "lake_id", job.LakeId, "year", job.Year)

	return api.CreateJobResponse{JobId: job.Id}, nil
}

func (s *BackendService) ListJobs(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.JobSearchParams](r)
	if err != nil {
		return nil, err
	}

	query := s.db.Where("deleted = ?", false)
	if params.LakeId != nil {
		query = query.Where("lake_id = ?", *params.LakeId)
	}
	if params.Year != nil {
		query = query.Where("year = ?", *params.Year)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var jobs []database.BreakupJob
	if err := query.Order("creation_time DESC").Find(&jobs).Error; err != nil {
		slog.Error("error listing breakup jobs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing jobs")
	}

	out := make([]api.Job, len(jobs))
	for i := range jobs {
		out[i] = jobToView(&jobs[i])
	}
	return out, nil
}

func (s *BackendService) GetJob(r *http.Request) (any, error) {
	jobId, err := URLParamUUID(r, "job_id")
	if err != nil {
		return nil, err
	}

	var job database.BreakupJob
	if err := s.db.Preload("Errors").First(&job, "id = ? AND deleted = ?", jobId, false).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "job %v not found", jobId)
		}
		slog.Error("error fetching breakup job", "job_id", jobId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error getting job")
	}

	return jobToView(&job), nil
}

func (s *BackendService) StopJob(r *http.Request) (any, error) {
	jobId, err := URLParamUUID(r, "job_id")
	if err != nil {
		return nil, err
	}

	result := s.db.Model(&database.BreakupJob{}).
		Where("id = ? AND deleted = ?", jobId, false).
		Update("stopped", true)
	if result.Error != nil {
		slog.Error("error stopping breakup job", "job_id", jobId, "error", result.Error)
		return nil, CodedErrorf(http.StatusInternalServerError, "error stopping job")
	}
	if result.RowsAffected == 0 {
		return nil, CodedErrorf(http.StatusNotFound, "job %v not found", jobId)
	}

	slog.Info("breakup job stopped", "job_id", jobId)
	return nil, nil
}

func (s *BackendService) DeleteJob(r *http.Request) (any, error) {
	jobId, err := URLParamUUID(r, "job_id")
	if err != nil {
		return nil, err
	}

	result := s.db.Model(&database.BreakupJob{}).
		Where("id = ?", jobId).
		Updates(map[string]any{"deleted": true, "stopped": true})
	if result.Error != nil {
		slog.Error("error deleting breakup job", "job_id", jobId, "error", result.Error)
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting job")
	}
	if result.RowsAffected == 0 {
		return nil, CodedErrorf(http.StatusNotFound, "job %v not found", jobId)
	}

	slog.Info("breakup job deleted", "job_id", jobId)
	return nil, nil
}

func (s *BackendService) GetLake(r *http.Request) (any, error) {
	param := chi.URLParam(r, "lake_id")
	lakeId, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid lake id '%s'", param)
	}

	lake, err := s.lakes.Lake(lakeId)
	if err != nil {
		if errors.Is(err, geo.ErrLakeNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "lake %d not found", lakeId)
		}
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	return api.Lake{
		Id:      lake.Id,
		Name:    lake.Name,
		Country: lake.Country,
		AreaKm2: lake.AreaKm2,
		MaxLat:  lake.MaxLat(),
	}, nil
}

func jobToView(job *database.BreakupJob) api.Job {
	view := api.Job{
		Id:              job.Id,
		LakeId:          job.LakeId,
		Year:            job.Year,
		CloudThreshold:  job.CloudThreshold,
		GlobalWater:     job.GlobalWater,
		LogisticFilter:  job.LogisticFilter,
		DummyWater:      job.DummyWater,
		ExportDirectory: job.ExportDirectory,
		ExportFilename:  job.ExportFilename,
		Status:          job.Status,
		Stopped:         job.Stopped,
		SceneCount:      job.SceneCount,
		ArtifactKey:     job.ArtifactKey,
		CreationTime:    job.CreationTime,
	}
	if job.CompletionTime.Valid {
		t := job.CompletionTime.Time
		view.CompletionTime = &t
	}
	for _, e := range job.Errors {
		view.Errors = append(view.Errors, fmt.Sprintf("%s: %s", e.Timestamp.Format(time.RFC3339), e.Error))
	}
	return view
}
