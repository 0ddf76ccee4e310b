// Package api defines the request and response payloads of the REST API.
package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateJobRequest struct {
	LakeId int64 `json:"lake_id"`
	Year   int   `json:"year"`

	// Optional; defaults to 90. Scenes at or above this cloud cover are
	// excluded.
	CloudThreshold *float64 `json:"cloud_threshold,omitempty"`

	// Optional; defaults to true. Should be set to false for lakes above
	// 70N, where the surface water occurrence layer is unreliable.
	GlobalWater *bool `json:"global_water,omitempty"`

	// Optional; defaults to true.
	LogisticFilter *bool `json:"logistic_filter,omitempty"`

	// Optional; defaults to false.
	DummyWater *bool `json:"dummy_water,omitempty"`

	ExportDirectory string `json:"export_directory"`
	ExportFilename  string `json:"export_filename"`
}

type CreateJobResponse struct {
	JobId uuid.UUID `json:"job_id"`
}

type Job struct {
	Id     uuid.UUID `json:"id"`
	LakeId int64     `json:"lake_id"`
	Year   int       `json:"year"`

	CloudThreshold float64 `json:"cloud_threshold"`
	GlobalWater    bool    `json:"global_water"`
	LogisticFilter bool    `json:"logistic_filter"`
	DummyWater     bool    `json:"dummy_water"`

	ExportDirectory string `json:"export_directory"`
	ExportFilename  string `json:"export_filename"`

	Status  string `json:"status"`
	Stopped bool   `json:"stopped"`

	SceneCount  int    `json:"scene_count"`
	ArtifactKey string `json:"artifact_key,omitempty"`

	CreationTime   time.Time  `json:"creation_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

type JobSearchParams struct {
	LakeId *int64  `schema:"lake_id"`
	Year   *int    `schema:"year"`
	Status *string `schema:"status"`
}

type Lake struct {
	Id      int64   `json:"id"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	AreaKm2 float64 `json:"area_km2"`
	MaxLat  float64 `json:"max_lat"`
}
