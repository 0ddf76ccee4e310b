package versions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BreakupJob struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	LakeId int64 `gorm:"not null;index"`
	Year   int   `gorm:"not null"`

	CloudThreshold float64 `gorm:"not null"`
	GlobalWater    bool    `gorm:"default:true"`
	LogisticFilter bool    `gorm:"default:true"`
	DummyWater     bool    `gorm:"default:false"`

	ExportDirectory string `gorm:"not null"`
	ExportFilename  string `gorm:"not null"`

	Status string `gorm:"size:20;not null"`

	Deleted bool `gorm:"default:false"`
	Stopped bool `gorm:"default:false"`

	SceneCount  int `gorm:"default:0"`
	ArtifactKey string

	CreationTime   time.Time
	CompletionTime sql.NullTime

	Errors []JobError `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
}

type JobError struct {
	JobId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Error     string
	Timestamp time.Time
}

func Migration0(db *gorm.DB) error {
	if err := db.AutoMigrate(&BreakupJob{}, &JobError{}); err != nil {
		return fmt.Errorf("Migration0 failed: %w", err)
	}
	return nil
}
