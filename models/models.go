// Package models defines the gorm models backing the build-cache index.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// ModuleArtifact is one cached compilation result. Key is the cache key:
// SHA-256 over canonicalized source bytes concatenated with the compiler
// version, the module's ABI major and the canonical feature-flag string. A
// hit short-circuits regeneration for that module.
type ModuleArtifact struct {
	Key    string `gorm:"primaryKey;type:varchar(64)"`
	Module string `gorm:"type:varchar(255);index"`

	// Key components, stored for inspection
	SourceHash      string `gorm:"type:varchar(64)"`
	ABIMajor        int    `gorm:"not null"`
	CompilerVersion string `gorm:"type:varchar(20);not null"`
	FeatureFlags    string `gorm:"type:varchar(100)"`

	// Artifact locations
	CPath        string `gorm:"type:text"`
	HeaderPath   string `gorm:"type:text"`
	IRPath       string `gorm:"type:text"`
	ManifestPath string `gorm:"type:text"`

	// ABI manifest payload for quick gating without touching the file
	Manifest datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ModuleArtifact) TableName() string { return "module_artifacts" }

// BuildRun records one driver invocation for cache statistics.
type BuildRun struct {
	ID         uint      `gorm:"primaryKey"`
	Entry      string    `gorm:"type:text"`
	StartedAt  time.Time `gorm:"autoCreateTime"`
	FinishedAt *time.Time
	Modules    int  `gorm:"default:0"`
	CacheHits  int  `gorm:"default:0"`
	Success    bool `gorm:"default:false"`
}

func (BuildRun) TableName() string { return "build_runs" }
