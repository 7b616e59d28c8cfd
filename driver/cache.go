package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/samber/oops"
	"gorm.io/gorm"

	"github.com/ZAPPYcore/DAISY/models"
)

// CacheKey derives the build-cache key for one module. The compiler version
// participates so behavioral changes invalidate artifacts without manual
// cleanup; the canonical feature-flag string covers code-shape toggles.
func CacheKey(source []byte, abiMajor int, compilerVersion, featureFlags string) string {
	h := sha256.New()
	h.Write(source)
	fmt.Fprintf(h, "|abi=%d|daisyc=%s|flags=%s", abiMajor, compilerVersion, featureFlags)
	return hex.EncodeToString(h.Sum(nil))
}

// SourceHash is the content hash alone, recorded in ABI manifests.
func SourceHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// cacheLookup returns the artifact for key, or nil on a miss.
func cacheLookup(gdb *gorm.DB, key string) (*models.ModuleArtifact, error) {
	var art models.ModuleArtifact
	err := gdb.Where("key = ?", key).First(&art).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("cache_lookup").With("key", key).Wrap(err)
	}
	return &art, nil
}

// cacheStore upserts one artifact row.
func cacheStore(gdb *gorm.DB, art *models.ModuleArtifact) error {
	if err := gdb.Save(art).Error; err != nil {
		return oops.Code("cache_store").With("key", art.Key).Wrap(err)
	}
	return nil
}

// CacheStats summarizes the index for `daisy cache stats`.
type CacheStats struct {
	Artifacts int64
	Runs      int64
	Hits      int64
}

func Stats(gdb *gorm.DB) (*CacheStats, error) {
	var s CacheStats
	if err := gdb.Model(&models.ModuleArtifact{}).Count(&s.Artifacts).Error; err != nil {
		return nil, oops.Code("cache_stats").Wrap(err)
	}
	if err := gdb.Model(&models.BuildRun{}).Count(&s.Runs).Error; err != nil {
		return nil, oops.Code("cache_stats").Wrap(err)
	}
	row := gdb.Model(&models.BuildRun{}).Select("COALESCE(SUM(cache_hits), 0)").Row()
	if err := row.Scan(&s.Hits); err != nil {
		return nil, oops.Code("cache_stats").Wrap(err)
	}
	return &s, nil
}

// Clear drops every cached artifact.
func Clear(gdb *gorm.DB) error {
	if err := gdb.Where("1 = 1").Delete(&models.ModuleArtifact{}).Error; err != nil {
		return oops.Code("cache_clear").Wrap(err)
	}
	return nil
}
