package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hums-platform/academics-api/internal/models"
	appErrors "github.com/hums-platform/academics-api/pkg/errors"
)

const scaleCacheKey = "academics:grade_scale:default"

// weight and percentage comparisons tolerate float noise
const percentEpsilon = 0.011

type gradeScaleRepo interface {
	FindDefault(ctx context.Context) (*models.GradeScale, error)
}

// GradeScaleService serves the default letter-grade scale. The scale is
// read-mostly, so lookups go through Redis with a configurable TTL.
type GradeScaleService struct {
	repo     gradeScaleRepo
	cache    *redis.Client
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewGradeScaleService constructs the service. cache may be nil, in which
// case every lookup hits the database.
func NewGradeScaleService(repo gradeScaleRepo, cache *redis.Client, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *GradeScaleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeScaleService{repo: repo, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

// Default returns the validated default grade scale.
func (s *GradeScaleService) Default(ctx context.Context) (*models.GradeScale, error) {
	scale, _, err := s.DefaultCached(ctx)
	return scale, err
}

// DefaultCached is Default plus whether the scale came from the cache.
func (s *GradeScaleService) DefaultCached(ctx context.Context) (*models.GradeScale, bool, error) {
	if scale := s.fromCache(ctx); scale != nil {
		return scale, true, nil
	}
	scale, err := s.repo.FindDefault(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no default grade scale configured")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	if err := ValidateScale(scale); err != nil {
		return nil, false, err
	}
	s.store(ctx, scale)
	return scale, false, nil
}

func (s *GradeScaleService) fromCache(ctx context.Context) *models.GradeScale {
	if s.cache == nil {
		return nil
	}
	start := time.Now()
	raw, err := s.cache.Get(ctx, scaleCacheKey).Bytes()
	hit := err == nil
	s.metrics.RecordCacheOperation(hit, time.Since(start))
	if !hit {
		return nil
	}
	var scale models.GradeScale
	if err := json.Unmarshal(raw, &scale); err != nil {
		s.logger.Warn("grade scale cache decode failed", zap.Error(err))
		return nil
	}
	return &scale
}

func (s *GradeScaleService) store(ctx context.Context, scale *models.GradeScale) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(scale)
	if err != nil {
		return
	}
	start := time.Now()
	if err := s.cache.Set(ctx, scaleCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("grade scale cache write failed", zap.Error(err))
		return
	}
	s.metrics.ObserveCacheWrite(time.Since(start))
}

// ValidateScale checks that the definitions are ordered, non-overlapping,
// contiguous, and cover the full 0-100 range.
func ValidateScale(scale *models.GradeScale) error {
	defs := scale.Definitions
	if len(defs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "grade scale has no definitions")
	}
	for i, def := range defs {
		if def.MinPercentage > def.MaxPercentage {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("definition %s has inverted range", def.Letter))
		}
		if i == 0 {
			continue
		}
		prev := defs[i-1]
		gap := def.MinPercentage - prev.MaxPercentage
		if gap < 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("definitions %s and %s overlap", prev.Letter, def.Letter))
		}
		if gap > percentEpsilon {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("gap between definitions %s and %s", prev.Letter, def.Letter))
		}
	}
	if defs[0].MinPercentage > percentEpsilon {
		return appErrors.Clone(appErrors.ErrValidation, "grade scale does not cover 0")
	}
	if defs[len(defs)-1].MaxPercentage < 100-percentEpsilon {
		return appErrors.Clone(appErrors.ErrValidation, "grade scale does not cover 100")
	}
	return nil
}

// LetterFor maps a percentage onto the scale. Definitions are ordered by
// ascending minimum; when no range contains the percentage the lowest-range
// definition acts as the floor.
func LetterFor(scale *models.GradeScale, percentage float64) models.GradeDefinition {
	for _, def := range scale.Definitions {
		if percentage >= def.MinPercentage && percentage <= def.MaxPercentage {
			return def
		}
	}
	return scale.Definitions[0]
}
