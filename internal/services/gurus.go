package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"guruchat-backend/internal/cache"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/repository"
)

type guruRepository interface {
	List(ctx context.Context) ([]models.Guru, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*models.Guru, error)
	GetNames(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]string, error)
}

// cacheRecorder is satisfied by the metrics collector.
type cacheRecorder interface {
	CacheHit(name string)
	CacheMiss(name string)
}

type GuruService struct {
	repo    guruRepository
	cache   cache.GuruCache
	metrics cacheRecorder
	log     *zap.Logger
}

func NewGuruService(repo guruRepository, guruCache cache.GuruCache, metrics cacheRecorder, log *zap.Logger) *GuruService {
	if guruCache == nil {
		guruCache = cache.NopGuruCache{}
	}
	return &GuruService{repo: repo, cache: guruCache, metrics: metrics, log: log}
}

// List returns every persona sorted by name.
func (s *GuruService) List(ctx context.Context) ([]models.Guru, error) {
	if gurus, ok := s.cache.GetGurus(ctx); ok {
		s.recordHit()
		return gurus, nil
	}
	s.recordMiss()

	gurus, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetGurus(ctx, gurus)
	return gurus, nil
}

func (s *GuruService) GetByID(ctx context.Context, rawID string) (*models.Guru, error) {
	id, err := models.ParseID(rawID)
	if err != nil {
		return nil, &InvalidIDError{Message: "Invalid Guru ID format"}
	}

	guru, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Guru not found"}
		}
		return nil, err
	}
	return guru, nil
}

// ResolvePrompt never fails: anything but a known guru falls back to the
// default prompt. The returned guru id is nil in that case.
func (s *GuruService) ResolvePrompt(ctx context.Context, rawID string) (string, *bson.ObjectID) {
	id, err := models.ParseOptionalID(rawID)
	if err != nil || id == nil {
		return DefaultSystemPrompt, nil
	}

	guru, err := s.repo.GetByID(ctx, *id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("guru lookup failed, using default prompt", zap.String("guru_id", rawID), zap.Error(err))
		}
		return DefaultSystemPrompt, nil
	}
	if guru.SystemPrompt == "" {
		return DefaultSystemPrompt, &guru.ID
	}
	return guru.SystemPrompt, &guru.ID
}

func (s *GuruService) recordHit() {
	if s.metrics != nil {
		s.metrics.CacheHit("gurus")
	}
}

func (s *GuruService) recordMiss() {
	if s.metrics != nil {
		s.metrics.CacheMiss("gurus")
	}
}
