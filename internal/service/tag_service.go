package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"conduit-api/internal/cache"
	"conduit-api/internal/repository"
)

const tagsCacheKey = "conduit:tags"

// TagService lists the distinct tags in use. Results are cached until an article write
// calls Invalidate or the TTL passes. A read that overlaps an Invalidate does not write
// its result back; across processes sharing a store the TTL bounds staleness instead.
type TagService interface {
	List(ctx context.Context) ([]string, error)
	Invalidate(ctx context.Context)
}

type tagService struct {
	articles repository.ArticleRepository
	store    cache.Store
	ttl      time.Duration
	log      logrus.FieldLogger

	// generation is bumped by every Invalidate.
	generation atomic.Uint64
}

// NewTagService builds the tag use case. store may be nil to disable caching.
func NewTagService(articles repository.ArticleRepository, store cache.Store, ttl time.Duration, log logrus.FieldLogger) TagService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &tagService{
		articles: articles,
		store:    store,
		ttl:      ttl,
		log:      log,
	}
}

func (s *tagService) List(ctx context.Context) ([]string, error) {
	if s.store != nil {
		if raw, err := s.store.Get(ctx, tagsCacheKey); err == nil {
			var tags []string
			if err := json.Unmarshal(raw, &tags); err == nil {
				return tags, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.log.WithError(err).Warn("read tag cache")
		}
	}

	gen := s.generation.Load()
	tags, err := s.articles.Tags(ctx)
	if err != nil {
		return nil, err
	}

	if s.store != nil && s.generation.Load() == gen {
		s.fill(ctx, gen, tags)
	}
	return tags, nil
}

// fill stores tags read at generation gen, and drops them again if an Invalidate landed
// while they were being written.
func (s *tagService) fill(ctx context.Context, gen uint64, tags []string) {
	raw, err := json.Marshal(tags)
	if err == nil {
		err = s.store.Set(ctx, tagsCacheKey, raw, s.ttl)
	}
	if err != nil {
		s.log.WithError(err).Warn("write tag cache")
		return
	}
	if s.generation.Load() != gen {
		if err := s.store.Delete(ctx, tagsCacheKey); err != nil {
			s.log.WithError(err).Warn("invalidate tag cache")
		}
	}
}

func (s *tagService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, tagsCacheKey); err != nil {
		s.log.WithError(err).Warn("invalidate tag cache")
	}
}
