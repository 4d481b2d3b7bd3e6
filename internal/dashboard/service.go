package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coursedash.app/cloud/internal/cache"
	"coursedash.app/cloud/internal/logger"
	"coursedash.app/cloud/internal/models"
	"coursedash.app/cloud/internal/storage"
)

const DefaultCacheTTL = 5 * time.Minute

type Service struct {
	store storage.Storage
	cache cache.Cache
	memo  *Memo
	ttl   time.Duration
}

func NewService(store storage.Storage, c cache.Cache, memo *Memo, ttl time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if memo == nil {
		memo = NewMemo(DefaultMemoCapacity)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		store: store,
		cache: c,
		memo:  memo,
		ttl:   ttl,
	}
}

// Enrollment loads an enrollment owned by user, or ErrNotFound.
func (s *Service) Enrollment(ctx context.Context, user, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("error loading enrollment: %w", err)
	}
	if enrollment == nil || enrollment.User != user {
		return nil, ErrNotFound
	}
	return enrollment, nil
}

func (s *Service) Item(ctx context.Context, user, enrollmentID string) (*Item, error) {
	enrollment, err := s.Enrollment(ctx, user, enrollmentID)
	if err != nil {
		return nil, err
	}
	return s.memo.Derive(enrollment)
}

// Items derives every dashboard item of user. One enrollment with a missing
// course fails the whole list.
func (s *Service) Items(ctx context.Context, user string) ([]*Item, error) {
	key := userCacheKey(user)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var items []*Item
		if err := json.Unmarshal(data, &items); err == nil {
			logger.Debug("Dashboard cache hit", map[string]interface{}{
				"user": user,
			})
			return items, nil
		}
		logger.Warn("Discarding undecodable cached dashboard", map[string]interface{}{
			"user": user,
		})
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("Dashboard cache unavailable", map[string]interface{}{
			"user":  user,
			"error": err.Error(),
		})
	}

	enrollments, err := s.store.FindEnrollmentsByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error listing enrollments: %w", err)
	}

	items := make([]*Item, 0, len(enrollments))
	for _, enrollment := range enrollments {
		item, err := s.memo.Derive(enrollment)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if data, err := json.Marshal(items); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			logger.Warn("Failed to cache dashboard", map[string]interface{}{
				"user":  user,
				"error": err.Error(),
			})
		}
	}

	return items, nil
}

func (s *Service) Invalidate(ctx context.Context, user string) error {
	return s.cache.Delete(ctx, userCacheKey(user))
}

func (s *Service) Memo() *Memo {
	return s.memo
}

func userCacheKey(user string) string {
	return "dashboard:user:" + user
}
