package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-costhook/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const profileCacheKeyPrefix = "costhook::user_profile::v1"

// CachedProfileStore serves /users/me reads from cache; every write goes to
// the base store and then drops the cached entry.
type CachedProfileStore struct {
	base  core.ProfileStore
	cache repositorycache.CacheService
}

func NewCachedProfileStore(base core.ProfileStore, cacheService repositorycache.CacheService) (*CachedProfileStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base profile store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: profile cache service is required")
	}
	return &CachedProfileStore{base: base, cache: cacheService}, nil
}

// ProfileCacheKey returns costhook::user_profile::v1::<auth_user_id> with the
// id URL-path escaped.
func ProfileCacheKey(authUserID string) (string, error) {
	trimmed := strings.TrimSpace(authUserID)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: auth user id is required")
	}
	return profileCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedProfileStore) GetOrCreate(ctx context.Context, authUserID string) (core.UserProfile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	key, err := ProfileCacheKey(authUserID)
	if err != nil {
		return core.UserProfile{}, err
	}
	profile, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.UserProfile, error) {
		return s.base.GetOrCreate(ctx, strings.TrimSpace(authUserID))
	})
	if err != nil {
		return core.UserProfile{}, err
	}
	return cloneProfile(profile), nil
}

func (s *CachedProfileStore) Update(ctx context.Context, in core.UpdateProfileInput) (core.UserProfile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	key, err := ProfileCacheKey(in.AuthUserID)
	if err != nil {
		return core.UserProfile{}, err
	}
	updated, err := s.base.Update(ctx, in)
	if err != nil {
		return core.UserProfile{}, err
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return core.UserProfile{}, err
	}
	return updated, nil
}

func cloneProfile(profile core.UserProfile) core.UserProfile {
	if profile.DisplayName != nil {
		name := *profile.DisplayName
		profile.DisplayName = &name
	}
	return profile
}
