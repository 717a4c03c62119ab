package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
)

// Settings keys. The migration seeds defaults for all of them, but reads
// still fall back sensibly when a key is missing.
const (
	settingSiteName          = "site_name"
	settingSiteURL           = "site_url"
	settingFallbackProfile   = "fallback_profile"
	settingFallbackHasJoined = "fallback_hasjoined"
	settingFallbackStrategy  = "fallback_strategy"
	settingWhitelistEnabled  = "whitelist_enabled"
	settingMaxTextureSize    = "max_texture_size"
)

// SettingsService reads runtime feature flags from the settings store.
type SettingsService struct {
	Store store.Store
}

func NewSettingsService(st store.Store) *SettingsService {
	return &SettingsService{Store: st}
}

func (s *SettingsService) getString(ctx context.Context, key, def string) (string, error) {
	v, err := s.Store.Settings().Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return def, nil
		}
		return def, err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (s *SettingsService) getBool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.Store.Settings().Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return def, nil
		}
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, nil
	}
	return b, nil
}

// SiteName returns the advertised server name, preferring the stored value
// over the supplied configuration default.
func (s *SettingsService) SiteName(ctx context.Context, def string) (string, error) {
	return s.getString(ctx, settingSiteName, def)
}

// SiteURL returns the advertised homepage link, preferring the stored value
// over the supplied configuration default.
func (s *SettingsService) SiteURL(ctx context.Context, def string) (string, error) {
	return s.getString(ctx, settingSiteURL, def)
}

// FallbackProfileEnabled gates remote profile and name lookups.
func (s *SettingsService) FallbackProfileEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, settingFallbackProfile, true)
}

// FallbackHasJoinedEnabled gates remote hasJoined checks.
func (s *SettingsService) FallbackHasJoinedEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, settingFallbackHasJoined, true)
}

func (s *SettingsService) WhitelistEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, settingWhitelistEnabled, false)
}

func (s *SettingsService) FallbackStrategy(ctx context.Context) (domain.FallbackStrategy, error) {
	v, err := s.Store.Settings().Get(ctx, settingFallbackStrategy)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.StrategySerial, nil
		}
		return domain.StrategySerial, err
	}
	if domain.FallbackStrategy(v) == domain.StrategyParallel {
		return domain.StrategyParallel, nil
	}
	return domain.StrategySerial, nil
}

// MaxTextureSize returns the texture upload cap in bytes. The stored value
// is bytes, not kilobytes.
func (s *SettingsService) MaxTextureSize(ctx context.Context) (int64, error) {
	const def = int64(1 << 20)
	v, err := s.Store.Settings().Get(ctx, settingMaxTextureSize)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return def, nil
		}
		return def, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def, nil
	}
	return n, nil
}
