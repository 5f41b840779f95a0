package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/repository"
	"github.com/nartankaplan/MDM-version3/internal/store"
)

// 主题缓存
const (
	themeCacheKey = "mdm:settings:theme"
	themeCacheTTL = 5 * time.Minute
)

// SettingsService 面板设置服务接口（主题等 system_settings 键值）
type SettingsService interface {
	// GetTheme 读主题；未配置的键回落默认值，读穿 Redis 缓存
	GetTheme(ctx context.Context) (domain.ThemeSettings, error)

	// UpdateTheme 只写入显式给出的字段，写后失效缓存
	UpdateTheme(ctx context.Context, req UpdateThemeRequest) (domain.ThemeSettings, error)
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	kv           store.KV
	logger       *zap.Logger
}

// NewSettingsService 创建 SettingsService 实例
func NewSettingsService(settingsRepo repository.SettingsRepository, kv store.KV, logger *zap.Logger) SettingsService {
	return &settingsService{
		settingsRepo: settingsRepo,
		kv:           kv,
		logger:       logger,
	}
}

// UpdateThemeRequest 更新主题请求（nil 字段不改动）
type UpdateThemeRequest struct {
	BackgroundColor    *string `json:"backgroundColor"`
	TextColor          *string `json:"textColor"`
	BackgroundImageURL *string `json:"backgroundImageUrl"`
	Mode               *string `json:"mode"`
}

// GetTheme 读主题设置
func (s *settingsService) GetTheme(ctx context.Context) (domain.ThemeSettings, error) {
	// 1. 先查缓存
	if cached, err := s.kv.Get(ctx, themeCacheKey); err == nil {
		var t domain.ThemeSettings
		if jsonErr := json.Unmarshal([]byte(cached), &t); jsonErr == nil {
			return t, nil
		}
	}

	// 2. 逐键读库，缺失的键用默认值
	theme := domain.DefaultThemeSettings()
	if v, err := s.settingsRepo.Get(ctx, domain.SettingThemeBackgroundColor); err == nil && v != "" {
		theme.BackgroundColor = v
	}
	if v, err := s.settingsRepo.Get(ctx, domain.SettingThemeTextColor); err == nil && v != "" {
		theme.TextColor = v
	}
	if v, err := s.settingsRepo.Get(ctx, domain.SettingThemeBackgroundImage); err == nil {
		theme.BackgroundImageURL = v
	}
	if v, err := s.settingsRepo.Get(ctx, domain.SettingThemeBackgroundMode); err == nil && v != "" {
		theme.Mode = v
	}

	// 3. 回填缓存（失败只记日志）
	if raw, err := json.Marshal(theme); err == nil {
		if err := s.kv.Set(ctx, themeCacheKey, string(raw), themeCacheTTL); err != nil {
			s.logger.Warn("theme cache set failed", zap.Error(err))
		}
	}
	return theme, nil
}

// UpdateTheme 更新主题设置
func (s *settingsService) UpdateTheme(ctx context.Context, req UpdateThemeRequest) (domain.ThemeSettings, error) {
	// 1. 参数验证
	if req.Mode != nil && *req.Mode != domain.ThemeModeColor && *req.Mode != domain.ThemeModeImage {
		return domain.ThemeSettings{}, fmt.Errorf("invalid theme mode: %s", *req.Mode)
	}

	// 2. 只 upsert 给出的键
	pairs := []struct {
		key string
		val *string
	}{
		{domain.SettingThemeBackgroundColor, req.BackgroundColor},
		{domain.SettingThemeTextColor, req.TextColor},
		{domain.SettingThemeBackgroundImage, req.BackgroundImageURL},
		{domain.SettingThemeBackgroundMode, req.Mode},
	}
	for _, p := range pairs {
		if p.val == nil {
			continue
		}
		if err := s.settingsRepo.Upsert(ctx, p.key, *p.val, "theme", true); err != nil {
			s.logger.Error("UpdateTheme failed", zap.String("key", p.key), zap.Error(err))
			return domain.ThemeSettings{}, fmt.Errorf("failed to update theme")
		}
	}

	// 3. 失效缓存后重读
	if err := s.kv.Del(ctx, themeCacheKey); err != nil {
		s.logger.Warn("theme cache invalidate failed", zap.Error(err))
	}
	return s.GetTheme(ctx)
}
