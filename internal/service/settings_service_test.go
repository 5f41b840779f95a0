package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/repository"
	"github.com/nartankaplan/MDM-version3/internal/store"
)

func newSettingsEnv(t *testing.T) (*miniredis.Miniredis, SettingsService) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewSettingsService(repository.NewMemorySettingsRepo(), store.NewRedisKV(client), zap.NewNop())
	return mr, svc
}

func TestGetTheme_DefaultsWhenUnset(t *testing.T) {
	_, svc := newSettingsEnv(t)

	theme, err := svc.GetTheme(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "#000000", theme.BackgroundColor)
	assert.Equal(t, "#ffffff", theme.TextColor)
	assert.Equal(t, domain.ThemeModeColor, theme.Mode)
	assert.Empty(t, theme.BackgroundImageURL)
}

func TestGetTheme_FillsCache(t *testing.T) {
	mr, svc := newSettingsEnv(t)

	_, err := svc.GetTheme(context.Background())
	require.NoError(t, err)

	assert.True(t, mr.Exists("mdm:settings:theme"))
}

func TestUpdateTheme_PartialUpdateAndInvalidate(t *testing.T) {
	mr, svc := newSettingsEnv(t)
	ctx := context.Background()

	// 先填缓存
	_, err := svc.GetTheme(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("mdm:settings:theme"))

	bg := "#1a2b3c"
	theme, err := svc.UpdateTheme(ctx, UpdateThemeRequest{BackgroundColor: &bg})
	require.NoError(t, err)

	assert.Equal(t, "#1a2b3c", theme.BackgroundColor)
	// 未给出的字段保持默认
	assert.Equal(t, "#ffffff", theme.TextColor)

	// 更新后重读会带新值
	reread, err := svc.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#1a2b3c", reread.BackgroundColor)
}

func TestUpdateTheme_InvalidMode(t *testing.T) {
	_, svc := newSettingsEnv(t)

	mode := "gradient"
	_, err := svc.UpdateTheme(context.Background(), UpdateThemeRequest{Mode: &mode})

	assert.Error(t, err)
}

func TestUpdateTheme_ImageMode(t *testing.T) {
	_, svc := newSettingsEnv(t)
	ctx := context.Background()

	mode := domain.ThemeModeImage
	url := "/uploads/bg.png"
	theme, err := svc.UpdateTheme(ctx, UpdateThemeRequest{Mode: &mode, BackgroundImageURL: &url})
	require.NoError(t, err)

	assert.Equal(t, domain.ThemeModeImage, theme.Mode)
	assert.Equal(t, "/uploads/bg.png", theme.BackgroundImageURL)
}

func TestGetTheme_ServesFromCacheAfterBackendChange(t *testing.T) {
	// 缓存命中时不回源，TTL 内面板改动对读方不可见
	mr, svc := newSettingsEnv(t)
	ctx := context.Background()

	first, err := svc.GetTheme(ctx)
	require.NoError(t, err)

	mr.Set("mdm:settings:theme", `{"backgroundColor":"#cached","textColor":"#fff","backgroundImageUrl":"","mode":"color"}`)

	cached, err := svc.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#cached", cached.BackgroundColor)
	assert.NotEqual(t, first.BackgroundColor, cached.BackgroundColor)
}
