package repository

import (
	"context"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// EventsRepository 设备事件审计 Repository 接口（核心协议只追加）
type EventsRepository interface {
	Append(ctx context.Context, event *domain.DeviceEvent) error
	ListForDevice(ctx context.Context, deviceID string, limit int) ([]*domain.DeviceEvent, error)
}

// SettingsRepository system_settings 键值存储接口（主题等）
type SettingsRepository interface {
	// Get 不存在返回 ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	Upsert(ctx context.Context, key, value, category string, isPublic bool) error
	Delete(ctx context.Context, key string) error
}
