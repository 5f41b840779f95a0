package repository

import (
	"context"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// DevicesRepository 设备Repository接口
// 使用强类型领域模型；动态更新走 map[string]any（只更新给到的字段）。
type DevicesRepository interface {
	// 查询
	ListDevices(ctx context.Context, filters DeviceFilters, page, size int) ([]*domain.Device, int, error)
	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)

	// FindByAnyKey 按 IMEI → 外部 deviceId → 内部 device_id 的优先级逐个尝试，
	// 命中即返回（三个键类型和可信度不同，保持显式顺序而不是一条复合查询）
	FindByAnyKey(ctx context.Context, number string) (*domain.Device, error)
	FindByIMEI(ctx context.Context, imei string) (*domain.Device, error)

	// 创建（首次注册或面板手工预建）
	CreateDevice(ctx context.Context, device *domain.Device) (string, error)

	// 更新（只更新 fields 中出现的列；调用方负责 truthy-merge 策略）
	UpdateDeviceFields(ctx context.Context, deviceID string, fields map[string]any) error

	// RecordHeartbeat 轻量心跳：电量/位置/ONLINE/last_seen
	RecordHeartbeat(ctx context.Context, deviceID string, battery *int, location *string) error

	// TouchLastSeen 命令完成回报隐含设备在线
	TouchLastSeen(ctx context.Context, deviceID string) error

	// DeleteDeviceCascade 事务内级联删除 commands/assignments/events + 设备行
	DeleteDeviceCascade(ctx context.Context, deviceID string) error
}

// DeviceFilters 设备查询过滤器
type DeviceFilters struct {
	Status        []string // 设备状态过滤（ONLINE, OFFLINE, WARNING）
	IsEnrolled    *bool    // 注册状态过滤
	SearchKeyword string   // 名称/IMEI/序列号模糊搜索
}
