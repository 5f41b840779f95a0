package repository

import (
	"context"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// ApplicationsRepository 应用目录 + 设备分配 Repository 接口
// 目录按 package_name upsert；分配按 (device_id, application_id) upsert，
// 两者都必须在并发下无 read-then-write 竞争（唯一约束 + ON CONFLICT）。
type ApplicationsRepository interface {
	// 目录
	ListApplications(ctx context.Context) ([]*domain.Application, error)
	GetApplication(ctx context.Context, applicationID string) (*domain.Application, error)
	GetByPackage(ctx context.Context, packageName string) (*domain.Application, error)

	// UpsertByPackage 存在则只更新显式给出的非空字段（绝不把已有值清空），
	// 不存在则插入；返回最终行
	UpsertByPackage(ctx context.Context, app *domain.Application) (*domain.Application, error)

	// 分配
	GetOrCreateAssignment(ctx context.Context, deviceID, applicationID string) (*domain.DeviceApplication, error)

	// SetInstalled upsert 关联行：installed 时 installed_at=now 并从目录快照版本，
	// 否则 installed_at=NULL
	SetInstalled(ctx context.Context, deviceID, applicationID string, installed bool) (*domain.DeviceApplication, error)

	// ListForDevice 关联行 + 目录元数据联查
	ListForDevice(ctx context.Context, deviceID string) ([]*domain.DeviceApplicationDetail, error)

	// CountForDevice 设备当前分配数（注册时判断是否需要种默认应用包）
	CountForDevice(ctx context.Context, deviceID string) (int, error)

	// BulkReconcile 设备上报的安装清单覆盖服务端认知（last report wins）
	BulkReconcile(ctx context.Context, deviceID string, reported []domain.ReportedApp) error
}
