package repository

import (
	"context"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// CommandsRepository 命令账本 Repository 接口
// 状态转移必须是单行 compare-and-swap（WHERE status='PENDING'），
// 终态命令除审计字段外不可变。
type CommandsRepository interface {
	// Enqueue 插入 PENDING 命令，返回命令ID
	Enqueue(ctx context.Context, cmd *domain.Command) (string, error)

	GetCommand(ctx context.Context, commandID string) (*domain.Command, error)

	// ListForDevice 面板侧历史，created_at 倒序
	ListForDevice(ctx context.Context, deviceID string) ([]*domain.Command, error)

	// ListPending FIFO 投递顺序，created_at 升序
	ListPending(ctx context.Context, deviceID string) ([]*domain.Command, error)

	// Complete PENDING→COMPLETED/FAILED；已终态返回 ErrInvalidState，
	// 不存在返回 ErrNotFound。返回更新后的命令行。
	Complete(ctx context.Context, commandID string, success bool, result, errorMessage string) (*domain.Command, error)

	// CompleteDelivered ALARM 专用：随轮询响应下发即视为送达，
	// executed_at/completed_at 同时落点，result 记 {"delivered":true}
	CompleteDelivered(ctx context.Context, commandID string) error
}
