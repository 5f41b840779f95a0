package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/repository"
)

// adminActionMap 面板动词到命令枚举的映射
var adminActionMap = map[string]string{
	"lock":          domain.CommandActionLock,
	"unlock":        domain.CommandActionUnlock,
	"wipe":          domain.CommandActionWipe,
	"locate":        domain.CommandActionLocate,
	"restart":       domain.CommandActionRestart,
	"alert":         domain.CommandActionAlarm,
	"install_app":   domain.CommandActionInstallApp,
	"uninstall_app": domain.CommandActionUninstallApp,
	"kiosk_on":      domain.CommandActionSetPolicy,
	"kiosk_off":     domain.CommandActionSetPolicy,
}

// Pusher 可选的即时推送通道（MQTT 等），nil 表示纯轮询
type Pusher interface {
	PushConfigUpdated(project, number string)
}

// CommandService 命令账本服务接口（面板侧）
type CommandService interface {
	// IssueCommand 校验动词并入队 PENDING 命令；
	// kiosk_on/kiosk_off 同步翻转设备的 kiosk 状态
	IssueCommand(ctx context.Context, req IssueCommandRequest) (*domain.Command, error)

	GetCommand(ctx context.Context, commandID string) (*domain.Command, error)

	// ListForDevice created_at 倒序的命令历史
	ListForDevice(ctx context.Context, deviceID string) ([]*domain.Command, error)
}

type commandService struct {
	devicesRepo  repository.DevicesRepository
	commandsRepo repository.CommandsRepository
	eventsRepo   repository.EventsRepository
	pusher       Pusher
	logger       *zap.Logger
}

// NewCommandService 创建 CommandService 实例（pusher 可为 nil）
func NewCommandService(
	devicesRepo repository.DevicesRepository,
	commandsRepo repository.CommandsRepository,
	eventsRepo repository.EventsRepository,
	pusher Pusher,
	logger *zap.Logger,
) CommandService {
	return &commandService{
		devicesRepo:  devicesRepo,
		commandsRepo: commandsRepo,
		eventsRepo:   eventsRepo,
		pusher:       pusher,
		logger:       logger,
	}
}

// IssueCommandRequest 下发命令请求
type IssueCommandRequest struct {
	DeviceID   string          // 内部设备ID（路径参数）
	Action     string          // 面板动词（lock/unlock/wipe/locate/restart/alert/install_app/uninstall_app/kiosk_on/kiosk_off）
	Parameters json.RawMessage // 可选的自由参数（ALARM 的 message/scheduleAt 等）
	CreatedBy  string          // 可选的操作者标识
}

// IssueCommand 下发命令
func (s *commandService) IssueCommand(ctx context.Context, req IssueCommandRequest) (*domain.Command, error) {
	// 1. 动词必须在白名单里
	action, ok := adminActionMap[req.Action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, req.Action)
	}

	// 2. 设备必须存在
	device, err := s.devicesRepo.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("IssueCommand lookup failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to look up device")
	}

	// 3. 参数：显式优先，kiosk 动词默认补 kioskEnabled
	parameters := string(req.Parameters)
	if parameters == "" || parameters == "null" {
		if req.Action == "kiosk_on" || req.Action == "kiosk_off" {
			raw, _ := json.Marshal(domain.CommandParameters{KioskEnabled: boolPtr(req.Action == "kiosk_on")})
			parameters = string(raw)
		} else {
			parameters = ""
		}
	}

	cmd := &domain.Command{
		DeviceID:    device.DeviceID,
		Action:      action,
		Status:      domain.CommandStatusPending,
		Description: sql.NullString{String: fmt.Sprintf("%s komutu gönderildi", req.Action), Valid: true},
		Parameters:  nullIfEmpty(parameters),
		CreatedBy:   nullIfEmpty(req.CreatedBy),
	}

	// 4. 入队
	commandID, err := s.commandsRepo.Enqueue(ctx, cmd)
	if err != nil {
		s.logger.Error("IssueCommand enqueue failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to enqueue command")
	}

	// 5. kiosk 动词立即翻转设备状态，不等设备确认
	if req.Action == "kiosk_on" || req.Action == "kiosk_off" {
		enable := req.Action == "kiosk_on"
		if err := s.devicesRepo.UpdateDeviceFields(ctx, device.DeviceID, map[string]any{"kiosk_mode": enable}); err != nil {
			s.logger.Warn("kiosk mode flip failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		} else {
			state := "kapandı"
			if enable {
				state = "açıldı"
			}
			s.appendEvent(ctx, device.DeviceID, domain.EventTypeStatusChange, "Kiosk Modu",
				fmt.Sprintf("Kiosk modu %s", state))
		}
	}

	// 6. 审计 + 可选即时推送
	s.appendEvent(ctx, device.DeviceID, domain.EventTypeCommandIssued, "Command Issued",
		fmt.Sprintf("%s command queued", action))
	if s.pusher != nil {
		s.pusher.PushConfigUpdated(device.Project, device.DeviceNumber)
	}

	result, err := s.commandsRepo.GetCommand(ctx, commandID)
	if err != nil {
		cmd.CommandID = commandID
		return cmd, nil
	}
	return result, nil
}

// GetCommand 查询命令详情
func (s *commandService) GetCommand(ctx context.Context, commandID string) (*domain.Command, error) {
	cmd, err := s.commandsRepo.GetCommand(ctx, commandID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("GetCommand failed", zap.String("command_id", commandID), zap.Error(err))
		return nil, fmt.Errorf("failed to get command")
	}
	return cmd, nil
}

// ListForDevice 命令历史
func (s *commandService) ListForDevice(ctx context.Context, deviceID string) ([]*domain.Command, error) {
	if _, err := s.devicesRepo.GetDevice(ctx, deviceID); err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up device")
	}
	items, err := s.commandsRepo.ListForDevice(ctx, deviceID)
	if err != nil {
		s.logger.Error("ListForDevice failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list commands")
	}
	return items, nil
}

func (s *commandService) appendEvent(ctx context.Context, deviceID, eventType, title, description string) {
	err := s.eventsRepo.Append(ctx, &domain.DeviceEvent{
		DeviceID:    sql.NullString{String: deviceID, Valid: true},
		EventType:   eventType,
		Title:       title,
		Description: sql.NullString{String: description, Valid: true},
		Severity:    "INFO",
	})
	if err != nil {
		s.logger.Warn("append event failed", zap.String("device_id", deviceID), zap.Error(err))
	}
}

func boolPtr(b bool) *bool { return &b }
