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

// ApplicationService 应用目录 + 分配账本服务接口（面板侧）
type ApplicationService interface {
	ListApplications(ctx context.Context) ([]*domain.Application, error)
	GetByPackage(ctx context.Context, packageName string) (*domain.Application, error)

	// RegisterApplication 按 package_name 幂等注册/更新目录条目
	RegisterApplication(ctx context.Context, req RegisterApplicationRequest) (*domain.Application, error)

	// ListForDevice 设备的分配清单（含目录元数据）
	ListForDevice(ctx context.Context, deviceID string) ([]*domain.DeviceApplicationDetail, error)

	// ToggleForDevice 翻转分配的安装状态，并入队对应的安装/卸载命令
	ToggleForDevice(ctx context.Context, req ToggleApplicationRequest) (*ToggleApplicationResponse, error)
}

type applicationService struct {
	devicesRepo  repository.DevicesRepository
	appsRepo     repository.ApplicationsRepository
	commandsRepo repository.CommandsRepository
	eventsRepo   repository.EventsRepository
	pusher       Pusher
	logger       *zap.Logger
}

// NewApplicationService 创建 ApplicationService 实例（pusher 可为 nil）
func NewApplicationService(
	devicesRepo repository.DevicesRepository,
	appsRepo repository.ApplicationsRepository,
	commandsRepo repository.CommandsRepository,
	eventsRepo repository.EventsRepository,
	pusher Pusher,
	logger *zap.Logger,
) ApplicationService {
	return &applicationService{
		devicesRepo:  devicesRepo,
		appsRepo:     appsRepo,
		commandsRepo: commandsRepo,
		eventsRepo:   eventsRepo,
		pusher:       pusher,
		logger:       logger,
	}
}

// ListApplications 应用目录
func (s *applicationService) ListApplications(ctx context.Context) ([]*domain.Application, error) {
	apps, err := s.appsRepo.ListApplications(ctx)
	if err != nil {
		s.logger.Error("ListApplications failed", zap.Error(err))
		return nil, fmt.Errorf("failed to list applications")
	}
	return apps, nil
}

// GetByPackage 按包名查目录
func (s *applicationService) GetByPackage(ctx context.Context, packageName string) (*domain.Application, error) {
	if packageName == "" {
		return nil, fmt.Errorf("%w: package name is required", ErrInvalidArgument)
	}
	app, err := s.appsRepo.GetByPackage(ctx, packageName)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("GetByPackage failed", zap.String("package", packageName), zap.Error(err))
		return nil, fmt.Errorf("failed to get application")
	}
	return app, nil
}

// RegisterApplicationRequest 目录注册/更新请求
type RegisterApplicationRequest struct {
	Name        string `json:"name"`
	PackageName string `json:"packageName"`
	Version     string `json:"version"`
	VersionCode int    `json:"versionCode"`
	DownloadURL string `json:"downloadUrl"`
	IconURL     string `json:"iconUrl"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsSystemApp bool   `json:"isSystemApp"`
	IsRequired  bool   `json:"isRequired"`
}

// RegisterApplication 幂等注册目录条目
func (s *applicationService) RegisterApplication(ctx context.Context, req RegisterApplicationRequest) (*domain.Application, error) {
	// 1. 必填字段
	if req.Name == "" || req.PackageName == "" {
		return nil, fmt.Errorf("%w: name and packageName are required", ErrInvalidArgument)
	}

	// 2. upsert：并发下不会因重复包名报错
	app := &domain.Application{
		Name:        req.Name,
		PackageName: req.PackageName,
		Version:     nullIfEmpty(req.Version),
		DownloadURL: nullIfEmpty(req.DownloadURL),
		IconURL:     nullIfEmpty(req.IconURL),
		Description: nullIfEmpty(req.Description),
		Category:    nullIfEmpty(req.Category),
		IsSystemApp: req.IsSystemApp,
		IsRequired:  req.IsRequired,
	}
	if req.VersionCode > 0 {
		app.VersionCode = sql.NullInt64{Int64: int64(req.VersionCode), Valid: true}
	}
	result, err := s.appsRepo.UpsertByPackage(ctx, app)
	if err != nil {
		s.logger.Error("RegisterApplication failed", zap.String("package", req.PackageName), zap.Error(err))
		return nil, fmt.Errorf("failed to register application")
	}
	return result, nil
}

// ListForDevice 设备分配清单
func (s *applicationService) ListForDevice(ctx context.Context, deviceID string) ([]*domain.DeviceApplicationDetail, error) {
	if _, err := s.devicesRepo.GetDevice(ctx, deviceID); err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up device")
	}
	items, err := s.appsRepo.ListForDevice(ctx, deviceID)
	if err != nil {
		s.logger.Error("ListForDevice failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list device applications")
	}
	return items, nil
}

// ToggleApplicationRequest 安装状态翻转请求
type ToggleApplicationRequest struct {
	DeviceID      string
	ApplicationID string
	IsInstalled   bool
	CreatedBy     string
}

// ToggleApplicationResponse 翻转结果
type ToggleApplicationResponse struct {
	Application *domain.Application
	Assignment  *domain.DeviceApplication
	CommandID   string
}

// ToggleForDevice 翻转安装状态并入队命令
func (s *applicationService) ToggleForDevice(ctx context.Context, req ToggleApplicationRequest) (*ToggleApplicationResponse, error) {
	// 1. 设备和应用都必须存在
	device, err := s.devicesRepo.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up device")
	}
	app, err := s.appsRepo.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up application")
	}

	// 2. upsert 分配行（没有则创建）
	assignment, err := s.appsRepo.SetInstalled(ctx, device.DeviceID, app.ApplicationID, req.IsInstalled)
	if err != nil {
		s.logger.Error("ToggleForDevice set failed",
			zap.String("device_id", device.DeviceID),
			zap.String("application_id", app.ApplicationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to toggle application")
	}

	// 3. 入队安装/卸载命令，设备下一轮同步执行
	action := domain.CommandActionUninstallApp
	verb := "kaldırıldı"
	eventType := domain.EventTypeAppUninstalled
	eventTitle := "Uygulama Kaldırıldı"
	if req.IsInstalled {
		action = domain.CommandActionInstallApp
		verb = "kuruldu"
		eventType = domain.EventTypeAppInstalled
		eventTitle = "Uygulama Kuruldu"
	}
	rawParams, _ := json.Marshal(domain.CommandParameters{
		AppID:       app.ApplicationID,
		PackageName: app.PackageName,
		AppName:     app.Name,
	})
	commandID, err := s.commandsRepo.Enqueue(ctx, &domain.Command{
		DeviceID:    device.DeviceID,
		Action:      action,
		Status:      domain.CommandStatusPending,
		Description: sql.NullString{String: fmt.Sprintf("%s uygulaması %s", app.Name, verb), Valid: true},
		Parameters:  sql.NullString{String: string(rawParams), Valid: true},
		CreatedBy:   nullIfEmpty(req.CreatedBy),
	})
	if err != nil {
		s.logger.Error("ToggleForDevice enqueue failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to enqueue command")
	}

	// 4. 审计（metadata 带上命令关联）
	metadata, _ := json.Marshal(map[string]any{
		"appId":       app.ApplicationID,
		"packageName": app.PackageName,
		"appName":     app.Name,
		"commandId":   commandID,
	})
	if err := s.eventsRepo.Append(ctx, &domain.DeviceEvent{
		DeviceID:    sql.NullString{String: device.DeviceID, Valid: true},
		EventType:   eventType,
		Title:       eventTitle,
		Description: sql.NullString{String: fmt.Sprintf("%s uygulaması cihaza %s", app.Name, verb), Valid: true},
		Severity:    "INFO",
		Metadata:    sql.NullString{String: string(metadata), Valid: true},
	}); err != nil {
		s.logger.Warn("append event failed", zap.String("device_id", device.DeviceID), zap.Error(err))
	}

	// 5. 可选即时推送
	if s.pusher != nil {
		s.pusher.PushConfigUpdated(device.Project, device.DeviceNumber)
	}

	return &ToggleApplicationResponse{
		Application: app,
		Assignment:  assignment,
		CommandID:   commandID,
	}, nil
}
