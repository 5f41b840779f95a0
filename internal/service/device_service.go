package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/repository"
)

// adminDefaultAssignments 面板手工建档时预置的应用分配
// isInstalled=false 的条目只建立分配关系，设备端显示为可安装。
var adminDefaultAssignments = []struct {
	Pkg       string
	Installed bool
}{
	{"com.whatsapp", true},
	{"org.telegram.messenger", true},
	{"com.google.android.apps.maps", true},
	{"com.waze", false},
	{"com.netflix.mediaclient", false},
	{"com.spotify.music", false},
	{"com.twitter.android", false},
	{"com.microsoft.teams", true},
	{"com.facebook.katana", false},
	{"com.linkedin.android", true},
	{"org.mozilla.firefox", false},
	{"com.google.android.keep", true},
	{"com.zhiliaoapp.musically", false},
	{"com.google.android.apps.messaging", true},
	{"com.discord", false},
	{"com.Slack", false},
	{"com.android.chrome", true},
	{"com.google.android.youtube", false},
	{"com.microsoft.office.officehubrow", true},
	{"com.snapchat.android", false},
	{"com.instagram.android", false},
	{"tv.twitch.android.app", false},
	{"com.microsoft.emmx", false},
	{"us.zoom.videomeetings", true},
	{"com.google.android.gm", true},
}

// DeviceService 设备登记簿服务接口（面板侧 CRUD）
type DeviceService interface {
	ListDevices(ctx context.Context, req ListDevicesRequest) (*ListDevicesResponse, error)
	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)

	// CreateDevice 面板手工预建；IMEI 冲突返回 repository.ErrConflict
	CreateDevice(ctx context.Context, req CreateDeviceRequest) (*domain.Device, error)

	// UpdateDevice 只更新请求里非空的字段
	UpdateDevice(ctx context.Context, deviceID string, req UpdateDeviceRequest) (*domain.Device, error)

	// DeleteDevice 级联删除命令/分配/事件后删除设备行
	DeleteDevice(ctx context.Context, deviceID string) (*domain.Device, error)

	// ListEvents 设备事件审计日志，时间倒序
	ListEvents(ctx context.Context, deviceID string, limit int) ([]*domain.DeviceEvent, error)
}

type deviceService struct {
	devicesRepo repository.DevicesRepository
	appsRepo    repository.ApplicationsRepository
	eventsRepo  repository.EventsRepository
	logger      *zap.Logger
}

// NewDeviceService 创建 DeviceService 实例
func NewDeviceService(
	devicesRepo repository.DevicesRepository,
	appsRepo repository.ApplicationsRepository,
	eventsRepo repository.EventsRepository,
	logger *zap.Logger,
) DeviceService {
	return &deviceService{
		devicesRepo: devicesRepo,
		appsRepo:    appsRepo,
		eventsRepo:  eventsRepo,
		logger:      logger,
	}
}

// ListDevicesRequest 查询设备列表请求
type ListDevicesRequest struct {
	Status        []string // 可选：设备状态过滤（ONLINE, OFFLINE, WARNING）
	IsEnrolled    *bool    // 可选：注册状态过滤
	SearchKeyword string   // 可选：名称/IMEI/序列号模糊搜索
	Page          int      // 可选，默认 1
	Size          int      // 可选，默认 20
}

// ListDevicesResponse 查询设备列表响应
type ListDevicesResponse struct {
	Items []*domain.Device
	Total int
}

// ListDevices 查询设备列表
func (s *deviceService) ListDevices(ctx context.Context, req ListDevicesRequest) (*ListDevicesResponse, error) {
	// 1. 处理 status 参数（支持逗号分隔）
	statuses := req.Status
	if len(statuses) == 1 && strings.Contains(statuses[0], ",") {
		statuses = strings.Split(statuses[0], ",")
		for i := range statuses {
			statuses[i] = strings.TrimSpace(statuses[i])
		}
	}

	// 2. 分页参数
	page := req.Page
	if page <= 0 {
		page = 1
	}
	size := req.Size
	if size <= 0 {
		size = 20
	}

	// 3. 调用 Repository
	items, total, err := s.devicesRepo.ListDevices(ctx, repository.DeviceFilters{
		Status:        statuses,
		IsEnrolled:    req.IsEnrolled,
		SearchKeyword: strings.TrimSpace(req.SearchKeyword),
	}, page, size)
	if err != nil {
		s.logger.Error("ListDevices failed", zap.Error(err))
		return nil, fmt.Errorf("failed to list devices")
	}

	return &ListDevicesResponse{Items: items, Total: total}, nil
}

// GetDevice 查询设备详情
func (s *deviceService) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	device, err := s.devicesRepo.GetDevice(ctx, deviceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("GetDevice failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get device")
	}
	return device, nil
}

// CreateDeviceRequest 手工建档请求
type CreateDeviceRequest struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	Brand        string `json:"brand"`
	OSVersion    string `json:"osVersion"`
	IMEI         string `json:"imei"`
	PhoneNumber  string `json:"phoneNumber"`
	MACAddress   string `json:"macAddress"`
	SerialNumber string `json:"serialNumber"`
	Project      string `json:"project"`
}

// CreateDevice 手工建档
func (s *deviceService) CreateDevice(ctx context.Context, req CreateDeviceRequest) (*domain.Device, error) {
	// 1. 必填字段
	if req.Name == "" || req.Model == "" || req.OSVersion == "" || req.IMEI == "" {
		return nil, fmt.Errorf("%w: name, model, osVersion and imei are required", ErrInvalidArgument)
	}

	// 2. IMEI 唯一性预检（约束兜底并发竞争）
	if _, err := s.devicesRepo.FindByIMEI(ctx, req.IMEI); err == nil {
		return nil, repository.ErrConflict
	} else if err != repository.ErrNotFound {
		s.logger.Error("CreateDevice imei check failed", zap.String("imei", req.IMEI), zap.Error(err))
		return nil, fmt.Errorf("failed to check imei")
	}

	// 3. 建档：OFFLINE、未注册；注册键用 IMEI，launcher 首次同步时按 IMEI 命中
	device := &domain.Device{
		DeviceNumber: req.IMEI,
		Project:      req.Project,
		Name:         req.Name,
		Model:        sql.NullString{String: req.Model, Valid: true},
		Brand:        nullIfEmpty(req.Brand),
		OSVersion:    sql.NullString{String: req.OSVersion, Valid: true},
		IMEI:         sql.NullString{String: req.IMEI, Valid: true},
		PhoneNumber:  nullIfEmpty(req.PhoneNumber),
		MACAddress:   nullIfEmpty(req.MACAddress),
		SerialNumber: nullIfEmpty(req.SerialNumber),
		Status:       domain.DeviceStatusOffline,
		IsEnrolled:   false,
	}
	deviceID, err := s.devicesRepo.CreateDevice(ctx, device)
	if err != nil {
		if err == repository.ErrConflict {
			return nil, err
		}
		s.logger.Error("CreateDevice failed", zap.String("imei", req.IMEI), zap.Error(err))
		return nil, fmt.Errorf("failed to create device")
	}
	device.DeviceID = deviceID

	// 4. 预置分配（失败不阻塞建档）
	s.seedAdminAssignments(ctx, deviceID)

	// 5. 审计
	s.appendEvent(ctx, deviceID, domain.EventTypeStatusChange, "Cihaz Oluşturuldu",
		fmt.Sprintf("Yeni cihaz %q oluşturuldu", req.Name))

	created, err := s.devicesRepo.GetDevice(ctx, deviceID)
	if err != nil {
		return device, nil
	}
	return created, nil
}

// seedAdminAssignments 按包名从目录挑应用建立分配关系
func (s *deviceService) seedAdminAssignments(ctx context.Context, deviceID string) {
	for _, cfg := range adminDefaultAssignments {
		app, err := s.appsRepo.GetByPackage(ctx, cfg.Pkg)
		if err != nil {
			continue // 目录里没有就跳过
		}
		if _, err := s.appsRepo.SetInstalled(ctx, deviceID, app.ApplicationID, cfg.Installed); err != nil {
			s.logger.Warn("seed assignment failed",
				zap.String("device_id", deviceID),
				zap.String("package", cfg.Pkg),
				zap.Error(err),
			)
		}
	}
}

// UpdateDeviceRequest 设备更新请求（空字段不改动）
type UpdateDeviceRequest struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	Brand        string `json:"brand"`
	OSVersion    string `json:"osVersion"`
	IMEI         string `json:"imei"`
	PhoneNumber  string `json:"phoneNumber"`
	MACAddress   string `json:"macAddress"`
	SerialNumber string `json:"serialNumber"`
	Status       string `json:"status"`
}

// UpdateDevice 更新设备
func (s *deviceService) UpdateDevice(ctx context.Context, deviceID string, req UpdateDeviceRequest) (*domain.Device, error) {
	// 1. 设备必须存在
	device, err := s.devicesRepo.GetDevice(ctx, deviceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up device")
	}

	// 2. 换 IMEI 要重新查重
	if req.IMEI != "" && (!device.IMEI.Valid || device.IMEI.String != req.IMEI) {
		if existing, findErr := s.devicesRepo.FindByIMEI(ctx, req.IMEI); findErr == nil && existing.DeviceID != deviceID {
			return nil, repository.ErrConflict
		}
	}
	if req.Status != "" && req.Status != domain.DeviceStatusOnline &&
		req.Status != domain.DeviceStatusOffline && req.Status != domain.DeviceStatusWarning {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, req.Status)
	}

	// 3. 只带非空字段
	fields := map[string]any{}
	putIfNotEmpty(fields, "name", req.Name)
	putIfNotEmpty(fields, "model", req.Model)
	putIfNotEmpty(fields, "brand", req.Brand)
	putIfNotEmpty(fields, "os_version", req.OSVersion)
	putIfNotEmpty(fields, "imei", req.IMEI)
	putIfNotEmpty(fields, "phone_number", req.PhoneNumber)
	putIfNotEmpty(fields, "mac_address", req.MACAddress)
	putIfNotEmpty(fields, "serial_number", req.SerialNumber)
	putIfNotEmpty(fields, "status", req.Status)
	if len(fields) == 0 {
		return device, nil
	}

	if err := s.devicesRepo.UpdateDeviceFields(ctx, deviceID, fields); err != nil {
		if err == repository.ErrConflict {
			return nil, err
		}
		s.logger.Error("UpdateDevice failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to update device")
	}

	updated, err := s.devicesRepo.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload device")
	}
	return updated, nil
}

// DeleteDevice 级联删除设备
func (s *deviceService) DeleteDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	// 1. 先取设备信息用于响应
	device, err := s.devicesRepo.GetDevice(ctx, deviceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up device")
	}

	// 2. 事务级联删除
	if err := s.devicesRepo.DeleteDeviceCascade(ctx, deviceID); err != nil {
		s.logger.Error("DeleteDevice failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to delete device")
	}

	s.logger.Info("device deleted",
		zap.String("device_id", deviceID),
		zap.String("name", device.Name),
	)
	return device, nil
}

// ListEvents 设备事件日志
func (s *deviceService) ListEvents(ctx context.Context, deviceID string, limit int) ([]*domain.DeviceEvent, error) {
	if _, err := s.devicesRepo.GetDevice(ctx, deviceID); err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up device")
	}
	events, err := s.eventsRepo.ListForDevice(ctx, deviceID, limit)
	if err != nil {
		s.logger.Error("ListEvents failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list events")
	}
	return events, nil
}

func (s *deviceService) appendEvent(ctx context.Context, deviceID, eventType, title, description string) {
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
