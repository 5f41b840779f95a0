package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/protocol"
	"github.com/nartankaplan/MDM-version3/internal/repository"
)

// defaultBundleNames 新注册设备自动分配的应用（按目录里的应用名匹配）
var defaultBundleNames = []string{
	"Gmail", "Google Maps", "Chrome", "WhatsApp",
	"Facebook", "Not Defteri", "Instagram", "TikTok",
}

// coreSystemApps 每次配置合成都保证在清单里的系统应用
var coreSystemApps = []struct {
	Name    string
	Pkg     string
	Version string
}{
	{"Telefon", "com.android.dialer", "1.0"},
	{"Mesajlar", "com.android.mms", "1.0"},
	{"Kamera", "com.android.camera2", "1.0"},
	{"Galeri", "com.android.gallery3d", "1.0"},
}

// SyncService launcher 同步协议服务接口
// 设备侧四个操作：注册/刷新 + 配置合成、上报、轮询通知、命令回执。
type SyncService interface {
	// EnrollOrRefresh 幂等注册：未知设备建档并种默认应用包，
	// 已知设备 truthy-merge 上报字段并刷新在线状态
	EnrollOrRefresh(ctx context.Context, req EnrollRequest) (*domain.Device, error)

	// BuildConfiguration 为已知设备合成配置负载；设备未知返回 repository.ErrNotFound
	BuildConfiguration(ctx context.Context, number, baseURL string) (*protocol.ConfigPayload, error)

	// ReportInfo 设备心跳+安装清单上报；设备未知静默成功
	ReportInfo(ctx context.Context, req InfoReport) error

	// PollNotifications 取待投递消息；ALARM 随响应置为已完成
	PollNotifications(ctx context.Context, number string) ([]protocol.PushMessage, error)

	// CompleteCommand 设备回执命令结果，PENDING 单次转为终态
	CompleteCommand(ctx context.Context, req CompleteCommandRequest) error
}

type syncService struct {
	devicesRepo  repository.DevicesRepository
	appsRepo     repository.ApplicationsRepository
	commandsRepo repository.CommandsRepository
	eventsRepo   repository.EventsRepository
	settings     SettingsService
	keepalive    int
	logger       *zap.Logger
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(
	devicesRepo repository.DevicesRepository,
	appsRepo repository.ApplicationsRepository,
	commandsRepo repository.CommandsRepository,
	eventsRepo repository.EventsRepository,
	settings SettingsService,
	keepalive int,
	logger *zap.Logger,
) SyncService {
	if keepalive <= 0 {
		keepalive = 30
	}
	return &syncService{
		devicesRepo:  devicesRepo,
		appsRepo:     appsRepo,
		commandsRepo: commandsRepo,
		eventsRepo:   eventsRepo,
		settings:     settings,
		keepalive:    keepalive,
		logger:       logger,
	}
}

// DeviceInfo launcher 上报的设备信息（POST configuration / info 的 body）
type DeviceInfo struct {
	Model           string `json:"model"`
	Brand           string `json:"brand"`
	AndroidVersion  string `json:"androidVersion"`
	Phone           string `json:"phone"`
	IMEI            string `json:"imei"`
	Serial          string `json:"serial"`
	CPU             string `json:"cpu"`
	ICCID           string `json:"iccid"`
	IMSI            string `json:"imsi"`
	Phone2          string `json:"phone2"`
	IMEI2           string `json:"imei2"`
	ICCID2          string `json:"iccid2"`
	IMSI2           string `json:"imsi2"`
	BatteryLevel    *int   `json:"batteryLevel"`
	MDMMode         *bool  `json:"mdmMode"`
	KioskMode       *bool  `json:"kioskMode"`
	LauncherType    string `json:"launcherType"`
	LauncherPackage string `json:"launcherPackage"`
	DefaultLauncher *bool  `json:"defaultLauncher"`
	Custom1         string `json:"custom1"`
	Custom2         string `json:"custom2"`
	Custom3         string `json:"custom3"`
}

// EnrollRequest 注册/刷新请求
type EnrollRequest struct {
	Project string
	Number  string // 路径里的设备号（IMEI 或外部 deviceId）
	Info    DeviceInfo
}

// InfoReport 设备上报（POST sync/info 的 body）
type InfoReport struct {
	DeviceID     string               `json:"deviceId"`
	BatteryLevel *int                 `json:"batteryLevel"`
	Location     *ReportedLocation    `json:"location"`
	Applications []domain.ReportedApp `json:"applications"`
}

// ReportedLocation 上报坐标
type ReportedLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CompleteCommandRequest 命令回执
type CompleteCommandRequest struct {
	CommandID string
	Status    string // "success" 之外一律视为失败
	Result    string
	Error     string
}

// EnrollOrRefresh 注册或刷新设备
func (s *syncService) EnrollOrRefresh(ctx context.Context, req EnrollRequest) (*domain.Device, error) {
	// 1. 参数验证
	if req.Number == "" {
		return nil, fmt.Errorf("device number is required")
	}

	// 2. 三键查找
	device, err := s.devicesRepo.FindByAnyKey(ctx, req.Number)
	if err != nil && err != repository.ErrNotFound {
		s.logger.Error("EnrollOrRefresh lookup failed", zap.String("number", req.Number), zap.Error(err))
		return nil, fmt.Errorf("failed to look up device")
	}

	now := time.Now()
	if device == nil {
		// 3a. 首次注册，建档
		device = s.newDeviceFromInfo(req, now)
		deviceID, createErr := s.devicesRepo.CreateDevice(ctx, device)
		if createErr != nil {
			s.logger.Error("EnrollOrRefresh create failed", zap.String("number", req.Number), zap.Error(createErr))
			return nil, fmt.Errorf("failed to create device")
		}
		device.DeviceID = deviceID
		s.logger.Info("device enrolled",
			zap.String("device_id", deviceID),
			zap.String("number", req.Number),
			zap.String("project", req.Project),
		)

		s.seedDefaultBundle(ctx, deviceID)
		s.appendEvent(ctx, deviceID, domain.EventTypeEnrollment, "Device Enrolled",
			fmt.Sprintf("Device %s enrolled in project %s", req.Number, req.Project))
		return device, nil
	}

	// 3b. 已知设备：没有任何分配时补种默认应用包
	if count, countErr := s.appsRepo.CountForDevice(ctx, device.DeviceID); countErr == nil && count == 0 {
		s.seedDefaultBundle(ctx, device.DeviceID)
	}

	// 4. truthy-merge：只带上报里非空的字段，绝不清空已有值
	fields := map[string]any{
		"device_number":   req.Number,
		"status":          domain.DeviceStatusOnline,
		"last_seen":       now,
		"is_enrolled":     true,
		"enrollment_date": now,
	}
	info := req.Info
	putIfNotEmpty(fields, "model", info.Model)
	putIfNotEmpty(fields, "os_version", info.AndroidVersion)
	putIfNotEmpty(fields, "phone_number", info.Phone)
	putIfNotEmpty(fields, "serial_number", info.Serial)
	putIfNotEmpty(fields, "cpu", info.CPU)
	putIfNotEmpty(fields, "iccid", info.ICCID)
	putIfNotEmpty(fields, "imsi", info.IMSI)
	putIfNotEmpty(fields, "phone2", info.Phone2)
	putIfNotEmpty(fields, "imei2", info.IMEI2)
	putIfNotEmpty(fields, "iccid2", info.ICCID2)
	putIfNotEmpty(fields, "imsi2", info.IMSI2)
	putIfNotEmpty(fields, "launcher_type", info.LauncherType)
	putIfNotEmpty(fields, "launcher_package", info.LauncherPackage)
	putIfNotEmpty(fields, "custom1", info.Custom1)
	putIfNotEmpty(fields, "custom2", info.Custom2)
	putIfNotEmpty(fields, "custom3", info.Custom3)
	if info.BatteryLevel != nil {
		fields["battery"] = *info.BatteryLevel
	}
	if info.MDMMode != nil {
		fields["mdm_mode"] = *info.MDMMode
	}
	if info.KioskMode != nil {
		fields["kiosk_mode"] = *info.KioskMode
	}
	if info.DefaultLauncher != nil {
		fields["default_launcher"] = *info.DefaultLauncher
	}

	if err := s.devicesRepo.UpdateDeviceFields(ctx, device.DeviceID, fields); err != nil {
		s.logger.Error("EnrollOrRefresh update failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to update device")
	}

	// 5. 重读最终状态
	updated, err := s.devicesRepo.GetDevice(ctx, device.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload device")
	}
	return updated, nil
}

// newDeviceFromInfo 首次注册的设备档案
func (s *syncService) newDeviceFromInfo(req EnrollRequest, now time.Time) *domain.Device {
	info := req.Info
	name := info.Model
	if name == "" {
		name = "Device-" + req.Number
	}
	d := &domain.Device{
		DeviceNumber:   req.Number,
		Project:        req.Project,
		Name:           name,
		Model:          nullIfEmpty(orDefault(info.Model, "Unknown")),
		Brand:          nullIfEmpty(orDefault(info.Brand, "Unknown")),
		OSVersion:      nullIfEmpty(orDefault(info.AndroidVersion, "Unknown")),
		IMEI:           sql.NullString{String: req.Number, Valid: true},
		PhoneNumber:    nullIfEmpty(info.Phone),
		SerialNumber:   nullIfEmpty(info.Serial),
		Status:         domain.DeviceStatusOnline,
		LastSeen:       sql.NullTime{Time: now, Valid: true},
		IsEnrolled:     true,
		EnrollmentDate: sql.NullTime{Time: now, Valid: true},
		CPU:            nullIfEmpty(info.CPU),
		ICCID:          nullIfEmpty(info.ICCID),
		IMSI:           nullIfEmpty(info.IMSI),
		Phone2:         nullIfEmpty(info.Phone2),
		IMEI2:          nullIfEmpty(info.IMEI2),
		ICCID2:         nullIfEmpty(info.ICCID2),
		IMSI2:          nullIfEmpty(info.IMSI2),
		LauncherType:   nullIfEmpty(info.LauncherType),
		LauncherPackage: nullIfEmpty(info.LauncherPackage),
		Custom1:        nullIfEmpty(info.Custom1),
		Custom2:        nullIfEmpty(info.Custom2),
		Custom3:        nullIfEmpty(info.Custom3),
	}
	if info.BatteryLevel != nil {
		d.Battery = sql.NullInt64{Int64: int64(*info.BatteryLevel), Valid: true}
	}
	if info.MDMMode != nil {
		d.MDMMode = *info.MDMMode
	}
	if info.KioskMode != nil {
		d.KioskMode = *info.KioskMode
	}
	if info.DefaultLauncher != nil {
		d.DefaultLauncher = *info.DefaultLauncher
	}
	return d
}

// seedDefaultBundle 按应用名从目录挑默认包并标记已安装
// 目录里没有的名称跳过；失败只记日志，不阻塞注册。
func (s *syncService) seedDefaultBundle(ctx context.Context, deviceID string) {
	apps, err := s.appsRepo.ListApplications(ctx)
	if err != nil {
		s.logger.Warn("seed default bundle: list catalog failed", zap.Error(err))
		return
	}
	wanted := make(map[string]bool, len(defaultBundleNames))
	for _, n := range defaultBundleNames {
		wanted[n] = true
	}
	seeded := 0
	for _, app := range apps {
		if !wanted[app.Name] {
			continue
		}
		if _, err := s.appsRepo.SetInstalled(ctx, deviceID, app.ApplicationID, true); err != nil {
			s.logger.Warn("seed default bundle: assign failed",
				zap.String("device_id", deviceID),
				zap.String("package", app.PackageName),
				zap.Error(err),
			)
			continue
		}
		seeded++
	}
	if seeded > 0 {
		s.logger.Info("default app bundle seeded", zap.String("device_id", deviceID), zap.Int("count", seeded))
	}
}

// BuildConfiguration 合成配置负载
func (s *syncService) BuildConfiguration(ctx context.Context, number, baseURL string) (*protocol.ConfigPayload, error) {
	// 1. 设备必须已知
	device, err := s.devicesRepo.FindByAnyKey(ctx, number)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("BuildConfiguration lookup failed", zap.String("number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to look up device")
	}

	// 2. 保证核心系统应用在清单里
	s.ensureCoreApps(ctx, device.DeviceID)

	// 3. 应用分配清单
	assignments, err := s.appsRepo.ListForDevice(ctx, device.DeviceID)
	if err != nil {
		s.logger.Error("BuildConfiguration list apps failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list device applications")
	}

	// 4. 主题
	theme, err := s.settings.GetTheme(ctx)
	if err != nil {
		theme = domain.DefaultThemeSettings()
	}

	// 5. 纯函数合成
	return protocol.Synthesize(protocol.SynthesizeInput{
		Device:        device,
		Number:        number,
		Assignments:   assignments,
		Theme:         theme,
		BaseURL:       baseURL,
		KeepaliveTime: s.keepalive,
	}), nil
}

// ensureCoreApps 系统应用目录 upsert + 分配 upsert，幂等
func (s *syncService) ensureCoreApps(ctx context.Context, deviceID string) {
	for _, sys := range coreSystemApps {
		app, err := s.appsRepo.UpsertByPackage(ctx, &domain.Application{
			Name:        sys.Name,
			PackageName: sys.Pkg,
			Version:     sql.NullString{String: sys.Version, Valid: true},
			IsSystemApp: true,
		})
		if err != nil {
			s.logger.Warn("ensure core app failed", zap.String("package", sys.Pkg), zap.Error(err))
			continue
		}
		if _, err := s.appsRepo.SetInstalled(ctx, deviceID, app.ApplicationID, true); err != nil {
			s.logger.Warn("ensure core app assignment failed", zap.String("package", sys.Pkg), zap.Error(err))
		}
	}
}

// ReportInfo 处理设备上报
func (s *syncService) ReportInfo(ctx context.Context, req InfoReport) error {
	if req.DeviceID == "" {
		return nil
	}

	// 1. 未知设备静默成功，launcher 不重试也不报错
	device, err := s.devicesRepo.FindByAnyKey(ctx, req.DeviceID)
	if err != nil {
		if err == repository.ErrNotFound {
			s.logger.Debug("info report from unknown device", zap.String("number", req.DeviceID))
			return nil
		}
		s.logger.Error("ReportInfo lookup failed", zap.String("number", req.DeviceID), zap.Error(err))
		return fmt.Errorf("failed to look up device")
	}

	// 2. 心跳：电量/位置/ONLINE/last_seen
	var location *string
	if req.Location != nil {
		loc := fmt.Sprintf("%v,%v", req.Location.Lat, req.Location.Lon)
		location = &loc
	}
	if err := s.devicesRepo.RecordHeartbeat(ctx, device.DeviceID, req.BatteryLevel, location); err != nil {
		s.logger.Error("ReportInfo heartbeat failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		return fmt.Errorf("failed to record heartbeat")
	}

	// 3. 安装清单对账
	if len(req.Applications) > 0 {
		if err := s.appsRepo.BulkReconcile(ctx, device.DeviceID, req.Applications); err != nil {
			s.logger.Error("ReportInfo reconcile failed", zap.String("device_id", device.DeviceID), zap.Error(err))
			return fmt.Errorf("failed to reconcile applications")
		}
	}

	// 4. 审计事件
	battery := "n/a"
	if req.BatteryLevel != nil {
		battery = fmt.Sprintf("%d%%", *req.BatteryLevel)
	}
	locState := "Not available"
	if req.Location != nil {
		locState = "Available"
	}
	s.appendEvent(ctx, device.DeviceID, domain.EventTypeStatusChange, "Device Status Update",
		fmt.Sprintf("Battery: %s, Location: %s", battery, locState))
	return nil
}

// PollNotifications 待投递消息
func (s *syncService) PollNotifications(ctx context.Context, number string) ([]protocol.PushMessage, error) {
	// 1. 设备必须已知
	device, err := s.devicesRepo.FindByAnyKey(ctx, number)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("PollNotifications lookup failed", zap.String("number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to look up device")
	}

	// 2. FIFO 取待处理命令
	pending, err := s.commandsRepo.ListPending(ctx, device.DeviceID)
	if err != nil {
		s.logger.Error("PollNotifications list failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending commands")
	}

	now := time.Now()
	messages := []protocol.PushMessage{}
	for _, cmd := range pending {
		if cmd.Action == domain.CommandActionAlarm {
			params := cmd.ParseParameters()
			// 未到时的定时闹铃跳过，留在队列里等下一轮
			if params.ScheduleAt != nil && params.ScheduleAt.After(now) {
				continue
			}
			message := params.Message
			if message == "" && cmd.Description.Valid {
				message = cmd.Description.String
			}
			if message == "" {
				message = "Yönetici tarafından alarm"
			}
			raw, _ := json.Marshal(protocol.AlarmPayload{
				Title:     "MDM Alarm",
				Message:   message,
				CommandID: cmd.CommandID,
			})
			messages = append(messages, protocol.PushMessage{
				MessageType: protocol.MessageTypeShowNotification,
				Payload:     string(raw),
			})
			// 随响应下发即视为送达；标记失败不影响本次投递
			if err := s.commandsRepo.CompleteDelivered(ctx, cmd.CommandID); err != nil {
				s.logger.Warn("alarm delivery mark failed", zap.String("command_id", cmd.CommandID), zap.Error(err))
			}
			continue
		}

		// 其它命令映射为强制同步信号，命令本身留待设备回执
		messages = append(messages, protocol.PushMessage{
			MessageType: protocol.MessageTypeConfigUpdated,
			Payload:     "",
		})
	}
	return messages, nil
}

// CompleteCommand 命令回执
func (s *syncService) CompleteCommand(ctx context.Context, req CompleteCommandRequest) error {
	if req.CommandID == "" {
		return fmt.Errorf("command id is required")
	}
	success := req.Status == "success"

	// 1. 单次状态转移
	cmd, err := s.commandsRepo.Complete(ctx, req.CommandID, success, req.Result, req.Error)
	if err != nil {
		if err == repository.ErrNotFound || err == repository.ErrInvalidState {
			return err
		}
		s.logger.Error("CompleteCommand failed", zap.String("command_id", req.CommandID), zap.Error(err))
		return fmt.Errorf("failed to complete command")
	}

	// 2. 回执隐含设备在线
	if err := s.devicesRepo.TouchLastSeen(ctx, cmd.DeviceID); err != nil {
		s.logger.Warn("touch last seen failed", zap.String("device_id", cmd.DeviceID), zap.Error(err))
	}

	s.logger.Info("command completed",
		zap.String("command_id", req.CommandID),
		zap.String("status", cmd.Status),
	)
	return nil
}

// appendEvent 审计事件写入失败只记日志
func (s *syncService) appendEvent(ctx context.Context, deviceID, eventType, title, description string) {
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

func putIfNotEmpty(fields map[string]any, column, value string) {
	if value != "" {
		fields[column] = value
	}
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
