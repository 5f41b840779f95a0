package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// MemoryDevicesRepo supports the device endpoints when DB is disabled.
// Semantics mirror the Postgres repo so the service layer can't tell them apart.
type MemoryDevicesRepo struct {
	mu       sync.RWMutex
	devices  map[string]*domain.Device // deviceID -> Device
	commands *MemoryCommandsRepo       // optional, for cascade delete
	apps     *MemoryApplicationsRepo   // optional, for cascade delete
	events   *MemoryEventsRepo         // optional, for cascade delete
}

func NewMemoryDevicesRepo() *MemoryDevicesRepo {
	return &MemoryDevicesRepo{devices: map[string]*domain.Device{}}
}

// BindCascade 级联删除需要同删其它内存表
func (r *MemoryDevicesRepo) BindCascade(commands *MemoryCommandsRepo, apps *MemoryApplicationsRepo, events *MemoryEventsRepo) {
	r.commands = commands
	r.apps = apps
	r.events = events
}

func (r *MemoryDevicesRepo) ListDevices(_ context.Context, filters DeviceFilters, page, size int) ([]*domain.Device, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		if len(filters.Status) > 0 && !containsString(filters.Status, d.Status) {
			continue
		}
		if filters.IsEnrolled != nil && d.IsEnrolled != *filters.IsEnrolled {
			continue
		}
		if kw := strings.TrimSpace(filters.SearchKeyword); kw != "" {
			lower := strings.ToLower(kw)
			if !strings.Contains(strings.ToLower(d.Name), lower) &&
				!strings.Contains(strings.ToLower(d.IMEI.String), lower) &&
				!strings.Contains(strings.ToLower(d.SerialNumber.String), lower) {
				continue
			}
		}
		cp := *d
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryDevicesRepo) GetDevice(_ context.Context, deviceID string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryDevicesRepo) FindByAnyKey(_ context.Context, number string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// 与 Postgres 实现相同的键优先级
	for _, match := range []func(*domain.Device) bool{
		func(d *domain.Device) bool { return d.IMEI.Valid && d.IMEI.String == number },
		func(d *domain.Device) bool { return d.DeviceNumber == number },
		func(d *domain.Device) bool { return d.DeviceID == number },
	} {
		for _, d := range r.devices {
			if match(d) {
				cp := *d
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryDevicesRepo) FindByIMEI(_ context.Context, imei string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.IMEI.Valid && d.IMEI.String == imei {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryDevicesRepo) CreateDevice(_ context.Context, device *domain.Device) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.DeviceNumber == device.DeviceNumber {
			return "", ErrConflict
		}
		if device.IMEI.Valid && d.IMEI.Valid && d.IMEI.String == device.IMEI.String {
			return "", ErrConflict
		}
	}

	cp := *device
	cp.DeviceID = uuid.New().String()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.LastSeen = sql.NullTime{Time: now, Valid: true}
	r.devices[cp.DeviceID] = &cp
	return cp.DeviceID, nil
}

func (r *MemoryDevicesRepo) UpdateDeviceFields(_ context.Context, deviceID string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case "device_number":
			d.DeviceNumber = asString(v)
		case "name":
			d.Name = asString(v)
		case "model":
			d.Model = asNullString(v)
		case "brand":
			d.Brand = asNullString(v)
		case "os_version":
			d.OSVersion = asNullString(v)
		case "imei":
			next := asNullString(v)
			if next.Valid {
				for id, other := range r.devices {
					if id != deviceID && other.IMEI.Valid && other.IMEI.String == next.String {
						return ErrConflict
					}
				}
			}
			d.IMEI = next
		case "phone_number":
			d.PhoneNumber = asNullString(v)
		case "serial_number":
			d.SerialNumber = asNullString(v)
		case "mac_address":
			d.MACAddress = asNullString(v)
		case "status":
			d.Status = asString(v)
		case "battery":
			d.Battery = asNullInt(v)
		case "location":
			d.Location = asNullString(v)
		case "is_enrolled":
			d.IsEnrolled, _ = v.(bool)
		case "enrollment_date":
			d.EnrollmentDate = asNullTime(v)
		case "kiosk_mode":
			d.KioskMode, _ = v.(bool)
		case "mdm_mode":
			d.MDMMode, _ = v.(bool)
		case "launcher_type":
			d.LauncherType = asNullString(v)
		case "launcher_package":
			d.LauncherPackage = asNullString(v)
		case "default_launcher":
			d.DefaultLauncher, _ = v.(bool)
		case "cpu":
			d.CPU = asNullString(v)
		case "iccid":
			d.ICCID = asNullString(v)
		case "imsi":
			d.IMSI = asNullString(v)
		case "phone2":
			d.Phone2 = asNullString(v)
		case "imei2":
			d.IMEI2 = asNullString(v)
		case "iccid2":
			d.ICCID2 = asNullString(v)
		case "imsi2":
			d.IMSI2 = asNullString(v)
		case "custom1":
			d.Custom1 = asNullString(v)
		case "custom2":
			d.Custom2 = asNullString(v)
		case "custom3":
			d.Custom3 = asNullString(v)
		case "last_seen":
			d.LastSeen = asNullTime(v)
		}
	}
	d.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryDevicesRepo) RecordHeartbeat(_ context.Context, deviceID string, battery *int, location *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	if battery != nil {
		d.Battery = sql.NullInt64{Int64: int64(*battery), Valid: true}
	}
	if location != nil {
		d.Location = sql.NullString{String: *location, Valid: true}
	}
	d.Status = domain.DeviceStatusOnline
	now := time.Now()
	d.LastSeen = sql.NullTime{Time: now, Valid: true}
	d.UpdatedAt = now
	return nil
}

func (r *MemoryDevicesRepo) TouchLastSeen(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[deviceID]; ok {
		now := time.Now()
		d.LastSeen = sql.NullTime{Time: now, Valid: true}
		d.Status = domain.DeviceStatusOnline
		d.UpdatedAt = now
	}
	return nil
}

func (r *MemoryDevicesRepo) DeleteDeviceCascade(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[deviceID]; !ok {
		return ErrNotFound
	}
	if r.commands != nil {
		r.commands.deleteForDevice(deviceID)
	}
	if r.apps != nil {
		r.apps.deleteAssignmentsForDevice(deviceID)
	}
	if r.events != nil {
		r.events.deleteForDevice(deviceID)
	}
	delete(r.devices, deviceID)
	return nil
}

func containsString(arr []string, s string) bool {
	for _, v := range arr {
		if v == s {
			return true
		}
	}
	return false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case sql.NullString:
		return t.String
	}
	return ""
}

func asNullString(v any) sql.NullString {
	switch t := v.(type) {
	case string:
		return sql.NullString{String: t, Valid: true}
	case sql.NullString:
		return t
	case nil:
		return sql.NullString{}
	}
	return sql.NullString{}
}

func asNullInt(v any) sql.NullInt64 {
	switch t := v.(type) {
	case int:
		return sql.NullInt64{Int64: int64(t), Valid: true}
	case int64:
		return sql.NullInt64{Int64: t, Valid: true}
	case sql.NullInt64:
		return t
	case nil:
		return sql.NullInt64{}
	}
	return sql.NullInt64{}
}

func asNullTime(v any) sql.NullTime {
	switch t := v.(type) {
	case time.Time:
		return sql.NullTime{Time: t, Valid: true}
	case sql.NullTime:
		return t
	case nil:
		return sql.NullTime{}
	}
	return sql.NullTime{}
}
