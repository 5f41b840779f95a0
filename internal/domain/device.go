package domain

import (
	"database/sql"
	"time"
)

// 设备状态（devices.status）
const (
	DeviceStatusOnline  = "ONLINE"
	DeviceStatusOffline = "OFFLINE"
	DeviceStatusWarning = "WARNING"
)

// Device 设备领域模型（对应 devices 表）
// device_number 是 launcher 上报的外部 deviceId（持久注册键），
// device_id 是内部主键，IMEI 是备选自然键。
type Device struct {
	DeviceID     string `db:"device_id"`
	DeviceNumber string `db:"device_number"` // NOT NULL, unique
	Project      string `db:"project"`       // NOT NULL, default 'default-project'

	// 描述属性
	Name         string         `db:"name"` // NOT NULL
	Model        sql.NullString `db:"model"`
	Brand        sql.NullString `db:"brand"`
	OSVersion    sql.NullString `db:"os_version"`
	IMEI         sql.NullString `db:"imei"` // nullable, unique
	PhoneNumber  sql.NullString `db:"phone_number"`
	SerialNumber sql.NullString `db:"serial_number"`
	MACAddress   sql.NullString `db:"mac_address"`

	// 运行状态
	Status   string         `db:"status"` // NOT NULL, default 'OFFLINE'
	Battery  sql.NullInt64  `db:"battery"`
	Location sql.NullString `db:"location"` // "lat,lon"
	LastSeen sql.NullTime   `db:"last_seen"`

	// 注册状态
	IsEnrolled     bool         `db:"is_enrolled"`
	EnrollmentDate sql.NullTime `db:"enrollment_date"`

	// Kiosk / launcher
	KioskMode       bool           `db:"kiosk_mode"`
	MDMMode         bool           `db:"mdm_mode"`
	LauncherType    sql.NullString `db:"launcher_type"`
	LauncherPackage sql.NullString `db:"launcher_package"`
	DefaultLauncher bool           `db:"default_launcher"`

	// 厂商透传字段（原样保存，不做解释）
	CPU     sql.NullString `db:"cpu"`
	ICCID   sql.NullString `db:"iccid"`
	IMSI    sql.NullString `db:"imsi"`
	Phone2  sql.NullString `db:"phone2"`
	IMEI2   sql.NullString `db:"imei2"`
	ICCID2  sql.NullString `db:"iccid2"`
	IMSI2   sql.NullString `db:"imsi2"`
	Custom1 sql.NullString `db:"custom1"`
	Custom2 sql.NullString `db:"custom2"`
	Custom3 sql.NullString `db:"custom3"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (d *Device) ToJSON() map[string]any {
	m := map[string]any{
		"id":              d.DeviceID,
		"deviceId":        d.DeviceNumber,
		"project":         d.Project,
		"name":            d.Name,
		"status":          d.Status,
		"isEnrolled":      d.IsEnrolled,
		"kioskMode":       d.KioskMode,
		"mdmMode":         d.MDMMode,
		"defaultLauncher": d.DefaultLauncher,
		"createdAt":       d.CreatedAt,
		"updatedAt":       d.UpdatedAt,
	}
	putNullString(m, "model", d.Model)
	putNullString(m, "brand", d.Brand)
	putNullString(m, "osVersion", d.OSVersion)
	putNullString(m, "imei", d.IMEI)
	putNullString(m, "phoneNumber", d.PhoneNumber)
	putNullString(m, "serialNumber", d.SerialNumber)
	putNullString(m, "macAddress", d.MACAddress)
	putNullString(m, "location", d.Location)
	putNullString(m, "launcherType", d.LauncherType)
	putNullString(m, "launcherPackage", d.LauncherPackage)
	putNullString(m, "cpu", d.CPU)
	putNullString(m, "iccid", d.ICCID)
	putNullString(m, "imsi", d.IMSI)
	putNullString(m, "phone2", d.Phone2)
	putNullString(m, "imei2", d.IMEI2)
	putNullString(m, "iccid2", d.ICCID2)
	putNullString(m, "imsi2", d.IMSI2)
	putNullString(m, "custom1", d.Custom1)
	putNullString(m, "custom2", d.Custom2)
	putNullString(m, "custom3", d.Custom3)
	if d.Battery.Valid {
		m["battery"] = d.Battery.Int64
	} else {
		m["battery"] = nil
	}
	if d.LastSeen.Valid {
		m["lastSeen"] = d.LastSeen.Time
	} else {
		m["lastSeen"] = nil
	}
	if d.EnrollmentDate.Valid {
		m["enrollmentDate"] = d.EnrollmentDate.Time
	}
	return m
}

func putNullString(m map[string]any, key string, v sql.NullString) {
	if v.Valid {
		m[key] = v.String
	} else {
		m[key] = nil
	}
}

// EffectiveLauncherPackage kiosk 模式下锁定的 launcher 包名
func (d *Device) EffectiveLauncherPackage() string {
	if d.LauncherPackage.Valid && d.LauncherPackage.String != "" {
		return d.LauncherPackage.String
	}
	return "com.hmdm.launcher"
}
