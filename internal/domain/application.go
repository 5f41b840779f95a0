package domain

import (
	"database/sql"
	"time"
)

// Application 应用目录条目（对应 applications 表）
// package_name 是全局唯一自然键，重复创建按 upsert 处理。
type Application struct {
	ApplicationID string         `db:"application_id"`
	Name          string         `db:"name"`         // NOT NULL
	PackageName   string         `db:"package_name"` // NOT NULL, unique
	Version       sql.NullString `db:"version"`
	VersionCode   sql.NullInt64  `db:"version_code"`
	DownloadURL   sql.NullString `db:"download_url"`
	IconURL       sql.NullString `db:"icon_url"`
	Description   sql.NullString `db:"description"`
	Category      sql.NullString `db:"category"`
	IsSystemApp   bool           `db:"is_system_app"`
	IsRequired    bool           `db:"is_required"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (a *Application) ToJSON() map[string]any {
	m := map[string]any{
		"id":          a.ApplicationID,
		"name":        a.Name,
		"packageName": a.PackageName,
		"isSystemApp": a.IsSystemApp,
		"isRequired":  a.IsRequired,
		"createdAt":   a.CreatedAt,
	}
	putNullString(m, "version", a.Version)
	putNullString(m, "downloadUrl", a.DownloadURL)
	putNullString(m, "iconUrl", a.IconURL)
	putNullString(m, "description", a.Description)
	putNullString(m, "category", a.Category)
	if a.VersionCode.Valid {
		m["versionCode"] = a.VersionCode.Int64
	} else {
		m["versionCode"] = nil
	}
	return m
}

// DeviceApplication 设备-应用关联（对应 device_applications 表）
// (device_id, application_id) 唯一；安装/卸载切换原地更新这一行。
type DeviceApplication struct {
	DeviceID      string         `db:"device_id"`
	ApplicationID string         `db:"application_id"`
	IsInstalled   bool           `db:"is_installed"`
	InstalledAt   sql.NullTime   `db:"installed_at"`
	Version       sql.NullString `db:"version"` // 设备侧版本快照，区别于目录版本
}

// DeviceApplicationDetail 关联行 + 目录元数据（ListForDevice 联查结果）
type DeviceApplicationDetail struct {
	DeviceApplication
	Application Application
}

// EffectiveVersion 有效版本 = 关联覆盖版本，否则目录版本
func (d *DeviceApplicationDetail) EffectiveVersion() string {
	if d.Version.Valid && d.Version.String != "" {
		return d.Version.String
	}
	if d.Application.Version.Valid {
		return d.Application.Version.String
	}
	return ""
}

// ReportedApp 设备上报的已安装应用（sync/info 的 applications[] 条目）
type ReportedApp struct {
	Pkg     string `json:"pkg"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Remove  bool   `json:"remove"`
}
