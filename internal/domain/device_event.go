package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// 事件类型（device_events.event_type）
const (
	EventTypeStatusChange   = "STATUS_CHANGE"
	EventTypeAppInstalled   = "APP_INSTALLED"
	EventTypeAppUninstalled = "APP_UNINSTALLED"
	EventTypeEnrollment     = "ENROLLMENT"
	EventTypeCommandIssued  = "COMMAND_ISSUED"
)

// DeviceEvent 设备事件审计日志（append-only，对应 device_events 表）
// 核心协议只写不读；面板侧读取展示。
type DeviceEvent struct {
	EventID     string         `db:"event_id"`
	DeviceID    sql.NullString `db:"device_id"`
	EventType   string         `db:"event_type"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Severity    string         `db:"severity"` // INFO/WARNING/ERROR
	Metadata    sql.NullString `db:"metadata"` // JSON
	CreatedAt   time.Time      `db:"created_at"`
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (e *DeviceEvent) ToJSON() map[string]any {
	m := map[string]any{
		"id":        e.EventID,
		"eventType": e.EventType,
		"title":     e.Title,
		"severity":  e.Severity,
		"createdAt": e.CreatedAt,
	}
	putNullString(m, "deviceId", e.DeviceID)
	putNullString(m, "description", e.Description)
	if e.Metadata.Valid && e.Metadata.String != "" {
		var raw any
		if err := json.Unmarshal([]byte(e.Metadata.String), &raw); err == nil {
			m["metadata"] = raw
		} else {
			m["metadata"] = e.Metadata.String
		}
	}
	return m
}
