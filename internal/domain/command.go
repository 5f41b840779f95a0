package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// 命令动作枚举（commands.action）
const (
	CommandActionLock         = "LOCK"
	CommandActionUnlock       = "UNLOCK"
	CommandActionWipe         = "WIPE"
	CommandActionLocate       = "LOCATE"
	CommandActionRestart      = "RESTART"
	CommandActionAlarm        = "ALARM"
	CommandActionInstallApp   = "INSTALL_APP"
	CommandActionUninstallApp = "UNINSTALL_APP"
	CommandActionSetPolicy    = "SET_POLICY"
)

// 命令生命周期（commands.status）
// PENDING 只会转移一次；COMPLETED/FAILED 为终态。
const (
	CommandStatusPending   = "PENDING"
	CommandStatusCompleted = "COMPLETED"
	CommandStatusFailed    = "FAILED"
)

// ValidCommandAction action 是否属于枚举集合
func ValidCommandAction(action string) bool {
	switch action {
	case CommandActionLock, CommandActionUnlock, CommandActionWipe,
		CommandActionLocate, CommandActionRestart, CommandActionAlarm,
		CommandActionInstallApp, CommandActionUninstallApp, CommandActionSetPolicy:
		return true
	}
	return false
}

// Command 下发给设备的命令（对应 commands 表）
type Command struct {
	CommandID    string         `db:"command_id"`
	DeviceID     string         `db:"device_id"`
	Action       string         `db:"action"`
	Status       string         `db:"status"`
	Description  sql.NullString `db:"description"`
	Parameters   sql.NullString `db:"parameters"` // JSON 编码的自由参数
	Result       sql.NullString `db:"result"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedBy    sql.NullString `db:"created_by"`
	CreatedAt    time.Time      `db:"created_at"`
	ExecutedAt   sql.NullTime   `db:"executed_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
}

// CommandParameters 已知的参数字段（ALARM 的 message/scheduleAt 等）
type CommandParameters struct {
	Message      string     `json:"message,omitempty"`
	ScheduleAt   *time.Time `json:"scheduleAt,omitempty"`
	KioskEnabled *bool      `json:"kioskEnabled,omitempty"`
	AppID        string     `json:"appId,omitempty"`
	PackageName  string     `json:"packageName,omitempty"`
	AppName      string     `json:"appName,omitempty"`
}

// ParseParameters 解析 parameters JSON；空或非法返回零值
func (c *Command) ParseParameters() CommandParameters {
	var p CommandParameters
	if c.Parameters.Valid && c.Parameters.String != "" {
		_ = json.Unmarshal([]byte(c.Parameters.String), &p)
	}
	return p
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (c *Command) ToJSON() map[string]any {
	m := map[string]any{
		"id":        c.CommandID,
		"deviceId":  c.DeviceID,
		"action":    c.Action,
		"status":    c.Status,
		"createdAt": c.CreatedAt,
	}
	putNullString(m, "description", c.Description)
	putNullString(m, "result", c.Result)
	putNullString(m, "errorMessage", c.ErrorMessage)
	putNullString(m, "createdBy", c.CreatedBy)
	if c.Parameters.Valid && c.Parameters.String != "" {
		var raw any
		if err := json.Unmarshal([]byte(c.Parameters.String), &raw); err == nil {
			m["parameters"] = raw
		} else {
			m["parameters"] = c.Parameters.String
		}
	} else {
		m["parameters"] = nil
	}
	if c.ExecutedAt.Valid {
		m["executedAt"] = c.ExecutedAt.Time
	} else {
		m["executedAt"] = nil
	}
	if c.CompletedAt.Valid {
		m["completedAt"] = c.CompletedAt.Time
	} else {
		m["completedAt"] = nil
	}
	return m
}
