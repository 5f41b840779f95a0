package repository

import "errors"

// Repository 层哨兵错误；service 层据此映射协议响应。
var (
	// ErrNotFound 目标记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrInvalidState 非法状态转移（如重复完成已终态的命令）
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict 自然键冲突且策略要求拒绝（如 IMEI 已被其他设备占用）
	ErrConflict = errors.New("natural key conflict")
)
