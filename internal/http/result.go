package httpapi

// SyncResult launcher 同步协议信封
// status 只有 OK / ERROR 两个值，launcher 端按此判断
type SyncResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	SyncStatusOK    = "OK"
	SyncStatusError = "ERROR"
)

func SyncOk(message string, data any) SyncResult {
	return SyncResult{Status: SyncStatusOK, Message: message, Data: data}
}

func SyncFail(message string) SyncResult {
	return SyncResult{Status: SyncStatusError, Message: message}
}

// AdminResult 面板 API 信封
type AdminResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
	Total   *int   `json:"total,omitempty"`
}

func AdminOk(data any) AdminResult {
	return AdminResult{Success: true, Data: data}
}

func AdminOkMessage(message string, data any) AdminResult {
	return AdminResult{Success: true, Message: message, Data: data}
}

func AdminOkList(data any, total int) AdminResult {
	return AdminResult{Success: true, Data: data, Total: &total}
}

func AdminFail(message string) AdminResult {
	return AdminResult{Success: false, Error: message}
}
