package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/protocol"
	"github.com/nartankaplan/MDM-version3/internal/repository"
	"github.com/nartankaplan/MDM-version3/internal/service"
)

// SyncHandler launcher 同步协议 Handler
// 路径形如 /{project}/rest/public/sync/...，project 段原样透传
type SyncHandler struct {
	syncService service.SyncService
	signer      *protocol.Signer
	logger      *zap.Logger
}

// NewSyncHandler 创建同步协议 Handler
func NewSyncHandler(syncService service.SyncService, signer *protocol.Signer, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		signer:      signer,
		logger:      logger,
	}
}

// EnrollConfiguration POST /{project}/rest/public/sync/configuration/{number}
// 注册（或刷新）设备并下发配置
func (h *SyncHandler) EnrollConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := r.PathValue("project")
	number := r.PathValue("number")

	// 1. 解析设备上报（body 为空也允许）
	var info service.DeviceInfo
	if err := readBodyJSON(r, 1<<20, &info); err != nil {
		writeJSON(w, http.StatusBadRequest, SyncFail("invalid request body"))
		return
	}

	h.logger.Info("sync configuration request",
		zap.String("project", project),
		zap.String("number", number),
		zap.String("signature", r.Header.Get("X-Request-Signature")),
		zap.String("cpu_arch", r.Header.Get("X-CPU-Arch")),
	)

	// 2. 幂等注册/刷新
	if _, err := h.syncService.EnrollOrRefresh(ctx, service.EnrollRequest{
		Project: project,
		Number:  number,
		Info:    info,
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, SyncFail("Device enrollment failed: "+err.Error()))
		return
	}

	// 3. 合成并签名下发
	h.writeConfiguration(w, r, number)
}

// GetConfiguration GET /{project}/rest/public/sync/configuration/{number}
// 不注册，设备未知返回 404
func (h *SyncHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	h.writeConfiguration(w, r, number)
}

// writeConfiguration 合成配置、签名、写响应
// data 的字节必须和签名输入完全一致，所以先 Marshal 再以 RawMessage 嵌入信封。
func (h *SyncHandler) writeConfiguration(w http.ResponseWriter, r *http.Request, number string) {
	payload, err := h.syncService.BuildConfiguration(r.Context(), number, baseURLFromRequest(r))
	if err != nil {
		if err == repository.ErrNotFound {
			writeJSON(w, http.StatusNotFound, AdminFail("Device not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, SyncFail("Failed to get configuration: "+err.Error()))
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, SyncFail("Failed to encode configuration"))
		return
	}

	w.Header().Set(protocol.HeaderResponseSignature, h.signer.Sign(raw))
	writeJSON(w, http.StatusOK, SyncResult{
		Status:  SyncStatusOK,
		Message: "Configuration loaded successfully",
		Data:    json.RawMessage(raw),
	})
}

// ReportInfo POST /{project}/rest/public/sync/info
// 设备未知也回 OK，launcher 不会因为服务端未建档而报错重试
func (h *SyncHandler) ReportInfo(w http.ResponseWriter, r *http.Request) {
	var report service.InfoReport
	if err := readBodyJSON(r, 1<<20, &report); err != nil {
		writeJSON(w, http.StatusBadRequest, SyncFail("invalid request body"))
		return
	}

	if err := h.syncService.ReportInfo(r.Context(), report); err != nil {
		writeJSON(w, http.StatusInternalServerError, SyncFail("Failed to process device info: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, SyncOk("Device info received successfully", nil))
}

// PollNotifications GET /{project}/rest/notifications/device/{number}
func (h *SyncHandler) PollNotifications(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	messages, err := h.syncService.PollNotifications(r.Context(), number)
	if err != nil {
		if err == repository.ErrNotFound {
			writeJSON(w, http.StatusNotFound, AdminFail("Device not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, SyncFail("Failed to get notifications: "+err.Error()))
		return
	}
	if messages == nil {
		messages = []protocol.PushMessage{}
	}
	writeJSON(w, http.StatusOK, SyncOk("Notifications retrieved successfully", messages))
}

// CompleteCommand POST /{project}/rest/public/sync/command/{commandId}
func (h *SyncHandler) CompleteCommand(w http.ResponseWriter, r *http.Request) {
	commandID := r.PathValue("commandId")

	var body struct {
		Status string `json:"status"`
		Result string `json:"result"`
		Error  string `json:"error"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, SyncFail("invalid request body"))
		return
	}

	err := h.syncService.CompleteCommand(r.Context(), service.CompleteCommandRequest{
		CommandID: commandID,
		Status:    body.Status,
		Result:    body.Result,
		Error:     body.Error,
	})
	switch {
	case err == repository.ErrNotFound:
		writeJSON(w, http.StatusNotFound, AdminFail("Command not found"))
	case err == repository.ErrInvalidState:
		// 终态命令不允许二次回执
		writeJSON(w, http.StatusConflict, SyncFail("Command already completed"))
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, SyncFail("Failed to update command status: "+err.Error()))
	default:
		writeJSON(w, http.StatusOK, SyncOk("Command status updated successfully", nil))
	}
}
