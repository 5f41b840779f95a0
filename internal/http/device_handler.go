package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/repository"
	"github.com/nartankaplan/MDM-version3/internal/service"
)

// DeviceHandler 设备登记簿 Handler（面板侧）
type DeviceHandler struct {
	deviceService  service.DeviceService
	commandService service.CommandService
	appService     service.ApplicationService
	logger         *zap.Logger
}

// NewDeviceHandler 创建设备管理 Handler
func NewDeviceHandler(
	deviceService service.DeviceService,
	commandService service.CommandService,
	appService service.ApplicationService,
	logger *zap.Logger,
) *DeviceHandler {
	return &DeviceHandler{
		deviceService:  deviceService,
		commandService: commandService,
		appService:     appService,
		logger:         logger,
	}
}

// ListDevices GET /api/devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.ListDevicesRequest{
		SearchKeyword: q.Get("search"),
		Page:          parseInt(q.Get("page"), 1),
		Size:          parseInt(q.Get("size"), 20),
	}
	if status := q.Get("status"); status != "" {
		req.Status = []string{status}
	}
	if enrolled := q.Get("isEnrolled"); enrolled != "" {
		v := enrolled == "true"
		req.IsEnrolled = &v
	}

	resp, err := h.deviceService.ListDevices(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to list devices"))
		return
	}

	items := make([]map[string]any, 0, len(resp.Items))
	for _, d := range resp.Items {
		items = append(items, d.ToJSON())
	}
	writeJSON(w, http.StatusOK, AdminOkList(items, resp.Total))
}

// GetDevice GET /api/devices/{id}
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := h.deviceService.GetDevice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminOk(device.ToJSON()))
}

// CreateDevice POST /api/devices
func (h *DeviceHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDeviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, AdminFail("invalid request body"))
		return
	}

	device, err := h.deviceService.CreateDevice(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidArgument):
			writeJSON(w, http.StatusBadRequest, AdminFail(err.Error()))
		case err == repository.ErrConflict:
			writeJSON(w, http.StatusBadRequest, AdminFail("imei already in use"))
		default:
			writeJSON(w, http.StatusInternalServerError, AdminFail("failed to create device"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, AdminOkMessage("device created", device.ToJSON()))
}

// UpdateDevice PUT /api/devices/{id}
func (h *DeviceHandler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateDeviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, AdminFail("invalid request body"))
		return
	}

	device, err := h.deviceService.UpdateDevice(r.Context(), r.PathValue("id"), req)
	if err != nil {
		switch {
		case err == repository.ErrNotFound:
			writeJSON(w, http.StatusNotFound, AdminFail("device not found"))
		case err == repository.ErrConflict:
			writeJSON(w, http.StatusBadRequest, AdminFail("imei already in use"))
		case errors.Is(err, service.ErrInvalidArgument):
			writeJSON(w, http.StatusBadRequest, AdminFail(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, AdminFail("failed to update device"))
		}
		return
	}
	writeJSON(w, http.StatusOK, AdminOk(device.ToJSON()))
}

// DeleteDevice DELETE /api/devices/{id}
func (h *DeviceHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	device, err := h.deviceService.DeleteDevice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminOkMessage("device deleted", map[string]any{
		"deviceId":   device.DeviceID,
		"deviceName": device.Name,
	}))
}

// IssueCommand POST /api/devices/{id}/commands
func (h *DeviceHandler) IssueCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action     string          `json:"action"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, AdminFail("invalid request body"))
		return
	}

	cmd, err := h.commandService.IssueCommand(r.Context(), service.IssueCommandRequest{
		DeviceID:   r.PathValue("id"),
		Action:     body.Action,
		Parameters: body.Parameters,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidArgument):
			writeJSON(w, http.StatusBadRequest, AdminFail("invalid command action"))
		case err == repository.ErrNotFound:
			writeJSON(w, http.StatusNotFound, AdminFail("device not found"))
		default:
			writeJSON(w, http.StatusInternalServerError, AdminFail("failed to issue command"))
		}
		return
	}
	writeJSON(w, http.StatusOK, AdminOkMessage("command queued", cmd.ToJSON()))
}

// ListCommands GET /api/devices/{id}/commands
func (h *DeviceHandler) ListCommands(w http.ResponseWriter, r *http.Request) {
	commands, err := h.commandService.ListForDevice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(commands))
	for _, c := range commands {
		items = append(items, c.ToJSON())
	}
	writeJSON(w, http.StatusOK, AdminOk(items))
}

// ListApps GET /api/devices/{id}/apps
func (h *DeviceHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	details, err := h.appService.ListForDevice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(details))
	for _, d := range details {
		entry := d.Application.ToJSON()
		entry["isInstalled"] = d.IsInstalled
		entry["installedVersion"] = d.EffectiveVersion()
		if d.InstalledAt.Valid {
			entry["installedAt"] = d.InstalledAt.Time
		} else {
			entry["installedAt"] = nil
		}
		items = append(items, entry)
	}
	writeJSON(w, http.StatusOK, AdminOk(items))
}

// ToggleApp POST /api/devices/{id}/apps/{appId}/toggle
func (h *DeviceHandler) ToggleApp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsInstalled bool `json:"isInstalled"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, AdminFail("invalid request body"))
		return
	}

	resp, err := h.appService.ToggleForDevice(r.Context(), service.ToggleApplicationRequest{
		DeviceID:      r.PathValue("id"),
		ApplicationID: r.PathValue("appId"),
		IsInstalled:   body.IsInstalled,
	})
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	message := "application uninstalled"
	if body.IsInstalled {
		message = "application installed"
	}
	writeJSON(w, http.StatusOK, AdminOkMessage(message, map[string]any{
		"appId":       resp.Application.ApplicationID,
		"appName":     resp.Application.Name,
		"packageName": resp.Application.PackageName,
		"isInstalled": resp.Assignment.IsInstalled,
		"commandId":   resp.CommandID,
	}))
}

// ListEvents GET /api/devices/{id}/events
func (h *DeviceHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 100)
	events, err := h.deviceService.ListEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(events))
	for _, e := range events {
		items = append(items, e.ToJSON())
	}
	writeJSON(w, http.StatusOK, AdminOk(items))
}

// GetCommand GET /api/commands/{id}
func (h *DeviceHandler) GetCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.commandService.GetCommand(r.Context(), r.PathValue("id"))
	if err != nil {
		if err == repository.ErrNotFound {
			writeJSON(w, http.StatusNotFound, AdminFail("command not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to get command"))
		return
	}
	writeJSON(w, http.StatusOK, AdminOk(cmd.ToJSON()))
}

func (h *DeviceHandler) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case err == repository.ErrNotFound:
		writeJSON(w, http.StatusNotFound, AdminFail("not found"))
	case errors.Is(err, service.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, AdminFail(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, AdminFail("internal error"))
	}
}
