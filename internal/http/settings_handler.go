package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/service"
)

// SettingsHandler 面板设置 Handler（主题）
type SettingsHandler struct {
	settingsService service.SettingsService
	logger          *zap.Logger
}

// NewSettingsHandler 创建设置 Handler
func NewSettingsHandler(settingsService service.SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, logger: logger}
}

// GetTheme GET /api/settings/theme
func (h *SettingsHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.settingsService.GetTheme(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to get theme"))
		return
	}
	writeJSON(w, http.StatusOK, AdminOk(theme))
}

// UpdateTheme PUT /api/settings/theme
// 更新后设备下一次同步就会拿到新主题
func (h *SettingsHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateThemeRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, AdminFail("invalid request body"))
		return
	}

	theme, err := h.settingsService.UpdateTheme(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, AdminFail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, AdminOkMessage("theme updated", theme))
}
