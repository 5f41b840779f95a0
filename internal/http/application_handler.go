package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/repository"
	"github.com/nartankaplan/MDM-version3/internal/service"
)

// ApplicationHandler 应用目录 Handler（面板侧）
type ApplicationHandler struct {
	appService service.ApplicationService
	logger     *zap.Logger
}

// NewApplicationHandler 创建应用目录 Handler
func NewApplicationHandler(appService service.ApplicationService, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{appService: appService, logger: logger}
}

// ListApplications GET /api/applications
func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.appService.ListApplications(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to list applications"))
		return
	}
	items := make([]map[string]any, 0, len(apps))
	for _, a := range apps {
		items = append(items, a.ToJSON())
	}
	writeJSON(w, http.StatusOK, AdminOk(items))
}

// LookupApplication GET /api/applications/lookup?packageName=...
func (h *ApplicationHandler) LookupApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.appService.GetByPackage(r.Context(), r.URL.Query().Get("packageName"))
	if err != nil {
		switch {
		case err == repository.ErrNotFound:
			writeJSON(w, http.StatusNotFound, AdminFail("application not found"))
		case errors.Is(err, service.ErrInvalidArgument):
			writeJSON(w, http.StatusBadRequest, AdminFail(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, AdminFail("failed to look up application"))
		}
		return
	}
	writeJSON(w, http.StatusOK, AdminOk(app.ToJSON()))
}

// RegisterApplication POST /api/applications
// 重复包名按 upsert 处理而不是报错
func (h *ApplicationHandler) RegisterApplication(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterApplicationRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, AdminFail("invalid request body"))
		return
	}

	app, err := h.appService.RegisterApplication(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArgument) {
			writeJSON(w, http.StatusBadRequest, AdminFail(err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to register application"))
		return
	}
	writeJSON(w, http.StatusCreated, AdminOkMessage("application registered", app.ToJSON()))
}
