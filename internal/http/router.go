package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
// Go 1.22 的方法 + 通配模式覆盖了 /{project}/... 这类中段参数。
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	r.mux.ServeHTTP(w, req)
	r.logger.Debug("http request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// RegisterSyncRoutes launcher 同步协议路由
func (r *Router) RegisterSyncRoutes(h *SyncHandler) {
	r.Handle("POST /{project}/rest/public/sync/configuration/{number}", h.EnrollConfiguration)
	r.Handle("GET /{project}/rest/public/sync/configuration/{number}", h.GetConfiguration)
	r.Handle("POST /{project}/rest/public/sync/info", h.ReportInfo)
	r.Handle("GET /{project}/rest/notifications/device/{number}", h.PollNotifications)
	r.Handle("POST /{project}/rest/public/sync/command/{commandId}", h.CompleteCommand)
}

// RegisterAdminRoutes 面板 API 路由
func (r *Router) RegisterAdminRoutes(d *DeviceHandler, a *ApplicationHandler, s *SettingsHandler) {
	// devices
	r.Handle("GET /api/devices", d.ListDevices)
	r.Handle("POST /api/devices", d.CreateDevice)
	r.Handle("GET /api/devices/export", d.ExportDevices)
	r.Handle("GET /api/devices/import-template", d.ImportTemplate)
	r.Handle("GET /api/devices/{id}", d.GetDevice)
	r.Handle("PUT /api/devices/{id}", d.UpdateDevice)
	r.Handle("DELETE /api/devices/{id}", d.DeleteDevice)
	r.Handle("POST /api/devices/{id}/commands", d.IssueCommand)
	r.Handle("GET /api/devices/{id}/commands", d.ListCommands)
	r.Handle("GET /api/devices/{id}/apps", d.ListApps)
	r.Handle("POST /api/devices/{id}/apps/{appId}/toggle", d.ToggleApp)
	r.Handle("GET /api/devices/{id}/events", d.ListEvents)

	// commands
	r.Handle("GET /api/commands/{id}", d.GetCommand)

	// applications
	r.Handle("GET /api/applications", a.ListApplications)
	r.Handle("GET /api/applications/lookup", a.LookupApplication)
	r.Handle("POST /api/applications", a.RegisterApplication)

	// settings
	r.Handle("GET /api/settings/theme", s.GetTheme)
	r.Handle("PUT /api/settings/theme", s.UpdateTheme)
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
