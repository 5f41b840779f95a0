package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

type assignmentKey struct {
	deviceID      string
	applicationID string
}

// MemoryApplicationsRepo 应用目录 + 分配的内存实现（DB 关闭时的回退）
type MemoryApplicationsRepo struct {
	mu          sync.RWMutex
	apps        map[string]*domain.Application              // applicationID -> Application
	byPackage   map[string]string                           // packageName -> applicationID
	assignments map[assignmentKey]*domain.DeviceApplication // (deviceID, applicationID) -> row
}

func NewMemoryApplicationsRepo() *MemoryApplicationsRepo {
	return &MemoryApplicationsRepo{
		apps:        map[string]*domain.Application{},
		byPackage:   map[string]string{},
		assignments: map[assignmentKey]*domain.DeviceApplication{},
	}
}

func (r *MemoryApplicationsRepo) ListApplications(_ context.Context) ([]*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Application, 0, len(r.apps))
	for _, a := range r.apps {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryApplicationsRepo) GetApplication(_ context.Context, applicationID string) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryApplicationsRepo) GetByPackage(_ context.Context, packageName string) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPackage[packageName]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.apps[id]
	return &cp, nil
}

func (r *MemoryApplicationsRepo) UpsertByPackage(_ context.Context, app *domain.Application) (*domain.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPackage[app.PackageName]; ok {
		existing := r.apps[id]
		// 只用非空的新值覆盖，绝不清掉已有元数据
		if app.Name != "" {
			existing.Name = app.Name
		}
		mergeNullString(&existing.Version, app.Version)
		if app.VersionCode.Valid {
			existing.VersionCode = app.VersionCode
		}
		mergeNullString(&existing.DownloadURL, app.DownloadURL)
		mergeNullString(&existing.IconURL, app.IconURL)
		mergeNullString(&existing.Description, app.Description)
		mergeNullString(&existing.Category, app.Category)
		existing.IsSystemApp = existing.IsSystemApp || app.IsSystemApp
		existing.UpdatedAt = time.Now()
		cp := *existing
		return &cp, nil
	}

	cp := *app
	cp.ApplicationID = uuid.New().String()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.apps[cp.ApplicationID] = &cp
	r.byPackage[cp.PackageName] = cp.ApplicationID
	result := cp
	return &result, nil
}

func (r *MemoryApplicationsRepo) GetOrCreateAssignment(_ context.Context, deviceID, applicationID string) (*domain.DeviceApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assignmentKey{deviceID, applicationID}
	if da, ok := r.assignments[key]; ok {
		cp := *da
		return &cp, nil
	}
	da := &domain.DeviceApplication{DeviceID: deviceID, ApplicationID: applicationID, IsInstalled: false}
	r.assignments[key] = da
	cp := *da
	return &cp, nil
}

func (r *MemoryApplicationsRepo) SetInstalled(_ context.Context, deviceID, applicationID string, installed bool) (*domain.DeviceApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	catalog, ok := r.apps[applicationID]
	if !ok {
		return nil, ErrNotFound
	}

	key := assignmentKey{deviceID, applicationID}
	da, ok := r.assignments[key]
	if !ok {
		da = &domain.DeviceApplication{DeviceID: deviceID, ApplicationID: applicationID}
		r.assignments[key] = da
	}
	da.IsInstalled = installed
	if installed {
		da.InstalledAt = sql.NullTime{Time: time.Now(), Valid: true}
		da.Version = catalog.Version
	} else {
		da.InstalledAt = sql.NullTime{}
	}
	cp := *da
	return &cp, nil
}

func (r *MemoryApplicationsRepo) ListForDevice(_ context.Context, deviceID string) ([]*domain.DeviceApplicationDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.DeviceApplicationDetail{}
	for key, da := range r.assignments {
		if key.deviceID != deviceID {
			continue
		}
		app, ok := r.apps[key.applicationID]
		if !ok {
			continue
		}
		out = append(out, &domain.DeviceApplicationDetail{
			DeviceApplication: *da,
			Application:       *app,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Application.Name < out[j].Application.Name })
	return out, nil
}

func (r *MemoryApplicationsRepo) CountForDevice(_ context.Context, deviceID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for key := range r.assignments {
		if key.deviceID == deviceID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryApplicationsRepo) BulkReconcile(ctx context.Context, deviceID string, reported []domain.ReportedApp) error {
	for _, app := range reported {
		if app.Pkg == "" {
			continue
		}
		name := app.Name
		if name == "" {
			name = app.Pkg
		}
		catalog, err := r.UpsertByPackage(ctx, &domain.Application{
			Name:        name,
			PackageName: app.Pkg,
			Version:     sql.NullString{String: app.Version, Valid: app.Version != ""},
		})
		if err != nil {
			return err
		}

		r.mu.Lock()
		key := assignmentKey{deviceID, catalog.ApplicationID}
		da, ok := r.assignments[key]
		if !ok {
			da = &domain.DeviceApplication{DeviceID: deviceID, ApplicationID: catalog.ApplicationID}
			r.assignments[key] = da
		}
		da.IsInstalled = !app.Remove
		if da.IsInstalled {
			da.InstalledAt = sql.NullTime{Time: time.Now(), Valid: true}
		} else {
			da.InstalledAt = sql.NullTime{}
		}
		if app.Version != "" {
			da.Version = sql.NullString{String: app.Version, Valid: true}
		}
		r.mu.Unlock()
	}
	return nil
}

func (r *MemoryApplicationsRepo) deleteAssignmentsForDevice(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.assignments {
		if key.deviceID == deviceID {
			delete(r.assignments, key)
		}
	}
}

func mergeNullString(dst *sql.NullString, src sql.NullString) {
	if src.Valid && src.String != "" {
		*dst = src
	}
}
