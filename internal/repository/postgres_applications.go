package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

type PostgresApplicationsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresApplicationsRepo(db *sql.DB) *PostgresApplicationsRepo {
	return &PostgresApplicationsRepo{db: db}
}

func (r *PostgresApplicationsRepo) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

const applicationColumns = `
	a.application_id::text,
	a.name,
	a.package_name,
	a.version,
	a.version_code,
	a.download_url,
	a.icon_url,
	a.description,
	a.category,
	a.is_system_app,
	a.is_required,
	a.created_at,
	a.updated_at`

func scanApplication(row interface{ Scan(...any) error }) (*domain.Application, error) {
	var a domain.Application
	err := row.Scan(
		&a.ApplicationID,
		&a.Name,
		&a.PackageName,
		&a.Version,
		&a.VersionCode,
		&a.DownloadURL,
		&a.IconURL,
		&a.Description,
		&a.Category,
		&a.IsSystemApp,
		&a.IsRequired,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresApplicationsRepo) ListApplications(ctx context.Context) ([]*domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM applications a ORDER BY a.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresApplicationsRepo) GetApplication(ctx context.Context, applicationID string) (*domain.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM applications a WHERE a.application_id::text = $1`
	a, err := scanApplication(r.db.QueryRowContext(ctx, q, applicationID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresApplicationsRepo) GetByPackage(ctx context.Context, packageName string) (*domain.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM applications a WHERE a.package_name = $1`
	a, err := scanApplication(r.db.QueryRowContext(ctx, q, packageName))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpsertByPackage 按 package_name 的原子 upsert。
// 冲突时只覆盖显式给出的非空字段（COALESCE(NULLIF(...))），
// 绝不用缺省值清掉已有元数据；并发同包创建收敛为一行。
func (r *PostgresApplicationsRepo) UpsertByPackage(ctx context.Context, app *domain.Application) (*domain.Application, error) {
	q := `
		INSERT INTO applications (
			name, package_name, version, version_code, download_url,
			icon_url, description, category, is_system_app, is_required
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (package_name) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), applications.name),
			version = COALESCE(NULLIF(EXCLUDED.version, ''), applications.version),
			version_code = COALESCE(EXCLUDED.version_code, applications.version_code),
			download_url = COALESCE(NULLIF(EXCLUDED.download_url, ''), applications.download_url),
			icon_url = COALESCE(NULLIF(EXCLUDED.icon_url, ''), applications.icon_url),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), applications.description),
			category = COALESCE(NULLIF(EXCLUDED.category, ''), applications.category),
			is_system_app = applications.is_system_app OR EXCLUDED.is_system_app,
			updated_at = NOW()
		RETURNING application_id::text, name, package_name, version, version_code,
		          download_url, icon_url, description, category,
		          is_system_app, is_required, created_at, updated_at
	`
	var a domain.Application
	err := r.db.QueryRowContext(ctx, q,
		app.Name, app.PackageName, app.Version, app.VersionCode, app.DownloadURL,
		app.IconURL, app.Description, app.Category, app.IsSystemApp, app.IsRequired,
	).Scan(
		&a.ApplicationID, &a.Name, &a.PackageName, &a.Version, &a.VersionCode,
		&a.DownloadURL, &a.IconURL, &a.Description, &a.Category,
		&a.IsSystemApp, &a.IsRequired, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresApplicationsRepo) GetOrCreateAssignment(ctx context.Context, deviceID, applicationID string) (*domain.DeviceApplication, error) {
	// ON CONFLICT DO UPDATE 空操作，保证并发下恰好一行且总能 RETURNING
	q := `
		INSERT INTO device_applications (device_id, application_id, is_installed)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (device_id, application_id) DO UPDATE SET device_id = device_applications.device_id
		RETURNING device_id::text, application_id::text, is_installed, installed_at, version
	`
	var da domain.DeviceApplication
	err := r.db.QueryRowContext(ctx, q, deviceID, applicationID).Scan(
		&da.DeviceID, &da.ApplicationID, &da.IsInstalled, &da.InstalledAt, &da.Version,
	)
	if err != nil {
		return nil, err
	}
	return &da, nil
}

// SetInstalled upsert 分配行：安装时 installed_at=NOW() 且从目录快照当前版本，
// 卸载时 installed_at=NULL、保留版本快照。
func (r *PostgresApplicationsRepo) SetInstalled(ctx context.Context, deviceID, applicationID string, installed bool) (*domain.DeviceApplication, error) {
	q := `
		INSERT INTO device_applications (device_id, application_id, is_installed, installed_at, version)
		SELECT $1, a.application_id, $3,
		       CASE WHEN $3 THEN NOW() END,
		       CASE WHEN $3 THEN a.version END
		FROM applications a
		WHERE a.application_id::text = $2
		ON CONFLICT (device_id, application_id) DO UPDATE SET
			is_installed = EXCLUDED.is_installed,
			installed_at = EXCLUDED.installed_at,
			version = CASE WHEN EXCLUDED.is_installed THEN EXCLUDED.version ELSE device_applications.version END
		RETURNING device_id::text, application_id::text, is_installed, installed_at, version
	`
	var da domain.DeviceApplication
	err := r.db.QueryRowContext(ctx, q, deviceID, applicationID, installed).Scan(
		&da.DeviceID, &da.ApplicationID, &da.IsInstalled, &da.InstalledAt, &da.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &da, nil
}

func (r *PostgresApplicationsRepo) ListForDevice(ctx context.Context, deviceID string) ([]*domain.DeviceApplicationDetail, error) {
	q := `
		SELECT
			da.device_id::text, da.application_id::text, da.is_installed, da.installed_at, da.version,
			` + applicationColumns + `
		FROM device_applications da
		JOIN applications a ON da.application_id = a.application_id
		WHERE da.device_id::text = $1
		ORDER BY a.name
	`
	rows, err := r.db.QueryContext(ctx, q, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.DeviceApplicationDetail{}
	for rows.Next() {
		var d domain.DeviceApplicationDetail
		err := rows.Scan(
			&d.DeviceID, &d.DeviceApplication.ApplicationID, &d.IsInstalled, &d.InstalledAt, &d.DeviceApplication.Version,
			&d.Application.ApplicationID, &d.Application.Name, &d.Application.PackageName,
			&d.Application.Version, &d.Application.VersionCode, &d.Application.DownloadURL,
			&d.Application.IconURL, &d.Application.Description, &d.Application.Category,
			&d.Application.IsSystemApp, &d.Application.IsRequired,
			&d.Application.CreatedAt, &d.Application.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *PostgresApplicationsRepo) CountForDevice(ctx context.Context, deviceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_applications WHERE device_id::text = $1`, deviceID,
	).Scan(&n)
	return n, err
}

// BulkReconcile 逐条 upsert 目录 + 分配；设备上报覆盖服务端认知，
// 不做冲突消解（last report wins）。
func (r *PostgresApplicationsRepo) BulkReconcile(ctx context.Context, deviceID string, reported []domain.ReportedApp) error {
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
			Version:     nullString(app.Version),
		})
		if err != nil {
			return err
		}

		q := `
			INSERT INTO device_applications (device_id, application_id, is_installed, installed_at, version)
			VALUES ($1, $2, $3, CASE WHEN $3 THEN NOW() END, $4)
			ON CONFLICT (device_id, application_id) DO UPDATE SET
				is_installed = EXCLUDED.is_installed,
				installed_at = EXCLUDED.installed_at,
				version = COALESCE(NULLIF(EXCLUDED.version, ''), device_applications.version)
		`
		installed := !app.Remove
		if _, err := r.db.ExecContext(ctx, q, deviceID, catalog.ApplicationID, installed, app.Version); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
