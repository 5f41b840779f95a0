package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

func setupApplicationsMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresApplicationsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresApplicationsRepo(db)
	return db, mock, repo
}

var applicationRowColumns = []string{
	"application_id", "name", "package_name", "version", "version_code",
	"download_url", "icon_url", "description", "category",
	"is_system_app", "is_required", "created_at", "updated_at",
}

func TestUpsertByPackage_ReturnsMergedRow(t *testing.T) {
	db, mock, repo := setupApplicationsMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO applications`).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns).AddRow(
			"app-1", "WhatsApp", "com.whatsapp", "2.24.1", 241,
			nil, nil, nil, nil, false, false, now, now,
		))

	app, err := repo.UpsertByPackage(context.Background(), &domain.Application{
		Name:        "WhatsApp",
		PackageName: "com.whatsapp",
		Version:     sql.NullString{String: "2.24.1", Valid: true},
	})

	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ApplicationID)
	assert.Equal(t, "com.whatsapp", app.PackageName)
	assert.Equal(t, int64(241), app.VersionCode.Int64)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPackage_NotFound(t *testing.T) {
	db, mock, repo := setupApplicationsMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("com.missing").
		WillReturnError(sql.ErrNoRows)

	app, err := repo.GetByPackage(context.Background(), "com.missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, app)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetInstalled_Install(t *testing.T) {
	db, mock, repo := setupApplicationsMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO device_applications`).
		WithArgs("dev-1", "app-1", true).
		WillReturnRows(sqlmock.NewRows([]string{
			"device_id", "application_id", "is_installed", "installed_at", "version",
		}).AddRow("dev-1", "app-1", true, now, "2.24.1"))

	da, err := repo.SetInstalled(context.Background(), "dev-1", "app-1", true)

	require.NoError(t, err)
	assert.True(t, da.IsInstalled)
	assert.True(t, da.InstalledAt.Valid)
	assert.Equal(t, "2.24.1", da.Version.String)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetInstalled_UnknownApplication(t *testing.T) {
	db, mock, repo := setupApplicationsMock(t)
	defer db.Close()

	// SELECT 源为空时 INSERT 不产生行
	mock.ExpectQuery(`INSERT INTO device_applications`).
		WithArgs("dev-1", "missing", true).
		WillReturnError(sql.ErrNoRows)

	da, err := repo.SetInstalled(context.Background(), "dev-1", "missing", true)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, da)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkReconcile_UpsertsCatalogAndAssignment(t *testing.T) {
	db, mock, repo := setupApplicationsMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO applications`).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns).AddRow(
			"app-1", "Chrome", "com.android.chrome", "120.0", nil,
			nil, nil, nil, nil, false, false, now, now,
		))
	mock.ExpectExec(`INSERT INTO device_applications`).
		WithArgs("dev-1", "app-1", true, "120.0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.BulkReconcile(context.Background(), "dev-1", []domain.ReportedApp{
		{Pkg: "com.android.chrome", Name: "Chrome", Version: "120.0"},
		{Pkg: ""}, // 空包名条目直接跳过
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
