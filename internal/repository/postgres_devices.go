package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

type PostgresDevicesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresDevicesRepo(db *sql.DB) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db}
}

// SetLogger sets the logger for this repository (optional, for enrollment auditing)
func (r *PostgresDevicesRepo) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

const deviceColumns = `
	d.device_id::text,
	d.device_number,
	d.project,
	d.name,
	d.model,
	d.brand,
	d.os_version,
	d.imei,
	d.phone_number,
	d.serial_number,
	d.mac_address,
	d.status,
	d.battery,
	d.location,
	d.last_seen,
	d.is_enrolled,
	d.enrollment_date,
	d.kiosk_mode,
	d.mdm_mode,
	d.launcher_type,
	d.launcher_package,
	d.default_launcher,
	d.cpu,
	d.iccid,
	d.imsi,
	d.phone2,
	d.imei2,
	d.iccid2,
	d.imsi2,
	d.custom1,
	d.custom2,
	d.custom3,
	d.created_at,
	d.updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.DeviceID,
		&d.DeviceNumber,
		&d.Project,
		&d.Name,
		&d.Model,
		&d.Brand,
		&d.OSVersion,
		&d.IMEI,
		&d.PhoneNumber,
		&d.SerialNumber,
		&d.MACAddress,
		&d.Status,
		&d.Battery,
		&d.Location,
		&d.LastSeen,
		&d.IsEnrolled,
		&d.EnrollmentDate,
		&d.KioskMode,
		&d.MDMMode,
		&d.LauncherType,
		&d.LauncherPackage,
		&d.DefaultLauncher,
		&d.CPU,
		&d.ICCID,
		&d.IMSI,
		&d.Phone2,
		&d.IMEI2,
		&d.ICCID2,
		&d.IMSI2,
		&d.Custom1,
		&d.Custom2,
		&d.Custom3,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresDevicesRepo) ListDevices(ctx context.Context, filters DeviceFilters, page, size int) ([]*domain.Device, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if len(filters.Status) > 0 {
		where = append(where, fmt.Sprintf("d.status = ANY($%d)", argN))
		args = append(args, pq.Array(filters.Status))
		argN++
	}
	if filters.IsEnrolled != nil {
		where = append(where, fmt.Sprintf("d.is_enrolled = $%d", argN))
		args = append(args, *filters.IsEnrolled)
		argN++
	}
	if kw := strings.TrimSpace(filters.SearchKeyword); kw != "" {
		where = append(where, fmt.Sprintf("(d.name ILIKE $%d OR d.imei ILIKE $%d OR d.serial_number ILIKE $%d)", argN, argN, argN))
		args = append(args, "%"+kw+"%")
		argN++
	}

	queryCount := `SELECT COUNT(*) FROM devices d WHERE ` + strings.Join(where, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	q := `SELECT ` + deviceColumns + `
		FROM devices d
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY d.name
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *PostgresDevicesRepo) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices d WHERE d.device_id::text = $1`
	d, err := scanDevice(r.db.QueryRowContext(ctx, q, deviceID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// FindByAnyKey 按键优先级逐个尝试：IMEI → 外部 deviceId → 内部 device_id。
// 三个键保持独立查询（而不是一条 OR 复合查询），命中即停。
func (r *PostgresDevicesRepo) FindByAnyKey(ctx context.Context, number string) (*domain.Device, error) {
	lookups := []string{
		`SELECT ` + deviceColumns + ` FROM devices d WHERE d.imei = $1 LIMIT 1`,
		`SELECT ` + deviceColumns + ` FROM devices d WHERE d.device_number = $1 LIMIT 1`,
		`SELECT ` + deviceColumns + ` FROM devices d WHERE d.device_id::text = $1 LIMIT 1`,
	}
	for _, q := range lookups {
		d, err := scanDevice(r.db.QueryRowContext(ctx, q, number))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, ErrNotFound
}

func (r *PostgresDevicesRepo) FindByIMEI(ctx context.Context, imei string) (*domain.Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices d WHERE d.imei = $1 LIMIT 1`
	d, err := scanDevice(r.db.QueryRowContext(ctx, q, imei))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresDevicesRepo) CreateDevice(ctx context.Context, d *domain.Device) (string, error) {
	q := `
		INSERT INTO devices (
			device_number, project, name, model, brand, os_version,
			imei, phone_number, serial_number, mac_address,
			status, battery, is_enrolled, enrollment_date,
			kiosk_mode, mdm_mode, launcher_type, launcher_package, default_launcher,
			cpu, iccid, imsi, phone2, imei2, iccid2, imsi2,
			custom1, custom2, custom3, last_seen
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26,
			$27, $28, $29, NOW()
		)
		RETURNING device_id::text
	`
	var id string
	err := r.db.QueryRowContext(ctx, q,
		d.DeviceNumber, d.Project, d.Name, d.Model, d.Brand, d.OSVersion,
		d.IMEI, d.PhoneNumber, d.SerialNumber, d.MACAddress,
		d.Status, d.Battery, d.IsEnrolled, d.EnrollmentDate,
		d.KioskMode, d.MDMMode, d.LauncherType, d.LauncherPackage, d.DefaultLauncher,
		d.CPU, d.ICCID, d.IMSI, d.Phone2, d.IMEI2, d.ICCID2, d.IMSI2,
		d.Custom1, d.Custom2, d.Custom3,
	).Scan(&id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return "", ErrConflict
		}
		return "", err
	}
	return id, nil
}

// UpdateDeviceFields 动态 SET：只更新 fields 中出现的列。
// truthy-merge 策略由 service 层决定哪些字段进入 fields。
func (r *PostgresDevicesRepo) UpdateDeviceFields(ctx context.Context, deviceID string, fields map[string]any) error {
	allowed := []string{
		"device_number", "name", "model", "brand", "os_version",
		"imei", "phone_number", "serial_number", "mac_address",
		"status", "battery", "location", "is_enrolled", "enrollment_date",
		"kiosk_mode", "mdm_mode", "launcher_type", "launcher_package", "default_launcher",
		"cpu", "iccid", "imsi", "phone2", "imei2", "iccid2", "imsi2",
		"custom1", "custom2", "custom3", "last_seen",
	}

	set := []string{"updated_at = NOW()"}
	args := []any{deviceID}
	argN := 2
	for _, col := range allowed {
		if v, ok := fields[col]; ok {
			set = append(set, fmt.Sprintf("%s = $%d", col, argN))
			args = append(args, v)
			argN++
		}
	}
	if len(set) == 1 {
		return nil
	}

	q := "UPDATE devices SET " + strings.Join(set, ", ") + " WHERE device_id::text = $1"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDevicesRepo) RecordHeartbeat(ctx context.Context, deviceID string, battery *int, location *string) error {
	q := `
		UPDATE devices
		SET battery = COALESCE($2, battery),
		    location = COALESCE($3, location),
		    status = 'ONLINE',
		    last_seen = NOW(),
		    updated_at = NOW()
		WHERE device_id::text = $1
	`
	res, err := r.db.ExecContext(ctx, q, deviceID, battery, location)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDevicesRepo) TouchLastSeen(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET last_seen = NOW(), status = 'ONLINE', updated_at = NOW()
		WHERE device_id::text = $1
	`, deviceID)
	return err
}

// DeleteDeviceCascade 删除设备及其命令/分配/事件，单事务 all-or-nothing。
// 中途失败回滚，绝不留下指向已删设备的孤儿行。
func (r *PostgresDevicesRepo) DeleteDeviceCascade(ctx context.Context, deviceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM commands WHERE device_id::text = $1`, deviceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM device_applications WHERE device_id::text = $1`, deviceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM device_events WHERE device_id::text = $1`, deviceID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE device_id::text = $1`, deviceID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if r.logger != nil {
		r.logger.Info("Device deleted with cascade", zap.String("device_id", deviceID))
	}
	return nil
}
