package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

type PostgresCommandsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresCommandsRepo(db *sql.DB) *PostgresCommandsRepo {
	return &PostgresCommandsRepo{db: db}
}

func (r *PostgresCommandsRepo) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

const commandColumns = `
	c.command_id::text,
	c.device_id::text,
	c.action,
	c.status,
	c.description,
	c.parameters,
	c.result,
	c.error_message,
	c.created_by,
	c.created_at,
	c.executed_at,
	c.completed_at`

func scanCommand(row interface{ Scan(...any) error }) (*domain.Command, error) {
	var c domain.Command
	err := row.Scan(
		&c.CommandID,
		&c.DeviceID,
		&c.Action,
		&c.Status,
		&c.Description,
		&c.Parameters,
		&c.Result,
		&c.ErrorMessage,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.ExecutedAt,
		&c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCommandsRepo) Enqueue(ctx context.Context, cmd *domain.Command) (string, error) {
	q := `
		INSERT INTO commands (device_id, action, status, description, parameters, created_by)
		VALUES ($1, $2, 'PENDING', $3, $4, $5)
		RETURNING command_id::text
	`
	var id string
	err := r.db.QueryRowContext(ctx, q,
		cmd.DeviceID, cmd.Action, cmd.Description, cmd.Parameters, cmd.CreatedBy,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresCommandsRepo) GetCommand(ctx context.Context, commandID string) (*domain.Command, error) {
	q := `SELECT ` + commandColumns + ` FROM commands c WHERE c.command_id::text = $1`
	c, err := scanCommand(r.db.QueryRowContext(ctx, q, commandID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCommandsRepo) ListForDevice(ctx context.Context, deviceID string) ([]*domain.Command, error) {
	q := `SELECT ` + commandColumns + ` FROM commands c WHERE c.device_id::text = $1 ORDER BY c.created_at DESC`
	return r.queryCommands(ctx, q, deviceID)
}

func (r *PostgresCommandsRepo) ListPending(ctx context.Context, deviceID string) ([]*domain.Command, error) {
	// FIFO：最早入队的先投递
	q := `SELECT ` + commandColumns + ` FROM commands c WHERE c.device_id::text = $1 AND c.status = 'PENDING' ORDER BY c.created_at ASC`
	return r.queryCommands(ctx, q, deviceID)
}

func (r *PostgresCommandsRepo) queryCommands(ctx context.Context, q string, args ...any) ([]*domain.Command, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Command{}
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Complete 单行 CAS：WHERE status='PENDING' 保证恰好转移一次。
// 命中 0 行时区分「不存在」和「已终态」。
func (r *PostgresCommandsRepo) Complete(ctx context.Context, commandID string, success bool, result, errorMessage string) (*domain.Command, error) {
	status := domain.CommandStatusCompleted
	if !success {
		status = domain.CommandStatusFailed
	}
	q := `
		UPDATE commands c
		SET status = $2,
		    result = NULLIF($3, ''),
		    error_message = NULLIF($4, ''),
		    completed_at = NOW()
		WHERE c.command_id::text = $1 AND c.status = 'PENDING'
		RETURNING ` + commandColumns
	c, err := scanCommand(r.db.QueryRowContext(ctx, q, commandID, status, result, errorMessage))
	if err == sql.ErrNoRows {
		// 要么不存在，要么已经终态
		if _, getErr := r.GetCommand(ctx, commandID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.Info("Command completed",
			zap.String("command_id", commandID),
			zap.String("status", status),
		)
	}
	return c, nil
}

// CompleteDelivered ALARM 随轮询响应下发即终态（delivery-on-dispatch）。
// 同样走 PENDING CAS，重放的轮询不会二次转移。
func (r *PostgresCommandsRepo) CompleteDelivered(ctx context.Context, commandID string) error {
	q := `
		UPDATE commands c
		SET status = 'COMPLETED',
		    result = '{"delivered":true}',
		    executed_at = NOW(),
		    completed_at = NOW()
		WHERE c.command_id::text = $1 AND c.status = 'PENDING'
	`
	res, err := r.db.ExecContext(ctx, q, commandID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, getErr := r.GetCommand(ctx, commandID); getErr != nil {
			return getErr
		}
		return ErrInvalidState
	}
	return nil
}
