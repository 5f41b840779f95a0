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

func setupCommandsMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresCommandsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresCommandsRepo(db)
	return db, mock, repo
}

func testPendingCommand(deviceID, action string) *domain.Command {
	return &domain.Command{
		DeviceID:    deviceID,
		Action:      action,
		Status:      domain.CommandStatusPending,
		Description: sql.NullString{String: action + " komutu gönderildi", Valid: true},
		CreatedBy:   sql.NullString{String: "admin", Valid: true},
	}
}

var commandRowColumns = []string{
	"command_id", "device_id", "action", "status", "description", "parameters",
	"result", "error_message", "created_by", "created_at", "executed_at", "completed_at",
}

func TestEnqueue_ReturnsID(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO commands`).
		WithArgs("dev-1", "LOCK", sql.NullString{String: "LOCK komutu gönderildi", Valid: true},
			sql.NullString{}, sql.NullString{String: "admin", Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"command_id"}).AddRow("cmd-1"))

	id, err := repo.Enqueue(context.Background(), testPendingCommand("dev-1", "LOCK"))

	require.NoError(t, err)
	assert.Equal(t, "cmd-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCommand_NotFound(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	cmd, err := repo.GetCommand(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, cmd)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_Success(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(commandRowColumns).AddRow(
		"cmd-1", "dev-1", "LOCK", "COMPLETED", nil, nil,
		`{"locked":true}`, nil, nil, now, nil, now,
	)

	mock.ExpectQuery(`UPDATE commands`).
		WithArgs("cmd-1", "COMPLETED", `{"locked":true}`, "").
		WillReturnRows(rows)

	cmd, err := repo.Complete(context.Background(), "cmd-1", true, `{"locked":true}`, "")

	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", cmd.Status)
	assert.Equal(t, `{"locked":true}`, cmd.Result.String)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_Failed(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(commandRowColumns).AddRow(
		"cmd-1", "dev-1", "WIPE", "FAILED", nil, nil,
		nil, "device refused", nil, now, nil, now,
	)

	mock.ExpectQuery(`UPDATE commands`).
		WithArgs("cmd-1", "FAILED", "", "device refused").
		WillReturnRows(rows)

	cmd, err := repo.Complete(context.Background(), "cmd-1", false, "", "device refused")

	require.NoError(t, err)
	assert.Equal(t, "FAILED", cmd.Status)
	assert.Equal(t, "device refused", cmd.ErrorMessage.String)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_AlreadyTerminal(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	// CAS 未命中，随后查到已终态的行
	mock.ExpectQuery(`UPDATE commands`).
		WithArgs("cmd-1", "COMPLETED", "", "").
		WillReturnError(sql.ErrNoRows)

	now := time.Now()
	mock.ExpectQuery(`SELECT`).
		WithArgs("cmd-1").
		WillReturnRows(sqlmock.NewRows(commandRowColumns).AddRow(
			"cmd-1", "dev-1", "LOCK", "COMPLETED", nil, nil,
			nil, nil, nil, now, nil, now,
		))

	cmd, err := repo.Complete(context.Background(), "cmd-1", true, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Nil(t, cmd)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_NotFound(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE commands`).
		WithArgs("missing", "COMPLETED", "", "").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(`SELECT`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	cmd, err := repo.Complete(context.Background(), "missing", true, "", "")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, cmd)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteDelivered_Success(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE commands`).
		WithArgs("cmd-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CompleteDelivered(context.Background(), "cmd-1")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteDelivered_AlreadyTerminal(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE commands`).
		WithArgs("cmd-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	mock.ExpectQuery(`SELECT`).
		WithArgs("cmd-1").
		WillReturnRows(sqlmock.NewRows(commandRowColumns).AddRow(
			"cmd-1", "dev-1", "ALARM", "COMPLETED", nil, nil,
			`{"delivered":true}`, nil, nil, now, now, now,
		))

	err := repo.CompleteDelivered(context.Background(), "cmd-1")

	assert.ErrorIs(t, err, ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPending_FIFO(t *testing.T) {
	db, mock, repo := setupCommandsMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(commandRowColumns).
		AddRow("cmd-1", "dev-1", "LOCK", "PENDING", nil, nil, nil, nil, nil, now.Add(-time.Minute), nil, nil).
		AddRow("cmd-2", "dev-1", "ALARM", "PENDING", nil, nil, nil, nil, nil, now, nil, nil)

	mock.ExpectQuery(`SELECT`).
		WithArgs("dev-1").
		WillReturnRows(rows)

	cmds, err := repo.ListPending(context.Background(), "dev-1")

	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "cmd-1", cmds[0].CommandID)
	assert.Equal(t, "cmd-2", cmds[1].CommandID)
	require.NoError(t, mock.ExpectationsWereMet())
}
