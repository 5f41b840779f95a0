package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/protocol"
	"github.com/nartankaplan/MDM-version3/internal/repository"
	"github.com/nartankaplan/MDM-version3/internal/store"
)

type syncEnv struct {
	devices  *repository.MemoryDevicesRepo
	apps     *repository.MemoryApplicationsRepo
	commands *repository.MemoryCommandsRepo
	events   *repository.MemoryEventsRepo
	svc      SyncService
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()

	devices := repository.NewMemoryDevicesRepo()
	apps := repository.NewMemoryApplicationsRepo()
	commands := repository.NewMemoryCommandsRepo()
	events := repository.NewMemoryEventsRepo()
	devices.BindCascade(commands, apps, events)

	settings := NewSettingsService(repository.NewMemorySettingsRepo(), store.NoopKV{}, zap.NewNop())
	svc := NewSyncService(devices, apps, commands, events, settings, 30, zap.NewNop())

	return &syncEnv{devices: devices, apps: apps, commands: commands, events: events, svc: svc}
}

func (e *syncEnv) enroll(t *testing.T, number string) *domain.Device {
	t.Helper()
	d, err := e.svc.EnrollOrRefresh(context.Background(), EnrollRequest{
		Project: "demo",
		Number:  number,
		Info:    DeviceInfo{Model: "Pixel 7", Brand: "Google", AndroidVersion: "14"},
	})
	require.NoError(t, err)
	return d
}

func TestEnrollOrRefresh_CreatesDevice(t *testing.T) {
	env := newSyncEnv(t)

	d := env.enroll(t, "123456789012345")

	assert.NotEmpty(t, d.DeviceID)
	assert.Equal(t, "123456789012345", d.DeviceNumber)
	assert.Equal(t, "123456789012345", d.IMEI.String)
	assert.Equal(t, "Pixel 7", d.Name)
	assert.Equal(t, domain.DeviceStatusOnline, d.Status)
	assert.True(t, d.IsEnrolled)
	assert.True(t, d.EnrollmentDate.Valid)

	events, err := env.events.ListForDevice(context.Background(), d.DeviceID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventTypeEnrollment, events[len(events)-1].EventType)
}

func TestEnrollOrRefresh_SeedsDefaultBundle(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	// 目录里有两个默认包成员和一个无关应用
	for _, app := range []domain.Application{
		{Name: "Chrome", PackageName: "com.android.chrome"},
		{Name: "WhatsApp", PackageName: "com.whatsapp"},
		{Name: "Solitaire", PackageName: "com.example.solitaire"},
	} {
		a := app
		_, err := env.apps.UpsertByPackage(ctx, &a)
		require.NoError(t, err)
	}

	d := env.enroll(t, "123456789012345")

	assignments, err := env.apps.ListForDevice(ctx, d.DeviceID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	for _, a := range assignments {
		assert.True(t, a.IsInstalled)
	}
}

func TestEnrollOrRefresh_Idempotent(t *testing.T) {
	env := newSyncEnv(t)

	first := env.enroll(t, "123456789012345")

	// 第二次上报字段为空，truthy-merge 不得清掉已有值
	second, err := env.svc.EnrollOrRefresh(context.Background(), EnrollRequest{
		Project: "demo",
		Number:  "123456789012345",
		Info:    DeviceInfo{},
	})
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID, second.DeviceID)
	assert.Equal(t, "Pixel 7", second.Model.String)
	assert.True(t, second.IsEnrolled)
}

func TestEnrollOrRefresh_MergesReportedState(t *testing.T) {
	env := newSyncEnv(t)
	d := env.enroll(t, "123456789012345")

	battery := 42
	kiosk := true
	updated, err := env.svc.EnrollOrRefresh(context.Background(), EnrollRequest{
		Project: "demo",
		Number:  "123456789012345",
		Info: DeviceInfo{
			BatteryLevel: &battery,
			KioskMode:    &kiosk,
			Phone:        "+905551112233",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, d.DeviceID, updated.DeviceID)
	assert.Equal(t, int64(42), updated.Battery.Int64)
	assert.True(t, updated.KioskMode)
	assert.Equal(t, "+905551112233", updated.PhoneNumber.String)
}

func TestBuildConfiguration_UnknownDevice(t *testing.T) {
	env := newSyncEnv(t)

	payload, err := env.svc.BuildConfiguration(context.Background(), "missing", "http://host")

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, payload)
}

func TestBuildConfiguration_IncludesCoreApps(t *testing.T) {
	env := newSyncEnv(t)
	env.enroll(t, "123456789012345")

	payload, err := env.svc.BuildConfiguration(context.Background(), "123456789012345", "http://host:3001")
	require.NoError(t, err)

	assert.Equal(t, "123456789012345", payload.NewNumber)
	assert.Equal(t, 30, payload.KeepaliveTime)

	pkgs := map[string]bool{}
	for _, app := range payload.Applications {
		pkgs[app.Pkg] = true
	}
	assert.True(t, pkgs["com.android.dialer"])
	assert.True(t, pkgs["com.android.mms"])
	assert.True(t, pkgs["com.android.camera2"])
	assert.True(t, pkgs["com.android.gallery3d"])
}

func TestReportInfo_UnknownDeviceSilent(t *testing.T) {
	env := newSyncEnv(t)

	err := env.svc.ReportInfo(context.Background(), InfoReport{DeviceID: "missing"})

	assert.NoError(t, err)
}

func TestReportInfo_HeartbeatAndReconcile(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	battery := 77
	err := env.svc.ReportInfo(ctx, InfoReport{
		DeviceID:     "123456789012345",
		BatteryLevel: &battery,
		Location:     &ReportedLocation{Lat: 41.0082, Lon: 28.9784},
		Applications: []domain.ReportedApp{
			{Pkg: "com.spotify.music", Name: "Spotify", Version: "8.9"},
		},
	})
	require.NoError(t, err)

	updated, err := env.devices.GetDevice(ctx, d.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, int64(77), updated.Battery.Int64)
	assert.Equal(t, "41.0082,28.9784", updated.Location.String)
	assert.Equal(t, domain.DeviceStatusOnline, updated.Status)
	assert.True(t, updated.LastSeen.Valid)

	assignments, err := env.apps.ListForDevice(ctx, d.DeviceID)
	require.NoError(t, err)
	found := false
	for _, a := range assignments {
		if a.Application.PackageName == "com.spotify.music" {
			found = true
			assert.True(t, a.IsInstalled)
			assert.Equal(t, "8.9", a.EffectiveVersion())
		}
	}
	assert.True(t, found)
}

func TestPollNotifications_AlarmDeliveredOnDispatch(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	params, _ := json.Marshal(domain.CommandParameters{Message: "Cihazı iade edin"})
	cmdID, err := env.commands.Enqueue(ctx, &domain.Command{
		DeviceID:   d.DeviceID,
		Action:     domain.CommandActionAlarm,
		Parameters: sql.NullString{String: string(params), Valid: true},
	})
	require.NoError(t, err)

	messages, err := env.svc.PollNotifications(ctx, "123456789012345")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, protocol.MessageTypeShowNotification, messages[0].MessageType)

	var alarm protocol.AlarmPayload
	require.NoError(t, json.Unmarshal([]byte(messages[0].Payload), &alarm))
	assert.Equal(t, "Cihazı iade edin", alarm.Message)
	assert.Equal(t, cmdID, alarm.CommandID)

	// 随响应下发即终态
	cmd, err := env.commands.GetCommand(ctx, cmdID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandStatusCompleted, cmd.Status)
	assert.Equal(t, `{"delivered":true}`, cmd.Result.String)
	assert.True(t, cmd.ExecutedAt.Valid)

	// 再次轮询为空
	messages, err = env.svc.PollNotifications(ctx, "123456789012345")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestPollNotifications_FutureAlarmStaysPending(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	future := time.Now().Add(time.Hour)
	params, _ := json.Marshal(domain.CommandParameters{Message: "sonra", ScheduleAt: &future})
	cmdID, err := env.commands.Enqueue(ctx, &domain.Command{
		DeviceID:   d.DeviceID,
		Action:     domain.CommandActionAlarm,
		Parameters: sql.NullString{String: string(params), Valid: true},
	})
	require.NoError(t, err)

	messages, err := env.svc.PollNotifications(ctx, "123456789012345")
	require.NoError(t, err)
	assert.Empty(t, messages)

	cmd, err := env.commands.GetCommand(ctx, cmdID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandStatusPending, cmd.Status)
}

func TestPollNotifications_NonAlarmBecomesConfigUpdated(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	cmdID, err := env.commands.Enqueue(ctx, &domain.Command{
		DeviceID: d.DeviceID,
		Action:   domain.CommandActionLock,
	})
	require.NoError(t, err)

	messages, err := env.svc.PollNotifications(ctx, "123456789012345")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, protocol.MessageTypeConfigUpdated, messages[0].MessageType)

	// 命令留待设备回执，不随投递终态
	cmd, err := env.commands.GetCommand(ctx, cmdID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandStatusPending, cmd.Status)
}

func TestPollNotifications_UnknownDevice(t *testing.T) {
	env := newSyncEnv(t)

	_, err := env.svc.PollNotifications(context.Background(), "missing")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCompleteCommand_TerminalOnce(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	cmdID, err := env.commands.Enqueue(ctx, &domain.Command{
		DeviceID: d.DeviceID,
		Action:   domain.CommandActionLock,
	})
	require.NoError(t, err)

	err = env.svc.CompleteCommand(ctx, CompleteCommandRequest{
		CommandID: cmdID,
		Status:    "success",
		Result:    `{"locked":true}`,
	})
	require.NoError(t, err)

	cmd, err := env.commands.GetCommand(ctx, cmdID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandStatusCompleted, cmd.Status)

	// 第二次回执被拒绝
	err = env.svc.CompleteCommand(ctx, CompleteCommandRequest{CommandID: cmdID, Status: "success"})
	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestCompleteCommand_Failure(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	cmdID, err := env.commands.Enqueue(ctx, &domain.Command{
		DeviceID: d.DeviceID,
		Action:   domain.CommandActionWipe,
	})
	require.NoError(t, err)

	err = env.svc.CompleteCommand(ctx, CompleteCommandRequest{
		CommandID: cmdID,
		Status:    "failed",
		Error:     "device refused",
	})
	require.NoError(t, err)

	cmd, err := env.commands.GetCommand(ctx, cmdID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandStatusFailed, cmd.Status)
	assert.Equal(t, "device refused", cmd.ErrorMessage.String)
}

func TestCompleteCommand_NotFound(t *testing.T) {
	env := newSyncEnv(t)

	err := env.svc.CompleteCommand(context.Background(), CompleteCommandRequest{
		CommandID: "missing",
		Status:    "success",
	})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}
