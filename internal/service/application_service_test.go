package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/repository"
)

func newApplicationService(t *testing.T) (*syncEnv, ApplicationService) {
	t.Helper()
	env := newSyncEnv(t)
	svc := NewApplicationService(env.devices, env.apps, env.commands, env.events, nil, zap.NewNop())
	return env, svc
}

func TestRegisterApplication_Idempotent(t *testing.T) {
	_, svc := newApplicationService(t)
	ctx := context.Background()

	first, err := svc.RegisterApplication(ctx, RegisterApplicationRequest{
		Name:        "Spotify",
		PackageName: "com.spotify.music",
		Version:     "8.9",
	})
	require.NoError(t, err)

	// 同包名重复注册收敛为同一条目
	second, err := svc.RegisterApplication(ctx, RegisterApplicationRequest{
		Name:        "Spotify",
		PackageName: "com.spotify.music",
		Version:     "9.0",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ApplicationID, second.ApplicationID)
	assert.Equal(t, "9.0", second.Version.String)
}

func TestRegisterApplication_RequiredFields(t *testing.T) {
	_, svc := newApplicationService(t)

	_, err := svc.RegisterApplication(context.Background(), RegisterApplicationRequest{Name: "NoPackage"})

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetByPackage(t *testing.T) {
	_, svc := newApplicationService(t)
	ctx := context.Background()

	_, err := svc.RegisterApplication(ctx, RegisterApplicationRequest{
		Name:        "Chrome",
		PackageName: "com.android.chrome",
	})
	require.NoError(t, err)

	app, err := svc.GetByPackage(ctx, "com.android.chrome")
	require.NoError(t, err)
	assert.Equal(t, "Chrome", app.Name)

	_, err = svc.GetByPackage(ctx, "com.missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestToggleForDevice_InstallQueuesCommand(t *testing.T) {
	env, svc := newApplicationService(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	app, err := svc.RegisterApplication(ctx, RegisterApplicationRequest{
		Name:        "Spotify",
		PackageName: "com.spotify.music",
	})
	require.NoError(t, err)

	resp, err := svc.ToggleForDevice(ctx, ToggleApplicationRequest{
		DeviceID:      d.DeviceID,
		ApplicationID: app.ApplicationID,
		IsInstalled:   true,
	})
	require.NoError(t, err)

	assert.True(t, resp.Assignment.IsInstalled)
	require.NotEmpty(t, resp.CommandID)

	cmd, err := env.commands.GetCommand(ctx, resp.CommandID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandActionInstallApp, cmd.Action)
	assert.Equal(t, domain.CommandStatusPending, cmd.Status)
	params := cmd.ParseParameters()
	assert.Equal(t, "com.spotify.music", params.PackageName)
	assert.Equal(t, "Spotify", params.AppName)
}

func TestToggleForDevice_UninstallQueuesCommand(t *testing.T) {
	env, svc := newApplicationService(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	app, err := svc.RegisterApplication(ctx, RegisterApplicationRequest{
		Name:        "Spotify",
		PackageName: "com.spotify.music",
	})
	require.NoError(t, err)

	_, err = svc.ToggleForDevice(ctx, ToggleApplicationRequest{
		DeviceID: d.DeviceID, ApplicationID: app.ApplicationID, IsInstalled: true,
	})
	require.NoError(t, err)

	resp, err := svc.ToggleForDevice(ctx, ToggleApplicationRequest{
		DeviceID: d.DeviceID, ApplicationID: app.ApplicationID, IsInstalled: false,
	})
	require.NoError(t, err)

	assert.False(t, resp.Assignment.IsInstalled)
	cmd, err := env.commands.GetCommand(ctx, resp.CommandID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandActionUninstallApp, cmd.Action)

	// 卸载后的分配仍在清单里，配置合成时 remove=true 下发
	assignments, err := env.apps.ListForDevice(ctx, d.DeviceID)
	require.NoError(t, err)
	found := false
	for _, a := range assignments {
		if a.Application.PackageName == "com.spotify.music" {
			found = true
			assert.False(t, a.IsInstalled)
		}
	}
	assert.True(t, found)
}

func TestToggleForDevice_UnknownTargets(t *testing.T) {
	env, svc := newApplicationService(t)
	ctx := context.Background()
	d := env.enroll(t, "123456789012345")

	_, err := svc.ToggleForDevice(ctx, ToggleApplicationRequest{
		DeviceID: "missing", ApplicationID: "x", IsInstalled: true,
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.ToggleForDevice(ctx, ToggleApplicationRequest{
		DeviceID: d.DeviceID, ApplicationID: "missing", IsInstalled: true,
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
