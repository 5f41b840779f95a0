package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

func decodeAdmin(t *testing.T, body []byte) AdminResult {
	t.Helper()
	var result AdminResult
	require.NoError(t, json.Unmarshal(body, &result))
	return result
}

func TestCreateDevice_API(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/devices",
		`{"name":"Depo Tableti","model":"Galaxy Tab A8","osVersion":"13","imei":"123456789012345"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	result := decodeAdmin(t, w.Body.Bytes())
	assert.True(t, result.Success)

	data := result.Data.(map[string]any)
	assert.Equal(t, "Depo Tableti", data["name"])
	assert.Equal(t, "123456789012345", data["imei"])
	assert.Equal(t, "OFFLINE", data["status"])

	// 同 IMEI 再建 400
	w = env.do(t, http.MethodPost, "/api/devices",
		`{"name":"Kopya","model":"Galaxy Tab A8","osVersion":"13","imei":"123456789012345"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "imei already in use", decodeAdmin(t, w.Body.Bytes()).Error)
}

func TestCreateDevice_MissingFields(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/devices", `{"name":"Eksik"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decodeAdmin(t, w.Body.Bytes()).Success)
}

func TestListDevices_API(t *testing.T) {
	env := newAPIEnv(t)
	env.enrollDevice(t, "111111111111111")
	env.enrollDevice(t, "222222222222222")

	w := env.do(t, http.MethodGet, "/api/devices?status=ONLINE&page=1&size=10", "")

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeAdmin(t, w.Body.Bytes())
	require.NotNil(t, result.Total)
	assert.Equal(t, 2, *result.Total)
}

func TestIssueCommand_API(t *testing.T) {
	env := newAPIEnv(t)
	d := env.enrollDevice(t, "123456789012345")

	w := env.do(t, http.MethodPost, "/api/devices/"+d.DeviceID+"/commands", `{"action":"lock"}`)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeAdmin(t, w.Body.Bytes())
	data := result.Data.(map[string]any)
	assert.Equal(t, domain.CommandActionLock, data["action"])
	assert.Equal(t, domain.CommandStatusPending, data["status"])

	// 未知动词 400
	w = env.do(t, http.MethodPost, "/api/devices/"+d.DeviceID+"/commands", `{"action":"explode"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleApp_API(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()
	d := env.enrollDevice(t, "123456789012345")

	app, err := env.apps.UpsertByPackage(ctx, &domain.Application{
		Name:        "Spotify",
		PackageName: "com.spotify.music",
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost,
		"/api/devices/"+d.DeviceID+"/apps/"+app.ApplicationID+"/toggle",
		`{"isInstalled":true}`)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeAdmin(t, w.Body.Bytes())
	assert.Equal(t, "application installed", result.Message)

	data := result.Data.(map[string]any)
	assert.Equal(t, true, data["isInstalled"])
	assert.NotEmpty(t, data["commandId"])

	// 安装命令已入队
	pending, err := env.commands.ListPending(ctx, d.DeviceID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.CommandActionInstallApp, pending[0].Action)
}

func TestDeleteDevice_API(t *testing.T) {
	env := newAPIEnv(t)
	d := env.enrollDevice(t, "123456789012345")

	w := env.do(t, http.MethodDelete, "/api/devices/"+d.DeviceID, "")

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeAdmin(t, w.Body.Bytes())
	data := result.Data.(map[string]any)
	assert.Equal(t, d.DeviceID, data["deviceId"])

	w = env.do(t, http.MethodGet, "/api/devices/"+d.DeviceID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterAndLookupApplication_API(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/applications",
		`{"name":"Spotify","packageName":"com.spotify.music","version":"8.9"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/applications/lookup?packageName=com.spotify.music", "")
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeAdmin(t, w.Body.Bytes())
	data := result.Data.(map[string]any)
	assert.Equal(t, "Spotify", data["name"])

	w = env.do(t, http.MethodGet, "/api/applications/lookup?packageName=com.missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestThemeSettings_API(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/api/settings/theme", "")
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeAdmin(t, w.Body.Bytes())
	data := result.Data.(map[string]any)
	assert.Equal(t, "#000000", data["backgroundColor"])

	w = env.do(t, http.MethodPut, "/api/settings/theme", `{"backgroundColor":"#1a2b3c"}`)
	require.Equal(t, http.StatusOK, w.Code)
	result = decodeAdmin(t, w.Body.Bytes())
	data = result.Data.(map[string]any)
	assert.Equal(t, "#1a2b3c", data["backgroundColor"])
	assert.Equal(t, "#ffffff", data["textColor"])
}
