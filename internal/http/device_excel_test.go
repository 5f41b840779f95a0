package httpapi

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportDevices_XLSX(t *testing.T) {
	env := newAPIEnv(t)
	env.enrollDevice(t, "123456789012345")

	w := env.do(t, http.MethodGet, "/api/devices/export", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "devices.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Devices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, DeviceExportHeader, rows[0][:len(DeviceExportHeader)])

	// 数据行带上运行状态列
	assert.Equal(t, "Pixel 7", rows[1][0])
	assert.Equal(t, "123456789012345", rows[1][4])
	assert.Equal(t, "ONLINE", rows[1][8])
}

func TestImportTemplate_HeaderOnly(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/api/devices/import-template", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "device-import-template.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Devices")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, DeviceImportHeader, rows[0][:len(DeviceImportHeader)])
}
