package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nartankaplan/MDM-version3/internal/domain"
	"github.com/nartankaplan/MDM-version3/internal/service"
)

// DeviceImportHeader 导入模板表头（手工建档需要的字段）
var DeviceImportHeader = []string{
	"Name",
	"Model",
	"Brand",
	"OS Version",
	"IMEI",
	"Phone Number",
	"Serial Number",
	"MAC Address",
}

// DeviceExportHeader 导出表头（包含运行状态）
var DeviceExportHeader = []string{
	"Name",
	"Model",
	"Brand",
	"OS Version",
	"IMEI",
	"Phone Number",
	"Serial Number",
	"MAC Address",
	"Status",
	"Battery",
	"Kiosk Mode",
	"Enrolled",
	"Enrollment Date",
	"Last Seen",
}

// ExportDevices GET /api/devices/export
// 设备清单导出为 xlsx
func (h *DeviceHandler) ExportDevices(w http.ResponseWriter, r *http.Request) {
	resp, err := h.deviceService.ListDevices(r.Context(), service.ListDevicesRequest{Size: 10000})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to list devices"))
		return
	}

	data, err := generateDeviceExcel(DeviceExportHeader, resp.Items)
	if err != nil {
		h.logger.Error("device export failed")
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to generate export"))
		return
	}
	writeXLSX(w, "devices.xlsx", data)
}

// ImportTemplate GET /api/devices/import-template
// 只含表头的空模板
func (h *DeviceHandler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := generateDeviceExcel(DeviceImportHeader, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AdminFail("failed to generate template"))
		return
	}
	writeXLSX(w, "device-import-template.xlsx", data)
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// generateDeviceExcel 生成设备清单 Excel 文件
// headers 决定列集合；devices 为空时只产出表头
func generateDeviceExcel(headers []string, devices []*domain.Device) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，出错路径手动 Close

	sheetName := "Devices"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, 20); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, device := range devices {
		row := rowIdx + 2
		for colIdx, header := range headers {
			value := deviceCellValue(device, header)
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func deviceCellValue(d *domain.Device, header string) any {
	switch header {
	case "Name":
		return d.Name
	case "Model":
		return nullStr(d.Model.Valid, d.Model.String)
	case "Brand":
		return nullStr(d.Brand.Valid, d.Brand.String)
	case "OS Version":
		return nullStr(d.OSVersion.Valid, d.OSVersion.String)
	case "IMEI":
		return nullStr(d.IMEI.Valid, d.IMEI.String)
	case "Phone Number":
		return nullStr(d.PhoneNumber.Valid, d.PhoneNumber.String)
	case "Serial Number":
		return nullStr(d.SerialNumber.Valid, d.SerialNumber.String)
	case "MAC Address":
		return nullStr(d.MACAddress.Valid, d.MACAddress.String)
	case "Status":
		return d.Status
	case "Battery":
		if d.Battery.Valid {
			return d.Battery.Int64
		}
		return nil
	case "Kiosk Mode":
		return yesNo(d.KioskMode)
	case "Enrolled":
		return yesNo(d.IsEnrolled)
	case "Enrollment Date":
		if d.EnrollmentDate.Valid {
			return formatExcelTime(d.EnrollmentDate.Time)
		}
		return nil
	case "Last Seen":
		if d.LastSeen.Valid {
			return formatExcelTime(d.LastSeen.Time)
		}
		return nil
	}
	return nil
}

func nullStr(valid bool, s string) string {
	if valid {
		return s
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatExcelTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
