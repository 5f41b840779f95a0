package protocol

import (
	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// SynthesizeInput 合成配置所需的全部状态，纯函数输入
type SynthesizeInput struct {
	Device        *domain.Device
	Number        string // 请求路径里的设备号，原样回填 newNumber
	Assignments   []*domain.DeviceApplicationDetail
	Theme         domain.ThemeSettings
	BaseURL       string // 如 http://192.168.1.10:3001，来自请求 Host
	KeepaliveTime int
}

// Synthesize 由设备状态、应用分配与主题合成 launcher 配置负载
// 同样的输入必须产出同样的字节序列，响应签名依赖这一点。
func Synthesize(in SynthesizeInput) *ConfigPayload {
	theme := in.Theme
	bgImage := AbsoluteURL(theme.BackgroundImageURL, in.BaseURL)
	hasImage := bgImage != ""
	// background 别名键只在 image 模式下扇出
	fanOut := ""
	if hasImage && theme.Mode == domain.ThemeModeImage {
		fanOut = bgImage
	}

	background := theme.BackgroundColor
	if hasImage {
		background = bgImage
		if fanOut != "" {
			background = fanOut
		}
	}

	kiosk := in.Device.KioskMode

	p := &ConfigPayload{
		NewNumber:          in.Number,
		BackgroundColor:    theme.BackgroundColor,
		TextColor:          theme.TextColor,
		Background:         background,
		Text:               theme.TextColor,
		BackgroundImageURL: firstNonEmpty(fanOut, bgImage),
		WallpaperURL:       firstNonEmpty(fanOut, bgImage),
		Wallpaper:          firstNonEmpty(fanOut, bgImage),
		BackgroundImage:    fanOut,
		BackgroundDataURL:  "",
		UseBackgroundImage: hasImage,
		Password:           "",
		Phone:              nullOrEmpty(in.Device.PhoneNumber.Valid, in.Device.PhoneNumber.String),
		IMEI:               in.Number,
		IconSize:           100,
		Title:              "MDM Launcher",
		DisplayStatus:      true,
		GPS:                true,
		Bluetooth:          true,
		WiFi:               true,
		MobileData:         true,
		KioskMode:          kiosk,
		MainApp:            "",
		Applications:       buildAppDescriptors(in.Assignments, in.BaseURL),
		Files:              []string{},
		Restrictions:       "",
		SystemUpdateType:   0,
		SystemUpdateFrom:   "",
		SystemUpdateTo:     "",
		AllowedClasses:     "",
		AllowedPackages:    "",
		DisallowedPackages: "",
		PushOptions:        "polling",
		KeepaliveTime:      in.KeepaliveTime,
		RequestUpdates:     "auto",
		DisableLocation:    false,
		AppPermissions:     "askall",
		UsbStorage:         false,
		AutoBrightness:     false,
		Brightness:         50,
		ManageTimeout:      false,
		Timeout:            0,
		ManageVolume:       false,
		Volume:             50,
		PasswordMode:       "none",
		TimeZone:           "",
		Orientation:        0,
		KioskHome:          kiosk,
		KioskRecents:       kiosk,
		KioskNotifications: kiosk,
		KioskSystemInfo:    kiosk,
		KioskKeyguard:      kiosk,
		KioskLockButtons:   kiosk,
		Description:        "",
		Custom1:            "",
		Custom2:            "",
		Custom3:            "",
		RunDefaultLauncher: false,
		NewServerURL:       in.BaseURL,
		Permissive:         false,
		KioskExit:          !kiosk,
		DisableScreenshots: false,
		AutostartForeground: false,
		ShowWifi:           false,
		AppName:            "MDM Launcher",
		Vendor:             "MDM System",
	}

	if in.Device.IMEI.Valid && in.Device.IMEI.String != "" {
		p.IMEI = in.Device.IMEI.String
	}
	if kiosk {
		p.AllowedPackages = in.Device.EffectiveLauncherPackage()
	}
	return p
}

// buildAppDescriptors 分配清单映射为 launcher 应用描述
// remove 字段驱动卸载：未安装的分配仍会下发，由设备侧执行移除。
func buildAppDescriptors(assignments []*domain.DeviceApplicationDetail, baseURL string) []AppDescriptor {
	out := make([]AppDescriptor, 0, len(assignments))
	for _, a := range assignments {
		app := a.Application
		code := 1
		if app.VersionCode.Valid && app.VersionCode.Int64 > 0 {
			code = int(app.VersionCode.Int64)
		}
		out = append(out, AppDescriptor{
			Type:            "app",
			Name:            app.Name,
			Pkg:             app.PackageName,
			Version:         a.EffectiveVersion(),
			Code:            code,
			URL:             nullOrEmpty(app.DownloadURL.Valid, app.DownloadURL.String),
			UseKiosk:        false,
			ShowIcon:        true,
			Remove:          !a.IsInstalled,
			RunAfterInstall: a.IsInstalled,
			RunAtBoot:       false,
			SkipVersion:     false,
			IconText:        app.Name, // 完整名称，避免客户端缩写成两个字母
			Icon:            ResolveIcon(app.PackageName, nullOrEmpty(app.IconURL.Valid, app.IconURL.String), baseURL),
			ScreenOrder:     0,
			KeyCode:         0,
			Bottom:          false,
			LongTap:         false,
			Intent:          "",
		})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func nullOrEmpty(valid bool, s string) string {
	if valid {
		return s
	}
	return ""
}
