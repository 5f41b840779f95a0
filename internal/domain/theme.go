package domain

// 主题相关的 system_settings 键
const (
	SettingThemeBackgroundColor = "theme_background_color"
	SettingThemeTextColor       = "theme_text_color"
	SettingThemeBackgroundImage = "theme_background_image"
	SettingThemeBackgroundMode  = "theme_background_mode"
)

// 背景模式
const (
	ThemeModeColor = "color"
	ThemeModeImage = "image"
)

// ThemeSettings 面板配置的 launcher 主题
// Mode 为 image 时 BackgroundImageURL 会扇出到配置负载的所有背景别名键。
type ThemeSettings struct {
	BackgroundColor    string `json:"backgroundColor"`
	TextColor          string `json:"textColor"`
	BackgroundImageURL string `json:"backgroundImageUrl"`
	Mode               string `json:"mode"`
}

// DefaultThemeSettings 未配置时的默认主题
func DefaultThemeSettings() ThemeSettings {
	return ThemeSettings{
		BackgroundColor:    "#000000",
		TextColor:          "#ffffff",
		BackgroundImageURL: "",
		Mode:               ThemeModeColor,
	}
}
