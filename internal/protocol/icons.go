package protocol

import "strings"

// DefaultIcon 没有可用图标时下发的占位标识，launcher 端解析为内置图标
const DefaultIcon = "android"

// builtinIcons 常见包名到静态图标路径的映射
var builtinIcons = map[string]string{
	"com.whatsapp":                      "/icons/whatsapp.png",
	"com.facebook.katana":               "/icons/facebook.png",
	"com.google.android.keep":           "/icons/keep.png",
	"com.google.android.gm":             "/icons/gmail.png",
	"com.android.chrome":                "/icons/chrome.png",
	"com.instagram.android":             "/icons/instagram.png",
	"com.zhiliaoapp.musically":          "/icons/tiktok.png",
	"com.google.android.apps.maps":      "/icons/maps.png",
	"org.telegram.messenger":            "/icons/telegram.png",
	"com.microsoft.teams":               "/icons/teams.png",
	"com.spotify.music":                 "/icons/spotify.png",
	"com.google.android.youtube":        "/icons/youtube.png",
	"com.google.android.dialer":         "/icons/phone.png",
	"com.android.mms":                   "/icons/messages.png",
	"com.android.camera2":               "/icons/camera.png",
	"com.android.gallery3d":             "/icons/gallery.png",
	"com.google.android.apps.messaging": "/icons/messages.png",
	"com.linkedin.android":              "/icons/linkedin.png",
	"com.microsoft.office.officehubrow": "/icons/office.png",
	"com.google.android.apps.photos":    "/icons/photos.png",
	"com.google.android.contacts":       "/icons/contacts.png",
}

// ResolveIcon 选取应用图标并保证为绝对地址
// 优先级: 绝对 iconUrl > 内置映射 > 相对 iconUrl > 占位标识
func ResolveIcon(pkg, iconURL, baseURL string) string {
	if isAbsoluteURL(iconURL) {
		return iconURL
	}
	candidate := builtinIcons[pkg]
	if candidate == "" {
		candidate = iconURL
	}
	if candidate == "" {
		return DefaultIcon
	}
	return AbsoluteURL(candidate, baseURL)
}

// AbsoluteURL 把相对路径改写为基于服务地址的绝对地址
func AbsoluteURL(path, baseURL string) string {
	if path == "" || isAbsoluteURL(path) {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(baseURL, "/") + path
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
