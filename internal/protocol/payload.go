package protocol

// ConfigPayload launcher 配置下发结构
// 字段顺序即 JSON 序列化顺序，签名依赖该顺序，勿随意调整
type ConfigPayload struct {
	NewNumber          string          `json:"newNumber"`
	BackgroundColor    string          `json:"backgroundColor"`
	TextColor          string          `json:"textColor"`
	Background         string          `json:"background"`
	Text               string          `json:"text"`
	BackgroundImageURL string          `json:"backgroundImageUrl"`
	WallpaperURL       string          `json:"wallpaperUrl"`
	Wallpaper          string          `json:"wallpaper"`
	BackgroundImage    string          `json:"backgroundImage"`
	BackgroundDataURL  string          `json:"backgroundDataUrl"`
	UseBackgroundImage bool            `json:"useBackgroundImage"`
	Password           string          `json:"password"`
	Phone              string          `json:"phone"`
	IMEI               string          `json:"imei"`
	IconSize           int             `json:"iconSize"`
	Title              string          `json:"title"`
	DisplayStatus      bool            `json:"displayStatus"`
	GPS                bool            `json:"gps"`
	Bluetooth          bool            `json:"bluetooth"`
	WiFi               bool            `json:"wifi"`
	MobileData         bool            `json:"mobileData"`
	KioskMode          bool            `json:"kioskMode"`
	MainApp            string          `json:"mainApp"`
	LockStatusBar      bool            `json:"lockStatusBar"`
	LockVolume         bool            `json:"lockVolume"`
	LockPower          bool            `json:"lockPower"`
	LockHome           bool            `json:"lockHome"`
	LockBack           bool            `json:"lockBack"`
	LockMenu           bool            `json:"lockMenu"`
	LockRecents        bool            `json:"lockRecents"`
	LockNotifications  bool            `json:"lockNotifications"`
	LockScreenshots    bool            `json:"lockScreenshots"`
	LockUsb            bool            `json:"lockUsb"`
	LockSafeSettings   bool            `json:"lockSafeSettings"`
	LockDeveloperOptions      bool     `json:"lockDeveloperOptions"`
	LockInstallApps           bool     `json:"lockInstallApps"`
	LockUninstallApps         bool     `json:"lockUninstallApps"`
	LockLocationServices      bool     `json:"lockLocationServices"`
	LockMobileData            bool     `json:"lockMobileData"`
	LockWifi                  bool     `json:"lockWifi"`
	LockBluetooth             bool     `json:"lockBluetooth"`
	LockUsbStorage            bool     `json:"lockUsbStorage"`
	LockSystemUpdate          bool     `json:"lockSystemUpdate"`
	LockFactoryReset          bool     `json:"lockFactoryReset"`
	LockSystemSettings        bool     `json:"lockSystemSettings"`
	LockAppSettings           bool     `json:"lockAppSettings"`
	LockSecuritySettings      bool     `json:"lockSecuritySettings"`
	LockAccessibilitySettings bool     `json:"lockAccessibilitySettings"`
	LockUnknownSources        bool     `json:"lockUnknownSources"`
	Applications       []AppDescriptor `json:"applications"`
	Files              []string        `json:"files"`
	Restrictions       string          `json:"restrictions"`
	SystemUpdateType   int             `json:"systemUpdateType"`
	SystemUpdateFrom   string          `json:"systemUpdateFrom"`
	SystemUpdateTo     string          `json:"systemUpdateTo"`
	AllowedClasses     string          `json:"allowedClasses"`
	AllowedPackages    string          `json:"allowedPackages"`
	DisallowedPackages string          `json:"disallowedPackages"`
	PushOptions        string          `json:"pushOptions"`
	KeepaliveTime      int             `json:"keepaliveTime"`
	RequestUpdates     string          `json:"requestUpdates"`
	DisableLocation    bool            `json:"disableLocation"`
	AppPermissions     string          `json:"appPermissions"`
	UsbStorage         bool            `json:"usbStorage"`
	AutoBrightness     bool            `json:"autoBrightness"`
	Brightness         int             `json:"brightness"`
	ManageTimeout      bool            `json:"manageTimeout"`
	Timeout            int             `json:"timeout"`
	ManageVolume       bool            `json:"manageVolume"`
	Volume             int             `json:"volume"`
	PasswordMode       string          `json:"passwordMode"`
	TimeZone           string          `json:"timeZone"`
	Orientation        int             `json:"orientation"`
	KioskHome          bool            `json:"kioskHome"`
	KioskRecents       bool            `json:"kioskRecents"`
	KioskNotifications bool            `json:"kioskNotifications"`
	KioskSystemInfo    bool            `json:"kioskSystemInfo"`
	KioskKeyguard      bool            `json:"kioskKeyguard"`
	KioskLockButtons   bool            `json:"kioskLockButtons"`
	Description        string          `json:"description"`
	Custom1            string          `json:"custom1"`
	Custom2            string          `json:"custom2"`
	Custom3            string          `json:"custom3"`
	RunDefaultLauncher bool            `json:"runDefaultLauncher"`
	NewServerURL       string          `json:"newServerUrl"`
	Permissive         bool            `json:"permissive"`
	KioskExit          bool            `json:"kioskExit"`
	DisableScreenshots bool            `json:"disableScreenshots"`
	AutostartForeground bool           `json:"autostartForeground"`
	ShowWifi           bool            `json:"showWifi"`
	AppName            string          `json:"appName"`
	Vendor             string          `json:"vendor"`
}

// AppDescriptor launcher 应用清单条目
type AppDescriptor struct {
	Type            string `json:"type"`
	Name            string `json:"name"`
	Pkg             string `json:"pkg"`
	Version         string `json:"version"`
	Code            int    `json:"code"`
	URL             string `json:"url"`
	UseKiosk        bool   `json:"useKiosk"`
	ShowIcon        bool   `json:"showIcon"`
	Remove          bool   `json:"remove"`
	RunAfterInstall bool   `json:"runAfterInstall"`
	RunAtBoot       bool   `json:"runAtBoot"`
	SkipVersion     bool   `json:"skipVersion"`
	IconText        string `json:"iconText"`
	Icon            string `json:"icon"`
	ScreenOrder     int    `json:"screenOrder"`
	KeyCode         int    `json:"keyCode"`
	Bottom          bool   `json:"bottom"`
	LongTap         bool   `json:"longTap"`
	Intent          string `json:"intent"`
}

// PushMessage 通知轮询返回条目
type PushMessage struct {
	MessageType string `json:"messageType"`
	Payload     string `json:"payload"`
}

const (
	MessageTypeShowNotification = "showNotification"
	MessageTypeConfigUpdated    = "configUpdated"
)

// AlarmPayload showNotification 消息体
type AlarmPayload struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	CommandID string `json:"commandId"`
}
