package codec

import "github.com/CaioWing/clientforge/internal/domain"

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ScopePolicy selects which settings scope a feature group is written to.
type ScopePolicy string

const (
	ScopeDefault  ScopePolicy = "default"
	ScopeOverride ScopePolicy = "override"
)

type ApproveMode string

const (
	ApprovePassword      ApproveMode = "password"
	ApproveClick         ApproveMode = "click"
	ApprovePasswordClick ApproveMode = "password-click"
)

type AccessMode string

const (
	AccessCustom AccessMode = "custom"
	AccessFull   AccessMode = "full"
	AccessView   AccessMode = "view"
)

// Permissions are the per-feature toggles routed into the permissions scope.
type Permissions struct {
	Keyboard      bool
	Clipboard     bool
	FileTransfer  bool
	Audio         bool
	TCPTunneling  bool
	RemoteRestart bool
	Recording     bool
	BlockingInput bool
	RemoteModify  bool
	Printer       bool
	Camera        bool
	Terminal      bool
}

// Options is the validated option set a build is requested with. Every
// enumerated field is expected to already hold one of its declared values.
type Options struct {
	Platform  domain.Platform
	Version   string
	DelayFix  bool
	ExeName   string
	AppName   string
	Direction domain.Direction

	DisableInstallation bool
	DisableSettings     bool

	ServerHost   string
	APIServer    string
	Key          string
	URLLink      string
	DownloadLink string
	CompanyName  string

	Theme       Theme
	ThemePolicy ScopePolicy

	ApproveMode       ApproveMode
	PermanentPassword string
	DenyLAN           bool
	EnableDirectIP    bool
	AutoClose         bool

	PermissionsPolicy ScopePolicy
	AccessMode        AccessMode
	Permissions       Permissions
	HideCM            bool
	RemoveWallpaper   bool

	DefaultManual  string
	OverrideManual string

	CycleMonitor           bool
	XOffline               bool
	RemoveNewVersionNotif  bool
	HidePassword           bool
	HideMenuBar            bool
	RemoveTopNotice        bool
	PasswordSecurityLength bool
}

// DefaultOptions mirrors the initial values of the submission form.
func DefaultOptions() Options {
	return Options{
		Platform:          domain.PlatformWindows64,
		Version:           "1.4.4",
		DelayFix:          true,
		Direction:         domain.DirectionBoth,
		Theme:             ThemeSystem,
		ThemePolicy:       ScopeDefault,
		ApproveMode:       ApprovePasswordClick,
		AutoClose:         true,
		PermissionsPolicy: ScopeDefault,
		AccessMode:        AccessCustom,
		Permissions: Permissions{
			Keyboard:      true,
			Clipboard:     true,
			FileTransfer:  true,
			TCPTunneling:  true,
			RemoteRestart: true,
			Recording:     true,
			BlockingInput: true,
			Camera:        true,
			Terminal:      true,
		},
		XOffline:        true,
		RemoveTopNotice: true,
	}
}
