package codec

import (
	"strings"

	"github.com/CaioWing/clientforge/internal/domain"
)

const (
	yes = "Y"
	no  = "N"
)

func flag(b bool) string {
	if b {
		return yes
	}
	return no
}

// Settings maps a client setting name to its serialized value.
type Settings map[string]string

// Descriptor is the settings document consumed by the external builder.
// Top-level fields always apply; DefaultSettings may be changed by the end
// user, OverrideSettings are forced.
type Descriptor struct {
	ConnType            string   `json:"conn-type"`
	DisableInstallation string   `json:"disable-installation,omitempty"`
	DisableSettings     string   `json:"disable-settings,omitempty"`
	AppName             string   `json:"app-name,omitempty"`
	Password            string   `json:"password,omitempty"`
	EnableLANDiscovery  string   `json:"enable-lan-discovery"`
	AllowAutoDisconnect string   `json:"allow-auto-disconnect"`
	OverrideSettings    Settings `json:"override-settings"`
	DefaultSettings     Settings `json:"default-settings"`
}

func (d *Descriptor) scope(p ScopePolicy) Settings {
	if p == ScopeOverride {
		return d.OverrideSettings
	}
	return d.DefaultSettings
}

// BuildDescriptor assembles the settings document for opts. appName must
// already be sanitized.
func BuildDescriptor(opts Options, appName string) *Descriptor {
	d := &Descriptor{
		ConnType:            string(opts.Direction),
		EnableLANDiscovery:  flag(!opts.DenyLAN),
		AllowAutoDisconnect: flag(opts.AutoClose),
		OverrideSettings:    Settings{},
		DefaultSettings:     Settings{},
	}
	if opts.DisableInstallation {
		d.DisableInstallation = yes
	}
	if opts.DisableSettings {
		d.DisableSettings = yes
	}
	if strings.ToLower(appName) != DefaultName {
		d.AppName = appName
	}
	if opts.PermanentPassword != "" {
		d.Password = opts.PermanentPassword
	}

	if opts.Theme != ThemeSystem && opts.Theme != "" {
		target := d.scope(opts.ThemePolicy)
		// The 32-bit Windows client only understands the legacy dark theme switch.
		if opts.Platform == domain.PlatformWindows32 {
			target["allow-darktheme"] = flag(opts.Theme == ThemeDark)
		} else {
			target["theme"] = string(opts.Theme)
		}
	}

	perm := d.scope(opts.PermissionsPolicy)
	perm["access-mode"] = string(opts.AccessMode)
	if opts.HideCM {
		perm["verification-method"] = "use-permanent-password"
	} else {
		perm["verification-method"] = "use-both-passwords"
	}
	perm["approve-mode"] = string(opts.ApproveMode)
	perm["allow-hide-cm"] = flag(opts.HideCM)
	perm["allow-remove-wallpaper"] = flag(opts.RemoveWallpaper)
	perm["direct-server"] = flag(opts.EnableDirectIP)
	for key, on := range permissionFlags(opts) {
		perm[key] = flag(on)
	}

	mergeManual(d.DefaultSettings, opts.DefaultManual)
	mergeManual(d.OverrideSettings, opts.OverrideManual)
	return d
}

func permissionFlags(opts Options) map[string]bool {
	p := opts.Permissions
	return map[string]bool{
		"enableKeyboard":      p.Keyboard,
		"enableClipboard":     p.Clipboard,
		"enableFileTransfer":  p.FileTransfer,
		"enableAudio":         p.Audio,
		"enableTCP":           p.TCPTunneling,
		"enableRemoteRestart": p.RemoteRestart,
		"enableRecording":     p.Recording,
		"enableBlockingInput": p.BlockingInput,
		"enableRemoteModi":    p.RemoteModify,
		"removeWallpaper":     opts.RemoveWallpaper,
		"enablePrinter":       p.Printer,
		"enableCamera":        p.Camera,
		"enableTerminal":      p.Terminal,
	}
}

// mergeManual applies key=value lines onto dst. Lines without '=' or with an
// empty key are ignored; later lines win.
func mergeManual(dst Settings, text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for _, line := range strings.Split(text, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		dst[k] = strings.TrimSpace(v)
	}
}
