package public

import (
	"net/http"
	"strings"

	"github.com/CaioWing/clientforge/internal/codec"
	"github.com/CaioWing/clientforge/internal/domain"
)

var supportedVersions = map[string]bool{
	"master": true,
	"1.4.4":  true, "1.4.3": true, "1.4.2": true, "1.4.1": true, "1.4.0": true,
	"1.3.9": true, "1.3.8": true, "1.3.7": true, "1.3.6": true, "1.3.5": true,
	"1.3.4": true, "1.3.3": true,
}

// formReader reads a submitted build form field by field, collecting every
// problem instead of stopping at the first one.
type formReader struct {
	r    *http.Request
	verr *domain.ValidationError
}

func (f *formReader) text(field string) string {
	return strings.TrimSpace(f.r.FormValue(field))
}

// choice returns the submitted value, def when the field is absent, and
// records an error when the value is not one of allowed.
func (f *formReader) choice(field, def string, allowed ...string) string {
	v := f.text(field)
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	f.verr.Add(field, "select a valid choice")
	return def
}

// check follows HTML checkbox semantics: an absent field is unchecked.
func (f *formReader) check(field string) bool {
	switch strings.ToLower(f.text(field)) {
	case "on", "true", "1", "y", "yes":
		return true
	}
	return false
}

// parseOptions maps the submission form onto codec.Options.
func parseOptions(r *http.Request) (codec.Options, *domain.ValidationError) {
	f := &formReader{r: r, verr: domain.NewValidationError()}
	opts := codec.DefaultOptions()

	opts.Platform = domain.Platform(f.choice("platform", string(opts.Platform),
		string(domain.PlatformWindows64), string(domain.PlatformWindows32),
		string(domain.PlatformLinux), string(domain.PlatformAndroid), string(domain.PlatformMacOS)))

	if v := f.text("version"); v != "" {
		if supportedVersions[v] {
			opts.Version = v
		} else {
			f.verr.Add("version", "select a valid choice")
		}
	}
	opts.DelayFix = f.check("delayFix")

	opts.ExeName = f.text("exename")
	if opts.ExeName == "" {
		f.verr.Add("exename", "this field is required")
	}
	opts.AppName = f.text("appname")
	opts.Direction = domain.Direction(f.choice("direction", string(opts.Direction),
		string(domain.DirectionIncoming), string(domain.DirectionOutgoing), string(domain.DirectionBoth)))

	opts.DisableInstallation = f.choice("installation", "installationY", "installationY", "installationN") == "installationN"
	opts.DisableSettings = f.choice("settings", "settingsY", "settingsY", "settingsN") == "settingsN"

	opts.ServerHost = f.text("serverIP")
	opts.APIServer = f.text("apiServer")
	opts.Key = f.text("key")
	opts.URLLink = f.text("urlLink")
	opts.DownloadLink = f.text("downloadLink")
	opts.CompanyName = f.text("compname")

	opts.Theme = codec.Theme(f.choice("theme", string(opts.Theme),
		string(codec.ThemeLight), string(codec.ThemeDark), string(codec.ThemeSystem)))
	opts.ThemePolicy = scopePolicy(f, "themeDorO", opts.ThemePolicy)

	opts.ApproveMode = codec.ApproveMode(f.choice("passApproveMode", string(opts.ApproveMode),
		string(codec.ApprovePassword), string(codec.ApproveClick), string(codec.ApprovePasswordClick)))
	// passwords are taken verbatim
	opts.PermanentPassword = r.FormValue("permanentPassword")
	opts.DenyLAN = f.check("denyLan")
	opts.EnableDirectIP = f.check("enableDirectIP")
	opts.AutoClose = f.check("autoClose")

	opts.PermissionsPolicy = scopePolicy(f, "permissionsDorO", opts.PermissionsPolicy)
	opts.AccessMode = codec.AccessMode(f.choice("permissionsType", string(opts.AccessMode),
		string(codec.AccessCustom), string(codec.AccessFull), string(codec.AccessView)))
	opts.Permissions = codec.Permissions{
		Keyboard:      f.check("enableKeyboard"),
		Clipboard:     f.check("enableClipboard"),
		FileTransfer:  f.check("enableFileTransfer"),
		Audio:         f.check("enableAudio"),
		TCPTunneling:  f.check("enableTCP"),
		RemoteRestart: f.check("enableRemoteRestart"),
		Recording:     f.check("enableRecording"),
		BlockingInput: f.check("enableBlockingInput"),
		RemoteModify:  f.check("enableRemoteModi"),
		Printer:       f.check("enablePrinter"),
		Camera:        f.check("enableCamera"),
		Terminal:      f.check("enableTerminal"),
	}
	opts.HideCM = f.check("hidecm")
	opts.RemoveWallpaper = f.check("removeWallpaper")

	opts.DefaultManual = r.FormValue("defaultManual")
	opts.OverrideManual = r.FormValue("overrideManual")

	opts.CycleMonitor = f.check("cycleMonitor")
	opts.XOffline = f.check("xOffline")
	opts.RemoveNewVersionNotif = f.check("removeNewVersionNotif")
	opts.HidePassword = f.check("hidePassword")
	opts.HideMenuBar = f.check("hideMenuBar")
	opts.RemoveTopNotice = f.check("removeTopNotice")
	opts.PasswordSecurityLength = f.check("password_security_length")

	if f.verr.HasErrors() {
		return opts, f.verr
	}
	return opts, nil
}

func scopePolicy(f *formReader, field string, def codec.ScopePolicy) codec.ScopePolicy {
	return codec.ScopePolicy(f.choice(field, string(def), string(codec.ScopeDefault), string(codec.ScopeOverride)))
}
