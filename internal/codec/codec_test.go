package codec

import (
	"encoding/base64"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/CaioWing/clientforge/internal/domain"
)

func newTestEncoder() *Encoder {
	return NewEncoder(Defaults{
		ServerHost:   "rs-ny.example.com",
		Key:          "default-key",
		URLLink:      "https://example.com",
		DownloadLink: "https://example.com/download",
		CompanyName:  "Purslane Ltd",
	}, "https://gen.example.com", "upload-secret")
}

func TestEncode_LinuxScenario(t *testing.T) {
	opts := DefaultOptions()
	opts.Platform = domain.PlatformLinux
	opts.ExeName = "My App!"
	opts.AppName = ""
	opts.PermanentPassword = ""

	p, err := newTestEncoder().Encode(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Filename != "My_App_" {
		t.Fatalf("expected filename My_App_, got %q", p.Filename)
	}
	if p.AppName != DefaultName {
		t.Fatalf("expected default app name, got %q", p.AppName)
	}

	raw, err := base64.StdEncoding.DecodeString(p.Custom)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if _, ok := doc["password"]; ok {
		t.Fatal("expected no password key")
	}
	if _, ok := doc["app-name"]; ok {
		t.Fatal("expected no app-name key for the default app name")
	}
	if doc["conn-type"] != "both" {
		t.Fatalf("expected conn-type both, got %v", doc["conn-type"])
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	enc := newTestEncoder()
	variants := []func(*Options){
		func(o *Options) {},
		func(o *Options) {
			o.Theme = ThemeDark
			o.ThemePolicy = ScopeOverride
			o.PermanentPassword = "s3cret&<>"
			o.AppName = "Acme Remote"
		},
		func(o *Options) {
			o.Platform = domain.PlatformWindows32
			o.Theme = ThemeLight
			o.PermissionsPolicy = ScopeOverride
			o.DefaultManual = "a=1\nb = two words\n"
			o.OverrideManual = "c=3"
		},
		func(o *Options) {
			o.DisableInstallation = true
			o.DisableSettings = true
			o.DenyLAN = true
			o.AutoClose = false
			o.HideCM = true
		},
	}

	for i, mutate := range variants {
		opts := DefaultOptions()
		mutate(&opts)

		p, err := enc.Encode(opts)
		if err != nil {
			t.Fatalf("variant %d: unexpected error: %v", i, err)
		}
		decoded, err := DecodeDescriptor(p.Custom)
		if err != nil {
			t.Fatalf("variant %d: decode: %v", i, err)
		}
		if !reflect.DeepEqual(decoded, p.Descriptor) {
			t.Fatalf("variant %d: round trip mismatch:\n got %+v\nwant %+v", i, decoded, p.Descriptor)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	enc := newTestEncoder()
	opts := DefaultOptions()
	opts.DefaultManual = "z=1\ny=2\nx=3"

	first, _ := enc.Encode(opts)
	for i := 0; i < 20; i++ {
		again, _ := enc.Encode(opts)
		if again.Custom != first.Custom {
			t.Fatal("expected identical payloads for identical options")
		}
	}
}

func TestEncode_BooleanSettingsAreYOrN(t *testing.T) {
	opts := DefaultOptions()
	opts.Permissions = Permissions{Keyboard: true, Audio: true}
	opts.RemoveWallpaper = true

	p, err := newTestEncoder().Encode(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := p.Descriptor
	boolKeys := []string{
		"allow-hide-cm", "allow-remove-wallpaper", "direct-server",
		"enableKeyboard", "enableClipboard", "enableFileTransfer", "enableAudio",
		"enableTCP", "enableRemoteRestart", "enableRecording", "enableBlockingInput",
		"enableRemoteModi", "removeWallpaper", "enablePrinter", "enableCamera", "enableTerminal",
	}
	for _, k := range boolKeys {
		v, ok := d.DefaultSettings[k]
		if !ok {
			t.Fatalf("missing key %s", k)
		}
		if v != "Y" && v != "N" {
			t.Fatalf("key %s: expected Y or N, got %q", k, v)
		}
	}
	for _, v := range []string{d.EnableLANDiscovery, d.AllowAutoDisconnect} {
		if v != "Y" && v != "N" {
			t.Fatalf("expected Y or N, got %q", v)
		}
	}
	if d.DefaultSettings["enableAudio"] != "Y" || d.DefaultSettings["enableClipboard"] != "N" {
		t.Fatal("permission flags not mapped to their toggles")
	}
}

func TestBuildDescriptor_ScopeRouting(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = ThemeDark
	opts.ThemePolicy = ScopeOverride
	opts.PermissionsPolicy = ScopeDefault

	d := BuildDescriptor(opts, DefaultName)
	if d.OverrideSettings["theme"] != "dark" {
		t.Fatalf("expected theme in override scope, got %v", d.OverrideSettings)
	}
	if _, ok := d.DefaultSettings["theme"]; ok {
		t.Fatal("theme must appear in exactly one scope")
	}
	if d.DefaultSettings["access-mode"] != "custom" {
		t.Fatal("expected permissions in default scope")
	}
	if _, ok := d.OverrideSettings["access-mode"]; ok {
		t.Fatal("permissions must appear in exactly one scope")
	}
}

func TestBuildDescriptor_SystemThemeOmitted(t *testing.T) {
	d := BuildDescriptor(DefaultOptions(), DefaultName)
	if _, ok := d.DefaultSettings["theme"]; ok {
		t.Fatal("system theme must not emit a theme key")
	}
	if _, ok := d.OverrideSettings["theme"]; ok {
		t.Fatal("system theme must not emit a theme key")
	}
}

func TestBuildDescriptor_Windows32DarkTheme(t *testing.T) {
	opts := DefaultOptions()
	opts.Platform = domain.PlatformWindows32
	opts.Theme = ThemeDark

	d := BuildDescriptor(opts, DefaultName)
	if d.DefaultSettings["allow-darktheme"] != "Y" {
		t.Fatalf("expected allow-darktheme=Y, got %v", d.DefaultSettings)
	}
	if _, ok := d.DefaultSettings["theme"]; ok {
		t.Fatal("32-bit windows must not receive a theme key")
	}
}

func TestBuildDescriptor_HideCMVerification(t *testing.T) {
	opts := DefaultOptions()
	opts.HideCM = true
	d := BuildDescriptor(opts, DefaultName)
	if d.DefaultSettings["verification-method"] != "use-permanent-password" {
		t.Fatalf("unexpected verification method %q", d.DefaultSettings["verification-method"])
	}
}

func TestBuildDescriptor_ManualOverridesMergedLast(t *testing.T) {
	opts := DefaultOptions()
	opts.DefaultManual = "access-mode=full\r\ncustom-key = a=b\nno-equals-line\n=orphan\ncustom-key=last"
	opts.OverrideManual = "enableKeyboard=N"

	d := BuildDescriptor(opts, DefaultName)
	if d.DefaultSettings["access-mode"] != "full" {
		t.Fatalf("manual line must win over first-class option, got %q", d.DefaultSettings["access-mode"])
	}
	if d.DefaultSettings["custom-key"] != "last" {
		t.Fatalf("expected last write to win, got %q", d.DefaultSettings["custom-key"])
	}
	if _, ok := d.DefaultSettings[""]; ok {
		t.Fatal("empty keys must be ignored")
	}
	if d.OverrideSettings["enableKeyboard"] != "N" {
		t.Fatal("override manual line not applied")
	}
}

func TestBuildDescriptor_AppNameAndPassword(t *testing.T) {
	opts := DefaultOptions()
	opts.PermanentPassword = "pw"

	d := BuildDescriptor(opts, "Acme")
	if d.AppName != "Acme" {
		t.Fatalf("expected app-name Acme, got %q", d.AppName)
	}
	if d.Password != "pw" {
		t.Fatal("expected password to be set")
	}

	d = BuildDescriptor(opts, "RustDesk")
	if d.AppName != "" {
		t.Fatal("default app name in any case must not be emitted")
	}
}

func TestEncode_ServerDefaultsAndExtras(t *testing.T) {
	opts := DefaultOptions()
	opts.CompanyName = "A & B"
	opts.Version = "master"

	p, err := newTestEncoder().Encode(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Server.Host != "rs-ny.example.com" || p.Server.Key != "default-key" {
		t.Fatalf("server defaults not applied: %+v", p.Server)
	}
	if p.Server.APIServer != "rs-ny.example.com:21114" {
		t.Fatalf("unexpected api server %q", p.Server.APIServer)
	}

	var extras Extras
	if err := json.Unmarshal([]byte(p.Extras), &extras); err != nil {
		t.Fatalf("extras is not JSON: %v", err)
	}
	if extras.CompanyName != `A \& B` {
		t.Fatalf("expected escaped ampersand, got %q", extras.CompanyName)
	}
	if extras.Version != "master" || extras.GDPro != "true" || extras.UploadToken != "upload-secret" {
		t.Fatalf("unexpected extras: %+v", extras)
	}
	if strings.Contains(p.Extras, "conn-type") {
		t.Fatal("extras must not carry settings document keys")
	}
}

func TestEncode_ExplicitServer(t *testing.T) {
	opts := DefaultOptions()
	opts.ServerHost = "relay.acme.io"
	opts.Key = "k"

	p, _ := newTestEncoder().Encode(opts)
	if p.Server.APIServer != "relay.acme.io:21114" {
		t.Fatalf("expected api server derived from host, got %q", p.Server.APIServer)
	}
}

func TestDecodeDescriptor_Invalid(t *testing.T) {
	if _, err := DecodeDescriptor("%%%"); err == nil {
		t.Fatal("expected error for non-base64 payload")
	}
	if _, err := DecodeDescriptor(base64.StdEncoding.EncodeToString([]byte("[1,2]"))); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}
