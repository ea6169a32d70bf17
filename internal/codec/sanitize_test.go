package codec

import "testing"

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"My App!":         "My_App_",
		"":                DefaultName,
		"   ":             DefaultName,
		"résumé":          DefaultName,
		"client-1.2":      "client-1_2",
		"  padded  name ": "padded_name",
		"tab\there":       "tab_here",
		"../../etc":       "______etc",
		"ok_name":         "ok_name",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFilename_Idempotent(t *testing.T) {
	inputs := []string{
		"My App!", "", " ", "a  b", "a\t\nb", "x/y\\z", "名前", "--", "__init__",
		"a!b@c#d$", " leading", "trailing ", "mixed - dash", "\x00null",
	}
	for _, in := range inputs {
		once := SanitizeFilename(in)
		if twice := SanitizeFilename(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSanitizeAppName(t *testing.T) {
	if got := SanitizeAppName(""); got != DefaultName {
		t.Fatalf("expected default, got %q", got)
	}
	if got := SanitizeAppName("Ünicode"); got != DefaultName {
		t.Fatalf("expected default for non-ASCII, got %q", got)
	}
	if got := SanitizeAppName("Acme Remote"); got != "Acme Remote" {
		t.Fatalf("expected name kept, got %q", got)
	}
}
