// MODUL: config_test
// ZWECK: Tests fuer die Environment-Konfiguration
// INPUT: Gesetzte Environment-Variablen
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine (t.Setenv raeumt auf)
// ABHAENGIGKEITEN: testing, log/slog

package envconfig

import (
	"log/slog"
	"testing"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value string
		want  string
	}{
		"empty":               {"", "127.0.0.1:7858"},
		"only address":        {"1.2.3.4", "1.2.3.4:7858"},
		"only port":           {":1234", "127.0.0.1:1234"},
		"address and port":    {"1.2.3.4:1234", "1.2.3.4:1234"},
		"hostname":            {"example.com", "example.com:7858"},
		"hostname and port":   {"example.com:1234", "example.com:1234"},
		"zero port":           {":0", "127.0.0.1:0"},
		"too large port":      {":66000", "127.0.0.1:7858"},
		"text port":           {":abc", "127.0.0.1:7858"},
		"quoted":              {"\"1.2.3.4\"", "1.2.3.4:7858"},
		"ipv6 localhost":      {"[::1]", "[::1]:7858"},
		"ipv6 with port":      {"[::1]:1234", "[::1]:1234"},
		"extra space":         {" 1.2.3.4 ", "1.2.3.4:7858"},
		"http":                {"http://1.2.3.4", "1.2.3.4:80"},
		"http with port":      {"http://1.2.3.4:4321", "1.2.3.4:4321"},
		"https":               {"https://1.2.3.4", "1.2.3.4:443"},
		"https with port":     {"https://1.2.3.4:4321", "1.2.3.4:4321"},
		"trailing slash":      {"example.com/", "example.com:7858"},
		"trailing slash port": {"example.com:1234/", "example.com:1234"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LATENTFORGE_HOST", tt.value)
			if host := Host(); host.Host != tt.want {
				t.Errorf("LATENTFORGE_HOST=%q: Host = %q, erwartet %q", tt.value, host.Host, tt.want)
			}
		})
	}
}

func TestHostScheme(t *testing.T) {
	t.Setenv("LATENTFORGE_HOST", "https://example.com")
	if host := Host(); host.Scheme != "https" {
		t.Errorf("Scheme = %q, erwartet \"https\"", host.Scheme)
	}

	t.Setenv("LATENTFORGE_HOST", "example.com")
	if host := Host(); host.Scheme != "http" {
		t.Errorf("Scheme = %q, erwartet \"http\"", host.Scheme)
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("LATENTFORGE_ORIGINS", "")
	origins := AllowedOrigins()

	contains := func(want string) bool {
		for _, o := range origins {
			if o == want {
				return true
			}
		}
		return false
	}
	for _, want := range []string{"http://localhost", "https://127.0.0.1", "http://localhost:*", "app://*"} {
		if !contains(want) {
			t.Errorf("Standard-Origin %q fehlt", want)
		}
	}

	t.Setenv("LATENTFORGE_ORIGINS", "http://10.0.0.1,https://example.com")
	origins = AllowedOrigins()
	if origins[0] != "http://10.0.0.1" || origins[1] != "https://example.com" {
		t.Errorf("Konfigurierte Origins stehen nicht vorne: %v", origins[:2])
	}
}

func TestModels(t *testing.T) {
	t.Setenv("LATENTFORGE_MODELS", "/tmp/modelle")
	if got := Models(); got != "/tmp/modelle" {
		t.Errorf("Models() = %q, erwartet \"/tmp/modelle\"", got)
	}

	t.Setenv("LATENTFORGE_MODELS", "")
	if got := Models(); got == "" {
		t.Error("Models() ohne Variable darf nicht leer sein")
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"true":  slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
	}
	for value, want := range cases {
		t.Setenv("LATENTFORGE_DEBUG", value)
		if got := LogLevel(); got != want {
			t.Errorf("LATENTFORGE_DEBUG=%q: LogLevel = %v, erwartet %v", value, got, want)
		}
	}
}

func TestVar(t *testing.T) {
	cases := map[string]string{
		"wert":       "wert",
		"\"wert\"":   "wert",
		"'wert'":     "wert",
		"  wert  ":   "wert",
		" \"wert\" ": "wert",
	}
	for value, want := range cases {
		t.Setenv("LATENTFORGE_TEST", value)
		if got := Var("LATENTFORGE_TEST"); got != want {
			t.Errorf("Var(%q) = %q, erwartet %q", value, got, want)
		}
	}
}
