// config.go - Konfigurationsfunktionen fuer latentforge.
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (LATENTFORGE_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (LATENTFORGE_ORIGINS)
// - Models: Gibt das Modell-Verzeichnis zurueck (LATENTFORGE_MODELS)
// - LogLevel: Gibt Log-Level zurueck (LATENTFORGE_DEBUG)
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via LATENTFORGE_HOST
// Default: http://127.0.0.1:7858
func Host() *url.URL {
	defaultPort := "7858"

	s := strings.TrimSpace(Var("LATENTFORGE_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}
	if host == "" {
		host = "127.0.0.1"
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via LATENTFORGE_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("LATENTFORGE_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	origins = append(origins,
		"app://*",
		"file://*",
		"vscode-webview://*",
	)

	return origins
}

// Models gibt das Modell-Verzeichnis zurueck
// Konfigurierbar via LATENTFORGE_MODELS
// Default: $HOME/.latentforge/models
func Models() string {
	if s := Var("LATENTFORGE_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".latentforge/models"
	}
	return filepath.Join(home, ".latentforge", "models")
}

// LogLevel gibt das slog-Level zurueck
// Konfigurierbar via LATENTFORGE_DEBUG
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LATENTFORGE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// EnvVar beschreibt eine Konfigurationsvariable fuer die CLI-Doku.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationsvariablen mit Beschreibung zurueck
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"LATENTFORGE_HOST":    {"LATENTFORGE_HOST", Host(), "IP address and port the server listens on"},
		"LATENTFORGE_ORIGINS": {"LATENTFORGE_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"LATENTFORGE_MODELS":  {"LATENTFORGE_MODELS", Models(), "The path to the models directory"},
		"LATENTFORGE_DEBUG":   {"LATENTFORGE_DEBUG", LogLevel(), "Show additional debug information"},
	}
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
