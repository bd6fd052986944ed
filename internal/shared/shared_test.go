package shared

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "sub second", d: 300 * time.Millisecond, want: "0s"},
		{name: "seconds", d: 42 * time.Second, want: "42s"},
		{name: "minutes", d: 3*time.Minute + 5*time.Second, want: "3m5s"},
		{name: "hours", d: 2*time.Hour + 1*time.Second, want: "2h0m1s"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
		err  bool
	}{
		{in: "", want: log.InfoLevel},
		{in: "INFO", want: log.InfoLevel},
		{in: "debug", want: log.DebugLevel},
		{in: " warn ", want: log.WarnLevel},
		{in: "loud", err: true},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIDs(t *testing.T) {
	if id := GenerateID(); len(id) != 36 {
		t.Errorf("expected 36 char uuid, got %q", id)
	}

	token := GenerateToken()
	if len(token) != 32 || strings.Contains(token, "-") {
		t.Errorf("expected 32 char dashless token, got %q", token)
	}
	if token == GenerateToken() {
		t.Error("tokens should be unique")
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "plexlist.log")
	logger, f, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}
	defer f.Close()

	logger.Info("hello", "key", "value")
}

func TestOpenBrowser_UnsupportedPlatform(t *testing.T) {
	original := getRuntime
	getRuntime = func() string { return "plan9" }
	defer func() { getRuntime = original }()

	err := OpenBrowser("http://localhost:8080/")
	if err == nil || !strings.Contains(err.Error(), "unsupported platform: plan9") {
		t.Errorf("expected unsupported platform error, got %v", err)
	}
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		addr    string
		want    string
		wantErr bool
	}{
		{"0.0.0.0:8080", "http://localhost:8080/", false},
		{"[::]:9000", "http://localhost:9000/", false},
		{":8080", "http://localhost:8080/", false},
		{"127.0.0.1:8080", "http://127.0.0.1:8080/", false},
		{"[::1]:8080", "http://[::1]:8080/", false},
		{"plex.local:80", "http://plex.local:80/", false},
		{"no-port", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := LocalURL(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LocalURL(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LocalURL(%q) = %q, want %q", tt.addr, got, tt.want)
			}
		})
	}
}
