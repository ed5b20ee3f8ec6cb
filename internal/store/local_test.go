package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalSave(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	path, err := local.Save(context.Background(), []byte("png-bytes"), "example.png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(dir, "example.png") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("content = %q", data)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file survived rename")
	}
}

func TestLocalSave_CancelledContext(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := local.Save(ctx, []byte("x"), "x.png"); err == nil {
		t.Error("expected context error")
	}
}

func TestNewLocal_CreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if _, err := NewLocal(dir); err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("output dir not created: %v", err)
	}
}

func TestSuggestedFilename(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name string
		url  string
		host string
	}{
		{"plain host", "https://example.com/some/page", "example-com"},
		{"subdomain and port", "https://Docs.Example.ORG:8443/x", "docs-example-org"},
		{"unparsable", "://nope", "page"},
		{"no host", "file:///tmp/x.html", "page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestedFilename(tt.url, now)
			prefix := tt.host + "-20260314-092653-"
			if !strings.HasPrefix(got, prefix) {
				t.Errorf("filename = %q, want prefix %q", got, prefix)
			}
			if !strings.HasSuffix(got, ".png") {
				t.Errorf("filename = %q, want .png suffix", got)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example-com"},
		{"--weird--", "weird"},
		{"###", "page"},
		{"  spaced out  ", "spaced-out"},
		{strings.Repeat("a", 100), strings.Repeat("a", 64)},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
