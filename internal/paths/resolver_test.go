package paths

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveEmpty(t *testing.T) {
	if got := Resolve("", "/project"); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
	if got := Resolve("   ", "/project"); got != "" {
		t.Errorf("expected empty result for whitespace, got %q", got)
	}
}

func TestResolveRelative(t *testing.T) {
	got := Resolve("media/clip.mp4", "/project")
	want := filepath.Join("/project", "media", "clip.mp4")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveAbsolute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix path shapes")
	}
	got := Resolve("/data/clip.mp4", "/project")
	if got != "/data/clip.mp4" {
		t.Errorf("absolute path should pass through, got %q", got)
	}
}

func TestResolveFileURL(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix path shapes")
	}
	got := Resolve("file:///data/clip.mp4", "/project")
	if got != "/data/clip.mp4" {
		t.Errorf("expected file:// prefix stripped, got %q", got)
	}
}

func TestResolveMediaURLEscaped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix path shapes")
	}
	got := Resolve("media:///data/my%20clip.mp4", "/project")
	if got != "/data/my clip.mp4" {
		t.Errorf("expected decoded path, got %q", got)
	}
}

func TestResolvePrefixOnly(t *testing.T) {
	if got := Resolve("file://", "/project"); got != "" {
		t.Errorf("bare prefix should resolve to empty, got %q", got)
	}
}
