// Package paths normalizes the media references that arrive on timeline
// items: transport-prefixed URLs from the UI layer, relative paths from
// project files, and absolute paths, all reduced to absolute filesystem
// paths rooted at the project directory.
package paths

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// transportPrefixes are stripped from raw references before resolution.
var transportPrefixes = []string{"file://", "media://", "app://"}

// Resolve turns a raw media reference into an absolute path under the
// project directory. Empty or unusable input resolves to "".
func Resolve(raw, projectDir string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	for _, prefix := range transportPrefixes {
		if strings.HasPrefix(raw, prefix) {
			raw = strings.TrimPrefix(raw, prefix)
			// URL-encoded paths come through the transport layer.
			if decoded, err := url.PathUnescape(raw); err == nil {
				raw = decoded
			}
			if raw == "" {
				return ""
			}
			// file://C:/... on Windows keeps the drive letter; elsewhere the
			// stripped path must stay rooted.
			if runtime.GOOS != "windows" && !strings.HasPrefix(raw, "/") {
				raw = "/" + raw
			}
			break
		}
	}

	if raw == "" {
		return ""
	}

	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}

	if projectDir == "" {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return ""
		}
		return abs
	}

	return filepath.Clean(filepath.Join(projectDir, raw))
}
