package render

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// maxLabelRunes bounds the text drawn onto placeholder segments.
const maxLabelRunes = 48

// FindSystemFont returns the path of a usable system font, or "" when none
// of the usual locations has one. Placeholder segments render without text
// in that case.
func FindSystemFont() string {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/System/Library/Fonts/Helvetica.ttc",
			"/System/Library/Fonts/Supplemental/Arial.ttf",
			"/Library/Fonts/Arial.ttf",
		}
	case "windows":
		windir := os.Getenv("WINDIR")
		if windir == "" {
			windir = `C:\Windows`
		}
		candidates = []string{
			filepath.Join(windir, "Fonts", "arial.ttf"),
			filepath.Join(windir, "Fonts", "segoeui.ttf"),
			filepath.Join(windir, "Fonts", "calibri.ttf"),
		}
	default:
		candidates = []string{
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
			"/usr/share/fonts/noto/NotoSans-Regular.ttf",
		}
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// placeholderLabel normalizes an item label for drawing: whitespace
// collapsed, bounded length.
func placeholderLabel(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	runes := []rune(label)
	if len(runes) > maxLabelRunes {
		label = string(runes[:maxLabelRunes])
	}
	return label
}
