package subtitle

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/pkg/attempt"
)

// Burner burns a subtitle script into a video, trying an ordered list of
// filter incantations until one completes. Path escaping of the subtitles
// filter differs across platforms and ffmpeg builds; the strategy list
// covers the known variants.
type Burner struct {
	logger zerolog.Logger
	engine ffmpeg.Runner
}

// NewBurner creates a subtitle burner.
func NewBurner(logger zerolog.Logger, engine ffmpeg.Runner) *Burner {
	return &Burner{
		logger: logger.With().Str("component", "subtitle").Logger(),
		engine: engine,
	}
}

// Burn encodes input to output with the script burned in. It returns the
// name of the strategy that succeeded, or the joined failures when every
// strategy failed — the caller decides whether that is fatal.
func (b *Burner) Burn(ctx context.Context, input, scriptPath, output string, progress ffmpeg.ProgressFunc) (string, error) {
	candidates := burnStrategies(scriptPath)

	winner, err := attempt.First(ctx, candidates, func(ctx context.Context, c attempt.Candidate[string]) error {
		b.logger.Debug().
			Str("strategy", c.Name).
			Str("filter", c.Value).
			Msg("attempting subtitle burn")

		opts := ffmpeg.RunOptions{
			Args: []string{
				"-i", input,
				"-vf", c.Value,
				"-c:v", ffmpeg.DefaultVideoCodec,
				"-crf", fmt.Sprintf("%d", ffmpeg.DefaultCRF),
				"-preset", ffmpeg.DefaultPreset,
				"-c:a", "copy",
				output,
			},
			ProgressHandler: progress,
			LogHandler: func(line string) {
				b.logger.Debug().Str("ffmpeg", line).Msg("subtitle burn")
			},
		}
		return b.engine.Run(ctx, opts)
	})
	if err != nil {
		return "", fmt.Errorf("all subtitle burn strategies failed: %w", err)
	}

	b.logger.Info().
		Str("strategy", winner).
		Str("output", output).
		Msg("subtitles burned")
	return winner, nil
}

// burnStrategies returns the ordered filter candidates for a script path.
func burnStrategies(scriptPath string) []attempt.Candidate[string] {
	escaped := escapeScriptPath(scriptPath)
	doubled := strings.ReplaceAll(escaped, `\`, `\\`)

	return []attempt.Candidate[string]{
		{Name: "subtitles-direct", Value: "subtitles=" + escaped},
		{Name: "subtitles-quoted", Value: "subtitles='" + escaped + "'"},
		{Name: "subtitles-double-escaped", Value: "subtitles=" + doubled},
		{Name: "ass-filter", Value: "ass=" + escaped},
	}
}

// escapeScriptPath escapes a subtitle script path for use inside a filter
// expression.
func escapeScriptPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	if runtime.GOOS == "windows" {
		absPath = strings.ReplaceAll(absPath, `\`, "/")
		// Escape drive letter colon (C: -> C\:)
		if len(absPath) >= 2 && absPath[1] == ':' {
			absPath = absPath[0:1] + `\:` + absPath[2:]
		}
		return strings.ReplaceAll(absPath, "'", `\'`)
	}

	escaped := strings.ReplaceAll(absPath, ":", `\:`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return escaped
}
