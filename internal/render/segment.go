// Package render turns timeline items into fixed-duration encoded segments
// on the canonical canvas. Every segment shares codec and canvas parameters
// so the concat stage can stream-copy.
package render

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/internal/timeline"
	"github.com/keagan/cutforge/pkg/util"
)

// Options configures a segment renderer.
type Options struct {
	Canvas           ffmpeg.Canvas
	Preset           string
	PlaceholderColor string
	FontPath         string // "" triggers discovery
}

// Renderer renders one timeline item at a time.
type Renderer struct {
	logger   zerolog.Logger
	engine   ffmpeg.Runner
	canvas   ffmpeg.Canvas
	preset   string
	color    string
	fontPath string
}

// New creates a segment renderer. When no font path is configured a system
// font is discovered best-effort; rendering proceeds without labels if none
// is found.
func New(logger zerolog.Logger, engine ffmpeg.Runner, opts Options) *Renderer {
	fontPath := opts.FontPath
	if fontPath == "" {
		fontPath = FindSystemFont()
	}
	color := opts.PlaceholderColor
	if color == "" {
		color = "0x1F1F2E"
	}
	preset := opts.Preset
	if preset == "" {
		preset = ffmpeg.DefaultPreset
	}
	return &Renderer{
		logger:   logger.With().Str("component", "render").Logger(),
		engine:   engine,
		canvas:   opts.Canvas,
		preset:   preset,
		color:    color,
		fontPath: fontPath,
	}
}

// RenderSegment encodes one item to output with exactly item.Duration
// seconds of video. Overlays fully contained in an image item's span are
// composited in the same pass; overlay failures are returned as errors and
// abort the export, unlike missing primary media which degrades below.
func (r *Renderer) RenderSegment(ctx context.Context, item timeline.Item, overlays []timeline.Overlay, output string, progress ffmpeg.ProgressFunc) error {
	kind := r.effectiveKind(item)

	switch kind {
	case timeline.KindPlaceholder:
		return r.renderPlaceholder(ctx, item, output, progress)
	case timeline.KindVideo:
		return r.renderVideo(ctx, item, output, progress)
	case timeline.KindImage:
		contained := timeline.ContainedOverlays(item, overlays)
		if len(contained) > 0 {
			return r.renderImageWithOverlays(ctx, item, contained, output, progress)
		}
		return r.renderImage(ctx, item, output, progress)
	default:
		return fmt.Errorf("unknown item kind %q", item.Kind)
	}
}

// effectiveKind applies the missing-media degradation policy: absent, empty,
// or directory sources render as placeholders of identical duration so the
// total timeline duration is preserved.
func (r *Renderer) effectiveKind(item timeline.Item) timeline.ItemKind {
	if item.Kind == timeline.KindPlaceholder {
		return timeline.KindPlaceholder
	}

	info, err := os.Stat(item.SourcePath)
	if err != nil || info.IsDir() || info.Size() == 0 {
		r.logger.Warn().
			Str("source", item.SourcePath).
			Str("kind", string(item.Kind)).
			Float64("duration", item.Duration).
			Msg("source missing or unusable, degrading to placeholder")
		return timeline.KindPlaceholder
	}
	return item.Kind
}

func (r *Renderer) renderVideo(ctx context.Context, item timeline.Item, output string, progress ffmpeg.ProgressFunc) error {
	r.logger.Info().
		Str("source", item.SourcePath).
		Str("output", output).
		Float64("duration", item.Duration).
		Msg("rendering video segment")

	args := []string{}
	if item.SourceOffset > 0 {
		args = append(args, "-ss", util.FormatSeconds(item.SourceOffset))
	}
	args = append(args, "-i", item.SourcePath)
	args = append(args, "-vf", r.canvasChain().String())
	args = append(args, r.encodeArgs(item.Duration, output)...)

	return r.run(ctx, args, progress, "video segment")
}

func (r *Renderer) renderImage(ctx context.Context, item timeline.Item, output string, progress ffmpeg.ProgressFunc) error {
	r.logger.Info().
		Str("source", item.SourcePath).
		Str("output", output).
		Float64("duration", item.Duration).
		Msg("rendering image segment")

	args := []string{
		"-loop", "1",
		"-t", util.FormatSeconds(item.Duration),
		"-i", item.SourcePath,
		"-vf", r.canvasChain().String(),
	}
	args = append(args, r.encodeArgs(item.Duration, output)...)

	return r.run(ctx, args, progress, "image segment")
}

func (r *Renderer) renderPlaceholder(ctx context.Context, item timeline.Item, output string, progress ffmpeg.ProgressFunc) error {
	r.logger.Info().
		Str("label", item.Label).
		Str("output", output).
		Float64("duration", item.Duration).
		Msg("rendering placeholder segment")

	// Duration stays in plain seconds: colons would split the lavfi args.
	source := fmt.Sprintf("color=c=%s:s=%dx%d:r=%g:d=%.6f",
		r.color, r.canvas.Width, r.canvas.Height, r.canvas.FPS, item.Duration)

	args := []string{
		"-f", "lavfi",
		"-i", source,
	}

	if label := placeholderLabel(item.Label); label != "" && r.fontPath != "" {
		var c ffmpeg.Chain
		c.Add("drawtext",
			ffmpeg.KV("fontfile", ffmpeg.EscapeFilterValue(r.fontPath)),
			ffmpeg.KV("text", ffmpeg.EscapeFilterValue(label)),
			ffmpeg.KV("fontsize", "48"),
			ffmpeg.KV("fontcolor", "white"),
			ffmpeg.KV("x", "(w-text_w)/2"),
			ffmpeg.KV("y", "(h-text_h)/2"),
		)
		args = append(args, "-vf", c.String())
	}

	args = append(args, r.encodeArgs(item.Duration, output)...)

	return r.run(ctx, args, progress, "placeholder segment")
}

// encodeArgs holds the settings every segment shares; divergence here would
// break the stream-copy concat.
func (r *Renderer) encodeArgs(duration float64, output string) []string {
	return []string{
		"-t", util.FormatSeconds(duration),
		"-an",
		"-c:v", ffmpeg.DefaultVideoCodec,
		"-crf", fmt.Sprintf("%d", ffmpeg.DefaultCRF),
		"-preset", r.preset,
		"-pix_fmt", ffmpeg.DefaultPixFmt,
		output,
	}
}

func (r *Renderer) canvasChain() *ffmpeg.Chain {
	var c ffmpeg.Chain
	for _, s := range ffmpeg.ScalePad(r.canvas) {
		c.Add(s.Name, s.Args...)
	}
	return &c
}

func (r *Renderer) run(ctx context.Context, args []string, progress ffmpeg.ProgressFunc, what string) error {
	opts := ffmpeg.RunOptions{
		Args:            args,
		ProgressHandler: progress,
		LogHandler: func(line string) {
			r.logger.Debug().Str("ffmpeg", line).Msg(what)
		},
	}
	if err := r.engine.Run(ctx, opts); err != nil {
		return fmt.Errorf("%s render failed: %w", what, err)
	}
	return nil
}
