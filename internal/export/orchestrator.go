package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/internal/paths"
	"github.com/keagan/cutforge/internal/render"
	"github.com/keagan/cutforge/internal/subtitle"
	"github.com/keagan/cutforge/internal/timeline"
	"github.com/keagan/cutforge/pkg/util"
)

// Options configures a Composer.
type Options struct {
	Canvas           ffmpeg.Canvas
	Preset           string
	PlaceholderColor string
	FontPath         string
	Style            subtitle.Style
	TempDirName      string
	StageTimeout     time.Duration
}

// Composer owns one export pipeline end to end.
type Composer struct {
	logger       zerolog.Logger
	engine       MediaEngine
	renderer     *render.Renderer
	burner       *subtitle.Burner
	style        subtitle.Style
	tempDirName  string
	stageTimeout time.Duration
}

// New creates a Composer around a media engine.
func New(logger zerolog.Logger, engine MediaEngine, opts Options) *Composer {
	style := opts.Style
	if style.FontName == "" {
		style = subtitle.DefaultStyle()
	}
	tempDirName := opts.TempDirName
	if tempDirName == "" {
		tempDirName = ".cutforge-tmp"
	}

	return &Composer{
		logger: logger.With().Str("component", "export").Logger(),
		engine: engine,
		renderer: render.New(logger, engine, render.Options{
			Canvas:           opts.Canvas,
			Preset:           opts.Preset,
			PlaceholderColor: opts.PlaceholderColor,
			FontPath:         opts.FontPath,
		}),
		burner:       subtitle.NewBurner(logger, engine),
		style:        style,
		tempDirName:  tempDirName,
		stageTimeout: opts.StageTimeout,
	}
}

// Compose runs the full pipeline and returns a structured result. The temp
// working directory is removed on success and on failure; only the final
// artifact survives.
func (c *Composer) Compose(ctx context.Context, req Request) Result {
	output, err := c.compose(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Msg("export failed")
		return Result{Success: false, Err: err}
	}
	return Result{Success: true, OutputPath: output}
}

func (c *Composer) compose(ctx context.Context, req Request) (string, error) {
	items := c.resolveItems(req)
	if err := timeline.Validate(items); err != nil {
		return "", fmt.Errorf("invalid timeline: %w", err)
	}
	overlays := c.resolveOverlays(req)

	output := req.OutputPath
	if output == "" {
		output = filepath.Join(req.ProjectDir, fmt.Sprintf("export_%d.mp4", time.Now().Unix()))
	}

	if err := util.EnsureDir(req.ProjectDir); err != nil {
		return "", fmt.Errorf("project dir: %w", err)
	}
	workDir, err := os.MkdirTemp(req.ProjectDir, c.tempDirName+"-*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			c.logger.Warn().Err(err).Str("dir", workDir).Msg("temp cleanup failed")
		}
	}()

	c.logger.Info().
		Int("items", len(items)).
		Str("work_dir", workDir).
		Str("output", output).
		Msg("starting export")

	// Stage 1: render one segment per item, in order.
	segments, err := c.renderSegments(ctx, items, overlays, workDir, req.OnProgress)
	if err != nil {
		return "", err
	}

	// Stage 2: stream-copy concat.
	progress(req.OnProgress, StageConcat, 0)
	current := filepath.Join(workDir, "concat.mp4")
	err = c.stage(ctx, func(ctx context.Context) error {
		return c.engine.Concat(ctx, ffmpeg.ConcatOptions{
			Inputs:  segments,
			Output:  current,
			ListDir: workDir,
		})
	})
	if err != nil {
		return "", fmt.Errorf("concat: %w", err)
	}
	progress(req.OnProgress, StageConcat, 100)

	// Stage 3: optional audio mux. A missing or unreadable audio file
	// degrades to video-only; a failed mix encode is fatal.
	current, err = c.mixAudio(ctx, req, current, workDir)
	if err != nil {
		return "", err
	}

	// Stage 4+5: optional burn passes; prompts first so captions land on top.
	current = c.burnPrompts(ctx, req, current, workDir)
	current = c.burnCaptions(ctx, req, current, workDir)

	// Finalize: move the surviving intermediate out of the temp dir.
	progress(req.OnProgress, StageFinalize, 0)
	if err := moveFile(current, output); err != nil {
		return "", fmt.Errorf("finalize: %w", err)
	}
	progress(req.OnProgress, StageFinalize, 100)

	c.logger.Info().Str("output", output).Msg("export complete")
	return output, nil
}

func (c *Composer) renderSegments(ctx context.Context, items []timeline.Item, overlays []timeline.Overlay, workDir string, onProgress ProgressFunc) ([]string, error) {
	progress(onProgress, StageSegments, 0)
	segments := make([]string, 0, len(items))
	for i, item := range items {
		segPath := filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i))
		err := c.stage(ctx, func(ctx context.Context) error {
			return c.renderer.RenderSegment(ctx, item, overlays, segPath, nil)
		})
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segments = append(segments, segPath)
		progress(onProgress, StageSegments, (i+1)*100/len(items))
	}
	return segments, nil
}

// mixAudio muxes the narration track when one is supplied and usable. A
// missing or unreadable audio file keeps the video-only stream; a mix
// encode failure on a valid file aborts the export.
func (c *Composer) mixAudio(ctx context.Context, req Request, current, workDir string) (string, error) {
	if req.AudioPath == "" {
		return current, nil
	}
	progress(req.OnProgress, StageAudio, 0)

	audioPath := paths.Resolve(req.AudioPath, req.ProjectDir)
	if audioPath == "" || !util.FileExists(audioPath) {
		c.logger.Warn().Str("audio", req.AudioPath).Msg("audio track missing, keeping video-only output")
		progress(req.OnProgress, StageAudio, 100)
		return current, nil
	}

	info, err := c.engine.Probe(ctx, audioPath)
	if err != nil || !info.HasAudio {
		c.logger.Warn().Err(err).Str("audio", audioPath).Msg("audio track unreadable, keeping video-only output")
		progress(req.OnProgress, StageAudio, 100)
		return current, nil
	}

	mixed := filepath.Join(workDir, "mixed.mp4")
	err = c.stage(ctx, func(ctx context.Context) error {
		return c.engine.MixAudio(ctx, ffmpeg.MixOptions{
			VideoInput: current,
			AudioInput: audioPath,
			Output:     mixed,
		})
	})
	if err != nil {
		return "", fmt.Errorf("audio mix: %w", err)
	}
	progress(req.OnProgress, StageAudio, 100)
	return mixed, nil
}

func (c *Composer) burnPrompts(ctx context.Context, req Request, current, workDir string) string {
	cues := timeline.FilterPromptCues(req.PromptCues)
	if len(cues) == 0 {
		return current
	}
	progress(req.OnProgress, StagePrompts, 0)

	script := subtitle.BuildPromptScript(cues, c.style)
	next := c.burnPass(ctx, current, script, workDir, "prompts")
	progress(req.OnProgress, StagePrompts, 100)
	return next
}

func (c *Composer) burnCaptions(ctx context.Context, req Request, current, workDir string) string {
	cues := timeline.FilterCaptionCues(req.CaptionCues)
	if len(cues) == 0 {
		return current
	}
	progress(req.OnProgress, StageCaptions, 0)

	script := subtitle.BuildCaptionScript(cues, c.style)
	next := c.burnPass(ctx, current, script, workDir, "captions")
	progress(req.OnProgress, StageCaptions, 100)
	return next
}

// burnPass writes the script and attempts the burn; exhausting every
// strategy skips the pass rather than failing the export.
func (c *Composer) burnPass(ctx context.Context, current, script, workDir, name string) string {
	scriptPath := filepath.Join(workDir, name+".ass")
	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		c.logger.Warn().Err(err).Str("pass", name).Msg("script write failed, skipping burn pass")
		return current
	}

	burned := filepath.Join(workDir, name+".mp4")
	var winner string
	err := c.stage(ctx, func(ctx context.Context) error {
		var burnErr error
		winner, burnErr = c.burner.Burn(ctx, current, scriptPath, burned, nil)
		return burnErr
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("pass", name).Msg("burn pass skipped")
		return current
	}

	c.logger.Info().Str("pass", name).Str("strategy", winner).Msg("burn pass complete")
	return burned
}

// stage bounds one external operation with the configured timeout.
func (c *Composer) stage(ctx context.Context, fn func(context.Context) error) error {
	if c.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.stageTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (c *Composer) resolveItems(req Request) []timeline.Item {
	items := make([]timeline.Item, len(req.Items))
	copy(items, req.Items)
	for i := range items {
		if items[i].SourcePath != "" {
			items[i].SourcePath = paths.Resolve(items[i].SourcePath, req.ProjectDir)
		}
	}
	return items
}

func (c *Composer) resolveOverlays(req Request) []timeline.Overlay {
	overlays := make([]timeline.Overlay, 0, len(req.Overlays))
	for _, o := range req.Overlays {
		if err := timeline.ValidateOverlay(o); err != nil {
			c.logger.Warn().Err(err).Msg("dropping invalid overlay")
			continue
		}
		o.SourcePath = paths.Resolve(o.SourcePath, req.ProjectDir)
		overlays = append(overlays, o)
	}
	return overlays
}

func progress(fn ProgressFunc, stage string, percent int) {
	if fn != nil {
		fn(stage, percent)
	}
}

// moveFile renames when possible and falls back to a copy across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := util.CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
