package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keagan/cutforge/internal/capcut"
	"github.com/keagan/cutforge/internal/config"
	"github.com/keagan/cutforge/internal/export"
	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/internal/logging"
	"github.com/keagan/cutforge/internal/subtitle"
	"github.com/keagan/cutforge/internal/timeline"
)

var (
	cfgFile string
	verbose bool
	output  string
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cutforge",
	Short: "cutforge - timeline composition and export engine",
	Long:  "Assembles ordered timelines into rendered videos and editable project bundles.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	composeCmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: export_<ts>.mp4 in the project dir)")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(probeCmd)
}

var composeCmd = &cobra.Command{
	Use:   "compose [timeline file]",
	Short: "Render a timeline file to a single video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		spec, err := loadTimelineFile(args[0])
		if err != nil {
			return err
		}

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}

		composer := export.New(log.Logger, engine, export.Options{
			Canvas:           canvasOf(cfg),
			Preset:           cfg.FFmpeg.Preset,
			PlaceholderColor: cfg.FFmpeg.PlaceholderColor,
			Style:            styleOf(cfg),
			TempDirName:      cfg.TempDirName,
			StageTimeout:     cfg.StageTimeout,
		})

		req := spec.exportRequest()
		if output != "" {
			req.OutputPath = output
		}
		req.OnProgress = func(stage string, percent int) {
			log.Debug().Str("stage", stage).Int("percent", percent).Msg("export progress")
		}

		res := composer.Compose(cmd.Context(), req)
		if !res.Success {
			return res.Err
		}

		log.Info().Str("output", res.OutputPath).Msg("compose complete")
		return nil
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft [timeline file]",
	Short: "Serialize a timeline file into an editable project bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		spec, err := loadTimelineFile(args[0])
		if err != nil {
			return err
		}

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}

		builder := capcut.NewBuilder(log.Logger, engine, capcut.Options{
			Canvas:  canvasOf(cfg),
			RootDir: cfg.Draft.RootDir,
		})

		proj, err := builder.Build(cmd.Context(), spec.draftRequest())
		if err != nil {
			return err
		}

		log.Info().
			Str("project", proj.ID).
			Str("dir", proj.OutputDir).
			Msg("draft complete")
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [media file]",
	Short: "Show media metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}

		info, err := engine.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		log.Info().
			Str("file", info.FilePath).
			Dur("duration", info.Duration).
			Int("width", info.Width).
			Int("height", info.Height).
			Float64("fps", info.FPS).
			Str("video_codec", info.VideoCodec).
			Bool("has_audio", info.HasAudio).
			Str("audio_codec", info.AudioCodec).
			Msg("probe")
		return nil
	},
}

func newEngine(cfg *config.Config) (*ffmpeg.Executor, error) {
	return ffmpeg.New(log.Logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
}

func canvasOf(cfg *config.Config) ffmpeg.Canvas {
	return ffmpeg.Canvas{
		Width:  cfg.Canvas.Width,
		Height: cfg.Canvas.Height,
		FPS:    cfg.Canvas.FPS,
	}
}

func styleOf(cfg *config.Config) subtitle.Style {
	style := subtitle.DefaultStyle()
	if cfg.Subtitles.FontName != "" {
		style.FontName = cfg.Subtitles.FontName
	}
	if cfg.Subtitles.FontSize > 0 {
		style.FontSize = cfg.Subtitles.FontSize
	}
	if cfg.Subtitles.FontColor != "" {
		style.PrimaryColor = cfg.Subtitles.FontColor
	}
	if cfg.Subtitles.OutlineWidth > 0 {
		style.OutlineWidth = cfg.Subtitles.OutlineWidth
	}
	style.PlayResX = cfg.Canvas.Width
	style.PlayResY = cfg.Canvas.Height
	return style
}

// timelineFile is the on-disk YAML description a user hands to compose or
// draft. Times are seconds.
type timelineFile struct {
	ProjectName string        `yaml:"project_name"`
	ProjectDir  string        `yaml:"project_dir"`
	Audio       string        `yaml:"audio"`
	Items       []itemSpec    `yaml:"items"`
	Overlays    []overlaySpec `yaml:"overlays"`
	Captions    []captionSpec `yaml:"captions"`
	Prompts     []promptSpec  `yaml:"prompts"`
}

type itemSpec struct {
	Kind         string  `yaml:"kind"`
	Source       string  `yaml:"source"`
	Duration     float64 `yaml:"duration"`
	Start        float64 `yaml:"start"`
	End          float64 `yaml:"end"`
	SourceOffset float64 `yaml:"source_offset"`
	Label        string  `yaml:"label"`
}

type overlaySpec struct {
	Source string  `yaml:"source"`
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`
}

type captionSpec struct {
	ID    string     `yaml:"id"`
	Start float64    `yaml:"start"`
	End   float64    `yaml:"end"`
	Text  string     `yaml:"text"`
	Words []wordSpec `yaml:"words"`
}

type wordSpec struct {
	Text  string  `yaml:"text"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

type promptSpec struct {
	ID    string  `yaml:"id"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Text  string  `yaml:"text"`
}

func loadTimelineFile(path string) (*timelineFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline file: %w", err)
	}

	var spec timelineFile
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse timeline file: %w", err)
	}
	if spec.ProjectDir == "" {
		spec.ProjectDir = filepath.Dir(path)
	}
	if spec.ProjectName == "" {
		base := filepath.Base(path)
		spec.ProjectName = base[:len(base)-len(filepath.Ext(base))]
	}
	return &spec, nil
}

func (f *timelineFile) items() []timeline.Item {
	items := make([]timeline.Item, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, timeline.Item{
			Kind:         timeline.ItemKind(it.Kind),
			SourcePath:   it.Source,
			Duration:     it.Duration,
			StartTime:    it.Start,
			EndTime:      it.End,
			SourceOffset: it.SourceOffset,
			Label:        it.Label,
		})
	}
	return items
}

func (f *timelineFile) overlays() []timeline.Overlay {
	overlays := make([]timeline.Overlay, 0, len(f.Overlays))
	for _, o := range f.Overlays {
		overlays = append(overlays, timeline.Overlay{
			SourcePath: o.Source,
			Duration:   o.End - o.Start,
			StartTime:  o.Start,
			EndTime:    o.End,
		})
	}
	return overlays
}

func (f *timelineFile) captions() []timeline.CaptionCue {
	cues := make([]timeline.CaptionCue, 0, len(f.Captions))
	for _, c := range f.Captions {
		words := make([]timeline.WordTiming, 0, len(c.Words))
		for _, w := range c.Words {
			words = append(words, timeline.WordTiming{
				Text:      w.Text,
				StartTime: w.Start,
				EndTime:   w.End,
			})
		}
		cues = append(cues, timeline.CaptionCue{
			ID:        c.ID,
			StartTime: c.Start,
			EndTime:   c.End,
			Text:      c.Text,
			Words:     words,
		})
	}
	return cues
}

func (f *timelineFile) prompts() []timeline.PromptCue {
	cues := make([]timeline.PromptCue, 0, len(f.Prompts))
	for _, p := range f.Prompts {
		cues = append(cues, timeline.PromptCue{
			ID:        p.ID,
			StartTime: p.Start,
			EndTime:   p.End,
			Text:      p.Text,
		})
	}
	return cues
}

func (f *timelineFile) exportRequest() export.Request {
	return export.Request{
		Items:       f.items(),
		ProjectDir:  f.ProjectDir,
		AudioPath:   f.Audio,
		Overlays:    f.overlays(),
		CaptionCues: f.captions(),
		PromptCues:  f.prompts(),
	}
}

func (f *timelineFile) draftRequest() capcut.Request {
	return capcut.Request{
		ProjectName: f.ProjectName,
		Items:       f.items(),
		ProjectDir:  f.ProjectDir,
		AudioPath:   f.Audio,
		Overlays:    f.overlays(),
		CaptionCues: f.captions(),
		PromptCues:  f.prompts(),
	}
}
