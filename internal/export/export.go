// Package export sequences the composition pipeline: per-item segment
// renders, stream-copy concat, audio mux, then the optional prompt and
// caption burn passes, all inside one temp-directory lifecycle.
package export

import (
	"context"

	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/internal/timeline"
)

// MediaEngine is the slice of the ffmpeg executor the orchestrator drives.
type MediaEngine interface {
	Run(ctx context.Context, opts ffmpeg.RunOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
	MixAudio(ctx context.Context, opts ffmpeg.MixOptions) error
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// ProgressFunc receives coarse stage names with 0-100 percentages.
type ProgressFunc func(stage string, percent int)

// Request describes one export.
type Request struct {
	Items       []timeline.Item
	ProjectDir  string
	OutputPath  string // "" derives a path under ProjectDir
	AudioPath   string
	Overlays    []timeline.Overlay
	CaptionCues []timeline.CaptionCue
	PromptCues  []timeline.PromptCue
	OnProgress  ProgressFunc
}

// Result is the structured outcome returned across the public boundary.
// Fatal pipeline errors land in Err; the orchestrator never panics out.
type Result struct {
	Success    bool
	OutputPath string
	Err        error
}

// Stage names surfaced through OnProgress.
const (
	StageSegments = "segments"
	StageConcat   = "concat"
	StageAudio    = "audio"
	StagePrompts  = "prompts"
	StageCaptions = "captions"
	StageFinalize = "finalize"
)
