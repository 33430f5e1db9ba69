package ffmpeg

import (
	"context"
	"time"
)

// MediaInfo contains metadata about a media file
type MediaInfo struct {
	FilePath     string
	Duration     time.Duration
	Width        int
	Height       int
	FPS          float64
	Bitrate      int64
	VideoCodec   string
	HasVideo     bool
	HasAudio     bool
	AudioCodec   string
	AudioBitrate int64
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame         int
	FPS           float64
	Bitrate       string
	Time          string
	Speed         string
	OutTimeMicros int64
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Runner is the subset of Executor the rendering stages depend on.
// The concrete Executor satisfies it; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) error
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
type ProgressFunc func(*Progress)

// Canvas describes the canonical output surface every segment is rendered
// onto. Identical canvas parameters across segments are what make the
// concat stage a pure stream copy.
type Canvas struct {
	Width  int
	Height int
	FPS    float64
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultPixFmt     = "yuv420p"
)
