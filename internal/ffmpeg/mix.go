package ffmpeg

import (
	"context"
	"fmt"
)

// MixOptions defines audio muxing parameters
type MixOptions struct {
	VideoInput   string
	AudioInput   string
	Output       string
	ProgressFunc ProgressFunc
}

// MixAudio muxes the audio track onto the video stream. The video stream is
// copied; output stops at the shorter of the two inputs so neither trailing
// silence nor a frozen last frame survives.
func (e *Executor) MixAudio(ctx context.Context, opts MixOptions) error {
	if opts.VideoInput == "" {
		return fmt.Errorf("video input is required")
	}
	if opts.AudioInput == "" {
		return fmt.Errorf("audio input is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("video", opts.VideoInput).
		Str("audio", opts.AudioInput).
		Str("output", opts.Output).
		Msg("mixing audio track")

	args := []string{
		"-i", opts.VideoInput,
		"-i", opts.AudioInput,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", DefaultAudioCodec,
		"-shortest",
		opts.Output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio mix")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("audio mix failed: %w", err)
	}
	return nil
}

// Transcode re-encodes a media file to H.264/AAC in an mp4 container.
// Used by the project builder for web-delivery codecs the target editor
// cannot put on a timeline.
func (e *Executor) Transcode(ctx context.Context, input, output string, progressFunc ProgressFunc) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Msg("transcoding media")

	args := []string{
		"-i", input,
		"-c:v", DefaultVideoCodec,
		"-crf", fmt.Sprintf("%d", DefaultCRF),
		"-preset", DefaultPreset,
		"-pix_fmt", DefaultPixFmt,
		"-c:a", DefaultAudioCodec,
		output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("transcode")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("transcode failed: %w", err)
	}
	return nil
}
