package render

import (
	"context"
	"fmt"

	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/internal/timeline"
	"github.com/keagan/cutforge/pkg/util"
)

// renderImageWithOverlays composites the contained overlays onto the image
// item in one pass. Overlays arrive sorted by start time; each is
// time-shifted into the segment's local clock and layered onto the running
// base stage by stage.
func (r *Renderer) renderImageWithOverlays(ctx context.Context, item timeline.Item, overlays []timeline.Overlay, output string, progress ffmpeg.ProgressFunc) error {
	r.logger.Info().
		Str("source", item.SourcePath).
		Int("overlays", len(overlays)).
		Str("output", output).
		Msg("rendering image segment with overlays")

	args := []string{
		"-loop", "1",
		"-t", util.FormatSeconds(item.Duration),
		"-i", item.SourcePath,
	}
	for _, o := range overlays {
		args = append(args, "-i", o.SourcePath)
	}

	graph, finalLabel := overlayGraph(r.canvas, item, overlays)
	args = append(args, "-filter_complex", graph.String())
	args = append(args, "-map", "["+finalLabel+"]")
	args = append(args, r.encodeArgs(item.Duration, output)...)

	if err := r.run(ctx, args, progress, "overlay composite"); err != nil {
		// Fatal to the whole export: a missing layer the caller placed is
		// worse than an aborted run.
		r.logger.Error().
			Err(err).
			Str("item", item.SourcePath).
			Msg("overlay compositing failed")
		return err
	}
	return nil
}

// overlayGraph builds the chained composite: the base is the item scaled to
// canvas, then one overlay stage per contained overlay in ascending start
// order. Input pad i+1 is overlays[i].
func overlayGraph(canvas ffmpeg.Canvas, item timeline.Item, overlays []timeline.Overlay) (*ffmpeg.Graph, string) {
	var g ffmpeg.Graph

	scalePad := ffmpeg.ScalePad(canvas)
	g.Add(ffmpeg.Stage{Name: scalePad[0].Name, Args: scalePad[0].Args, Inputs: []string{"0:v"}, Outputs: []string{"scaled"}})
	g.Add(ffmpeg.Stage{Name: scalePad[1].Name, Args: scalePad[1].Args, Inputs: []string{"scaled"}, Outputs: []string{"padded"}})
	g.Add(ffmpeg.Stage{Name: scalePad[2].Name, Args: scalePad[2].Args, Inputs: []string{"padded"}, Outputs: []string{"base0"}})

	current := "base0"
	for i, o := range overlays {
		shift := o.StartTime - item.StartTime
		localEnd := o.EndTime - item.StartTime
		ovLabel := fmt.Sprintf("ov%d", i)
		nextLabel := fmt.Sprintf("base%d", i+1)

		g.Add(ffmpeg.Stage{
			Name:    "setpts",
			Args:    []ffmpeg.Arg{ffmpeg.KVf("", "PTS+%.6f/TB", shift)},
			Inputs:  []string{fmt.Sprintf("%d:v", i+1)},
			Outputs: []string{ovLabel},
		})
		g.Add(ffmpeg.Stage{
			Name: "overlay",
			Args: []ffmpeg.Arg{
				ffmpeg.KV("x", "(W-w)/2"),
				ffmpeg.KV("y", "(H-h)/2"),
				ffmpeg.KVf("enable", "'between(t,%.6f,%.6f)'", shift, localEnd),
				ffmpeg.KV("eof_action", "pass"),
			},
			Inputs:  []string{current, ovLabel},
			Outputs: []string{nextLabel},
		})
		current = nextLabel
	}

	return &g, current
}
