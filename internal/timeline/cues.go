package timeline

import (
	"math"
	"sort"
)

// WordTiming is one word of a caption cue with its own time window.
type WordTiming struct {
	Text      string
	StartTime float64
	EndTime   float64
}

// CaptionCue is a time-coded caption with word-level timing for karaoke
// style highlighting.
type CaptionCue struct {
	ID        string
	StartTime float64
	EndTime   float64
	Text      string
	Words     []WordTiming
}

// PromptCue is a time-coded text annotation without word timing.
type PromptCue struct {
	ID        string
	StartTime float64
	EndTime   float64
	Text      string
}

// FilterCaptionCues drops cues with non-positive windows or non-finite
// timestamps and returns the remainder sorted by start time.
func FilterCaptionCues(cues []CaptionCue) []CaptionCue {
	out := make([]CaptionCue, 0, len(cues))
	for _, c := range cues {
		if !validWindow(c.StartTime, c.EndTime) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// FilterPromptCues is the prompt-cue counterpart of FilterCaptionCues.
func FilterPromptCues(cues []PromptCue) []PromptCue {
	out := make([]PromptCue, 0, len(cues))
	for _, c := range cues {
		if !validWindow(c.StartTime, c.EndTime) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func validWindow(start, end float64) bool {
	if math.IsNaN(start) || math.IsInf(start, 0) || math.IsNaN(end) || math.IsInf(end, 0) {
		return false
	}
	return end > start
}
