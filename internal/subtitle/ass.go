// Package subtitle builds ASS subtitle scripts from timeline cues and burns
// them into rendered video through an ordered list of platform-specific
// filter strategies.
package subtitle

import (
	"fmt"
	"math"
	"strings"

	"github.com/keagan/cutforge/internal/timeline"
)

// Style holds the rendering style for generated scripts.
type Style struct {
	FontName     string
	FontSize     int
	PrimaryColor string
	OutlineWidth int
	PlayResX     int
	PlayResY     int
	MarginV      int
}

// DefaultStyle matches the canonical canvas.
func DefaultStyle() Style {
	return Style{
		FontName:     "Arial",
		FontSize:     28,
		PrimaryColor: "&H00FFFFFF",
		OutlineWidth: 2,
		PlayResX:     1280,
		PlayResY:     720,
		MarginV:      40,
	}
}

// BuildCaptionScript renders word-timed caption cues as an ASS script with
// per-word karaoke tags, so the burn-in exposes progressive highlighting.
// Cues must already be filtered and sorted (timeline.FilterCaptionCues).
func BuildCaptionScript(cues []timeline.CaptionCue, style Style) string {
	var b strings.Builder
	writeHeader(&b, style, "Captions")

	for _, cue := range cues {
		text := karaokeText(cue)
		writeDialogue(&b, cue.StartTime, cue.EndTime, text)
	}

	return b.String()
}

// BuildPromptScript renders prompt cues as plain timestamped dialogue lines.
func BuildPromptScript(cues []timeline.PromptCue, style Style) string {
	var b strings.Builder
	writeHeader(&b, style, "Prompts")

	for _, cue := range cues {
		writeDialogue(&b, cue.StartTime, cue.EndTime, EscapeText(cue.Text))
	}

	return b.String()
}

func writeHeader(b *strings.Builder, style Style, title string) {
	fmt.Fprintf(b, "[Script Info]\n")
	fmt.Fprintf(b, "Title: %s\n", title)
	fmt.Fprintf(b, "ScriptType: v4.00+\n")
	fmt.Fprintf(b, "PlayResX: %d\n", style.PlayResX)
	fmt.Fprintf(b, "PlayResY: %d\n", style.PlayResY)
	fmt.Fprintf(b, "WrapStyle: 0\n\n")

	fmt.Fprintf(b, "[V4+ Styles]\n")
	fmt.Fprintf(b, "Format: Name, Fontname, Fontsize, PrimaryColour, OutlineColour, BackColour, Bold, Outline, Shadow, Alignment, MarginL, MarginR, MarginV\n")
	fmt.Fprintf(b, "Style: Default,%s,%d,%s,&H00000000,&H80000000,0,%d,0,2,20,20,%d\n\n",
		style.FontName, style.FontSize, style.PrimaryColor, style.OutlineWidth, style.MarginV)

	fmt.Fprintf(b, "[Events]\n")
	fmt.Fprintf(b, "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
}

func writeDialogue(b *strings.Builder, start, end float64, text string) {
	fmt.Fprintf(b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
		Timestamp(start), Timestamp(end), text)
}

// karaokeText renders a cue's words with {\k} centisecond duration tags.
// A word never gets less than one centisecond; a leading gap before the
// first word becomes an empty-timed tag so highlighting stays in sync.
func karaokeText(cue timeline.CaptionCue) string {
	if len(cue.Words) == 0 {
		return EscapeText(cue.Text)
	}

	var b strings.Builder
	cursor := cue.StartTime
	for i, w := range cue.Words {
		if gap := centiseconds(w.StartTime - cursor); gap >= 1 {
			fmt.Fprintf(&b, "{\\k%d}", gap)
		}
		dur := centiseconds(w.EndTime - w.StartTime)
		if dur < 1 {
			dur = 1
		}
		fmt.Fprintf(&b, "{\\k%d}%s", dur, EscapeText(w.Text))
		if i < len(cue.Words)-1 {
			b.WriteByte(' ')
		}
		cursor = w.EndTime
	}
	return b.String()
}

func centiseconds(seconds float64) int {
	return int(math.Round(seconds * 100))
}

// Timestamp formats seconds as an ASS timestamp (H:MM:SS.cc).
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(math.Round(seconds * 100))
	h := cs / 360000
	m := (cs / 6000) % 60
	s := (cs / 100) % 60
	c := cs % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, c)
}

// EscapeText neutralizes the characters the ASS parser treats as control
// input: backslashes doubled, override braces replaced, newlines flattened
// to spaces.
func EscapeText(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, "{", "(")
	text = strings.ReplaceAll(text, "}", ")")
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return text
}
