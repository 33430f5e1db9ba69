package timeline

import (
	"math"
	"testing"
)

func TestValidateContiguous(t *testing.T) {
	items := []Item{
		{Kind: KindImage, Duration: 4, StartTime: 0, EndTime: 4},
		{Kind: KindPlaceholder, Duration: 3, StartTime: 4, EndTime: 7},
		{Kind: KindVideo, Duration: 5, StartTime: 7, EndTime: 12},
	}
	if err := Validate(items); err != nil {
		t.Fatalf("valid timeline rejected: %v", err)
	}
	if got := TotalDuration(items); got != 12 {
		t.Errorf("expected total 12, got %f", got)
	}
}

func TestValidateGap(t *testing.T) {
	items := []Item{
		{Kind: KindImage, Duration: 4, StartTime: 0, EndTime: 4},
		{Kind: KindVideo, Duration: 5, StartTime: 5, EndTime: 10},
	}
	if err := Validate(items); err == nil {
		t.Error("expected error for gap between items")
	}
}

func TestValidateDurationMismatch(t *testing.T) {
	items := []Item{
		{Kind: KindVideo, Duration: 3, StartTime: 0, EndTime: 4},
	}
	if err := Validate(items); err == nil {
		t.Error("expected error for duration/span mismatch")
	}
}

func TestValidateEmpty(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("expected error for empty timeline")
	}
}

func TestValidateZeroDuration(t *testing.T) {
	items := []Item{
		{Kind: KindVideo, Duration: 0, StartTime: 2, EndTime: 2},
	}
	if err := Validate(items); err == nil {
		t.Error("expected error for zero-duration item")
	}
}

func TestMicrosecondsRounding(t *testing.T) {
	cases := []struct {
		seconds float64
		want    int64
	}{
		{0, 0},
		{1, 1_000_000},
		{1.5, 1_500_000},
		{0.0000015, 2}, // rounds half away from zero
		{3.999999, 3_999_999},
	}
	for _, tc := range cases {
		if got := Microseconds(tc.seconds); got != tc.want {
			t.Errorf("Microseconds(%f) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
}

func TestMicrosecondsRoundTripStable(t *testing.T) {
	// seconds -> micros -> seconds -> micros must reach a fixed point.
	for _, sec := range []float64{0, 0.5, 1.2345678, 12.000001, 3599.999999} {
		us := Microseconds(sec)
		again := Microseconds(Seconds(us))
		if us != again {
			t.Errorf("round trip not stable for %f: %d != %d", sec, us, again)
		}
	}
}

func TestContainedOverlaysOrderedByStart(t *testing.T) {
	item := Item{Kind: KindImage, Duration: 4, StartTime: 0, EndTime: 4}
	overlays := []Overlay{
		{SourcePath: "b.mp4", StartTime: 2, EndTime: 3.5},
		{SourcePath: "a.mp4", StartTime: 0.5, EndTime: 3},
		{SourcePath: "outside.mp4", StartTime: 3, EndTime: 5},
	}
	got := ContainedOverlays(item, overlays)
	if len(got) != 2 {
		t.Fatalf("expected 2 contained overlays, got %d", len(got))
	}
	if got[0].SourcePath != "a.mp4" || got[1].SourcePath != "b.mp4" {
		t.Errorf("overlays not sorted by start: %v", got)
	}
}

func TestFilterCaptionCues(t *testing.T) {
	cues := []CaptionCue{
		{ID: "zero", StartTime: 1.0, EndTime: 1.0, Text: "dropped"},
		{ID: "backwards", StartTime: 2.0, EndTime: 1.0, Text: "dropped"},
		{ID: "nan", StartTime: math.NaN(), EndTime: 1.0, Text: "dropped"},
		{ID: "late", StartTime: 5.0, EndTime: 6.0, Text: "kept"},
		{ID: "early", StartTime: 0.0, EndTime: 1.0, Text: "kept"},
	}
	got := FilterCaptionCues(cues)
	if len(got) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(got))
	}
	if got[0].ID != "early" || got[1].ID != "late" {
		t.Errorf("cues not sorted by start time: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestFilterPromptCues(t *testing.T) {
	cues := []PromptCue{
		{ID: "inf", StartTime: 0, EndTime: math.Inf(1)},
		{ID: "ok", StartTime: 1, EndTime: 2},
	}
	got := FilterPromptCues(cues)
	if len(got) != 1 || got[0].ID != "ok" {
		t.Errorf("expected only the finite cue, got %v", got)
	}
}
