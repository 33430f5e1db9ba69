package timeline

import (
	"fmt"
	"math"
)

// ItemKind identifies what a primary-track item renders from.
type ItemKind string

const (
	KindVideo       ItemKind = "video"
	KindImage       ItemKind = "image"
	KindPlaceholder ItemKind = "placeholder"
)

// Item is one ordered unit of the primary track. All times are seconds;
// conversion to microseconds happens only at emission time.
type Item struct {
	Kind         ItemKind
	SourcePath   string
	Duration     float64
	StartTime    float64
	EndTime      float64
	SourceOffset float64
	Label        string
}

// Overlay is a secondary clip composited on top of a primary-track item.
// Overlays may overlap each other and primary items arbitrarily.
type Overlay struct {
	SourcePath string
	Duration   float64
	StartTime  float64
	EndTime    float64
	Label      string
}

// contiguityEpsilon absorbs float drift when comparing adjacent item edges.
const contiguityEpsilon = 1e-6

// Validate checks the primary-track invariants: items are contiguous,
// non-overlapping, and each has a positive duration consistent with its span.
func Validate(items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("timeline has no items")
	}

	for i, item := range items {
		if item.Duration <= 0 {
			return fmt.Errorf("item %d: duration must be positive, got %f", i, item.Duration)
		}
		span := item.EndTime - item.StartTime
		if math.Abs(span-item.Duration) > contiguityEpsilon {
			return fmt.Errorf("item %d: duration %f does not match span %f", i, item.Duration, span)
		}
		if i > 0 {
			prev := items[i-1]
			if math.Abs(item.StartTime-prev.EndTime) > contiguityEpsilon {
				return fmt.Errorf("item %d: starts at %f but previous item ends at %f", i, item.StartTime, prev.EndTime)
			}
		}
	}

	return nil
}

// ValidateOverlay checks the single overlay invariant: a positive time window.
func ValidateOverlay(o Overlay) error {
	if o.EndTime <= o.StartTime {
		return fmt.Errorf("overlay %q: end %f must be after start %f", o.SourcePath, o.EndTime, o.StartTime)
	}
	return nil
}

// TotalDuration returns the summed duration of all items in seconds.
func TotalDuration(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.Duration
	}
	return total
}

// ContainedOverlays returns the overlays whose interval is fully inside the
// item's span, ordered by ascending start time. Compositing order on top of
// an item is exactly this order.
func ContainedOverlays(item Item, overlays []Overlay) []Overlay {
	var contained []Overlay
	for _, o := range overlays {
		if o.StartTime >= item.StartTime-contiguityEpsilon && o.EndTime <= item.EndTime+contiguityEpsilon {
			contained = append(contained, o)
		}
	}
	sortOverlaysByStart(contained)
	return contained
}

func sortOverlaysByStart(overlays []Overlay) {
	// Insertion sort keeps equal starts in input order.
	for i := 1; i < len(overlays); i++ {
		for j := i; j > 0 && overlays[j].StartTime < overlays[j-1].StartTime; j-- {
			overlays[j], overlays[j-1] = overlays[j-1], overlays[j]
		}
	}
}

// Microseconds converts a seconds value to the integer microseconds used by
// every persisted record. Rounding here is the single source of truth.
func Microseconds(seconds float64) int64 {
	return int64(math.Round(seconds * 1e6))
}

// Seconds converts persisted microseconds back to seconds.
func Seconds(micros int64) float64 {
	return float64(micros) / 1e6
}
