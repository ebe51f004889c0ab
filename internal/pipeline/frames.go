package pipeline

import (
	"fmt"
	"math"
)

// DefaultFrameIntervalSeconds is the spacing between extracted frames.
const DefaultFrameIntervalSeconds = 5

// DefaultImageBase is the provider's image delivery origin. Frame addresses
// are built as <base>/<durableRef>/thumbnail.png?time=<seconds>.
const DefaultImageBase = "https://image.mux.com"

// FrameGenerator builds frame descriptors for a resolved asset. It performs
// no I/O: identical inputs always produce an identical descriptor list, which
// is what makes retries and caching idempotent.
type FrameGenerator struct {
	ImageBase       string
	IntervalSeconds int
}

// NewFrameGenerator returns a generator using base for frame addresses and
// interval seconds between frames. Zero values fall back to the defaults.
func NewFrameGenerator(base string, interval int) FrameGenerator {
	if base == "" {
		base = DefaultImageBase
	}
	if interval <= 0 {
		interval = DefaultFrameIntervalSeconds
	}
	return FrameGenerator{ImageBase: base, IntervalSeconds: interval}
}

// Generate returns one descriptor per interval from timestamp 0 up to but
// never at or past durationSeconds. A duration shorter than one interval
// yields a single frame at 0; a duration that is an exact multiple of the
// interval excludes the frame at the video end (strict < comparison).
// A non-positive duration yields nil.
func (g FrameGenerator) Generate(durableRef string, durationSeconds float64) []FrameDescriptor {
	count := FrameCount(durationSeconds, g.IntervalSeconds)
	if count == 0 {
		return nil
	}

	frames := make([]FrameDescriptor, 0, count)
	for i := 0; i < count; i++ {
		ts := i * g.IntervalSeconds
		if float64(ts) >= durationSeconds {
			break
		}
		frames = append(frames, FrameDescriptor{
			Address:          fmt.Sprintf("%s/%s/thumbnail.png?time=%d", g.ImageBase, durableRef, ts),
			TimestampSeconds: ts,
			Label:            FrameLabel(ts),
		})
	}
	return frames
}

// FrameCount returns ceil(durationSeconds / intervalSeconds), the number of
// frames Generate produces for that duration.
func FrameCount(durationSeconds float64, intervalSeconds int) int {
	if durationSeconds <= 0 || intervalSeconds <= 0 {
		return 0
	}
	return int(math.Ceil(durationSeconds / float64(intervalSeconds)))
}

// FrameLabel formats a timestamp as zero-padded minutes and seconds,
// e.g. 330 -> "05m30s".
func FrameLabel(timestampSeconds int) string {
	return fmt.Sprintf("%02dm%02ds", timestampSeconds/60, timestampSeconds%60)
}
