package pipeline

import "math"

// AlignedPair couples a frame with the transcript segment spoken around it.
// Segment is nil when the transcript has no segments at all.
type AlignedPair struct {
	Frame   FrameDescriptor    `json:"frame"`
	Segment *TranscriptSegment `json:"segment,omitempty"`
}

// AlignFrames pairs each frame with the segment whose time window contains
// the frame timestamp, or failing that the segment whose midpoint is nearest.
// Pure and deterministic; the analysis collaborator consumes the result.
func AlignFrames(frames []FrameDescriptor, segments []TranscriptSegment) []AlignedPair {
	pairs := make([]AlignedPair, 0, len(frames))
	for _, f := range frames {
		pairs = append(pairs, AlignedPair{Frame: f, Segment: segmentAt(segments, float64(f.TimestampSeconds))})
	}
	return pairs
}

func segmentAt(segments []TranscriptSegment, ts float64) *TranscriptSegment {
	var best *TranscriptSegment
	bestDist := math.MaxFloat64
	for i := range segments {
		seg := &segments[i]
		if seg.StartTime <= ts && ts < seg.EndTime {
			return seg
		}
		mid := (seg.StartTime + seg.EndTime) / 2
		if d := math.Abs(mid - ts); d < bestDist {
			bestDist = d
			best = seg
		}
	}
	return best
}
