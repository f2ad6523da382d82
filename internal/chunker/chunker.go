// Package chunker splits long recordings into bounded chunks at silence boundaries.
package chunker

import (
	"math"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

const (
	// DefaultMaxChunkSeconds bounds a single transcription call
	DefaultMaxChunkSeconds = 1800
	// DefaultMinSilenceMs is the shortest pause considered a gap
	DefaultMinSilenceMs = 500

	// snapTolerance is the fraction of the max chunk length within which a cut snaps to silence
	snapTolerance = 0.3
)

// FindSilenceGaps returns the pauses between consecutive speech segments
// that last at least minGapMs.
func FindSilenceGaps(segments []types.SpeechSegment, minGapMs float64) []types.SilenceGap {
	var gaps []types.SilenceGap
	for i := 0; i+1 < len(segments); i++ {
		start := segments[i].End
		end := segments[i+1].Start
		ms := (end - start) * 1000
		if ms >= minGapMs {
			gaps = append(gaps, types.SilenceGap{Start: start, End: end, DurationMs: ms})
		}
	}
	return gaps
}

// PlanChunks covers [0, total] with contiguous chunks of at most roughly
// maxChunkSeconds, preferring to cut at the midpoint of a silence gap.
func PlanChunks(total float64, gaps []types.SilenceGap, maxChunkSeconds float64) []types.Chunk {
	if total < 0 {
		total = 0
	}
	if total <= maxChunkSeconds || maxChunkSeconds <= 0 {
		return []types.Chunk{{Start: 0, End: total}}
	}

	var chunks []types.Chunk
	chunkStart := 0.0

	for chunkStart < total {
		targetEnd := chunkStart + maxChunkSeconds
		if targetEnd >= total {
			chunks = append(chunks, types.Chunk{Start: chunkStart, End: total})
			break
		}

		cut := targetEnd
		if mid, dist, ok := closestGap(gaps, chunkStart, targetEnd); ok && mid < total && dist < maxChunkSeconds*snapTolerance {
			cut = mid
		}

		chunks = append(chunks, types.Chunk{Start: chunkStart, End: cut})
		chunkStart = cut
	}

	return chunks
}

// closestGap finds the gap midpoint after start nearest to target.
// Ties keep the first gap in slice order.
func closestGap(gaps []types.SilenceGap, start, target float64) (mid, dist float64, ok bool) {
	dist = math.Inf(1)
	for _, g := range gaps {
		m := g.Midpoint()
		if m <= start {
			continue
		}
		if d := math.Abs(m - target); d < dist {
			mid, dist, ok = m, d, true
		}
	}
	return mid, dist, ok
}
