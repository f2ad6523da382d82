// Package merge fuses word-level transcription with speaker diarization.
package merge

import (
	"sort"
	"strings"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

type overlap struct {
	speaker string
	seconds float64
}

// AssignSpeakers labels each word with the speaker whose diarization segments
// overlap it the most. Words without duration or without any overlapping
// segment get types.UnknownSpeaker. On equal overlap the speaker whose
// segment was seen first in diarization order wins.
func AssignSpeakers(words []types.WordToken, diar []types.DiarizationSegment) []types.WordToken {
	labeled := make([]types.WordToken, len(words))
	for i, w := range words {
		w.Speaker = types.UnknownSpeaker
		if w.End > w.Start {
			w.Speaker = bestSpeaker(w, diar)
		}
		labeled[i] = w
	}
	return labeled
}

func bestSpeaker(w types.WordToken, diar []types.DiarizationSegment) string {
	var totals []overlap
	for _, d := range diar {
		o := min(w.End, d.End) - max(w.Start, d.Start)
		if o <= 0 {
			continue
		}
		found := false
		for i := range totals {
			if totals[i].speaker == d.Speaker {
				totals[i].seconds += o
				found = true
				break
			}
		}
		if !found {
			totals = append(totals, overlap{speaker: d.Speaker, seconds: o})
		}
	}

	best := types.UnknownSpeaker
	bestSeconds := 0.0
	for _, t := range totals {
		if t.seconds > bestSeconds {
			best, bestSeconds = t.speaker, t.seconds
		}
	}
	return best
}

// BuildSegments groups consecutive words with the same speaker into turns.
func BuildSegments(words []types.WordToken) []types.ConversationSegment {
	var segments []types.ConversationSegment
	scan(words, func(speaker string, run []types.WordToken) {
		segments = append(segments, types.ConversationSegment{
			Speaker: speaker,
			Start:   run[0].Start,
			End:     run[len(run)-1].End,
			Text:    joinWords(run),
		})
	})
	if segments == nil {
		return []types.ConversationSegment{}
	}
	return segments
}

// BuildSpeakerTranscript renders the same grouping as BuildSegments as
// "SPEAKER: text" lines.
func BuildSpeakerTranscript(words []types.WordToken) string {
	var lines []string
	scan(words, func(speaker string, run []types.WordToken) {
		lines = append(lines, speaker+": "+joinWords(run))
	})
	return strings.Join(lines, "\n")
}

// SpeakerLabels returns the sorted distinct speakers of the diarization segments.
func SpeakerLabels(diar []types.DiarizationSegment) []string {
	seen := make(map[string]struct{}, len(diar))
	labels := []string{}
	for _, d := range diar {
		if _, ok := seen[d.Speaker]; ok {
			continue
		}
		seen[d.Speaker] = struct{}{}
		labels = append(labels, d.Speaker)
	}
	sort.Strings(labels)
	return labels
}

// scan walks words left to right and emits each same-speaker run.
func scan(words []types.WordToken, emit func(speaker string, run []types.WordToken)) {
	runStart := 0
	for i := 1; i <= len(words); i++ {
		if i < len(words) && words[i].Speaker == words[runStart].Speaker {
			continue
		}
		emit(words[runStart].Speaker, words[runStart:i])
		runStart = i
	}
}

func joinWords(run []types.WordToken) string {
	parts := make([]string, 0, len(run))
	for _, w := range run {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
