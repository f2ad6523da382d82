package merge

import (
	"reflect"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

func speakersOf(words []types.WordToken) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Speaker
	}
	return out
}

func TestAssignSpeakers(t *testing.T) {
	diar := []types.DiarizationSegment{
		{Start: 0, End: 5, Speaker: "SPEAKER_00"},
		{Start: 5, End: 10, Speaker: "SPEAKER_01"},
	}

	tests := []struct {
		name string
		word types.WordToken
		want string
	}{
		{"fully contained", types.WordToken{Text: "hello", Start: 1, End: 2}, "SPEAKER_00"},
		{"no overlap", types.WordToken{Text: "late", Start: 12, End: 13}, types.UnknownSpeaker},
		{"sixty forty", types.WordToken{Text: "split", Start: 4.4, End: 5.4}, "SPEAKER_00"},
		{"forty sixty", types.WordToken{Text: "split", Start: 4.6, End: 5.6}, "SPEAKER_01"},
		{"zero duration", types.WordToken{Text: "blip", Start: 3, End: 3}, types.UnknownSpeaker},
		{"touching boundary only", types.WordToken{Text: "edge", Start: 10, End: 11}, types.UnknownSpeaker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssignSpeakers([]types.WordToken{tt.word}, diar)
			if got[0].Speaker != tt.want {
				t.Errorf("speaker = %q, want %q", got[0].Speaker, tt.want)
			}
		})
	}
}

func TestAssignSpeakersAccumulatesPerSpeaker(t *testing.T) {
	// A has two short pieces totalling 0.6s, B one piece of 0.4s
	diar := []types.DiarizationSegment{
		{Start: 0, End: 0.3, Speaker: "A"},
		{Start: 0.3, End: 0.7, Speaker: "B"},
		{Start: 0.7, End: 1.0, Speaker: "A"},
	}
	got := AssignSpeakers([]types.WordToken{{Text: "x", Start: 0, End: 1}}, diar)
	if got[0].Speaker != "A" {
		t.Errorf("speaker = %q, want A", got[0].Speaker)
	}
}

func TestAssignSpeakersTieFirstSeenWins(t *testing.T) {
	word := []types.WordToken{{Text: "x", Start: 1, End: 3}}

	diar := []types.DiarizationSegment{
		{Start: 2, End: 4, Speaker: "B"},
		{Start: 0, End: 2, Speaker: "A"},
	}
	if got := AssignSpeakers(word, diar); got[0].Speaker != "B" {
		t.Errorf("speaker = %q, want B (first in diarization order)", got[0].Speaker)
	}

	diar[0], diar[1] = diar[1], diar[0]
	if got := AssignSpeakers(word, diar); got[0].Speaker != "A" {
		t.Errorf("speaker = %q, want A (first in diarization order)", got[0].Speaker)
	}
}

func TestAssignSpeakersDoesNotMutateInput(t *testing.T) {
	words := []types.WordToken{{Text: "a", Start: 0, End: 1}}
	AssignSpeakers(words, []types.DiarizationSegment{{Start: 0, End: 1, Speaker: "A"}})
	if words[0].Speaker != "" {
		t.Errorf("input mutated: %+v", words[0])
	}
}

func TestMergeScenario(t *testing.T) {
	words := []types.WordToken{{Text: "is", Start: 0, End: 1}, {Text: "a", Start: 1, End: 2}}
	diar := []types.DiarizationSegment{{Start: 0, End: 1, Speaker: "A"}, {Start: 1, End: 2, Speaker: "B"}}

	labeled := AssignSpeakers(words, diar)
	if got := speakersOf(labeled); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("labels = %v, want [A B]", got)
	}

	segs := BuildSegments(labeled)
	want := []types.ConversationSegment{
		{Speaker: "A", Start: 0, End: 1, Text: "is"},
		{Speaker: "B", Start: 1, End: 2, Text: "a"},
	}
	if !reflect.DeepEqual(segs, want) {
		t.Errorf("segments = %+v, want %+v", segs, want)
	}

	if got := BuildSpeakerTranscript(labeled); got != "A: is\nB: a" {
		t.Errorf("transcript = %q", got)
	}
}

func TestBuildSegmentsGroupsRuns(t *testing.T) {
	words := []types.WordToken{
		{Text: " Hello", Start: 0, End: 0.5, Speaker: "A"},
		{Text: " there", Start: 0.5, End: 1, Speaker: "A"},
		{Text: " hi", Start: 1.2, End: 1.5, Speaker: "B"},
		{Text: " again", Start: 2, End: 2.4, Speaker: "A"},
	}
	segs := BuildSegments(words)
	if len(segs) != 3 {
		t.Fatalf("len(segments) = %d, want 3", len(segs))
	}
	if segs[0].Text != "Hello there" || segs[0].Start != 0 || segs[0].End != 1 {
		t.Errorf("segs[0] = %+v", segs[0])
	}
	if segs[2].Speaker != "A" || segs[2].Text != "again" {
		t.Errorf("segs[2] = %+v", segs[2])
	}
}

func TestBuildSegmentsEmpty(t *testing.T) {
	segs := BuildSegments(nil)
	if segs == nil || len(segs) != 0 {
		t.Errorf("BuildSegments(nil) = %#v, want empty slice", segs)
	}
	if got := BuildSpeakerTranscript(nil); got != "" {
		t.Errorf("BuildSpeakerTranscript(nil) = %q, want empty", got)
	}
}

func TestBuildSegmentsIdempotent(t *testing.T) {
	words := []types.WordToken{
		{Text: "one", Start: 0, End: 1, Speaker: "A"},
		{Text: "two", Start: 1, End: 2, Speaker: "A"},
		{Text: "three", Start: 2, End: 3, Speaker: "B"},
		{Text: "four", Start: 3, End: 4, Speaker: types.UnknownSpeaker},
		{Text: "five", Start: 4, End: 5, Speaker: "A"},
	}
	first := BuildSegments(words)

	// flatten each segment back into word tokens spread over its span
	var retokenized []types.WordToken
	for _, s := range first {
		fields := strings.Fields(s.Text)
		step := (s.End - s.Start) / float64(len(fields))
		for i, f := range fields {
			retokenized = append(retokenized, types.WordToken{
				Text:    f,
				Start:   s.Start + step*float64(i),
				End:     s.Start + step*float64(i+1),
				Speaker: s.Speaker,
			})
		}
	}
	second := BuildSegments(retokenized)

	if len(first) != len(second) {
		t.Fatalf("segment count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Speaker != second[i].Speaker || first[i].Start != second[i].Start || first[i].Text != second[i].Text {
			t.Errorf("segment %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestSpeakerLabels(t *testing.T) {
	segs := []types.DiarizationSegment{
		{Speaker: "SPEAKER_01"}, {Speaker: "SPEAKER_00"}, {Speaker: "SPEAKER_01"},
	}
	if got := SpeakerLabels(segs); !reflect.DeepEqual(got, []string{"SPEAKER_00", "SPEAKER_01"}) {
		t.Errorf("labels = %v", got)
	}
	if got := SpeakerLabels(nil); len(got) != 0 {
		t.Errorf("labels = %v, want empty", got)
	}
}
