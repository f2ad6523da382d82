package types

// Sphere is the closed set of life areas a recording belongs to
type Sphere string

const (
	SphereWork     Sphere = "Work"
	SphereVentures Sphere = "Ventures"
	SphereFamily   Sphere = "Family"
	SphereFinance  Sphere = "Finance"
	SphereHealth   Sphere = "Health"
	SphereLearning Sphere = "Learning"
)

// Spheres lists every valid sphere in prompt order
var Spheres = []Sphere{SphereWork, SphereVentures, SphereFamily, SphereFinance, SphereHealth, SphereLearning}

// ConversationType is the closed set of recording kinds
type ConversationType string

const (
	ConversationMeeting    ConversationType = "meeting"
	ConversationPhoneCall  ConversationType = "phone_call"
	ConversationDictation  ConversationType = "dictation"
	ConversationBrainstorm ConversationType = "brainstorm"
	ConversationAmbient    ConversationType = "ambient"
)

// ConversationTypes lists every valid conversation type
var ConversationTypes = []ConversationType{
	ConversationMeeting, ConversationPhoneCall, ConversationDictation, ConversationBrainstorm, ConversationAmbient,
}

// Sentiments lists every accepted sentiment value
var Sentiments = []string{"positive", "negative", "neutral", "mixed"}

// Structured holds the fields extracted from a transcript by the LLM.
// A degraded result has every field empty and Error set.
type Structured struct {
	Summary          string           `json:"summary,omitempty"`
	Topics           []string         `json:"topics"`
	ActionItems      []string         `json:"action_items"`
	Decisions        []string         `json:"decisions"`
	Entities         []string         `json:"entities"`
	KeyQuotes        []string         `json:"key_quotes"`
	Sphere           Sphere           `json:"sphere,omitempty"`
	Tags             []string         `json:"tags"`
	Sentiment        string           `json:"sentiment,omitempty"`
	ConversationType ConversationType `json:"conversation_type,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Degraded reports whether structuring failed
func (s Structured) Degraded() bool {
	return s.Error != ""
}

// ValidSphere reports whether v is one of Spheres
func ValidSphere(v Sphere) bool {
	for _, s := range Spheres {
		if s == v {
			return true
		}
	}
	return false
}

// ValidConversationType reports whether v is one of ConversationTypes
func ValidConversationType(v ConversationType) bool {
	for _, c := range ConversationTypes {
		if c == v {
			return true
		}
	}
	return false
}

// ValidSentiment reports whether v is one of Sentiments
func ValidSentiment(v string) bool {
	for _, s := range Sentiments {
		if s == v {
			return true
		}
	}
	return false
}
