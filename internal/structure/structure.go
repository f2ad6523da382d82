// Package structure extracts summary, action items and classification from
// transcripts with a local Ollama model.
package structure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

const (
	// MaxTranscriptChars bounds the transcript sent to the model
	MaxTranscriptChars = 12000
	truncatedMarker    = "\n\n[TRANSCRIPT TRUNCATED]"

	defaultRetries = 2
	defaultBackoff = 2 * time.Second
	requestTimeout = 120 * time.Second
)

const extractPrompt = `You are analyzing a transcript from a personal audio recording. Extract structured information.

TRANSCRIPT:
%s

Respond with ONLY valid JSON (no markdown, no explanation):
{
  "summary": "2-3 sentence summary of what happened",
  "topics": ["topic1", "topic2"],
  "action_items": ["action1", "action2"],
  "decisions": ["decision1"],
  "entities": ["person/place/org mentioned"],
  "key_quotes": ["notable direct quotes"],
  "sphere": "one of: Work|Ventures|Family|Finance|Health|Learning",
  "tags": ["tag1", "tag2"],
  "sentiment": "one of: positive|negative|neutral|mixed",
  "conversation_type": "one of: meeting|phone_call|dictation|brainstorm|ambient"
}

Rules:
- sphere must be exactly one of: Work, Ventures, Family, Finance, Health, Learning
- conversation_type: meeting (2+ people scheduled), phone_call (2 people remote), dictation (1 person notes), brainstorm (1 person thinking aloud), ambient (background/unclear)
- If unsure about a field, use null or empty array
- Keep summary concise, action_items specific, tags lowercase
`

// OllamaExtractor calls the Ollama generate endpoint
type OllamaExtractor struct {
	BaseURL string
	Model   string
	Retries int
	Backoff time.Duration
	Client  *http.Client
	Log     *logrus.Logger
}

// NewOllamaExtractor creates an extractor with two retries and a 2s fixed backoff
func NewOllamaExtractor(baseURL, model string, log *logrus.Logger) *OllamaExtractor {
	return &OllamaExtractor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Retries: defaultRetries,
		Backoff: defaultBackoff,
		Client:  &http.Client{Timeout: requestTimeout},
		Log:     log,
	}
}

// ModelName returns the model identifier recorded on processing records
func (o *OllamaExtractor) ModelName() string {
	return o.Model
}

// Extract returns the structured fields for transcript. It never fails:
// after the last attempt it returns a degraded result with Error set.
func (o *OllamaExtractor) Extract(ctx context.Context, transcript string) types.Structured {
	prompt := BuildPrompt(transcript)

	var lastErr error
	for attempt := 0; attempt <= o.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Degraded(ctx.Err())
			case <-time.After(o.Backoff):
			}
		}

		text, err := o.generate(ctx, prompt)
		if err == nil {
			var s types.Structured
			if s, err = ParseResponse(text); err == nil {
				return s
			}
		}
		lastErr = err
		o.Log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"model":   o.Model,
		}).WithError(err).Warn("structuring attempt failed")
	}
	return Degraded(lastErr)
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response      string `json:"response"`
	EvalCount     int    `json:"eval_count"`
	TotalDuration int64  `json:"total_duration"`
}

func (o *OllamaExtractor) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   o.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"temperature": 0},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", fmt.Errorf("parsing ollama response: %w", err)
	}
	o.Log.WithFields(logrus.Fields{
		"tokens":   gr.EvalCount,
		"duration": time.Duration(gr.TotalDuration).Round(time.Millisecond),
	}).Debug("ollama generate completed")
	return strings.TrimSpace(gr.Response), nil
}

// BuildPrompt embeds the transcript, truncated to MaxTranscriptChars characters
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(extractPrompt, truncateRunes(transcript, MaxTranscriptChars))
}

// truncateRunes cuts s after n characters on a rune boundary
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + truncatedMarker
		}
		count++
	}
	return s
}

type rawStructured struct {
	Summary          *string    `json:"summary"`
	Topics           stringList `json:"topics"`
	ActionItems      stringList `json:"action_items"`
	Decisions        stringList `json:"decisions"`
	Entities         stringList `json:"entities"`
	KeyQuotes        stringList `json:"key_quotes"`
	Sphere           *string    `json:"sphere"`
	Tags             stringList `json:"tags"`
	Sentiment        *string    `json:"sentiment"`
	ConversationType *string    `json:"conversation_type"`
}

// ParseResponse extracts the JSON object from model output, tolerating
// surrounding code fences, and validates the closed fields.
func ParseResponse(text string) (types.Structured, error) {
	text = stripFences(text)

	var raw rawStructured
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return types.Structured{}, fmt.Errorf("parsing model JSON: %w", err)
	}

	s := types.Structured{
		Summary:     deref(raw.Summary),
		Topics:      raw.Topics.slice(),
		ActionItems: raw.ActionItems.slice(),
		Decisions:   raw.Decisions.slice(),
		Entities:    raw.Entities.slice(),
		KeyQuotes:   raw.KeyQuotes.slice(),
		Tags:        raw.Tags.slice(),
	}
	for i, t := range s.Tags {
		s.Tags[i] = strings.ToLower(t)
	}
	if v := types.Sphere(deref(raw.Sphere)); types.ValidSphere(v) {
		s.Sphere = v
	}
	if v := types.ConversationType(deref(raw.ConversationType)); types.ValidConversationType(v) {
		s.ConversationType = v
	}
	if v := deref(raw.Sentiment); types.ValidSentiment(v) {
		s.Sentiment = v
	}
	return s, nil
}

// Degraded is the structurally complete result used when extraction fails
func Degraded(err error) types.Structured {
	msg := "LLM extraction failed"
	if err != nil {
		msg += ": " + err.Error()
	}
	return types.Structured{
		Topics:      []string{},
		ActionItems: []string{},
		Decisions:   []string{},
		Entities:    []string{},
		KeyQuotes:   []string{},
		Tags:        []string{},
		Error:       msg,
	}
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```") {
		for _, part := range strings.Split(text, "```")[1:] {
			part = strings.TrimPrefix(part, "json")
			if strings.Contains(part, "{") {
				text = part
				break
			}
		}
	}
	// prose around an unfenced object
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// stringList accepts null, a single string, or an array of strings or other
// values. Non-string items are kept as their compact JSON text.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(stringList, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			return err
		}
		out = append(out, buf.String())
	}
	*l = out
	return nil
}

func (l stringList) slice() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}
