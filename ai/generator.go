package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/lightpath-ai/lightpath/ai/metrics"
	"github.com/lightpath-ai/lightpath/store"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// InterviewSteps is the number of questions in a profiling interview.
const InterviewSteps = 4

// Generator drives the profiling interview: it produces the next
// age-appropriate question and, once the interview is done, extracts
// structured profile fields from the transcript.
type Generator interface {
	// NextTurn returns the next interviewer question for the transcript so
	// far. The transcript holds alternating assistant/user turns; the step
	// being asked is inferred from the number of user turns.
	NextTurn(ctx context.Context, ageGroup AgeGroup, transcript []Message) (string, error)

	// ExtractProfile converts a finished interview transcript into
	// structured profile fields.
	ExtractProfile(ctx context.Context, ageGroup AgeGroup, transcript []Message) (*store.ProfileFields, error)
}

// NewGenerator creates the generator named by cfg. The "local" provider is
// fully deterministic: banked questions and keyword extraction. A nil
// exporter disables provider call metrics.
func NewGenerator(cfg *GeneratorConfig, exporter *metrics.PrometheusExporter) (Generator, error) {
	if cfg.Provider == "local" {
		return NewLocalGenerator(), nil
	}
	return newOpenAIGenerator(cfg, exporter), nil
}

// stepFromTranscript returns the interview step the next question belongs
// to, clamped to the final step.
func stepFromTranscript(transcript []Message) int {
	answers := 0
	for _, m := range transcript {
		if m.Role == "user" {
			answers++
		}
	}
	step := answers + 1
	if step > InterviewSteps {
		step = InterviewSteps
	}
	return step
}

// Interview focus per step, shared by both generator implementations so
// extraction can rely on answer order.
var interviewFocus = [InterviewSteps]string{
	"their passions and interests",
	"the skills they already have and how strong each is",
	"what they want to achieve and why",
	"their weekly time commitment and preferred learning style (visual, hands-on, theoretical, or mentorship)",
}

type openaiGenerator struct {
	client      *openai.Client
	provider    string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	metrics     *metrics.PrometheusExporter
}

func newOpenAIGenerator(cfg *GeneratorConfig, exporter *metrics.PrometheusExporter) *openaiGenerator {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	return &openaiGenerator{
		client:      newOpenAIClient(cfg.APIKey, cfg.BaseURL),
		provider:    cfg.Provider,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     time.Duration(timeout) * time.Second,
		metrics:     exporter,
	}
}

// chat runs one completion and records the provider call under the given
// operation label.
func (g *openaiGenerator) chat(ctx context.Context, operation string, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if g.metrics != nil {
		g.metrics.RecordProviderCall(g.provider, operation, time.Since(start), err == nil)
		if err == nil {
			g.metrics.RecordProviderTokens(g.model, "prompt", resp.Usage.PromptTokens)
			g.metrics.RecordProviderTokens(g.model, "completion", resp.Usage.CompletionTokens)
		}
	}
	return resp, err
}

func (g *openaiGenerator) NextTurn(ctx context.Context, ageGroup AgeGroup, transcript []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	step := stepFromTranscript(transcript)
	system := interviewSystemPrompt(ageGroup, step)

	messages := append([]Message{SystemPrompt(system)}, transcript...)

	slog.Debug("generator: next turn request",
		"model", g.model,
		"age_group", ageGroup,
		"step", step,
	)

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages:    convertMessages(messages),
	}

	resp, err := g.chat(ctx, "generate", req)
	if err != nil {
		return "", newProviderError(g.provider, "next turn", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from generator")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *openaiGenerator) ExtractProfile(ctx context.Context, ageGroup AgeGroup, transcript []Message) (*store.ProfileFields, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := append(append([]Message{}, transcript...), SystemPrompt(extractionPrompt(ageGroup)))

	req := openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		// Low temperature keeps extraction consistent across retries.
		Temperature: 0.3,
		Messages:    convertMessages(messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := g.chat(ctx, "extract", req)
	if err != nil {
		return nil, newProviderError(g.provider, "extract profile", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from generator")
	}

	fields := &store.ProfileFields{}
	payload := extractJSONObject(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(payload), fields); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	normalizeProfileFields(fields)

	return fields, nil
}

func interviewSystemPrompt(ageGroup AgeGroup, step int) string {
	p := personaFor(ageGroup)

	var b strings.Builder
	b.WriteString("You are the Lightpath profiling interviewer.\n\n")
	fmt.Fprintf(&b, "USER AGE GROUP: %s\n\n", ageGroup)
	b.WriteString("PERSONALITY GUIDELINES:\n")
	fmt.Fprintf(&b, "- Tone: %s\n", p.Tone)
	fmt.Fprintf(&b, "- Language level: %s\n", p.LanguageLevel)
	fmt.Fprintf(&b, "- Emoji frequency: %s\n", p.EmojiFrequency)
	fmt.Fprintf(&b, "- Vocabulary: %s\n", p.Vocabulary)
	if p.Focus != "" {
		fmt.Fprintf(&b, "- Focus: %s\n", p.Focus)
	}
	fmt.Fprintf(&b, "\nEXAMPLE OF YOUR STYLE:\n- %s\n\n", p.Example)
	fmt.Fprintf(&b, "This is question %d of %d. Ask exactly one question about %s.\n",
		step, InterviewSteps, interviewFocus[step-1])
	b.WriteString("Briefly acknowledge the previous answer if there is one. Never answer for the user.")
	return b.String()
}

func extractionPrompt(ageGroup AgeGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this onboarding conversation with a %s user and extract:\n\n", ageGroup)
	b.WriteString(`1. Interests/Passions (as array of strings)
2. Skills (as array of {skill: string, level: string})
3. Goals (as single string)
4. Time commitment (as string)
5. Learning style (as string: visual, hands-on, theoretical, mentorship)
6. Motivation (why they're here)

For kids/teens: Simplify and focus on fun interests
For adults: Focus on career and ROI
For seniors: Focus on enjoyment and community

Return ONLY a JSON object, no other text.

Example output:
{
  "passions": ["Art", "Design"],
  "skills": [{"skill": "Drawing", "level": "beginner"}],
  "goals": "Learn digital art",
  "time_commitment": "30 minutes/day",
  "learning_style": "visual",
  "motivation": "creative expression"
}`)
	return b.String()
}

// extractJSONObject trims anything around the outermost JSON object; some
// models wrap JSON-mode output in code fences anyway.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

// normalizeProfileFields coerces extraction output into the canonical
// enums. Unknown skill levels fall back to beginner; an unknown learning
// style is cleared rather than guessed.
func normalizeProfileFields(fields *store.ProfileFields) {
	for i, skill := range fields.Skills {
		switch store.Difficulty(strings.ToLower(string(skill.Level))) {
		case store.DifficultyBeginner, store.DifficultyIntermediate, store.DifficultyAdvanced:
			fields.Skills[i].Level = store.Difficulty(strings.ToLower(string(skill.Level)))
		default:
			fields.Skills[i].Level = store.DifficultyBeginner
		}
	}

	style := store.LearningStyle(strings.ToLower(strings.TrimSpace(string(fields.LearningStyle))))
	switch style {
	case store.LearningStyleVisual, store.LearningStyleHandsOn, store.LearningStyleTheoretical, store.LearningStyleMentorship:
		fields.LearningStyle = style
	default:
		fields.LearningStyle = ""
	}
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		switch m.Role {
		case "system":
			converted[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			}
		case "assistant":
			converted[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
		default:
			converted[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			}
		}
	}
	return converted
}
