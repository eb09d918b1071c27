package ai

import (
	"context"
	"strings"

	"github.com/lightpath-ai/lightpath/store"
)

// AgeGroup buckets interviewees so questions, tone, and extraction
// emphasis match the audience.
type AgeGroup string

const (
	AgeGroupKids       AgeGroup = "kids"        // 5-12
	AgeGroupTeens      AgeGroup = "teens"       // 13-17
	AgeGroupYoungAdult AgeGroup = "young_adult" // 18-24
	AgeGroupAdult      AgeGroup = "adult"       // 25-44
	AgeGroupMiddleAge  AgeGroup = "middle_age"  // 45-60
	AgeGroupSenior     AgeGroup = "senior"      // 60+
)

// MinProfilingAge is the youngest supported interviewee age.
const MinProfilingAge = 5

// AgeGroupFromAge buckets an age. Ages below MinProfilingAge have no
// group; callers reject them before starting a session.
func AgeGroupFromAge(age int) AgeGroup {
	switch {
	case age >= 5 && age <= 12:
		return AgeGroupKids
	case age >= 13 && age <= 17:
		return AgeGroupTeens
	case age >= 18 && age <= 24:
		return AgeGroupYoungAdult
	case age >= 25 && age <= 44:
		return AgeGroupAdult
	case age >= 45 && age <= 60:
		return AgeGroupMiddleAge
	default:
		return AgeGroupSenior
	}
}

type persona struct {
	Tone           string
	LanguageLevel  string
	EmojiFrequency string
	Vocabulary     string
	Focus          string
	Example        string
}

var personas = map[AgeGroup]persona{
	AgeGroupKids: {
		Tone:           "enthusiastic, encouraging, simple, playful",
		LanguageLevel:  "elementary (ages 5-12)",
		EmojiFrequency: "high (every sentence)",
		Vocabulary:     "simple words only, no jargon",
		Example:        "Wow! You love art! That's so cool! 🎨✨",
	},
	AgeGroupTeens: {
		Tone:           "casual, relatable, hype, trendy",
		LanguageLevel:  "high school (ages 13-17)",
		EmojiFrequency: "medium-high",
		Vocabulary:     "appropriate slang, no cringe",
		Example:        "Yo! Content creation? That's 🔥! Let's get you started.",
	},
	AgeGroupYoungAdult: {
		Tone:           "professional yet friendly, direct",
		LanguageLevel:  "college/professional",
		EmojiFrequency: "low (sparingly)",
		Vocabulary:     "professional, industry terms okay",
		Focus:          "outcomes, ROI, career impact",
		Example:        "Got it! UI Design with a focus on career transition. Let's build you a roadmap.",
	},
	AgeGroupAdult: {
		Tone:           "professional, consultative, efficient",
		LanguageLevel:  "professional/executive",
		EmojiFrequency: "minimal",
		Vocabulary:     "professional, business terminology",
		Focus:          "ROI, efficiency, credentials, results",
		Example:        "Understood. Let's create a pathway to your promotion goal.",
	},
	AgeGroupMiddleAge: {
		Tone:           "respectful, empowering, thoughtful",
		LanguageLevel:  "professional, mature",
		EmojiFrequency: "none to minimal",
		Vocabulary:     "professional, mature",
		Focus:          "purpose, legacy, impact, fulfillment",
		Example:        "Your 25 years of experience would be incredibly valuable to aspiring professionals.",
	},
	AgeGroupSenior: {
		Tone:           "patient, warm, respectful, supportive",
		LanguageLevel:  "clear, simple (not condescending)",
		EmojiFrequency: "minimal",
		Vocabulary:     "clear, familiar terms",
		Focus:          "community, enjoyment, support, ease of use",
		Example:        "That's wonderful! Art classes can be very rewarding. Let me find some beginner-friendly options for you.",
	},
}

// personaFor falls back to the young-adult persona for unlisted groups.
func personaFor(g AgeGroup) persona {
	if p, ok := personas[g]; ok {
		return p
	}
	return personas[AgeGroupYoungAdult]
}

// questionBanks holds the scripted interview for the local generator.
// Each bank follows the interviewFocus order: passions, skills, goals,
// then time commitment + learning style.
var questionBanks = map[AgeGroup][InterviewSteps]string{
	AgeGroupKids: {
		"Hi! I'm your learning buddy! 🌟 What do you LOVE to do for fun? 🎨🎮⚽🎵",
		"So cool! What are you already good at? It's okay to still be learning! ✨",
		"What's something awesome you want to learn or get better at? 🚀",
		"How much time do you want to spend learning? ⏰ And do you like watching, making, or reading best?",
	},
	AgeGroupTeens: {
		"Hey! Welcome 👋 What gets you hyped? Design, coding, music, content? 🔥",
		"Nice! What skills have you already got, and honestly, how good are you at them?",
		"Why are you here? (Be real!) Job, side hustle, college prep, personal brand?",
		"How much time per week can you actually commit? And how do you learn best: videos, projects, reading, or a mentor?",
	},
	AgeGroupYoungAdult: {
		"What brings you here today, and which areas are you most passionate about?",
		"What skills are you working with right now, and how would you rate your level in each?",
		"What outcome are you targeting, and on what timeline?",
		"How many hours a week can you commit, and how do you learn best: visual, hands-on, theoretical, or with a mentor?",
	},
	AgeGroupAdult: {
		"What are your professional interests, and which areas do you want to invest in?",
		"Which skills do you bring today, and at what level?",
		"What concrete result are you after: a promotion, a transition, or a new venture?",
		"What weekly time budget works for you, and which format delivers best: visual, hands-on, theoretical, or mentorship?",
	},
	AgeGroupMiddleAge: {
		"What matters most to you at this stage: building on your experience, or exploring something new?",
		"What expertise have you built over your career so far?",
		"What would you like this next chapter to achieve: impact, a transition, or passing on what you know?",
		"How much time can you give this each week, and how do you prefer to learn: visual, hands-on, theoretical, or with a mentor?",
	},
	AgeGroupSenior: {
		"It's wonderful that you're here. What activities do you enjoy most these days?",
		"What skills or hobbies have you practiced over the years?",
		"What would you like to get out of learning: enjoyment, community, or something new to master?",
		"How much time would you like to spend each week? And do you prefer watching, doing, reading, or learning with a guide?",
	},
}

func questionFor(g AgeGroup, step int) string {
	bank, ok := questionBanks[g]
	if !ok {
		bank = questionBanks[AgeGroupYoungAdult]
	}
	if step < 1 {
		step = 1
	}
	if step > InterviewSteps {
		step = InterviewSteps
	}
	return bank[step-1]
}

// localGenerator serves the scripted question banks and extracts fields
// with keyword rules. Deterministic, no network.
type localGenerator struct{}

// NewLocalGenerator creates the deterministic offline generator.
func NewLocalGenerator() Generator {
	return &localGenerator{}
}

func (g *localGenerator) NextTurn(ctx context.Context, ageGroup AgeGroup, transcript []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return questionFor(ageGroup, stepFromTranscript(transcript)), nil
}

func (g *localGenerator) ExtractProfile(ctx context.Context, ageGroup AgeGroup, transcript []Message) (*store.ProfileFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answers := userAnswers(transcript)
	fields := &store.ProfileFields{}

	if len(answers) > 0 {
		fields.Passions = splitList(answers[0])
	}
	if len(answers) > 1 {
		level := inferSkillLevel(answers[1])
		for _, name := range splitList(answers[1]) {
			fields.Skills = append(fields.Skills, store.Skill{Name: name, Level: level})
		}
	}
	if len(answers) > 2 {
		fields.Goals = strings.TrimSpace(answers[2])
		fields.Motivation = fields.Goals
	}
	if len(answers) > 3 {
		fields.TimeCommitment = strings.TrimSpace(answers[3])
		fields.LearningStyle = inferLearningStyle(answers[3])
	}

	return fields, nil
}

func userAnswers(transcript []Message) []string {
	answers := []string{}
	for _, m := range transcript {
		if m.Role == "user" {
			answers = append(answers, m.Content)
		}
	}
	return answers
}

// splitList breaks a free-text answer into list items on commas and "and".
func splitList(answer string) []string {
	normalized := strings.NewReplacer(" and ", ",", ";", ",", "\n", ",").Replace(strings.ToLower(answer))
	items := []string{}
	for _, part := range strings.Split(normalized, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func inferSkillLevel(answer string) store.Difficulty {
	lower := strings.ToLower(answer)
	for _, marker := range []string{"advanced", "expert", "years of", "professional"} {
		if strings.Contains(lower, marker) {
			return store.DifficultyAdvanced
		}
	}
	for _, marker := range []string{"intermediate", "some experience", "pretty good", "okay at"} {
		if strings.Contains(lower, marker) {
			return store.DifficultyIntermediate
		}
	}
	return store.DifficultyBeginner
}

func inferLearningStyle(answer string) store.LearningStyle {
	lower := strings.ToLower(answer)
	switch {
	case strings.Contains(lower, "mentor"), strings.Contains(lower, "guide"), strings.Contains(lower, "coach"):
		return store.LearningStyleMentorship
	case strings.Contains(lower, "hands-on"), strings.Contains(lower, "hands on"), strings.Contains(lower, "doing"), strings.Contains(lower, "project"), strings.Contains(lower, "making"):
		return store.LearningStyleHandsOn
	case strings.Contains(lower, "watch"), strings.Contains(lower, "video"), strings.Contains(lower, "visual"):
		return store.LearningStyleVisual
	case strings.Contains(lower, "read"), strings.Contains(lower, "book"), strings.Contains(lower, "theor"):
		return store.LearningStyleTheoretical
	default:
		return ""
	}
}
