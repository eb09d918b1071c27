package store

import (
	"context"
	"fmt"
	"strings"
)

// LearningStyle is how a learner prefers to absorb material.
type LearningStyle string

const (
	LearningStyleVisual      LearningStyle = "visual"
	LearningStyleHandsOn     LearningStyle = "hands-on"
	LearningStyleTheoretical LearningStyle = "theoretical"
	LearningStyleMentorship  LearningStyle = "mentorship"
)

// Skill is a named skill with a 3-tier level.
type Skill struct {
	Name  string     `json:"skill"`
	Level Difficulty `json:"level"`
}

// ProfileFields is the structured data extracted from a profiling interview.
type ProfileFields struct {
	Passions       []string      `json:"passions"`
	Skills         []Skill       `json:"skills"`
	Goals          string        `json:"goals"`
	TimeCommitment string        `json:"time_commitment"`
	LearningStyle  LearningStyle `json:"learning_style"`
	Motivation     string        `json:"motivation"`
}

// Level returns the learner's overall 3-tier level: the highest level among
// the extracted skills, defaulting to beginner when no skills were captured.
func (f *ProfileFields) Level() Difficulty {
	level := DifficultyBeginner
	for _, skill := range f.Skills {
		switch skill.Level {
		case DifficultyAdvanced:
			return DifficultyAdvanced
		case DifficultyIntermediate:
			level = DifficultyIntermediate
		}
	}
	return level
}

// ComposeText builds the canonical profile text used for embedding. The
// vector is derived from this text and replaced wholesale whenever the
// fields change.
func (f *ProfileFields) ComposeText() string {
	skills := make([]string, 0, len(f.Skills))
	for _, s := range f.Skills {
		skills = append(skills, fmt.Sprintf("%s (%s)", s.Name, s.Level))
	}

	orDefault := func(v string) string {
		if v == "" {
			return "Not specified"
		}
		return v
	}

	lines := []string{
		"Interests: " + orDefault(strings.Join(f.Passions, ", ")),
		"Skills: " + orDefault(strings.Join(skills, ", ")),
		"Goals: " + orDefault(f.Goals),
		"Learning Style: " + orDefault(string(f.LearningStyle)),
		"Experience Level: " + string(f.Level()),
		"Motivation: " + orDefault(f.Motivation),
	}
	return strings.Join(lines, "\n")
}

// LearnerProfile is the persisted outcome of a completed profiling session.
// It is mutated only by a full re-profiling cycle; partial field updates
// without regenerating the vector are not permitted.
type LearnerProfile struct {
	UserID      int32
	CreatedTs   int64
	UpdatedTs   int64
	Fields      ProfileFields
	AgeGroup    string
	ProfileText string
	Model       string
	Embedding   []float32
}

// UpsertLearnerProfile inserts or replaces a learner profile, vector included.
func (s *Store) UpsertLearnerProfile(ctx context.Context, upsert *LearnerProfile) (*LearnerProfile, error) {
	return s.driver.UpsertLearnerProfile(ctx, upsert)
}

// GetLearnerProfile gets the profile of a user, or nil when absent.
func (s *Store) GetLearnerProfile(ctx context.Context, userID int32) (*LearnerProfile, error) {
	return s.driver.GetLearnerProfile(ctx, userID)
}
