package reranker

import (
	"context"
	"fmt"
	"sort"
)

// Reason strings attached to boosted candidates. They are user-facing
// and stable; clients may key UI copy off them.
const (
	ReasonSkillMatch   = "skill level match"
	ReasonPopularity   = "popular with similar learners"
	ReasonLearningPath = "continues your learning path"
)

// skillLevels is the 3-tier difficulty ordinal. Values outside it never
// produce a skill boost, even when candidate and user agree on them.
var skillLevels = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
}

// Candidate is one item entering the rerank stage.
type Candidate struct {
	EntityID   int32
	BaseScore  float64
	Difficulty string
}

// ScoredCandidate is a reranked candidate with its boost trail.
type ScoredCandidate struct {
	EntityID   int32
	BaseScore  float64
	FinalScore float64
	Reasons    []string
}

// UserContext carries the per-user signals the boosts read.
type UserContext struct {
	SkillLevel   string
	LearningPath map[int32]bool
}

// PopularitySource supplies a precomputed popularity fraction in [0, 1]
// for an entity. Implementations must be safe for concurrent use and
// return 0 for unknown entities.
type PopularitySource interface {
	PopularityFraction(entityID int32) float64
}

// Service is the reranking service interface.
type Service interface {
	// Rerank rescores candidates against the user context and returns
	// them in final order.
	Rerank(ctx context.Context, candidates []Candidate, user UserContext) ([]ScoredCandidate, error)
}

// Config represents reranker service configuration.
type Config struct {
	SkillBoost            float64
	PathBoost             float64
	PopularityWeight      float64
	PopularityMateriality float64
	MaxScore              float64
}

// DefaultConfig returns the production boost parameters.
func DefaultConfig() *Config {
	return &Config{
		SkillBoost:            1.2,
		PathBoost:             1.5,
		PopularityWeight:      0.3,
		PopularityMateriality: 0.1,
		MaxScore:              1.0,
	}
}

type service struct {
	cfg        Config
	popularity PopularitySource
}

// NewService creates a new reranker Service. A nil config selects the
// defaults; a nil popularity source disables the popularity boost.
func NewService(cfg *Config, popularity PopularitySource) (Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.SkillBoost <= 1 {
		return nil, fmt.Errorf("invalid skill boost %v: must be greater than 1", cfg.SkillBoost)
	}
	if cfg.PathBoost <= cfg.SkillBoost {
		return nil, fmt.Errorf("invalid path boost %v: must exceed skill boost %v", cfg.PathBoost, cfg.SkillBoost)
	}
	if cfg.PopularityWeight < 0 {
		return nil, fmt.Errorf("invalid popularity weight %v: must not be negative", cfg.PopularityWeight)
	}
	if cfg.PopularityMateriality < 0 {
		return nil, fmt.Errorf("invalid popularity materiality %v: must not be negative", cfg.PopularityMateriality)
	}
	if cfg.MaxScore <= 0 {
		return nil, fmt.Errorf("invalid max score %v: must be positive", cfg.MaxScore)
	}
	return &service{cfg: *cfg, popularity: popularity}, nil
}

func (s *service) Rerank(ctx context.Context, candidates []Candidate, user UserContext) ([]ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rerank cancelled: %w", err)
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		scored = append(scored, s.score(candidate, user))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		if scored[i].BaseScore != scored[j].BaseScore {
			return scored[i].BaseScore > scored[j].BaseScore
		}
		return scored[i].EntityID < scored[j].EntityID
	})
	return scored, nil
}

// score applies the boosts in their fixed order. Absent signals are
// neutral: they skip the boost, they never fail the candidate.
func (s *service) score(candidate Candidate, user UserContext) ScoredCandidate {
	result := ScoredCandidate{
		EntityID:   candidate.EntityID,
		BaseScore:  candidate.BaseScore,
		FinalScore: candidate.BaseScore,
	}

	if skillLevels[candidate.Difficulty] && candidate.Difficulty == user.SkillLevel {
		result.FinalScore *= s.cfg.SkillBoost
		result.Reasons = append(result.Reasons, ReasonSkillMatch)
	}

	fraction := s.popularityFraction(candidate.EntityID)
	result.FinalScore *= 1 + fraction*s.cfg.PopularityWeight
	if fraction > s.cfg.PopularityMateriality {
		result.Reasons = append(result.Reasons, ReasonPopularity)
	}

	if user.LearningPath[candidate.EntityID] {
		result.FinalScore *= s.cfg.PathBoost
		result.Reasons = append(result.Reasons, ReasonLearningPath)
	}

	// Scores rank candidates within a query, they are not confidences.
	if result.FinalScore > s.cfg.MaxScore {
		result.FinalScore = s.cfg.MaxScore
	}
	return result
}

func (s *service) popularityFraction(entityID int32) float64 {
	if s.popularity == nil {
		return 0
	}
	fraction := s.popularity.PopularityFraction(entityID)
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}
