package reranker

import (
	"context"
	"math"
	"testing"
)

type popularityMap map[int32]float64

func (p popularityMap) PopularityFraction(entityID int32) float64 {
	return p[entityID]
}

func mustService(t *testing.T, cfg *Config, popularity PopularitySource) Service {
	t.Helper()
	svc, err := NewService(cfg, popularity)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}

func TestNewServiceDefaults(t *testing.T) {
	svc, err := NewService(nil, nil)
	if err != nil {
		t.Fatalf("NewService(nil) error = %v", err)
	}

	s, ok := svc.(*service)
	if !ok {
		t.Fatal("NewService() did not return *service type")
	}
	if s.cfg.SkillBoost != 1.2 {
		t.Errorf("SkillBoost = %v, want 1.2", s.cfg.SkillBoost)
	}
	if s.cfg.PathBoost != 1.5 {
		t.Errorf("PathBoost = %v, want 1.5", s.cfg.PathBoost)
	}
	if s.cfg.MaxScore != 1.0 {
		t.Errorf("MaxScore = %v, want 1.0", s.cfg.MaxScore)
	}
}

func TestNewServiceValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"skill boost below 1", &Config{SkillBoost: 0.9, PathBoost: 1.5, MaxScore: 1}},
		{"skill boost exactly 1", &Config{SkillBoost: 1, PathBoost: 1.5, MaxScore: 1}},
		{"path boost below skill boost", &Config{SkillBoost: 1.4, PathBoost: 1.2, MaxScore: 1}},
		{"path boost equal to skill boost", &Config{SkillBoost: 1.2, PathBoost: 1.2, MaxScore: 1}},
		{"negative popularity weight", &Config{SkillBoost: 1.2, PathBoost: 1.5, PopularityWeight: -0.1, MaxScore: 1}},
		{"negative materiality", &Config{SkillBoost: 1.2, PathBoost: 1.5, PopularityMateriality: -0.1, MaxScore: 1}},
		{"zero max score", &Config{SkillBoost: 1.2, PathBoost: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.cfg, nil); err == nil {
				t.Error("expected config validation error")
			}
		})
	}
}

func TestRerankSkillBoost(t *testing.T) {
	svc := mustService(t, nil, nil)

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 1, BaseScore: 0.5, Difficulty: "intermediate"}},
		UserContext{SkillLevel: "intermediate"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	if !almostEqual(scored[0].FinalScore, 0.6) {
		t.Errorf("FinalScore = %v, want 0.6", scored[0].FinalScore)
	}
	if !containsReason(scored[0].Reasons, ReasonSkillMatch) {
		t.Errorf("Reasons = %v, want %q", scored[0].Reasons, ReasonSkillMatch)
	}
}

func TestRerankSkillBoostRequiresExactTier(t *testing.T) {
	svc := mustService(t, nil, nil)

	tests := []struct {
		name       string
		difficulty string
		userLevel  string
	}{
		{"different tiers", "advanced", "beginner"},
		{"empty difficulty", "", ""},
		{"unknown level on both sides", "expert", "expert"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scored, err := svc.Rerank(context.Background(),
				[]Candidate{{EntityID: 1, BaseScore: 0.5, Difficulty: tt.difficulty}},
				UserContext{SkillLevel: tt.userLevel})
			if err != nil {
				t.Fatalf("Rerank() error = %v", err)
			}
			if !almostEqual(scored[0].FinalScore, 0.5) {
				t.Errorf("FinalScore = %v, want unboosted 0.5", scored[0].FinalScore)
			}
			if len(scored[0].Reasons) != 0 {
				t.Errorf("Reasons = %v, want none", scored[0].Reasons)
			}
		})
	}
}

func TestRerankPopularityBoost(t *testing.T) {
	svc := mustService(t, nil, popularityMap{1: 0.5})

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 1, BaseScore: 0.4}}, UserContext{})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	// 0.4 * (1 + 0.5*0.3)
	if !almostEqual(scored[0].FinalScore, 0.46) {
		t.Errorf("FinalScore = %v, want 0.46", scored[0].FinalScore)
	}
	if !containsReason(scored[0].Reasons, ReasonPopularity) {
		t.Errorf("Reasons = %v, want %q", scored[0].Reasons, ReasonPopularity)
	}
}

func TestRerankPopularityMateriality(t *testing.T) {
	svc := mustService(t, nil, popularityMap{1: 0.1, 2: 0.100001})

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 1, BaseScore: 0.4}, {EntityID: 2, BaseScore: 0.4}}, UserContext{})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	for _, sc := range scored {
		switch sc.EntityID {
		case 1:
			// Exactly at the threshold: boosted but not material.
			if !almostEqual(sc.FinalScore, 0.412) {
				t.Errorf("entity 1 FinalScore = %v, want 0.412", sc.FinalScore)
			}
			if containsReason(sc.Reasons, ReasonPopularity) {
				t.Errorf("entity 1 at threshold should carry no popularity reason, got %v", sc.Reasons)
			}
		case 2:
			if !containsReason(sc.Reasons, ReasonPopularity) {
				t.Errorf("entity 2 above threshold should carry the popularity reason, got %v", sc.Reasons)
			}
		}
	}
}

func TestRerankFaintPopularityMovesScoreWithoutReason(t *testing.T) {
	svc := mustService(t, nil, popularityMap{1: 0.05})

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 1, BaseScore: 0.8, Difficulty: "beginner"}},
		UserContext{SkillLevel: "beginner"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	// 0.8 * 1.2 * (1 + 0.05*0.3) = 0.9744.
	if !almostEqual(scored[0].FinalScore, 0.9744) {
		t.Errorf("FinalScore = %v, want 0.9744", scored[0].FinalScore)
	}
	if got := scored[0].Reasons; len(got) != 1 || got[0] != ReasonSkillMatch {
		t.Errorf("Reasons = %v, want only %q", got, ReasonSkillMatch)
	}
}

func TestRerankMissingPopularityIsNeutral(t *testing.T) {
	// Source knows entity 7 only; entity 1 degrades to fraction 0.
	svc := mustService(t, nil, popularityMap{7: 0.9})

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 1, BaseScore: 0.4}}, UserContext{})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if !almostEqual(scored[0].FinalScore, 0.4) {
		t.Errorf("FinalScore = %v, want 0.4", scored[0].FinalScore)
	}
}

func TestRerankPathBoost(t *testing.T) {
	svc := mustService(t, nil, nil)

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 3, BaseScore: 0.4}},
		UserContext{LearningPath: map[int32]bool{3: true}})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	if !almostEqual(scored[0].FinalScore, 0.6) {
		t.Errorf("FinalScore = %v, want 0.6", scored[0].FinalScore)
	}
	if !containsReason(scored[0].Reasons, ReasonLearningPath) {
		t.Errorf("Reasons = %v, want %q", scored[0].Reasons, ReasonLearningPath)
	}
}

func TestRerankPathOutweighsSkill(t *testing.T) {
	svc := mustService(t, nil, nil)

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{
			{EntityID: 1, BaseScore: 0.5, Difficulty: "beginner"},
			{EntityID: 2, BaseScore: 0.5},
		},
		UserContext{SkillLevel: "beginner", LearningPath: map[int32]bool{2: true}})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	if scored[0].EntityID != 2 {
		t.Errorf("path-boosted candidate should rank first, got %d", scored[0].EntityID)
	}
}

func TestRerankBoostOrderAndClamp(t *testing.T) {
	svc := mustService(t, nil, popularityMap{1: 1.0})

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 1, BaseScore: 0.9, Difficulty: "advanced"}},
		UserContext{SkillLevel: "advanced", LearningPath: map[int32]bool{1: true}})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	// 0.9 * 1.2 * 1.3 * 1.5 = 2.106, clamped.
	if scored[0].FinalScore != 1.0 {
		t.Errorf("FinalScore = %v, want clamp to 1.0", scored[0].FinalScore)
	}
	wantReasons := []string{ReasonSkillMatch, ReasonPopularity, ReasonLearningPath}
	if len(scored[0].Reasons) != len(wantReasons) {
		t.Fatalf("Reasons = %v, want %v", scored[0].Reasons, wantReasons)
	}
	for i, want := range wantReasons {
		if scored[0].Reasons[i] != want {
			t.Errorf("Reasons[%d] = %q, want %q", i, scored[0].Reasons[i], want)
		}
	}
	if scored[0].BaseScore != 0.9 {
		t.Errorf("BaseScore = %v, want original 0.9 preserved", scored[0].BaseScore)
	}
}

func TestRerankOrdering(t *testing.T) {
	svc := mustService(t, nil, nil)

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{
			{EntityID: 5, BaseScore: 0.7},
			{EntityID: 4, BaseScore: 0.7},
			{EntityID: 3, BaseScore: 0.5, Difficulty: "beginner"},
			{EntityID: 2, BaseScore: 0.9},
		},
		UserContext{SkillLevel: "beginner"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	// 2: 0.9; 4 and 5: 0.7 tie broken by ID; 3: 0.5*1.2=0.6.
	wantOrder := []int32{2, 4, 5, 3}
	for i, want := range wantOrder {
		if scored[i].EntityID != want {
			t.Errorf("scored[%d].EntityID = %d, want %d", i, scored[i].EntityID, want)
		}
	}
}

func TestRerankTieFallsBackToBaseScore(t *testing.T) {
	svc := mustService(t, nil, nil)

	// Entity 1 boosts 0.5 to 0.6; entity 2 sits at 0.6 unboosted. Equal
	// final scores, so the higher base wins.
	scored, err := svc.Rerank(context.Background(),
		[]Candidate{
			{EntityID: 1, BaseScore: 0.5, Difficulty: "advanced"},
			{EntityID: 2, BaseScore: 0.6},
		},
		UserContext{SkillLevel: "advanced"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	if scored[0].EntityID != 2 {
		t.Errorf("higher base score should win the tie, got entity %d first", scored[0].EntityID)
	}
}

func TestRerankEmpty(t *testing.T) {
	svc := mustService(t, nil, nil)

	scored, err := svc.Rerank(context.Background(), nil, UserContext{})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if scored == nil || len(scored) != 0 {
		t.Errorf("Rerank(nil) = %v, want empty non-nil slice", scored)
	}
}

func TestRerankCancelledContext(t *testing.T) {
	svc := mustService(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Rerank(ctx, []Candidate{{EntityID: 1, BaseScore: 0.5}}, UserContext{}); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestRerankOutOfRangePopularityClamped(t *testing.T) {
	svc := mustService(t, nil, popularityMap{1: 4.0, 2: -2.0})

	scored, err := svc.Rerank(context.Background(),
		[]Candidate{{EntityID: 1, BaseScore: 0.5}, {EntityID: 2, BaseScore: 0.5}}, UserContext{})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	for _, sc := range scored {
		switch sc.EntityID {
		case 1:
			// Fraction clamps to 1: 0.5 * 1.3.
			if !almostEqual(sc.FinalScore, 0.65) {
				t.Errorf("entity 1 FinalScore = %v, want 0.65", sc.FinalScore)
			}
		case 2:
			if !almostEqual(sc.FinalScore, 0.5) {
				t.Errorf("entity 2 FinalScore = %v, want 0.5", sc.FinalScore)
			}
		}
	}
}
