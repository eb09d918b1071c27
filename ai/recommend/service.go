// Package recommend orchestrates the recommendation pipeline: profile
// load, result cache, fan-out vector search, hydration, re-ranking and
// merge.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lightpath-ai/lightpath/ai/cache"
	"github.com/lightpath-ai/lightpath/ai/core/reranker"
	"github.com/lightpath-ai/lightpath/ai/core/search"
	"github.com/lightpath-ai/lightpath/ai/internal/strutil"
	"github.com/lightpath-ai/lightpath/ai/metrics"
	"github.com/lightpath-ai/lightpath/ai/profiling"
	"github.com/lightpath-ai/lightpath/store"
)

const (
	// DefaultK is the result count when the request does not set one.
	DefaultK = 10

	// MaxK caps the result count per request.
	MaxK = 100

	// summaryLength caps a recommendation summary line, in runes.
	summaryLength = 160
)

// Kind discriminates the hydrated entity of a recommendation.
const (
	KindOpportunity = "opportunity"
	KindMentor      = "mentor"
)

// ErrNoProfile reports a user without a completed profiling interview.
// Recommendations require a profile vector; callers route the user to
// profiling instead of retrying.
var ErrNoProfile = errors.New("learner profile not found")

// Request describes one recommendation query.
type Request struct {
	UserID  int32
	Filters search.Filters
	K       int
}

// Recommendation is one ranked result with its hydrated entity and the
// boost reasons that moved it.
type Recommendation struct {
	Kind      string
	EntityID  int32
	Title     string
	Summary   string
	Score     float64
	BaseScore float64
	Reasons   []string

	Opportunity *store.Opportunity
	Mentor      *store.Mentor
}

// Service serves personalized recommendations.
type Service interface {
	// Recommend runs the pipeline for one user. Both entity spaces are
	// searched unless the filters name opportunity-only dimensions; a
	// single failing space degrades to the other's results.
	Recommend(ctx context.Context, req Request) ([]Recommendation, error)

	// SaveProfile persists a completed profiling interview and drops the
	// user's cached results.
	SaveProfile(ctx context.Context, completed *profiling.CompletedProfile) (*store.LearnerProfile, error)

	// InvalidateUser drops every cached result of the user.
	InvalidateUser(userID int32)

	// CacheStats reports result cache counters.
	CacheStats() cache.ResultCacheStats
}

// Config configures the recommendation service.
type Config struct {
	// Model is the embedding model name the vector columns are stored
	// under.
	Model string

	// Dimensions is the embedding dimensionality of the deployment.
	Dimensions int

	// CacheMaxEntries, CacheTTL and SimilarityThreshold configure the
	// result cache; zero values select the cache defaults.
	CacheMaxEntries     int
	CacheTTL            time.Duration
	SimilarityThreshold float32

	// PopularityRefreshInterval is how long popularity snapshots are
	// served before reloading.
	PopularityRefreshInterval time.Duration

	// Reranker overrides the boost parameters; nil selects the defaults.
	Reranker *reranker.Config
}

type service struct {
	store  *store.Store
	model  string
	search search.Service

	cache *cache.ResultCache[[]Recommendation]

	oppPopularity    *popularity
	mentorPopularity *popularity
	oppReranker      reranker.Service
	mentorReranker   reranker.Service

	metrics *metrics.PrometheusExporter
	logger  *slog.Logger
}

// NewService wires the pipeline over the store. The exporter may be nil
// to run without metrics.
func NewService(st *store.Store, cfg Config, logger *slog.Logger, exporter *metrics.PrometheusExporter) (Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", cfg.Dimensions)
	}
	if logger == nil {
		logger = slog.Default()
	}

	oppPopularity := newOpportunityPopularity(st, cfg.PopularityRefreshInterval)
	mentorPopularity := newMentorPopularity(st, cfg.PopularityRefreshInterval)

	oppReranker, err := reranker.NewService(cfg.Reranker, oppPopularity)
	if err != nil {
		return nil, err
	}
	mentorReranker, err := reranker.NewService(cfg.Reranker, mentorPopularity)
	if err != nil {
		return nil, err
	}

	return &service{
		store: st,
		model: cfg.Model,
		search: search.NewService(
			NewOpportunityIndex(st, cfg.Model, cfg.Dimensions),
			NewMentorIndex(st, cfg.Model, cfg.Dimensions),
		),
		cache: cache.NewResultCache[[]Recommendation](cache.ResultCacheConfig{
			MaxEntries:          cfg.CacheMaxEntries,
			SimilarityThreshold: cfg.SimilarityThreshold,
			TTL:                 cfg.CacheTTL,
		}),
		oppPopularity:    oppPopularity,
		mentorPopularity: mentorPopularity,
		oppReranker:      oppReranker,
		mentorReranker:   mentorReranker,
		metrics:          exporter,
		logger:           logger,
	}, nil
}

func (s *service) Recommend(ctx context.Context, req Request) ([]Recommendation, error) {
	start := time.Now()
	recommendations, err := s.recommend(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordRecommendation(time.Since(start), err == nil)
	}
	return recommendations, err
}

func (s *service) recommend(ctx context.Context, req Request) ([]Recommendation, error) {
	k := req.K
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}

	lp, err := s.store.GetLearnerProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load learner profile: %w", err)
	}
	if lp == nil || len(lp.Embedding) == 0 {
		return nil, ErrNoProfile
	}

	fingerprint := requestFingerprint(req.UserID, req.Filters, k)
	if cached, ok := s.cache.Get(fingerprint, lp.Embedding); ok {
		if s.metrics != nil {
			s.metrics.RecordCacheHit("result")
		}
		return append([]Recommendation(nil), cached...), nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss("result")
	}

	membership, err := s.store.GetLearningPathMembership(ctx, req.UserID)
	if err != nil {
		// The path boost degrades, the pipeline continues.
		s.logger.Warn("Learning path load failed", "user_id", req.UserID, "error", err)
		membership = nil
	}
	path := make(map[int32]bool, len(membership))
	for id := range membership {
		path[id] = true
	}
	user := reranker.UserContext{
		SkillLevel:   string(lp.Fields.Level()),
		LearningPath: path,
	}

	spaces := []string{SpaceOpportunities}
	if !opportunityOnlyFilters(req.Filters) {
		spaces = append(spaces, SpaceMentors)
	}

	results := make([][]Recommendation, len(spaces))
	errs := make([]error, len(spaces))

	g, gctx := errgroup.WithContext(ctx)
	for i, space := range spaces {
		i, space := i, space
		g.Go(func() error {
			results[i], errs[i] = s.searchSpace(gctx, space, lp, user, req.Filters, k)
			return nil
		})
	}
	// Goroutines report per-space; the group never carries an error.
	_ = g.Wait()

	merged := make([]Recommendation, 0, k)
	var firstErr error
	failed := 0
	for i, space := range spaces {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			s.logger.Warn("Space search failed", "space", space, "error", errs[i])
			continue
		}
		merged = append(merged, results[i]...)
	}
	if failed == len(spaces) {
		return nil, fmt.Errorf("all spaces failed: %w", firstErr)
	}

	sortRecommendations(merged)
	if len(merged) > k {
		merged = merged[:k]
	}

	s.cache.Set(fingerprint, lp.Embedding, merged)
	return merged, nil
}

// searchSpace runs search, hydration and re-ranking for one space.
func (s *service) searchSpace(ctx context.Context, space string, lp *store.LearnerProfile, user reranker.UserContext, filters search.Filters, k int) ([]Recommendation, error) {
	start := time.Now()
	candidates, err := s.search.Search(ctx, space, lp.Embedding, filters, k)
	if s.metrics != nil {
		s.metrics.RecordSearch(space, time.Since(start), err == nil)
	}
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Recommendation{}, nil
	}

	switch space {
	case SpaceOpportunities:
		return s.rankOpportunities(ctx, candidates, user)
	case SpaceMentors:
		return s.rankMentors(ctx, candidates, user)
	default:
		return nil, fmt.Errorf("unknown space %q", space)
	}
}

func (s *service) rankOpportunities(ctx context.Context, candidates []search.Candidate, user reranker.UserContext) ([]Recommendation, error) {
	ids := make([]int32, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	list, err := s.store.ListOpportunities(ctx, &store.FindOpportunity{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("hydrate opportunities: %w", err)
	}
	byID := make(map[int32]*store.Opportunity, len(list))
	for _, o := range list {
		byID[o.ID] = o
	}

	rcands := make([]reranker.Candidate, 0, len(candidates))
	for _, c := range candidates {
		o, ok := byID[c.ID]
		if !ok {
			// Deleted between search and hydration.
			continue
		}
		rcands = append(rcands, reranker.Candidate{
			EntityID:   c.ID,
			BaseScore:  c.Score,
			Difficulty: string(o.Difficulty),
		})
	}

	if err := s.oppPopularity.ensureFresh(ctx); err != nil {
		s.logger.Warn("Popularity refresh failed", "space", SpaceOpportunities, "error", err)
	}

	scored, err := s.rerank(ctx, s.oppReranker, rcands, user)
	if err != nil {
		return nil, err
	}

	recommendations := make([]Recommendation, 0, len(scored))
	for _, sc := range scored {
		o := byID[sc.EntityID]
		recommendations = append(recommendations, Recommendation{
			Kind:        KindOpportunity,
			EntityID:    sc.EntityID,
			Title:       o.Title,
			Summary:     strutil.Truncate(o.Description, summaryLength),
			Score:       sc.FinalScore,
			BaseScore:   sc.BaseScore,
			Reasons:     sc.Reasons,
			Opportunity: o,
		})
	}
	return recommendations, nil
}

func (s *service) rankMentors(ctx context.Context, candidates []search.Candidate, user reranker.UserContext) ([]Recommendation, error) {
	ids := make([]int32, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	list, err := s.store.ListMentors(ctx, &store.FindMentor{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("hydrate mentors: %w", err)
	}
	byID := make(map[int32]*store.Mentor, len(list))
	for _, m := range list {
		byID[m.ID] = m
	}

	rcands := make([]reranker.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := byID[c.ID]; !ok {
			continue
		}
		rcands = append(rcands, reranker.Candidate{
			EntityID:  c.ID,
			BaseScore: c.Score,
		})
	}

	if err := s.mentorPopularity.ensureFresh(ctx); err != nil {
		s.logger.Warn("Popularity refresh failed", "space", SpaceMentors, "error", err)
	}

	// Learning path membership is an opportunity ID set; mentor IDs live
	// in another space and must not read it.
	mentorUser := reranker.UserContext{SkillLevel: user.SkillLevel}
	scored, err := s.rerank(ctx, s.mentorReranker, rcands, mentorUser)
	if err != nil {
		return nil, err
	}

	recommendations := make([]Recommendation, 0, len(scored))
	for _, sc := range scored {
		m := byID[sc.EntityID]
		recommendations = append(recommendations, Recommendation{
			Kind:      KindMentor,
			EntityID:  sc.EntityID,
			Title:     m.DisplayName,
			Summary:   strutil.Truncate(m.Bio, summaryLength),
			Score:     sc.FinalScore,
			BaseScore: sc.BaseScore,
			Reasons:   sc.Reasons,
			Mentor:    m,
		})
	}
	return recommendations, nil
}

func (s *service) rerank(ctx context.Context, svc reranker.Service, candidates []reranker.Candidate, user reranker.UserContext) ([]reranker.ScoredCandidate, error) {
	start := time.Now()
	scored, err := svc.Rerank(ctx, candidates, user)
	if s.metrics != nil {
		s.metrics.RecordRerank(time.Since(start))
		for _, sc := range scored {
			for _, reason := range sc.Reasons {
				s.metrics.RecordBoost(reason)
			}
		}
	}
	return scored, err
}

func (s *service) SaveProfile(ctx context.Context, completed *profiling.CompletedProfile) (*store.LearnerProfile, error) {
	if completed == nil {
		return nil, errors.New("nil completed profile")
	}

	now := time.Now().Unix()
	saved, err := s.store.UpsertLearnerProfile(ctx, &store.LearnerProfile{
		UserID:      completed.UserID,
		CreatedTs:   now,
		UpdatedTs:   now,
		Fields:      completed.Fields,
		AgeGroup:    string(completed.AgeGroup),
		ProfileText: completed.ProfileText,
		Model:       s.model,
		Embedding:   completed.Vector,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert learner profile: %w", err)
	}

	// A replaced vector makes every cached result for the user stale.
	s.InvalidateUser(completed.UserID)

	s.logger.Info("Learner profile saved",
		"user_id", completed.UserID,
		"age_group", completed.AgeGroup,
		"skill_level", completed.Fields.Level())
	return saved, nil
}

func (s *service) InvalidateUser(userID int32) {
	removed := s.cache.InvalidatePrefix(userPrefix(userID))
	if removed > 0 {
		s.logger.Debug("Cached results invalidated", "user_id", userID, "entries", removed)
	}
}

func (s *service) CacheStats() cache.ResultCacheStats {
	return s.cache.Stats()
}

// opportunityOnlyFilters reports whether the filters name dimensions
// only opportunities have, making a mentor search pointless.
func opportunityOnlyFilters(f search.Filters) bool {
	return f.Type != nil || f.CategoryID != nil || f.Difficulty != nil
}

// sortRecommendations orders by final score descending, ties by base
// score descending, opportunities before mentors, then entity ID.
func sortRecommendations(recommendations []Recommendation) {
	sort.Slice(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.BaseScore != b.BaseScore {
			return a.BaseScore > b.BaseScore
		}
		if a.Kind != b.Kind {
			return a.Kind == KindOpportunity
		}
		return a.EntityID < b.EntityID
	})
}

// userPrefix is the fingerprint prefix shared by all of a user's cached
// results.
func userPrefix(userID int32) string {
	return "user:" + strconv.FormatInt(int64(userID), 10) + "|"
}

// requestFingerprint canonicalizes a request for cache keying. It leads
// with the user so invalidation can drop by prefix.
func requestFingerprint(userID int32, f search.Filters, k int) string {
	var sb strings.Builder
	sb.WriteString(userPrefix(userID))
	if f.Type != nil {
		sb.WriteString("type=")
		sb.WriteString(*f.Type)
		sb.WriteString("|")
	}
	if f.CategoryID != nil {
		sb.WriteString("cat=")
		sb.WriteString(strconv.FormatInt(int64(*f.CategoryID), 10))
		sb.WriteString("|")
	}
	if f.Difficulty != nil {
		sb.WriteString("diff=")
		sb.WriteString(*f.Difficulty)
		sb.WriteString("|")
	}
	if f.ActiveOnly {
		sb.WriteString("active|")
	}
	sb.WriteString("k=")
	sb.WriteString(strconv.Itoa(k))
	return sb.String()
}
