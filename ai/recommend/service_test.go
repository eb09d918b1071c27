package recommend

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/lightpath-ai/lightpath/ai"
	"github.com/lightpath-ai/lightpath/ai/core/search"
	"github.com/lightpath-ai/lightpath/ai/profiling"
	"github.com/lightpath-ai/lightpath/internal/profile"
	"github.com/lightpath-ai/lightpath/store"
)

// fakeDriver is an in-memory store.Driver for pipeline tests.
type fakeDriver struct {
	mu sync.Mutex

	profiles      map[int32]*store.LearnerProfile
	opportunities map[int32]*store.Opportunity
	mentors       map[int32]*store.Mentor
	pathItems     []*store.LearningPathItem
	oppVectors    map[int32][]float32
	mentorVectors map[int32][]float32

	oppSearchErr    error
	mentorSearchErr error
	popularityErr   error

	oppSearchCalls      int
	mentorSearchCalls   int
	popularityLoadCalls int

	lastOppSearchOpts    *store.OpportunityVectorSearchOptions
	lastMentorSearchOpts *store.MentorVectorSearchOptions
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		profiles:      make(map[int32]*store.LearnerProfile),
		opportunities: make(map[int32]*store.Opportunity),
		mentors:       make(map[int32]*store.Mentor),
		oppVectors:    make(map[int32][]float32),
		mentorVectors: make(map[int32][]float32),
	}
}

func (d *fakeDriver) GetDB() *sql.DB                    { return nil }
func (d *fakeDriver) Close() error                      { return nil }
func (d *fakeDriver) Migrate(ctx context.Context) error { return nil }

func (d *fakeDriver) CreateOpportunity(ctx context.Context, create *store.Opportunity) (*store.Opportunity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opportunities[create.ID] = create
	return create, nil
}

func (d *fakeDriver) ListOpportunities(ctx context.Context, find *store.FindOpportunity) ([]*store.Opportunity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(find.IDs) > 0 {
		list := []*store.Opportunity{}
		for _, id := range find.IDs {
			if o, ok := d.opportunities[id]; ok {
				list = append(list, o)
			}
		}
		return list, nil
	}

	if find.OrderByEnrollments {
		d.popularityLoadCalls++
		if d.popularityErr != nil {
			return nil, d.popularityErr
		}
	}
	list := []*store.Opportunity{}
	for _, o := range d.opportunities {
		if find.OnlyActive && !o.IsActive {
			continue
		}
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EnrollmentsCount > list[j].EnrollmentsCount })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *fakeDriver) UpsertOpportunityEmbedding(ctx context.Context, embedding *store.OpportunityEmbedding) (*store.OpportunityEmbedding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oppVectors[embedding.OpportunityID] = embedding.Embedding
	return embedding, nil
}

func (d *fakeDriver) OpportunityVectorSearch(ctx context.Context, opts *store.OpportunityVectorSearchOptions) ([]*store.OpportunityWithScore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oppSearchCalls++
	d.lastOppSearchOpts = opts
	if d.oppSearchErr != nil {
		return nil, d.oppSearchErr
	}

	results := []*store.OpportunityWithScore{}
	for id, vec := range d.oppVectors {
		o, ok := d.opportunities[id]
		if !ok {
			o = &store.Opportunity{ID: id}
		}
		if opts.OnlyActive && !o.IsActive {
			continue
		}
		if opts.Type != nil && o.Type != *opts.Type {
			continue
		}
		if opts.Difficulty != nil && o.Difficulty != *opts.Difficulty {
			continue
		}
		if opts.CategoryID != nil && o.CategoryID != *opts.CategoryID {
			continue
		}
		results = append(results, &store.OpportunityWithScore{Opportunity: o, Score: cosine32(opts.Vector, vec)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (d *fakeDriver) CreateMentor(ctx context.Context, create *store.Mentor) (*store.Mentor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mentors[create.ID] = create
	return create, nil
}

func (d *fakeDriver) ListMentors(ctx context.Context, find *store.FindMentor) ([]*store.Mentor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(find.IDs) > 0 {
		list := []*store.Mentor{}
		for _, id := range find.IDs {
			if m, ok := d.mentors[id]; ok {
				list = append(list, m)
			}
		}
		return list, nil
	}

	list := []*store.Mentor{}
	for _, m := range d.mentors {
		if find.OnlyActive && !m.IsActive {
			continue
		}
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SessionsCount > list[j].SessionsCount })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *fakeDriver) UpsertMentorEmbedding(ctx context.Context, embedding *store.MentorEmbedding) (*store.MentorEmbedding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mentorVectors[embedding.MentorID] = embedding.Embedding
	return embedding, nil
}

func (d *fakeDriver) MentorVectorSearch(ctx context.Context, opts *store.MentorVectorSearchOptions) ([]*store.MentorWithScore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mentorSearchCalls++
	d.lastMentorSearchOpts = opts
	if d.mentorSearchErr != nil {
		return nil, d.mentorSearchErr
	}

	results := []*store.MentorWithScore{}
	for id, vec := range d.mentorVectors {
		m, ok := d.mentors[id]
		if !ok {
			continue
		}
		if opts.OnlyActive && !m.IsActive {
			continue
		}
		results = append(results, &store.MentorWithScore{Mentor: m, Score: cosine32(opts.Vector, vec)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (d *fakeDriver) UpsertLearnerProfile(ctx context.Context, upsert *store.LearnerProfile) (*store.LearnerProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[upsert.UserID] = upsert
	return upsert, nil
}

func (d *fakeDriver) GetLearnerProfile(ctx context.Context, userID int32) (*store.LearnerProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profiles[userID], nil
}

func (d *fakeDriver) UpsertLearningPathItem(ctx context.Context, upsert *store.LearningPathItem) (*store.LearningPathItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pathItems = append(d.pathItems, upsert)
	return upsert, nil
}

func (d *fakeDriver) ListLearningPathItems(ctx context.Context, find *store.FindLearningPathItem) ([]*store.LearningPathItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.LearningPathItem{}
	for _, item := range d.pathItems {
		if find.UserID != nil && item.UserID != *find.UserID {
			continue
		}
		if find.OpportunityID != nil && item.OpportunityID != *find.OpportunityID {
			continue
		}
		list = append(list, item)
	}
	return list, nil
}

func (d *fakeDriver) CreateBooking(ctx context.Context, create *store.Booking) (*store.Booking, error) {
	return create, nil
}

func (d *fakeDriver) ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error) {
	return nil, nil
}

func (d *fakeDriver) UpdateBookingStatus(ctx context.Context, id string, status store.BookingStatus) (*store.Booking, error) {
	return nil, nil
}

func cosine32(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// seedDriver populates a learner at [1,0,0] with a beginner skill level,
// two active opportunities and one mentor. Opportunity 2 sits on the
// learner's path and dominates enrollments.
func seedDriver(d *fakeDriver) {
	d.profiles[1] = &store.LearnerProfile{
		UserID: 1,
		Fields: store.ProfileFields{
			Passions: []string{"robotics"},
			Skills:   []store.Skill{{Name: "python", Level: store.DifficultyBeginner}},
		},
		AgeGroup:    "teens",
		ProfileText: "Interests: robotics",
		Model:       "local-hash",
		Embedding:   []float32{1, 0, 0},
	}

	d.opportunities[1] = &store.Opportunity{
		ID: 1, CreatedTs: 100, Title: "Intro to Robotics", Description: "Build your first robot.",
		Type: store.OpportunityTypeCourse, Difficulty: store.DifficultyBeginner,
		CategoryID: 3, IsActive: true, EnrollmentsCount: 10,
	}
	d.oppVectors[1] = []float32{1, 0, 0}

	d.opportunities[2] = &store.Opportunity{
		ID: 2, CreatedTs: 200, Title: "Advanced Control Systems", Description: "PID and beyond.",
		Type: store.OpportunityTypeWorkshop, Difficulty: store.DifficultyAdvanced,
		CategoryID: 3, IsActive: true, EnrollmentsCount: 100,
	}
	d.oppVectors[2] = []float32{0.9, 0.1, 0}

	d.mentors[7] = &store.Mentor{
		ID: 7, CreatedTs: 300, DisplayName: "Ada", Bio: "Robotics mentor.",
		Tier: store.MentorTierGold, IsActive: true, SessionsCount: 0,
	}
	d.mentorVectors[7] = []float32{1, 0, 0}

	d.pathItems = append(d.pathItems, &store.LearningPathItem{ID: 1, UserID: 1, OpportunityID: 2, Position: 1})
}

func newTestService(t *testing.T, d *fakeDriver) Service {
	t.Helper()
	st := store.New(d, &profile.Profile{})
	svc, err := NewService(st, Config{Model: "local-hash", Dimensions: 3}, nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func strPtr(s string) *string { return &s }

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}

func TestRecommendHappyPath(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	svc := newTestService(t, d)

	recommendations, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recommendations) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(recommendations))
	}

	// All three clamp to 1.0; ties fall back to base score, then
	// opportunities before mentors.
	wantOrder := []struct {
		kind string
		id   int32
	}{
		{KindOpportunity, 1},
		{KindMentor, 7},
		{KindOpportunity, 2},
	}
	for i, want := range wantOrder {
		got := recommendations[i]
		if got.Kind != want.kind || got.EntityID != want.id {
			t.Errorf("recommendations[%d] = (%s, %d), want (%s, %d)", i, got.Kind, got.EntityID, want.kind, want.id)
		}
	}

	intro := recommendations[0]
	if !containsReason(intro.Reasons, "skill level match") {
		t.Errorf("opportunity 1 reasons = %v, want skill level match", intro.Reasons)
	}
	if containsReason(intro.Reasons, "popular with similar learners") {
		t.Errorf("opportunity 1 at the materiality threshold must carry no popularity reason, got %v", intro.Reasons)
	}
	if intro.Opportunity == nil || intro.Opportunity.Title != "Intro to Robotics" {
		t.Errorf("opportunity 1 not hydrated: %+v", intro.Opportunity)
	}
	if intro.Title != "Intro to Robotics" || intro.Summary == "" {
		t.Errorf("opportunity 1 display fields = %q / %q", intro.Title, intro.Summary)
	}

	advanced := recommendations[2]
	if !containsReason(advanced.Reasons, "popular with similar learners") {
		t.Errorf("opportunity 2 reasons = %v, want popularity", advanced.Reasons)
	}
	if !containsReason(advanced.Reasons, "continues your learning path") {
		t.Errorf("opportunity 2 reasons = %v, want learning path", advanced.Reasons)
	}

	mentor := recommendations[1]
	if mentor.Mentor == nil || mentor.Mentor.DisplayName != "Ada" {
		t.Errorf("mentor not hydrated: %+v", mentor.Mentor)
	}
	if len(mentor.Reasons) != 0 {
		t.Errorf("mentor reasons = %v, want none", mentor.Reasons)
	}
}

func TestRecommendNoProfile(t *testing.T) {
	d := newFakeDriver()
	svc := newTestService(t, d)

	_, err := svc.Recommend(context.Background(), Request{UserID: 42})
	if !errors.Is(err, ErrNoProfile) {
		t.Fatalf("Recommend() error = %v, want ErrNoProfile", err)
	}
}

func TestRecommendCacheHit(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	svc := newTestService(t, d)

	first, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("first Recommend() error = %v", err)
	}
	second, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("second Recommend() error = %v", err)
	}

	if d.oppSearchCalls != 1 || d.mentorSearchCalls != 1 {
		t.Errorf("search calls = (%d, %d), want (1, 1): second request should hit the cache",
			d.oppSearchCalls, d.mentorSearchCalls)
	}
	if svc.CacheStats().ExactHits != 1 {
		t.Errorf("ExactHits = %d, want 1", svc.CacheStats().ExactHits)
	}
	if len(first) != len(second) {
		t.Fatalf("cached result length %d != %d", len(second), len(first))
	}
	for i := range first {
		if first[i].EntityID != second[i].EntityID || first[i].Kind != second[i].Kind {
			t.Errorf("cached result[%d] differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRecommendDifferentKMissesCache(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	svc := newTestService(t, d)

	if _, err := svc.Recommend(context.Background(), Request{UserID: 1, K: 5}); err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if _, err := svc.Recommend(context.Background(), Request{UserID: 1, K: 3}); err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if d.oppSearchCalls != 2 {
		t.Errorf("oppSearchCalls = %d, want 2: a different k is a different request", d.oppSearchCalls)
	}
}

func TestRecommendOpportunityFiltersSkipMentorSpace(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	svc := newTestService(t, d)

	recommendations, err := svc.Recommend(context.Background(), Request{
		UserID:  1,
		Filters: search.Filters{Type: strPtr("course")},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if d.mentorSearchCalls != 0 {
		t.Errorf("mentorSearchCalls = %d, want 0 for an opportunity-typed filter", d.mentorSearchCalls)
	}
	if len(recommendations) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recommendations))
	}
	if recommendations[0].Kind != KindOpportunity || recommendations[0].EntityID != 1 {
		t.Errorf("got (%s, %d), want the course", recommendations[0].Kind, recommendations[0].EntityID)
	}
}

func TestRecommendOneSpaceFailing(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	d.oppSearchErr = errors.New("pgvector down")
	svc := newTestService(t, d)

	recommendations, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend() error = %v, want degraded result", err)
	}
	if len(recommendations) == 0 {
		t.Fatal("got no recommendations, want the surviving mentor space")
	}
	for _, r := range recommendations {
		if r.Kind != KindMentor {
			t.Errorf("got kind %s, want only mentors when opportunities fail", r.Kind)
		}
	}
}

func TestRecommendAllSpacesFailing(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	d.oppSearchErr = errors.New("pgvector down")
	d.mentorSearchErr = errors.New("pgvector down")
	svc := newTestService(t, d)

	_, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err == nil {
		t.Fatal("Recommend() error = nil, want failure when every space fails")
	}
}

func TestRecommendKBoundsResult(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	svc := newTestService(t, d)

	recommendations, err := svc.Recommend(context.Background(), Request{UserID: 1, K: 1})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recommendations) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recommendations))
	}
	if recommendations[0].Kind != KindOpportunity || recommendations[0].EntityID != 1 {
		t.Errorf("top = (%s, %d), want (opportunity, 1)", recommendations[0].Kind, recommendations[0].EntityID)
	}
}

func TestRecommendSkipsVanishedEntities(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	// An embedding whose entity was deleted between indexing and now.
	d.oppVectors[99] = []float32{1, 0, 0}
	svc := newTestService(t, d)

	recommendations, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, r := range recommendations {
		if r.Kind == KindOpportunity && r.EntityID == 99 {
			t.Error("deleted opportunity 99 leaked into the results")
		}
	}
}

func TestSaveProfileInvalidatesCache(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	svc := newTestService(t, d)

	if _, err := svc.Recommend(context.Background(), Request{UserID: 1}); err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	// The new vector stays within the similarity threshold of the old
	// one; only explicit invalidation prevents a stale similar hit.
	saved, err := svc.SaveProfile(context.Background(), &profiling.CompletedProfile{
		UserID:   1,
		AgeGroup: ai.AgeGroupTeens,
		Fields: store.ProfileFields{
			Passions: []string{"robotics", "music"},
			Skills:   []store.Skill{{Name: "python", Level: store.DifficultyIntermediate}},
		},
		ProfileText: "Interests: robotics, music",
		Vector:      []float32{1, 0.1, 0},
	})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if saved.Model != "local-hash" {
		t.Errorf("saved.Model = %q, want the service's embedding model", saved.Model)
	}
	if d.profiles[1].ProfileText != "Interests: robotics, music" {
		t.Errorf("profile not persisted: %+v", d.profiles[1])
	}

	if _, err := svc.Recommend(context.Background(), Request{UserID: 1}); err != nil {
		t.Fatalf("Recommend() after SaveProfile error = %v", err)
	}
	if d.oppSearchCalls != 2 {
		t.Errorf("oppSearchCalls = %d, want 2: stale cache must not serve the new vector", d.oppSearchCalls)
	}
	if svc.CacheStats().SimilarHits != 0 {
		t.Errorf("SimilarHits = %d, want 0 after invalidation", svc.CacheStats().SimilarHits)
	}
}

func TestRecommendConcurrentRequests(t *testing.T) {
	d := newFakeDriver()
	seedDriver(d)
	svc := newTestService(t, d)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Recommend(context.Background(), Request{UserID: 1}); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent Recommend() error = %v", err)
	}
}
