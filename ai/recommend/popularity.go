package recommend

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lightpath-ai/lightpath/store"
)

const (
	// DefaultPopularityRefreshInterval is how long a popularity snapshot
	// is served before the next request reloads it.
	DefaultPopularityRefreshInterval = 5 * time.Minute

	// popularityCohortLimit bounds the aggregate query. Entities outside
	// the cohort read as fraction 0.
	popularityCohortLimit = 500
)

// popularity serves precomputed popularity fractions for one entity
// space. The snapshot is reloaded lazily once it is older than the
// refresh interval; concurrent reloads collapse into a single store
// query via singleflight. A failed reload keeps serving the previous
// snapshot.
type popularity struct {
	load            func(ctx context.Context) (map[int32]float64, error)
	refreshInterval time.Duration

	group singleflight.Group

	mu          sync.RWMutex
	fractions   map[int32]float64
	refreshedAt time.Time
}

func newOpportunityPopularity(st *store.Store, refreshInterval time.Duration) *popularity {
	if refreshInterval <= 0 {
		refreshInterval = DefaultPopularityRefreshInterval
	}
	return &popularity{
		load:            func(ctx context.Context) (map[int32]float64, error) { return loadOpportunityFractions(ctx, st) },
		refreshInterval: refreshInterval,
	}
}

func newMentorPopularity(st *store.Store, refreshInterval time.Duration) *popularity {
	if refreshInterval <= 0 {
		refreshInterval = DefaultPopularityRefreshInterval
	}
	return &popularity{
		load:            func(ctx context.Context) (map[int32]float64, error) { return loadMentorFractions(ctx, st) },
		refreshInterval: refreshInterval,
	}
}

// PopularityFraction returns the entity's fraction from the current
// snapshot, 0 when unknown.
func (p *popularity) PopularityFraction(entityID int32) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fractions[entityID]
}

// ensureFresh reloads the snapshot when it is stale. Callers treat a
// reload failure as a degraded signal, not a fatal one.
func (p *popularity) ensureFresh(ctx context.Context) error {
	if p.fresh() {
		return nil
	}

	_, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		// A caller that queued behind the winning flight sees its result.
		if p.fresh() {
			return nil, nil
		}

		fractions, err := p.load(ctx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.fractions = fractions
		p.refreshedAt = time.Now()
		p.mu.Unlock()
		return nil, nil
	})
	return err
}

func (p *popularity) fresh() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fractions != nil && time.Since(p.refreshedAt) < p.refreshInterval
}

// loadOpportunityFractions computes enrollments/max(enrollments) over
// the most enrolled active opportunities.
func loadOpportunityFractions(ctx context.Context, st *store.Store) (map[int32]float64, error) {
	limit := popularityCohortLimit
	list, err := st.ListOpportunities(ctx, &store.FindOpportunity{
		OnlyActive:         true,
		OrderByEnrollments: true,
		Limit:              &limit,
	})
	if err != nil {
		return nil, err
	}

	var max int32
	for _, o := range list {
		if o.EnrollmentsCount > max {
			max = o.EnrollmentsCount
		}
	}

	fractions := make(map[int32]float64, len(list))
	if max == 0 {
		return fractions, nil
	}
	for _, o := range list {
		fractions[o.ID] = float64(o.EnrollmentsCount) / float64(max)
	}
	return fractions, nil
}

// loadMentorFractions computes sessions/max(sessions) over the most
// booked active mentors.
func loadMentorFractions(ctx context.Context, st *store.Store) (map[int32]float64, error) {
	limit := popularityCohortLimit
	list, err := st.ListMentors(ctx, &store.FindMentor{
		OnlyActive:      true,
		OrderBySessions: true,
		Limit:           &limit,
	})
	if err != nil {
		return nil, err
	}

	var max int32
	for _, m := range list {
		if m.SessionsCount > max {
			max = m.SessionsCount
		}
	}

	fractions := make(map[int32]float64, len(list))
	if max == 0 {
		return fractions, nil
	}
	for _, m := range list {
		fractions[m.ID] = float64(m.SessionsCount) / float64(max)
	}
	return fractions, nil
}
