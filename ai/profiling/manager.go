package profiling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/lightpath-ai/lightpath/ai"
	"github.com/lightpath-ai/lightpath/ai/metrics"
)

// Session lifecycle constants.
const (
	// DefaultSessionTTL bounds interview inactivity. Sessions idle past
	// it are evicted and later operations see ErrSessionExpired.
	DefaultSessionTTL = 30 * time.Minute

	cleanupCheckInterval = 1 * time.Minute
)

// Manager runs profiling interviews. It owns the session map and drives
// the injected generator and embedder; it never persists profiles itself.
type Manager struct {
	generator ai.Generator
	embedder  ai.EmbeddingService
	logger    *slog.Logger
	metrics   *metrics.PrometheusExporter
	ttl       time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	done     chan struct{}
}

// NewManager creates a session manager. A nil logger falls back to
// slog.Default; a nil exporter runs without metrics; a non-positive ttl
// selects DefaultSessionTTL.
func NewManager(generator ai.Generator, embedder ai.EmbeddingService, logger *slog.Logger, exporter *metrics.PrometheusExporter, ttl time.Duration) (*Manager, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	m := &Manager{
		generator: generator,
		embedder:  embedder,
		logger:    logger,
		metrics:   exporter,
		ttl:       ttl,
		sessions:  make(map[string]*Session),
		done:      make(chan struct{}),
	}

	go m.cleanupLoop()

	return m, nil
}

// StartSession opens an interview for a user and returns the session
// holding the opening question as its first assistant turn.
func (m *Manager) StartSession(ctx context.Context, userID int32, age int) (*Session, error) {
	if age < ai.MinProfilingAge {
		return nil, fmt.Errorf("invalid age %d: profiling supports ages %d and up", age, ai.MinProfilingAge)
	}

	ageGroup := ai.AgeGroupFromAge(age)
	opening, err := m.generator.NextTurn(ctx, ageGroup, nil)
	if err != nil {
		return nil, fmt.Errorf("generate opening question: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:         shortuuid.New(),
		UserID:     userID,
		Age:        age,
		AgeGroup:   ageGroup,
		CreatedAt:  now,
		status:     SessionStatusAwaitingAnswer,
		step:       1,
		transcript: []ai.Message{ai.AssistantMessage(opening)},
		lastActive: now,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	active := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionStarted()
		m.metrics.SetActiveSessions(active)
	}
	m.logger.Info("Profiling session started",
		"session_id", sess.ID,
		"user_id", userID,
		"age_group", ageGroup)

	return sess, nil
}

// SubmitAnswer records the answer for the given step. Steps 1 to 3 reply
// with the next question; the final step runs extraction and, when it
// succeeds, returns the completed profile and destroys the session.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID string, step int, answer string) (*Turn, error) {
	sess, err := m.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status != SessionStatusAwaitingAnswer {
		return nil, &InvalidStepError{SessionID: sessionID, Got: step}
	}
	if step != sess.step {
		return nil, &InvalidStepError{SessionID: sessionID, Expected: sess.step, Got: step}
	}

	sess.transcript = append(sess.transcript, ai.UserMessage(answer))
	sess.touchLocked()

	if sess.step < ai.InterviewSteps {
		question, err := m.generator.NextTurn(ctx, sess.AgeGroup, sess.transcript)
		if err != nil {
			// Drop the answer again so the step stays retryable.
			sess.transcript = sess.transcript[:len(sess.transcript)-1]
			return nil, fmt.Errorf("generate question %d: %w", sess.step+1, err)
		}
		sess.transcript = append(sess.transcript, ai.AssistantMessage(question))
		sess.step++
		return &Turn{SessionID: sessionID, Step: sess.step, Question: question}, nil
	}

	sess.status = SessionStatusExtracting
	profile, err := m.extractLocked(ctx, sess)
	if err != nil {
		// Extraction stays pending; CompleteSession retries it.
		return nil, err
	}

	m.finishSession(sess)
	return &Turn{SessionID: sessionID, Profile: profile}, nil
}

// CompleteSession retries extraction for a session whose final answer is
// in but whose extraction or embedding previously failed.
func (m *Manager) CompleteSession(ctx context.Context, sessionID string) (*CompletedProfile, error) {
	sess, err := m.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status == SessionStatusAwaitingAnswer {
		return nil, &InvalidStepError{SessionID: sessionID, Expected: sess.step}
	}

	profile, err := m.extractLocked(ctx, sess)
	if err != nil {
		return nil, err
	}

	m.finishSession(sess)
	return profile, nil
}

// extractLocked synthesizes the profile from the transcript and embeds
// its canonical text. Extracted fields are kept on the session so a
// retry after an embedding failure does not rerun the generator. Caller
// must hold the session lock.
func (m *Manager) extractLocked(ctx context.Context, sess *Session) (*CompletedProfile, error) {
	sess.touchLocked()

	if sess.fields == nil {
		fields, err := m.generator.ExtractProfile(ctx, sess.AgeGroup, sess.transcript)
		if err != nil {
			return nil, fmt.Errorf("extract profile: %w", err)
		}
		sess.fields = fields
	}

	profileText := sess.fields.ComposeText()
	vector, err := m.embedder.Embed(ctx, profileText)
	if err != nil {
		return nil, fmt.Errorf("embed profile: %w", err)
	}

	sess.status = SessionStatusComplete
	return &CompletedProfile{
		UserID:      sess.UserID,
		AgeGroup:    sess.AgeGroup,
		Fields:      *sess.fields,
		ProfileText: profileText,
		Vector:      vector,
	}, nil
}

// finishSession removes a completed session from the map. Runs on a
// goroutine so the caller can keep holding the session lock; a stale map
// entry in the gap is filtered by getSession.
func (m *Manager) finishSession(sess *Session) {
	m.logger.Info("Profiling session completed",
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"turns", len(sess.transcript))

	go func() {
		m.mu.Lock()
		delete(m.sessions, sess.ID)
		active := len(m.sessions)
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.SessionClosed("completed")
			m.metrics.SetActiveSessions(active)
		}
	}()
}

// GetSession retrieves a live session.
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	sess, err := m.getSession(sessionID)
	return sess, err == nil
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// getSession resolves a session ID, lazily evicting one that sat idle
// past the TTL so expiry does not wait for the next cleanup tick.
func (m *Manager) getSession(sessionID string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok || sess.Status() == SessionStatusComplete {
		return nil, ErrSessionExpired
	}
	if time.Since(sess.LastActive()) > m.ttl {
		m.evictSession(sessionID, "idle timeout")
		return nil, ErrSessionExpired
	}
	return sess, nil
}

func (m *Manager) evictSession(sessionID string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return
	}
	delete(m.sessions, sessionID)
	if m.metrics != nil {
		m.metrics.SessionClosed("expired")
		m.metrics.SetActiveSessions(len(m.sessions))
	}
	m.logger.Info("Profiling session evicted", "session_id", sessionID, "reason", reason)
}

// cleanupLoop runs periodic eviction of idle sessions until Shutdown.
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdleSessions()
		case <-m.done:
			return
		}
	}
}

// cleanupIdleSessions evicts sessions that exceeded the inactivity TTL.
func (m *Manager) cleanupIdleSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	evicted := 0
	for sessionID, sess := range m.sessions {
		idle := now.Sub(sess.LastActive())
		if idle > m.ttl {
			delete(m.sessions, sessionID)
			evicted++
			if m.metrics != nil {
				m.metrics.SessionClosed("expired")
			}
			m.logger.Info("Profiling session idle timeout, evicting",
				"session_id", sessionID,
				"idle_duration", idle,
				"ttl", m.ttl)
		}
	}
	if evicted > 0 && m.metrics != nil {
		m.metrics.SetActiveSessions(len(m.sessions))
	}
}

// Shutdown stops the cleanup loop and drops all sessions. In-flight
// interviews are abandoned; profiles not yet completed are lost.
func (m *Manager) Shutdown() {
	close(m.done)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
	if m.metrics != nil {
		m.metrics.SetActiveSessions(0)
	}
}
