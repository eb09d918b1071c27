package profiling

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightpath-ai/lightpath/ai"
	"github.com/lightpath-ai/lightpath/store"
)

// SessionStatus defines the current state of a profiling session.
type SessionStatus string

const (
	// SessionStatusAwaitingAnswer means the interview is waiting for the
	// answer to the current step.
	SessionStatusAwaitingAnswer SessionStatus = "awaiting_answer"
	// SessionStatusExtracting means all answers are in and profile
	// extraction has started but not yet succeeded.
	SessionStatusExtracting SessionStatus = "extracting"
	// SessionStatusComplete means the profile was extracted and embedded.
	// Completed sessions are removed from the manager.
	SessionStatusComplete SessionStatus = "complete"
)

// ErrSessionExpired is returned for operations against a session ID that
// is unknown or was evicted after its inactivity window.
var ErrSessionExpired = errors.New("session expired")

// InvalidStepError rejects an answer submitted for a step the session is
// not waiting on. The session state is left unchanged.
type InvalidStepError struct {
	SessionID string
	Expected  int // step currently awaited, 0 when none is
	Got       int // step the caller submitted, 0 for a completion attempt
}

func (e *InvalidStepError) Error() string {
	switch {
	case e.Expected == 0:
		return fmt.Sprintf("invalid step %d: session %s is not awaiting an answer", e.Got, e.SessionID)
	case e.Got == 0:
		return fmt.Sprintf("invalid completion: session %s still awaits the answer for step %d", e.SessionID, e.Expected)
	default:
		return fmt.Sprintf("invalid step %d: session %s awaits step %d", e.Got, e.SessionID, e.Expected)
	}
}

// Session is one in-flight profiling interview. Mutable state is guarded
// by mu; the manager serializes transitions per session by holding it
// across the whole submit path, generator calls included.
type Session struct {
	ID        string
	UserID    int32
	Age       int
	AgeGroup  ai.AgeGroup
	CreatedAt time.Time

	mu         sync.Mutex
	status     SessionStatus
	step       int
	transcript []ai.Message
	fields     *store.ProfileFields
	lastActive time.Time
}

// Status returns the current session status.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Step returns the interview step the session is waiting on, or 0 once
// the interview part is over.
func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionStatusAwaitingAnswer {
		return 0
	}
	return s.step
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript := make([]ai.Message, len(s.transcript))
	copy(transcript, s.transcript)
	return transcript
}

// LastActive returns the time of the last transition.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touchLocked() {
	s.lastActive = time.Now()
}

// Turn is the manager's reply to a submitted answer.
type Turn struct {
	SessionID string
	Step      int               // step the question belongs to, 0 after the final answer
	Question  string            // next interview question, empty once the interview is over
	Profile   *CompletedProfile // set when the final answer completed the session
}

// CompletedProfile is the outcome of a finished profiling session, ready
// to persist as a store.LearnerProfile.
type CompletedProfile struct {
	UserID      int32
	AgeGroup    ai.AgeGroup
	Fields      store.ProfileFields
	ProfileText string
	Vector      []float32
}
