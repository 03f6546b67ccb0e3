package services

import (
	"sync"
	"time"

	"github.com/google/logger"
)

// Recorder receives draw activity for metrics.
type Recorder interface {
	DrawStarted()
	RoundCommitted(winners int)
	ActionRejected(action string)
	ActiveSessions(n int)
}

type noopRecorder struct{}

func (noopRecorder) DrawStarted()          {}
func (noopRecorder) RoundCommitted(int)    {}
func (noopRecorder) ActionRejected(string) {}
func (noopRecorder) ActiveSessions(int)    {}

// LotterySession holds the draw for a single user/tenant.
type LotterySession struct {
	Draw         *DrawSession
	LastActivity time.Time
}

// LotteryService manages one isolated draw per tenant.
type LotteryService struct {
	mu       sync.RWMutex
	sessions map[string]*LotterySession // Key: tenantID
	recorder Recorder
	opts     []SessionOption
}

// NewLotteryService creates and initializes a new LotteryService. opts are
// applied to every session it creates.
func NewLotteryService(recorder Recorder, opts ...SessionOption) *LotteryService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &LotteryService{
		sessions: make(map[string]*LotterySession),
		recorder: recorder,
		opts:     append([]SessionOption{WithRecorder(recorder)}, opts...),
	}
}

// Session returns the draw for a tenant, creating one if it doesn't exist.
func (s *LotteryService) Session(tenantID string) *DrawSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[tenantID]
	if !exists {
		session = &LotterySession{Draw: NewDrawSession(s.opts...)}
		s.sessions[tenantID] = session
		s.recorder.ActiveSessions(len(s.sessions))
		logger.Infof("Created session for tenant: %s", tenantID)
	}
	session.LastActivity = time.Now()
	return session.Draw
}

// ActiveSessions returns how many tenants currently hold a session.
func (s *LotteryService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanUpInactiveSessions removes sessions that have been inactive for longer
// than maxIdle and returns how many were removed.
func (s *LotteryService) CleanUpInactiveSessions(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for tenantID, session := range s.sessions {
		if time.Since(session.LastActivity) > maxIdle {
			logger.Infof("Evicting inactive session for tenant: %s", tenantID)
			delete(s.sessions, tenantID)
			removed++
		}
	}
	s.recorder.ActiveSessions(len(s.sessions))
	return removed
}

// ClearSession removes all data associated with a specific tenant.
func (s *LotteryService) ClearSession(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tenantID)
	s.recorder.ActiveSessions(len(s.sessions))
	logger.Infof("Cleared session for tenant: %s", tenantID)
}
