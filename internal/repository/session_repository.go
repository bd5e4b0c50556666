package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/school-portal-api/internal/gradebook"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// SessionKey builds the store key for a user's grading session.
func SessionKey(userID, classLabel, term string) string {
	return fmt.Sprintf("gradebook:session:%s:%s:%s", userID, classLabel, term)
}

type sessionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionRepository keeps grading sessions in Redis.
type SessionRepository struct {
	cache sessionCache
	ttl   time.Duration
}

// NewSessionRepository constructs a Redis backed session store.
func NewSessionRepository(cache sessionCache, ttl time.Duration) *SessionRepository {
	return &SessionRepository{cache: cache, ttl: ttl}
}

// Load returns the stored session or a fresh empty one.
func (r *SessionRepository) Load(ctx context.Context, userID, classLabel, term string) (*gradebook.GradingSession, error) {
	var session gradebook.GradingSession
	err := r.cache.Get(ctx, SessionKey(userID, classLabel, term), &session)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return gradebook.NewSession(classLabel, term), nil
		}
		return nil, fmt.Errorf("load grading session: %w", err)
	}
	if session.Pending == nil {
		session.Pending = gradebook.PendingEdits{}
	}
	return &session, nil
}

// Store writes the session, refreshing its TTL.
func (r *SessionRepository) Store(ctx context.Context, userID string, session *gradebook.GradingSession) error {
	if err := r.cache.Set(ctx, SessionKey(userID, session.ClassLabel, session.Term), session, r.ttl); err != nil {
		return fmt.Errorf("store grading session: %w", err)
	}
	return nil
}

// Delete discards the session.
func (r *SessionRepository) Delete(ctx context.Context, userID, classLabel, term string) error {
	if err := r.cache.Delete(ctx, SessionKey(userID, classLabel, term)); err != nil {
		return fmt.Errorf("delete grading session: %w", err)
	}
	return nil
}

// MemorySessionRepository keeps sessions in process memory when Redis is not configured.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]gradebook.GradingSession
}

// NewMemorySessionRepository constructs an in-process session store.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: map[string]gradebook.GradingSession{}}
}

// Load returns a copy of the stored session or a fresh empty one.
func (r *MemorySessionRepository) Load(_ context.Context, userID, classLabel, term string) (*gradebook.GradingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[SessionKey(userID, classLabel, term)]
	if !ok {
		return gradebook.NewSession(classLabel, term), nil
	}
	session := stored
	session.Pending = copyEdits(stored.Pending)
	return &session, nil
}

// Store saves a copy of session.
func (r *MemorySessionRepository) Store(_ context.Context, userID string, session *gradebook.GradingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *session
	stored.Pending = copyEdits(session.Pending)
	r.sessions[SessionKey(userID, session.ClassLabel, session.Term)] = stored
	return nil
}

// Delete discards the session.
func (r *MemorySessionRepository) Delete(_ context.Context, userID, classLabel, term string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, SessionKey(userID, classLabel, term))
	return nil
}

func copyEdits(src gradebook.PendingEdits) gradebook.PendingEdits {
	out := make(gradebook.PendingEdits, len(src))
	for student, subjects := range src {
		inner := make(map[string]float64, len(subjects))
		for subject, v := range subjects {
			inner[subject] = v
		}
		out[student] = inner
	}
	return out
}
