package webhandler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/placesfinder/placesfinder/internal/cache"
	"github.com/placesfinder/placesfinder/internal/interfaces"
	"github.com/placesfinder/placesfinder/internal/search"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

// StoredResult is the last successful search of a session; it backs the
// results table and the CSV download.
type StoredResult struct {
	Query       string             `json:"query"`
	Bias        search.BiasPoint   `json:"bias"`
	Radius      search.Radius      `json:"radius"`
	Pages       int                `json:"pages"`
	Rows        []search.ResultRow `json:"rows"`
	RawResponse json.RawMessage    `json:"raw_response,omitempty"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// Session is the per-browser state: the bias point picked on the map, the
// chosen radius and the last result.
type Session struct {
	ID          string           `json:"id"`
	Bias        search.BiasPoint `json:"bias"`
	Radius      search.Radius    `json:"radius"`
	Result      *StoredResult    `json:"result,omitempty"`
	LastUpdated time.Time        `json:"last_updated"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// StateManager manages web sessions in memory, optionally mirrored to a store
type StateManager struct {
	sessions      map[string]*Session
	mutex         sync.RWMutex
	ttl           time.Duration
	defaultBias   search.BiasPoint
	defaultRadius search.Radius
	store         interfaces.SessionStoreInterface
	now           func() time.Time
}

// NewStateManager creates a new state manager
func NewStateManager(sessionTTL time.Duration, defaultBias search.BiasPoint, defaultRadius search.Radius) *StateManager {
	return &StateManager{
		sessions:      make(map[string]*Session),
		ttl:           sessionTTL,
		defaultBias:   defaultBias,
		defaultRadius: defaultRadius,
		now:           time.Now,
	}
}

// SetStore mirrors sessions to store so they survive restarts
func (sm *StateManager) SetStore(store interfaces.SessionStoreInterface) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.store = store
}

// GetSession returns a copy of the session, creating one if it doesn't exist
func (sm *StateManager) GetSession(ctx context.Context, sessionID string) Session {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	return *sm.load(ctx, sessionID)
}

// UpdateSession applies fn to the session under the lock and persists the result
func (sm *StateManager) UpdateSession(ctx context.Context, sessionID string, fn func(*Session)) Session {
	sm.mutex.Lock()
	session := sm.load(ctx, sessionID)
	fn(session)
	sm.touch(session)
	snapshot := *session
	store := sm.store
	sm.mutex.Unlock()

	if store != nil {
		if err := store.SetSession(ctx, sessionID, snapshot, sm.ttl); err != nil {
			telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
				"operation":  "persist_session",
				"session_id": sessionID,
				"service":    "webhandler",
			}).WithError(err).Warn("Failed to persist session")
		}
	}
	return snapshot
}

// SetBias stores the point picked on the map
func (sm *StateManager) SetBias(ctx context.Context, sessionID string, bias search.BiasPoint) Session {
	return sm.UpdateSession(ctx, sessionID, func(s *Session) {
		s.Bias = bias
	})
}

// SetRadius stores the chosen search radius
func (sm *StateManager) SetRadius(ctx context.Context, sessionID string, radius search.Radius) Session {
	return sm.UpdateSession(ctx, sessionID, func(s *Session) {
		s.Radius = radius
	})
}

// SetResult replaces the stored result; nil clears it
func (sm *StateManager) SetResult(ctx context.Context, sessionID string, result *StoredResult) Session {
	return sm.UpdateSession(ctx, sessionID, func(s *Session) {
		s.Result = result
	})
}

// ClearSession clears a session everywhere
func (sm *StateManager) ClearSession(ctx context.Context, sessionID string) {
	sm.mutex.Lock()
	delete(sm.sessions, sessionID)
	store := sm.store
	sm.mutex.Unlock()

	if store != nil {
		if err := store.DeleteSession(ctx, sessionID); err != nil {
			telemetry.GetContextualLogger(ctx).WithField("session_id", sessionID).
				WithError(err).Warn("Failed to delete persisted session")
		}
	}
}

// load expects sm.mutex to be held
func (sm *StateManager) load(ctx context.Context, sessionID string) *Session {
	now := sm.now()

	if session, exists := sm.sessions[sessionID]; exists && now.Before(session.ExpiresAt) {
		return session
	}

	if sm.store != nil {
		var stored Session
		err := sm.store.GetSession(ctx, sessionID, &stored)
		switch {
		case err == nil && now.Before(stored.ExpiresAt):
			stored.ID = sessionID
			sm.sessions[sessionID] = &stored
			return &stored
		case err != nil && !errors.Is(err, cache.ErrCacheMiss):
			telemetry.GetContextualLogger(ctx).WithField("session_id", sessionID).
				WithError(err).Warn("Failed to load persisted session, starting a new one")
		}
	}

	session := &Session{
		ID:          sessionID,
		Bias:        sm.defaultBias,
		Radius:      sm.defaultRadius,
		LastUpdated: now,
		ExpiresAt:   now.Add(sm.ttl),
	}
	sm.sessions[sessionID] = session
	return session
}

func (sm *StateManager) touch(session *Session) {
	now := sm.now()
	session.LastUpdated = now
	session.ExpiresAt = now.Add(sm.ttl)
}

// CleanupExpiredSessions removes expired sessions from memory and returns how many were dropped
func (sm *StateManager) CleanupExpiredSessions() int {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	now := sm.now()
	removed := 0
	for id, session := range sm.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}

// GetActiveSessionsCount returns the number of sessions held in memory
func (sm *StateManager) GetActiveSessionsCount() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	return len(sm.sessions)
}

// StartCleanupRoutine removes expired sessions every interval until ctx is done
func (sm *StateManager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := sm.CleanupExpiredSessions(); removed > 0 {
					telemetry.GetContextualLogger(ctx).WithField("removed", removed).
						Debug("Expired sessions cleaned up")
				}
			}
		}
	}()
}
