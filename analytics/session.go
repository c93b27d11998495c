package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one page lifetime. It is immutable after creation
// and tags every event recorded during that lifetime.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
}

// NewSession creates a session with a fresh identifier starting now.
func NewSession() *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
}

// Minutes returns the session duration at the given instant.
func (s *Session) Minutes(now time.Time) float64 {
	if now.Before(s.StartedAt) {
		return 0
	}
	return now.Sub(s.StartedAt).Minutes()
}
