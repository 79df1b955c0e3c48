// Package registry holds the authoritative in-memory table of live rehearsal sessions.
//
// A Registry is constructed explicitly and injected into its owner; there is no
// package-level state. Every accessor returns copies, so a Session value obtained
// from the registry can be read freely without holding any lock.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jamroom/backend/internal/models"
)

// ErrNotFound is returned when a session id does not resolve to a live session.
var ErrNotFound = errors.New("session not found")

const unknownAdminName = "Unknown Admin"

// Participant is one member of a session roster.
type Participant struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Instrument string `json:"instrument"`
}

// Session is one rehearsal: an immutable admin, a roster, and an optional current song.
type Session struct {
	ID           string        `json:"id"`
	AdminID      string        `json:"adminId"`
	CurrentSong  *models.Song  `json:"currentSong"`
	Participants []Participant `json:"participants"`
}

// HasParticipant reports whether userID is on the roster.
func (s Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Summary is the discovery view of a session. It never exposes the roster or the song.
type Summary struct {
	ID               string `json:"id"`
	ParticipantCount int    `json:"participantCount"`
	AdminName        string `json:"adminName"`
}

// Registry maps session ids to sessions. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newID    func() string
}

// New creates an empty registry that issues random UUIDv4 session ids.
func New() *Registry {
	return NewWithIDGenerator(uuid.NewString)
}

// NewWithIDGenerator creates an empty registry that draws session ids from gen.
// gen must never return the id of a live session.
func NewWithIDGenerator(gen func() string) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		newID:    gen,
	}
}

// Create inserts a new session with the admin as its only participant.
func (r *Registry) Create(adminID, username, instrument string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		ID:      r.newID(),
		AdminID: adminID,
		Participants: []Participant{
			{UserID: adminID, Username: username, Instrument: instrument},
		},
	}
	r.sessions[s.ID] = s
	return s.snapshot()
}

// Get returns a copy of the session, if present.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return s.snapshot(), true
}

// AddParticipant appends the user to the roster. If the user is already a
// participant the session is returned unchanged and added is false.
func (r *Registry) AddParticipant(id, userID, username, instrument string) (session Session, added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false, ErrNotFound
	}
	if s.HasParticipant(userID) {
		return s.snapshot(), false, nil
	}

	s.Participants = append(s.Participants, Participant{
		UserID:     userID,
		Username:   username,
		Instrument: instrument,
	})
	return s.snapshot(), true, nil
}

// SetCurrentSong replaces the session's current song unconditionally.
func (r *Registry) SetCurrentSong(id string, song *models.Song) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.CurrentSong = song.Clone()
	return s.snapshot(), nil
}

// Remove deletes the session and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// List returns a summary of every live session ordered by id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, Summary{
			ID:               s.ID,
			ParticipantCount: len(s.Participants),
			AdminName:        s.adminName(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (s *Session) adminName() string {
	for _, p := range s.Participants {
		if p.UserID == s.AdminID {
			return p.Username
		}
	}
	return unknownAdminName
}

// snapshot must be called with the registry lock held.
func (s *Session) snapshot() Session {
	out := *s
	out.Participants = append([]Participant(nil), s.Participants...)
	out.CurrentSong = s.CurrentSong.Clone()
	return out
}
