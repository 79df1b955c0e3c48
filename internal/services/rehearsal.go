package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jamroom/backend/internal/catalog"
	"github.com/jamroom/backend/internal/models"
	"github.com/jamroom/backend/internal/registry"
)

// Room events emitted by the coordinator, plus the client relay event.
const (
	EventParticipantJoined = "participantJoined"
	EventSongSelected      = "songSelected"
	EventSessionEnded      = "sessionEnded"
	EventScrollUpdate      = "scrollUpdate"
)

const sessionEndedMessage = "Session has ended."

// SongFinder resolves a song title to a full song document.
type SongFinder interface {
	FindByTitle(ctx context.Context, title string) (*models.Song, error)
}

// Publisher delivers an event to every connection subscribed to a room.
// Delivery is best effort and must not block.
type Publisher interface {
	Publish(room, event string, data any)
}

// JoinResult is what a joiner sees: the session and any song already in progress.
type JoinResult struct {
	Session     registry.Session `json:"session"`
	CurrentSong *models.Song     `json:"currentSong"`
}

// RehearsalService is the session coordinator. It authorizes every operation
// against the registry and decides which events are broadcast to a session's room.
//
// mu serializes each registry mutation together with its broadcast, so within a
// session an event is published only after the change it announces has committed.
type RehearsalService struct {
	mu       sync.Mutex
	sessions *registry.Registry
	songs    SongFinder
	pub      Publisher
}

// NewRehearsalService wires the coordinator to its registry, catalog and fan-out channel.
func NewRehearsalService(sessions *registry.Registry, songs SongFinder, pub Publisher) *RehearsalService {
	return &RehearsalService{
		sessions: sessions,
		songs:    songs,
		pub:      pub,
	}
}

// CreateSession opens a new session with the caller as admin and sole participant.
// Nobody is subscribed yet, so nothing is broadcast.
func (s *RehearsalService) CreateSession(ctx context.Context, caller *Claims, instrument string) (registry.Session, error) {
	if caller == nil {
		return registry.Session{}, ErrUnauthenticated
	}
	if !caller.IsAdmin {
		return registry.Session{}, fmt.Errorf("%w: only admins can create sessions", ErrForbidden)
	}

	s.mu.Lock()
	session := s.sessions.Create(caller.UserID, caller.Username, strings.TrimSpace(instrument))
	s.mu.Unlock()

	slog.InfoContext(ctx, "session created",
		slog.String("session_id", session.ID),
		slog.String("user_id", caller.UserID),
	)
	return session, nil
}

// JoinSession adds the caller to a session's roster. Rejoining is a no-op that
// returns the current state without a second participantJoined event.
func (s *RehearsalService) JoinSession(ctx context.Context, caller *Claims, sessionID, instrument string) (JoinResult, error) {
	if caller == nil {
		return JoinResult{}, ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, added, err := s.sessions.AddParticipant(sessionID, caller.UserID, caller.Username, strings.TrimSpace(instrument))
	if errors.Is(err, registry.ErrNotFound) {
		return JoinResult{}, ErrSessionNotFound
	}
	if err != nil {
		return JoinResult{}, err
	}

	if added {
		joined := session.Participants[len(session.Participants)-1]
		s.pub.Publish(sessionID, EventParticipantJoined, models.ParticipantJoinedEvent{
			UserID:     joined.UserID,
			Username:   joined.Username,
			Instrument: joined.Instrument,
		})
		slog.InfoContext(ctx, "participant joined",
			slog.String("session_id", sessionID),
			slog.String("user_id", caller.UserID),
			slog.Int("participants", len(session.Participants)),
		)
	}

	return JoinResult{Session: session, CurrentSong: session.CurrentSong}, nil
}

// SelectSong replaces the session's current song and broadcasts the full document.
// Only the session admin may select. The catalog lookup runs outside the lock;
// the session is re-checked before the change is committed.
func (s *RehearsalService) SelectSong(ctx context.Context, caller *Claims, sessionID, title string) (*models.Song, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: song title is required", ErrInvalidInput)
	}

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.AdminID != caller.UserID {
		return nil, fmt.Errorf("%w: only the session admin can select songs", ErrForbidden)
	}

	song, err := s.songs.FindByTitle(ctx, title)
	if errors.Is(err, catalog.ErrSongNotFound) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup song: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.sessions.SetCurrentSong(sessionID, song)
	if errors.Is(err, registry.ErrNotFound) {
		// ended while the catalog lookup was in flight
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	s.pub.Publish(sessionID, EventSongSelected, updated.CurrentSong)
	slog.InfoContext(ctx, "song selected",
		slog.String("session_id", sessionID),
		slog.String("user_id", caller.UserID),
		slog.String("title", updated.CurrentSong.Title),
	)
	return updated.CurrentSong, nil
}

// EndSession announces the end to the room and then removes the session.
// Removal does not wait for delivery.
func (s *RehearsalService) EndSession(ctx context.Context, caller *Claims, sessionID string) error {
	if caller == nil {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if session.AdminID != caller.UserID {
		return fmt.Errorf("%w: only the session admin can end the session", ErrForbidden)
	}

	s.pub.Publish(sessionID, EventSessionEnded, models.SessionEndedEvent{Message: sessionEndedMessage})
	s.sessions.Remove(sessionID)

	slog.InfoContext(ctx, "session ended",
		slog.String("session_id", sessionID),
		slog.String("user_id", caller.UserID),
		slog.Int("active_sessions", s.sessions.Len()),
	)
	return nil
}

// ListSessions returns the discovery view of every live session.
func (s *RehearsalService) ListSessions(ctx context.Context, caller *Claims) ([]registry.Summary, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	return s.sessions.List(), nil
}
