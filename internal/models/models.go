// Package models defines the song document and the JSON request/response shapes
// exchanged over the HTTP API.
package models

import "time"

// Song is a renderable song document from the catalog.
type Song struct {
	Title      string     `json:"title"`
	Artist     string     `json:"artist"`
	PictureURL string     `json:"pictureUrl,omitempty"`
	Lines      []SongLine `json:"lines"`
}

// SongLine is one rendered line, split into lyric/chord segments.
type SongLine struct {
	Segments []SongSegment `json:"segments"`
}

// SongSegment pairs a run of lyrics with the chord played over it. Chords may be empty.
type SongSegment struct {
	Lyrics string `json:"lyrics"`
	Chords string `json:"chords,omitempty"`
}

// Clone returns a deep copy so callers can never alias catalog storage.
func (s *Song) Clone() *Song {
	if s == nil {
		return nil
	}
	out := *s
	out.Lines = make([]SongLine, len(s.Lines))
	for i, line := range s.Lines {
		out.Lines[i] = SongLine{Segments: append([]SongSegment(nil), line.Segments...)}
	}
	return &out
}

// Accounts
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Instrument string `json:"instrument"`
	AdminCode  string `json:"adminCode,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Instrument string    `json:"instrument,omitempty"`
	IsAdmin    bool      `json:"isAdmin"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type ProfileResponse struct {
	User UserResponse `json:"user"`
}

// Rehearsal sessions
type CreateSessionRequest struct {
	Instrument string `json:"instrument"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type JoinSessionRequest struct {
	Instrument string `json:"instrument"`
}

type SelectSongRequest struct {
	SongTitle string `json:"songTitle"`
}

type SelectSongResponse struct {
	Song *Song `json:"song"`
}

// Real-time payloads
type ParticipantJoinedEvent struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Instrument string `json:"instrument"`
}

type SessionEndedEvent struct {
	Message string `json:"message"`
}

type ScrollUpdateMessage struct {
	SessionID string  `json:"sessionId"`
	Position  float64 `json:"position"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
