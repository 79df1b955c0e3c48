package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jamroom/backend/internal/broker"
	"github.com/jamroom/backend/internal/catalog"
	"github.com/jamroom/backend/internal/config"
	"github.com/jamroom/backend/internal/database"
	"github.com/jamroom/backend/internal/db"
	"github.com/jamroom/backend/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := database.New(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := database.RunMigrations(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:          "test-secret",
		TokenDuration:      time.Hour,
		RateLimitPerMinute: 100,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	}
	songs := catalog.New([]models.Song{
		{
			Title:  "Hey Jude",
			Artist: "The Beatles",
			Lines: []models.SongLine{
				{Segments: []models.SongSegment{{Lyrics: "Hey Jude", Chords: "F"}}},
			},
		},
	})

	srv := httptest.NewServer(New(cfg, db.New(conn), songs))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func register(t *testing.T, srv *httptest.Server, path, username string) models.AuthResponse {
	t.Helper()
	var resp models.AuthResponse
	status := doJSON(t, srv, http.MethodPost, path, "", models.RegisterRequest{
		Username: username, Password: "Secret1", Instrument: "guitar",
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s status = %d", username, status)
	}
	return resp
}

func dialSocket(t *testing.T, srv *httptest.Server, token, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(map[string]any{"event": "joinSession", "data": room}); err != nil {
		t.Fatalf("joinSession: %v", err)
	}
	return conn
}

// nextEvent reads frames until one with the wanted event arrives.
func nextEvent(t *testing.T, conn *websocket.Conn, event string) broker.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg broker.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if msg.Event == event {
			return msg
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	if status := doJSON(t, srv, http.MethodGet, "/api/health", "", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	player := register(t, srv, "/api/auth/register", "bob")

	tests := []struct {
		method string
		path   string
		token  string
		want   int
	}{
		{http.MethodGet, "/api/sessions", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/sessions", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/songs/search?q=", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/auth/profile", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/sessions", player.Token, http.StatusForbidden},
		{http.MethodGet, "/api/sessions", player.Token, http.StatusOK},
		{http.MethodGet, "/api/auth/profile", player.Token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := doJSON(t, srv, tt.method, tt.path, tt.token, nil, nil); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRehearsalFlow(t *testing.T) {
	srv := newTestServer(t)
	admin := register(t, srv, "/api/auth/register-admin", "alice")
	playerB := register(t, srv, "/api/auth/register", "bob")
	playerC := register(t, srv, "/api/auth/register", "carol")

	var created models.CreateSessionResponse
	if status := doJSON(t, srv, http.MethodPost, "/api/sessions", admin.Token, models.CreateSessionRequest{Instrument: "guitar"}, &created); status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	id := created.SessionID
	if id == "" {
		t.Fatal("empty session id")
	}

	adminSocket := dialSocket(t, srv, admin.Token, id)

	// B joins: gets two participants and no song; the room hears about it.
	var joinB struct {
		Session struct {
			Participants []struct {
				UserID string `json:"userId"`
			} `json:"participants"`
		} `json:"session"`
		CurrentSong *models.Song `json:"currentSong"`
	}
	// give the admin socket's joinSession time to land before the broadcast
	time.Sleep(50 * time.Millisecond)
	if status := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/join", playerB.Token, models.JoinSessionRequest{Instrument: "drums"}, &joinB); status != http.StatusOK {
		t.Fatalf("join status = %d", status)
	}
	if len(joinB.Session.Participants) != 2 || joinB.CurrentSong != nil {
		t.Errorf("join B = %+v", joinB)
	}
	joined := nextEvent(t, adminSocket, "participantJoined")
	if data, _ := joined.Data.(map[string]any); data["userId"] != playerB.User.ID {
		t.Errorf("participantJoined data = %v", joined.Data)
	}

	bSocket := dialSocket(t, srv, playerB.Token, id)
	time.Sleep(50 * time.Millisecond)

	// B cannot select or end.
	if status := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/songs", playerB.Token, models.SelectSongRequest{SongTitle: "Hey Jude"}, nil); status != http.StatusForbidden {
		t.Errorf("player select status = %d, want 403", status)
	}

	var selected models.SelectSongResponse
	if status := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/songs", admin.Token, models.SelectSongRequest{SongTitle: "Hey Jude"}, &selected); status != http.StatusOK {
		t.Fatalf("select status = %d", status)
	}
	songEvent := nextEvent(t, bSocket, "songSelected")
	if data, _ := songEvent.Data.(map[string]any); data["title"] != "Hey Jude" {
		t.Errorf("songSelected data = %v", songEvent.Data)
	}

	// C joins late and sees the song immediately.
	var joinC struct {
		CurrentSong *models.Song `json:"currentSong"`
	}
	doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/join", playerC.Token, nil, &joinC)
	if joinC.CurrentSong == nil || joinC.CurrentSong.Title != "Hey Jude" {
		t.Errorf("late joiner currentSong = %+v", joinC.CurrentSong)
	}

	if status := doJSON(t, srv, http.MethodDelete, "/api/sessions/"+id, admin.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("end status = %d", status)
	}
	ended := nextEvent(t, bSocket, "sessionEnded")
	if data, _ := ended.Data.(map[string]any); data["message"] != "Session has ended." {
		t.Errorf("sessionEnded data = %v", ended.Data)
	}

	var list struct {
		Sessions []map[string]any `json:"sessions"`
	}
	doJSON(t, srv, http.MethodGet, "/api/sessions", playerB.Token, nil, &list)
	if len(list.Sessions) != 0 {
		t.Errorf("sessions after end = %v", list.Sessions)
	}

	if status := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/join", playerC.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("join after end status = %d, want 404", status)
	}
}

func TestSongSearch(t *testing.T) {
	srv := newTestServer(t)
	user := register(t, srv, "/api/auth/register", "bob")

	var songs []models.Song
	if status := doJSON(t, srv, http.MethodGet, "/api/songs/search?q=jude", user.Token, nil, &songs); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(songs) != 1 || songs[0].Title != "Hey Jude" {
		t.Errorf("songs = %+v", songs)
	}
}
