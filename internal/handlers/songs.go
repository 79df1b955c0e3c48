package handlers

import (
	"net/http"

	"github.com/jamroom/backend/internal/models"
)

// SongSearcher lists catalog songs matching a query.
type SongSearcher interface {
	Search(query string) []models.Song
}

// SongHandler serves catalog search.
type SongHandler struct {
	songs SongSearcher
}

// NewSongHandler creates a SongHandler.
func NewSongHandler(songs SongSearcher) *SongHandler {
	return &SongHandler{songs: songs}
}

// Search returns songs whose title or artist contains q. An empty q returns the whole catalog.
func (h *SongHandler) Search(w http.ResponseWriter, r *http.Request) {
	results := h.songs.Search(r.URL.Query().Get("q"))
	if results == nil {
		results = []models.Song{}
	}
	writeJSON(w, http.StatusOK, results)
}
