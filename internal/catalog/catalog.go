// Package catalog loads song documents from disk and serves title lookup and search.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamroom/backend/internal/models"
)

var (
	// ErrSongNotFound is returned when no song matches the requested title.
	ErrSongNotFound = errors.New("song not found")
	// ErrEmptyCatalog is returned by Load when the directory yields no valid songs.
	ErrEmptyCatalog = errors.New("no song files found")
)

// songFile is the on-disk shape: lines are arrays of segments.
type songFile struct {
	Title      *string              `json:"title"`
	Artist     *string              `json:"artist"`
	PictureURL string               `json:"pictureUrl"`
	Lines      [][]songSegmentField `json:"lines"`
}

type songSegmentField struct {
	Lyrics *string `json:"lyrics"`
	Chords *string `json:"chords"`
}

// Catalog is an immutable, in-memory set of songs.
type Catalog struct {
	songs   []models.Song
	byTitle map[string]int
}

// New builds a catalog from already-validated songs. Later duplicates of a title
// (case-insensitive) are ignored.
func New(songs []models.Song) *Catalog {
	c := &Catalog{byTitle: make(map[string]int, len(songs))}
	for _, s := range songs {
		key := strings.ToLower(s.Title)
		if _, dup := c.byTitle[key]; dup {
			slog.Warn("duplicate song title ignored", slog.String("title", s.Title))
			continue
		}
		c.byTitle[key] = len(c.songs)
		c.songs = append(c.songs, *s.Clone())
	}
	sort.SliceStable(c.songs, func(i, j int) bool {
		return strings.ToLower(c.songs[i].Title) < strings.ToLower(c.songs[j].Title)
	})
	for i, s := range c.songs {
		c.byTitle[strings.ToLower(s.Title)] = i
	}
	return c
}

// Load reads every *.json file in dir. Files that do not have the expected song
// structure are skipped with a warning. A file that is not valid JSON fails the
// whole load.
func Load(dir string) (*Catalog, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list song files: %w", err)
	}

	var songs []models.Song
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read song file %s: %w", filepath.Base(path), err)
		}
		song, err := parseSong(data)
		if err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				return nil, fmt.Errorf("parse song file %s: %w", filepath.Base(path), err)
			}
			slog.Warn("skipping song file", slog.String("file", filepath.Base(path)), slog.String("reason", err.Error()))
			continue
		}
		songs = append(songs, song)
	}

	if len(songs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmptyCatalog, dir)
	}

	c := New(songs)
	slog.Info("song catalog loaded", slog.Int("songs", len(c.songs)), slog.String("dir", dir))
	return c, nil
}

func parseSong(data []byte) (models.Song, error) {
	var raw songFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Song{}, err
	}
	if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
		return models.Song{}, errors.New("missing title")
	}
	if raw.Artist == nil {
		return models.Song{}, errors.New("missing artist")
	}
	if raw.Lines == nil {
		return models.Song{}, errors.New("missing lines")
	}

	song := models.Song{
		Title:      strings.TrimSpace(*raw.Title),
		Artist:     *raw.Artist,
		PictureURL: raw.PictureURL,
		Lines:      make([]models.SongLine, len(raw.Lines)),
	}
	for i, line := range raw.Lines {
		segments := make([]models.SongSegment, len(line))
		for j, seg := range line {
			if seg.Lyrics == nil && seg.Chords == nil {
				return models.Song{}, fmt.Errorf("line %d segment %d has neither lyrics nor chords", i+1, j+1)
			}
			if seg.Lyrics != nil {
				segments[j].Lyrics = *seg.Lyrics
			}
			if seg.Chords != nil {
				segments[j].Chords = *seg.Chords
			}
		}
		song.Lines[i] = models.SongLine{Segments: segments}
	}
	return song, nil
}

// FindByTitle returns a copy of the song whose title matches exactly, ignoring case.
func (c *Catalog) FindByTitle(ctx context.Context, title string) (*models.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i, ok := c.byTitle[strings.ToLower(strings.TrimSpace(title))]
	if !ok {
		return nil, ErrSongNotFound
	}
	return c.songs[i].Clone(), nil
}

// Search returns songs whose title or artist contains query, ignoring case.
// A blank query returns the whole catalog.
func (c *Catalog) Search(query string) []models.Song {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]models.Song, 0, len(c.songs))
	for i := range c.songs {
		s := &c.songs[i]
		if q == "" || strings.Contains(strings.ToLower(s.Title), q) || strings.Contains(strings.ToLower(s.Artist), q) {
			out = append(out, *s.Clone())
		}
	}
	return out
}

// Len returns the number of songs in the catalog.
func (c *Catalog) Len() int {
	return len(c.songs)
}
