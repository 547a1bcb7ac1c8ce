package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// Library is the song collection, cached as JSON between runs
type Library struct {
	Songs       map[string]*api.Song `json:"songs"`
	ScanPaths   []string             `json:"scan_paths"`
	LastScanned time.Time            `json:"last_scanned"`

	mu      sync.RWMutex
	scanner *Scanner
	logger  zerolog.Logger
}

// NewLibrary creates a new empty library
func NewLibrary(logger zerolog.Logger) *Library {
	return &Library{
		Songs:   make(map[string]*api.Song),
		scanner: NewScanner(4),
		logger:  logger.With().Str("component", "library").Logger(),
	}
}

// AddSong adds or replaces a song
func (l *Library) AddSong(song *api.Song) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Songs[song.ID] = song
}

// GetSong returns a song by ID
func (l *Library) GetSong(id string) (*api.Song, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	song, exists := l.Songs[id]
	if !exists {
		return nil, playerrors.ErrSongNotFound
	}
	return song, nil
}

// Len returns the number of songs
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.Songs)
}

// AllSongs returns every song in play order: artist, album, track number,
// then file path.
func (l *Library) AllSongs() []*api.Song {
	l.mu.RLock()
	defer l.mu.RUnlock()

	songs := make([]*api.Song, 0, len(l.Songs))
	for _, song := range l.Songs {
		songs = append(songs, song)
	}

	sort.Slice(songs, func(i, j int) bool {
		a, b := songs[i], songs[j]
		if a.Artist != b.Artist {
			return a.Artist < b.Artist
		}
		if a.Album != b.Album {
			return a.Album < b.Album
		}
		if a.TrackNum != b.TrackNum {
			return a.TrackNum < b.TrackNum
		}
		return a.FilePath < b.FilePath
	})

	return songs
}

// Search matches title, artist and album, title matches first
func (l *Library) Search(query string) []*api.Song {
	query = strings.ToLower(query)
	all := l.AllSongs()
	if query == "" {
		return all
	}

	var titles, others []*api.Song
	for _, song := range all {
		switch {
		case strings.Contains(strings.ToLower(song.Title), query):
			titles = append(titles, song)
		case strings.Contains(strings.ToLower(song.Artist), query),
			strings.Contains(strings.ToLower(song.Album), query):
			others = append(others, song)
		}
	}
	return append(titles, others...)
}

// Scan scans paths and adds what it finds. Files that fail are logged and
// counted; the returned error is only for cancellation.
func (l *Library) Scan(ctx context.Context, paths []string) (int, error) {
	songs, errs := l.scanner.Scan(ctx, paths)

	added, failed := 0, 0
	for songs != nil || errs != nil {
		select {
		case song, ok := <-songs:
			if !ok {
				songs = nil
				continue
			}
			l.AddSong(song)
			added++
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			failed++
			l.logger.Warn().Err(err).Msg("scan")
		}
	}

	l.mu.Lock()
	l.ScanPaths = paths
	l.LastScanned = time.Now()
	l.mu.Unlock()

	l.logger.Info().Int("added", added).Int("failed", failed).Strs("paths", paths).Msg("library scanned")
	return added, ctx.Err()
}

// Prune drops songs whose files are gone
func (l *Library) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, song := range l.Songs {
		if _, err := os.Stat(song.FilePath); os.IsNotExist(err) {
			delete(l.Songs, id)
			removed++
		}
	}
	return removed
}

// AddFile adds a single file from any location to the library
func (l *Library) AddFile(filePath string) (*api.Song, error) {
	song, err := l.scanner.ScanFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "scan file")
	}
	l.AddSong(song)
	return song, nil
}

// Save persists the library to a JSON file
func (l *Library) Save(path string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal library")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create directory")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write library file")
	}

	return nil
}

// LoadLibrary loads a library from a JSON file (or returns empty if not exists)
func LoadLibrary(path string, logger zerolog.Logger) (*Library, error) {
	lib := NewLibrary(logger)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return lib, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read library file")
	}

	if err := json.Unmarshal(data, lib); err != nil {
		return nil, errors.Wrap(err, "unmarshal library")
	}
	if lib.Songs == nil {
		lib.Songs = make(map[string]*api.Song)
	}

	return lib, nil
}
