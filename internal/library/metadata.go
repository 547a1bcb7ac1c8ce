package library

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/audio"
)

// MetadataReader extracts metadata from audio files
type MetadataReader struct {
	// probe reports the playing time of a file; tags rarely carry it
	probe func(path string) (time.Duration, error)
}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader() *MetadataReader {
	return &MetadataReader{probe: audio.Probe}
}

// Read extracts metadata from an audio file and returns a Song
func (r *MetadataReader) Read(filePath string) (*api.Song, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer file.Close()

	song := &api.Song{
		ID:        SongID(filePath),
		Title:     stem(filePath),
		FilePath:  filePath,
		CreatedAt: time.Now(),
	}

	if d, err := r.probe(filePath); err == nil {
		song.Duration = d
	}

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		// untagged files keep the file name as title
		return song, nil
	}

	song.Title = getOrDefault(metadata.Title(), song.Title)
	song.Artist = getOrDefault(metadata.Artist(), "Unknown Artist")
	song.Album = getOrDefault(metadata.Album(), "Unknown Album")
	song.Genre = metadata.Genre()
	song.Year = metadata.Year()
	song.TrackNum, _ = metadata.Track()

	return song, nil
}

// SongID derives a stable ID from the absolute file path, so rescans and the
// library cache agree.
func SongID(filePath string) string {
	if abs, err := filepath.Abs(filePath); err == nil {
		filePath = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(filePath))).String()
}

func stem(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// getOrDefault returns the value if non-empty, otherwise returns the default
func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
