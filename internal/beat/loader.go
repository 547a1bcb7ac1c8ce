package beat

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// Resolver finds the beat directory of a song. ok is false when the song has
// no beats.
type Resolver interface {
	ResolveBeatDirectory(song api.Song) (dir string, ok bool)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(song api.Song) (string, bool)

// ResolveBeatDirectory calls f
func (f ResolverFunc) ResolveBeatDirectory(song api.Song) (string, bool) {
	return f(song)
}

// loadChannels parses every regular file in dir, in name order. A missing
// directory yields no channels. A file that cannot be read or parsed is
// logged and skipped so the other channels still load.
func loadChannels(dir string, parse ParseFunc, logger zerolog.Logger) []Channel {
	info, err := os.Stat(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(&playerrors.LoadError{Path: dir, Err: err}).Msg("failed to read beat directory")
		}
		return nil
	}
	if !info.IsDir() {
		logger.Debug().Str("path", dir).Msg("beat path is not a directory")
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn().Err(&playerrors.LoadError{Path: dir, Err: err}).Msg("failed to read beat directory")
		return nil
	}

	channels := make([]Channel, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		// Stat follows symlinks
		fi, err := os.Stat(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("skipping beat file")
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}

		ch, err := parse(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("skipping beat file")
			continue
		}
		if idx, ok := ch.Ordered(); !ok {
			logger.Warn().
				Str("channel", ch.Name).
				Int("event", idx).
				Msg("beat timestamps go backwards; events will fire in file order")
		}
		channels = append(channels, ch)
	}

	return channels
}
