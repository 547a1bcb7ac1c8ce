package library

import (
	"os"
	"path/filepath"

	"github.com/jscyril/lightshow_player/api"
)

// BeatResolver locates the beat directory of a song: <Dir>/<file stem>/ when
// Dir is set, otherwise <song dir>/beats/<file stem>/.
type BeatResolver struct {
	Dir string
}

// ResolveBeatDirectory reports the directory and whether it exists
func (r BeatResolver) ResolveBeatDirectory(song api.Song) (string, bool) {
	if song.FilePath == "" {
		return "", false
	}

	name := stem(song.FilePath)
	dir := filepath.Join(filepath.Dir(song.FilePath), "beats", name)
	if r.Dir != "" {
		dir = filepath.Join(r.Dir, name)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return dir, false
	}
	return dir, true
}
