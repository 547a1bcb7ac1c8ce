package audio

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"

	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

type decodeFunc func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3":  mp3.Decode,
	".wav":  func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) },
	".flac": func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(r) },
}

// SupportedFormats lists the playable extensions, sorted
func SupportedFormats() []string {
	formats := make([]string, 0, len(decoders))
	for ext := range decoders {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}

// IsSupported reports whether filePath has a playable extension
func IsSupported(filePath string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(filePath))]
	return ok
}

// DecodeAudio picks a decoder by extension
func DecodeAudio(r io.ReadSeekCloser, filePath string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	decode, ok := decoders[ext]
	if !ok {
		return nil, beep.Format{}, errors.Wrap(playerrors.ErrInvalidFormat, ext)
	}
	return decode(r)
}

// Probe decodes just enough of a file to report its length
func Probe(filePath string) (time.Duration, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}

	streamer, format, err := DecodeAudio(f, filePath)
	if err != nil {
		f.Close()
		return 0, err
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}
