package beat

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

var (
	errNotHex     = errors.New("not a hexadecimal number")
	errOutOfRange = errors.New("timestamp out of range")
	errEmptyChord = errors.New("empty chord member")
)

// maxMicros keeps Duration conversion from overflowing
const maxMicros = math.MaxInt64 / int64(time.Microsecond)

// Event occupies one slot in a channel. A single beat has one timestamp, a
// chord has several that fire together.
type Event struct {
	Beats []time.Duration
}

// Due is the moment the whole event may fire: its latest member.
func (e Event) Due() time.Duration {
	var due time.Duration
	for i, b := range e.Beats {
		if i == 0 || b > due {
			due = b
		}
	}
	return due
}

// IsChord reports whether the event groups more than one beat
func (e Event) IsChord() bool {
	return len(e.Beats) > 1
}

// Channel is one light line: the beats read from a single file
type Channel struct {
	Name   string
	Events []Event
}

// Ordered reports whether due times never decrease. When they do, it returns
// the index of the first event that is earlier than its predecessor.
func (c Channel) Ordered() (int, bool) {
	for i := 1; i < len(c.Events); i++ {
		if c.Events[i].Due() < c.Events[i-1].Due() {
			return i, false
		}
	}
	return 0, true
}

// ParseFunc turns a beat file into a channel
type ParseFunc func(path string) (Channel, error)

// ParseFile reads one channel file. The channel is named after the file's
// base name, unchanged.
func ParseFile(path string) (Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return Channel{}, &playerrors.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	events, err := Parse(f)
	if err != nil {
		var perr *playerrors.ParseError
		if errors.As(err, &perr) {
			perr.Path = path
			return Channel{}, perr
		}
		return Channel{}, &playerrors.LoadError{Path: path, Err: err}
	}

	return Channel{Name: filepath.Base(path), Events: events}, nil
}

// Parse reads beat lines: a hex timestamp per line, or a bracketed,
// comma-separated chord such as "[A, 14]". Blank lines are skipped. Order is
// kept as written.
func Parse(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	events := make([]Event, 0, 64)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		event, token, err := parseLine(line)
		if err != nil {
			return nil, &playerrors.ParseError{Line: lineNo, Token: token, Err: err}
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read beats")
	}

	return events, nil
}

// parseLine returns the offending token alongside any error
func parseLine(line string) (Event, string, error) {
	if !strings.HasPrefix(line, "[") {
		beat, err := parseHex(line)
		if err != nil {
			return Event{}, line, err
		}
		return Event{Beats: []time.Duration{beat}}, "", nil
	}

	if !strings.HasSuffix(line, "]") {
		return Event{}, line, errors.Wrap(errNotHex, "unterminated chord")
	}

	inner := strings.TrimSpace(line[1 : len(line)-1])
	if inner == "" {
		return Event{}, line, errEmptyChord
	}

	parts := strings.Split(inner, ",")
	beats := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(part)
		if token == "" {
			return Event{}, line, errEmptyChord
		}
		beat, err := parseHex(token)
		if err != nil {
			return Event{}, token, err
		}
		beats = append(beats, beat)
	}

	return Event{Beats: beats}, "", nil
}

// parseHex accepts bare hex digits only: no sign, no 0x prefix
func parseHex(token string) (time.Duration, error) {
	if token == "" {
		return 0, errNotHex
	}
	for _, c := range token {
		if !isHexDigit(c) {
			return 0, errNotHex
		}
	}

	v, err := strconv.ParseUint(token, 16, 63)
	if err != nil || int64(v) > maxMicros {
		return 0, errOutOfRange
	}
	return time.Duration(v) * time.Microsecond, nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
