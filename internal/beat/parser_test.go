package beat

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

func us(n int64) time.Duration {
	return time.Duration(n) * time.Microsecond
}

func TestParseExampleFile(t *testing.T) {
	events, err := Parse(strings.NewReader("\n0\n[A,14]\n1E\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	want := []Event{
		{Beats: []time.Duration{0}},
		{Beats: []time.Duration{us(10), us(20)}},
		{Beats: []time.Duration{us(30)}},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("Parse = %v, want %v", events, want)
	}
	if !events[1].IsChord() || events[0].IsChord() {
		t.Error("only the bracketed line should be a chord")
	}
}

func TestParseAcceptedForms(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []time.Duration
	}{
		{"lower case", "ff", []time.Duration{us(255)}},
		{"upper case", "FF", []time.Duration{us(255)}},
		{"surrounding spaces", "  1A  ", []time.Duration{us(26)}},
		{"chord spaces after commas", "[1, 2, 3]", []time.Duration{us(1), us(2), us(3)}},
		{"chord inner padding", "[ A ,B ]", []time.Duration{us(10), us(11)}},
		{"single member chord", "[7]", []time.Duration{us(7)}},
		{"windows line ending", "10\r", []time.Duration{us(16)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Parse(strings.NewReader(tt.line))
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.line, err)
			}
			if len(events) != 1 {
				t.Fatalf("Parse(%q) returned %d events, want 1", tt.line, len(events))
			}
			if !reflect.DeepEqual(events[0].Beats, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.line, events[0].Beats, tt.want)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"not hex", "0\nzz\n", 2},
		{"hex prefix", "0x10", 1},
		{"negative", "-5", 1},
		{"empty chord", "[]", 1},
		{"empty chord member", "1\n2\n[A,,B]", 3},
		{"unterminated chord", "[A,B", 1},
		{"two tokens", "1 2", 1},
		{"overflow", "FFFFFFFFFFFFFFFFF", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatalf("Parse(%q) should fail", tt.input)
			}
			var perr *playerrors.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error %v is not a ParseError", err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("ParseError.Line = %d, want %d", perr.Line, tt.wantLine)
			}
		})
	}
}

func TestParseKeepsFileOrder(t *testing.T) {
	events, err := Parse(strings.NewReader("14\nA\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if events[0].Due() != us(20) || events[1].Due() != us(10) {
		t.Errorf("Parse reordered events: %v", events)
	}

	idx, ok := Channel{Events: events}.Ordered()
	if ok || idx != 1 {
		t.Errorf("Ordered() = %d, %v; want 1, false", idx, ok)
	}
}

func TestEventDueIsLatestMember(t *testing.T) {
	e := Event{Beats: []time.Duration{us(30), us(10), us(20)}}
	if got := e.Due(); got != us(30) {
		t.Errorf("Due() = %v, want %v", got, us(30))
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "beat1.txt")
	if err := os.WriteFile(good, []byte("0\n[A,14]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ch, err := ParseFile(good)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if ch.Name != "beat1.txt" {
		t.Errorf("channel name = %q, want beat1.txt", ch.Name)
	}
	if len(ch.Events) != 2 {
		t.Errorf("got %d events, want 2", len(ch.Events))
	}

	bad := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(bad, []byte("G\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = ParseFile(bad)
	var perr *playerrors.ParseError
	if !errors.As(err, &perr) || perr.Path != bad {
		t.Errorf("ParseFile(bad) error = %v, want ParseError with path", err)
	}

	_, err = ParseFile(filepath.Join(dir, "missing.txt"))
	var lerr *playerrors.LoadError
	if !errors.As(err, &lerr) {
		t.Errorf("ParseFile(missing) error = %v, want LoadError", err)
	}
}
