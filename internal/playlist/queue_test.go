package playlist

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/jscyril/lightshow_player/api"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

func songs(ids ...string) []*api.Song {
	out := make([]*api.Song, len(ids))
	for i, id := range ids {
		out[i] = &api.Song{ID: id, Title: id}
	}
	return out
}

func ids(s []*api.Song) []string {
	out := make([]string, len(s))
	for i, song := range s {
		out[i] = song.ID
	}
	return out
}

func TestEmptyQueue(t *testing.T) {
	q := NewQueue()
	if q.Current() != nil || q.Next() != nil || q.Previous() != nil {
		t.Error("empty queue should return nil songs")
	}
	if _, err := q.JumpTo(0); !errors.Is(err, playerrors.ErrSongNotFound) {
		t.Errorf("JumpTo(0) on empty queue error = %v", err)
	}
	q.Shuffle()
	q.Unshuffle()
}

func TestNextAndPreviousWrap(t *testing.T) {
	q := NewQueue()
	q.Set(songs("a", "b", "c"))

	tests := []struct {
		name string
		move func() *api.Song
		want string
	}{
		{"next", q.Next, "b"},
		{"next", q.Next, "c"},
		{"next wraps", q.Next, "a"},
		{"previous wraps", q.Previous, "c"},
		{"previous", q.Previous, "b"},
	}

	for _, tt := range tests {
		if got := tt.move(); got.ID != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, got.ID, tt.want)
		}
	}
	if q.Index() != 1 || q.Current().ID != "b" {
		t.Errorf("Current() = %s at %d, want b at 1", q.Current().ID, q.Index())
	}
}

func TestJumpToAndIndexOf(t *testing.T) {
	q := NewQueue()
	q.Set(songs("a", "b", "c"))

	song, err := q.JumpTo(2)
	if err != nil || song.ID != "c" {
		t.Fatalf("JumpTo(2) = %v, %v", song, err)
	}
	if _, err := q.JumpTo(3); err == nil {
		t.Error("JumpTo(3) should fail")
	}
	if q.Index() != 2 {
		t.Errorf("failed jump moved index to %d", q.Index())
	}

	if got := q.IndexOf("b"); got != 1 {
		t.Errorf("IndexOf(b) = %d, want 1", got)
	}
	if got := q.IndexOf("z"); got != -1 {
		t.Errorf("IndexOf(z) = %d, want -1", got)
	}
}

func TestShuffleKeepsSongs(t *testing.T) {
	q := NewQueue()
	q.rng = rand.New(rand.NewSource(7))
	q.Set(songs("a", "b", "c", "d", "e", "f"))
	q.JumpTo(3)

	q.Shuffle()
	if !q.IsShuffled() || q.Index() != 0 {
		t.Errorf("after Shuffle: shuffled=%v index=%d", q.IsShuffled(), q.Index())
	}

	got := ids(q.All())
	sort.Strings(got)
	want := []string{"a", "b", "c", "d", "e", "f"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("shuffled songs = %v, want a permutation of %v", got, want)
		}
	}

	current := q.Current().ID
	q.Unshuffle()
	if q.IsShuffled() {
		t.Error("still shuffled after Unshuffle")
	}
	if q.Current().ID != current {
		t.Errorf("Unshuffle moved off current song %s to %s", current, q.Current().ID)
	}
	if order := ids(q.All()); order[0] != "a" || order[5] != "f" {
		t.Errorf("Unshuffle order = %v", order)
	}
}

func TestSetCopiesInput(t *testing.T) {
	in := songs("a", "b")
	q := NewQueue()
	q.Set(in)
	in[0] = &api.Song{ID: "z"}

	if q.Current().ID != "a" {
		t.Error("Set should copy the slice")
	}
	q.Add(songs("c")...)
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}
}
