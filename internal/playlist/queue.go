// Package playlist holds the jukebox play order.
package playlist

import (
	"math/rand"
	"sync"

	"github.com/jscyril/lightshow_player/api"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// Queue is the play order. Next and Previous wrap around at the ends.
type Queue struct {
	songs    []*api.Song
	index    int
	shuffled bool
	original []*api.Song // order before shuffle
	rng      *rand.Rand
	mu       sync.RWMutex
}

// NewQueue creates a new empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Set replaces the entire queue and rewinds to the first song
func (q *Queue) Set(songs []*api.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.songs = make([]*api.Song, len(songs))
	copy(q.songs, songs)
	q.original = nil
	q.shuffled = false
	q.index = 0
}

// Add appends songs
func (q *Queue) Add(songs ...*api.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.songs = append(q.songs, songs...)
	if q.original != nil {
		q.original = append(q.original, songs...)
	}
}

// Current returns the current song
func (q *Queue) Current() *api.Song {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.songs) == 0 {
		return nil
	}
	return q.songs[q.index]
}

// Next moves to the next song, wrapping to the first after the last
func (q *Queue) Next() *api.Song {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return nil
	}
	q.index = (q.index + 1) % len(q.songs)
	return q.songs[q.index]
}

// Previous moves back one song, wrapping to the last before the first
func (q *Queue) Previous() *api.Song {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return nil
	}
	q.index--
	if q.index < 0 {
		q.index = len(q.songs) - 1
	}
	return q.songs[q.index]
}

// JumpTo makes index current and returns that song
func (q *Queue) JumpTo(index int) (*api.Song, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.songs) {
		return nil, playerrors.ErrSongNotFound
	}
	q.index = index
	return q.songs[index], nil
}

// IndexOf returns the position of the song with id, or -1
func (q *Queue) IndexOf(id string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for i, song := range q.songs {
		if song.ID == id {
			return i
		}
	}
	return -1
}

// Shuffle randomizes the whole order (Fisher-Yates) and rewinds to the
// first song.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.original == nil {
		q.original = make([]*api.Song, len(q.songs))
		copy(q.original, q.songs)
	}

	intn := rand.Intn
	if q.rng != nil {
		intn = q.rng.Intn
	}
	for i := len(q.songs) - 1; i > 0; i-- {
		j := intn(i + 1)
		q.songs[i], q.songs[j] = q.songs[j], q.songs[i]
	}
	q.index = 0
	q.shuffled = true
}

// Unshuffle restores the order before Shuffle, keeping the current song
func (q *Queue) Unshuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.original == nil {
		return
	}

	var current *api.Song
	if len(q.songs) > 0 {
		current = q.songs[q.index]
	}
	q.songs = q.original
	q.original = nil
	q.shuffled = false
	q.index = 0

	for i, song := range q.songs {
		if current != nil && song.ID == current.ID {
			q.index = i
			break
		}
	}
}

// IsShuffled returns whether the queue is shuffled
func (q *Queue) IsShuffled() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuffled
}

// All returns a copy of the queue in play order
func (q *Queue) All() []*api.Song {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*api.Song, len(q.songs))
	copy(result, q.songs)
	return result
}

// Len returns the number of songs in the queue
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.songs)
}

// Index returns the current index
func (q *Queue) Index() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.index
}
