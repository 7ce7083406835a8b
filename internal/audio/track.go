package audio

import (
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
)

// Track is one playable item as reported by an audio node.
type Track struct {
	Encoded     string
	Identifier  string
	Title       string
	Author      string
	URI         string
	ArtworkURL  string
	Duration    time.Duration
	IsStream    bool
	RequesterID discord.UserID
}

// Queue holds the current track and the tracks waiting behind it.
type Queue struct {
	mu      sync.Mutex
	current *Track
	items   []Track
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends tracks to the end of the queue.
func (q *Queue) Add(tracks ...Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, tracks...)
}

// Next promotes the head of the queue to the current track and returns it.
// When the queue is empty the current track is cleared and nil is returned.
func (q *Queue) Next() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		q.current = nil

		return nil
	}

	next := q.items[0]
	q.items = q.items[1:]
	q.current = &next

	return &next
}

// Current returns the track being played, or nil.
func (q *Queue) Current() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.current
}

// Size returns the number of tracks waiting behind the current one.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Clear drops the waiting tracks and the current track.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.current = nil
}
