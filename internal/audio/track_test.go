package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	t.Run("next promotes head to current", func(t *testing.T) {
		q := NewQueue()
		q.Add(Track{Title: "one"}, Track{Title: "two"})

		assert.Nil(t, q.Current())
		assert.Equal(t, 2, q.Size())

		next := q.Next()
		require.NotNil(t, next)
		assert.Equal(t, "one", next.Title)
		assert.Equal(t, "one", q.Current().Title)
		assert.Equal(t, 1, q.Size())
	})

	t.Run("exhaustion clears current", func(t *testing.T) {
		q := NewQueue()
		q.Add(Track{Title: "only"})

		require.NotNil(t, q.Next())
		assert.Nil(t, q.Next())
		assert.Nil(t, q.Current())
		assert.Equal(t, 0, q.Size())
	})

	t.Run("clear drops everything", func(t *testing.T) {
		q := NewQueue()
		q.Add(Track{Title: "a"}, Track{Title: "b"})
		q.Next()

		q.Clear()
		assert.Nil(t, q.Current())
		assert.Equal(t, 0, q.Size())
	})
}

func TestTrackEndReasonMayStartNext(t *testing.T) {
	assert.True(t, TrackEndFinished.mayStartNext())
	assert.True(t, TrackEndLoadFailed.mayStartNext())
	assert.False(t, TrackEndStopped.mayStartNext())
	assert.False(t, TrackEndReplaced.mayStartNext())
	assert.False(t, TrackEndCleanup.mayStartNext())
}

func TestDecodeLoadResult(t *testing.T) {
	t.Run("single track", func(t *testing.T) {
		tracks, err := decodeLoadResult(&loadResult{
			LoadType: "track",
			Data:     []byte(`{"encoded":"abc","info":{"title":"Song","author":"Artist","length":180000}}`),
		})
		require.NoError(t, err)
		require.Len(t, tracks, 1)
		assert.Equal(t, "Song", tracks[0].Title)
		assert.Equal(t, "abc", tracks[0].Encoded)
		assert.Equal(t, int64(180), int64(tracks[0].Duration.Seconds()))
	})

	t.Run("search takes the best match", func(t *testing.T) {
		tracks, err := decodeLoadResult(&loadResult{
			LoadType: "search",
			Data:     []byte(`[{"encoded":"a","info":{"title":"First"}},{"encoded":"b","info":{"title":"Second"}}]`),
		})
		require.NoError(t, err)
		require.Len(t, tracks, 1)
		assert.Equal(t, "First", tracks[0].Title)
	})

	t.Run("playlist keeps every track", func(t *testing.T) {
		tracks, err := decodeLoadResult(&loadResult{
			LoadType: "playlist",
			Data:     []byte(`{"tracks":[{"encoded":"a","info":{}},{"encoded":"b","info":{}}]}`),
		})
		require.NoError(t, err)
		assert.Len(t, tracks, 2)
	})

	t.Run("empty is ErrNoTracks", func(t *testing.T) {
		_, err := decodeLoadResult(&loadResult{LoadType: "empty"})
		assert.ErrorIs(t, err, ErrNoTracks)
	})

	t.Run("node error carries the message", func(t *testing.T) {
		_, err := decodeLoadResult(&loadResult{
			LoadType: "error",
			Data:     []byte(`{"message":"video unavailable"}`),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "video unavailable")
	})
}

func TestSessionCleanupToken(t *testing.T) {
	s := &Session{queue: NewQueue()}

	first := s.BumpCleanupToken()
	second := s.BumpCleanupToken()
	third := s.BumpCleanupToken()

	assert.Greater(t, second, first)
	assert.Greater(t, third, second)
	assert.Equal(t, third, s.CleanupToken())
}
