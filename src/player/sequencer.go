package player

import (
	"context"
	"math/rand"
)

// The sequencer computes playlist progression under the repeat and shuffle
// policy and drives track loading when the engine reports completion.
//
// All methods except handleCompleted's follow-up require the session mutex
// to be held.
type sequencer struct {
	s *session

	// load is the late-bound track loader provided by the facade.
	load func(ctx context.Context, index int) error

	// shuffleOrder is a permutation of playlist indices with the currently
	// playing index fixed at position 0. Only valid while IsShuffled.
	shuffleOrder []int
}

// next returns the index of the next playlist item, or false at the playlist
// boundary when the repeat mode does not wrap. The current index is never
// mutated here; the caller decides whether to act on the result.
func (q *sequencer) next() (int, bool) {
	return q.step(1)
}

// previous returns the index of the previous playlist item with the same
// boundary rules as next.
func (q *sequencer) previous() (int, bool) {
	return q.step(-1)
}

func (q *sequencer) step(direction int) (int, bool) {
	snap := q.s.snapshot
	n := len(snap.Playlist)
	if n == 0 {
		return 0, false
	}
	if snap.PlaylistRepeatMode == RepeatOne {
		return snap.PlaylistIndex, true
	}

	if snap.IsShuffled && len(q.shuffleOrder) == n {
		pos := 0
		for i, idx := range q.shuffleOrder {
			if idx == snap.PlaylistIndex {
				pos = i
				break
			}
		}
		pos += direction
		if pos < 0 || pos >= n {
			if snap.PlaylistRepeatMode != RepeatAll {
				return 0, false
			}
			pos = (pos + n) % n
		}
		return q.shuffleOrder[pos], true
	}

	idx := snap.PlaylistIndex + direction
	if idx < 0 || idx >= n {
		if snap.PlaylistRepeatMode != RepeatAll {
			return 0, false
		}
		idx = (idx + n) % n
	}
	return idx, true
}

// setShuffle enables or disables shuffled traversal. The new shuffle order
// always starts with the currently playing index, so enabling shuffle never
// jumps away from what is playing.
func (q *sequencer) setShuffle(enabled bool) {
	if !enabled {
		q.shuffleOrder = nil
		if q.s.snapshot.IsShuffled {
			q.s.update(func(snap *Snapshot) {
				snap.IsShuffled = false
			})
		}
		return
	}

	snap := q.s.snapshot
	n := len(snap.Playlist)
	order := make([]int, 0, n)
	current := snap.PlaylistIndex
	if current >= 0 && current < n {
		order = append(order, current)
	}
	rest := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != current {
			rest = append(rest, i)
		}
	}
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	q.shuffleOrder = append(order, rest...)
	q.s.update(func(snap *Snapshot) {
		snap.IsShuffled = true
	})
}

// reset discards the shuffle order, used when the playlist is replaced.
func (q *sequencer) reset() {
	q.shuffleOrder = nil
}

// handleCompleted is invoked by the dispatcher when the active track's
// engine reports completion. It requires the session mutex; the returned
// follow-up loads the next track and must run after the mutex is released.
func (q *sequencer) handleCompleted() func() {
	index, ok := q.next()
	if !ok {
		// The playlist genuinely ended, the completed state stands.
		return nil
	}
	load := q.load
	log := q.s.log
	return func() {
		if err := load(context.Background(), index); err != nil {
			log.Errorf("Could not advance to playlist item %d: %v", index, err)
		}
	}
}
