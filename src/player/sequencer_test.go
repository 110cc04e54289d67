package player

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func loadTestPlaylist(t *testing.T, p *Player, n, index int) {
	t.Helper()
	sources := make([]MediaSource, n)
	for i := range sources {
		sources[i] = MediaSource{URI: fmt.Sprintf("file:///track-%d.mkv", i)}
	}
	if err := p.LoadPlaylist(context.Background(), sources, index); err != nil {
		t.Fatalf("error loading playlist: %v", err)
	}
}

func TestPlaylistValidation(t *testing.T) {
	p, _ := newTestPlayer(t, Config{})
	ctx := context.Background()
	if err := p.LoadPlaylist(ctx, nil, 0); err == nil {
		t.Errorf("expected an error for an empty playlist")
	}
	sources := []MediaSource{{URI: "file:///a.mkv"}}
	if err := p.LoadPlaylist(ctx, sources, 1); err == nil {
		t.Errorf("expected an error for an out of range index")
	}
}

func TestNextAdvancesSequentially(t *testing.T) {
	p, _ := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 3, 0)
	ctx := context.Background()

	if err := p.Next(ctx); err != nil {
		t.Fatalf("error advancing: %v", err)
	}
	if i := p.Snapshot().PlaylistIndex; i != 1 {
		t.Fatalf("expected index 1, got %d", i)
	}
	if err := p.Previous(ctx); err != nil {
		t.Fatalf("error stepping back: %v", err)
	}
	if i := p.Snapshot().PlaylistIndex; i != 0 {
		t.Fatalf("expected index 0, got %d", i)
	}
}

func TestRepeatNoneStopsAtBoundaries(t *testing.T) {
	p, _ := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 3, 2)
	ctx := context.Background()

	if err := p.Next(ctx); !errors.Is(err, ErrEndOfPlaylist) {
		t.Fatalf("expected ErrEndOfPlaylist, got %v", err)
	}
	if i := p.Snapshot().PlaylistIndex; i != 2 {
		t.Fatalf("expected the index to be unchanged, got %d", i)
	}

	loadTestPlaylist(t, p, 3, 0)
	if err := p.Previous(ctx); !errors.Is(err, ErrEndOfPlaylist) {
		t.Fatalf("expected ErrEndOfPlaylist, got %v", err)
	}
}

func TestRepeatAllWraps(t *testing.T) {
	p, _ := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 3, 0)
	ctx := context.Background()

	if err := p.SetRepeatMode(RepeatAll); err != nil {
		t.Fatalf("error setting repeat mode: %v", err)
	}
	for _, want := range []int{1, 2, 0, 1} {
		if err := p.Next(ctx); err != nil {
			t.Fatalf("error advancing: %v", err)
		}
		if i := p.Snapshot().PlaylistIndex; i != want {
			t.Fatalf("expected index %d, got %d", want, i)
		}
	}
	if err := p.Previous(ctx); err != nil {
		t.Fatalf("error stepping back: %v", err)
	}
	if i := p.Snapshot().PlaylistIndex; i != 0 {
		t.Fatalf("expected index 0, got %d", i)
	}
}

func TestRepeatOneStaysPut(t *testing.T) {
	p, fp := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 3, 1)
	ctx := context.Background()

	if err := p.SetRepeatMode(RepeatOne); err != nil {
		t.Fatalf("error setting repeat mode: %v", err)
	}
	creates := fp.countCommands("create")
	if err := p.Next(ctx); err != nil {
		t.Fatalf("error advancing: %v", err)
	}
	if i := p.Snapshot().PlaylistIndex; i != 1 {
		t.Fatalf("expected index 1, got %d", i)
	}
	// The same track is reloaded.
	if n := fp.countCommands("create"); n != creates+1 {
		t.Fatalf("expected %d create commands, got %d", creates+1, n)
	}
}

func TestShuffleKeepsCurrentTrackFirst(t *testing.T) {
	p, _ := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 8, 3)

	p.SetShuffle(true)
	if !p.Snapshot().IsShuffled {
		t.Fatalf("expected the snapshot to be shuffled")
	}

	p.s.mu.Lock()
	order := append([]int(nil), p.seq.shuffleOrder...)
	p.s.mu.Unlock()

	if len(order) != 8 {
		t.Fatalf("expected a permutation of 8 indices, got %v", order)
	}
	if order[0] != 3 {
		t.Fatalf("expected the current index to lead the order, got %v", order)
	}
	seen := map[int]bool{}
	for _, idx := range order {
		if idx < 0 || idx >= 8 || seen[idx] {
			t.Fatalf("order is not a permutation: %v", order)
		}
		seen[idx] = true
	}
}

func TestShuffledTraversalVisitsEveryTrack(t *testing.T) {
	p, _ := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 5, 0)
	ctx := context.Background()

	p.SetShuffle(true)
	visited := map[int]bool{p.Snapshot().PlaylistIndex: true}
	for i := 0; i < 4; i++ {
		if err := p.Next(ctx); err != nil {
			t.Fatalf("error advancing: %v", err)
		}
		visited[p.Snapshot().PlaylistIndex] = true
	}
	if len(visited) != 5 {
		t.Fatalf("expected all 5 tracks to be visited, got %v", visited)
	}
	// Repeat mode none, the shuffled sequence ends like the sequential one.
	if err := p.Next(ctx); !errors.Is(err, ErrEndOfPlaylist) {
		t.Fatalf("expected ErrEndOfPlaylist, got %v", err)
	}
}

func TestShuffleDisableRestoresSequentialOrder(t *testing.T) {
	p, _ := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 4, 1)
	ctx := context.Background()

	p.SetShuffle(true)
	p.SetShuffle(false)
	if p.Snapshot().IsShuffled {
		t.Fatalf("expected shuffle to be disabled")
	}
	if err := p.Next(ctx); err != nil {
		t.Fatalf("error advancing: %v", err)
	}
	if i := p.Snapshot().PlaylistIndex; i != 2 {
		t.Fatalf("expected index 2, got %d", i)
	}
}

func TestCompletionAdvancesPlaylist(t *testing.T) {
	p, fp := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 2, 0)
	id := p.s.id

	fp.emit(id, CompletedEvent{})
	waitForSnapshot(t, p, "playlist advance", func(snap Snapshot) bool {
		return snap.PlaylistIndex == 1
	})
	waitForCommands(t, fp, "create file:///track-1.mkv", 1)
}

func TestCompletionAtEndOfPlaylist(t *testing.T) {
	p, fp := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 2, 1)
	id := p.s.id

	creates := fp.countCommands("create")
	fp.emit(id, CompletedEvent{})
	snap := waitForSnapshot(t, p, "completed state", func(snap Snapshot) bool {
		return snap.PlaybackState == StateCompleted
	})
	if snap.PlaylistIndex != 1 {
		t.Errorf("expected the index to be unchanged, got %d", snap.PlaylistIndex)
	}

	time.Sleep(20 * time.Millisecond)
	if n := fp.countCommands("create"); n != creates {
		t.Errorf("expected no new track to be loaded, got %d create commands", n)
	}
}

func TestCompletionWithRepeatOneRestartsTrack(t *testing.T) {
	p, fp := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 2, 0)
	id := p.s.id

	if err := p.SetRepeatMode(RepeatOne); err != nil {
		t.Fatalf("error setting repeat mode: %v", err)
	}
	creates := fp.countCommands("create")
	fp.emit(id, CompletedEvent{})

	// The current item restarts in place, no new instance is created.
	waitForCommands(t, fp, "seek 0", 1)
	waitForCommands(t, fp, "play", 1)
	if n := fp.countCommands("create"); n != creates {
		t.Errorf("expected no new track to be loaded, got %d create commands", n)
	}
	if i := p.Snapshot().PlaylistIndex; i != 0 {
		t.Errorf("expected index 0, got %d", i)
	}
}

func TestCompletionWithRepeatAllWrapsToStart(t *testing.T) {
	p, fp := newTestPlayer(t, Config{})
	loadTestPlaylist(t, p, 2, 1)
	id := p.s.id

	if err := p.SetRepeatMode(RepeatAll); err != nil {
		t.Fatalf("error setting repeat mode: %v", err)
	}
	fp.emit(id, CompletedEvent{})
	waitForSnapshot(t, p, "wrap to start", func(snap Snapshot) bool {
		return snap.PlaylistIndex == 0
	})
	waitForCommands(t, fp, "create file:///track-0.mkv", 1)
}
