package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
)

func TestNavigation(t *testing.T) {
	cases := []struct {
		name   string
		nav    func(int, int) int
		cursor int
		n      int
		want   int
	}{
		{"first empty", First, Live, 0, Live},
		{"first", First, Live, 4, 0},
		{"previous from live", Previous, Live, 4, 3},
		{"previous", Previous, 2, 4, 1},
		{"previous at start", Previous, 0, 4, 0},
		{"previous empty", Previous, Live, 0, Live},
		{"next", Next, 1, 4, 2},
		{"next from last index", Next, 3, 4, Live},
		{"next from live", Next, Live, 4, Live},
		{"last", Last, 1, 4, Live},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.nav(tc.cursor, tc.n))
		})
	}
}

func playedGame(t *testing.T) *harness {
	t.Helper()
	h := newOnline(t, rules.White)
	h.history("e4", "e5", "Nf3", "Nc6")
	return h
}

func TestPreviewIsPure(t *testing.T) {
	h := playedGame(t)
	live := h.s.LivePosition().FEN()

	h.s.PreviewMove(2)
	first := h.s.DisplayPosition().FEN()
	second := h.s.DisplayPosition().FEN()
	assert.Equal(t, first, second)
	assert.NotEqual(t, live, first)
	assert.Equal(t, live, h.s.LivePosition().FEN())
	assert.Equal(t, []string{"e4", "e5", "Nf3", "Nc6"}, h.notations())

	want, _, err := rules.Replay(rules.NewChess(), []string{"e4", "e5"})
	require.NoError(t, err)
	assert.Equal(t, want.FEN(), first)

	snap := h.s.Snapshot()
	assert.True(t, snap.Previewing)
	assert.Equal(t, first, snap.DisplayFEN)
	assert.Equal(t, live, snap.FEN)
}

func TestPreviewOutOfRangeReturnsToLive(t *testing.T) {
	h := playedGame(t)
	h.s.PreviewMove(1)
	h.s.PreviewMove(4)
	assert.Equal(t, Live, h.s.Cursor())
	h.s.PreviewMove(1)
	h.s.PreviewMove(-3)
	assert.Equal(t, Live, h.s.Cursor())
}

func TestPreviewStepping(t *testing.T) {
	h := playedGame(t)
	h.s.PreviewPrevious()
	assert.Equal(t, 3, h.s.Cursor())
	h.s.PreviewFirst()
	assert.Equal(t, 0, h.s.Cursor())
	h.s.PreviewNext()
	assert.Equal(t, 1, h.s.Cursor())
	h.s.PreviewLast()
	assert.Equal(t, Live, h.s.Cursor())
}

func TestMoveWhilePreviewingExitsPreview(t *testing.T) {
	h := playedGame(t)
	h.s.PreviewMove(0)
	err := h.s.Play(context.Background(), "Bb5")
	assert.ErrorIs(t, err, ErrPreviewActive)
	assert.Equal(t, Live, h.s.Cursor())
	assert.Empty(t, h.link.Sent())
	assert.Len(t, h.s.Moves(), 4)

	require.NoError(t, h.s.Play(context.Background(), "Bb5"))
	assert.Equal(t, []string{"Bb5"}, h.link.Sent())
}

func TestLiveAppendInvalidatesPreview(t *testing.T) {
	h := playedGame(t)
	h.s.PreviewMove(3)
	before := h.s.DisplayPosition()
	gen := h.s.memo.generation

	h.history("e4", "e5", "Nf3", "Nc6", "Bb5", "a6")
	assert.Equal(t, 3, h.s.Cursor(), "cursor value survives a live append")
	after := h.s.DisplayPosition()
	assert.Equal(t, before.FEN(), after.FEN())
	assert.Greater(t, h.s.memo.generation, gen)
}
