package session

import (
	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
)

// Live is the cursor value for the current position.
const Live = -1

type previewMemo struct {
	cursor     int
	generation uint64
	pos        rules.Position
}

// First, Previous, Next and Last compute a new cursor from the current one
// and the log length. Cursor c displays the position before move c.

func First(cursor, n int) int {
	if n == 0 {
		return Live
	}
	return 0
}

func Previous(cursor, n int) int {
	if n == 0 {
		return Live
	}
	if cursor == Live || cursor >= n {
		return n - 1
	}
	if cursor <= 0 {
		return 0
	}
	return cursor - 1
}

func Next(cursor, n int) int {
	if cursor == Live || cursor+1 >= n {
		return Live
	}
	return cursor + 1
}

func Last(cursor, n int) int {
	return Live
}

// PreviewMove shows the position before move index. Out of range returns to live.
func (s *Session) PreviewMove(index int) {
	_ = s.do(func() error {
		if index < 0 || index >= len(s.log) {
			index = Live
		}
		s.setCursorLocked(index)
		return nil
	})
}

// PreviewFirst, PreviewPrevious, PreviewNext and PreviewLast step the cursor.
func (s *Session) PreviewFirst()    { s.step(First) }
func (s *Session) PreviewPrevious() { s.step(Previous) }
func (s *Session) PreviewNext()     { s.step(Next) }
func (s *Session) PreviewLast()     { s.step(Last) }

func (s *Session) step(nav func(cursor, n int) int) {
	_ = s.do(func() error {
		s.setCursorLocked(nav(s.cursor, len(s.log)))
		return nil
	})
}

func (s *Session) setCursorLocked(c int) {
	if c == s.cursor {
		return
	}
	s.cursor = c
	s.emit(Event{Kind: EventPreviewChanged, Cursor: c})
}

// Cursor returns the preview cursor or Live.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// DisplayPosition returns the position to render: the live one, or a fresh
// replay of the log up to the cursor.
func (s *Session) DisplayPosition() rules.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayLocked()
}

func (s *Session) displayLocked() rules.Position {
	if s.cursor == Live {
		return s.live
	}
	if s.memo.pos != nil && s.memo.cursor == s.cursor && s.memo.generation == s.generation {
		return s.memo.pos
	}
	n := s.cursor
	if n > len(s.log) {
		n = len(s.log)
	}
	notations := make([]string, n)
	for i := 0; i < n; i++ {
		notations[i] = s.log[i].Notation
	}
	pos, _, err := rules.Replay(s.cfg.Engine, notations)
	if err != nil {
		// The log only holds applied moves, so this means the engine disagrees with itself.
		s.logger.Error("preview_replay_failed", zap.Int("cursor", s.cursor), zap.Error(err))
		return s.live
	}
	s.memo = previewMemo{cursor: s.cursor, generation: s.generation, pos: pos}
	return pos
}
