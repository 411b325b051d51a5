package session

import (
	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

type EventKind int

const (
	EventMoveApplied EventKind = iota
	EventEchoConfirmed
	EventHistoryReplayed
	EventRemoteRejected
	EventPromotionPending
	EventPreviewChanged
	EventOutcome
	EventProtocolError
	EventUnparseable
	EventConnection
	EventTakeBack
)

func (k EventKind) String() string {
	switch k {
	case EventMoveApplied:
		return "move_applied"
	case EventEchoConfirmed:
		return "echo_confirmed"
	case EventHistoryReplayed:
		return "history_replayed"
	case EventRemoteRejected:
		return "remote_rejected"
	case EventPromotionPending:
		return "promotion_pending"
	case EventPreviewChanged:
		return "preview_changed"
	case EventOutcome:
		return "outcome"
	case EventProtocolError:
		return "protocol_error"
	case EventUnparseable:
		return "unparseable"
	case EventConnection:
		return "connection"
	case EventTakeBack:
		return "take_back"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after the session lock is released.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind          EventKind
	Move          MoveRecord
	Notation      string
	Outcome       Outcome
	Connection    connection.State
	ProtocolError chessdto.ProtocolError
	Cursor        int
	Count         int
	Err           error
}

type Listener func(Event)

func (s *Session) OnEvent(l Listener) int {
	s.lm.Lock()
	defer s.lm.Unlock()
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextID, listener: l})
	return s.nextID
}

func (s *Session) RemoveListener(id int) {
	s.lm.Lock()
	defer s.lm.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			break
		}
	}
}

// emit queues an event; callers hold s.mu.
func (s *Session) emit(e Event) {
	s.events = append(s.events, e)
}

func (s *Session) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	s.lm.RLock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.lm.RUnlock()
	for _, e := range events {
		for _, entry := range listeners {
			if entry.listener != nil {
				entry.listener(e)
			}
		}
	}
}
