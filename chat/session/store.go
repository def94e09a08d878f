package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/relaychat/chat/protocol"
)

// ErrSessionClosed is returned by Run when the inbound frame stream ends.
var ErrSessionClosed = errors.New("session closed")

// Sender transmits encoded frames. Implementations must not block; a failed
// send is reported and never retried.
type Sender interface {
	Send(text string) error
}

// Observer is notified after every processed event with a snapshot of the
// state and whether the event changed it. Observers run in event order and
// must not call back into the Store.
type Observer func(state State, changed bool)

// Store owns the state of one chat session.
type Store struct {
	sender Sender

	mu    sync.Mutex
	state State

	// notifyMu keeps observer calls in event order without holding mu.
	notifyMu  sync.Mutex
	observers []Observer
}

// CreateSession starts a session for username and announces it to the relay
// with a Register frame. The session is active even if that send fails.
func CreateSession(sender Sender, username string) *Store {
	s := &Store{
		sender: sender,
		state:  NewState(username),
	}

	if err := s.send(protocol.Register{Username: username}); err != nil {
		log.Warn().Err(err).Str("user", username).Msg("[chat] register failed")
	} else {
		log.Debug().Str("user", username).Msg("[chat] registered")
	}

	return s
}

// CurrentUser returns the username the session was created for.
func (s *Store) CurrentUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentUser
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers an observer for subsequent events.
func (s *Store) Subscribe(o Observer) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observers = append(s.observers, o)
}

// ApplyInbound decodes a raw frame and applies it. Malformed frames are
// dropped and leave the state untouched. It reports whether the state changed.
func (s *Store) ApplyInbound(raw []byte) bool {
	in, err := protocol.Decode(raw)
	if err != nil {
		log.Debug().Err(err).Msg("[chat] dropping inbound frame")
		s.commit(func(st State) (State, bool) { return st, false })
		return false
	}
	return s.commit(func(st State) (State, bool) { return Apply(st, in) })
}

// SubmitMessage sends text to the relay when it is not blank. The message is
// not added to the feed; it appears once the relay echoes it back. It reports
// whether a frame was sent.
func (s *Store) SubmitMessage(text string) bool {
	body, ok := PrepareMessage(text)
	if ok {
		if err := s.send(protocol.ChatSend{Body: body}); err != nil {
			log.Warn().Err(err).Msg("[chat] send message failed")
			ok = false
		}
	}
	s.commit(func(st State) (State, bool) { return st, false })
	return ok
}

// ToggleReaction flips the current user's emoji on the message at index.
// Reactions are local to this client; nothing is sent to the relay.
func (s *Store) ToggleReaction(index int, emoji string) bool {
	return s.commit(func(st State) (State, bool) { return ToggleReaction(st, index, emoji) })
}

// Run applies frames in arrival order until the stream closes or ctx ends.
func (s *Store) Run(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-frames:
			if !ok {
				log.Info().Str("user", s.CurrentUser()).Msg("[chat] inbound stream ended")
				return ErrSessionClosed
			}
			s.ApplyInbound(raw)
		}
	}
}

// PrepareMessage reports whether text is worth sending. The text itself is
// sent unmodified.
func PrepareMessage(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func (s *Store) send(o protocol.Outbound) error {
	text, err := protocol.Encode(o)
	if err != nil {
		return err
	}
	return s.sender.Send(text)
}

// commit runs one transition under the lock, then notifies observers in order.
func (s *Store) commit(transition func(State) (State, bool)) bool {
	s.mu.Lock()
	next, changed := transition(s.state)
	if changed {
		s.state = next
	}
	snapshot := s.state.Clone()
	s.notifyMu.Lock()
	s.mu.Unlock()

	defer s.notifyMu.Unlock()
	for _, o := range s.observers {
		o(snapshot, changed)
	}
	return changed
}
