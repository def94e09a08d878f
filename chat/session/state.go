package session

import (
	"slices"

	"github.com/wricardo/mcp-training/relaychat/chat/protocol"
)

// UserProfile is a roster entry.
type UserProfile struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// NewUserProfile derives a profile from a username.
func NewUserProfile(name string) UserProfile {
	return UserProfile{Name: name, AvatarURL: AvatarURL(name)}
}

// Reaction is one emoji on a message and the users who picked it. Users never
// contains the same name twice.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// Reactions maps emoji to users, in the order each emoji was first used.
type Reactions []Reaction

// Users returns who reacted with emoji.
func (r Reactions) Users(emoji string) []string {
	if i := r.index(emoji); i >= 0 {
		return r[i].Users
	}
	return nil
}

// Count returns how many users reacted with emoji.
func (r Reactions) Count(emoji string) int {
	return len(r.Users(emoji))
}

// Has reports whether user reacted with emoji.
func (r Reactions) Has(emoji, user string) bool {
	return slices.Contains(r.Users(emoji), user)
}

// Toggle returns a copy of r with user removed from emoji's set if present,
// added otherwise. An emoji left with no users is dropped. r is not modified.
func (r Reactions) Toggle(emoji, user string) Reactions {
	out := r.clone()
	i := out.index(emoji)
	if i < 0 {
		return append(out, Reaction{Emoji: emoji, Users: []string{user}})
	}

	users := out[i].Users
	if j := slices.Index(users, user); j >= 0 {
		users = slices.Delete(users, j, j+1)
	} else {
		users = append(users, user)
	}
	if len(users) == 0 {
		return slices.Delete(out, i, i+1)
	}
	out[i].Users = users
	return out
}

func (r Reactions) index(emoji string) int {
	return slices.IndexFunc(r, func(x Reaction) bool { return x.Emoji == emoji })
}

func (r Reactions) clone() Reactions {
	if len(r) == 0 {
		return Reactions{}
	}
	out := make(Reactions, len(r))
	for i, x := range r {
		out[i] = Reaction{Emoji: x.Emoji, Users: slices.Clone(x.Users)}
	}
	return out
}

// reactionsFromWire normalizes relayed reactions: repeated emoji are merged,
// repeated users dropped and empty sets omitted.
func reactionsFromWire(entries []protocol.ReactionEntry) Reactions {
	out := Reactions{}
	for _, e := range entries {
		for _, user := range e.Users {
			if !out.Has(e.Emoji, user) {
				out = out.Toggle(e.Emoji, user)
			}
		}
	}
	return out
}

// ChatMessage is one entry of the message feed.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Reactions Reactions `json:"reactions"`
}

// State is a snapshot of a chat session.
type State struct {
	Users       []UserProfile `json:"users"`
	Messages    []ChatMessage `json:"messages"`
	CurrentUser string        `json:"current_user"`
}

// NewState returns the empty state of a session owned by currentUser.
func NewState(currentUser string) State {
	return State{
		Users:       []UserProfile{},
		Messages:    []ChatMessage{},
		CurrentUser: currentUser,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Users:       slices.Clone(s.Users),
		Messages:    make([]ChatMessage, len(s.Messages)),
		CurrentUser: s.CurrentUser,
	}
	if out.Users == nil {
		out.Users = []UserProfile{}
	}
	for i, m := range s.Messages {
		m.Reactions = m.Reactions.clone()
		out.Messages[i] = m
	}
	return out
}

// Profile returns the roster entry for name, falling back to a derived
// profile for senders who have left the roster.
func (s State) Profile(name string) UserProfile {
	for _, u := range s.Users {
		if u.Name == name {
			return u
		}
	}
	return NewUserProfile(name)
}

// Apply returns the state after an inbound frame and whether it changed.
// s is not modified.
func Apply(s State, in protocol.Inbound) (State, bool) {
	switch f := in.(type) {
	case protocol.Users:
		users := make([]UserProfile, 0, len(f.Usernames))
		for _, name := range f.Usernames {
			users = append(users, NewUserProfile(name))
		}
		s.Users = users
		return s, true

	case protocol.Deliver:
		msg := ChatMessage{
			Sender:    f.Message.From,
			Body:      f.Message.Message,
			Reactions: reactionsFromWire(f.Message.Reactions),
		}
		// Full slice expression forces append to copy rather than write into
		// an array shared with an earlier snapshot.
		s.Messages = append(s.Messages[:len(s.Messages):len(s.Messages)], msg)
		return s, true

	default:
		return s, false
	}
}

// ToggleReaction flips the current user's emoji reaction on the message at
// index. An index outside the feed is a stale reference and leaves the state
// unchanged. s is not modified.
func ToggleReaction(s State, index int, emoji string) (State, bool) {
	if index < 0 || index >= len(s.Messages) {
		return s, false
	}
	messages := slices.Clone(s.Messages)
	messages[index].Reactions = messages[index].Reactions.Toggle(emoji, s.CurrentUser)
	s.Messages = messages
	return s, true
}
