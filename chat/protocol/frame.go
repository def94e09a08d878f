package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType is the tag of a wire frame.
type MessageType string

const (
	TypeUsers    MessageType = "users"
	TypeRegister MessageType = "register"
	TypeMessage  MessageType = "message"
)

// Valid reports whether t is one of the known frame tags.
func (t MessageType) Valid() bool {
	switch t {
	case TypeUsers, TypeRegister, TypeMessage:
		return true
	}
	return false
}

// Frame is the JSON envelope sent over the channel.
type Frame struct {
	MessageType MessageType `json:"messageType"`
	DataArray   []string    `json:"dataArray"`
	Data        *string     `json:"data"`
}

// ReactionEntry is one emoji and the users who reacted with it. On the wire it
// is a two element array: ["👍", ["alice", "bob"]].
type ReactionEntry struct {
	Emoji string
	Users []string
}

// MarshalJSON encodes the entry as an [emoji, users] pair.
func (e ReactionEntry) MarshalJSON() ([]byte, error) {
	users := e.Users
	if users == nil {
		users = []string{}
	}
	return json.Marshal([]any{e.Emoji, users})
}

// UnmarshalJSON decodes an [emoji, users] pair.
func (e *ReactionEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("reaction entry: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("reaction entry: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.Emoji); err != nil {
		return fmt.Errorf("reaction emoji: %w", err)
	}
	var users []string
	if err := json.Unmarshal(pair[1], &users); err != nil {
		return fmt.Errorf("reaction users: %w", err)
	}
	if users == nil {
		return fmt.Errorf("reaction users: null")
	}
	e.Users = users
	return nil
}

// Delivery is the nested record carried by a relay-to-client message frame.
type Delivery struct {
	From      string          `json:"from"`
	Message   string          `json:"message"`
	Reactions []ReactionEntry `json:"reactions"`
}

// UnmarshalJSON requires from and message to be present; reactions may be
// absent or null.
func (d *Delivery) UnmarshalJSON(data []byte) error {
	var raw struct {
		From      *string         `json:"from"`
		Message   *string         `json:"message"`
		Reactions []ReactionEntry `json:"reactions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.From == nil {
		return fmt.Errorf("missing field from")
	}
	if raw.Message == nil {
		return fmt.Errorf("missing field message")
	}
	d.From = *raw.From
	d.Message = *raw.Message
	d.Reactions = raw.Reactions
	return nil
}

// Inbound is a decoded relay-to-client frame: Users, Deliver or Unhandled.
type Inbound interface {
	inbound()
}

// Users replaces the roster.
type Users struct {
	Usernames []string
}

// Deliver appends a chat message relayed by the server.
type Deliver struct {
	Message Delivery
}

// Unhandled is a well-formed frame the client has no transition for, such as
// an echoed register frame.
type Unhandled struct {
	Type MessageType
}

func (Users) inbound()     {}
func (Deliver) inbound()   {}
func (Unhandled) inbound() {}

// Outbound is a client-to-relay action: Register or ChatSend.
type Outbound interface {
	frame() Frame
}

// Register announces the client's username. Sent once per session.
type Register struct {
	Username string
}

// ChatSend carries the raw text typed by the user.
type ChatSend struct {
	Body string
}

func (r Register) frame() Frame {
	return Frame{MessageType: TypeRegister, Data: &r.Username}
}

func (c ChatSend) frame() Frame {
	return Frame{MessageType: TypeMessage, Data: &c.Body}
}
