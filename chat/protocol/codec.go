package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for frames that cannot be decoded.
var ErrMalformed = errors.New("malformed frame")

// Encode serializes an outbound action into wire text.
func Encode(o Outbound) (string, error) {
	data, err := json.Marshal(o.frame())
	if err != nil {
		return "", fmt.Errorf("encode %T: %w", o, err)
	}
	return string(data), nil
}

// Decode parses a relay-to-client frame.
func Decode(raw []byte) (Inbound, error) {
	f, err := decodeFrame(raw)
	if err != nil {
		return nil, err
	}

	switch f.MessageType {
	case TypeUsers:
		usernames := f.DataArray
		if usernames == nil {
			usernames = []string{}
		}
		return Users{Usernames: usernames}, nil

	case TypeMessage:
		if f.Data == nil {
			return nil, fmt.Errorf("%w: message frame without data", ErrMalformed)
		}
		var d Delivery
		if err := json.Unmarshal([]byte(*f.Data), &d); err != nil {
			return nil, fmt.Errorf("%w: delivery: %v", ErrMalformed, err)
		}
		return Deliver{Message: d}, nil

	default:
		return Unhandled{Type: f.MessageType}, nil
	}
}

// DecodeClient parses a client-to-relay frame. It is the relay's half of the
// protocol.
func DecodeClient(raw []byte) (Outbound, error) {
	f, err := decodeFrame(raw)
	if err != nil {
		return nil, err
	}
	if f.Data == nil {
		return nil, fmt.Errorf("%w: %s frame without data", ErrMalformed, f.MessageType)
	}

	switch f.MessageType {
	case TypeRegister:
		return Register{Username: *f.Data}, nil
	case TypeMessage:
		return ChatSend{Body: *f.Data}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %s frame from client", ErrMalformed, f.MessageType)
	}
}

// EncodeUsers builds the roster frame broadcast by the relay.
func EncodeUsers(usernames []string) (string, error) {
	if usernames == nil {
		usernames = []string{}
	}
	data, err := json.Marshal(Frame{MessageType: TypeUsers, DataArray: usernames})
	if err != nil {
		return "", fmt.Errorf("encode users: %w", err)
	}
	return string(data), nil
}

// EncodeDeliver builds the relay-to-client message frame, nesting the
// encoded Delivery inside data.
func EncodeDeliver(d Delivery) (string, error) {
	nested, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode delivery: %w", err)
	}
	payload := string(nested)
	data, err := json.Marshal(Frame{MessageType: TypeMessage, Data: &payload})
	if err != nil {
		return "", fmt.Errorf("encode message frame: %w", err)
	}
	return string(data), nil
}

func decodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !f.MessageType.Valid() {
		return Frame{}, fmt.Errorf("%w: unknown messageType %q", ErrMalformed, f.MessageType)
	}
	return f, nil
}
