// Package config validates client and relay settings gathered from flags and
// the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultRelayAddr = "localhost:8080"
)

// Client holds the settings for a chat session.
type Client struct {
	ServerURL string
	Username  string
}

// Validate checks that ServerURL is a ws or wss URL and that a username is set.
func (c Client) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("%w: server url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: server url %q must use ws or wss", ErrInvalidConfig, c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: server url %q has no host", ErrInvalidConfig, c.ServerURL)
	}
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidConfig)
	}
	return nil
}

// Ngrok configures the optional public tunnel in front of the relay.
type Ngrok struct {
	Enabled   bool
	AuthToken string
	Domain    string
}

// Relay holds the settings for the relay server.
type Relay struct {
	Addr  string
	Ngrok Ngrok
}

// Validate checks the listen address and, when the tunnel is enabled, that a
// token is available.
func (r Relay) Validate() error {
	if strings.TrimSpace(r.Addr) == "" {
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	}
	if r.Ngrok.Enabled && r.Ngrok.AuthToken == "" {
		return fmt.Errorf("%w: ngrok enabled without an auth token (set NGROK_AUTHTOKEN)", ErrInvalidConfig)
	}
	return nil
}
