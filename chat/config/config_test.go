package config

import (
	"errors"
	"testing"
)

func TestClient_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Client
		wantErr bool
	}{
		{"default url", Client{ServerURL: DefaultServerURL, Username: "alice"}, false},
		{"wss", Client{ServerURL: "wss://chat.example.com/ws", Username: "alice"}, false},
		{"http scheme", Client{ServerURL: "http://localhost:8080/ws", Username: "alice"}, true},
		{"no host", Client{ServerURL: "ws:///ws", Username: "alice"}, true},
		{"unparseable", Client{ServerURL: "ws://[::1", Username: "alice"}, true},
		{"blank username", Client{ServerURL: DefaultServerURL, Username: "  "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRelay_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Relay
		wantErr bool
	}{
		{"default addr", Relay{Addr: DefaultRelayAddr}, false},
		{"blank addr", Relay{Addr: ""}, true},
		{"ngrok with token", Relay{Addr: DefaultRelayAddr, Ngrok: Ngrok{Enabled: true, AuthToken: "tok"}}, false},
		{"ngrok without token", Relay{Addr: DefaultRelayAddr, Ngrok: Ngrok{Enabled: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
