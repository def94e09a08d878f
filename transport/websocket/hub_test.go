package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/relaychat/chat/protocol"
)

func newTestClient(hub *Hub, buffer int) *Client {
	client := &Client{
		hub:  hub,
		send: make(chan []byte, buffer),
	}
	hub.clients[client] = true
	return client
}

func registerFrame(name string) []byte {
	text, _ := protocol.Encode(protocol.Register{Username: name})
	return []byte(text)
}

func chatFrame(body string) []byte {
	text, _ := protocol.Encode(protocol.ChatSend{Body: body})
	return []byte(text)
}

func drain(client *Client) []string {
	var out []string
	for {
		select {
		case data := <-client.send:
			out = append(out, string(data))
		default:
			return out
		}
	}
}

func decodeUsers(t *testing.T, raw string) []string {
	t.Helper()
	in, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode(%s) error = %v", raw, err)
	}
	users, ok := in.(protocol.Users)
	if !ok {
		t.Fatalf("Decode(%s) = %T, want Users", raw, in)
	}
	return users.Usernames
}

func decodeDelivery(t *testing.T, raw string) protocol.Delivery {
	t.Helper()
	in, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode(%s) error = %v", raw, err)
	}
	d, ok := in.(protocol.Deliver)
	if !ok {
		t.Fatalf("Decode(%s) = %T, want Deliver", raw, in)
	}
	return d.Message
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map is nil")
	}
	if hub.inbound == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialized")
	}
	if users := hub.Users(); len(users) != 0 {
		t.Errorf("Users() = %v, want empty", users)
	}
}

func TestHubRegister(t *testing.T) {
	hub := NewHub()
	bob := newTestClient(hub, 8)
	alice := newTestClient(hub, 8)

	hub.handleFrame(bob, registerFrame("bob"))
	hub.handleFrame(alice, registerFrame("alice"))

	if got := hub.Users(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("Users() = %v, want [alice bob]", got)
	}

	bobFrames := drain(bob)
	if len(bobFrames) != 2 {
		t.Fatalf("bob received %d frames, want 2", len(bobFrames))
	}
	if got := decodeUsers(t, bobFrames[1]); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("roster = %v, want sorted [alice bob]", got)
	}

	t.Run("repeated register is ignored", func(t *testing.T) {
		hub.handleFrame(alice, registerFrame("mallory"))
		if alice.username != "alice" {
			t.Errorf("username = %q, want alice", alice.username)
		}
	})
}

func TestHubRelayMessage(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 8)
	bob := newTestClient(hub, 8)
	lurker := newTestClient(hub, 8)

	hub.handleFrame(alice, registerFrame("alice"))
	hub.handleFrame(bob, registerFrame("bob"))
	drain(alice)
	drain(bob)

	hub.handleFrame(alice, chatFrame("<b>hello</b> & bye"))

	for name, client := range map[string]*Client{"alice": alice, "bob": bob} {
		frames := drain(client)
		if len(frames) != 1 {
			t.Fatalf("%s received %d frames, want 1", name, len(frames))
		}
		d := decodeDelivery(t, frames[0])
		if d.From != "alice" || d.Message != "hello & bye" || d.Reactions != nil {
			t.Errorf("%s received %+v", name, d)
		}
	}

	if frames := drain(lurker); len(frames) != 0 {
		t.Errorf("unregistered client received %v", frames)
	}

	t.Run("unregistered sender is ignored", func(t *testing.T) {
		hub.handleFrame(lurker, chatFrame("hi"))
		if frames := drain(alice); len(frames) != 0 {
			t.Errorf("alice received %v", frames)
		}
	})

	t.Run("blank and malformed frames are ignored", func(t *testing.T) {
		hub.handleFrame(alice, chatFrame("<i></i>  "))
		hub.handleFrame(alice, []byte(`{"messageType":"users","dataArray":["x"],"data":"x"}`))
		hub.handleFrame(alice, []byte(`nonsense`))
		if frames := drain(bob); len(frames) != 0 {
			t.Errorf("bob received %v", frames)
		}
	})
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 8)
	bob := newTestClient(hub, 8)
	hub.handleFrame(alice, registerFrame("alice"))
	hub.handleFrame(bob, registerFrame("bob"))
	drain(alice)

	hub.unregisterClient(bob)

	if _, exists := hub.clients[bob]; exists {
		t.Error("bob should have been removed")
	}
	if _, ok := <-bob.send; ok {
		t.Error("bob's send channel should be closed")
	}
	frames := drain(alice)
	if len(frames) != 1 {
		t.Fatalf("alice received %d frames, want 1", len(frames))
	}
	if got := decodeUsers(t, frames[0]); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("roster = %v, want [alice]", got)
	}

	// Second unregister is a no-op.
	hub.unregisterClient(bob)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 8)
	slow := newTestClient(hub, 1)
	hub.handleFrame(slow, registerFrame("slow"))
	hub.handleFrame(alice, registerFrame("alice"))
	drain(alice)

	hub.handleFrame(alice, chatFrame("one"))

	if _, exists := hub.clients[slow]; exists {
		t.Error("slow client should have been dropped")
	}
	if got := hub.Users(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("Users() = %v, want [alice]", got)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"alice":                          "alice",
		"  bob  ":                        "bob",
		"":                               "anon",
		"<b></b>":                        "anon",
		"<i>carol</i>":                   "carol",
		"abcdefghijklmnopqrstuvwxyz0123": "abcdefghijklmnopqrstuvwx",
		"Tom & Jerry":                    "Tom & Jerry",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHubOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	alice, err := Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer alice.Close()

	if err := alice.Send(string(registerFrame("alice"))); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := decodeUsers(t, nextFrame(t, alice)); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("roster = %v, want [alice]", got)
	}

	bob, err := Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	bob.Send(string(registerFrame("bob")))
	if got := decodeUsers(t, nextFrame(t, bob)); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("bob roster = %v", got)
	}
	if got := decodeUsers(t, nextFrame(t, alice)); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("alice roster = %v", got)
	}

	bob.Send(string(chatFrame("hi")))
	for _, ch := range []*Channel{alice, bob} {
		if d := decodeDelivery(t, nextFrame(t, ch)); d.From != "bob" || d.Message != "hi" {
			t.Errorf("delivery = %+v", d)
		}
	}

	bob.Close()
	if got := decodeUsers(t, nextFrame(t, alice)); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("roster after leave = %v, want [alice]", got)
	}
}

func TestHubShutdownEndsClientStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	ch, err := Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer ch.Close()

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Frames() was not closed after hub shutdown")
		}
	}
}
