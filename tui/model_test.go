package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wricardo/mcp-training/relaychat/chat/session"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (f *fakeSender) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

const bobHi = `{"messageType":"message","data":"{\"from\":\"bob\",\"message\":\"hi\",\"reactions\":null}"}`

func newTestModel(t *testing.T) (Model, *session.Store, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	store := session.CreateSession(sender, "alice")
	return New(store), store, sender
}

// pump feeds the pending snapshot, if any, back into the model.
func pump(t *testing.T, model Model) Model {
	t.Helper()
	select {
	case state := <-model.updates:
		next, _ := model.Update(stateMsg(state))
		return next.(Model)
	default:
		return model
	}
}

func enter(t *testing.T, model Model, line string) (Model, tea.Cmd) {
	t.Helper()
	model.input.SetValue(line)
	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_RendersStateChanges(t *testing.T) {
	model, store, _ := newTestModel(t)

	if view := model.View(); !strings.Contains(view, "nobody online") || !strings.Contains(view, "no messages yet") {
		t.Errorf("unexpected initial view:\n%s", view)
	}

	store.ApplyInbound([]byte(`{"messageType":"users","dataArray":["alice","bob"],"data":null}`))
	store.ApplyInbound([]byte(bobHi))
	model = pump(t, model)

	view := model.View()
	for _, want := range []string{"you are alice", "online (2)", "#0 ", "bob: hi"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_UpdatesKeepLatestOnly(t *testing.T) {
	model, store, _ := newTestModel(t)

	store.ApplyInbound([]byte(bobHi))
	store.ApplyInbound([]byte(bobHi))
	store.ApplyInbound([]byte(`{"messageType":"bogus"}`))

	if len(model.updates) != 1 {
		t.Fatalf("pending updates = %d, want 1", len(model.updates))
	}
	model = pump(t, model)
	if n := len(model.state.Messages); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}
}

func TestModel_Submit(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantSent  int
		wantQuit  bool
		wantState string
	}{
		{"message", "hello", 1, false, ""},
		{"blank", "   ", 0, false, ""},
		{"slash text is a message", "/shrug", 1, false, ""},
		{"quit", "/quit", 0, true, ""},
		{"react usage", "/react 0", 0, false, "usage"},
		{"react bad index", "/react x 👍", 0, false, "bad message number"},
		{"react stale index", "/react 3 👍", 0, false, "no message #3"},
		{"react bad palette", "/react 0 9", 0, false, "palette has 6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, store, sender := newTestModel(t)
			store.ApplyInbound([]byte(bobHi))
			model = pump(t, model)
			before := sender.count()

			model, cmd := enter(t, model, tt.line)

			if got := sender.count() - before; got != tt.wantSent {
				t.Errorf("frames sent = %d, want %d", got, tt.wantSent)
			}
			if model.input.Value() != "" {
				t.Errorf("input = %q, want cleared", model.input.Value())
			}
			if tt.wantQuit {
				if cmd == nil {
					t.Fatal("expected quit command")
				}
				if _, ok := cmd().(tea.QuitMsg); !ok {
					t.Error("expected tea.QuitMsg")
				}
			}
			if !strings.Contains(model.status, tt.wantState) {
				t.Errorf("status = %q, want it to contain %q", model.status, tt.wantState)
			}
			if tt.wantState == "" && model.status != "" {
				t.Errorf("status = %q, want empty", model.status)
			}
		})
	}
}

func TestModel_SubmitFailureShowsStatus(t *testing.T) {
	sender := &fakeSender{}
	store := session.CreateSession(sender, "alice")
	model := New(store)
	sender.err = errors.New("closed")

	model, _ = enter(t, model, "hello")
	if !strings.Contains(model.status, "not sent") {
		t.Errorf("status = %q", model.status)
	}
	if model.input.Value() != "" {
		t.Error("input should be cleared after a failed send")
	}
}

func TestModel_React(t *testing.T) {
	model, store, _ := newTestModel(t)
	store.ApplyInbound([]byte(bobHi))
	model = pump(t, model)

	model, _ = enter(t, model, "/react 0 1")
	model = pump(t, model)
	if !model.state.Messages[0].Reactions.Has("👍", "alice") {
		t.Fatal("palette reaction not applied")
	}
	if view := model.View(); !strings.Contains(view, "👍 1") {
		t.Errorf("view missing reaction count:\n%s", view)
	}

	model, _ = enter(t, model, "/react 0 🚀")
	model = pump(t, model)
	if got := model.renderReactions(model.state.Messages[0].Reactions); !strings.Contains(got, "🚀 1") {
		t.Errorf("renderReactions = %q", got)
	}

	model, _ = enter(t, model, "/react 0 👍")
	model = pump(t, model)
	if store.Snapshot().Messages[0].Reactions.Count("👍") != 0 {
		t.Error("second toggle should remove the reaction")
	}
}

func TestModel_Ended(t *testing.T) {
	model, _, _ := newTestModel(t)
	cause := errors.New("stream ended")

	next, cmd := model.Update(Ended(cause))
	if !errors.Is(next.(Model).Err(), cause) {
		t.Errorf("Err() = %v, want %v", next.(Model).Err(), cause)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
