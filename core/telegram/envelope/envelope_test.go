package envelope

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseTextMessage(t *testing.T) {
	upd := tele.Update{
		ID: 42,
		Message: &tele.Message{
			ID:       7,
			Text:     "hello",
			Unixtime: 1700000000,
			Sender:   &tele.User{ID: 11, Username: "alice", FirstName: "Alice"},
			Chat:     &tele.Chat{ID: 99},
		},
	}

	env, err := Parse(upd)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.Kind != KindText {
		t.Errorf("Kind = %q, want %q", env.Kind, KindText)
	}
	if env.Payload != "hello" {
		t.Errorf("Payload = %q, want %q", env.Payload, "hello")
	}
	if env.ChatID != 99 || env.UserID != 11 || env.MessageID != 7 || env.UpdateID != 42 {
		t.Errorf("ids = chat %d user %d msg %d upd %d", env.ChatID, env.UserID, env.MessageID, env.UpdateID)
	}
	if env.Callback != nil {
		t.Error("Callback should be nil for plain messages")
	}
}

func TestParsePhotoMessage(t *testing.T) {
	upd := tele.Update{
		Message: &tele.Message{
			Photo:   &tele.Photo{},
			Caption: "look",
			Sender:  &tele.User{ID: 1},
			Chat:    &tele.Chat{ID: 2},
		},
	}

	env, err := Parse(upd)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.Kind != KindPhoto {
		t.Errorf("Kind = %q, want %q", env.Kind, KindPhoto)
	}
	if env.Payload != "look" {
		t.Errorf("Payload = %q, want caption", env.Payload)
	}
}

func TestParseCallback(t *testing.T) {
	upd := tele.Update{
		Callback: &tele.Callback{
			Data:   "\fcal|nav;2026-09",
			Sender: &tele.User{ID: 5, Username: "bob"},
			Message: &tele.Message{
				ID:   31,
				Chat: &tele.Chat{ID: 77},
			},
		},
	}

	env, err := Parse(upd)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.Kind != KindCallback {
		t.Errorf("Kind = %q, want %q", env.Kind, KindCallback)
	}
	if env.Payload != "\fcal|nav;2026-09" {
		t.Errorf("Payload = %q, want opaque callback data", env.Payload)
	}
	if env.MessageID != 31 || env.ChatID != 77 || env.UserID != 5 {
		t.Errorf("ids = msg %d chat %d user %d", env.MessageID, env.ChatID, env.UserID)
	}
	if env.Callback == nil {
		t.Error("Callback reference missing")
	}
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]tele.Update{
		"empty update":          {},
		"message without user":  {Message: &tele.Message{Text: "x", Chat: &tele.Chat{ID: 1}}},
		"callback without user": {Callback: &tele.Callback{Message: &tele.Message{Chat: &tele.Chat{ID: 1}}}},
		"callback without msg":  {Callback: &tele.Callback{Sender: &tele.User{ID: 1}}},
	}

	for name, upd := range cases {
		env, err := Parse(upd)
		if !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("%s: err = %v, want ErrMalformedEvent", name, err)
		}
		if env != (Envelope{}) {
			t.Errorf("%s: partial envelope produced: %+v", name, env)
		}
	}
}

func TestCommand(t *testing.T) {
	cases := []struct {
		kind, payload, want string
	}{
		{KindText, "/book", "book"},
		{KindText, "/Book", "book"},
		{KindText, "/reset_email@roombot extra", "reset_email"},
		{KindText, "book", ""},
		{KindText, "", ""},
		{KindCallback, "/book", ""},
	}
	for _, tc := range cases {
		env := Envelope{Kind: tc.kind, Payload: tc.payload}
		if got := env.Command(); got != tc.want {
			t.Errorf("Command(%q %q) = %q, want %q", tc.kind, tc.payload, got, tc.want)
		}
	}
}

func TestSenderName(t *testing.T) {
	if got := (Envelope{FullName: "Alice Tan", Username: "alice"}).SenderName(); got != "Alice Tan" {
		t.Errorf("SenderName = %q", got)
	}
	if got := (Envelope{Username: "alice"}).SenderName(); got != "alice" {
		t.Errorf("SenderName = %q", got)
	}
	if got := (Envelope{}).SenderName(); got != "there" {
		t.Errorf("SenderName = %q", got)
	}
}
