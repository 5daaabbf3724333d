package flow

import (
	"context"
	"sync"

	tele "gopkg.in/telebot.v4"
)

type sentCall struct {
	ChatID int64
	Text   string
	Markup *tele.ReplyMarkup
}

type editCall struct {
	Ref    Sent
	Text   string
	Markup *tele.ReplyMarkup
}

// fakeTransport records outbound traffic and hands out sequential
// message ids.
type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	sends   []sentCall
	edits   []editCall
	sendErr error
	editErr error
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (Sent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return Sent{}, f.sendErr
	}
	f.nextID++
	f.sends = append(f.sends, sentCall{ChatID: chatID, Text: text, Markup: markup})
	return Sent{ChatID: chatID, MessageID: f.nextID, Text: text, Markup: markup}, nil
}

func (f *fakeTransport) Edit(_ context.Context, ref Sent, text string, markup *tele.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, editCall{Ref: ref, Text: text, Markup: markup})
	return nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sends))
	for i, s := range f.sends {
		out[i] = s.Text
	}
	return out
}

func (f *fakeTransport) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}
