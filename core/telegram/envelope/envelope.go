package envelope

import (
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ErrMalformedEvent marks an inbound update that is missing required
// identity fields. The caller drops the event without a reply.
var ErrMalformedEvent = errors.New("envelope: malformed event")

// Content kinds. Text messages carry their declared content type,
// callbacks always map to KindCallback.
const (
	KindText     = "text"
	KindPhoto    = "photo"
	KindCallback = "callback"
)

// Envelope is the normalized form of one inbound event. Built once per
// update, never mutated afterwards.
type Envelope struct {
	UpdateID  int
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	FullName  string
	Kind      string
	Payload   string
	Sent      time.Time

	// Callback references the triggering button event, nil for plain messages.
	Callback *tele.Callback
}

// Parse normalizes a transport update into an Envelope. Updates without
// a resolvable sender yield ErrMalformedEvent and no partial value.
func Parse(upd tele.Update) (Envelope, error) {
	switch {
	case upd.Callback != nil:
		cb := upd.Callback
		if cb.Sender == nil || cb.Message == nil || cb.Message.Chat == nil {
			return Envelope{}, ErrMalformedEvent
		}
		return Envelope{
			UpdateID:  upd.ID,
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.ID,
			UserID:    cb.Sender.ID,
			Username:  cb.Sender.Username,
			FullName:  fullName(cb.Sender),
			Kind:      KindCallback,
			Payload:   cb.Data,
			Sent:      cb.Message.Time(),
			Callback:  cb,
		}, nil

	case upd.Message != nil:
		msg := upd.Message
		if msg.Sender == nil || msg.Chat == nil {
			return Envelope{}, ErrMalformedEvent
		}
		kind := KindText
		if msg.Photo != nil {
			kind = KindPhoto
		}
		payload := msg.Text
		if payload == "" {
			payload = msg.Caption
		}
		return Envelope{
			UpdateID:  upd.ID,
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			UserID:    msg.Sender.ID,
			Username:  msg.Sender.Username,
			FullName:  fullName(msg.Sender),
			Kind:      kind,
			Payload:   payload,
			Sent:      msg.Time(),
		}, nil
	}

	return Envelope{}, ErrMalformedEvent
}

// Command returns the command word (without the leading slash and any
// @botname suffix) when the envelope is command-shaped text, else "".
func (e Envelope) Command() string {
	if e.Kind != KindText || !strings.HasPrefix(e.Payload, "/") {
		return ""
	}
	word := strings.Fields(e.Payload)[0]
	word = strings.TrimPrefix(word, "/")
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	return strings.ToLower(word)
}

// SenderName returns the best display name available for the sender.
func (e Envelope) SenderName() string {
	if e.FullName != "" {
		return e.FullName
	}
	if e.Username != "" {
		return e.Username
	}
	return "there"
}

func fullName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
