package flow

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// Sent identifies an outbound message so later steps can edit or resend it.
// Text and Markup are retained because resending replays both.
type Sent struct {
	ChatID    int64
	MessageID int
	Text      string
	Markup    *tele.ReplyMarkup
}

// Transport is the outbound side of the bot as seen by flows. Send is
// synchronous so the caller gets a Sent reference for lifecycle tracking;
// Edit implementations may complete asynchronously when the result does
// not matter to the flow (message invalidation).
type Transport interface {
	Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (Sent, error)
	Edit(ctx context.Context, ref Sent, text string, markup *tele.ReplyMarkup) error
}
