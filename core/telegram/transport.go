package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"bookingbot/core/telegram/flow"
	"bookingbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned when the transport is used before Bind.
var ErrNotBound = errors.New("telegram: transport not bound to a bot")

// BotTransport implements flow.Transport over a telebot instance.
// Sends run synchronously because flows need the message reference for
// lifecycle tracking; edits go through the async outbound dispatcher so
// an invalidation never blocks or fails an inbound update.
//
// The bot is late-bound via Bind because routes referencing the
// transport are built before RunTelegram constructs the bot.
type BotTransport struct {
	bot atomic.Pointer[tele.Bot]
	out *sender.Dispatcher
}

// NewBotTransport wires the outbound dispatcher into an unbound
// transport. Bind must be called before the first update arrives.
func NewBotTransport(out *sender.Dispatcher) *BotTransport {
	return &BotTransport{out: out}
}

// Bind attaches the running bot.
func (t *BotTransport) Bind(bot *tele.Bot) {
	t.bot.Store(bot)
}

func (t *BotTransport) Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (flow.Sent, error) {
	bot := t.bot.Load()
	if bot == nil {
		return flow.Sent{}, ErrNotBound
	}
	msg, err := bot.Send(tele.ChatID(chatID), text, sendOptions(markup))
	if err != nil {
		return flow.Sent{}, err
	}
	return flow.Sent{
		ChatID:    chatID,
		MessageID: msg.ID,
		Text:      text,
		Markup:    markup,
	}, nil
}

func (t *BotTransport) Edit(ctx context.Context, ref flow.Sent, text string, markup *tele.ReplyMarkup) error {
	bot := t.bot.Load()
	if bot == nil {
		return ErrNotBound
	}
	target := tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}
	run := func() error {
		_, err := bot.Edit(target, text, sendOptions(markup))
		return err
	}
	if t.out == nil {
		return run()
	}
	return t.out.Enqueue(ctx, "edit", run)
}

func sendOptions(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:   tele.ModeMarkdown,
		ReplyMarkup: markup,
	}
}
