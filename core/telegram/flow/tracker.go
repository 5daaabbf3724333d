package flow

import (
	"context"
	"log/slog"

	"bookingbot/core/logger"
	"bookingbot/core/metrics"
)

// DefaultExpiredText is the marker written over invalidated messages.
const DefaultExpiredText = "_Expired Message_"

// Tracker owns the transient-message lifecycle of one session: which
// outbound messages were sent during the current and previous step, and
// which of them must be invalidated when the conversation moves on.
type Tracker struct {
	transport   Transport
	expiredText string

	lastSent      []Sent
	currentSent   []Sent
	pendingExpire []Sent
	currentExpire []Sent
}

// NewTracker builds a tracker that invalidates through the given
// transport. expiredText falls back to DefaultExpiredText when empty.
func NewTracker(transport Transport, expiredText string) *Tracker {
	if expiredText == "" {
		expiredText = DefaultExpiredText
	}
	return &Tracker{transport: transport, expiredText: expiredText}
}

// Record registers a message sent during the current step. Expirable
// messages become candidates for invalidation at the next step boundary.
func (t *Tracker) Record(sent Sent, expirable bool) {
	t.currentSent = append(t.currentSent, sent)
	if expirable {
		t.currentExpire = append(t.currentExpire, sent)
	}
}

// Advance crosses a step boundary. With expireAll, every pending
// expirable message from before this step is invalidated and the pending
// set becomes this step's expirable messages; otherwise the pending set
// carries forward and this step's messages are appended to it.
func (t *Tracker) Advance(ctx context.Context, expireAll bool) {
	if expireAll {
		t.expirePending(ctx)
	}
	t.pendingExpire = append(t.pendingExpire, t.currentExpire...)
	t.currentExpire = nil

	t.lastSent = t.currentSent
	t.currentSent = nil
}

// Clear drops the pending expirable set without editing anything. Used
// when a widget finalized its own message and invalidation would
// overwrite it.
func (t *Tracker) Clear() {
	t.pendingExpire = nil
}

// LastSent returns the messages sent during the previous step, in send
// order.
func (t *Tracker) LastSent() []Sent {
	return t.lastSent
}

// Pending returns the number of messages currently awaiting expiry.
func (t *Tracker) Pending() int {
	return len(t.pendingExpire)
}

// expirePending rewrites every pending message to the expired marker and
// strips its keyboard. Edit failures (message deleted by the user) are
// logged and swallowed.
func (t *Tracker) expirePending(ctx context.Context) {
	for _, ref := range t.pendingExpire {
		if err := t.transport.Edit(ctx, ref, t.expiredText, nil); err != nil {
			logger.Warn(ctx, "flow", "expire.edit.fail",
				slog.Int64("chat_id", ref.ChatID),
				slog.Int("message_id", ref.MessageID),
				slog.String("err", err.Error()),
			)
			continue
		}
		metrics.IncExpired(1)
	}
	t.pendingExpire = nil
}
