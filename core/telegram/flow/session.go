package flow

import (
	"context"
	"log/slog"
	"time"

	"bookingbot/core/logger"
	"bookingbot/core/metrics"
	"bookingbot/core/telegram/envelope"

	tele "gopkg.in/telebot.v4"
)

// StepSetup is the distinguished entry step of every flow.
const StepSetup = "setup"

// Handler executes one step. It may send messages through the Call and
// must return exactly one Result.
type Handler[T any] func(ctx context.Context, c *Call[T]) (Result[T], error)

// Flow declares a named multi-step conversation: the entry handler, the
// step table, and an optional cleanup that runs before a terminated
// session is disposed.
type Flow[T any] struct {
	Name    string
	Setup   Handler[T]
	Steps   map[string]Handler[T]
	Cleanup func(ctx context.Context, data T)
}

// Runner is the non-generic face of a session, which is what the
// dispatcher stores and drives.
type Runner interface {
	Flow() string
	Step() string
	// Handle routes one envelope through the current step. It reports
	// whether the session terminated; on error the caller must retire
	// the session regardless.
	Handle(ctx context.Context, env envelope.Envelope) (bool, error)
	Cleanup(ctx context.Context)
	Touched() time.Time
}

// Session is one user's live instance of a Flow. Not safe for
// concurrent use; the dispatcher serializes per user.
type Session[T any] struct {
	flow      *Flow[T]
	transport Transport
	tracker   *Tracker
	step      string
	data      T
	touched   time.Time
}

// NewSession starts a session at the setup step.
func (f *Flow[T]) NewSession(transport Transport, expiredText string) *Session[T] {
	return &Session[T]{
		flow:      f,
		transport: transport,
		tracker:   NewTracker(transport, expiredText),
		step:      StepSetup,
		touched:   time.Now(),
	}
}

func (s *Session[T]) Flow() string { return s.flow.Name }

func (s *Session[T]) Step() string { return s.step }

func (s *Session[T]) Touched() time.Time { return s.touched }

// Data returns the accumulated flow data. Exposed for tests.
func (s *Session[T]) Data() T { return s.data }

// Handle runs the current step's handler on the envelope and applies
// the resulting transition: replace-or-keep data, message expiry, step
// move, terminal cleanup.
func (s *Session[T]) Handle(ctx context.Context, env envelope.Envelope) (bool, error) {
	s.touched = time.Now()

	var handler Handler[T]
	if s.step == StepSetup {
		handler = s.flow.Setup
	} else {
		handler = s.flow.Steps[s.step]
	}

	// A stale step name resolves to no handler; treat it as an implicit
	// terminal result rather than leaving the user stuck.
	result := Done[T]()
	if handler != nil {
		call := &Call[T]{Env: env, Data: s.data, session: s}
		var err error
		result, err = handler(ctx, call)
		if err != nil {
			if _, ok := err.(Coded); !ok {
				err = HandlerFault(err)
			}
			return false, err
		}
	} else {
		logger.Warn(ctx, "flow", "step.missing",
			slog.String("flow", s.flow.Name),
			slog.String("step", s.step),
		)
	}

	if result.data != nil {
		s.data = *result.data
	}

	s.tracker.Advance(ctx, result.expireAll)
	metrics.IncStep(s.flow.Name, s.step)

	prev := s.step
	if !result.terminal && result.next != "" {
		s.step = result.next
	}

	logger.Debug(ctx, "flow", "step.done",
		slog.String("flow", s.flow.Name),
		slog.String("step", prev),
		slog.String("next_step", s.step),
		slog.Bool("terminal", result.terminal),
		slog.Int("pending", s.tracker.Pending()),
	)

	if result.terminal {
		s.Cleanup(ctx)
		return true, nil
	}
	return false, nil
}

// Cleanup runs the flow's cleanup callback, if declared.
func (s *Session[T]) Cleanup(ctx context.Context) {
	if s.flow.Cleanup != nil {
		s.flow.Cleanup(ctx, s.data)
	}
}

// Call is the per-invocation view a handler works with: the inbound
// envelope, the current data snapshot, and send helpers that feed the
// tracker.
type Call[T any] struct {
	Env     envelope.Envelope
	Data    T
	session *Session[T]
}

// Send delivers a message to the envelope's chat and records it.
// Expirable messages are invalidated at the next expiring step boundary.
func (c *Call[T]) Send(ctx context.Context, text string, markup *tele.ReplyMarkup, expirable bool) (Sent, error) {
	sent, err := c.session.transport.Send(ctx, c.Env.ChatID, text, markup)
	if err != nil {
		return Sent{}, TransportFault(err)
	}
	c.session.tracker.Record(sent, expirable)
	return sent, nil
}

// Resend replays a previously sent message, text and markup included.
func (c *Call[T]) Resend(ctx context.Context, ref Sent, expirable bool) (Sent, error) {
	sent, err := c.session.transport.Send(ctx, ref.ChatID, ref.Text, ref.Markup)
	if err != nil {
		return Sent{}, TransportFault(err)
	}
	c.session.tracker.Record(sent, expirable)
	return sent, nil
}

// Edit rewrites a previously sent message in place.
func (c *Call[T]) Edit(ctx context.Context, ref Sent, text string, markup *tele.ReplyMarkup) error {
	if err := c.session.transport.Edit(ctx, ref, text, markup); err != nil {
		return TransportFault(err)
	}
	return nil
}

// LastSent returns the messages sent during the previous step.
func (c *Call[T]) LastSent() []Sent {
	return c.session.tracker.LastSent()
}

// ClearPending drops the pending expirable set without invalidating it.
func (c *Call[T]) ClearPending() {
	c.session.tracker.Clear()
}
