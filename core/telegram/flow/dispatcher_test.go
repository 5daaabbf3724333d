package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookingbot/core/telegram/envelope"
)

func demoFlow(name string, steps map[string]Handler[draft]) *Flow[draft] {
	if steps == nil {
		steps = map[string]Handler[draft]{}
	}
	return &Flow[draft]{
		Name: name,
		Setup: func(ctx context.Context, c *Call[draft]) (Result[draft], error) {
			if _, err := c.Send(ctx, name+" setup", nil, false); err != nil {
				return Result[draft]{}, err
			}
			return Next[draft]("wait"), nil
		},
		Steps: steps,
	}
}

func newTestDispatcher(tr *fakeTransport, decide Decide) *Dispatcher {
	d := NewDispatcher(Options{Transport: tr, Decide: decide})

	waitDone := map[string]Handler[draft]{
		"wait": func(context.Context, *Call[draft]) (Result[draft], error) {
			return Done[draft](), nil
		},
	}
	for _, name := range []string{"book", "reset_email"} {
		f := demoFlow(name, waitDone)
		d.Register(Command{Name: name, New: func() Runner {
			return f.NewSession(tr, "")
		}})
	}
	return d
}

func TestRouteCommandStartsFreshSession(t *testing.T) {
	tr := &fakeTransport{}
	d := newTestDispatcher(tr, nil)
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	r, ok := d.Active(1)
	if !ok {
		t.Fatal("no active session after command")
	}
	if r.Flow() != "book" || r.Step() != "wait" {
		t.Errorf("active = %s/%s, want book/wait", r.Flow(), r.Step())
	}
	if d.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", d.ActiveCount())
	}
}

func TestRouteCommandSupersedesInFlight(t *testing.T) {
	tr := &fakeTransport{}
	d := newTestDispatcher(tr, nil)
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	before, _ := d.Active(1)

	if err := d.Route(ctx, textEnv(1, "/reset_email")); err != nil {
		t.Fatal(err)
	}
	after, ok := d.Active(1)
	if !ok {
		t.Fatal("no active session")
	}
	if after == before {
		t.Fatal("command must construct a fresh session")
	}
	if after.Flow() != "reset_email" {
		t.Errorf("flow = %q, want reset_email", after.Flow())
	}
	if d.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want exactly one per user", d.ActiveCount())
	}
}

func TestRouteForwardsToActiveSessionAndRetires(t *testing.T) {
	tr := &fakeTransport{}
	d := newTestDispatcher(tr, nil)
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if err := d.Route(ctx, textEnv(1, "anything")); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Active(1); ok {
		t.Error("terminal step must remove the session from the registry")
	}
}

func TestRouteUnknownInputRepliesAndLeavesRegistryEmpty(t *testing.T) {
	tr := &fakeTransport{}
	d := newTestDispatcher(tr, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := d.Route(ctx, textEnv(5, "what")); err != nil {
			t.Fatal(err)
		}
		if _, ok := d.Active(5); ok {
			t.Fatal("no session may be registered for unknown input")
		}
	}
	texts := tr.sentTexts()
	if len(texts) != 2 || texts[0] != DefaultUnknownText || texts[1] != DefaultUnknownText {
		t.Errorf("replies = %v, want two unknown replies", texts)
	}
}

func TestRouteUnknownCommandReplies(t *testing.T) {
	tr := &fakeTransport{}
	d := newTestDispatcher(tr, nil)

	if err := d.Route(context.Background(), textEnv(5, "/frobnicate")); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Active(5); ok {
		t.Error("unknown command must leave no session registered")
	}
	if texts := tr.sentTexts(); len(texts) != 1 || texts[0] != DefaultUnknownText {
		t.Errorf("replies = %v", texts)
	}
}

func TestRouteDecideForcesFallbackFlow(t *testing.T) {
	tr := &fakeTransport{}
	decide := func(env envelope.Envelope, active Runner) (string, bool) {
		return "reset_email", true
	}
	d := newTestDispatcher(tr, decide)

	if err := d.Route(context.Background(), textEnv(9, "hello")); err != nil {
		t.Fatal(err)
	}
	r, ok := d.Active(9)
	if !ok || r.Flow() != "reset_email" {
		t.Fatalf("active = %v, want forced reset_email session", r)
	}
}

func TestRouteHandlerFaultRepliesGenericAndRetires(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDispatcher(Options{Transport: tr})
	f := &Flow[draft]{
		Name: "broken",
		Setup: func(context.Context, *Call[draft]) (Result[draft], error) {
			return Result[draft]{}, errors.New("boom")
		},
	}
	d.Register(Command{Name: "broken", New: func() Runner { return f.NewSession(tr, "") }})

	err := d.Route(context.Background(), textEnv(3, "/broken"))
	if err == nil {
		t.Fatal("expected error surfaced to caller")
	}
	if _, ok := d.Active(3); ok {
		t.Error("faulted session must be forcibly retired")
	}
	if texts := tr.sentTexts(); len(texts) != 1 || texts[0] != DefaultFaultText {
		t.Errorf("replies = %v, want single generic fault reply", texts)
	}
}

func TestReapIdleRemovesOnlyStaleSessions(t *testing.T) {
	tr := &fakeTransport{}
	d := newTestDispatcher(tr, nil)
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if err := d.Route(ctx, textEnv(2, "/book")); err != nil {
		t.Fatal(err)
	}

	// Age user 1's session artificially.
	r, _ := d.Active(1)
	r.(*Session[draft]).touched = time.Now().Add(-3 * time.Hour)

	if got := d.ReapIdle(ctx, time.Hour); got != 1 {
		t.Fatalf("reaped = %d, want 1", got)
	}
	if _, ok := d.Active(1); ok {
		t.Error("stale session still registered")
	}
	if _, ok := d.Active(2); !ok {
		t.Error("fresh session must survive reaping")
	}
}
