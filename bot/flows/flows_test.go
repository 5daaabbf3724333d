package flows

import (
	"context"
	"sync"
	"testing"
	"time"

	"bookingbot/bot/storage"
	"bookingbot/core/telegram/envelope"
	"bookingbot/core/telegram/flow"

	tele "gopkg.in/telebot.v4"
)

type sentCall struct {
	ChatID int64
	Text   string
	Markup *tele.ReplyMarkup
}

type editCall struct {
	MessageID int
	Text      string
	Markup    *tele.ReplyMarkup
}

type fakeTransport struct {
	mu     sync.Mutex
	nextID int
	sends  []sentCall
	edits  []editCall
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (flow.Sent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sends = append(f.sends, sentCall{ChatID: chatID, Text: text, Markup: markup})
	return flow.Sent{ChatID: chatID, MessageID: f.nextID, Text: text, Markup: markup}, nil
}

func (f *fakeTransport) Edit(_ context.Context, ref flow.Sent, text string, markup *tele.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{MessageID: ref.MessageID, Text: text, Markup: markup})
	return nil
}

type memUsers struct {
	users map[int64]storage.User
}

func newMemUsers() *memUsers { return &memUsers{users: make(map[int64]storage.User)} }

func (m *memUsers) Get(_ context.Context, id int64) (*storage.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *memUsers) Save(_ context.Context, user *storage.User) error {
	m.users[user.ID] = *user
	return nil
}

type memBookings struct {
	seq      int
	bookings map[string]*storage.Booking
	deleted  []string
}

func newMemBookings() *memBookings { return &memBookings{bookings: make(map[string]*storage.Booking)} }

func (m *memBookings) Create(_ context.Context, userID int64) (*storage.Booking, error) {
	m.seq++
	b := &storage.Booking{Ref: string(rune('a' + m.seq)), UserID: userID}
	m.bookings[b.Ref] = b
	return b, nil
}

func (m *memBookings) SetDate(_ context.Context, ref string, date time.Time) error {
	b := m.bookings[ref]
	b.Date.Time = date
	b.Date.Valid = true
	return nil
}

func (m *memBookings) Delete(_ context.Context, ref string) error {
	delete(m.bookings, ref)
	m.deleted = append(m.deleted, ref)
	return nil
}

func minDate() time.Time {
	return time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC)
}

func textEnv(userID int64, text string) envelope.Envelope {
	return envelope.Envelope{
		ChatID:   userID,
		UserID:   userID,
		Username: "alice",
		FullName: "Alice Tan",
		Kind:     envelope.KindText,
		Payload:  text,
	}
}

func callbackEnv(userID int64, messageID int, data string) envelope.Envelope {
	return envelope.Envelope{
		ChatID:    userID,
		UserID:    userID,
		MessageID: messageID,
		Kind:      envelope.KindCallback,
		Payload:   data,
	}
}

func newBot(tr *fakeTransport, users *memUsers, bookings *memBookings) *flow.Dispatcher {
	d := flow.NewDispatcher(flow.Options{Transport: tr})

	emailFlow := NewEmailFlow(users, "ntu.edu.sg")
	bookingFlow := NewBookingFlow(bookings, minDate)
	helpFlow := NewHelpFlow()

	d.Register(flow.Command{Name: "start", New: func() flow.Runner { return emailFlow.NewSession(tr, "") }})
	d.Register(flow.Command{Name: FlowEmail, New: func() flow.Runner { return emailFlow.NewSession(tr, "") }})
	d.Register(flow.Command{Name: FlowBooking, New: func() flow.Runner { return bookingFlow.NewSession(tr, "") }})
	d.Register(flow.Command{Name: FlowHelp, New: func() flow.Runner { return helpFlow.NewSession(tr, "") }})
	return d
}

func TestEmailRegistrationScenario(t *testing.T) {
	tr := &fakeTransport{}
	users := newMemUsers()
	d := newBot(tr, users, newMemBookings())
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/reset_email")); err != nil {
		t.Fatal(err)
	}
	if r, _ := d.Active(1); r == nil || r.Step() != StepSetEmail {
		t.Fatalf("active = %v, want session waiting in set_email", r)
	}

	if err := d.Route(ctx, textEnv(1, "not-an-email")); err != nil {
		t.Fatal(err)
	}
	if r, _ := d.Active(1); r == nil || r.Step() != StepSetEmail {
		t.Fatal("invalid email must re-run set_email")
	}

	if err := d.Route(ctx, textEnv(1, " A@NTU.edu.sg ")); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Active(1); ok {
		t.Error("valid email must terminate the session")
	}

	saved, _ := users.Get(ctx, 1)
	if saved == nil || saved.Email != "a@ntu.edu.sg" {
		t.Fatalf("user = %+v, want normalized email persisted", saved)
	}
	if saved.Username != "alice" {
		t.Errorf("username = %q", saved.Username)
	}

	texts := tr.sends
	if len(texts) != 3 {
		t.Fatalf("sends = %d, want greeting, re-prompt, confirmation", len(texts))
	}
}

func TestEmailRejectsForeignDomain(t *testing.T) {
	tr := &fakeTransport{}
	users := newMemUsers()
	d := newBot(tr, users, newMemBookings())
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/start")); err != nil {
		t.Fatal(err)
	}
	if err := d.Route(ctx, textEnv(1, "someone@gmail.com")); err != nil {
		t.Fatal(err)
	}

	if u, _ := users.Get(ctx, 1); u != nil {
		t.Errorf("foreign domain persisted: %+v", u)
	}
	if r, _ := d.Active(1); r == nil || r.Step() != StepSetEmail {
		t.Error("foreign domain must keep the session in set_email")
	}
}

func TestBookingDateSelectionScenario(t *testing.T) {
	tr := &fakeTransport{}
	bookings := newMemBookings()
	d := newBot(tr, newMemUsers(), bookings)
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if len(tr.sends) != 1 || tr.sends[0].Markup == nil {
		t.Fatalf("setup must render the calendar widget, sends = %+v", tr.sends)
	}
	if len(bookings.bookings) != 1 {
		t.Fatalf("draft bookings = %d, want 1 attached at setup", len(bookings.bookings))
	}

	// The widget message id is 1 (first fake send).
	if err := d.Route(ctx, callbackEnv(1, 1, "\fcal|day;2026-09-15")); err != nil {
		t.Fatal(err)
	}

	if _, ok := d.Active(1); ok {
		t.Error("date selection must terminate the session")
	}
	for _, b := range bookings.bookings {
		if !b.Date.Valid || b.Date.Time.Day() != 15 {
			t.Errorf("booking date = %+v, want 2026-09-15", b.Date)
		}
	}
	if len(bookings.deleted) != 0 {
		t.Errorf("completed booking deleted: %v", bookings.deleted)
	}
	if len(tr.edits) != 1 || tr.edits[0].Text != "Selected 2026-09-15" {
		t.Errorf("edits = %+v, want widget finalized in place", tr.edits)
	}
}

func TestBookingNavigationRedrawsWithoutExpiry(t *testing.T) {
	tr := &fakeTransport{}
	d := newBot(tr, newMemUsers(), newMemBookings())
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if err := d.Route(ctx, callbackEnv(1, 1, "\fcal|nav;2026-10")); err != nil {
		t.Fatal(err)
	}

	if r, _ := d.Active(1); r == nil || r.Step() != StepSetDate {
		t.Fatal("navigation must stay in set_date")
	}
	if len(tr.edits) != 1 || tr.edits[0].Markup == nil {
		t.Fatalf("edits = %+v, want in-place redraw with markup", tr.edits)
	}
	if len(tr.sends) != 1 {
		t.Errorf("sends = %d, navigation must not send new messages", len(tr.sends))
	}
}

func TestBookingPlainTextResendsWidget(t *testing.T) {
	tr := &fakeTransport{}
	d := newBot(tr, newMemUsers(), newMemBookings())
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if err := d.Route(ctx, textEnv(1, "tomorrow please")); err != nil {
		t.Fatal(err)
	}

	if len(tr.sends) != 2 {
		t.Fatalf("sends = %d, want the widget replayed", len(tr.sends))
	}
	if tr.sends[1].Text != selectDateText || tr.sends[1].Markup == nil {
		t.Errorf("replayed send = %+v", tr.sends[1])
	}
	// The stale widget is invalidated.
	if len(tr.edits) != 1 || tr.edits[0].Text != flow.DefaultExpiredText {
		t.Errorf("edits = %+v, want old widget expired", tr.edits)
	}
}

func TestBookingCancelResendsWidget(t *testing.T) {
	tr := &fakeTransport{}
	d := newBot(tr, newMemUsers(), newMemBookings())
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if err := d.Route(ctx, callbackEnv(1, 1, "\fcal|cancel")); err != nil {
		t.Fatal(err)
	}

	if r, _ := d.Active(1); r == nil || r.Step() != StepSetDate {
		t.Fatal("cancel must stay in set_date")
	}
	if len(tr.sends) != 2 {
		t.Fatalf("sends = %d, want widget resent after cancel", len(tr.sends))
	}
	if tr.edits[0].Text != "Cancelled" {
		t.Errorf("first edit = %+v, want Cancelled", tr.edits[0])
	}
}

func TestCommandSupersedesBookingWithoutCleanup(t *testing.T) {
	tr := &fakeTransport{}
	bookings := newMemBookings()
	d := newBot(tr, newMemUsers(), bookings)
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if err := d.Route(ctx, textEnv(1, "/reset_email")); err != nil {
		t.Fatal(err)
	}

	r, ok := d.Active(1)
	if !ok || r.Flow() != FlowEmail {
		t.Fatalf("active = %v, want fresh reset_email session", r)
	}
	// Cancel-by-new-command bypasses cleanup: the draft stays behind.
	if len(bookings.deleted) != 0 {
		t.Errorf("superseded booking cleaned up: %v", bookings.deleted)
	}
}

func TestReapDeletesAbandonedDraft(t *testing.T) {
	tr := &fakeTransport{}
	bookings := newMemBookings()
	d := newBot(tr, newMemUsers(), bookings)
	ctx := context.Background()

	if err := d.Route(ctx, textEnv(1, "/book")); err != nil {
		t.Fatal(err)
	}
	if n := d.ReapIdle(ctx, 0); n != 1 {
		t.Fatalf("reaped = %d, want 1", n)
	}
	if len(bookings.deleted) != 1 {
		t.Errorf("deleted = %v, want abandoned draft removed", bookings.deleted)
	}
}

func TestHelpFlowIsTerminal(t *testing.T) {
	tr := &fakeTransport{}
	d := newBot(tr, newMemUsers(), newMemBookings())

	if err := d.Route(context.Background(), textEnv(1, "/help")); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Active(1); ok {
		t.Error("help must terminate immediately")
	}
	if len(tr.sends) != 1 || tr.sends[0].Text != helpText {
		t.Errorf("sends = %+v", tr.sends)
	}
}
