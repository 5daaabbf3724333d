package flows

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookingbot/bot/storage"
	"bookingbot/core/telegram/calendar"
	"bookingbot/core/telegram/envelope"
	"bookingbot/core/telegram/flow"
)

// FlowBooking is the room booking flow behind /book.
const FlowBooking = "book"

// StepSetDate waits for a calendar interaction.
const StepSetDate = "set_date"

const selectDateText = "Select booking date:"

type bookingResult = flow.Result[*storage.Booking]

// NewBookingFlow builds the booking conversation: create a draft
// attached to the user, render a calendar, accept only calendar
// callbacks until a date is picked. The minDate clock is injectable for
// tests; nil means time.Now.
func NewBookingFlow(bookings storage.BookingStore, minDate func() time.Time) *flow.Flow[*storage.Booking] {
	if minDate == nil {
		minDate = time.Now
	}

	return &flow.Flow[*storage.Booking]{
		Name: FlowBooking,
		Setup: func(ctx context.Context, c *flow.Call[*storage.Booking]) (bookingResult, error) {
			booking, err := bookings.Create(ctx, c.Env.UserID)
			if err != nil {
				return bookingResult{}, flow.StorageFault(err)
			}

			markup, _ := calendar.New(minDate()).Build()
			if _, err := c.Send(ctx, selectDateText, markup, true); err != nil {
				return bookingResult{}, err
			}
			return flow.Next[*storage.Booking](StepSetDate).WithData(booking), nil
		},
		Steps: map[string]flow.Handler[*storage.Booking]{
			StepSetDate: func(ctx context.Context, c *flow.Call[*storage.Booking]) (bookingResult, error) {
				if c.Env.Kind != envelope.KindCallback {
					// The flow only accepts calendar interaction here;
					// replay the widget for anything typed.
					if err := resendWidget(ctx, c, minDate); err != nil {
						return bookingResult{}, err
					}
					return flow.Stay[*storage.Booking](), nil
				}

				payload, ok := calendar.Match(c.Env.Payload)
				if !ok {
					return flow.Stay[*storage.Booking]().KeepPending(), nil
				}

				widget := flow.Sent{ChatID: c.Env.ChatID, MessageID: c.Env.MessageID}
				sel := calendar.New(minDate()).Process(payload)

				switch {
				case sel.Picked():
					text := fmt.Sprintf("Selected %s", sel.Date.Format("2006-01-02"))
					if err := c.Edit(ctx, widget, text, nil); err != nil {
						return bookingResult{}, err
					}
					c.ClearPending()
					if err := bookings.SetDate(ctx, c.Data.Ref, sel.Date); err != nil {
						return bookingResult{}, flow.StorageFault(err)
					}
					c.Data.Date = sql.NullTime{Time: sel.Date, Valid: true}
					return flow.Done[*storage.Booking](), nil

				case sel.Markup != nil:
					if err := c.Edit(ctx, widget, selectDateText, sel.Markup); err != nil {
						return bookingResult{}, err
					}
					return flow.Stay[*storage.Booking]().KeepPending(), nil

				case sel.Cancelled:
					if err := c.Edit(ctx, widget, "Cancelled", nil); err != nil {
						return bookingResult{}, err
					}
					if err := resendWidget(ctx, c, minDate); err != nil {
						return bookingResult{}, err
					}
					return flow.Stay[*storage.Booking](), nil
				}

				return flow.Stay[*storage.Booking]().KeepPending(), nil
			},
		},
		Cleanup: func(ctx context.Context, booking *storage.Booking) {
			// Drafts abandoned before a date was picked are removed.
			if booking == nil || booking.Date.Valid {
				return
			}
			_ = bookings.Delete(ctx, booking.Ref)
		},
	}
}

// resendWidget replays the previous step's calendar message, or builds a
// fresh widget if there is nothing to replay.
func resendWidget(ctx context.Context, c *flow.Call[*storage.Booking], minDate func() time.Time) error {
	if last := c.LastSent(); len(last) > 0 {
		_, err := c.Resend(ctx, last[0], true)
		return err
	}
	markup, _ := calendar.New(minDate()).Build()
	_, err := c.Send(ctx, selectDateText, markup, true)
	return err
}
