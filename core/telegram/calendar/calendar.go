package calendar

import (
	"fmt"
	"strings"
	"time"

	"bookingbot/core/telegram/callbacks"
	"bookingbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Key is the callback unique under which every calendar button reports.
const Key = "cal"

// Payload verbs inside a calendar callback.
const (
	opDay    = "day"
	opNav    = "nav"
	opCancel = "cancel"
	opNoop   = "noop"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Selection is the outcome of processing one calendar callback. Exactly
// one of the three outcomes is meaningful: a picked date, a replacement
// markup (month navigation), or cancellation. The zero Selection means
// the tap was inert and the widget should stay as it is.
type Selection struct {
	Date      time.Time
	Markup    *tele.ReplyMarkup
	Cancelled bool
}

// Picked reports whether a date was selected.
func (s Selection) Picked() bool { return !s.Date.IsZero() }

// Calendar renders an inline month keyboard and interprets its
// callbacks. Dates before MinDate are not selectable.
type Calendar struct {
	MinDate time.Time
}

// New clamps minDate to midnight and returns a widget over it.
func New(minDate time.Time) *Calendar {
	y, m, d := minDate.Date()
	return &Calendar{MinDate: time.Date(y, m, d, 0, 0, 0, 0, minDate.Location())}
}

// Build renders the month of MinDate and returns the markup plus the
// step label the owning flow should advance to.
func (c *Calendar) Build() (*tele.ReplyMarkup, string) {
	return c.Month(c.MinDate), "day"
}

// Month renders the named month as an inline keyboard.
func (c *Calendar) Month(month time.Time) *tele.ReplyMarkup {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, c.MinDate.Location())
	markup := &tele.ReplyMarkup{}

	noop := markup.Data(" ", Key, opNoop)
	header := []tele.Btn{
		markup.Data("«", Key, opNav+";"+first.AddDate(0, -1, 0).Format(monthLayout)),
		markup.Data(first.Format("Jan 2006"), Key, opNoop),
		markup.Data("»", Key, opNav+";"+first.AddDate(0, 1, 0).Format(monthLayout)),
	}
	if prev := first.AddDate(0, -1, 0); lastOfMonth(prev).Before(c.MinDate) {
		header[0] = noop
	}

	weekdays := make([]tele.Btn, 7)
	for i, wd := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		weekdays[i] = markup.Data(wd, Key, opNoop)
	}

	rows := [][]tele.Btn{header, weekdays}

	// Monday-first grid.
	offset := (int(first.Weekday()) + 6) % 7
	days := lastOfMonth(first).Day()
	week := make([]tele.Btn, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, noop)
	}
	for day := 1; day <= days; day++ {
		date := first.AddDate(0, 0, day-1)
		if date.Before(c.MinDate) {
			week = append(week, noop)
		} else {
			week = append(week, markup.Data(
				fmt.Sprintf("%d", day), Key, opDay+";"+date.Format(dayLayout),
			))
		}
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]tele.Btn, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, noop)
		}
		rows = append(rows, week)
	}

	rows = append(rows, []tele.Btn{markup.Data("Cancel", Key, opCancel)})

	markup.InlineKeyboard = keyboard.ToInlineKeyboard(rows)
	return markup
}

// Match extracts the calendar payload from raw callback data, reporting
// whether the callback belongs to this widget at all.
func Match(data string) (string, bool) {
	key, payload := callbacks.ParseCallbackData(&tele.Callback{Data: data})
	if key != Key {
		return "", false
	}
	return payload, true
}

// Process interprets one calendar payload: a picked date, a month to
// navigate to, a cancellation, or nothing.
func (c *Calendar) Process(payload string) Selection {
	verb, arg, _ := strings.Cut(payload, ";")
	switch verb {
	case opCancel:
		return Selection{Cancelled: true}

	case opNav:
		month, err := time.ParseInLocation(monthLayout, arg, c.MinDate.Location())
		if err != nil {
			return Selection{}
		}
		if lastOfMonth(month).Before(c.MinDate) {
			month = c.MinDate
		}
		return Selection{Markup: c.Month(month)}

	case opDay:
		date, err := time.ParseInLocation(dayLayout, arg, c.MinDate.Location())
		if err != nil || date.Before(c.MinDate) {
			return Selection{}
		}
		return Selection{Date: date}
	}
	return Selection{}
}

func lastOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).
		AddDate(0, 1, -1)
}
