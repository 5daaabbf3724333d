package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildRendersSelectableGrid(t *testing.T) {
	c := New(date(2026, time.September, 10))
	markup, label := c.Build()

	if label != "day" {
		t.Errorf("label = %q, want day", label)
	}
	if markup == nil || len(markup.InlineKeyboard) < 4 {
		t.Fatalf("markup too small: %v", markup)
	}

	var selectable, cancel int
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.Unique != Key {
				t.Fatalf("foreign callback unique %q", btn.Unique)
			}
			switch {
			case btn.Data == opCancel:
				cancel++
			case len(btn.Data) > 4 && btn.Data[:4] == opDay+";":
				selectable++
			}
		}
	}
	// September 2026 from the 10th leaves 21 selectable days.
	if selectable != 21 {
		t.Errorf("selectable days = %d, want 21", selectable)
	}
	if cancel != 1 {
		t.Errorf("cancel buttons = %d, want 1", cancel)
	}
}

func TestProcessDaySelection(t *testing.T) {
	c := New(date(2026, time.September, 10))

	sel := c.Process("day;2026-09-15")
	if !sel.Picked() || !sel.Date.Equal(date(2026, time.September, 15)) {
		t.Errorf("selection = %+v, want 2026-09-15", sel)
	}
	if sel.Markup != nil || sel.Cancelled {
		t.Error("picked date must carry neither markup nor cancel")
	}
}

func TestProcessRejectsEarlyDate(t *testing.T) {
	c := New(date(2026, time.September, 10))
	if sel := c.Process("day;2026-09-01"); sel.Picked() {
		t.Errorf("date before MinDate accepted: %+v", sel)
	}
}

func TestProcessNavigation(t *testing.T) {
	c := New(date(2026, time.September, 10))

	sel := c.Process("nav;2026-10")
	if sel.Picked() || sel.Cancelled {
		t.Fatalf("navigation misread: %+v", sel)
	}
	if sel.Markup == nil {
		t.Fatal("navigation must produce a replacement markup")
	}

	// Navigating fully before MinDate clamps back to the current month.
	sel = c.Process("nav;2026-08")
	if sel.Markup == nil {
		t.Fatal("clamped navigation must still render")
	}
	if got := sel.Markup.InlineKeyboard[0][1]; got.Text != "Sep 2026" {
		t.Errorf("clamped header = %q, want Sep 2026", got.Text)
	}
}

func TestProcessCancelAndNoop(t *testing.T) {
	c := New(date(2026, time.September, 10))

	if sel := c.Process("cancel"); !sel.Cancelled {
		t.Errorf("cancel not recognized: %+v", sel)
	}
	for _, payload := range []string{"noop", "", "garbage", "day;nonsense", "nav;x"} {
		sel := c.Process(payload)
		if sel.Picked() || sel.Cancelled || sel.Markup != nil {
			t.Errorf("payload %q should be inert, got %+v", payload, sel)
		}
	}
}

func TestMatch(t *testing.T) {
	if p, ok := Match("\fcal|day;2026-09-15"); !ok || p != "day;2026-09-15" {
		t.Errorf("Match = %q %v", p, ok)
	}
	if _, ok := Match("\fother|x"); ok {
		t.Error("foreign key matched")
	}
}
