package reconciliation

import (
	"errors"
	"testing"
	"time"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return ts
}

func TestResolveWindow_CloseAfterMidnight(t *testing.T) {
	events := []Event{
		{At: at(t, "2025-01-01T23:50:00Z"), Kind: BoundaryOpen},
		{At: at(t, "2025-01-02T00:10:00Z"), Kind: BoundaryClose},
	}
	window, err := ResolveWindow(events, at(t, "2025-01-02T08:00:00Z"), ModeFinal)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !window.Open.Equal(at(t, "2025-01-01T23:50:00Z")) {
		t.Fatalf("open: %s", window.Open)
	}
	if !window.Close.Equal(at(t, "2025-01-02T00:10:00Z")) {
		t.Fatalf("close: %s", window.Close)
	}
	if window.PrevClose != nil {
		t.Fatalf("expected no previous close, got %s", *window.PrevClose)
	}
	if window.Live {
		t.Fatalf("recorded close must not be live")
	}
}

func TestResolveWindow_PreviousClose(t *testing.T) {
	events := []Event{
		{At: at(t, "2025-03-10T22:00:00Z"), Kind: BoundaryClose},
		{At: at(t, "2025-03-10T14:05:00Z"), Kind: BoundaryOpen},
		{At: at(t, "2025-03-10T06:00:00Z"), Kind: BoundaryOpen},
		{At: at(t, "2025-03-10T14:00:00Z"), Kind: BoundaryClose},
	}
	window, err := ResolveWindow(events, time.Time{}, ModeFinal)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !window.Open.Equal(at(t, "2025-03-10T14:05:00Z")) || !window.Close.Equal(at(t, "2025-03-10T22:00:00Z")) {
		t.Fatalf("unexpected window %+v", window)
	}
	if window.PrevClose == nil || !window.PrevClose.Equal(at(t, "2025-03-10T14:00:00Z")) {
		t.Fatalf("unexpected prev close %v", window.PrevClose)
	}
	if !window.FrozenOpen().Equal(at(t, "2025-03-10T14:00:00Z")) {
		t.Fatalf("frozen open should be the previous close, got %s", window.FrozenOpen())
	}
}

func TestResolveWindow_PrevCloseIsStrictlyBeforeOpen(t *testing.T) {
	events := []Event{
		{At: at(t, "2025-03-10T06:00:00Z"), Kind: BoundaryOpen},
		{At: at(t, "2025-03-10T14:00:00Z"), Kind: BoundaryClose},
		{At: at(t, "2025-03-10T14:00:00Z"), Kind: BoundaryOpen},
		{At: at(t, "2025-03-10T22:00:00Z"), Kind: BoundaryClose},
	}
	window, err := ResolveWindow(events, time.Time{}, ModeFinal)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if window.PrevClose != nil {
		t.Fatalf("close at the open instant must not be a previous close, got %s", *window.PrevClose)
	}
	if !window.FrozenOpen().Equal(window.Open) {
		t.Fatalf("frozen open should fall back to open")
	}
}

func TestResolveWindow_Unresolved(t *testing.T) {
	now := at(t, "2025-03-10T12:00:00Z")
	cases := []struct {
		name   string
		events []Event
		mode   ResolveMode
	}{
		{name: "no events", mode: ModeLive},
		{name: "open only final", events: []Event{{At: at(t, "2025-03-10T06:00:00Z"), Kind: BoundaryOpen}}, mode: ModeFinal},
		{name: "close without open", events: []Event{{At: at(t, "2025-03-10T06:00:00Z"), Kind: BoundaryClose}}, mode: ModeFinal},
		{
			name: "open after every close",
			events: []Event{
				{At: at(t, "2025-03-10T06:00:00Z"), Kind: BoundaryClose},
				{At: at(t, "2025-03-10T07:00:00Z"), Kind: BoundaryOpen},
			},
			mode: ModeFinal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveWindow(tc.events, now, tc.mode)
			if !errors.Is(err, ErrWindowUnresolved) {
				t.Fatalf("expected ErrWindowUnresolved, got %v", err)
			}
		})
	}
}

func TestResolveWindow_LivePreview(t *testing.T) {
	now := at(t, "2025-03-10T12:00:00Z")
	events := []Event{{At: at(t, "2025-03-10T06:00:00Z"), Kind: BoundaryOpen}}
	window, err := ResolveWindow(events, now, ModeLive)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !window.Live || !window.Close.Equal(now) {
		t.Fatalf("expected live window closing at now, got %+v", window)
	}
	if !window.Open.Equal(at(t, "2025-03-10T06:00:00Z")) {
		t.Fatalf("open: %s", window.Open)
	}
}

func TestResolveWindow_LiveModeUsesRecordedClose(t *testing.T) {
	events := []Event{
		{At: at(t, "2025-03-10T06:00:00Z"), Kind: BoundaryOpen},
		{At: at(t, "2025-03-10T14:00:00Z"), Kind: BoundaryClose},
		{At: at(t, "2025-03-10T14:05:00Z"), Kind: BoundaryOpen},
	}
	window, err := ResolveWindow(events, at(t, "2025-03-10T18:00:00Z"), ModeLive)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if window.Live || !window.Close.Equal(at(t, "2025-03-10T14:00:00Z")) {
		t.Fatalf("expected the recorded close, got %+v", window)
	}
}

func TestEventDays(t *testing.T) {
	days := EventDays(at(t, "2025-03-01T15:30:00Z"))
	want := []string{"2025-02-28", "2025-03-01", "2025-03-02"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, day := range days {
		if got := day.Format("2006-01-02"); got != want[i] {
			t.Fatalf("day %d: expected %s, got %s", i, want[i], got)
		}
	}
}
