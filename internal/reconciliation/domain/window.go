package reconciliation

import (
	"errors"
	"time"
)

// ErrWindowUnresolved reports that no open/close boundary could be determined.
var ErrWindowUnresolved = errors.New("reconciliation: no determinable window")

// BoundaryKind distinguishes the two session boundaries.
type BoundaryKind string

const (
	BoundaryOpen  BoundaryKind = "open"
	BoundaryClose BoundaryKind = "close"
)

// Event is one recorded session boundary.
type Event struct {
	At   time.Time
	Kind BoundaryKind
}

// ResolveMode selects whether a still-open session may be resolved against now.
type ResolveMode int

const (
	// ModeFinal requires a recorded close event.
	ModeFinal ResolveMode = iota
	// ModeLive uses now as the close boundary when no close event exists yet.
	ModeLive
)

func (m ResolveMode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "final"
}

// Window is the resolved time range of the session to reconcile.
type Window struct {
	Open      time.Time
	Close     time.Time
	PrevClose *time.Time
	// Live is set when Close is the resolution time rather than a recorded close.
	Live bool
}

// FrozenOpen is the boundary used for the opening meter value: the previous
// session's close when known, otherwise the open time.
func (w Window) FrozenOpen() time.Time {
	if w.PrevClose != nil {
		return *w.PrevClose
	}
	return w.Open
}

// EventDays returns the operating days whose events feed the resolver for day:
// the day before, the day itself and the day after.
func EventDays(day time.Time) []time.Time {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return []time.Time{day.AddDate(0, 0, -1), day, day.AddDate(0, 0, 1)}
}

// ResolveWindow replays boundary events and returns the window of the most
// recently closed session. In ModeLive, when no close was recorded but a
// session has been opened, the window ends at now. It never consults the
// wall clock for anything else.
func ResolveWindow(events []Event, now time.Time, mode ResolveMode) (Window, error) {
	var (
		lastClose *time.Time
		sawOpen   bool
	)
	for i := range events {
		switch events[i].Kind {
		case BoundaryClose:
			if lastClose == nil || events[i].At.After(*lastClose) {
				at := events[i].At
				lastClose = &at
			}
		case BoundaryOpen:
			sawOpen = true
		}
	}

	var window Window
	switch {
	case lastClose != nil:
		window.Close = lastClose.UTC()
	case sawOpen && mode == ModeLive:
		window.Close = now.UTC()
		window.Live = true
	default:
		return Window{}, ErrWindowUnresolved
	}

	var open *time.Time
	for i := range events {
		if events[i].Kind != BoundaryOpen || events[i].At.After(window.Close) {
			continue
		}
		if open == nil || events[i].At.After(*open) {
			at := events[i].At
			open = &at
		}
	}
	if open == nil {
		return Window{}, ErrWindowUnresolved
	}
	window.Open = open.UTC()
	if window.Open.After(window.Close) {
		return Window{}, ErrWindowUnresolved
	}

	for i := range events {
		if events[i].Kind != BoundaryClose || !events[i].At.Before(window.Open) {
			continue
		}
		if window.PrevClose == nil || events[i].At.After(*window.PrevClose) {
			at := events[i].At.UTC()
			window.PrevClose = &at
		}
	}
	return window, nil
}
