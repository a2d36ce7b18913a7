package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tartampluch/onefam/internal/config"
)

// Records is the read side of the record store the engine depends on.
// An unknown family is not an error: it simply yields no records.
type Records interface {
	ListPeople(ctx context.Context, familyID string) ([]Person, error)
	ListEvents(ctx context.Context, familyID string) ([]CustomEvent, error)
}

// Notifier hands a rendered message to the notification transport.
// Queue must not block on delivery; the outcome never reaches the caller.
type Notifier interface {
	Queue(ctx context.Context, to, subject, htmlBody string)
}

// Translator supplies localized user-facing strings.
type Translator interface {
	Localize(key string, data map[string]any) string
}

// Engine turns stored seed dates into concrete occurrences for the alert
// feed, the calendar listing, the tomorrow digest and the iCalendar feed.
// It holds no mutable state; every call reads the records afresh.
type Engine struct {
	Records  Records
	Clock    Clock
	Notifier Notifier
	Messages Translator

	// ReminderTrigger is an ISO8601 duration added as VALARM to feed events.
	ReminderTrigger string
}

// New creates an Engine using the real clock.
func New(records Records, notifier Notifier, messages Translator) *Engine {
	return &Engine{
		Records:  records,
		Clock:    RealClock{},
		Notifier: notifier,
		Messages: messages,
	}
}

// Alerts lists the occurrences whose distance from today lies within
// [0, windowDays], ordered by days-until. Equal distances keep the order in
// which members, then events, were read.
func (e *Engine) Alerts(ctx context.Context, familyID string, windowDays int) ([]Alert, error) {
	people, events, err := e.load(ctx, familyID)
	if err != nil {
		return nil, err
	}

	now := today(e.Clock)
	alerts := make([]Alert, 0)

	for _, p := range people {
		name := p.Name()
		if when, days, ok := upcoming(seedOf(p.Birthday), true, now, windowDays); ok {
			alerts = append(alerts, Alert{
				Type:       config.KindBirthday,
				Title:      birthdayTitle(name),
				Date:       when.Format(config.DateFormatSeed),
				MemberName: &name,
				DaysUntil:  days,
			})
		}
		if when, days, ok := upcoming(seedOf(p.Anniversary), true, now, windowDays); ok {
			alerts = append(alerts, Alert{
				Type:       config.KindAnniversary,
				Title:      anniversaryTitle(name),
				Date:       when.Format(config.DateFormatSeed),
				MemberName: &name,
				DaysUntil:  days,
			})
		}
	}

	for _, ev := range events {
		if when, days, ok := upcoming(ev.EventDate, ev.Recurring, now, windowDays); ok {
			alerts = append(alerts, Alert{
				Type:      config.KindCustom,
				Title:     ev.EventName,
				Date:      when.Format(config.DateFormatSeed),
				DaysUntil: days,
			})
		}
	}

	slices.SortStableFunc(alerts, func(a, b Alert) int {
		return cmp.Compare(a.DaysUntil, b.DaysUntil)
	})

	slog.DebugContext(ctx, config.MsgAlertsComputed,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyGroup, familyID,
		config.LogKeyWindow, windowDays,
		config.LogKeyCount, len(alerts),
	)
	return alerts, nil
}

// Calendar lists every seed whose literal stored date matches month and
// year (0 = any), sorted by date string.
func (e *Engine) Calendar(ctx context.Context, familyID string, month, year int) ([]CalendarEntry, error) {
	people, events, err := e.load(ctx, familyID)
	if err != nil {
		return nil, err
	}

	entries := make([]CalendarEntry, 0)

	for _, p := range people {
		name := p.Name()
		if seed := seedOf(p.Birthday); MatchesCycle(seed, month, year) {
			entries = append(entries, CalendarEntry{
				Type:       config.KindBirthday,
				Title:      birthdayTitle(name),
				Date:       seed,
				MemberID:   p.ID,
				MemberName: name,
			})
		}
		if seed := seedOf(p.Anniversary); MatchesCycle(seed, month, year) {
			entries = append(entries, CalendarEntry{
				Type:       config.KindAnniversary,
				Title:      anniversaryTitle(name),
				Date:       seed,
				MemberID:   p.ID,
				MemberName: name,
			})
		}
	}

	for _, ev := range events {
		if MatchesCycle(ev.EventDate, month, year) {
			entries = append(entries, CalendarEntry{
				Type:    config.KindCustom,
				Title:   ev.EventName,
				Date:    ev.EventDate,
				EventID: ev.ID,
			})
		}
	}

	slices.SortStableFunc(entries, func(a, b CalendarEntry) int {
		return strings.Compare(a.Date, b.Date)
	})

	slog.DebugContext(ctx, config.MsgCalendarBuilt,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyGroup, familyID,
		config.LogKeyMonth, month,
		config.LogKeyYear, year,
		config.LogKeyCount, len(entries),
	)
	return entries, nil
}

// load reads both record kinds for a family.
func (e *Engine) load(ctx context.Context, familyID string) ([]Person, []CustomEvent, error) {
	people, err := e.Records.ListPeople(ctx, familyID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", config.ErrListPeople, err)
	}
	events, err := e.Records.ListEvents(ctx, familyID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", config.ErrListEvents, err)
	}
	return people, events, nil
}

// upcoming resolves seed against now and applies the closed window.
// Recurring seeds roll forward to the next yearly occurrence; one-off seeds
// are taken literally.
func upcoming(seed string, recurring bool, now time.Time, windowDays int) (time.Time, int, bool) {
	var when time.Time
	var ok bool
	if recurring {
		when, ok = Resolve(seed, now)
	} else {
		when, ok = ParseSeed(seed)
	}
	if !ok {
		return time.Time{}, 0, false
	}

	days := DaysBetween(now, when)
	if days < 0 || days > windowDays {
		return time.Time{}, 0, false
	}
	return when, days, true
}
