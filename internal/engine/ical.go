package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/onefam/internal/config"
)

// feedSeed is one seed date to publish, whatever record it came from.
type feedSeed struct {
	key       string // stable identity input for the UID
	kind      string
	title     string
	seed      string
	recurring bool
}

// Feed renders the family's occurrences as an iCalendar document.
//
// Yearly kinds are published for the previous, current and next year so
// calendar clients can scroll without a refresh; no event is created before
// the seed's own year. One-off events are published on their literal date.
func (e *Engine) Feed(ctx context.Context, familyID string) ([]byte, error) {
	people, events, err := e.load(ctx, familyID)
	if err != nil {
		return nil, err
	}

	var seeds []feedSeed
	for _, p := range people {
		name := p.Name()
		seeds = append(seeds,
			feedSeed{key: p.ID + "|" + config.KindBirthday, kind: config.KindBirthday, title: birthdayTitle(name), seed: seedOf(p.Birthday), recurring: true},
			feedSeed{key: p.ID + "|" + config.KindAnniversary, kind: config.KindAnniversary, title: anniversaryTitle(name), seed: seedOf(p.Anniversary), recurring: true},
		)
	}
	for _, ev := range events {
		seeds = append(seeds, feedSeed{key: ev.ID + "|" + config.KindCustom, kind: config.KindCustom, title: ev.EventName, seed: ev.EventDate, recurring: ev.Recurring})
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	setPlainText(cal.Props, config.PropXWRCalName, e.msg(config.TKeyFeedName, config.ICalCalName))
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	// RFC 7986: Suggest a refresh interval
	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	now := e.Clock.Now()
	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, s := range seeds {
		for _, ev := range e.feedEvents(s, today(e.Clock)) {
			ev.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, ev.Component)
		}
	}

	slog.DebugContext(ctx, config.MsgFeedGenerated,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyGroup, familyID,
		config.LogKeyCount, len(cal.Children),
	)

	// An empty VCALENDAR fails encoding; serve the stub so clients still
	// see a valid feed.
	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

// feedEvents expands one seed into its VEVENTs.
func (e *Engine) feedEvents(s feedSeed, now time.Time) []*ical.Event {
	seedDate, ok := ParseSeed(s.seed)
	if !ok {
		return nil
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf(config.FormatHashInput, s.key, s.seed, config.UIDSalt)))
	uidBase := fmt.Sprintf("%x", hash[:config.UIDHashLength])

	if !s.recurring {
		return []*ical.Event{e.newFeedEvent(s, uidBase, seedDate)}
	}

	currentYear := now.Year()
	var events []*ical.Event
	for _, y := range []int{currentYear - 1, currentYear, currentYear + 1} {
		if y < seedDate.Year() {
			continue
		}
		events = append(events, e.newFeedEvent(s, uidBase, anchor(seedDate, y)))
	}
	return events
}

func (e *Engine) newFeedEvent(s feedSeed, uidBase string, day time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, uidBase, day.Year(), config.ICalDomain))
	event.Props.SetText(config.PropSummary, s.title)
	event.Props.SetText(config.PropCategories, s.kind)

	dtStartProp := ical.NewProp(config.PropDTStart)
	dtStartProp.SetDate(day)
	event.Props.Set(dtStartProp)

	if e.ReminderTrigger != "" {
		addAlarm(event, e.ReminderTrigger, s.title)
	}
	return event
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
// setPlainText stores an escaped TEXT value without the VALUE=TEXT parameter
// go-ical adds to properties it has no default type for.
func setPlainText(props ical.Props, name, text string) {
	props.SetText(name, text)
	if p := props.Get(name); p != nil {
		delete(p.Params, ical.ParamValue)
	}
}

func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually to avoid "VALUE=TEXT" param
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}
