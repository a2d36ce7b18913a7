package engine

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/tartampluch/onefam/internal/config"
)

var digestTemplate = template.Must(template.New("digest").Parse(
	`<html><body><h2>{{.Heading}}</h2><p>{{.Intro}}</p><ul>` +
		`{{range .Items}}<li><strong>{{.Kind}}</strong>: {{.Name}} {{$.On}} {{.Date}}</li>{{end}}` +
		`</ul><p>{{.Closing}}</p></body></html>`))

type digestLine struct {
	Kind string
	Name string
	Date string
}

type digestView struct {
	Heading string
	Intro   string
	On      string
	Closing string
	Items   []digestLine
}

// Digest collects the occurrences happening exactly tomorrow (UTC) and
// renders the notification mail for them.
//
// Yearly seeds are placed in tomorrow's year, so a Jan-1 birthday is found on
// Dec-31. One-off custom events match only on their literal date.
func (e *Engine) Digest(ctx context.Context, familyID string) (Digest, error) {
	people, events, err := e.load(ctx, familyID)
	if err != nil {
		return Digest{}, err
	}

	tomorrow := today(e.Clock).AddDate(0, 0, 1)
	items := make([]DigestItem, 0)

	for _, p := range people {
		name := p.Name()
		if onDay(seedOf(p.Birthday), true, tomorrow) {
			items = append(items, DigestItem{Kind: config.KindBirthday, Name: name, Date: tomorrow})
		}
		if onDay(seedOf(p.Anniversary), true, tomorrow) {
			items = append(items, DigestItem{Kind: config.KindAnniversary, Name: name, Date: tomorrow})
		}
	}
	for _, ev := range events {
		if onDay(ev.EventDate, ev.Recurring, tomorrow) {
			items = append(items, DigestItem{Kind: config.KindCustom, Name: ev.EventName, Date: tomorrow})
		}
	}

	d := Digest{Count: len(items), Items: items}
	if d.Count == 0 {
		return d, nil
	}

	d.Subject = e.msg(config.TKeyDigestSubject, config.FallbackDigestSubject)
	d.HTML, err = e.renderDigest(items)
	if err != nil {
		return Digest{}, err
	}

	slog.DebugContext(ctx, config.MsgDigestComposed,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyGroup, familyID,
		config.LogKeyCount, d.Count,
	)
	return d, nil
}

// SendDigest composes tomorrow's digest and, when it is not empty, queues it
// for delivery to the given address. It reports what was queued, never
// whether delivery succeeded.
func (e *Engine) SendDigest(ctx context.Context, familyID, to string) (string, error) {
	d, err := e.Digest(ctx, familyID)
	if err != nil {
		return "", err
	}

	if d.Count == 0 {
		slog.InfoContext(ctx, config.MsgDigestSkipped,
			config.LogKeyComponent, config.CompEngine,
			config.LogKeyGroup, familyID,
		)
		return config.MsgDigestNone, nil
	}

	// The send outlives the request that triggered it.
	e.Notifier.Queue(context.WithoutCancel(ctx), to, d.Subject, d.HTML)

	slog.InfoContext(ctx, config.MsgDigestDispatch,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyGroup, familyID,
		config.LogKeyCount, d.Count,
	)
	return fmt.Sprintf(config.MsgDigestQueued, d.Count), nil
}

func (e *Engine) renderDigest(items []DigestItem) (string, error) {
	layout := e.msg(config.TKeyDigestDateLayout, config.FallbackDigestDateLayout)

	view := digestView{
		Heading: e.msg(config.TKeyDigestHeading, config.FallbackDigestHeading),
		Intro:   e.msg(config.TKeyDigestIntro, config.FallbackDigestIntro),
		On:      e.msg(config.TKeyDigestOn, config.FallbackDigestOn),
		Closing: e.msg(config.TKeyDigestClosing, config.FallbackDigestClosing),
	}
	for _, it := range items {
		view.Items = append(view.Items, digestLine{
			Kind: e.kindLabel(it.Kind),
			Name: it.Name,
			Date: it.Date.Format(layout),
		})
	}

	var sb strings.Builder
	if err := digestTemplate.Execute(&sb, view); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrDigestRender, err)
	}
	return sb.String(), nil
}

func (e *Engine) kindLabel(kind string) string {
	switch kind {
	case config.KindBirthday:
		return e.msg(config.TKeyKindBirthday, config.FallbackKindBirthday)
	case config.KindAnniversary:
		return e.msg(config.TKeyKindAnniversary, config.FallbackKindAnniversary)
	default:
		return e.msg(config.TKeyKindCustom, config.FallbackKindCustom)
	}
}

// msg localizes key, falling back to the English text when no translator is
// wired or the key is missing.
func (e *Engine) msg(key, fallback string) string {
	if e.Messages == nil {
		return fallback
	}
	s := e.Messages.Localize(key, nil)
	if s == "" || s == key {
		return fallback
	}
	return s
}

// onDay reports whether seed occurs exactly on day.
func onDay(seed string, recurring bool, day time.Time) bool {
	var when time.Time
	var ok bool
	if recurring {
		when, ok = ResolveInYear(seed, day.Year())
	} else {
		when, ok = ParseSeed(seed)
	}
	return ok && when.Equal(day)
}
