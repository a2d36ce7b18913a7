package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/engine"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockRecords simulates the record store using `testify/mock`.
type MockRecords struct {
	mock.Mock
}

func (m *MockRecords) ListPeople(ctx context.Context, familyID string) ([]engine.Person, error) {
	args := m.Called(ctx, familyID)
	if p := args.Get(0); p != nil {
		return p.([]engine.Person), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRecords) ListEvents(ctx context.Context, familyID string) ([]engine.CustomEvent, error) {
	args := m.Called(ctx, familyID)
	if e := args.Get(0); e != nil {
		return e.([]engine.CustomEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

type sentMail struct {
	to, subject, body string
}

// RecordingNotifier captures queued mails instead of sending them.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *RecordingNotifier) Queue(_ context.Context, to, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to, subject, body})
}

func (n *RecordingNotifier) Sent() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMail(nil), n.sent...)
}

// MapTranslator serves fixed translations.
type MapTranslator map[string]string

func (m MapTranslator) Localize(key string, _ map[string]any) string {
	if s, ok := m[key]; ok {
		return s
	}
	return key
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

const familyID = "fam-1"

func str(s string) *string { return &s }

func person(id, first, last, birthday, anniversary string) engine.Person {
	p := engine.Person{ID: id, FamilyID: familyID, FirstName: first, LastName: last}
	if birthday != "" {
		p.Birthday = str(birthday)
	}
	if anniversary != "" {
		p.Anniversary = str(anniversary)
	}
	return p
}

func event(id, name, date string, recurring bool) engine.CustomEvent {
	return engine.CustomEvent{ID: id, FamilyID: familyID, EventName: name, EventDate: date, Recurring: recurring}
}

func newEngine(t *testing.T, now time.Time, people []engine.Person, events []engine.CustomEvent) (*engine.Engine, *RecordingNotifier) {
	t.Helper()
	records := new(MockRecords)
	records.On("ListPeople", mock.Anything, familyID).Return(people, nil)
	records.On("ListEvents", mock.Anything, familyID).Return(events, nil)

	notifier := &RecordingNotifier{}
	e := engine.New(records, notifier, nil)
	e.Clock = MockClock{CurrentTime: now}
	return e, notifier
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

func TestAlerts_EndToEnd_Rollover(t *testing.T) {
	people := []engine.Person{person("p1", "Ada", "Lovelace", "2000-01-10", "")}

	// Five days before the birthday.
	e, _ := newEngine(t, at(2024, 1, 5), people, nil)
	alerts, err := e.Alerts(context.Background(), familyID, 30)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, config.KindBirthday, alerts[0].Type)
	assert.Equal(t, "Ada Lovelace's Birthday", alerts[0].Title)
	assert.Equal(t, "2024-01-10", alerts[0].Date)
	assert.Equal(t, 5, alerts[0].DaysUntil)
	require.NotNil(t, alerts[0].MemberName)
	assert.Equal(t, "Ada Lovelace", *alerts[0].MemberName)

	// The day after: the next birthday is a year away.
	e, _ = newEngine(t, at(2024, 1, 11), people, nil)
	alerts, err = e.Alerts(context.Background(), familyID, 30)
	require.NoError(t, err)
	assert.Empty(t, alerts, "next year's birthday is outside a 30-day window")

	alerts, err = e.Alerts(context.Background(), familyID, 400)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "2025-01-10", alerts[0].Date)
	assert.Equal(t, 365, alerts[0].DaysUntil, "2024-01-11 to 2025-01-10 spans Feb 29")
}

func TestAlerts_WindowIsInclusive(t *testing.T) {
	people := []engine.Person{
		person("p1", "Today", "Person", "1990-01-01", ""),
		person("p2", "Edge", "Person", "1990-01-31", ""),
		person("p3", "Outside", "Person", "1990-02-01", ""),
	}
	e, _ := newEngine(t, at(2024, 1, 1), people, nil)

	alerts, err := e.Alerts(context.Background(), familyID, 30)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, 0, alerts[0].DaysUntil)
	assert.Equal(t, 30, alerts[1].DaysUntil)
}

func TestAlerts_StableOrdering(t *testing.T) {
	people := []engine.Person{
		person("a", "Alice", "A", "1980-03-10", ""),
		person("b", "Bob", "B", "1982-03-05", ""),
		person("c", "Carol", "C", "", "2005-03-10"),
	}
	events := []engine.CustomEvent{event("e1", "Reunion", "2024-03-05", false)}
	e, _ := newEngine(t, at(2024, 3, 1), people, events)

	alerts, err := e.Alerts(context.Background(), familyID, 30)
	require.NoError(t, err)

	var titles []string
	for i, a := range alerts {
		titles = append(titles, a.Title)
		if i > 0 {
			assert.LessOrEqual(t, alerts[i-1].DaysUntil, a.DaysUntil, "days_until must be non-decreasing")
		}
	}
	assert.Equal(t, []string{
		"Bob B's Birthday",
		"Reunion",
		"Alice A's Birthday",
		"Carol C's Anniversary",
	}, titles, "same-day entries keep insertion order")
}

func TestAlerts_CustomEvents(t *testing.T) {
	events := []engine.CustomEvent{
		event("e1", "Graduation", "2024-06-20", false),
		event("e2", "Last year's party", "2023-06-20", false),
		event("e3", "Family day", "2001-06-25", true),
		event("e4", "Broken", "20-06-2024", false),
	}
	e, _ := newEngine(t, at(2024, 6, 15), nil, events)

	alerts, err := e.Alerts(context.Background(), familyID, 30)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "Graduation", alerts[0].Title)
	assert.Equal(t, config.KindCustom, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].DaysUntil)
	assert.Nil(t, alerts[0].MemberName)

	assert.Equal(t, "Family day", alerts[1].Title)
	assert.Equal(t, "2024-06-25", alerts[1].Date, "recurring events roll to this year")
	assert.Equal(t, 10, alerts[1].DaysUntil)
}

func TestAlerts_MalformedAndMissingSeeds(t *testing.T) {
	people := []engine.Person{
		person("p1", "Bad", "Date", "not-a-date", "also-bad"),
		person("p2", "No", "Dates", "", ""),
		{ID: "p3", FirstName: "Blank", LastName: "Field", Birthday: str("  ")},
	}
	e, _ := newEngine(t, at(2024, 1, 1), people, nil)

	alerts, err := e.Alerts(context.Background(), familyID, 366)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.NotNil(t, alerts, "an empty feed is an empty list, not null")
}

func TestAlerts_AnniversaryAndBirthdayAreIndependent(t *testing.T) {
	people := []engine.Person{person("p1", "Ada", "Lovelace", "not-a-date", "2010-01-03")}
	e, _ := newEngine(t, at(2024, 1, 1), people, nil)

	alerts, err := e.Alerts(context.Background(), familyID, 30)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, config.KindAnniversary, alerts[0].Type)
	assert.Equal(t, "Ada Lovelace's Anniversary", alerts[0].Title)
	assert.Equal(t, 2, alerts[0].DaysUntil)
}

func TestAlerts_StoreError(t *testing.T) {
	records := new(MockRecords)
	storeErr := errors.New("disk on fire")
	records.On("ListPeople", mock.Anything, familyID).Return(nil, storeErr)

	e := engine.New(records, &RecordingNotifier{}, nil)
	_, err := e.Alerts(context.Background(), familyID, 30)

	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), config.ErrListPeople)
	records.AssertNotCalled(t, "ListEvents", mock.Anything, mock.Anything)
}

// -----------------------------------------------------------------------------
// Calendar
// -----------------------------------------------------------------------------

func calendarFixture(t *testing.T) *engine.Engine {
	people := []engine.Person{
		person("a", "Ada", "Lovelace", "1990-03-14", "2015-06-20"),
		person("b", "Bob", "Builder", "1985-03-02", ""),
		person("c", "Broken", "Record", "garbage", ""),
	}
	events := []engine.CustomEvent{
		event("e1", "Graduation", "2024-03-20", false),
		event("e2", "Old trip", "2023-03-01", true),
	}
	e, _ := newEngine(t, at(2024, 1, 1), people, events)
	return e
}

func TestCalendar_Filters(t *testing.T) {
	tests := []struct {
		name  string
		month int
		year  int
		want  []string
	}{
		{"Month only", 3, 0, []string{"1985-03-02", "1990-03-14", "2023-03-01", "2024-03-20"}},
		{"Month and year", 3, 2024, []string{"2024-03-20"}},
		{"Year only", 0, 1990, []string{"1990-03-14"}},
		{"No filters", 0, 0, []string{"1985-03-02", "1990-03-14", "2015-06-20", "2023-03-01", "2024-03-20"}},
		{"Nothing matches", 12, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := calendarFixture(t).Calendar(context.Background(), familyID, tt.month, tt.year)
			require.NoError(t, err)

			var dates []string
			for _, e := range entries {
				dates = append(dates, e.Date)
			}
			assert.Equal(t, tt.want, dates)
		})
	}
}

func TestCalendar_EntryShapes(t *testing.T) {
	entries, err := calendarFixture(t).Calendar(context.Background(), familyID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	bob := entries[0]
	assert.Equal(t, config.KindBirthday, bob.Type)
	assert.Equal(t, "Bob Builder's Birthday", bob.Title)
	assert.Equal(t, "b", bob.MemberID)
	assert.Equal(t, "Bob Builder", bob.MemberName)
	assert.Empty(t, bob.EventID)

	anniv := entries[2]
	assert.Equal(t, config.KindAnniversary, anniv.Type)
	assert.Equal(t, "2015-06-20", anniv.Date, "the literal stored date is displayed")

	grad := entries[4]
	assert.Equal(t, config.KindCustom, grad.Type)
	assert.Equal(t, "e1", grad.EventID)
	assert.Empty(t, grad.MemberID)
	assert.Empty(t, grad.MemberName)
}

// -----------------------------------------------------------------------------
// Digest
// -----------------------------------------------------------------------------

func TestDigest_TomorrowOnly(t *testing.T) {
	people := []engine.Person{person("p1", "Ada", "Lovelace", "1990-03-14", "")}

	e, _ := newEngine(t, at(2024, 3, 13), people, nil)
	d, err := e.Digest(context.Background(), familyID)
	require.NoError(t, err)
	require.Equal(t, 1, d.Count)
	assert.Equal(t, config.KindBirthday, d.Items[0].Kind)
	assert.Equal(t, "Ada Lovelace", d.Items[0].Name)
	assert.Contains(t, d.HTML, "<strong>Birthday</strong>: Ada Lovelace on March 14, 2024")
	assert.Equal(t, config.FallbackDigestSubject, d.Subject)

	e, _ = newEngine(t, at(2024, 3, 14), people, nil)
	d, err = e.Digest(context.Background(), familyID)
	require.NoError(t, err)
	assert.Zero(t, d.Count, "an occurrence today is not in tomorrow's digest")
	assert.Empty(t, d.HTML)
}

func TestDigest_AllKinds(t *testing.T) {
	people := []engine.Person{
		person("p1", "Ada", "Lovelace", "1990-03-14", "2012-03-14"),
		person("p2", "Bob", "Builder", "1990-03-15", ""),
	}
	events := []engine.CustomEvent{
		event("e1", "Graduation", "2024-03-14", false),
		event("e2", "Old graduation", "2023-03-14", false),
		event("e3", "Founders day", "1999-03-14", true),
	}
	e, _ := newEngine(t, at(2024, 3, 13), people, events)

	d, err := e.Digest(context.Background(), familyID)
	require.NoError(t, err)
	require.Equal(t, 4, d.Count)

	kinds := []string{d.Items[0].Kind, d.Items[1].Kind, d.Items[2].Kind, d.Items[3].Kind}
	assert.Equal(t, []string{config.KindBirthday, config.KindAnniversary, config.KindCustom, config.KindCustom}, kinds)
	assert.Equal(t, "Graduation", d.Items[2].Name)
	assert.Equal(t, "Founders day", d.Items[3].Name)
	assert.NotContains(t, d.HTML, "Old graduation", "one-off events only match their literal date")
	assert.Contains(t, d.HTML, "<strong>Event</strong>: Graduation on March 14, 2024")
	assert.Contains(t, d.HTML, "<strong>Anniversary</strong>: Ada Lovelace on March 14, 2024")
}

func TestDigest_YearBoundary(t *testing.T) {
	people := []engine.Person{person("p1", "New", "Year", "1990-01-01", "")}
	e, _ := newEngine(t, at(2024, 12, 31), people, nil)

	d, err := e.Digest(context.Background(), familyID)
	require.NoError(t, err)
	require.Equal(t, 1, d.Count)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), d.Items[0].Date)
	assert.Contains(t, d.HTML, "January 01, 2025")
}

func TestDigest_EscapesNames(t *testing.T) {
	people := []engine.Person{person("p1", "<script>", "Kid", "1990-03-14", "")}
	e, _ := newEngine(t, at(2024, 3, 13), people, nil)

	d, err := e.Digest(context.Background(), familyID)
	require.NoError(t, err)
	assert.NotContains(t, d.HTML, "<script>")
	assert.Contains(t, d.HTML, "&lt;script&gt; Kid")
}

func TestDigest_Localized(t *testing.T) {
	people := []engine.Person{person("p1", "Ada", "Lovelace", "1990-03-14", "")}
	e, _ := newEngine(t, at(2024, 3, 13), people, nil)
	e.Messages = MapTranslator{
		config.TKeyDigestSubject:    "OneFam - Rappel",
		config.TKeyKindBirthday:     "Anniversaire",
		config.TKeyDigestOn:         "le",
		config.TKeyDigestDateLayout: "02/01/2006",
	}

	d, err := e.Digest(context.Background(), familyID)
	require.NoError(t, err)
	assert.Equal(t, "OneFam - Rappel", d.Subject)
	assert.Contains(t, d.HTML, "<strong>Anniversaire</strong>: Ada Lovelace le 14/03/2024")
	assert.Contains(t, d.HTML, config.FallbackDigestHeading, "missing keys fall back to English")
}

func TestSendDigest(t *testing.T) {
	people := []engine.Person{person("p1", "Ada", "Lovelace", "1990-03-14", "")}

	e, notifier := newEngine(t, at(2024, 3, 13), people, nil)
	msg, err := e.SendDigest(context.Background(), familyID, "family@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Email notification queued for 1 event(s)", msg)

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "family@example.com", sent[0].to)
	assert.Equal(t, config.FallbackDigestSubject, sent[0].subject)
	assert.True(t, strings.HasPrefix(sent[0].body, "<html>"))

	e, notifier = newEngine(t, at(2024, 6, 1), people, nil)
	msg, err = e.SendDigest(context.Background(), familyID, "family@example.com")
	require.NoError(t, err)
	assert.Equal(t, config.MsgDigestNone, msg)
	assert.Empty(t, notifier.Sent())
}

func TestSendDigest_DetachedFromCallerContext(t *testing.T) {
	people := []engine.Person{person("p1", "Ada", "Lovelace", "1990-03-14", "")}
	records := new(MockRecords)
	records.On("ListPeople", mock.Anything, familyID).Return(people, nil)
	records.On("ListEvents", mock.Anything, familyID).Return([]engine.CustomEvent{}, nil)

	var queuedCtx context.Context
	notifier := notifierFunc(func(ctx context.Context, _, _, _ string) { queuedCtx = ctx })

	e := engine.New(records, notifier, nil)
	e.Clock = MockClock{CurrentTime: at(2024, 3, 13)}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := e.SendDigest(ctx, familyID, "x@example.com")
	require.NoError(t, err)
	cancel()

	require.NotNil(t, queuedCtx)
	assert.NoError(t, queuedCtx.Err(), "the queued send must survive the request context")
}

type notifierFunc func(ctx context.Context, to, subject, body string)

func (f notifierFunc) Queue(ctx context.Context, to, subject, body string) { f(ctx, to, subject, body) }

func TestMalformedSeed_AbsentEverywhere(t *testing.T) {
	people := []engine.Person{person("p1", "Bad", "Seed", "not-a-date", "")}
	e, notifier := newEngine(t, at(2024, 3, 13), people, nil)
	ctx := context.Background()

	alerts, err := e.Alerts(ctx, familyID, 366)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	entries, err := e.Calendar(ctx, familyID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	msg, err := e.SendDigest(ctx, familyID, "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, config.MsgDigestNone, msg)
	assert.Empty(t, notifier.Sent())
}
