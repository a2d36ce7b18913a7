package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/tartampluch/onefam/internal/config"
)

// Family groups members and custom events.
type Family struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Person is a family member as held by the record store.
//
// Birthday and Anniversary are seed dates in YYYY-MM-DD form. The year is the
// original year (birth, wedding), never "this year". A nil, empty or
// malformed value means the field produces no occurrence.
type Person struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Address     *string   `json:"address"`
	PhotoBase64 *string   `json:"photo_base64"`
	Birthday    *string   `json:"birthday"`
	Anniversary *string   `json:"anniversary"`
	Comments    *string   `json:"comments"`
	ParentID    *string   `json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name is the display name used in titles and digests.
func (p Person) Name() string {
	return fmt.Sprintf(config.FormatMemberName, p.FirstName, p.LastName)
}

// CustomEvent is a named date owned by a family.
//
// A non-recurring event happens exactly on EventDate. A recurring event
// happens every year on EventDate's month and day, like a birthday.
// MemberID is informational only.
type CustomEvent struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	MemberID  *string   `json:"member_id"`
	EventName string    `json:"event_name"`
	EventDate string    `json:"event_date"`
	Recurring bool      `json:"recurring"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is one entry of the upcoming-events feed.
type Alert struct {
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Date       string  `json:"date"`
	MemberName *string `json:"member_name"`
	DaysUntil  int     `json:"days_until"`
}

// CalendarEntry is one entry of the month/year calendar listing.
// Date is the literal stored date.
type CalendarEntry struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	MemberID   string `json:"member_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	MemberName string `json:"member_name,omitempty"`
}

// DigestItem is one event happening tomorrow.
type DigestItem struct {
	Kind string    `json:"kind"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// Digest is the set of events happening tomorrow, with the rendered mail.
type Digest struct {
	Count   int          `json:"count"`
	Items   []DigestItem `json:"items"`
	Subject string       `json:"-"`
	HTML    string       `json:"-"`
}

// seedOf reads an optional seed field; nil and blank are both "no seed".
func seedOf(field *string) string {
	if field == nil {
		return ""
	}
	return strings.TrimSpace(*field)
}

func birthdayTitle(name string) string {
	return fmt.Sprintf(config.FormatBirthdayTitle, name)
}

func anniversaryTitle(name string) string {
	return fmt.Sprintf(config.FormatAnniversaryTitle, name)
}
