package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/onefam/internal/config"
)

// ImportSource selects where vCards come from: an inline stream or a
// remote CardDAV/WebDAV URL.
type ImportSource struct {
	Body io.Reader
	URL  string
	User string
	Pass string
}

// Importer converts vCard streams into Person records ready to be stored.
type Importer struct {
	Fetcher VCardFetcher
}

// NewImporter creates an Importer downloading remote sources over HTTP.
func NewImporter() *Importer {
	return &Importer{Fetcher: NewHTTPFetcher()}
}

// Import reads every card from src. Malformed cards are skipped and logged;
// cards without a usable name are skipped silently. A failed read on the
// underlying stream aborts the import with the read error wrapped. Inline
// bodies are read as given, so callers bound their size.
func (im *Importer) Import(ctx context.Context, familyID string, src ImportSource) ([]Person, error) {
	reader, err := im.acquireStream(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
	}
	defer func() { _ = reader.Close() }()

	stream := &stickyReader{r: reader}
	decoder := vcard.NewDecoder(stream)
	var people []Person
	total := 0

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if stream.err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStreamRead, stream.err)
		}
		if err != nil {
			// Log error but continue to next card to maximize data recovery
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyError, err)
			continue
		}
		total++

		p, ok := personFromCard(card, familyID)
		if !ok {
			continue
		}
		people = append(people, p)
	}

	slog.InfoContext(ctx, config.MsgImportDone,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyGroup, familyID,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyTotal, total),
			slog.Int(config.LogKeyImported, len(people)),
		),
	)
	return people, nil
}

// stickyReader remembers the first read error other than io.EOF so a broken
// stream can be told apart from a malformed card.
type stickyReader struct {
	r   io.Reader
	err error
}

func (s *stickyReader) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	return n, err
}

func (im *Importer) acquireStream(ctx context.Context, src ImportSource) (io.ReadCloser, error) {
	switch {
	case src.Body != nil:
		return io.NopCloser(src.Body), nil
	case src.URL != "":
		if im.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		return im.Fetcher.Fetch(ctx, src.URL, src.User, src.Pass)
	default:
		return nil, errors.New(config.ErrImportSource)
	}
}

// personFromCard maps the vCard fields OneFam keeps. Name strategy:
// structured N first, then FN split on its first space.
func personFromCard(card vcard.Card, familyID string) (Person, bool) {
	p := Person{FamilyID: familyID}

	if n := card.Name(); n != nil && (n.GivenName != "" || n.FamilyName != "") {
		p.FirstName, p.LastName = n.GivenName, n.FamilyName
	} else if fn := strings.TrimSpace(card.Value(config.VCardFN)); fn != "" {
		first, last, _ := strings.Cut(fn, " ")
		p.FirstName, p.LastName = first, strings.TrimSpace(last)
	} else {
		return Person{}, false
	}

	p.Birthday = importDate(card.Value(config.VCardBDAY))
	p.Anniversary = importDate(card.Value(config.VCardAnniversary))

	if adr := card.Address(); adr != nil {
		parts := []string{adr.StreetAddress, adr.Locality, adr.Region, adr.PostalCode, adr.Country}
		if joined := strings.Join(nonEmpty(parts), ", "); joined != "" {
			p.Address = &joined
		}
	}
	if note := strings.TrimSpace(card.Value(config.VCardNote)); note != "" {
		p.Comments = &note
	}
	return p, true
}

// importDate normalizes a vCard date to a seed string, or nil if unparseable.
func importDate(value string) *string {
	if value == "" {
		return nil
	}
	t, _, err := parseDate(value)
	if err != nil {
		slog.Debug(config.ErrDateParse,
			config.LogKeyComponent, config.CompEngine,
			config.LogKeyValue, value)
		return nil
	}
	s := t.Format(config.DateFormatSeed)
	return &s
}

// parseDate handles various vCard date formats.
func parseDate(value string) (time.Time, bool, error) {
	// Full dates (Year known)
	formatsWithYear := []string{
		config.DateFormatSeed,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}

	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return t, true, nil
		}
	}

	// Truncated dates (Year unknown) - vCard specific
	// Safe leap year fallback
	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			safeDate := time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return safeDate, false, nil
		}
	}

	return time.Time{}, false, errors.New(config.ErrDateParse)
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
