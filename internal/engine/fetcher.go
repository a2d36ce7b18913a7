package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tartampluch/onefam/internal/config"
)

// VCardFetcher retrieves a remote address book for import.
type VCardFetcher interface {
	Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error)
}

// HTTPFetcher downloads address books from CardDAV or plain WebDAV/HTTP
// servers. The response body is streamed, never buffered whole.
type HTTPFetcher struct {
	// MaxBytes bounds the downloaded body. Reading past it fails.
	MaxBytes int64

	client *resty.Client
}

// NewHTTPFetcher creates a fetcher with the shared HTTP timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		MaxBytes: config.MaxHTTPResponseSize,
		client:   resty.New().
			SetTimeout(config.HTTPTimeout).
			SetHeader(config.HeaderUserAgent, config.UserAgent).
			SetHeader(config.HeaderAccept, strings.Join([]string{config.MimeVCard, config.MimeVCardLegacy}, ", ")),
	}
}

// Fetch opens targetURL with optional basic auth. Only the scheme, host and
// path are logged since the query may carry a token. Reading more than
// MaxBytes from the returned body fails with ErrResponseTooLarge.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL, user, pass string) (io.ReadCloser, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, u.Scheme+"://"+u.Host+u.Path),
	)

	req := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := req.Get(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFetchNetwork, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		_ = body.Close()
		log.Warn(config.MsgFetchStatus, slog.Int(config.LogKeyStatus, resp.StatusCode()))
		return nil, fmt.Errorf("%s: %s", config.ErrFetchStatus, resp.Status())
	}

	log.Debug(config.MsgFetchStarted)
	return &cappedBody{ReadCloser: body, limit: f.MaxBytes, left: f.MaxBytes}, nil
}

// cappedBody errors once the stream goes past limit instead of ending
// silently at the cap.
type cappedBody struct {
	io.ReadCloser
	limit int64
	left  int64
}

func (c *cappedBody) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, c.tooLarge()
	}
	// One extra byte tells an exact fit from an overflow.
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.ReadCloser.Read(p)
	if int64(n) <= c.left {
		c.left -= int64(n)
		return n, err
	}
	n = int(c.left)
	c.left = -1
	return n, c.tooLarge()
}

func (c *cappedBody) tooLarge() error {
	return fmt.Errorf("%s (%d bytes)", config.ErrResponseTooLarge, c.limit)
}
