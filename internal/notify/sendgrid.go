// Package notify delivers digest mails through SendGrid, off the request path.
package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tartampluch/onefam/internal/config"
)

// Transport delivers one HTML mail and reports whether the provider accepted it.
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) bool
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMessage struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// SendGrid is the v3 mail-send Transport.
type SendGrid struct {
	client *resty.Client
	apiKey string
	from   string
}

// NewSendGrid builds a transport from the mail settings.
func NewSendGrid(settings config.MailSettings) *SendGrid {
	baseURL := settings.SendGridURL
	if baseURL == "" {
		baseURL = config.DefaultSendGridURL
	}
	from := settings.SenderEmail
	if from == "" {
		from = config.DefaultSenderEmail
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(config.HTTPTimeout).
		SetRetryCount(config.SendGridRetryCount).
		SetHeader(config.HeaderContentType, config.MimeJSON).
		SetHeader(config.HeaderUserAgent, config.UserAgent)

	return &SendGrid{client: client, apiKey: settings.SendGridAPIKey, from: from}
}

// Send posts the message. Only 202 Accepted counts as success; a missing
// API key is reported as a failure without contacting the provider.
func (s *SendGrid) Send(ctx context.Context, to, subject, htmlBody string) bool {
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompNotify),
		slog.String(config.LogKeyTo, to),
	)

	if s.apiKey == "" {
		log.Warn(config.ErrSendGridKey)
		return false
	}

	msg := sgMessage{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: to}}}},
		From:             sgAddress{Email: s.from},
		Subject:          subject,
		Content:          []sgContent{{Type: config.MimeHTML, Value: htmlBody}},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetBody(msg).
		Post(config.SendGridSendPath)
	if err != nil {
		log.Error(config.ErrSendFailed, config.LogKeyError, err)
		return false
	}

	if resp.StatusCode() != http.StatusAccepted {
		log.Warn(config.MsgSendRejected, config.LogKeyStatus, resp.StatusCode())
		return false
	}

	log.Info(config.MsgSendDone)
	return true
}
