package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// Subscription asks the scheduler to mail a family's digest to one address.
type Subscription struct {
	FamilyID string `yaml:"family_id" json:"family_id"`
	Email    string `yaml:"email" json:"email"`
}

// AuthSettings holds the single static credential pair and token parameters.
type AuthSettings struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	JWTSecret string `yaml:"jwt_secret" split_words:"true"`
	TokenTTL  string `yaml:"token_ttl" split_words:"true"`
}

// MailSettings configures the SendGrid notification transport.
type MailSettings struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key" split_words:"true"`
	SendGridURL    string `yaml:"sendgrid_url" split_words:"true"`
	SenderEmail    string `yaml:"sender_email" split_words:"true"`
}

// DigestSettings configures the optional cron-driven digest dispatch.
// An empty Schedule or no Subscriptions disables the scheduler.
type DigestSettings struct {
	Schedule      string         `yaml:"schedule"`
	Subscriptions []Subscription `yaml:"subscriptions" ignored:"true"`
}

// FeedSettings configures the published iCalendar feed.
type FeedSettings struct {
	// ReminderTrigger is an ISO8601 duration (e.g. "-P1D"). Empty disables alarms.
	ReminderTrigger string `yaml:"reminder_trigger" split_words:"true"`
}

// Settings is the runtime configuration. It is read from a YAML file and
// then overridden by ONEFAM_* environment variables, named after the field
// path with words split (ONEFAM_AUTH_JWT_SECRET, ONEFAM_MAIL_SEND_GRID_API_KEY).
type Settings struct {
	Listen       string   `yaml:"listen"`
	DatabasePath string   `yaml:"database_path" split_words:"true"`
	Language     string   `yaml:"language"`
	CORSOrigins  []string `yaml:"cors_origins" split_words:"true"`
	UseKeyring   bool     `yaml:"use_keyring" split_words:"true"`

	Auth   AuthSettings   `yaml:"auth"`
	Mail   MailSettings   `yaml:"mail"`
	Digest DigestSettings `yaml:"digest"`
	Feed   FeedSettings   `yaml:"feed"`
}

// DefaultSettings returns an in-memory default configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Listen:       DefaultListen,
		DatabasePath: DefaultDatabasePath,
		Language:     DefaultLanguage,
		CORSOrigins:  slices.Clone(DefaultCORSOrigins),
		Auth: AuthSettings{
			Username: DefaultLoginUser,
			Password: DefaultLoginPass,
			TokenTTL: DefaultTokenTTL.String(),
		},
		Mail: MailSettings{
			SendGridURL: DefaultSendGridURL,
			SenderEmail: DefaultSenderEmail,
		},
		Feed: FeedSettings{ReminderTrigger: DefaultReminder},
	}
}

// Normalize fills in missing values so that partially-filled files still work.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.Listen == "" {
		s.Listen = def.Listen
	}
	if s.DatabasePath == "" {
		s.DatabasePath = def.DatabasePath
	}
	if !slices.Contains(SupportedLanguages, s.Language) {
		s.Language = def.Language
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = def.CORSOrigins
	}
	if s.Auth.Username == "" {
		s.Auth.Username = def.Auth.Username
	}
	if s.Auth.Password == "" {
		s.Auth.Password = def.Auth.Password
	}
	if s.Auth.TokenTTL == "" {
		s.Auth.TokenTTL = def.Auth.TokenTTL
	}
	if s.Mail.SendGridURL == "" {
		s.Mail.SendGridURL = def.Mail.SendGridURL
	}
	if s.Mail.SenderEmail == "" {
		s.Mail.SenderEmail = def.Mail.SenderEmail
	}
	if s.Digest.Subscriptions == nil {
		s.Digest.Subscriptions = []Subscription{}
	}
}

// Load reads settings from the YAML file at path, applies environment
// overrides and normalizes the result.
//
// If the file does not exist, a default file is written (0600) first.
func Load(path string) (*Settings, error) {
	if path == "" {
		return nil, errors.New(ErrSettingsPath)
	}

	s, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, s); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrSettingsEnv, err)
	}
	s.Normalize()

	slog.Info(MsgSettingsLoaded,
		LogKeyComponent, CompSettings,
		LogKeyPath, path,
		LogKeyListen, s.Listen,
		LogKeyLang, s.Language,
	)
	return s, nil
}

func readFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s := DefaultSettings()
		if err := Save(path, s); err != nil {
			return nil, err
		}
		slog.Info(MsgSettingsInit, LogKeyComponent, CompSettings, LogKeyPath, path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrSettingsRead, err)
	}

	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrSettingsParse, err)
	}
	return s, nil
}

// Save writes settings atomically (temp file + rename) with 0600 permissions.
func Save(path string, s *Settings) error {
	if path == "" {
		return errors.New(ErrSettingsPath)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermUserRWX); err != nil {
		return fmt.Errorf("%s: %w", ErrSettingsWrite, err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrSettingsWrite, err)
	}

	tmp, err := os.CreateTemp(dir, ".onefam-settings-*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", ErrSettingsWrite, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", ErrSettingsWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", ErrSettingsWrite, err)
	}
	if err := os.Chmod(tmpName, FilePermUserRW); err != nil {
		return fmt.Errorf("%s: %w", ErrSettingsWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%s: %w", ErrSettingsWrite, err)
	}
	return nil
}

// ResolveSecrets fills empty secrets from the OS keyring when UseKeyring is set.
// A missing keyring entry is not an error; the secret simply stays empty.
func (s *Settings) ResolveSecrets() {
	if !s.UseKeyring {
		return
	}
	if s.Mail.SendGridAPIKey == "" {
		s.Mail.SendGridAPIKey = lookupSecret(KeyringUserSendGrid)
	}
	if s.Auth.JWTSecret == "" {
		s.Auth.JWTSecret = lookupSecret(KeyringUserJWT)
	}
}

func lookupSecret(user string) string {
	secret, err := keyring.Get(KeyringService, user)
	if err != nil {
		slog.Debug(MsgSecretMissing,
			LogKeyComponent, CompSettings,
			LogKeyKey, user,
			LogKeyError, err,
		)
		return ""
	}
	slog.Debug(MsgSecretKeyring, LogKeyComponent, CompSettings, LogKeyKey, user)
	return secret
}

// TTL parses TokenTTL, falling back to DefaultTokenTTL on bad input.
func (a AuthSettings) TTL() time.Duration {
	d, err := time.ParseDuration(a.TokenTTL)
	if err != nil || d <= 0 {
		return DefaultTokenTTL
	}
	return d
}
