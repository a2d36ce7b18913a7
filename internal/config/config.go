package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "OneFam/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "OneFam"
	AppID          = "com.github.tartampluch.onefam"
	KeyringService = "com.github.tartampluch.onefam"
	LogFileName    = "app.log"
	SettingsFile   = "settings.yaml"
	EnvPrefix      = "ONEFAM"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like logs and the settings file.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagConfig       = "config"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescConfig   = "Path to the YAML settings file"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Keyring Accounts
// -----------------------------------------------------------------------------

const (
	KeyringUserSendGrid = "sendgrid_api_key"
	KeyringUserJWT      = "jwt_secret"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultListen         = "127.0.0.1:8000"
	DefaultDatabasePath   = "onefam.db"
	DefaultLanguage       = "en"
	DefaultAlertWindow    = 30
	MaxAlertWindow        = 1000
	DefaultLoginUser      = "onefam"
	DefaultLoginPass      = "Welcome1"
	DefaultSenderEmail    = "noreply@onefam.com"
	DefaultSendGridURL    = "https://api.sendgrid.com"
	DefaultTokenTTL       = 24 * time.Hour
	DefaultLeapYear       = 2000 // Leap year placeholder for year-less dates like --02-29
	DefaultDigestSchedule = "0 8 * * *"
	UIDSalt               = "onefam-v1-" // Salt for deterministic UID generation
	DefaultReminder       = "-P1D"
)

// DefaultCORSOrigins allows any origin unless settings restrict it.
var DefaultCORSOrigins = []string{"*"}

// SupportedLanguages defines the list of available digest languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Domain Vocabulary
// -----------------------------------------------------------------------------

const (
	KindBirthday    = "birthday"
	KindAnniversary = "anniversary"
	KindCustom      = "custom"

	FormatBirthdayTitle    = "%s's Birthday"
	FormatAnniversaryTitle = "%s's Anniversary"
	FormatMemberName       = "%s %s"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion   = "2.0"
	ICalProdid    = "-//OneFam//Engine//EN"
	ICalCalName   = "OneFam"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "onefam"

	// iCal/vCard Fields
	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"
	PropCategories  = "CATEGORIES"

	VCardBDAY        = "BDAY"
	VCardAnniversary = "ANNIVERSARY"
	VCardFN          = "FN"
	VCardNote        = "NOTE"

	DefaultICalRefresh = 1 * time.Hour
)

// -----------------------------------------------------------------------------
// Data Formats & Limits
// -----------------------------------------------------------------------------

const (
	// DateFormatSeed is the only accepted layout for stored seed dates.
	DateFormatSeed = "2006-01-02"

	// Layouts accepted when importing vCard dates.
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%d@%s"

	MaxImportBodySize = 16 * 1024 * 1024 // 16MB
	MaxJSONBodySize   = 8 * 1024 * 1024  // 8MB, photos travel as base64
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	StoreTimeout        = 10 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	MaxHTTPResponseSize = 256 * 1024 * 1024 // 256MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	SendGridSendPath    = "/v3/mail/send"
	SendGridRetryCount  = 2
	LoginRateLimit      = 10
	LoginRateWindow     = time.Minute
	CORSMaxAge          = 300
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderAuthorization   = "Authorization"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderAccept          = "Accept"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderContentDisposit = "Content-Disposition"
	HeaderLastModified    = "Last-Modified"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json"
	MimeHTML            = "text/html"
	MimeVCard           = "text/vcard"
	MimeVCardLegacy     = "text/x-vcard"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	BearerPrefix        = "Bearer "
	QueryToken          = "token"
	ICSFileName         = `attachment; filename="onefam.ics"`

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// HTTP Routes & Parameters
// -----------------------------------------------------------------------------

const (
	RouteAPI        = "/api"
	RouteLogin      = "/auth/login"
	RouteHealth     = "/health"
	RouteFamilies   = "/families"
	RouteFamily     = "/{familyID}"
	RouteMembers    = "/members"
	RouteMember     = "/members/{memberID}"
	RouteImport     = "/members/import"
	RouteEvents     = "/events"
	RouteEvent      = "/events/{eventID}"
	RouteAlerts     = "/alerts"
	RouteCalendar   = "/events-calendar"
	RouteSendAlerts = "/send-alerts"
	RouteFeed       = "/calendar.ics"
	RouteMetrics    = "/metrics"

	ParamFamilyID = "familyID"
	ParamMemberID = "memberID"
	ParamEventID  = "eventID"

	QueryDays  = "days"
	QueryMonth = "month"
	QueryYear  = "year"

	// ValidateSeedDate is the validator alias for YYYY-MM-DD fields.
	ValidateSeedDate = "seeddate"
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrListenRequired   = "listen address is required"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrVCardParse       = "failed to parse vCard stream"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrDateParse        = "unable to parse date"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app cache dir"
	ErrConfigDir        = "could not determine user config dir"
	ErrSecretGenerate   = "failed to generate jwt secret"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrSettingsRead     = "failed to read settings file"
	ErrSettingsParse    = "failed to parse settings file"
	ErrSettingsWrite    = "failed to write settings file"
	ErrSettingsEnv      = "failed to process environment variables"
	ErrSettingsPath     = "settings path is empty"
	ErrStoreOpen        = "failed to open record store"
	ErrStoreMigrate     = "failed to migrate record store"
	ErrStoreQuery       = "record store query failed"
	ErrListPeople       = "failed to list members"
	ErrListEvents       = "failed to list events"
	ErrTokenSign        = "failed to sign token"
	ErrTokenParse       = "failed to parse token"
	ErrTokenClaims      = "invalid token claims"
	ErrTokenMethod      = "unexpected signing method"
	ErrSecretMissing    = "jwt secret is required"
	ErrBadCredentials   = "Invalid credentials"
	ErrMissingToken     = "Missing bearer token"
	ErrInvalidToken     = "Invalid or expired token"
	ErrSendGridKey      = "SendGrid API key not configured"
	ErrSendFailed       = "Failed to send email"
	ErrDigestRender     = "failed to render digest"
	ErrCronSchedule     = "invalid digest schedule"
	ErrFetcherMissing   = "internal error: network fetcher is not initialized"
	ErrFetchNetwork     = "network error during fetch"
	ErrFetchStatus      = "address book server returned unexpected status"
	ErrResponseTooLarge = "address book exceeds the download limit"
	ErrStreamRead       = "failed to read vCard stream"
	ErrBodyTooLarge     = "Import body exceeds the size limit"
	ErrImportSource     = "import requires a vCard body or a source URL"
	ErrGroupNotFound    = "Family not found"
	ErrMemberNotFound   = "Member not found"
	ErrEventNotFound    = "Event not found"
	ErrBadRequestBody   = "Invalid request body"
	ErrInternal         = "Internal Server Error"
	ErrSeedDateInvalid  = "date must use the YYYY-MM-DD format"
	ErrWindowOutOfRange = "days must be between 0 and 1000"
	ErrMonthOutOfRange  = "month must be between 1 and 12"
	ErrYearOutOfRange   = "year must be a positive number"
	ErrValidation       = "Validation failed"
	ErrRateLimited      = "Too many requests"
)

// -----------------------------------------------------------------------------
// User-Facing Messages
// -----------------------------------------------------------------------------

const (
	MsgLoginSuccess    = "Login successful"
	MsgFamilyDeleted   = "Family deleted successfully"
	MsgMemberDeleted   = "Member deleted successfully"
	MsgEventDeleted    = "Event deleted successfully"
	MsgDigestQueued    = "Email notification queued for %d event(s)"
	MsgDigestNone      = "No events happening tomorrow"
	MsgImportCompleted = "Imported %d member(s)"
	MsgHealthOK        = "ok"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStop        = "Application stopped gracefully"
	MsgAppStarting    = "Starting application"
	MsgCtxCancel      = "Shutdown signal received"
	MsgEphemeralKey   = "No JWT secret configured, tokens will not survive a restart"
	MsgDefaultLogin   = "Default login password in use"
	MsgServerListen   = "HTTP server listening"
	MsgServerStop     = "Shutting down HTTP server..."
	MsgStoreOpened    = "Record store opened"
	MsgStoreClosed    = "Record store closed"
	MsgSettingsLoaded = "Settings loaded"
	MsgSettingsInit   = "Settings file created with defaults"
	MsgSecretKeyring  = "Secret resolved from OS keyring"
	MsgSecretMissing  = "Secret not found in OS keyring"
	MsgLocaleSkip     = "Skipping non-locale file"
	MsgLocaleBadName  = "Skipping malformed locale filename"
	MsgLocaleLoaded   = "Locale loaded successfully"
	MsgTransMissing   = "Missing translation key"
	MsgLogWarning     = "Warning: %s at %s: %v\n"
	MsgAlertsComputed = "Alerts computed"
	MsgCalendarBuilt  = "Calendar computed"
	MsgDigestComposed = "Digest composed"
	MsgDigestDispatch = "Digest dispatched"
	MsgDigestSkipped  = "No events tomorrow, nothing dispatched"
	MsgSendQueued     = "Notification queued"
	MsgSendDone       = "Notification sent"
	MsgSendRejected   = "Notification rejected by transport"
	MsgDrainTimeout   = "Timed out waiting for pending notifications"
	MsgSendClosed     = "Dispatcher draining, notification dropped"
	MsgSkippedCard    = "Skipping malformed vCard"
	MsgImportDone     = "vCard import finished"
	MsgFetchStarted   = "Address book download started"
	MsgFetchStatus    = "Address book server returned error status"
	MsgFeedGenerated  = "Calendar feed generated"
	MsgCacheUpdated   = "Feed cache validators updated"
	MsgSchedulerStart = "Digest scheduler started"
	MsgSchedulerStop  = "Digest scheduler stopped"
	MsgSchedulerRun   = "Running scheduled digests"
	MsgSchedulerFail  = "Scheduled digest failed"
	MsgRequestFailed  = "Request failed"
	MsgRequestDone    = "Request served"
	MsgLoginRejected  = "Login rejected"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyListen    = "listen"
	LogKeyPath      = "path"
	LogKeyGroup     = "family_id"
	LogKeyTo        = "to"
	LogKeyCount     = "count"
	LogKeyWindow    = "window_days"
	LogKeyMonth     = "month"
	LogKeyYear      = "year"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyTotal     = "total_cards"
	LogKeyImported  = "imported"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeySchedule  = "schedule"
	LogKeyUser      = "user"
	LogKeyMethod    = "method"
	LogKeyDuration  = "duration_ms"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine    = "engine"
	CompServer    = "server"
	CompStore     = "store"
	CompFetcher   = "fetcher"
	CompNotify    = "notify"
	CompScheduler = "scheduler"
	CompSettings  = "settings"
	CompAuth      = "auth"
	CompMain      = "main"
	CompI18n      = "i18n"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyDigestSubject    = "digest_subject"
	TKeyDigestHeading    = "digest_heading"
	TKeyDigestIntro      = "digest_intro"
	TKeyDigestOn         = "digest_on"
	TKeyDigestClosing    = "digest_closing"
	TKeyDigestDateLayout = "digest_date_layout"
	TKeyKindBirthday     = "kind_birthday"
	TKeyKindAnniversary  = "kind_anniversary"
	TKeyKindCustom       = "kind_custom"
	TKeyFeedName         = "feed_name"
)

// -----------------------------------------------------------------------------
// Fallbacks & Defaults
// -----------------------------------------------------------------------------

const (
	FallbackDigestSubject    = "OneFam - Upcoming Events Reminder"
	FallbackDigestHeading    = "Upcoming Events Reminder"
	FallbackDigestIntro      = "The following events are happening tomorrow:"
	FallbackDigestOn         = "on"
	FallbackDigestClosing    = "Don't forget to celebrate!"
	FallbackDigestDateLayout = "January 02, 2006"
	FallbackKindBirthday     = "Birthday"
	FallbackKindAnniversary  = "Anniversary"
	FallbackKindCustom       = "Event"

	// StubVCalendar is the minimal valid iCalendar object used when no events are found.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)
