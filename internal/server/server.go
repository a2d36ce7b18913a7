package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/tartampluch/onefam/internal/auth"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/engine"
	"github.com/tartampluch/onefam/internal/metrics"
	"github.com/tartampluch/onefam/internal/store"
)

// Store is the record store as used by the handlers.
type Store interface {
	Ping(ctx context.Context) error
	ListFamilies(ctx context.Context) ([]engine.Family, error)
	CreateFamily(ctx context.Context, name string) (engine.Family, error)
	DeleteFamily(ctx context.Context, id string) error
	ListPeople(ctx context.Context, familyID string) ([]engine.Person, error)
	CreatePerson(ctx context.Context, familyID string, p engine.Person) (engine.Person, error)
	CreatePeople(ctx context.Context, familyID string, people []engine.Person) ([]engine.Person, error)
	UpdatePerson(ctx context.Context, familyID, id string, patch store.PersonPatch) (engine.Person, error)
	DeletePerson(ctx context.Context, familyID, id string) error
	ListEvents(ctx context.Context, familyID string) ([]engine.CustomEvent, error)
	CreateEvent(ctx context.Context, familyID string, ev engine.CustomEvent) (engine.CustomEvent, error)
	DeleteEvent(ctx context.Context, familyID, id string) error
}

// Occurrences computes the derived views of a family's dates.
type Occurrences interface {
	Alerts(ctx context.Context, familyID string, windowDays int) ([]engine.Alert, error)
	Calendar(ctx context.Context, familyID string, month, year int) ([]engine.CalendarEntry, error)
	SendDigest(ctx context.Context, familyID, to string) (string, error)
	Feed(ctx context.Context, familyID string) ([]byte, error)
}

// Importer turns a vCard source into members.
type Importer interface {
	Import(ctx context.Context, familyID string, src engine.ImportSource) ([]engine.Person, error)
}

// Authenticator issues and checks bearer tokens.
type Authenticator interface {
	Login(username, password string) (string, error)
	Validate(token string) (*auth.Claims, error)
}

// Options wires the server's collaborators.
type Options struct {
	Listen      string
	CORSOrigins []string
	Store       Store
	Engine      Occurrences
	Importer    Importer
	Auth        Authenticator
}

// APIServer serves the JSON API, the iCalendar feeds and /metrics.
type APIServer struct {
	Listen string

	store       Store
	engine      Occurrences
	importer    Importer
	auth        Authenticator
	corsOrigins []string
	validate    *validator.Validate

	// feeds maps a family ID to the *feedVersion last served for it.
	feeds sync.Map
}

// New creates the server. Call Handler for tests or Start to listen.
func New(opts Options) *APIServer {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterAlias(config.ValidateSeedDate, "datetime="+config.DateFormatSeed)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = config.DefaultCORSOrigins
	}

	return &APIServer{
		Listen:      opts.Listen,
		store:       opts.Store,
		engine:      opts.Engine,
		importer:    opts.Importer,
		auth:        opts.Auth,
		corsOrigins: origins,
		validate:    v,
	}
}

// Handler builds the route tree.
func (s *APIServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(middleware.GetHead)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{config.HeaderContentType, config.HeaderAuthorization, config.HeaderIfNoneMatch},
		ExposedHeaders: []string{config.HeaderETag},
		MaxAge:         config.CORSMaxAge,
	}))

	r.Handle(config.RouteMetrics, metrics.Handler())

	r.Route(config.RouteAPI, func(r chi.Router) {
		r.Get(config.RouteHealth, s.handleHealth)
		r.With(httprate.Limit(config.LoginRateLimit, config.LoginRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByRealIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, config.ErrRateLimited)
			}),
		)).Post(config.RouteLogin, s.handleLogin)

		r.Route(config.RouteFamilies, func(r chi.Router) {
			r.With(s.requireToken(false)).Get("/", s.handleListFamilies)
			r.With(s.requireToken(false)).Post("/", s.handleCreateFamily)

			r.Route(config.RouteFamily, func(r chi.Router) {
				// Calendar clients cannot send headers, so the feed also
				// accepts the token as a query parameter.
				r.With(s.requireToken(true)).Get(config.RouteFeed, s.handleFeed)

				r.Group(func(r chi.Router) {
					r.Use(s.requireToken(false))

					r.Delete("/", s.handleDeleteFamily)

					r.Get(config.RouteMembers, s.handleListMembers)
					r.Post(config.RouteMembers, s.handleCreateMember)
					r.Post(config.RouteImport, s.handleImport)
					r.Put(config.RouteMember, s.handleUpdateMember)
					r.Delete(config.RouteMember, s.handleDeleteMember)

					r.Get(config.RouteEvents, s.handleListEvents)
					r.Post(config.RouteEvents, s.handleCreateEvent)
					r.Delete(config.RouteEvent, s.handleDeleteEvent)

					r.Get(config.RouteAlerts, s.handleAlerts)
					r.Get(config.RouteCalendar, s.handleCalendar)
					r.Post(config.RouteSendAlerts, s.handleSendAlerts)
				})
			})
		})
	})

	return r
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *APIServer) Start(ctx context.Context) error {
	if s.Listen == "" {
		return errors.New(config.ErrListenRequired)
	}

	srv := &http.Server{
		Addr:         s.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyListen, s.Listen,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}
