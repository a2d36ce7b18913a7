package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/tartampluch/onefam/internal/auth"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/engine"
	"github.com/tartampluch/onefam/internal/i18n"
	"github.com/tartampluch/onefam/internal/notify"
	"github.com/tartampluch/onefam/internal/scheduler"
	"github.com/tartampluch/onefam/internal/server"
	"github.com/tartampluch/onefam/internal/store"
)

// main delegates to runMain so deferred calls run before os.Exit.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
func runMain() int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	configPath := flag.String(config.FlagConfig, "", config.FlagDescConfig)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// -------------------------------------------------------------------------
	// 2. Logging Initialization
	// -------------------------------------------------------------------------
	logCloser := setupLogging(*debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close()
		}()
	}

	// -------------------------------------------------------------------------
	// 3. Context & Signal Handling
	// -------------------------------------------------------------------------
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	// -------------------------------------------------------------------------
	// 4. Application Logic
	// -------------------------------------------------------------------------
	if err := run(ctx, *configPath); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run loads the settings, wires the dependencies and serves until ctx is
// cancelled.
func run(ctx context.Context, configPath string) error {
	if configPath == "" {
		p, err := defaultSettingsPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	settings.ResolveSecrets()

	if settings.Auth.JWTSecret == "" {
		secret, err := ephemeralSecret()
		if err != nil {
			return err
		}
		settings.Auth.JWTSecret = secret
		slog.Warn(config.MsgEphemeralKey, config.LogKeyComponent, config.CompMain)
	}
	if settings.Auth.Password == config.DefaultLoginPass {
		slog.Warn(config.MsgDefaultLogin,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyUser, settings.Auth.Username,
		)
	}

	// Dependency Injection.
	st, err := store.Open(settings.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	dispatcher := notify.NewDispatcher(notify.NewSendGrid(settings.Mail))

	eng := engine.New(st, dispatcher, i18n.New(settings.Language))
	eng.ReminderTrigger = settings.Feed.ReminderTrigger

	authManager, err := auth.New(settings.Auth)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(eng, settings.Digest)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	srv := server.New(server.Options{
		Listen:      settings.Listen,
		CORSOrigins: settings.CORSOrigins,
		Store:       st,
		Engine:      eng,
		Importer:    engine.NewImporter(),
		Auth:        authManager,
	})
	serveErr := srv.Start(ctx)

	// Lifecycle Bridge: stop producing work, then drain what is in flight.
	slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
	drainCtx, drainCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer drainCancel()

	sched.Stop(drainCtx)
	_ = dispatcher.Wait(drainCtx)

	return serveErr
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger to write JSON to stdout
// and, when possible, to a log file in the user's cache directory.
func setupLogging(debugMode bool) io.Closer {
	var writers []io.Writer
	var logFile *os.File

	writers = append(writers, os.Stdout)

	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}

// defaultSettingsPath places settings.yaml in the user's config directory.
func defaultSettingsPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrConfigDir, err)
	}
	return filepath.Join(configDir, config.AppID, config.SettingsFile), nil
}

func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrSecretGenerate, err)
	}
	return hex.EncodeToString(buf), nil
}
