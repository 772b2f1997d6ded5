package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/janitor"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/postgres"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/google/uuid"
)

const usage = `Usage: booking [command] [options]

Commands:
  serve          run the HTTP server (default)
  migrate        apply database migrations and exit
  hash-pin       read a PIN and print its argon2id hash
  add-identity   register an apartment login (-apartment A101)

The PIN is read from BOOKING_PIN when set, otherwise from the terminal
without echo. Configuration comes from BOOKING_* environment variables.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	command := "serve"
	if len(args) > 0 && (!strings.HasPrefix(args[0], "-") || args[0] == "-h" || args[0] == "--help") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	case "serve", "migrate", "hash-pin", "add-identity":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	// The server logs to stdout; the other commands keep stdout for their output.
	logOutput := stderr
	if command == "serve" {
		logOutput = stdout
	}
	logger := logging.New(logOutput, cfg.LogLevel)

	switch command {
	case "migrate":
		err = runMigrate(ctx, cfg, logger)
	case "hash-pin":
		err = runHashPIN(stdin, stdout, stderr)
	case "add-identity":
		err = runAddIdentity(ctx, cfg, args, stdin, stdout, stderr, logger)
	default:
		err = runServe(ctx, cfg, logger)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		logger.Error("command failed", "command", command, "error", err, "error_kind", application.ErrorKind(err))
		return 1
	}
	return 0
}

func openStore(cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return postgres.Open(cfg.PostgresDSN, logger)
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return sqlite.OpenWithConfig(sqlite.DefaultConfig(cfg.SQLiteDSN), logger)
	}
}

func openMigratedStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

func runMigrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openMigratedStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("database migrations applied", "store", cfg.Store)
	return store.Close()
}

func runHashPIN(stdin io.Reader, stdout, stderr io.Writer) error {
	pin, err := newPINReader(stdin, stderr, nil).Read()
	if err != nil {
		return err
	}
	if len(pin) < application.MinPINLength {
		return fmt.Errorf("pin must be at least %d characters", application.MinPINLength)
	}
	hash, err := application.HashPIN(pin)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	return nil
}

func runAddIdentity(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("add-identity", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apartment := fs.String("apartment", "", "apartment identifier to register")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*apartment) == "" {
		fs.Usage()
		return errors.New("-apartment is required")
	}

	pin, err := newPINReader(stdin, stderr, nil).Read()
	if err != nil {
		return err
	}

	store, err := openMigratedStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	gate := application.NewIdentityGateWithLogger(newIdentityStoreAdapter(store), nil, nil, nil, time.Now, logger)
	identity, err := gate.RegisterIdentity(ctx, *apartment, pin)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "registered apartment %s\n", identity.Apartment)
	return nil
}

// services is the wired HTTP handler plus what must run on shutdown.
type services struct {
	handler http.Handler
	closers []func()
}

func newServices(cfg config.Config, store persistence.Store, logger *slog.Logger, ids func() string, now func() time.Time) *services {
	reservations := newReservationStoreAdapter(store)

	booking := application.NewBookingServiceWithLogger(reservations, ids, now, logger)
	gate := application.NewIdentityGateWithLogger(newIdentityStoreAdapter(store), booking, nil, nil, now, logger)
	calendar := application.NewCalendarServiceWithLogger(reservations, application.CalendarSettings{
		Rooms:     cfg.Rooms,
		WeekStart: cfg.WeekStart,
		Window:    application.Window{Start: cfg.WindowStart, End: cfg.WindowEnd},
		Location:  cfg.Location,
	}, now, logger)

	signals := httptransport.NewSignalRegistry(httptransport.DefaultSignalIdle, now)
	calendarHandler := httptransport.NewCalendarHandler(calendar, signals, logger)
	bookingHandler := httptransport.NewBookingHandler(gate, signals, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Calendar: calendarHandler,
		Bookings: bookingHandler,
		Health:   store,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.SessionCookie(),
		},
	})

	return &services{
		handler: router,
		closers: []func(){calendarHandler.Close},
	}
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openMigratedStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	app := newServices(cfg, store, logger, uuid.NewString, time.Now)

	if cfg.JanitorSchedule != "" {
		sweeper := janitor.NewWithGracePeriod(store, cfg.JanitorGrace, time.Now, logger)
		if err := sweeper.Start(ctx, cfg.JanitorSchedule); err != nil {
			return fmt.Errorf("start janitor: %w", err)
		}
		defer func() { <-sweeper.Stop().Done() }()
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	for _, closer := range app.closers {
		server.RegisterOnShutdown(closer)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening",
		"addr", server.Addr,
		"store", cfg.Store,
		"rooms", strings.Join(cfg.Rooms, ","),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("booking API stopped")
	return nil
}
