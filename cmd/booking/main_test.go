package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/janitor"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingKeys = []string{
	"BOOKING_HTTP_PORT",
	"BOOKING_STORE",
	"BOOKING_SQLITE_DSN",
	"BOOKING_POSTGRES_DSN",
	"BOOKING_ROOMS",
	"BOOKING_WINDOW_START",
	"BOOKING_WINDOW_END",
	"BOOKING_WEEK_START",
	"BOOKING_TIMEZONE",
	"BOOKING_JANITOR_SCHEDULE",
	"BOOKING_JANITOR_GRACE",
	"BOOKING_LOG_LEVEL",
	"BOOKING_PIN",
}

// isolateEnv blanks the booking variables and points the env file at a path
// that does not exist.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range bookingKeys {
		t.Setenv(key, "")
	}
	t.Setenv("BOOKING_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestRun_Commands(t *testing.T) {
	t.Run("help prints usage", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"help"}, strings.NewReader(""), &stdout, &stderr)

		assert.Equal(t, 0, code)
		assert.Contains(t, stdout.String(), "Usage: booking")
		assert.Empty(t, stderr.String())

		stdout.Reset()
		assert.Equal(t, 0, run(context.Background(), []string{"-h"}, strings.NewReader(""), &stdout, &stderr))
		assert.Contains(t, stdout.String(), "Usage: booking")
	})

	t.Run("unknown command fails before loading configuration", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"frobnicate"}, strings.NewReader(""), &stdout, &stderr)

		assert.Equal(t, 2, code)
		assert.Contains(t, stderr.String(), `unknown command "frobnicate"`)
		assert.Empty(t, stdout.String())
	})

	t.Run("invalid configuration is reported", func(t *testing.T) {
		isolateEnv(t)
		t.Setenv("BOOKING_STORE", "mysql")

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"migrate"}, strings.NewReader(""), &stdout, &stderr)

		assert.Equal(t, 1, code)
		assert.Contains(t, stderr.String(), "BOOKING_STORE")
	})

	t.Run("hash-pin prints an argon2id hash", func(t *testing.T) {
		isolateEnv(t)
		t.Setenv("BOOKING_PIN", "2468")

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"hash-pin"}, strings.NewReader(""), &stdout, &stderr)

		require.Equal(t, 0, code, stderr.String())
		hash := strings.TrimSpace(stdout.String())
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"), hash)
		assert.NoError(t, application.VerifyPIN(hash, "2468"))
	})

	t.Run("hash-pin rejects short pins", func(t *testing.T) {
		isolateEnv(t)

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"hash-pin"}, strings.NewReader("12\n"), &stdout, &stderr)

		assert.Equal(t, 1, code)
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "command failed")
	})
}

func TestRun_MigrateAndAddIdentity(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "booking.db")
	t.Setenv("BOOKING_SQLITE_DSN", "file:"+path)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"migrate"}, strings.NewReader(""), &stdout, &stderr), stderr.String())
	assert.Contains(t, stderr.String(), "database migrations applied")

	stdout.Reset()
	stderr.Reset()
	code := run(context.Background(), []string{"add-identity", "-apartment", "A101"}, strings.NewReader("1357\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "registered apartment A101\n", stdout.String())

	storage, err := sqlite.Open("file:" + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	rows, err := storage.FindIdentities(context.Background(), "A101")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, application.VerifyPIN(rows[0].PINHash, "1357"))

	t.Run("apartment flag is required", func(t *testing.T) {
		stdout.Reset()
		stderr.Reset()
		code := run(context.Background(), []string{"add-identity"}, strings.NewReader("1357\n"), &stdout, &stderr)

		assert.Equal(t, 1, code)
		assert.Contains(t, stderr.String(), "-apartment is required")
	})
}

type bookingClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newBookingClient(t *testing.T, handler http.Handler) *bookingClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &bookingClient{t: t, server: server, client: &http.Client{Jar: jar}}
}

func (c *bookingClient) do(method, path string, body any, out any) int {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type toggleReply struct {
	Outcome     string `json:"outcome"`
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	Reservation struct {
		ID    string `json:"id"`
		Owner string `json:"owner"`
	} `json:"reservation"`
}

type calendarReply struct {
	Rooms []string `json:"rooms"`
	Days  []struct {
		Date         string `json:"date"`
		Reservations []struct {
			ID        string `json:"id"`
			Room      string `json:"room"`
			TimeBlock string `json:"time_block"`
			Owner     string `json:"owner"`
		} `json:"reservations"`
	} `json:"days"`
}

func (r calendarReply) reservationsOn(date string) int {
	for _, day := range r.Days {
		if day.Date == date {
			return len(day.Reservations)
		}
	}
	return -1
}

func testConfig() config.Config {
	return config.Config{
		Rooms:     []string{"room1", "room2"},
		WeekStart: time.Monday,
		Location:  time.UTC,
	}
}

func exerciseBookingFlow(t *testing.T, store persistence.Store) {
	t.Helper()
	ctx := context.Background()

	testfixtures.SeedIdentities(ctx, t, store,
		testfixtures.NewIdentityFixture(t, "A101", "1111"),
		testfixtures.NewIdentityFixture(t, "B202", "2222"),
	)

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("res")
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	app := newServices(testConfig(), store, logger, ids.UUIDFunc(), clock.NowFunc())
	t.Cleanup(func() {
		for _, closer := range app.closers {
			closer()
		}
	})

	resident := newBookingClient(t, app.handler)
	neighbour := newBookingClient(t, app.handler)

	slot := map[string]string{"date": "2024-11-20", "room": "room1", "time_block": "08-12"}
	withLogin := func(apartment, pin string) map[string]string {
		body := map[string]string{"apartment": apartment, "pin": pin}
		for k, v := range slot {
			body[k] = v
		}
		return body
	}

	var created toggleReply
	require.Equal(t, http.StatusCreated, resident.do(http.MethodPost, "/bookings/toggle", withLogin("A101", "1111"), &created))
	assert.Equal(t, "created", created.Outcome)
	assert.Equal(t, "A101", created.Reservation.Owner)
	require.NotEmpty(t, created.Reservation.ID)

	var signal application.SignalState
	require.Equal(t, http.StatusOK, resident.do(http.MethodGet, "/calendar/signal", nil, &signal))
	assert.True(t, signal.Changed)

	var untouched application.SignalState
	require.Equal(t, http.StatusOK, neighbour.do(http.MethodGet, "/calendar/signal", nil, &untouched))
	assert.False(t, untouched.Changed)

	var rejected toggleReply
	require.Equal(t, http.StatusConflict, neighbour.do(http.MethodPost, "/bookings/toggle", withLogin("B202", "2222"), &rejected))
	assert.Equal(t, "rejected", rejected.Outcome)
	assert.Equal(t, created.Reservation.ID, rejected.Reservation.ID)

	var denied toggleReply
	require.Equal(t, http.StatusUnauthorized, neighbour.do(http.MethodPost, "/bookings/toggle", withLogin("B202", "9999"), &denied))
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", denied.ErrorCode)

	var grid calendarReply
	require.Equal(t, http.StatusOK, resident.do(http.MethodGet, "/calendar?reference=2024-11-20", nil, &grid))
	assert.Equal(t, []string{"room1", "room2"}, grid.Rooms)
	assert.Len(t, grid.Days, 28)
	assert.Equal(t, 1, grid.reservationsOn("2024-11-20"))

	var cancelled toggleReply
	require.Equal(t, http.StatusOK, resident.do(http.MethodPost, "/bookings/toggle", withLogin("A101", "1111"), &cancelled))
	assert.Equal(t, "cancelled", cancelled.Outcome)

	grid = calendarReply{}
	require.Equal(t, http.StatusOK, neighbour.do(http.MethodGet, "/calendar?reference=2024-11-20", nil, &grid))
	assert.Equal(t, 0, grid.reservationsOn("2024-11-20"))

	var health map[string]string
	require.Equal(t, http.StatusOK, resident.do(http.MethodGet, "/healthz", nil, &health))
	assert.Equal(t, "ok", health["status"])
}

func TestServices_BookingFlow(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		exerciseBookingFlow(t, memory.New())
	})

	t.Run("sqlite store", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		exerciseBookingFlow(t, harness.Store)
	})
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := testConfig()
	cfg.Store = config.StoreMemory

	store, err := openMigratedStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, ok := store.(*memory.Storage)
	assert.True(t, ok)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestToApplicationError(t *testing.T) {
	driverErr := errors.New("driver exploded")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "not found", err: persistence.ErrNotFound, sentinel: application.ErrNotFound},
		{name: "wrapped duplicate", err: errors.Join(persistence.ErrDuplicate, driverErr), sentinel: application.ErrAlreadyExists},
		{name: "missing parent", err: persistence.ErrConstraintViolation, sentinel: application.ErrMissingReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := toApplicationError(tt.err)
			assert.ErrorIs(t, mapped, tt.sentinel)
			assert.ErrorIs(t, mapped, tt.err)
		})
	}

	assert.NoError(t, toApplicationError(nil))
	assert.Same(t, driverErr, toApplicationError(driverErr))
}

func TestReservationStoreAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	adapter := newReservationStoreAdapter(store)
	now := testfixtures.ReferenceTime()

	require.NoError(t, adapter.InsertDate(ctx, application.DateEntry{ID: "d1", Date: "2024-11-20", CreatedAt: now}))
	require.NoError(t, adapter.InsertRoom(ctx, application.RoomEntry{ID: "r1", Name: "room1", CreatedAt: now}))
	assert.ErrorIs(t, adapter.InsertDate(ctx, application.DateEntry{ID: "d2", Date: "2024-11-20", CreatedAt: now}), application.ErrAlreadyExists)

	_, err := adapter.FindRoom(ctx, "room9")
	assert.ErrorIs(t, err, application.ErrNotFound)

	require.NoError(t, adapter.InsertReservation(ctx, application.NewReservation{
		ID: "s1", DateID: "d1", RoomID: "r1", TimeBlock: "08-12", CreatedAt: now,
	}))

	found, err := adapter.FindReservations(ctx, application.ReservationQuery{Date: "2024-11-20", Rooms: []string{"room1"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "room1", found[0].Room)
	assert.Empty(t, found[0].Owner)

	require.NoError(t, adapter.DeleteReservation(ctx, "s1"))
	found, err = adapter.FindReservations(ctx, application.ReservationQuery{Date: "2024-11-20"})
	require.NoError(t, err)
	assert.Nil(t, found)
}

// purgingStore runs a janitor pass right after the first room insert, between
// the toggle's ensure steps and its reservation insert.
type purgingStore struct {
	*reservationStoreAdapter
	sweeper *janitor.Janitor
	purged  persistence.PurgeResult
	ran     bool
}

func (s *purgingStore) InsertRoom(ctx context.Context, entry application.RoomEntry) error {
	if err := s.reservationStoreAdapter.InsertRoom(ctx, entry); err != nil {
		return err
	}
	if !s.ran {
		s.ran = true
		result, err := s.sweeper.PurgeOrphans(ctx)
		if err != nil {
			return err
		}
		s.purged = result
	}
	return nil
}

func TestToggle_SurvivesConcurrentJanitorPurge(t *testing.T) {
	ctx := context.Background()
	now := testfixtures.ReferenceTime()
	clock := func() time.Time { return now }
	slot := application.Slot{Date: "2024-11-20", Room: "room1", TimeBlock: "18:00-19:00"}

	toggle := func(t *testing.T, store *memory.Storage) (application.ToggleResult, persistence.PurgeResult) {
		t.Helper()
		wrapped := &purgingStore{
			reservationStoreAdapter: newReservationStoreAdapter(store),
			sweeper:                 janitor.NewWithGracePeriod(store, 10*time.Minute, clock, nil),
		}
		svc := application.NewBookingService(wrapped, testfixtures.NewIDGenerator("id").UUIDFunc(), clock)
		result, err := svc.Toggle(ctx, application.ToggleParams{Slot: slot, Owner: "A101"})
		require.NoError(t, err)
		require.True(t, wrapped.ran, "purge did not run")
		return result, wrapped.purged
	}

	t.Run("fresh rows outlive the grace period", func(t *testing.T) {
		store := memory.New()

		result, purged := toggle(t, store)
		assert.Equal(t, application.OutcomeCreated, result.Outcome)
		assert.Equal(t, persistence.PurgeResult{}, purged)

		dates, rooms, schedules := store.Counts()
		assert.Equal(t, []int{1, 1, 1}, []int{dates, rooms, schedules})
	})

	t.Run("aged orphan date is re-created", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.InsertDate(ctx, persistence.DateRow{ID: "stale", Date: slot.Date, CreatedAt: now.Add(-time.Hour)}))

		result, purged := toggle(t, store)
		assert.Equal(t, application.OutcomeCreated, result.Outcome)
		assert.Equal(t, persistence.PurgeResult{Dates: 1}, purged)

		dates, rooms, schedules := store.Counts()
		assert.Equal(t, []int{1, 1, 1}, []int{dates, rooms, schedules})

		date, err := store.FindDate(ctx, slot.Date)
		require.NoError(t, err)
		assert.NotEqual(t, "stale", date.ID)

		found, err := store.FindReservations(ctx, persistence.ReservationFilter{Date: slot.Date, Rooms: []string{slot.Room}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.NotNil(t, found[0].Owner)
		assert.Equal(t, "A101", *found[0].Owner)
	})
}

func TestOwnerPointer(t *testing.T) {
	assert.Nil(t, ownerPointer(""))
	if owner := ownerPointer("A101"); assert.NotNil(t, owner) {
		assert.Equal(t, "A101", *owner)
	}
}

func TestPINReader(t *testing.T) {
	t.Run("environment wins", func(t *testing.T) {
		reader := newPINReader(strings.NewReader("9999\n"), io.Discard, func(key string) string {
			if key == "BOOKING_PIN" {
				return "4321"
			}
			return ""
		})
		pin, err := reader.Read()
		require.NoError(t, err)
		assert.Equal(t, "4321", pin)
	})

	t.Run("reads a trimmed line", func(t *testing.T) {
		reader := newPINReader(strings.NewReader("  8642 \nrest"), io.Discard, func(string) string { return "" })
		pin, err := reader.Read()
		require.NoError(t, err)
		assert.Equal(t, "8642", pin)
	})

	t.Run("accepts a final line without newline", func(t *testing.T) {
		reader := newPINReader(strings.NewReader("7531"), io.Discard, func(string) string { return "" })
		pin, err := reader.Read()
		require.NoError(t, err)
		assert.Equal(t, "7531", pin)
	})

	t.Run("empty input fails", func(t *testing.T) {
		reader := newPINReader(strings.NewReader(""), io.Discard, func(string) string { return "" })
		_, err := reader.Read()
		assert.ErrorIs(t, err, io.EOF)
	})
}
