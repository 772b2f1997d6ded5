package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-booking/internal/logging"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Store backends selectable with BOOKING_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// JanitorDisabled turns the orphan janitor off when used as its schedule.
const JanitorDisabled = "off"

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort    int
	Store       string
	SQLiteDSN   string
	PostgresDSN string

	Rooms       []string
	WindowStart string
	WindowEnd   string
	WeekStart   time.Weekday
	Location    *time.Location

	// JanitorSchedule is a six-field cron spec. Empty disables the janitor.
	JanitorSchedule string
	// JanitorGrace is how old an unreferenced date or room must be before
	// the janitor removes it.
	JanitorGrace time.Duration
	LogLevel     slog.Level
}

// CronParser accepts the six-field (with seconds) specs used by the janitor.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load reads the dotenv file named by BOOKING_ENV_FILE (default .env) when it
// exists, then parses configuration from the process environment. Variables
// already set in the environment win over the file.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("BOOKING_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}
	return FromEnvironment()
}

// FromEnvironment parses configuration values from the current process environment.
//
// Defaults are applied for optional fields; every missing or invalid variable
// is reported in a single error.
func FromEnvironment() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		Store:           StoreSQLite,
		SQLiteDSN:       "file:booking.db?_pragma=foreign_keys(1)",
		Rooms:           []string{"room1", "room2"},
		WeekStart:       time.Monday,
		JanitorSchedule: "0 30 3 * * *",
		JanitorGrace:    10 * time.Minute,
		LogLevel:        slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("BOOKING_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.ToLower(env("BOOKING_STORE")); store != "" {
		switch store {
		case StoreSQLite, StorePostgres, StoreMemory:
			cfg.Store = store
		default:
			invalid = append(invalid, "BOOKING_STORE")
		}
	}

	if dsn := env("BOOKING_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = env("BOOKING_POSTGRES_DSN")
	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "BOOKING_POSTGRES_DSN")
	}

	if roomsValue := env("BOOKING_ROOMS"); roomsValue != "" {
		rooms := splitList(roomsValue)
		if len(rooms) == 0 {
			invalid = append(invalid, "BOOKING_ROOMS")
		} else {
			cfg.Rooms = rooms
		}
	}

	start, end := env("BOOKING_WINDOW_START"), env("BOOKING_WINDOW_END")
	switch {
	case start == "" && end == "":
	case start == "" || end == "":
		if start == "" {
			missing = append(missing, "BOOKING_WINDOW_START")
		} else {
			missing = append(missing, "BOOKING_WINDOW_END")
		}
	default:
		startDate, startErr := time.Parse("2006-01-02", start)
		endDate, endErr := time.Parse("2006-01-02", end)
		if startErr != nil {
			invalid = append(invalid, "BOOKING_WINDOW_START")
		}
		if endErr != nil || (startErr == nil && endDate.Before(startDate)) {
			invalid = append(invalid, "BOOKING_WINDOW_END")
		}
		cfg.WindowStart, cfg.WindowEnd = start, end
	}

	if weekStart := strings.ToLower(env("BOOKING_WEEK_START")); weekStart != "" {
		day, ok := weekdays[weekStart]
		if !ok {
			invalid = append(invalid, "BOOKING_WEEK_START")
		} else {
			cfg.WeekStart = day
		}
	}

	zone := env("BOOKING_TIMEZONE")
	if zone == "" {
		zone = "Europe/Stockholm"
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		invalid = append(invalid, "BOOKING_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	if schedule := env("BOOKING_JANITOR_SCHEDULE"); schedule != "" {
		if strings.EqualFold(schedule, JanitorDisabled) {
			cfg.JanitorSchedule = ""
		} else if _, err := CronParser.Parse(schedule); err != nil {
			invalid = append(invalid, "BOOKING_JANITOR_SCHEDULE")
		} else {
			cfg.JanitorSchedule = schedule
		}
	}

	if graceValue := env("BOOKING_JANITOR_GRACE"); graceValue != "" {
		grace, err := time.ParseDuration(graceValue)
		if err != nil || grace <= 0 {
			invalid = append(invalid, "BOOKING_JANITOR_GRACE")
		} else {
			cfg.JanitorGrace = grace
		}
	}

	if levelValue := env("BOOKING_LOG_LEVEL"); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "BOOKING_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(value string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
