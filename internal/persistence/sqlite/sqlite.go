package sqlite

import (
	"context"
	"log/slog"

	"github.com/example/room-booking/internal/persistence"
)

// Storage is the SQLite-backed persistence.Store.
type Storage struct {
	*DateRepository
	*RoomRepository
	*ScheduleRepository
	*IdentityRepository
	*MaintenanceRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database at dsn with DefaultConfig.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(DefaultConfig(dsn), nil)
}

// OpenWithConfig connects using config. A nil logger falls back to slog.Default.
func OpenWithConfig(config Config, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Storage{
		DateRepository:        NewDateRepository(pool),
		RoomRepository:        NewRoomRepository(pool),
		ScheduleRepository:    NewScheduleRepository(pool),
		IdentityRepository:    NewIdentityRepository(pool),
		MaintenanceRepository: NewMaintenanceRepository(pool),
		pool:                  pool,
		logger:                logger,
	}, nil
}

// Pool exposes the connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return NewMigrator(s.pool.DB(), s.logger).Run(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

var _ persistence.Store = (*Storage)(nil)
