// Package postgres stores bookings in PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the PostgreSQL-backed persistence.Store.
type Storage struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to dsn. A nil logger falls back to slog.Default.
func Open(dsn string, log *slog.Logger) (*Storage, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open database: %w", err)
	}

	return &Storage{db: db, logger: log.With("component", "postgres_store")}, nil
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the tables.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&dateModel{}, &roomModel{}, &scheduleModel{}, &identityModel{}); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	s.logger.InfoContext(ctx, "schema migrated")
	return nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindReservations returns the joined reservations matching filter.
func (s *Storage) FindReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.ReservationView, error) {
	query := s.reservations(ctx)
	if filter.Date != "" {
		query = query.Where("d.date = ?", filter.Date)
	}
	if filter.From != "" {
		query = query.Where("d.date >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("d.date <= ?", filter.To)
	}
	if len(filter.Rooms) > 0 {
		query = query.Where("r.room_name IN ?", filter.Rooms)
	}
	if filter.TimeBlock != "" {
		query = query.Where("rs.time_block = ?", filter.TimeBlock)
	}

	var rows []reservationRow
	if err := query.
		Order("d.date ASC, r.room_name ASC, rs.time_block ASC, rs.created_at ASC, rs.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}

	views := make([]persistence.ReservationView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row))
	}
	return views, nil
}

// FindDate looks a date row up by its label.
func (s *Storage) FindDate(ctx context.Context, date string) (persistence.DateRow, error) {
	var model dateModel
	if err := s.db.WithContext(ctx).Where("date = ?", date).Take(&model).Error; err != nil {
		return persistence.DateRow{}, mapError(err)
	}
	return persistence.DateRow{ID: model.ID, Date: model.Date, CreatedAt: model.CreatedAt}, nil
}

// InsertDate registers a date.
func (s *Storage) InsertDate(ctx context.Context, row persistence.DateRow) error {
	model := dateModel{ID: row.ID, Date: row.Date, CreatedAt: row.CreatedAt}
	return mapError(s.db.WithContext(ctx).Create(&model).Error)
}

// FindRoom looks a room row up by name.
func (s *Storage) FindRoom(ctx context.Context, name string) (persistence.RoomRow, error) {
	var model roomModel
	if err := s.db.WithContext(ctx).Where("room_name = ?", name).Take(&model).Error; err != nil {
		return persistence.RoomRow{}, mapError(err)
	}
	return persistence.RoomRow{ID: model.ID, RoomName: model.RoomName, CreatedAt: model.CreatedAt}, nil
}

// InsertRoom registers a room.
func (s *Storage) InsertRoom(ctx context.Context, row persistence.RoomRow) error {
	model := roomModel{ID: row.ID, RoomName: row.RoomName, CreatedAt: row.CreatedAt}
	return mapError(s.db.WithContext(ctx).Create(&model).Error)
}

// InsertSchedule writes a reservation row.
func (s *Storage) InsertSchedule(ctx context.Context, row persistence.ScheduleRow) error {
	model := scheduleModel{
		ID:        row.ID,
		DateID:    row.DateID,
		RoomID:    row.RoomID,
		TimeBlock: row.TimeBlock,
		Owner:     row.Owner,
		CreatedAt: row.CreatedAt,
	}
	return mapError(s.db.WithContext(ctx).Omit("Date", "Room").Create(&model).Error)
}

// DeleteSchedule removes a reservation row.
func (s *Storage) DeleteSchedule(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&scheduleModel{})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// FindIdentities returns the identities registered for apartment.
func (s *Storage) FindIdentities(ctx context.Context, apartment string) ([]persistence.IdentityRow, error) {
	var models []identityModel
	if err := s.db.WithContext(ctx).Where("apartment = ?", apartment).Find(&models).Error; err != nil {
		return nil, mapError(err)
	}
	rows := make([]persistence.IdentityRow, 0, len(models))
	for _, model := range models {
		rows = append(rows, persistence.IdentityRow{Apartment: model.Apartment, PINHash: model.PINHash, CreatedAt: model.CreatedAt})
	}
	return rows, nil
}

// CreateIdentity registers an apartment login.
func (s *Storage) CreateIdentity(ctx context.Context, row persistence.IdentityRow) error {
	model := identityModel{Apartment: row.Apartment, PINHash: row.PINHash, CreatedAt: row.CreatedAt}
	return mapError(s.db.WithContext(ctx).Create(&model).Error)
}

// PurgeOrphans deletes dates and rooms created before cutoff that no
// reservation references.
func (s *Storage) PurgeOrphans(ctx context.Context, cutoff time.Time) (persistence.PurgeResult, error) {
	var result persistence.PurgeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dates := tx.Exec(`DELETE FROM dates WHERE created_at < ? AND id NOT IN (SELECT date_id FROM room_schedule)`, cutoff.UTC())
		if dates.Error != nil {
			return dates.Error
		}
		rooms := tx.Exec(`DELETE FROM rooms WHERE created_at < ? AND id NOT IN (SELECT room_id FROM room_schedule)`, cutoff.UTC())
		if rooms.Error != nil {
			return rooms.Error
		}
		result = persistence.PurgeResult{Dates: int(dates.RowsAffected), Rooms: int(rooms.RowsAffected)}
		return nil
	})
	if err != nil {
		return persistence.PurgeResult{}, mapError(err)
	}
	return result, nil
}

func (s *Storage) reservations(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("room_schedule AS rs").
		Select("rs.id, d.date, r.room_name, rs.time_block, rs.owner, rs.created_at").
		Joins("JOIN dates d ON d.id = rs.date_id").
		Joins("JOIN rooms r ON r.id = rs.room_id")
}

func toView(row reservationRow) persistence.ReservationView {
	return persistence.ReservationView{
		ID:        row.ID,
		Date:      row.Date,
		RoomName:  row.RoomName,
		TimeBlock: row.TimeBlock,
		Owner:     row.Owner,
		CreatedAt: row.CreatedAt,
	}
}

// mapError translates gorm errors into persistence sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return persistence.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return fmt.Errorf("postgres: %w", err)
}

var _ persistence.Store = (*Storage)(nil)
