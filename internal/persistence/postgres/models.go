package postgres

import "time"

type dateModel struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Date      string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (dateModel) TableName() string { return "dates" }

type roomModel struct {
	ID        string    `gorm:"primaryKey;type:text"`
	RoomName  string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (roomModel) TableName() string { return "rooms" }

// scheduleModel has no unique index on the slot columns.
type scheduleModel struct {
	ID        string    `gorm:"primaryKey;type:text"`
	DateID    string    `gorm:"type:text;not null;index:idx_room_schedule_slot,priority:1"`
	RoomID    string    `gorm:"type:text;not null;index:idx_room_schedule_slot,priority:2"`
	TimeBlock string    `gorm:"type:text;not null;index:idx_room_schedule_slot,priority:3"`
	Owner     *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`

	Date dateModel `gorm:"foreignKey:DateID;constraint:OnDelete:RESTRICT"`
	Room roomModel `gorm:"foreignKey:RoomID;constraint:OnDelete:RESTRICT"`
}

func (scheduleModel) TableName() string { return "room_schedule" }

type identityModel struct {
	Apartment string    `gorm:"primaryKey;type:text"`
	PINHash   string    `gorm:"column:pin_hash;type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (identityModel) TableName() string { return "identities" }

// reservationRow receives the joined reservation query.
type reservationRow struct {
	ID        string
	Date      string
	RoomName  string
	TimeBlock string
	Owner     *string
	CreatedAt time.Time
}
