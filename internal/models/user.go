package models

import (
	"time"

	"gorm.io/datatypes"
)

// User holds the network-wide flags of a Discord user. Users without a row are
// ordinary, non-observer users.
type User struct {
	ID        string    `gorm:"primaryKey;size:20" json:"id"`
	Observer  bool      `gorm:"not null;default:false" json:"observer"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Guild is a member server of the network.
type Guild struct {
	ID        string    `gorm:"primaryKey;size:20" json:"id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Owner     string    `gorm:"size:20;not null;index" json:"owner"`
	Advisor   *string   `gorm:"size:20;index" json:"advisor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GuildStaff marks a user as staff of a guild together with their guild roles.
type GuildStaff struct {
	Guild string                      `gorm:"primaryKey;size:20" json:"guild"`
	User  string                      `gorm:"column:user_id;primaryKey;size:20;index" json:"user"`
	Roles datatypes.JSONSlice[string] `json:"roles"`
}

func (GuildStaff) TableName() string {
	return "guild_staff"
}
