package models

import "time"

// BanshareSettings holds a guild's stored overrides. Nil fields fall back to
// the defaults when resolved.
type BanshareSettings struct {
	Guild     string               `gorm:"primaryKey;size:20" json:"guild"`
	Channel   *string              `gorm:"size:20" json:"channel,omitempty"`
	BlockDMs  *bool                `gorm:"column:blockdms" json:"blockdms,omitempty"`
	NoButton  *bool                `gorm:"column:nobutton" json:"nobutton,omitempty"`
	Daedalus  *bool                `gorm:"column:daedalus" json:"daedalus,omitempty"`
	Autoban   *uint8               `gorm:"column:autoban" json:"autoban,omitempty"`
	Logs      []BanshareLogChannel `gorm:"foreignKey:Guild;references:Guild" json:"logs,omitempty"`
	CreatedAt time.Time            `json:"-"`
	UpdatedAt time.Time            `json:"-"`
}

// BanshareLogChannel is one of at most MaxLogChannels logging channels of a guild.
type BanshareLogChannel struct {
	Guild     string    `gorm:"primaryKey;size:20" json:"guild"`
	Channel   string    `gorm:"primaryKey;size:20" json:"channel"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

const MaxLogChannels = 10
