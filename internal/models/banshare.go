package models

import (
	"time"

	"gorm.io/datatypes"
)

type BanshareStatus string

const (
	BanshareStatusPending   BanshareStatus = "pending"
	BanshareStatusRejected  BanshareStatus = "rejected"
	BanshareStatusPublished BanshareStatus = "published"
	BanshareStatusRescinded BanshareStatus = "rescinded"
)

// Terminal reports whether no further status transition is possible.
func (s BanshareStatus) Terminal() bool {
	return s == BanshareStatusRejected || s == BanshareStatusRescinded
}

type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityDM Severity = "DM"
)

// Severities lists every severity in autoban bit order.
var Severities = []Severity{SeverityP0, SeverityP1, SeverityP2, SeverityDM}

// Banshare is a cross-guild moderation report, keyed by the message ID the bot
// assigned when it posted the report for review.
type Banshare struct {
	Message     string                      `gorm:"primaryKey;size:20" json:"message"`
	Status      BanshareStatus              `gorm:"size:16;not null;index" json:"status"`
	Urgent      bool                        `gorm:"not null;default:false" json:"urgent"`
	Severity    Severity                    `gorm:"size:4;not null" json:"severity"`
	IDs         string                      `gorm:"column:ids;type:text;not null" json:"ids"`
	IDList      datatypes.JSONSlice[string] `gorm:"column:id_list" json:"idList"`
	Reason      string                      `gorm:"size:498;not null" json:"reason"`
	Evidence    string                      `gorm:"size:1000;not null" json:"evidence"`
	Server      string                      `gorm:"size:20;not null;index" json:"server"`
	Author      string                      `gorm:"size:20;not null;index" json:"author"`
	Created     time.Time                   `gorm:"not null" json:"created"`
	Reminded    time.Time                   `gorm:"not null;index" json:"reminded"`
	Publisher   *string                     `gorm:"size:20" json:"publisher,omitempty"`
	Rejecter    *string                     `gorm:"size:20" json:"rejecter,omitempty"`
	Rescinder   *string                     `gorm:"size:20" json:"rescinder,omitempty"`
	Explanation *string                     `gorm:"size:1800" json:"explanation,omitempty"`
	UpdatedAt   time.Time                   `json:"-"`

	Crossposts []BanshareCrosspost `gorm:"foreignKey:BanshareMessage;references:Message" json:"crossposts,omitempty"`
	Executors  []BanshareExecutor  `gorm:"foreignKey:BanshareMessage;references:Message" json:"executors,omitempty"`
	Reports    []BanshareReport    `gorm:"foreignKey:BanshareMessage;references:Message" json:"reports,omitempty"`
}

// ExecutedIn reports whether the banshare already has an executor for guild.
func (b *Banshare) ExecutedIn(guild string) bool {
	for _, e := range b.Executors {
		if e.Guild == guild {
			return true
		}
	}
	return false
}

// BanshareCrosspost records where a published banshare was propagated. The
// composite key allows one entry per guild.
type BanshareCrosspost struct {
	BanshareMessage string    `gorm:"column:banshare;primaryKey;size:20" json:"-"`
	Guild           string    `gorm:"primaryKey;size:20" json:"guild"`
	Channel         string    `gorm:"size:20;not null" json:"channel"`
	Message         string    `gorm:"size:20;not null" json:"message"`
	CreatedAt       time.Time `json:"-"`
}

// BanshareExecutor records who enforced a banshare in a guild.
type BanshareExecutor struct {
	BanshareMessage string    `gorm:"column:banshare;primaryKey;size:20" json:"-"`
	Guild           string    `gorm:"primaryKey;size:20" json:"guild"`
	Executor        string    `gorm:"size:20;not null" json:"executor"`
	Auto            bool      `gorm:"not null;default:false" json:"auto"`
	CreatedAt       time.Time `json:"created_at"`
}

// BanshareReport is an abuse or false-positive report filed against a banshare.
type BanshareReport struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	BanshareMessage string    `gorm:"column:banshare;size:20;not null;index" json:"-"`
	Reporter        string    `gorm:"size:20;not null" json:"reporter"`
	Reason          string    `gorm:"size:1800;not null" json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}

// DeletedBanshare archives a purged banshare together with its children.
type DeletedBanshare struct {
	Message   string         `gorm:"primaryKey;size:20" json:"message"`
	Snapshot  datatypes.JSON `gorm:"not null" json:"snapshot"`
	DeletedBy string         `gorm:"size:20;not null" json:"deleted_by"`
	Reason    *string        `gorm:"size:256" json:"reason,omitempty"`
	DeletedAt time.Time      `gorm:"not null" json:"deleted_at"`
}
