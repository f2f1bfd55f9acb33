package services

import (
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/models"
)

// Membership says whether any target of a banshare is in the deciding guild.
type Membership int

const (
	NonMember Membership = iota
	Member
)

// autobanMasks maps each membership class and severity to its bit in the
// guild's autoban field. The bot decodes the same layout, so it must not
// change: the high nibble covers non-members, the low nibble members, and
// within each nibble the order is P0, P1, P2, DM from the most significant bit.
var autobanMasks = [2][4]uint8{
	NonMember: {0x80, 0x40, 0x20, 0x10},
	Member:    {0x08, 0x04, 0x02, 0x01},
}

func severityIndex(severity models.Severity) (int, bool) {
	for i, s := range models.Severities {
		if s == severity {
			return i, true
		}
	}
	return 0, false
}

// Decide reports whether a guild with the given autoban field enforces a
// banshare of this severity automatically.
func Decide(field uint8, severity models.Severity, isMember bool) bool {
	i, ok := severityIndex(severity)
	if !ok {
		return false
	}
	class := NonMember
	if isMember {
		class = Member
	}
	return field&autobanMasks[class][i] != 0
}

// Matrix decodes an autoban field into the per-severity rules shown to guilds.
func Matrix(field uint8) dto.AutobanRules {
	rules := dto.AutobanRules{
		NonMember: make(map[string]bool, len(models.Severities)),
		Member:    make(map[string]bool, len(models.Severities)),
	}
	for _, s := range models.Severities {
		rules.NonMember[string(s)] = Decide(field, s, false)
		rules.Member[string(s)] = Decide(field, s, true)
	}
	return rules
}
