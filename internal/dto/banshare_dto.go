package dto

import "time"

type CreateBanshareRequest struct {
	IDs            string `json:"ids"`
	Reason         string `json:"reason"`
	Evidence       string `json:"evidence"`
	Server         string `json:"server"`
	Severity       string `json:"severity"`
	Urgent         bool   `json:"urgent"`
	SkipValidation bool   `json:"skipValidation"`
	SkipChecks     bool   `json:"skipChecks"`
}

type CreateBanshareResponse struct {
	Message string `json:"message"`
}

type RescindBanshareRequest struct {
	Explanation string `json:"explanation"`
}

type ReportBanshareRequest struct {
	Reason string `json:"reason"`
}

type Crosspost struct {
	Guild   string `json:"guild"`
	Channel string `json:"channel"`
	Message string `json:"message"`
}

type CrosspostLocation struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

type RegisterCrosspostsRequest struct {
	Crossposts []Crosspost `json:"crossposts"`
}

type BanshareResponse struct {
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	Urgent      bool      `json:"urgent"`
	Severity    string    `json:"severity"`
	IDs         string    `json:"ids"`
	IDList      []string  `json:"idList"`
	Reason      string    `json:"reason"`
	Evidence    string    `json:"evidence"`
	Server      string    `json:"server"`
	Author      string    `json:"author"`
	Created     time.Time `json:"created"`
	Reminded    time.Time `json:"reminded"`
	Publisher   *string   `json:"publisher,omitempty"`
	Rejecter    *string   `json:"rejecter,omitempty"`
	Rescinder   *string   `json:"rescinder,omitempty"`
	Explanation *string   `json:"explanation,omitempty"`
}

// BanshareSettings is the fully resolved configuration of one guild.
type BanshareSettings struct {
	Guild    string   `json:"guild"`
	Channel  *string  `json:"channel"`
	Logs     []string `json:"logs"`
	BlockDMs bool     `json:"blockdms"`
	NoButton bool     `json:"nobutton"`
	Daedalus bool     `json:"daedalus"`
	Autoban  uint8    `json:"autoban"`
}

// UpdateBanshareSettingsRequest carries only the fields the caller wants to
// change. A JSON null channel clears it.
type UpdateBanshareSettingsRequest struct {
	Channel  OptionalString `json:"channel"`
	BlockDMs *bool          `json:"blockdms"`
	NoButton *bool          `json:"nobutton"`
	Daedalus *bool          `json:"daedalus"`
	Autoban  *int           `json:"autoban"`
}

// AutobanRules is the decoded autoban field of a guild, keyed by severity.
type AutobanRules struct {
	NonMember map[string]bool `json:"nonmember"`
	Member    map[string]bool `json:"member"`
}

type AutobanResponse struct {
	Autoban bool         `json:"autoban"`
	Rules   AutobanRules `json:"rules"`
}
