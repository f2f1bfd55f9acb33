package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tcn-network/banshare-api/internal/models"
)

const (
	maxReasonLength      = 498
	maxEvidenceLength    = 1000
	maxExplanationLength = 1800
	maxReportLength      = 1800
)

// idSpace matches Unicode whitespace between IDs. RE2's \s covers only ASCII.
const idSpace = `[\s\v\x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}]`

var (
	idListPattern    = regexp.MustCompile(`^` + idSpace + `*([1-9][0-9]{16,19}` + idSpace + `+)*[1-9][0-9]{16,19}` + idSpace + `*$`)
	mediaLinkPattern = regexp.MustCompile(`cdn\.discordapp\.com|media\.discordapp\.net`)
)

func ParseSeverity(s string) (models.Severity, error) {
	severity := models.Severity(s)
	for _, known := range models.Severities {
		if severity == known {
			return severity, nil
		}
	}
	return "", invalid("Severity must be one of P0, P1, P2, or DM.")
}

// ParseIDList splits a whitespace-separated list of user IDs.
func ParseIDList(ids string) ([]string, error) {
	if !idListPattern.MatchString(ids) {
		return nil, invalid("ID field must be a whitespace-separated list of user IDs (or submit without checks if needed).")
	}
	return strings.FieldsFunc(ids, isIDSpace), nil
}

func isIDSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

// ContainsMediaLink reports whether text references Discord's attachment CDN.
// Those links expire, so they are not accepted as evidence.
func ContainsMediaLink(text string) bool {
	return mediaLinkPattern.MatchString(text)
}

func checkLength(value string, max int, message string) error {
	n := utf8.RuneCountInString(value)
	if n < 1 || n > max {
		return invalid(message)
	}
	return nil
}

type createInput struct {
	Author     string
	IDs        string
	Reason     string
	Evidence   string
	Severity   string
	SkipChecks bool
}

// validateCreate checks a submission and returns its parsed severity and
// target list.
func validateCreate(in createInput) (models.Severity, []string, error) {
	if strings.TrimSpace(in.IDs) == "" {
		return "", nil, invalid("The ID field must not be empty.")
	}
	if err := checkLength(in.Reason, maxReasonLength, "Banshare reason must be 1-498 characters."); err != nil {
		return "", nil, err
	}
	if err := checkLength(in.Evidence, maxEvidenceLength, "Banshare evidence must be 1-1000 characters."); err != nil {
		return "", nil, err
	}

	idList := []string{}
	if !in.SkipChecks {
		parsed, err := ParseIDList(in.IDs)
		if err != nil {
			return "", nil, err
		}
		idList = parsed
	}

	severity, err := ParseSeverity(in.Severity)
	if err != nil {
		return "", nil, err
	}

	for _, id := range idList {
		if id == in.Author {
			return "", nil, invalid("You cannot banshare yourself.")
		}
	}

	if ContainsMediaLink(in.Evidence + " " + in.Reason) {
		return "", nil, invalid("Discord media links are not allowed.")
	}

	return severity, idList, nil
}
