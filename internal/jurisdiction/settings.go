package jurisdiction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// SettingsCandidates are the two places the election settings document has
// been published, tried in order.
var SettingsCandidates = []string{
	"/json/electionsettings.json",
	"/json/en/electionsettings.json",
}

var ErrMalformedRecord = errors.New("malformed participating county record")

type electionSettings struct {
	Settings struct {
		ElectionDetails struct {
			ParticipatingCounties []string `json:"participatingcounties"`
		} `json:"electiondetails"`
	} `json:"settings"`
}

func decodeParticipatingCounties(body []byte) ([]string, error) {
	var settings electionSettings
	if err := json.Unmarshal(body, &settings); err != nil {
		return nil, fmt.Errorf("decode election settings: %w", err)
	}
	return settings.Settings.ElectionDetails.ParticipatingCounties, nil
}

var reDigits = regexp.MustCompile(`^[0-9]+$`)

// parseCountyRecord reads "name|sub_election_id|sub_version|date|unused".
func parseCountyRecord(record string) (Candidate, error) {
	fields := strings.Split(record, "|")
	if len(fields) != 5 {
		return Candidate{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedRecord, record, len(fields))
	}

	c := Candidate{
		Name:     strings.TrimSpace(fields[0]),
		Election: strings.TrimSpace(fields[1]),
		Version:  strings.TrimSpace(fields[2]),
		Date:     strings.TrimSpace(fields[3]),
	}
	if c.Name == "" || !reDigits.MatchString(c.Election) || !reDigits.MatchString(c.Version) {
		return Candidate{}, fmt.Errorf("%w: %q", ErrMalformedRecord, record)
	}
	return c, nil
}

// pathSegment turns a display name into the URL segment the site uses.
func pathSegment(name string) string {
	return strings.Join(strings.Fields(name), "_")
}
