package warm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/failure"
)

// DateLayout is the calendar date format used across the API.
const DateLayout = "2006-01-02"

// Request describes one warm run.
type Request struct {
	Date      string
	Season    int
	LeagueIDs []int
	Standings bool
	TeamStats bool
}

// Normalize validates the request and fills defaults: the season defaults
// to the year of the date.
func (r *Request) Normalize() error {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", failure.ErrInvalidRequest, r.Date)
	}
	if len(r.LeagueIDs) == 0 {
		return fmt.Errorf("%w: missing leagueIds", failure.ErrInvalidRequest)
	}
	if r.Season == 0 {
		r.Season = d.Year()
	}
	return nil
}

// ParseLeagueIDs reads a comma separated id list. Blank and non-positive
// entries are dropped and duplicates keep their first position.
func ParseLeagueIDs(raw string) ([]int, error) {
	seen := make(map[int]bool)
	ids := make([]int, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: league id %q", failure.ErrInvalidRequest, part)
		}
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
