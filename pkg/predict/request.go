package predict

import (
	"fmt"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/failure"
)

// Limits of a predict request.
const (
	DefaultLimit      = 20
	DefaultMaxMatches = 50
	DefaultTimeBudget = 8 * time.Second
)

// Request describes one predict query.
type Request struct {
	Date      string
	Season    int
	LeagueIDs []int
	// Limit caps the number of rows; 0 means DefaultLimit.
	Limit int
}

// Normalize validates the request, defaults the season to the year of the
// date and clamps the limit to [1, maxMatches].
func (r *Request) Normalize(maxMatches int) error {
	d, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", failure.ErrInvalidRequest, r.Date)
	}
	if len(r.LeagueIDs) == 0 {
		return fmt.Errorf("%w: missing leagueIds", failure.ErrInvalidRequest)
	}
	if r.Season == 0 {
		r.Season = d.Year()
	}

	if maxMatches <= 0 {
		maxMatches = DefaultMaxMatches
	}
	switch {
	case r.Limit == 0:
		r.Limit = DefaultLimit
	case r.Limit < 1:
		r.Limit = 1
	}
	if r.Limit > maxMatches {
		r.Limit = maxMatches
	}
	return nil
}
