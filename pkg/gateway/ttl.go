package gateway

import "time"

// TTLs are the freshness windows per endpoint class.
type TTLs struct {
	Fixtures    time.Duration
	FixturesDay time.Duration
	Standings   time.Duration
	TeamStats   time.Duration
}

// DefaultTTLs returns six hours for fixtures and a day for the slower moving
// standings and team statistics.
func DefaultTTLs() TTLs {
	return TTLs{
		Fixtures:    6 * time.Hour,
		FixturesDay: 6 * time.Hour,
		Standings:   24 * time.Hour,
		TeamStats:   24 * time.Hour,
	}
}
